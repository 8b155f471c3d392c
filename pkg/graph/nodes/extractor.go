package nodes

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

var (
	// ISO 6346 owner code + serial, e.g. MSCU1234567.
	containerNumberRe = regexp.MustCompile(`\b[A-Z]{4}\d{7}\b`)
	// PO references as they appear in user text: "PO 4500123456", "po#9912".
	poNumberRe = regexp.MustCompile(`(?i)\bpo[\s#:-]*(\d{4,12})\b`)
	// Booking references: "booking ABC123456".
	bookingNumberRe = regexp.MustCompile(`(?i)\bbooking[\s#:-]*([A-Z0-9]{6,14})\b`)
	isoDateRe       = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// Extractor pulls structured identifiers and date windows out of the
// canonical question. It is purely lexical; no model call is made, so
// extraction is deterministic and free.
type Extractor struct{}

func (x *Extractor) Name() string { return graph.NodeExtractor }

func (x *Extractor) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	text := state.CanonicalQuestion
	upper := strings.ToUpper(text)

	ents := models.Entities{}
	ents.ContainerNumbers = dedupe(containerNumberRe.FindAllString(upper, -1))
	for _, m := range poNumberRe.FindAllStringSubmatch(text, -1) {
		ents.PONumbers = append(ents.PONumbers, m[1])
	}
	ents.PONumbers = dedupe(ents.PONumbers)
	for _, m := range bookingNumberRe.FindAllStringSubmatch(upper, -1) {
		ents.BookingNumbers = append(ents.BookingNumbers, m[1])
	}
	ents.BookingNumbers = dedupe(ents.BookingNumbers)
	ents.DateRange = extractDateRange(text)

	state.Entities = ents
	return graph.OutcomeNext, nil
}

// extractDateRange resolves explicit ISO dates and a few common relative
// phrases into an absolute window. Only absolute dates leave this node.
func extractDateRange(text string) *models.DateRange {
	if dates := isoDateRe.FindAllString(text, -1); len(dates) > 0 {
		r := &models.DateRange{From: dates[0], To: dates[0]}
		if len(dates) > 1 {
			r.To = dates[1]
			if r.To < r.From {
				r.From, r.To = r.To, r.From
			}
		}
		return r
	}

	now := time.Now().UTC()
	lower := strings.ToLower(text)
	day := func(t time.Time) string { return t.Format("2006-01-02") }
	switch {
	case strings.Contains(lower, "today"):
		return &models.DateRange{From: day(now), To: day(now)}
	case strings.Contains(lower, "yesterday"):
		y := now.AddDate(0, 0, -1)
		return &models.DateRange{From: day(y), To: day(y)}
	case strings.Contains(lower, "this week"):
		offset := (int(now.Weekday()) + 6) % 7 // Monday start
		return &models.DateRange{From: day(now.AddDate(0, 0, -offset)), To: day(now.AddDate(0, 0, 6-offset))}
	case strings.Contains(lower, "last week"):
		offset := (int(now.Weekday()) + 6) % 7
		start := now.AddDate(0, 0, -offset-7)
		return &models.DateRange{From: day(start), To: day(start.AddDate(0, 0, 6))}
	case strings.Contains(lower, "this month"):
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return &models.DateRange{From: day(first), To: day(first.AddDate(0, 1, -1))}
	case strings.Contains(lower, "last month"):
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return &models.DateRange{From: day(first), To: day(first.AddDate(0, 1, -1))}
	case strings.Contains(lower, "next week"):
		offset := (int(now.Weekday()) + 6) % 7
		start := now.AddDate(0, 0, 7-offset)
		return &models.DateRange{From: day(start), To: day(start.AddDate(0, 0, 6))}
	}
	return nil
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
