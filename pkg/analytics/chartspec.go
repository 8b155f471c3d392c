package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// chartTerms signal that the user wants a visualization at all.
var chartTerms = []string{
	"chart", "graph", "plot", "bar", "line", "pie", "trend",
	"visualize", "visualise", "distribution", "breakdown",
}

// ChartIntent is the deterministic classification of a question's
// visualization request.
type ChartIntent struct {
	Wanted bool
	Kind   models.ChartKind
}

// ClassifyChartIntent derives chart intent from question keywords. Pure and
// deterministic; the same question always classifies the same way.
func ClassifyChartIntent(question string) ChartIntent {
	lowered := strings.ToLower(question)

	wanted := false
	for _, term := range chartTerms {
		if strings.Contains(lowered, term) {
			wanted = true
			break
		}
	}
	if !wanted {
		return ChartIntent{}
	}

	kind := models.ChartBar
	switch {
	case strings.Contains(lowered, "pie") || strings.Contains(lowered, "donut") || strings.Contains(lowered, "doughnut"):
		kind = models.ChartPie
	case strings.Contains(lowered, "line") || strings.Contains(lowered, "trend") ||
		strings.Contains(lowered, "timeline") || strings.Contains(lowered, "over time"):
		kind = models.ChartLine
	}
	return ChartIntent{Wanted: true, Kind: kind}
}

// BuildChartSpec derives a declarative chart from an already-materialized
// result. Pure function: never re-queries, never renders. When the result is
// empty, has more than one category dimension, or no chart was requested,
// the spec is kind none and the caller falls back to table/text rendering.
func BuildChartSpec(result *models.ExecutionResult, intent ChartIntent) *models.ChartSpec {
	none := &models.ChartSpec{Kind: models.ChartNone}

	if !intent.Wanted || result == nil || len(result.Rows) == 0 || len(result.Columns) < 2 {
		return none
	}

	var valueFields []string
	var categoryFields []string
	for _, col := range result.Columns {
		if columnNumeric(result.Rows, col) {
			valueFields = append(valueFields, col)
		} else {
			categoryFields = append(categoryFields, col)
		}
	}
	if len(valueFields) == 0 || len(categoryFields) != 1 {
		return none
	}
	category := categoryFields[0]

	series := make([]map[string]any, 0, len(result.Rows))
	for _, row := range result.Rows {
		point := map[string]any{category: fmt.Sprintf("%v", row[category])}
		usable := false
		for _, field := range valueFields {
			if f, ok := toFloat(row[field]); ok {
				point[field] = f
				usable = true
			}
		}
		if usable {
			series = append(series, point)
		}
	}
	if len(series) == 0 {
		return none
	}

	// Date-like categories read left to right chronologically on line charts.
	if intent.Kind == models.ChartLine && dateNamed(category) {
		sort.SliceStable(series, func(i, j int) bool {
			return fmt.Sprintf("%v", series[i][category]) < fmt.Sprintf("%v", series[j][category])
		})
	}

	kindName := string(intent.Kind)
	return &models.ChartSpec{
		Kind:          intent.Kind,
		Title:         fmt.Sprintf("%s of %s by %s", strings.ToUpper(kindName[:1])+kindName[1:], strings.Join(valueFields, ", "), category),
		CategoryField: category,
		ValueFields:   valueFields,
		Series:        series,
	}
}

// columnNumeric reports whether any value of the column parses as a number.
func columnNumeric(rows []map[string]any, col string) bool {
	for _, row := range rows {
		if _, ok := toFloat(row[col]); ok {
			return true
		}
	}
	return false
}

func dateNamed(col string) bool {
	lowered := strings.ToLower(col)
	return strings.Contains(lowered, "date") || strings.Contains(lowered, "eta") || strings.Contains(lowered, "ata")
}
