package nodes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

func runExtractor(t *testing.T, question string) models.Entities {
	t.Helper()
	state := &models.ConversationState{CanonicalQuestion: question}
	x := &Extractor{}
	_, err := x.Run(context.Background(), state)
	require.NoError(t, err)
	return state.Entities
}

func TestExtractor_ContainerNumbers(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{"uppercase", "where is MSCU1234567?", []string{"MSCU1234567"}},
		{"lowercase input", "track mscu1234567 please", []string{"MSCU1234567"}},
		{"multiple deduped", "compare MSCU1234567 and MAEU7654321 and MSCU1234567", []string{"MSCU1234567", "MAEU7654321"}},
		{"no false positive on words", "how many delayed shipments?", nil},
		{"wrong shape ignored", "ref ABC1234567 and MSCUU123456", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runExtractor(t, tt.question).ContainerNumbers)
		})
	}
}

func TestExtractor_PONumbers(t *testing.T) {
	tests := []struct {
		name     string
		question string
		want     []string
	}{
		{"with space", "status of PO 4500123456", []string{"4500123456"}},
		{"with hash", "po#991234", []string{"991234"}},
		{"with colon", "PO: 12345678", []string{"12345678"}},
		{"too short ignored", "po 12", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, runExtractor(t, tt.question).PONumbers)
		})
	}
}

func TestExtractor_BookingNumbers(t *testing.T) {
	ents := runExtractor(t, "what about booking ABC123456?")
	assert.Equal(t, []string{"ABC123456"}, ents.BookingNumbers)
}

func TestExtractor_ISODateRange(t *testing.T) {
	t.Run("single date", func(t *testing.T) {
		ents := runExtractor(t, "arrivals on 2026-03-05")
		require.NotNil(t, ents.DateRange)
		assert.Equal(t, "2026-03-05", ents.DateRange.From)
		assert.Equal(t, "2026-03-05", ents.DateRange.To)
	})

	t.Run("two dates ordered", func(t *testing.T) {
		ents := runExtractor(t, "between 2026-03-20 and 2026-03-05")
		require.NotNil(t, ents.DateRange)
		assert.Equal(t, "2026-03-05", ents.DateRange.From)
		assert.Equal(t, "2026-03-20", ents.DateRange.To)
	})
}

func TestExtractor_RelativeDates(t *testing.T) {
	today := time.Now().UTC().Format("2006-01-02")

	ents := runExtractor(t, "what arrives today?")
	require.NotNil(t, ents.DateRange)
	assert.Equal(t, today, ents.DateRange.From)
	assert.Equal(t, today, ents.DateRange.To)

	week := runExtractor(t, "arrivals this week").DateRange
	require.NotNil(t, week)
	assert.LessOrEqual(t, week.From, today)
	assert.GreaterOrEqual(t, week.To, today)
}

func TestExtractor_NoDates(t *testing.T) {
	assert.Nil(t, runExtractor(t, "how many delayed shipments?").DateRange)
}
