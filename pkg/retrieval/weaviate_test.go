package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	wmodels "github.com/weaviate/weaviate/entities/models"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

func TestSearch_RefusesUnscopedQuery(t *testing.T) {
	s := &WeaviateSearcher{cfg: WeaviateConfig{Class: "Shipment"}}

	_, err := s.Search(context.Background(), Query{Text: "where is my shipment"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unscoped")
}

func TestBuildWhere_ScopeOnly(t *testing.T) {
	where, err := buildWhere(Query{ConsigneeCodes: []string{"ACME"}})
	require.NoError(t, err)

	built := where.Build()
	assert.Equal(t, []string{"consignee_codes"}, built.Path)
	assert.Equal(t, string(filters.ContainsAny), built.Operator)
	assert.Empty(t, built.Operands)
}

func TestBuildWhere_CombinesConstraints(t *testing.T) {
	where, err := buildWhere(Query{
		ConsigneeCodes:   []string{"ACME"},
		ContainerNumbers: []string{"MSCU1234567"},
		DateRange:        &models.DateRange{From: "2026-01-01", To: "2026-01-31"},
	})
	require.NoError(t, err)

	built := where.Build()
	assert.Equal(t, string(filters.And), built.Operator)
	require.Len(t, built.Operands, 4)
	// The scope filter is always the first operand.
	assert.Equal(t, []string{"consignee_codes"}, built.Operands[0].Path)
}

func TestBuildWhere_RejectsRelativeDates(t *testing.T) {
	tests := []struct {
		name  string
		rng   *models.DateRange
	}{
		{"relative from", &models.DateRange{From: "next week"}},
		{"relative to", &models.DateRange{To: "tomorrow"}},
		{"partial iso", &models.DateRange{From: "2026-01"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildWhere(Query{ConsigneeCodes: []string{"ACME"}, DateRange: tt.rng})
			assert.Error(t, err)
		})
	}
}

func TestParseHits(t *testing.T) {
	data := map[string]wmodels.JSONObject{
		"Get": map[string]any{
			"Shipment": []any{
				map[string]any{
					"container_number": "MSCU1234567",
					"discharge_port":   "Rotterdam",
					"consignee_codes":  []any{"ACME"}, // not in the allow list
					"_additional": map[string]any{
						"id":    "doc-1",
						"score": "0.87",
					},
				},
				map[string]any{
					"container_number": "MAEU7654321",
					"best_eta_dp_date": nil,
					"_additional": map[string]any{
						"id":    "doc-2",
						"score": 0.42,
					},
				},
			},
		},
	}

	hits := parseHits(data, "Shipment")
	require.Len(t, hits, 2)

	assert.Equal(t, "doc-1", hits[0].DocID)
	assert.Equal(t, 1, hits[0].Rank)
	assert.InDelta(t, 0.87, hits[0].Score, 1e-9)
	assert.Equal(t, "MSCU1234567", hits[0].Fields["container_number"])
	_, leaked := hits[0].Fields["consignee_codes"]
	assert.False(t, leaked)

	assert.Equal(t, 2, hits[1].Rank)
	assert.InDelta(t, 0.42, hits[1].Score, 1e-9)
	// Null field values are dropped, not rendered as "<nil>".
	_, ok := hits[1].Fields["best_eta_dp_date"]
	assert.False(t, ok)
}

func TestParseHits_MalformedShapes(t *testing.T) {
	assert.Empty(t, parseHits(map[string]wmodels.JSONObject{}, "Shipment"))
	assert.Empty(t, parseHits(map[string]wmodels.JSONObject{"Get": "nope"}, "Shipment"))
	assert.Empty(t, parseHits(map[string]wmodels.JSONObject{
		"Get": map[string]any{"Other": []any{}},
	}, "Shipment"))
}
