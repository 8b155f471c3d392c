package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	wmodels "github.com/weaviate/weaviate/entities/models"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

const (
	defaultLimit = 10
	// scopeField carries the consignee codes in the index schema.
	scopeField = "consignee_codes"
)

// WeaviateConfig wires the searcher to the index.
type WeaviateConfig struct {
	Host   string
	Scheme string
	Class  string  // e.g. "Shipment"
	Alpha  float32 // hybrid keyword/vector balance
}

// WeaviateSearcher implements Searcher over a weaviate hybrid index.
type WeaviateSearcher struct {
	client *weaviate.Client
	cfg    WeaviateConfig
}

// NewWeaviateSearcher creates a searcher.
func NewWeaviateSearcher(cfg WeaviateConfig) (*WeaviateSearcher, error) {
	if cfg.Class == "" {
		cfg.Class = "Shipment"
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	client, err := weaviate.NewClient(weaviate.Config{Host: cfg.Host, Scheme: cfg.Scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}
	return &WeaviateSearcher{client: client, cfg: cfg}, nil
}

// Search issues the filtered hybrid query and returns ranked hits projected
// to the allow-listed fields.
func (s *WeaviateSearcher) Search(ctx context.Context, q Query) ([]models.SearchHit, error) {
	if len(q.ConsigneeCodes) == 0 {
		return nil, fmt.Errorf("refusing unscoped search: no consignee codes")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	where, err := buildWhere(q)
	if err != nil {
		return nil, err
	}

	fields := make([]graphql.Field, 0, len(AllowedFields)+1)
	for _, f := range AllowedFields {
		fields = append(fields, graphql.Field{Name: f})
	}
	fields = append(fields, graphql.Field{
		Name:   "_additional",
		Fields: []graphql.Field{{Name: "id"}, {Name: "score"}},
	})

	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(q.Text).
		WithAlpha(s.cfg.Alpha)

	resp, err := s.client.GraphQL().Get().
		WithClassName(s.cfg.Class).
		WithHybrid(hybrid).
		WithWhere(where).
		WithFields(fields...).
		WithLimit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("hybrid search failed: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("hybrid search returned error: %s", resp.Errors[0].Message)
	}

	hits := parseHits(resp.Data, s.cfg.Class)
	slog.Info("Hybrid search complete", "query", q.Text, "hits", len(hits))
	return hits, nil
}

// buildWhere constructs the mandatory scope filter plus any identifier and
// absolute-date constraints.
func buildWhere(q Query) (*filters.WhereBuilder, error) {
	operands := []*filters.WhereBuilder{
		filters.Where().
			WithPath([]string{scopeField}).
			WithOperator(filters.ContainsAny).
			WithValueText(q.ConsigneeCodes...),
	}

	if len(q.ContainerNumbers) > 0 {
		operands = append(operands, filters.Where().
			WithPath([]string{"container_number"}).
			WithOperator(filters.ContainsAny).
			WithValueText(q.ContainerNumbers...))
	}
	if len(q.PONumbers) > 0 {
		operands = append(operands, filters.Where().
			WithPath([]string{"po_numbers"}).
			WithOperator(filters.ContainsAny).
			WithValueText(q.PONumbers...))
	}
	if q.DateRange != nil {
		if q.DateRange.From != "" {
			from, err := time.Parse("2006-01-02", q.DateRange.From)
			if err != nil {
				return nil, fmt.Errorf("date range start must be an absolute date: %w", err)
			}
			operands = append(operands, filters.Where().
				WithPath([]string{"best_eta_dp_date"}).
				WithOperator(filters.GreaterThanEqual).
				WithValueDate(from))
		}
		if q.DateRange.To != "" {
			to, err := time.Parse("2006-01-02", q.DateRange.To)
			if err != nil {
				return nil, fmt.Errorf("date range end must be an absolute date: %w", err)
			}
			operands = append(operands, filters.Where().
				WithPath([]string{"best_eta_dp_date"}).
				WithOperator(filters.LessThanEqual).
				WithValueDate(to))
		}
	}

	if len(operands) == 1 {
		return operands[0], nil
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands), nil
}

// parseHits walks the GraphQL response into SearchHits restricted to the
// allow-listed projection.
func parseHits(data map[string]wmodels.JSONObject, class string) []models.SearchHit {
	get, ok := data["Get"].(map[string]any)
	if !ok {
		return nil
	}
	items, ok := get[class].([]any)
	if !ok {
		return nil
	}

	allowed := make(map[string]bool, len(AllowedFields))
	for _, f := range AllowedFields {
		allowed[f] = true
	}

	hits := make([]models.SearchHit, 0, len(items))
	for rank, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		hit := models.SearchHit{Rank: rank + 1, Fields: make(map[string]string)}
		for name, val := range obj {
			if allowed[name] && val != nil {
				hit.Fields[name] = fmt.Sprintf("%v", val)
			}
		}
		if additional, ok := obj["_additional"].(map[string]any); ok {
			if id, ok := additional["id"].(string); ok {
				hit.DocID = id
			}
			switch score := additional["score"].(type) {
			case string:
				if f, err := strconv.ParseFloat(score, 64); err == nil {
					hit.Score = f
				}
			case float64:
				hit.Score = score
			}
		}
		hits = append(hits, hit)
	}
	return hits
}
