package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/llm"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
	"github.com/mcs-logistics/shipmentqa/pkg/retrieval"
)

// SearchPlanner turns the canonical question and extracted entities into a
// retrieval query. On a judge-driven retry it widens the net instead of
// repeating the identical query.
type SearchPlanner struct {
	limit int
}

func (p *SearchPlanner) Name() string { return graph.NodeSearchPlanner }

func (p *SearchPlanner) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	plan := &models.SearchPlan{
		Text:             state.CanonicalQuestion,
		ContainerNumbers: state.Entities.ContainerNumbers,
		PONumbers:        state.Entities.PONumbers,
		DateRange:        state.Entities.DateRange,
		Limit:            p.limit,
	}

	// Refinement pass: the previous answer failed grounding. Widen the hit
	// budget and drop the date filter, which is the most common reason for
	// an empty or thin evidence set.
	if state.RetryCount > 0 {
		plan.Limit = p.limit * (state.RetryCount + 1)
		plan.DateRange = nil
		if state.JudgeReason != "" {
			plan.Text = state.CanonicalQuestion + " " + state.JudgeReason
		}
	}

	state.SearchPlan = plan
	return graph.OutcomeNext, nil
}

// Retriever executes the search plan against the hybrid index. The scope
// filter is attached here, next to the one call that leaves the process.
type Retriever struct {
	searcher retrieval.Searcher
}

func (r *Retriever) Name() string { return graph.NodeRetriever }

func (r *Retriever) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	plan := state.SearchPlan
	if plan == nil {
		return "", fmt.Errorf("retriever reached without a search plan")
	}

	hits, err := r.searcher.Search(ctx, retrieval.Query{
		Text:             plan.Text,
		ConsigneeCodes:   state.Scope.ConsigneeCodes,
		ContainerNumbers: plan.ContainerNumbers,
		PONumbers:        plan.PONumbers,
		DateRange:        plan.DateRange,
		Limit:            plan.Limit,
	})
	if err != nil {
		slog.Error("search failed", "conversation_id", state.ConversationID, "error", err)
		state.AddNotice("shipment search is temporarily unavailable")
		state.Evidence = nil
		return graph.OutcomeNext, nil
	}

	state.Evidence = hits
	return graph.OutcomeNext, nil
}

const answerSystemPrompt = `You answer a question about ocean shipments using ONLY the evidence records provided.

Rules:
- Every fact in your answer must come from the evidence. Never invent values.
- Dates in the evidence are authoritative; repeat them exactly as given.
- If the evidence does not answer the question, say so plainly and suggest how to narrow the question.
- Be concise. No preamble.`

// AnswerComposer writes the user-facing answer for the search path, grounded
// on the retrieved evidence, and builds a table view of the hits.
type AnswerComposer struct {
	llm llm.Client
}

func (a *AnswerComposer) Name() string { return graph.NodeAnswer }

func (a *AnswerComposer) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	if len(state.Evidence) == 0 {
		state.Answer = "I couldn't find any shipments matching that. Try a container number, a PO number, or a broader date range."
		state.Table = nil
		return graph.OutcomeNext, nil
	}

	state.Table = hitsTable(state.Evidence)

	resp, err := a.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: answerSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Question:\n%s\n\nEvidence records:\n%s", state.CanonicalQuestion, renderHits(state.Evidence))},
		},
		Temperature: 0,
	})
	if err != nil {
		slog.Warn("answer composition fallback", "conversation_id", state.ConversationID, "error", err)
		state.Answer = fmt.Sprintf("I found %d matching shipment(s); the details are in the table below.", len(state.Evidence))
		return graph.OutcomeNext, nil
	}
	addUsage(state, resp.Usage)
	state.Answer = strings.TrimSpace(resp.Content)
	return graph.OutcomeNext, nil
}

// renderHits lays evidence out as one block per hit, field per line, in a
// fixed field order so prompts are reproducible.
func renderHits(hits []models.SearchHit) string {
	var b strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&b, "[%d]\n", h.Rank)
		keys := make([]string, 0, len(h.Fields))
		for k := range h.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, h.Fields[k])
		}
	}
	return b.String()
}

// hitsTable projects the evidence into a tabular view, keeping only columns
// that at least one hit populates.
func hitsTable(hits []models.SearchHit) *models.Table {
	present := map[string]bool{}
	for _, h := range hits {
		for k := range h.Fields {
			present[k] = true
		}
	}
	var columns []string
	for _, f := range retrieval.AllowedFields {
		if present[f] {
			columns = append(columns, f)
		}
	}
	rows := make([]map[string]any, 0, len(hits))
	for _, h := range hits {
		row := make(map[string]any, len(columns))
		for _, c := range columns {
			row[c] = h.Fields[c]
		}
		rows = append(rows, row)
	}
	return &models.Table{Title: "Matching shipments", Columns: columns, Rows: rows}
}
