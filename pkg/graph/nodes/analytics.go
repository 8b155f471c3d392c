package nodes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mcs-logistics/shipmentqa/pkg/analytics"
	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// AnalyticsPlanner asks the model for a typed query plan over the live
// dataset schema. Plan-shape failures feed back into a bounded replan loop;
// a question with nothing to aggregate is handed to clarification instead
// of being forced into a plan.
type AnalyticsPlanner struct {
	discovery     *analytics.Discovery
	planner       *analytics.Planner
	replanCeiling int
}

func (p *AnalyticsPlanner) Name() string { return graph.NodeAnalyticsPlanner }

func (p *AnalyticsPlanner) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	snap, err := p.discovery.Snapshot(ctx)
	if err != nil {
		slog.Error("schema discovery failed", "conversation_id", state.ConversationID, "error", err)
		state.AddNotice("the shipment dataset is temporarily unavailable")
		state.Answer = "I can't run analytics right now because the shipment dataset is unavailable. Please try again shortly."
		return graph.OutcomeDone, nil
	}

	plan, usage, err := p.planner.Plan(ctx, state.CanonicalQuestion, state.Entities, snap, state.PlanError)
	addUsage(state, usage)
	if err != nil {
		return p.handlePlanError(state, err)
	}

	state.Plan = plan
	return graph.OutcomeNext, nil
}

func (p *AnalyticsPlanner) handlePlanError(state *models.ConversationState, err error) (graph.Outcome, error) {
	if errors.Is(err, analytics.ErrNoAggregableDimension) {
		state.PlanError = err.Error()
		return graph.OutcomeClarify, nil
	}

	var mismatch *analytics.SchemaMismatchError
	var ambiguous *analytics.AmbiguousColumnError
	var invalid *analytics.PlanValidationError
	if errors.As(err, &mismatch) || errors.As(err, &ambiguous) || errors.As(err, &invalid) {
		if state.ReplanCount < p.replanCeiling {
			state.ReplanCount++
			state.PlanError = err.Error()
			slog.Info("replanning analytics query",
				"conversation_id", state.ConversationID,
				"attempt", state.ReplanCount,
				"reason", err.Error(),
			)
			return graph.OutcomeReplan, nil
		}
		state.AddNotice("the question could not be translated into a valid dataset query")
		state.Answer = "I couldn't turn that into a query over the shipment data. Try naming the exact field, for example \"count shipments by discharge port\"."
		return graph.OutcomeDone, nil
	}

	slog.Error("analytics planning failed", "conversation_id", state.ConversationID, "error", err)
	state.AddNotice("analytics planning is temporarily unavailable")
	state.Answer = "I couldn't work out how to answer that from the shipment data. Please try rephrasing."
	return graph.OutcomeDone, nil
}

// ExecutorNode runs the typed plan through the scoped executor. A schema
// mismatch discovered at execution time (the dataset rolled over since
// planning) goes back to the planner once; resource-limit errors terminate
// with an explanatory notice.
type ExecutorNode struct {
	executor      *analytics.Executor
	replanCeiling int
}

func (x *ExecutorNode) Name() string { return graph.NodeExecutor }

func (x *ExecutorNode) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	if state.Plan == nil {
		return "", fmt.Errorf("executor reached without a query plan")
	}

	result, err := x.executor.Execute(ctx, state.Plan, state.Scope)
	if err != nil {
		var mismatch *analytics.SchemaMismatchError
		switch {
		case errors.As(err, &mismatch):
			if state.ReplanCount < x.replanCeiling {
				state.ReplanCount++
				state.PlanError = err.Error()
				return graph.OutcomeReplan, nil
			}
			state.AddNotice("the dataset schema changed while answering; please retry")
			state.Answer = "The shipment dataset changed while I was answering. Please ask again."
		case errors.Is(err, analytics.ErrExecutionTimeout):
			state.AddNotice("the analytics query exceeded its time budget")
			state.Answer = "That query was too heavy to finish in time. Try narrowing it, for example with a date range."
		case errors.Is(err, analytics.ErrRowLimitExceeded):
			state.AddNotice("the query produced too many groups")
			state.Answer = "That breakdown has too many distinct groups to report. Try grouping by a coarser field."
		default:
			slog.Error("analytics execution failed", "conversation_id", state.ConversationID, "error", err)
			state.AddNotice("analytics execution failed")
			state.Answer = "Something went wrong running that query. Please try again."
		}
		return graph.OutcomeDone, nil
	}

	state.ExecResult = result
	if result.Truncated {
		state.AddNotice(fmt.Sprintf("results were truncated to %d rows", result.RowCount))
	}
	state.Table = &models.Table{
		Title:   "Analytics result",
		Columns: result.Columns,
		Rows:    result.Rows,
	}
	state.Answer = summarizeResult(result)
	return graph.OutcomeNext, nil
}

// summarizeResult produces the text accompanying an analytics table. A
// single-cell result is stated inline; anything larger defers to the table.
func summarizeResult(result *models.ExecutionResult) string {
	if result.RowCount == 0 {
		return "No shipments in your scope match that query."
	}
	if result.RowCount == 1 && len(result.Columns) == 1 {
		col := result.Columns[0]
		return fmt.Sprintf("%s: %v", humanizeColumn(col), result.Rows[0][col])
	}
	return fmt.Sprintf("Here's the breakdown (%d rows); details are in the table below.", result.RowCount)
}

func humanizeColumn(col string) string {
	return strings.ReplaceAll(col, "_", " ")
}

// ChartNode attaches a declarative chart spec when the question asked for
// one and the feature flag allows it. It never fails the turn; an
// unchartable result simply ships without a chart.
type ChartNode struct {
	enabled bool
}

func (c *ChartNode) Name() string { return graph.NodeChart }

func (c *ChartNode) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	if !c.enabled || state.ExecResult == nil {
		return graph.OutcomeDone, nil
	}

	intent := analytics.ClassifyChartIntent(state.CanonicalQuestion)
	spec := analytics.BuildChartSpec(state.ExecResult, intent)
	if spec != nil && spec.Kind != models.ChartNone {
		state.Chart = spec
	} else if intent.Wanted {
		state.AddNotice("this result can't be charted; showing it as a table instead")
	}
	return graph.OutcomeDone, nil
}
