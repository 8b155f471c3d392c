package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mcs-logistics/shipmentqa/pkg/domainref"
	"github.com/mcs-logistics/shipmentqa/pkg/llm"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// Planner turns a canonical analytics question into a validated QueryPlan.
// The language model proposes the plan as JSON data; all ambiguous date and
// column references are resolved deterministically here, against the domain
// reference, never left to generation.
type Planner struct {
	client llm.Client
	ref    *domainref.Reference
}

// NewPlanner creates a Planner.
func NewPlanner(client llm.Client, ref *domainref.Reference) *Planner {
	return &Planner{client: client, ref: ref}
}

var jsonFenceRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.*?)```")

// Plan generates and validates a QueryPlan for the question. feedback
// carries the failure reason of a previous attempt during the bounded
// replan; empty on the first attempt.
func (p *Planner) Plan(ctx context.Context, question string, entities models.Entities, snap *SchemaSnapshot, feedback string) (*models.QueryPlan, llm.Usage, error) {
	system := p.buildSystemPrompt(snap)

	user := "Question: " + question
	if entities.HasIdentifiers() {
		user += fmt.Sprintf("\nExtracted identifiers: containers=%v po=%v", entities.ContainerNumbers, entities.PONumbers)
	}
	if entities.DateRange != nil {
		user += fmt.Sprintf("\nDate window: %s to %s", entities.DateRange.From, entities.DateRange.To)
	}
	if feedback != "" {
		user += "\n\nYour previous plan failed: " + feedback + "\nReturn a corrected plan."
	}

	resp, err := p.client.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: user},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, llm.Usage{}, fmt.Errorf("plan generation failed: %w", err)
	}

	plan, err := p.parsePlan(resp.Content)
	if err != nil {
		return nil, resp.Usage, err
	}
	if err := p.finalize(plan, snap); err != nil {
		return nil, resp.Usage, err
	}

	slog.Info("Analytics plan validated",
		"columns", plan.ReferencedColumns(),
		"aggregated", plan.Aggregated(),
		"schema_version", snap.Version)
	return plan, resp.Usage, nil
}

func (p *Planner) buildSystemPrompt(snap *SchemaSnapshot) string {
	var b strings.Builder
	b.WriteString(`You are a logistics data analyst. Translate the user's question into a JSON query plan over the shipment dataset. Respond with ONLY the plan inside a ` + "```json```" + ` block.

The plan shape:
{
  "target_columns": ["col", ...],          // for listing questions
  "filter": {"all": [{"column": "c", "op": "gt", "value": 0}]},
  "group_by": ["col"],
  "aggregates": [{"func": "count", "as": "total"}],
  "sort": [{"column": "c", "desc": true}],
  "row_limit": 100
}

Allowed filter ops: eq, ne, gt, gte, lt, lte, contains, icontains, in, isnull, notnull.
Allowed aggregate funcs: count, count_distinct, sum, avg, min, max.
Predicate nodes are either a comparison or an "all"/"any" list; nothing else is executed.

Where a date column is needed, use the logical date roles (dp_eta, dp_ata, fd_eta) as column names; they are resolved to physical columns deterministically.
For "how many"/"total" questions use a count or sum aggregate.
Never include internal columns in target_columns.
`)
	b.WriteString("\n")
	b.WriteString(p.ref.PromptSection(snap.Columns))
	b.WriteString("\n## Live Schema\nColumns: ")
	b.WriteString(strings.Join(snap.Columns, ", "))
	b.WriteString("\n\nSample rows:\n")
	b.WriteString(renderSample(snap))
	return b.String()
}

func renderSample(snap *SchemaSnapshot) string {
	if snap.Sample == nil || snap.Sample.Empty() {
		return "(no sample available)"
	}
	var b strings.Builder
	b.WriteString(strings.Join(snap.Sample.Columns, " | "))
	b.WriteString("\n")
	for _, row := range snap.Sample.Rows {
		vals := make([]string, 0, len(snap.Sample.Columns))
		for _, col := range snap.Sample.Columns {
			vals = append(vals, fmt.Sprintf("%v", row[col]))
		}
		b.WriteString(strings.Join(vals, " | "))
		b.WriteString("\n")
	}
	return b.String()
}

func (p *Planner) parsePlan(content string) (*models.QueryPlan, error) {
	raw := content
	if m := jsonFenceRe.FindStringSubmatch(content); m != nil {
		raw = m[1]
	}
	raw = strings.TrimSpace(raw)

	var plan models.QueryPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, &PlanValidationError{Detail: fmt.Sprintf("plan is not valid JSON: %v", err)}
	}
	return &plan, nil
}

// finalize resolves logical date roles against the snapshot, then validates
// the plan: allow-listed primitives only, every column present in the
// discovered schema, and at least one aggregable or listable dimension.
func (p *Planner) finalize(plan *models.QueryPlan, snap *SchemaSnapshot) error {
	if len(plan.Aggregates) == 0 && len(plan.TargetColumns) == 0 {
		return ErrNoAggregableDimension
	}

	if err := p.resolveDateRoles(plan, snap); err != nil {
		return err
	}
	if err := validatePrimitives(plan); err != nil {
		return err
	}

	var missing []string
	for _, col := range plan.ReferencedColumns() {
		if !snap.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaMismatchError{Columns: missing}
	}
	return nil
}

func (p *Planner) resolveDateRoles(plan *models.QueryPlan, snap *SchemaSnapshot) error {
	resolved := make(map[string]string)

	resolve := func(name string) (string, error) {
		if !p.ref.DateRole(name) {
			return name, nil
		}
		if col, ok := resolved[name]; ok {
			return col, nil
		}
		col, err := p.ref.ResolveDateRole(name, snap.ColumnSet())
		if err != nil {
			return "", &AmbiguousColumnError{Role: name, Reason: err.Error()}
		}
		resolved[name] = col
		return col, nil
	}

	for i, col := range plan.TargetColumns {
		physical, err := resolve(col)
		if err != nil {
			return err
		}
		plan.TargetColumns[i] = physical
	}
	for i, col := range plan.GroupBy {
		physical, err := resolve(col)
		if err != nil {
			return err
		}
		plan.GroupBy[i] = physical
	}
	for i := range plan.Aggregates {
		physical, err := resolve(plan.Aggregates[i].Column)
		if err != nil {
			return err
		}
		plan.Aggregates[i].Column = physical
	}
	for i := range plan.Sort {
		physical, err := resolve(plan.Sort[i].Column)
		if err != nil {
			return err
		}
		plan.Sort[i].Column = physical
	}
	if plan.Filter != nil {
		if err := resolvePredicateColumns(plan.Filter, resolve); err != nil {
			return err
		}
	}

	if len(resolved) > 0 {
		if plan.DatePolicyColumns == nil {
			plan.DatePolicyColumns = make(map[string]string, len(resolved))
		}
		for role, col := range resolved {
			plan.DatePolicyColumns[role] = col
		}
	}
	return nil
}

func resolvePredicateColumns(p *models.Predicate, resolve func(string) (string, error)) error {
	if p.Leaf() {
		if p.Column == "" {
			return nil
		}
		physical, err := resolve(p.Column)
		if err != nil {
			return err
		}
		p.Column = physical
		return nil
	}
	for i := range p.All {
		if err := resolvePredicateColumns(&p.All[i], resolve); err != nil {
			return err
		}
	}
	for i := range p.Any {
		if err := resolvePredicateColumns(&p.Any[i], resolve); err != nil {
			return err
		}
	}
	return nil
}
