package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mcs-logistics/shipmentqa/pkg/dataset"
	"github.com/mcs-logistics/shipmentqa/pkg/domainref"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// scopeColumn carries the row-level-security codes in the dataset.
const scopeColumn = "consignee_codes"

// deadlineCheckStride bounds how often the row loops consult the clock.
const deadlineCheckStride = 1024

// displayDateFormat renders date columns for user-facing tables.
const displayDateFormat = "02-Jan-2006"

// ExecutorConfig holds the sandbox resource ceilings. They are enforced
// independently of the orchestration-level turn deadline.
type ExecutorConfig struct {
	Timeout  time.Duration // wall-clock ceiling per execution
	RowCap   int           // max result rows; beyond it the result is flagged truncated
	GroupCap int           // max distinct groups during aggregation
}

// Executor interprets typed QueryPlans over the columnar dataset. Only the
// fixed allow-listed filter/aggregate/sort primitives are available; plans
// are data, never code, so no filesystem, network, or process capability is
// reachable from plan evaluation. A scope predicate is always injected and
// cannot be expressed or removed by the plan.
type Executor struct {
	cfg  ExecutorConfig
	data *dataset.Manager
	ref  *domainref.Reference
}

// NewExecutor creates an Executor.
func NewExecutor(cfg ExecutorConfig, data *dataset.Manager, ref *domainref.Reference) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.RowCap <= 0 {
		cfg.RowCap = 500
	}
	if cfg.GroupCap <= 0 {
		cfg.GroupCap = 5000
	}
	return &Executor{cfg: cfg, data: data, ref: ref}
}

// Execute loads the referenced columns and runs the plan under the sandbox
// ceilings against the caller's scope.
func (e *Executor) Execute(ctx context.Context, plan *models.QueryPlan, scope models.Scope) (*models.ExecutionResult, error) {
	frame, err := e.data.Load(ctx, plan.ReferencedColumns())
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	return e.ExecuteFrame(ctx, frame, plan, scope)
}

// ExecuteFrame runs the plan against an already-materialized frame.
func (e *Executor) ExecuteFrame(ctx context.Context, frame *dataset.Frame, plan *models.QueryPlan, scope models.Scope) (*models.ExecutionResult, error) {
	start := time.Now()
	deadline := start.Add(e.cfg.Timeout)

	if err := validatePrimitives(plan); err != nil {
		return nil, err
	}

	// The planner validated against the discovery snapshot, but the dataset
	// can roll over between planning and execution. Reject rather than emit
	// phantom all-nil columns.
	if missing := missingColumns(frame, plan); len(missing) > 0 {
		return nil, &SchemaMismatchError{Columns: missing}
	}

	// Row-level security: the permitted-code predicate is applied first
	// and unconditionally. An empty scope yields an empty working set.
	working, err := e.applyScope(ctx, frame, scope, deadline)
	if err != nil {
		return nil, err
	}

	if plan.Filter != nil {
		working, err = e.applyFilter(ctx, working, plan.Filter, deadline)
		if err != nil {
			return nil, err
		}
	}

	var out []dataset.Row
	var outCols []string
	if plan.Aggregated() {
		out, outCols, err = e.aggregate(ctx, working, plan, deadline)
	} else {
		out, outCols, err = e.project(working, plan)
	}
	if err != nil {
		return nil, err
	}

	e.sortRows(out, plan.Sort)

	// The plan's own row limit is a deliberate top-N request, not truncation.
	// Only the sandbox cap flags the result as truncated.
	if plan.RowLimit > 0 && len(out) > plan.RowLimit {
		out = out[:plan.RowLimit]
	}
	truncated := false
	if len(out) > e.cfg.RowCap {
		out = out[:e.cfg.RowCap]
		truncated = true
	}

	result := &models.ExecutionResult{
		Columns:   outCols,
		Rows:      make([]map[string]any, 0, len(out)),
		RowCount:  len(out),
		Truncated: truncated,
		ElapsedMS: time.Since(start).Milliseconds(),
	}
	for _, row := range out {
		result.Rows = append(result.Rows, e.renderRow(row, outCols))
	}

	slog.Info("Analytics execution complete",
		"rows", result.RowCount,
		"truncated", result.Truncated,
		"elapsed_ms", result.ElapsedMS)
	return result, nil
}

func (e *Executor) applyScope(ctx context.Context, frame *dataset.Frame, scope models.Scope, deadline time.Time) ([]dataset.Row, error) {
	permitted := make(map[string]bool, len(scope.ConsigneeCodes))
	if scope.Permits() {
		for _, code := range scope.ConsigneeCodes {
			permitted[code] = true
		}
	}

	var kept []dataset.Row
	for i, row := range frame.Rows {
		if err := checkDeadline(ctx, i, deadline); err != nil {
			return nil, err
		}
		codes, _ := row[scopeColumn].([]string)
		for _, code := range codes {
			if permitted[code] {
				kept = append(kept, row)
				break
			}
		}
	}
	return kept, nil
}

func (e *Executor) applyFilter(ctx context.Context, rows []dataset.Row, pred *models.Predicate, deadline time.Time) ([]dataset.Row, error) {
	var kept []dataset.Row
	for i, row := range rows {
		if err := checkDeadline(ctx, i, deadline); err != nil {
			return nil, err
		}
		if evalPredicate(row, *pred) {
			kept = append(kept, row)
		}
	}
	return kept, nil
}

func (e *Executor) aggregate(ctx context.Context, rows []dataset.Row, plan *models.QueryPlan, deadline time.Time) ([]dataset.Row, []string, error) {
	type group struct {
		keys dataset.Row
		accs []*accumulator
	}

	groups := make(map[string]*group)
	var order []string

	for i, row := range rows {
		if err := checkDeadline(ctx, i, deadline); err != nil {
			return nil, nil, err
		}

		var keyParts []string
		for _, col := range plan.GroupBy {
			keyParts = append(keyParts, fmt.Sprintf("%v", row[col]))
		}
		key := strings.Join(keyParts, "\x1f")

		g, ok := groups[key]
		if !ok {
			if len(groups) >= e.cfg.GroupCap {
				return nil, nil, ErrRowLimitExceeded
			}
			g = &group{keys: make(dataset.Row, len(plan.GroupBy))}
			for _, col := range plan.GroupBy {
				g.keys[col] = row[col]
			}
			for _, agg := range plan.Aggregates {
				g.accs = append(g.accs, newAccumulator(agg))
			}
			groups[key] = g
			order = append(order, key)
		}
		for _, acc := range g.accs {
			acc.observe(row)
		}
	}

	cols := append([]string{}, plan.GroupBy...)
	for _, agg := range plan.Aggregates {
		cols = append(cols, agg.As)
	}

	out := make([]dataset.Row, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make(dataset.Row, len(cols))
		for _, col := range plan.GroupBy {
			row[col] = g.keys[col]
		}
		for _, acc := range g.accs {
			row[acc.spec.As] = acc.result()
		}
		out = append(out, row)
	}
	return out, cols, nil
}

func (e *Executor) project(rows []dataset.Row, plan *models.QueryPlan) ([]dataset.Row, []string, error) {
	cols := make([]string, 0, len(plan.TargetColumns))
	for _, col := range plan.TargetColumns {
		if col == scopeColumn || e.ref.IsInternal(col) {
			continue
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, nil, &PlanValidationError{Detail: "no output columns after removing internal columns"}
	}

	out := make([]dataset.Row, 0, len(rows))
	for _, row := range rows {
		projected := make(dataset.Row, len(cols))
		for _, col := range cols {
			projected[col] = row[col]
		}
		out = append(out, projected)
	}
	return out, cols, nil
}

func (e *Executor) sortRows(rows []dataset.Row, keys []models.SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			c := compareValues(rows[i][key.Column], rows[j][key.Column])
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// renderRow formats a row for user-facing output: date columns get the
// display format, other values pass through.
func (e *Executor) renderRow(row dataset.Row, cols []string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, col := range cols {
		val := row[col]
		if meta, ok := e.ref.Columns[col]; ok && meta.Type == "date" {
			if s, ok := val.(string); ok && s != "" {
				if t, err := time.Parse("2006-01-02", s); err == nil {
					out[col] = t.Format(displayDateFormat)
					continue
				}
			}
		}
		out[col] = val
	}
	return out
}

// missingColumns reports plan columns absent from the loaded frame.
func missingColumns(frame *dataset.Frame, plan *models.QueryPlan) []string {
	present := make(map[string]bool, len(frame.Columns))
	for _, col := range frame.Columns {
		present[col] = true
	}
	var missing []string
	for _, col := range plan.ReferencedColumns() {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

func checkDeadline(ctx context.Context, i int, deadline time.Time) error {
	if i%deadlineCheckStride != 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return ErrExecutionTimeout
	}
	if time.Now().After(deadline) {
		return ErrExecutionTimeout
	}
	return nil
}

// validatePrimitives rejects any operator or aggregate outside the fixed
// allow list. This is the executor's own guard; the planner validates too,
// but the sandbox does not trust its callers.
func validatePrimitives(plan *models.QueryPlan) error {
	if plan.Filter != nil {
		if err := validatePredicate(*plan.Filter); err != nil {
			return err
		}
	}
	for _, agg := range plan.Aggregates {
		switch agg.Func {
		case models.AggCount, models.AggCountDistinct, models.AggSum, models.AggAvg, models.AggMin, models.AggMax:
		default:
			return &PlanValidationError{Detail: fmt.Sprintf("aggregate function %q is not allowed", agg.Func)}
		}
		if agg.As == "" {
			return &PlanValidationError{Detail: "aggregate output name is required"}
		}
	}
	return nil
}

func validatePredicate(p models.Predicate) error {
	if !p.Leaf() {
		for _, child := range append(append([]models.Predicate{}, p.All...), p.Any...) {
			if err := validatePredicate(child); err != nil {
				return err
			}
		}
		return nil
	}
	switch p.Op {
	case models.OpEq, models.OpNe, models.OpGt, models.OpGte, models.OpLt, models.OpLte,
		models.OpContains, models.OpIContains, models.OpIn, models.OpIsNull, models.OpNotNull:
		return nil
	default:
		return &PlanValidationError{Detail: fmt.Sprintf("filter operator %q is not allowed", p.Op)}
	}
}

func evalPredicate(row dataset.Row, p models.Predicate) bool {
	if len(p.All) > 0 {
		for _, child := range p.All {
			if !evalPredicate(row, child) {
				return false
			}
		}
		return true
	}
	if len(p.Any) > 0 {
		for _, child := range p.Any {
			if evalPredicate(row, child) {
				return true
			}
		}
		return false
	}

	val := row[p.Column]
	switch p.Op {
	case models.OpIsNull:
		return isNull(val)
	case models.OpNotNull:
		return !isNull(val)
	case models.OpIn:
		for _, candidate := range p.Values {
			if stringEqual(val, candidate) {
				return true
			}
		}
		return false
	case models.OpContains, models.OpIContains:
		needle := fmt.Sprintf("%v", p.Value)
		fold := p.Op == models.OpIContains
		switch v := val.(type) {
		case []string:
			for _, item := range v {
				if containsString(item, needle, fold) {
					return true
				}
			}
			return false
		default:
			return containsString(fmt.Sprintf("%v", val), needle, fold)
		}
	case models.OpEq:
		return compareValues(val, p.Value) == 0 && !isNull(val)
	case models.OpNe:
		return compareValues(val, p.Value) != 0
	case models.OpGt:
		return !isNull(val) && compareValues(val, p.Value) > 0
	case models.OpGte:
		return !isNull(val) && compareValues(val, p.Value) >= 0
	case models.OpLt:
		return !isNull(val) && compareValues(val, p.Value) < 0
	case models.OpLte:
		return !isNull(val) && compareValues(val, p.Value) <= 0
	}
	return false
}

func isNull(val any) bool {
	if val == nil {
		return true
	}
	if s, ok := val.(string); ok {
		return s == ""
	}
	if list, ok := val.([]string); ok {
		return len(list) == 0
	}
	return false
}

func stringEqual(val any, candidate string) bool {
	if list, ok := val.([]string); ok {
		for _, item := range list {
			if item == candidate {
				return true
			}
		}
		return false
	}
	return fmt.Sprintf("%v", val) == candidate
}

func containsString(haystack, needle string, fold bool) bool {
	if fold {
		return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
	}
	return strings.Contains(haystack, needle)
}

// compareValues orders two values: numerically when both are numeric,
// chronologically when both parse as dates, lexically otherwise.
// Nil sorts before everything.
func compareValues(a, b any) int {
	if isNull(a) && isNull(b) {
		return 0
	}
	if isNull(a) {
		return -1
	}
	if isNull(b) {
		return 1
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	as := fmt.Sprintf("%v", a)
	bs := fmt.Sprintf("%v", b)
	at, aerr := time.Parse("2006-01-02", as)
	bt, berr := time.Parse("2006-01-02", bs)
	if aerr == nil && berr == nil {
		switch {
		case at.Before(bt):
			return -1
		case at.After(bt):
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(as, bs)
}

// toFloat converts numeric values, including numeric strings with commas
// and percent signs, the way the dataset stores weights and TEU counts.
func toFloat(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		return 0, false
	case string:
		raw := strings.TrimSuffix(strings.ReplaceAll(strings.TrimSpace(v), ",", ""), "%")
		if raw == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
