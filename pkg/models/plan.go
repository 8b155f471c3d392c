package models

// FilterOp is an allow-listed predicate operator. The executor rejects any
// operator outside this set.
type FilterOp string

const (
	OpEq        FilterOp = "eq"
	OpNe        FilterOp = "ne"
	OpGt        FilterOp = "gt"
	OpGte       FilterOp = "gte"
	OpLt        FilterOp = "lt"
	OpLte       FilterOp = "lte"
	OpContains  FilterOp = "contains"
	OpIContains FilterOp = "icontains"
	OpIn        FilterOp = "in"
	OpIsNull    FilterOp = "isnull"
	OpNotNull   FilterOp = "notnull"
)

// AggFunc is an allow-listed aggregate function.
type AggFunc string

const (
	AggCount         AggFunc = "count"
	AggCountDistinct AggFunc = "count_distinct"
	AggSum           AggFunc = "sum"
	AggAvg           AggFunc = "avg"
	AggMin           AggFunc = "min"
	AggMax           AggFunc = "max"
)

// Predicate is a tree of column comparisons. It carries data only:
// column names, operators, and literal values, never executable expressions.
// Exactly one of All, Any, or (Column, Op) is populated per node.
type Predicate struct {
	All []Predicate `json:"all,omitempty"`
	Any []Predicate `json:"any,omitempty"`

	Column string   `json:"column,omitempty"`
	Op     FilterOp `json:"op,omitempty"`
	Value  any      `json:"value,omitempty"`
	Values []string `json:"values,omitempty"` // for OpIn
}

// Leaf reports whether this node is a single comparison.
func (p Predicate) Leaf() bool {
	return len(p.All) == 0 && len(p.Any) == 0
}

// Columns returns every column referenced anywhere in the predicate tree.
func (p Predicate) Columns() []string {
	var cols []string
	p.walk(func(leaf Predicate) {
		if leaf.Column != "" {
			cols = append(cols, leaf.Column)
		}
	})
	return cols
}

func (p Predicate) walk(fn func(leaf Predicate)) {
	if p.Leaf() {
		fn(p)
		return
	}
	for _, child := range p.All {
		child.walk(fn)
	}
	for _, child := range p.Any {
		child.walk(fn)
	}
}

// AggregateExpr is one aggregate output column.
type AggregateExpr struct {
	Func   AggFunc `json:"func"`
	Column string  `json:"column,omitempty"` // empty for count(*)
	As     string  `json:"as"`
}

// SortKey orders result rows by a column.
type SortKey struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// QueryPlan is a typed, validated aggregation query: data interpreted by a
// fixed allow-listed executor, never code. Every referenced column must
// appear in the current schema discovery snapshot or the plan is rejected
// before execution.
type QueryPlan struct {
	TargetColumns []string        `json:"target_columns,omitempty"`
	Filter        *Predicate      `json:"filter,omitempty"`
	GroupBy       []string        `json:"group_by,omitempty"`
	Aggregates    []AggregateExpr `json:"aggregates,omitempty"`
	Sort          []SortKey       `json:"sort,omitempty"`
	RowLimit      int             `json:"row_limit,omitempty"`

	// DatePolicyColumns maps each logical date role the planner resolved
	// (e.g. "dp_eta") to the physical column chosen by the domain
	// reference precedence list.
	DatePolicyColumns map[string]string `json:"date_policy_columns,omitempty"`
}

// ReferencedColumns returns every physical column the plan touches.
func (p *QueryPlan) ReferencedColumns() []string {
	seen := make(map[string]bool)
	var cols []string
	add := func(c string) {
		if c != "" && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	for _, c := range p.TargetColumns {
		add(c)
	}
	if p.Filter != nil {
		for _, c := range p.Filter.Columns() {
			add(c)
		}
	}
	for _, c := range p.GroupBy {
		add(c)
	}
	for _, a := range p.Aggregates {
		add(a.Column)
	}
	for _, s := range p.Sort {
		add(s.Column)
	}
	return cols
}

// Aggregated reports whether the plan produces aggregate output.
func (p *QueryPlan) Aggregated() bool {
	return len(p.Aggregates) > 0
}
