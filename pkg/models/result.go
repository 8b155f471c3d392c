package models

// ExecutionResult is the tabular output of a sandboxed analytics query.
// Turn-scoped; never persisted beyond the response.
type ExecutionResult struct {
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
	ElapsedMS int64            `json:"elapsed_ms"`
}

// Table is the user-facing tabular rendering of an ExecutionResult or of
// retrieval evidence.
type Table struct {
	Title   string           `json:"title"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// ChartKind is the declarative chart type.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
	ChartPie  ChartKind = "pie"
	ChartNone ChartKind = "none"
)

// ChartSpec describes a chart without executing any plotting code.
// Always derivable from an ExecutionResult without re-querying.
type ChartSpec struct {
	Kind          ChartKind        `json:"kind"`
	Title         string           `json:"title,omitempty"`
	CategoryField string           `json:"category_field,omitempty"`
	ValueFields   []string         `json:"value_fields,omitempty"`
	Series        []map[string]any `json:"series,omitempty"`
}

// SearchHit is one ranked result from the hybrid search index. Fields is
// restricted to the allow-listed projection configured at the search boundary.
type SearchHit struct {
	DocID  string            `json:"doc_id"`
	Score  float64           `json:"score"`
	Rank   int               `json:"rank"`
	Fields map[string]string `json:"fields"`
}

// Envelope is the stable response contract visible to callers. Its shape
// must not change across internal refactors.
type Envelope struct {
	ConversationID string         `json:"conversation_id"`
	Intent         string         `json:"intent"`
	Answer         string         `json:"answer"`
	Notices        []string       `json:"notices"`
	Evidence       []SearchHit    `json:"evidence"`
	Chart          *ChartSpec     `json:"chart"`
	Table          *Table         `json:"table"`
	Metadata       map[string]any `json:"metadata"`
}
