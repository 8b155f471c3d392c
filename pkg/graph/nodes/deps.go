// Package nodes contains the node implementations of the orchestration
// machine. Each node is a small struct around shared dependencies; all
// conversation data flows through the ConversationState, never through
// node fields.
package nodes

import (
	"regexp"
	"strings"

	"github.com/mcs-logistics/shipmentqa/pkg/analytics"
	"github.com/mcs-logistics/shipmentqa/pkg/domainref"
	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/llm"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
	"github.com/mcs-logistics/shipmentqa/pkg/retrieval"
)

const (
	defaultJudgeRetryCeiling = 2
	defaultReplanCeiling     = 1
	defaultSearchLimit       = 10
)

// Deps bundles the capabilities the nodes draw on.
type Deps struct {
	LLM       llm.Client
	Searcher  retrieval.Searcher
	Discovery *analytics.Discovery
	Planner   *analytics.Planner
	Executor  *analytics.Executor
	Ref       *domainref.Reference

	// ChartEnabled gates chart spec generation globally.
	ChartEnabled bool

	// JudgeRetryCeiling bounds search refinement loops per turn.
	JudgeRetryCeiling int
	// ReplanCeiling bounds analytics repair loops per turn.
	ReplanCeiling int
	// SearchLimit is the default hit count requested from the searcher.
	SearchLimit int
}

func (d *Deps) applyDefaults() {
	if d.JudgeRetryCeiling <= 0 {
		d.JudgeRetryCeiling = defaultJudgeRetryCeiling
	}
	if d.ReplanCeiling <= 0 {
		d.ReplanCeiling = defaultReplanCeiling
	}
	if d.SearchLimit <= 0 {
		d.SearchLimit = defaultSearchLimit
	}
}

// All constructs the full node set for graph.NewRuntime.
func All(d Deps) []graph.Node {
	d.applyDefaults()
	return []graph.Node{
		&Normalizer{llm: d.LLM},
		&Extractor{},
		&IntentClassifier{llm: d.LLM},
		&Router{},
		&SearchPlanner{limit: d.SearchLimit},
		&Retriever{searcher: d.Searcher},
		&AnswerComposer{llm: d.LLM},
		&Judge{retryCeiling: d.JudgeRetryCeiling},
		&AnalyticsPlanner{discovery: d.Discovery, planner: d.Planner, replanCeiling: d.ReplanCeiling},
		&ExecutorNode{executor: d.Executor, replanCeiling: d.ReplanCeiling},
		&ChartNode{enabled: d.ChartEnabled},
		&Clarification{llm: d.LLM},
		&StaticInfo{},
		&EndNode{},
	}
}

var (
	praiseRe   = regexp.MustCompile(`(?i)\b(thanks|thank you|thx|great|good|awesome|perfect|nice|excellent|well done|amazing|helpful|love it|ok|okay|got it|cool)\b`)
	farewellRe = regexp.MustCompile(`(?i)^\s*(bye|goodbye|bye bye|see you|exit|quit|close|end|end chat|stop|that'?s all|no more questions)[\s.!]*$`)
	questionRe = regexp.MustCompile(`(?i)[?]|\b(what|which|when|where|who|how|why|show|list|find|count|status|shipment|container|po|eta|delay|arriv)\b|\d`)
)

// isAcknowledgement reports whether text is a short praise or acknowledgement
// with no question content. "NO! you are working very good" is one; "good,
// now show delayed shipments" is not.
func isAcknowledgement(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if len(strings.Fields(trimmed)) > 10 {
		return false
	}
	return praiseRe.MatchString(trimmed) && !questionRe.MatchString(trimmed)
}

// isFarewell reports whether text is nothing but an explicit goodbye.
// Gratitude alone never counts as a farewell.
func isFarewell(text string) bool {
	return farewellRe.MatchString(text)
}

// addUsage folds a call's token usage into the turn total.
func addUsage(state *models.ConversationState, u llm.Usage) {
	state.Usage.Add(models.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	})
}

// historyForPrompt renders recent turns for inclusion in an LLM prompt.
func historyForPrompt(state *models.ConversationState, n int) string {
	turns := state.RecentHistory(n)
	if len(turns) == 0 {
		return "(no prior turns)"
	}
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
