// Package models contains request/response models and business domain types.
package models

import (
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Intent is the classified intent of a canonical question.
type Intent string

const (
	IntentUnknown       Intent = ""
	IntentSearch        Intent = "search"
	IntentAnalytics     Intent = "analytics"
	IntentClarification Intent = "clarification"
	IntentStaticInfo    Intent = "static-info"
	IntentEnd           Intent = "end"
)

// Turn is a single message in a conversation's history.
type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// DateRange is an absolute date window. Relative date arithmetic is resolved
// before this point; only ISO date literals cross component boundaries.
type DateRange struct {
	From string `json:"from,omitempty"` // YYYY-MM-DD
	To   string `json:"to,omitempty"`   // YYYY-MM-DD
}

// Entities holds structured values extracted from the canonical question.
type Entities struct {
	ContainerNumbers []string   `json:"container_numbers,omitempty"`
	PONumbers        []string   `json:"po_numbers,omitempty"`
	BookingNumbers   []string   `json:"booking_numbers,omitempty"`
	DateRange        *DateRange `json:"date_range,omitempty"`
}

// HasIdentifiers reports whether any point-lookup identifier was extracted.
func (e Entities) HasIdentifiers() bool {
	return len(e.ContainerNumbers) > 0 || len(e.PONumbers) > 0 || len(e.BookingNumbers) > 0
}

// PendingChoice records a numbered clarification offered to the user,
// so the next turn can resolve a "1" or "2" reply.
type PendingChoice struct {
	// Option 1: interpretation that keeps prior context / analytics scope.
	Contextual string `json:"contextual"`
	// Option 2: interpretation that starts fresh / targets specific IDs.
	Fresh string `json:"fresh"`
}

// TokenUsage accumulates LLM token consumption across a turn.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add accumulates another usage sample.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// ConversationState is the per-conversation state threaded through the
// orchestration graph. It is owned by exactly one conversation and mutated
// only by the node currently executing. Persisted in the session store
// between turns; turn-scoped fields are reset at the start of each turn.
type ConversationState struct {
	ConversationID string `json:"conversation_id"`
	History        []Turn `json:"history"`
	Scope          Scope  `json:"scope"`

	// Turn-scoped fields, reset by the runtime on each RunTurn.
	RawQuestion       string      `json:"raw_question"`
	CanonicalQuestion string      `json:"canonical_question"`
	Entities          Entities    `json:"entities"`
	Intent            Intent      `json:"intent"`
	RoutePath         []string    `json:"route_path"`
	RetryCount        int         `json:"retry_count"`
	ReplanCount       int         `json:"replan_count"`
	JudgeReason       string      `json:"judge_reason,omitempty"`
	PlanError         string      `json:"plan_error,omitempty"`
	Answer            string      `json:"answer"`
	Notices           []string    `json:"notices,omitempty"`
	Evidence          []SearchHit `json:"evidence,omitempty"`
	Table             *Table      `json:"table,omitempty"`
	Chart             *ChartSpec  `json:"chart,omitempty"`
	Usage             TokenUsage  `json:"usage"`

	// Cross-turn fields.
	PendingChoice *PendingChoice `json:"pending_choice,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	// Turn-scoped working set, never persisted beyond the response.
	SearchPlan *SearchPlan      `json:"-"`
	Plan       *QueryPlan       `json:"-"`
	ExecResult *ExecutionResult `json:"-"`
}

// SearchPlan holds the parameters the search planner prepared for the
// retriever. The scope filter is added by the retriever itself; it is not
// part of the plan and cannot be omitted.
type SearchPlan struct {
	Text             string     `json:"text"`
	ContainerNumbers []string   `json:"container_numbers,omitempty"`
	PONumbers        []string   `json:"po_numbers,omitempty"`
	DateRange        *DateRange `json:"date_range,omitempty"`
	Limit            int        `json:"limit"`
}

// BeginTurn resets turn-scoped fields and records the incoming user text.
func (s *ConversationState) BeginTurn(userText string, now time.Time) {
	s.RawQuestion = userText
	s.CanonicalQuestion = ""
	s.Entities = Entities{}
	s.Intent = IntentUnknown
	s.RoutePath = nil
	s.RetryCount = 0
	s.ReplanCount = 0
	s.JudgeReason = ""
	s.PlanError = ""
	s.Answer = ""
	s.Notices = nil
	s.Evidence = nil
	s.Table = nil
	s.Chart = nil
	s.Usage = TokenUsage{}
	s.SearchPlan = nil
	s.Plan = nil
	s.ExecResult = nil
	s.History = append(s.History, Turn{Role: RoleUser, Text: userText, Timestamp: now})
	s.UpdatedAt = now
}

// EndTurn records the assistant's answer in history.
func (s *ConversationState) EndTurn(now time.Time) {
	if s.Answer != "" {
		s.History = append(s.History, Turn{Role: RoleAssistant, Text: s.Answer, Timestamp: now})
	}
	s.UpdatedAt = now
}

// AddNotice appends a user-visible notice.
func (s *ConversationState) AddNotice(notice string) {
	s.Notices = append(s.Notices, notice)
}

// RecentHistory returns up to n most recent turns.
func (s *ConversationState) RecentHistory(n int) []Turn {
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}
