package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginTurn_ResetsTurnScope(t *testing.T) {
	now := time.Now()
	state := &ConversationState{
		ConversationID: "c1",
		Intent:         IntentSearch,
		RoutePath:      []string{"normalizer"},
		RetryCount:     2,
		Answer:         "old answer",
		Notices:        []string{"old notice"},
		Evidence:       []SearchHit{{DocID: "d1"}},
		Usage:          TokenUsage{TotalTokens: 99},
		SearchPlan:     &SearchPlan{Text: "old"},
		PendingChoice:  &PendingChoice{Contextual: "a", Fresh: "b"},
	}

	state.BeginTurn("where is MSCU1234567?", now)

	assert.Equal(t, "where is MSCU1234567?", state.RawQuestion)
	assert.Equal(t, IntentUnknown, state.Intent)
	assert.Empty(t, state.RoutePath)
	assert.Zero(t, state.RetryCount)
	assert.Empty(t, state.Answer)
	assert.Empty(t, state.Notices)
	assert.Empty(t, state.Evidence)
	assert.Zero(t, state.Usage.TotalTokens)
	assert.Nil(t, state.SearchPlan)

	// Cross-turn fields survive the reset.
	assert.NotNil(t, state.PendingChoice)

	require.Len(t, state.History, 1)
	assert.Equal(t, RoleUser, state.History[0].Role)
	assert.Equal(t, now, state.History[0].Timestamp)
}

func TestEndTurn_RecordsAnswer(t *testing.T) {
	now := time.Now()
	state := &ConversationState{}
	state.BeginTurn("hello", now)

	state.Answer = "hi there"
	state.EndTurn(now.Add(time.Second))

	require.Len(t, state.History, 2)
	assert.Equal(t, RoleAssistant, state.History[1].Role)
	assert.Equal(t, "hi there", state.History[1].Text)
}

func TestEndTurn_SkipsEmptyAnswer(t *testing.T) {
	state := &ConversationState{}
	state.BeginTurn("hello", time.Now())

	state.EndTurn(time.Now())
	assert.Len(t, state.History, 1)
}

func TestRecentHistory(t *testing.T) {
	state := &ConversationState{}
	for i := 0; i < 5; i++ {
		state.History = append(state.History, Turn{Role: RoleUser})
	}

	assert.Len(t, state.RecentHistory(3), 3)
	assert.Len(t, state.RecentHistory(10), 5)
	assert.Empty(t, state.RecentHistory(0))
}

func TestTokenUsageAdd(t *testing.T) {
	var u TokenUsage
	u.Add(TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	u.Add(TokenUsage{PromptTokens: 1, CompletionTokens: 2, TotalTokens: 3})

	assert.Equal(t, TokenUsage{PromptTokens: 11, CompletionTokens: 7, TotalTokens: 18}, u)
}

func TestConversationStateJSON_OmitsWorkingSet(t *testing.T) {
	state := &ConversationState{
		ConversationID: "c1",
		SearchPlan:     &SearchPlan{Text: "q"},
		Plan:           &QueryPlan{GroupBy: []string{"discharge_port"}},
		ExecResult:     &ExecutionResult{RowCount: 1},
	}

	raw, err := json.Marshal(state)
	require.NoError(t, err)

	var decoded ConversationState
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded.SearchPlan)
	assert.Nil(t, decoded.Plan)
	assert.Nil(t, decoded.ExecResult)
}

func TestEntitiesHasIdentifiers(t *testing.T) {
	assert.False(t, Entities{}.HasIdentifiers())
	assert.False(t, Entities{DateRange: &DateRange{From: "2026-01-01"}}.HasIdentifiers())
	assert.True(t, Entities{ContainerNumbers: []string{"MSCU1234567"}}.HasIdentifiers())
	assert.True(t, Entities{PONumbers: []string{"1001"}}.HasIdentifiers())
}

func TestPredicateColumns(t *testing.T) {
	p := Predicate{All: []Predicate{
		{Column: "discharge_port", Op: OpEq, Value: "Rotterdam"},
		{Any: []Predicate{
			{Column: "dp_delayed_dur", Op: OpGt, Value: 0},
			{Column: "shipment_status", Op: OpEq, Value: "DELIVERED"},
		}},
	}}

	assert.ElementsMatch(t,
		[]string{"discharge_port", "dp_delayed_dur", "shipment_status"},
		p.Columns())
	assert.False(t, p.Leaf())
	assert.True(t, Predicate{Column: "teus", Op: OpGt, Value: 1}.Leaf())
}

func TestQueryPlanReferencedColumns(t *testing.T) {
	plan := &QueryPlan{
		TargetColumns: []string{"container_number"},
		Filter:        &Predicate{Column: "dp_delayed_dur", Op: OpGt, Value: 0},
		GroupBy:       []string{"discharge_port"},
		Aggregates:    []AggregateExpr{{Func: AggCount, As: "n"}, {Func: AggSum, Column: "teus", As: "total"}},
		Sort:          []SortKey{{Column: "discharge_port"}},
	}

	cols := plan.ReferencedColumns()
	assert.ElementsMatch(t,
		[]string{"container_number", "dp_delayed_dur", "discharge_port", "teus"},
		cols)
	assert.True(t, plan.Aggregated())
}
