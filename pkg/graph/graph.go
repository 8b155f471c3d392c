// Package graph implements the deterministic orchestration state machine
// that drives a conversation turn from raw user text to a final answer.
//
// The machine is an explicit transition table over named nodes. Every node
// reads and mutates the ConversationState and reports an Outcome; the
// runtime looks up (node, outcome) in the table to find the next node.
// There is no dynamic routing outside the table, which makes every turn's
// path replayable from the recorded route.
package graph

import (
	"context"

	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// Outcome is a node's verdict about how the turn should proceed.
type Outcome string

const (
	// OutcomeNext advances along the node's default edge.
	OutcomeNext Outcome = "next"
	// OutcomeDone terminates the turn.
	OutcomeDone Outcome = "done"

	// Router outcomes, one per classified intent.
	OutcomeSearch        Outcome = "search"
	OutcomeAnalytics     Outcome = "analytics"
	OutcomeClarification Outcome = "clarification"
	OutcomeStaticInfo    Outcome = "static-info"
	OutcomeEnd           Outcome = "end"

	// Judge outcomes.
	OutcomeSatisfied Outcome = "satisfied"
	OutcomeRetry     Outcome = "retry"
	OutcomeExhausted Outcome = "exhausted"

	// Analytics repair outcomes.
	OutcomeReplan  Outcome = "replan"
	OutcomeClarify Outcome = "clarify"
)

// Node names. These are the values recorded in ConversationState.RoutePath.
const (
	NodeNormalizer       = "normalizer"
	NodeExtractor        = "extractor"
	NodeIntent           = "intent"
	NodeRouter           = "router"
	NodeSearchPlanner    = "search_planner"
	NodeRetriever        = "retriever"
	NodeAnswer           = "answer"
	NodeJudge            = "judge"
	NodeAnalyticsPlanner = "analytics_planner"
	NodeExecutor         = "executor"
	NodeChart            = "chart"
	NodeClarification    = "clarification"
	NodeStaticInfo       = "static_info"
	NodeEnd              = "end"

	// terminal is the sentinel target that stops the loop. It is not a node.
	terminal = "END"
)

// Node is a single step of the orchestration machine. Implementations mutate
// the state in place and must be safe to re-enter within a turn (the judge
// and replan edges revisit earlier nodes).
type Node interface {
	Name() string
	Run(ctx context.Context, state *models.ConversationState) (Outcome, error)
}

type transitionKey struct {
	node    string
	outcome Outcome
}

// transitions is the complete edge set of the machine. A (node, outcome)
// pair absent from this table is a programming error and fails the turn.
var transitions = map[transitionKey]string{
	{NodeNormalizer, OutcomeNext}: NodeExtractor,
	{NodeExtractor, OutcomeNext}:  NodeIntent,
	{NodeIntent, OutcomeNext}:     NodeRouter,

	{NodeRouter, OutcomeSearch}:        NodeSearchPlanner,
	{NodeRouter, OutcomeAnalytics}:     NodeAnalyticsPlanner,
	{NodeRouter, OutcomeClarification}: NodeClarification,
	{NodeRouter, OutcomeStaticInfo}:    NodeStaticInfo,
	{NodeRouter, OutcomeEnd}:           NodeEnd,

	{NodeSearchPlanner, OutcomeNext}: NodeRetriever,
	{NodeRetriever, OutcomeNext}:     NodeAnswer,
	{NodeAnswer, OutcomeNext}:        NodeJudge,

	{NodeJudge, OutcomeSatisfied}: terminal,
	{NodeJudge, OutcomeRetry}:     NodeSearchPlanner,
	{NodeJudge, OutcomeExhausted}: terminal,

	{NodeAnalyticsPlanner, OutcomeNext}:    NodeExecutor,
	{NodeAnalyticsPlanner, OutcomeReplan}:  NodeAnalyticsPlanner,
	{NodeAnalyticsPlanner, OutcomeClarify}: NodeClarification,
	{NodeAnalyticsPlanner, OutcomeDone}:    terminal,

	{NodeExecutor, OutcomeNext}:   NodeChart,
	{NodeExecutor, OutcomeReplan}: NodeAnalyticsPlanner,
	{NodeExecutor, OutcomeDone}:   terminal,

	{NodeChart, OutcomeDone}:         terminal,
	{NodeClarification, OutcomeDone}: terminal,
	{NodeStaticInfo, OutcomeDone}:    terminal,
	{NodeEnd, OutcomeDone}:           terminal,
}
