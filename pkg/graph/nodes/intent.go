package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/llm"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

const intentSystemPrompt = `You classify a question about ocean shipments into exactly one label.

Labels:
- search: find or look up specific shipments, statuses, ETAs (point lookups, lists of matching shipments)
- analytics: counts, sums, averages, groupings, trends, comparisons, charts over the shipment dataset
- clarification: the question is too vague or ambiguous to act on
- static-info: questions about what this assistant can do, greetings, small talk
- end: the user explicitly says goodbye and wants to close the conversation

Output ONLY the label, nothing else.`

var (
	aggregationRe = regexp.MustCompile(`(?i)\b(how many|count|total|sum|average|avg|per|by |group|trend|distribution|breakdown|compare|most|least|top \d+|percentage|share)\b`)
	broadScopeRe  = regexp.MustCompile(`(?i)\b(my|all|these|those|the)\s+(shipments|containers|orders)\b`)
	capabilityRe  = regexp.MustCompile(`(?i)\b(what can you do|help me|how do you work|who are you|what are you)\b`)
)

// IntentClassifier labels the canonical question. The model's label is
// bounded by deterministic guardrails: a conversation only ends on an
// explicit farewell, praise is never an ending, and broad follow-up
// requests are downgraded to a numbered clarification instead of guessing
// the user's scope.
type IntentClassifier struct {
	llm llm.Client
}

func (c *IntentClassifier) Name() string { return graph.NodeIntent }

func (c *IntentClassifier) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	question := state.CanonicalQuestion

	switch {
	case isFarewell(question):
		state.Intent = models.IntentEnd
		return graph.OutcomeNext, nil
	case isAcknowledgement(question):
		state.Intent = models.IntentStaticInfo
		return graph.OutcomeNext, nil
	case capabilityRe.MatchString(question):
		state.Intent = models.IntentStaticInfo
		return graph.OutcomeNext, nil
	}

	if c.needsScopeChoice(state) {
		state.PendingChoice = &models.PendingChoice{
			Contextual: question + " (limited to the shipments from our previous answer)",
			Fresh:      question + " (across all shipments I have access to)",
		}
		state.Intent = models.IntentClarification
		return graph.OutcomeNext, nil
	}

	label, err := c.classify(ctx, state)
	if err != nil {
		slog.Warn("intent classification fallback to heuristics", "conversation_id", state.ConversationID, "error", err)
		state.Intent = c.heuristicIntent(state)
		return graph.OutcomeNext, nil
	}

	// An end label without an explicit farewell is a misclassification;
	// "no more delays I hope" must not close the session.
	if label == models.IntentEnd && !isFarewell(question) {
		label = models.IntentStaticInfo
	}
	state.Intent = label
	return graph.OutcomeNext, nil
}

func (c *IntentClassifier) classify(ctx context.Context, state *models.ConversationState) (models.Intent, error) {
	resp, err := c.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: intentSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Conversation so far:\n%s\n\nQuestion:\n%s", historyForPrompt(state, 6), state.CanonicalQuestion)},
		},
		Temperature: 0,
	})
	if err != nil {
		return models.IntentUnknown, err
	}
	addUsage(state, resp.Usage)

	label := strings.ToLower(strings.TrimSpace(resp.Content))
	for _, candidate := range []models.Intent{
		models.IntentSearch, models.IntentAnalytics, models.IntentClarification,
		models.IntentStaticInfo, models.IntentEnd,
	} {
		if strings.Contains(label, string(candidate)) {
			return candidate, nil
		}
	}
	return models.IntentUnknown, fmt.Errorf("unrecognized intent label %q", label)
}

// heuristicIntent is the model-free fallback when the classifier call fails.
func (c *IntentClassifier) heuristicIntent(state *models.ConversationState) models.Intent {
	switch {
	case aggregationRe.MatchString(state.CanonicalQuestion):
		return models.IntentAnalytics
	case state.Entities.HasIdentifiers():
		return models.IntentSearch
	default:
		return models.IntentClarification
	}
}

// needsScopeChoice reports whether a broad request arriving mid-conversation
// should be disambiguated. "Show my shipments" after a filtered answer can
// mean either the prior subset or everything in scope; asking beats guessing.
func (c *IntentClassifier) needsScopeChoice(state *models.ConversationState) bool {
	if len(state.History) < 3 {
		return false
	}
	q := state.CanonicalQuestion
	return broadScopeRe.MatchString(q) &&
		!state.Entities.HasIdentifiers() &&
		state.Entities.DateRange == nil &&
		!aggregationRe.MatchString(q)
}
