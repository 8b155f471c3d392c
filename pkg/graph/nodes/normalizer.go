package nodes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/llm"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

const normalizerSystemPrompt = `You rewrite a user's chat message into a single, self-contained question about ocean shipments, using the conversation history to resolve pronouns and elliptical references.

Rules:
- Output ONLY the rewritten question, nothing else.
- Preserve the user's meaning exactly. Never answer the question.
- Keep container numbers, PO numbers and dates verbatim.
- If the message is already self-contained, return it unchanged.`

// Normalizer rewrites the raw user text into a canonical, self-contained
// question. Acknowledgements pass through untouched so a thank-you is never
// inflated into a new query, and a pending numbered clarification is
// resolved here before any model call.
type Normalizer struct {
	llm llm.Client
}

func (n *Normalizer) Name() string { return graph.NodeNormalizer }

func (n *Normalizer) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	raw := strings.TrimSpace(state.RawQuestion)

	// A bare "1" or "2" answers the previous turn's numbered choice.
	if state.PendingChoice != nil {
		switch raw {
		case "1", "1.", "option 1":
			state.CanonicalQuestion = state.PendingChoice.Contextual
			state.PendingChoice = nil
			return graph.OutcomeNext, nil
		case "2", "2.", "option 2":
			state.CanonicalQuestion = state.PendingChoice.Fresh
			state.PendingChoice = nil
			return graph.OutcomeNext, nil
		}
		// Anything else abandons the choice.
		state.PendingChoice = nil
	}

	if isAcknowledgement(raw) || isFarewell(raw) {
		state.CanonicalQuestion = raw
		return graph.OutcomeNext, nil
	}

	// Single-turn conversations have nothing to resolve against.
	if len(state.History) <= 1 {
		state.CanonicalQuestion = raw
		return graph.OutcomeNext, nil
	}

	resp, err := n.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: normalizerSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Conversation so far:\n%s\n\nRewrite this message:\n%s", historyForPrompt(state, 10), raw)},
		},
		Temperature: 0,
	})
	if err != nil {
		// Degrade to the raw text rather than failing the turn.
		slog.Warn("normalizer fallback to raw text", "conversation_id", state.ConversationID, "error", err)
		state.CanonicalQuestion = raw
		return graph.OutcomeNext, nil
	}
	addUsage(state, resp.Usage)

	canonical := strings.TrimSpace(resp.Content)
	if canonical == "" {
		canonical = raw
	}
	state.CanonicalQuestion = canonical
	return graph.OutcomeNext, nil
}
