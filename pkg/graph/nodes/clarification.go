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

const clarificationSystemPrompt = `The user asked a question about ocean shipments that is too vague to act on. Write ONE short clarifying question that would let you answer it. Output only the question.`

// Clarification asks the user to disambiguate. A pending numbered choice
// set by the intent classifier renders as a fixed two-option prompt; other
// vague questions get a model-written clarifying question with a canned
// fallback.
type Clarification struct {
	llm llm.Client
}

func (c *Clarification) Name() string { return graph.NodeClarification }

func (c *Clarification) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	state.Intent = models.IntentClarification

	if state.PendingChoice != nil {
		state.Answer = fmt.Sprintf(
			"Just to be sure I scope this right, did you mean:\n1. %s\n2. %s\nReply 1 or 2.",
			state.PendingChoice.Contextual,
			state.PendingChoice.Fresh,
		)
		return graph.OutcomeDone, nil
	}

	resp, err := c.llm.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: clarificationSystemPrompt},
			{Role: llm.RoleUser, Content: state.CanonicalQuestion},
		},
		Temperature: 0,
	})
	if err != nil {
		slog.Warn("clarification fallback", "conversation_id", state.ConversationID, "error", err)
		state.Answer = "I'm not sure I understood. Could you mention a container number, a PO number, or what you'd like counted or listed?"
		return graph.OutcomeDone, nil
	}
	addUsage(state, resp.Usage)
	state.Answer = strings.TrimSpace(resp.Content)
	return graph.OutcomeDone, nil
}
