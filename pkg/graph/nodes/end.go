package nodes

import (
	"context"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// EndNode closes the conversation. The runtime deletes the session after
// this node; the state itself only carries the farewell.
type EndNode struct{}

func (e *EndNode) Name() string { return graph.NodeEnd }

func (e *EndNode) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	state.Intent = models.IntentEnd
	state.Answer = "Goodbye! Come back anytime you need an update on your shipments."
	return graph.OutcomeDone, nil
}
