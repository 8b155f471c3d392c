package nodes

import (
	"context"
	"fmt"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// Router translates the classified intent into a transition edge. It holds
// no logic of its own; keeping it as a distinct node makes the fan-out
// point explicit in the recorded route.
type Router struct{}

func (r *Router) Name() string { return graph.NodeRouter }

func (r *Router) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	switch state.Intent {
	case models.IntentSearch:
		return graph.OutcomeSearch, nil
	case models.IntentAnalytics:
		return graph.OutcomeAnalytics, nil
	case models.IntentClarification:
		return graph.OutcomeClarification, nil
	case models.IntentStaticInfo:
		return graph.OutcomeStaticInfo, nil
	case models.IntentEnd:
		return graph.OutcomeEnd, nil
	default:
		return "", fmt.Errorf("router reached with unroutable intent %q", state.Intent)
	}
}
