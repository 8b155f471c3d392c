package nodes

import (
	"context"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

const capabilitiesAnswer = `I answer questions about your ocean shipments. You can ask me to:
- look up shipments by container number or PO number
- check statuses, ETAs and delays
- count, total or break down shipments, for example "how many delayed shipments this month" or "count shipments by discharge port"

I only see shipments your account is entitled to.`

// StaticInfo answers capability questions and acknowledgements without
// touching the model or any data source.
type StaticInfo struct{}

func (s *StaticInfo) Name() string { return graph.NodeStaticInfo }

func (s *StaticInfo) Run(ctx context.Context, state *models.ConversationState) (graph.Outcome, error) {
	state.Intent = models.IntentStaticInfo
	if isAcknowledgement(state.CanonicalQuestion) {
		state.Answer = "Glad to help! Ask me anything else about your shipments whenever you're ready."
	} else {
		state.Answer = capabilitiesAnswer
	}
	return graph.OutcomeDone, nil
}
