package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcs-logistics/shipmentqa/pkg/analytics"
	"github.com/mcs-logistics/shipmentqa/pkg/dataset"
	"github.com/mcs-logistics/shipmentqa/pkg/domainref"
	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

func testExecutorNode(t *testing.T, replanCeiling int) *ExecutorNode {
	t.Helper()
	data, err := dataset.NewManager(context.Background(), dataset.Config{
		CacheDir: t.TempDir(),
		TestMode: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { data.Close() })

	return &ExecutorNode{
		executor:      analytics.NewExecutor(analytics.ExecutorConfig{}, data, domainref.Builtin()),
		replanCeiling: replanCeiling,
	}
}

func plannedState(plan *models.QueryPlan) *models.ConversationState {
	return &models.ConversationState{
		ConversationID: "c1",
		Scope: models.Scope{
			PrincipalID:    "p",
			ConsigneeCodes: []string{"TEST"},
			Source:         models.ScopeSourceRegistry,
		},
		Plan: plan,
	}
}

func TestExecutorNode_DriftedPlanColumnTriggersReplan(t *testing.T) {
	node := testExecutorNode(t, 1)
	state := plannedState(&models.QueryPlan{TargetColumns: []string{"vessel_name"}})

	outcome, err := node.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, graph.OutcomeReplan, outcome)
	assert.Equal(t, 1, state.ReplanCount)
	assert.Contains(t, state.PlanError, "vessel_name")
}

func TestExecutorNode_DriftedPlanPastCeilingEndsTurn(t *testing.T) {
	node := testExecutorNode(t, 1)
	state := plannedState(&models.QueryPlan{TargetColumns: []string{"vessel_name"}})
	state.ReplanCount = 1

	outcome, err := node.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, graph.OutcomeDone, outcome)
	assert.NotEmpty(t, state.Answer)
	assert.NotEmpty(t, state.Notices)
}
