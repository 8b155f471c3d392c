package nodes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

func evidenceState(answer string) *models.ConversationState {
	return &models.ConversationState{
		ConversationID: "c1",
		Answer:         answer,
		Evidence: []models.SearchHit{
			{
				DocID: "d1",
				Rank:  1,
				Fields: map[string]string{
					"container_number": "MSCU1234567",
					"best_eta_dp_date": "2026-03-05",
					"teus":             "2",
				},
			},
		},
	}
}

func TestJudge_GroundedAnswerSatisfies(t *testing.T) {
	j := &Judge{retryCeiling: 2}

	tests := []struct {
		name   string
		answer string
	}{
		{"no numeric claims", "The shipment is currently on the water."},
		{"numbers from evidence", "Container MSCU1234567 arrives on 2026-03-05 with 2 TEUs."},
		{"formatted date reuses evidence digits", "ETA is 05-Mar-2026."},
		{"hit count is allowed", "I found 1 matching shipment."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := evidenceState(tt.answer)
			outcome, err := j.Run(context.Background(), state)
			require.NoError(t, err)
			assert.Equal(t, graph.OutcomeSatisfied, outcome)
			assert.Zero(t, state.RetryCount)
		})
	}
}

func TestJudge_UngroundedNumberRetries(t *testing.T) {
	j := &Judge{retryCeiling: 2}
	state := evidenceState("You have 42 delayed shipments.")

	outcome, err := j.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, graph.OutcomeRetry, outcome)
	assert.Equal(t, 1, state.RetryCount)
	assert.Contains(t, state.JudgeReason, "42")
}

func TestJudge_CeilingExhaustsWithNotice(t *testing.T) {
	j := &Judge{retryCeiling: 2}
	state := evidenceState("You have 42 delayed shipments.")
	state.RetryCount = 2

	outcome, err := j.Run(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, graph.OutcomeExhausted, outcome)
	assert.Equal(t, 2, state.RetryCount)
	require.Len(t, state.Notices, 1)
	assert.Contains(t, state.Notices[0], "verified")
}

func TestJudge_EmptyEvidenceApologyPasses(t *testing.T) {
	j := &Judge{retryCeiling: 2}
	state := &models.ConversationState{
		Answer: "I couldn't find any shipments matching that.",
	}

	outcome, err := j.Run(context.Background(), state)
	require.NoError(t, err)
	assert.Equal(t, graph.OutcomeSatisfied, outcome)
}
