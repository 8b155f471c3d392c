package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
)

// TurnRequest is one user message. ConversationID is optional; omitting it
// starts a new conversation and the assigned id comes back in the envelope.
type TurnRequest struct {
	ConversationID string `json:"conversation_id"`
	PrincipalID    string `json:"principal_id" binding:"required"`
	Message        string `json:"message" binding:"required"`
}

// ChatTurn handles POST /api/chat/turn.
func (s *Server) ChatTurn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal_id and message are required"})
		return
	}

	state, err := s.runtime.RunTurn(c.Request.Context(), req.ConversationID, req.PrincipalID, req.Message)
	if err != nil && !errors.Is(err, graph.ErrTurnTimeout) {
		slog.Error("turn failed", "conversation_id", req.ConversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	// A timed-out turn still carries a degraded state with an explanatory
	// notice; it goes out as a normal envelope.

	c.JSON(http.StatusOK, buildEnvelope(state))
}

// buildEnvelope projects the final turn state into the response contract.
func buildEnvelope(state *models.ConversationState) models.Envelope {
	notices := state.Notices
	if notices == nil {
		notices = []string{}
	}
	evidence := state.Evidence
	if evidence == nil {
		evidence = []models.SearchHit{}
	}
	return models.Envelope{
		ConversationID: state.ConversationID,
		Intent:         string(state.Intent),
		Answer:         state.Answer,
		Notices:        notices,
		Evidence:       evidence,
		Chart:          state.Chart,
		Table:          state.Table,
		Metadata: map[string]any{
			"route_path":   state.RoutePath,
			"retry_count":  state.RetryCount,
			"replan_count": state.ReplanCount,
			"token_usage":  state.Usage,
			"scope_source": string(state.Scope.Source),
		},
	}
}
