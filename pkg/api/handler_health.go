package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mcs-logistics/shipmentqa/pkg/version"
)

// Health handles GET /api/health.
func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"version":     version.Full(),
		"instance_id": s.instanceID,
		"started_at":  s.startedAt.Format(time.RFC3339),
	})
}
