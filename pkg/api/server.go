// Package api is the HTTP surface of the service: one chat endpoint that
// drives the orchestration machine, plus health. The response envelope is a
// stable contract; internal refactors must not change its shape.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mcs-logistics/shipmentqa/pkg/config"
	"github.com/mcs-logistics/shipmentqa/pkg/graph"
)

// Server hosts the HTTP API over the orchestration runtime.
type Server struct {
	cfg        config.ServerConfig
	runtime    *graph.Runtime
	instanceID string
	startedAt  time.Time
}

// NewServer creates a new API server.
func NewServer(cfg config.ServerConfig, runtime *graph.Runtime) *Server {
	return &Server{
		cfg:        cfg,
		runtime:    runtime,
		instanceID: uuid.NewString(),
		startedAt:  time.Now().UTC(),
	}
}

// Router builds the gin engine with all routes and middleware attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(securityHeaders())
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	apiGroup := r.Group("/api")
	apiGroup.GET("/health", s.Health)
	apiGroup.POST("/chat/turn", s.ChatTurn)
	return r
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", srv.Addr, "instance_id", s.instanceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	slog.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}
