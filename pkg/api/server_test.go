package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcs-logistics/shipmentqa/pkg/analytics"
	"github.com/mcs-logistics/shipmentqa/pkg/config"
	"github.com/mcs-logistics/shipmentqa/pkg/dataset"
	"github.com/mcs-logistics/shipmentqa/pkg/domainref"
	"github.com/mcs-logistics/shipmentqa/pkg/graph"
	"github.com/mcs-logistics/shipmentqa/pkg/graph/nodes"
	"github.com/mcs-logistics/shipmentqa/pkg/llm"
	"github.com/mcs-logistics/shipmentqa/pkg/models"
	"github.com/mcs-logistics/shipmentqa/pkg/retrieval"
	"github.com/mcs-logistics/shipmentqa/pkg/scope"
	"github.com/mcs-logistics/shipmentqa/pkg/session"
)

type noopSearcher struct{}

func (noopSearcher) Search(ctx context.Context, q retrieval.Query) ([]models.SearchHit, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := session.NewMemoryStore(0)
	t.Cleanup(func() { store.Close() })

	data, err := dataset.NewManager(context.Background(), dataset.Config{
		CacheDir: t.TempDir(),
		TestMode: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { data.Close() })

	registry := scope.NewRegistry(map[string]scope.PrincipalEntry{
		"tester": {ConsigneeCodes: []string{"TEST"}},
	})

	mock := llm.NewMock().WithFallback("static-info")
	ref := domainref.Builtin()
	runtime, err := graph.NewRuntime(
		graph.Config{},
		store,
		scope.NewResolver(registry, true, nil),
		nodes.All(nodes.Deps{
			LLM:       mock,
			Searcher:  noopSearcher{},
			Discovery: analytics.NewDiscovery(data),
			Planner:   analytics.NewPlanner(mock, ref),
			Executor:  analytics.NewExecutor(analytics.ExecutorConfig{}, data, ref),
			Ref:       ref,
		}),
	)
	require.NoError(t, err)

	srv := NewServer(config.ServerConfig{
		AllowedOrigins: []string{"https://app.example.com"},
	}, runtime)
	return srv.Router()
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["version"])
	assert.NotEmpty(t, body["instance_id"])
	assert.NotEmpty(t, body["started_at"])
}

func TestChatTurn_Envelope(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/turn",
		strings.NewReader(`{"principal_id": "tester", "message": "what can you do?"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env models.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.NotEmpty(t, env.ConversationID)
	assert.Equal(t, "static-info", env.Intent)
	assert.NotEmpty(t, env.Answer)
	// Slice fields are always arrays, never null.
	assert.NotNil(t, env.Notices)
	assert.NotNil(t, env.Evidence)
	assert.Contains(t, env.Metadata, "route_path")
	assert.Contains(t, env.Metadata, "scope_source")
}

func TestChatTurn_ConversationContinuity(t *testing.T) {
	router := newTestRouter(t)

	post := func(body string) models.Envelope {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/chat/turn", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var env models.Envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		return env
	}

	first := post(`{"principal_id": "tester", "message": "what can you do?"}`)
	require.NotEmpty(t, first.ConversationID)

	second := post(`{"conversation_id": "` + first.ConversationID + `", "principal_id": "tester", "message": "thanks!"}`)
	assert.Equal(t, first.ConversationID, second.ConversationID)
}

func TestChatTurn_MissingFields(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"no message", `{"principal_id": "tester"}`},
		{"no principal", `{"message": "hello"}`},
		{"not json", `hello`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/chat/turn", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "required")
		})
	}
}

func TestChatTurn_UnknownPrincipalStillAnswers(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat/turn",
		strings.NewReader(`{"principal_id": "stranger", "message": "where is my shipment?"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var env models.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotEmpty(t, env.Notices)
	assert.Contains(t, env.Notices[0], "access denied")
	assert.Empty(t, env.Evidence)
}

func TestSecurityHeaders(t *testing.T) {
	router := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}

func TestCORS(t *testing.T) {
	router := newTestRouter(t)

	t.Run("allowed origin preflight", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/api/chat/turn", nil)
		req.Header.Set("Origin", "https://app.example.com")
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unlisted origin gets no CORS headers", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		router.ServeHTTP(w, req)

		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}
