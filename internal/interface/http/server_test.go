package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnora/learnora-progress/internal/application/command"
	"github.com/learnora/learnora-progress/internal/application/eventhandler"
	"github.com/learnora/learnora-progress/internal/application/query"
	"github.com/learnora/learnora-progress/internal/application/saga"
	"github.com/learnora/learnora-progress/internal/domain/achievement"
	"github.com/learnora/learnora-progress/internal/domain/shared"
	"github.com/learnora/learnora-progress/internal/infrastructure/messaging"
	"github.com/learnora/learnora-progress/internal/infrastructure/persistence/memory"
	"github.com/learnora/learnora-progress/internal/infrastructure/service"
	"github.com/learnora/learnora-progress/internal/interface/http/handlers"
)

// newTestServer wires the full service against the in-memory store with a
// synchronous bus, mirroring the dev-mode composition in cmd/server.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	progressRepo := memory.NewProgressRepository()
	achievementRepo := memory.NewAchievementRepository()
	catalogRepo := memory.NewCatalogRepository()

	ctx := context.Background()
	for _, def := range achievement.DefaultDefinitions() {
		require.NoError(t, achievementRepo.SaveDefinition(ctx, def))
	}

	bus := messaging.NewInMemoryEventBus(messaging.DefaultInMemoryEventBusConfig())
	t.Cleanup(func() { _ = bus.Close() })

	dispatcher := messaging.NewDispatcherBuilder(bus).Build()
	flow := saga.NewAwardFlow(achievementRepo, progressRepo, achievement.NewChecker(), bus, service.NewUUIDGenerator(), nil)
	onProgress := eventhandler.NewOnProgressUpdated(flow, nil)
	require.NoError(t, dispatcher.Register(shared.EventProgressUpdated, "achievement_evaluation", onProgress.Handle))
	require.NoError(t, dispatcher.Start())
	t.Cleanup(func() { _ = dispatcher.Stop() })

	trackHandler := command.NewTrackProgressHandler(progressRepo, catalogRepo, bus, nil,
		command.TrackProgressHandlerConfig{EmitLessonCompletedEvent: true})

	srv := NewServer(DefaultConfig(), Dependencies{
		TrackProgressHandler:      trackHandler,
		GetProgressSummaryHandler: query.NewGetProgressSummaryHandler(progressRepo),
		IsEntityCompletedHandler:  query.NewIsEntityCompletedHandler(progressRepo),
		ListAchievementsHandler:   query.NewListAchievementsHandler(achievementRepo),
		CatalogRepository:         catalogRepo,
		HealthChecker:             handlers.NewNoopHealthChecker(),
	})

	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts
}

// doJSON performs a request and unwraps the standard response envelope.
func doJSON(t *testing.T, method, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
		Error   *APIError              `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))

	if envelope.Error != nil {
		return resp, map[string]interface{}{"error": envelope.Error.Code}
	}
	return resp, envelope.Data
}

func seedCatalog(t *testing.T, baseURL string) {
	t.Helper()

	entities := []map[string]interface{}{
		{"id": "r1", "entity_type": "ROADMAP", "title": "Backend"},
		{"id": "c1", "entity_type": "COURSE", "parent_id": "r1"},
		{"id": "m1", "entity_type": "MODULE", "parent_id": "c1"},
		{"id": "l1", "entity_type": "LESSON", "parent_id": "m1"},
		{"id": "x1", "entity_type": "EXERCISE", "parent_id": "l1"},
		{"id": "x2", "entity_type": "EXERCISE", "parent_id": "l1"},
	}
	for _, e := range entities {
		resp, _ := doJSON(t, http.MethodPut, baseURL+"/api/v1/catalog/entities", e)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func TestServer_TrackProgressFlow(t *testing.T) {
	ts := newTestServer(t)
	seedCatalog(t, ts.URL)

	// First completion transitions.
	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/progress/complete", map[string]interface{}{
		"user_id": "42", "entity_id": "x1", "entity_type": "EXERCISE",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["transitioned"])

	// Duplicate is idempotent, still 200.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/v1/progress/complete", map[string]interface{}{
		"user_id": "42", "entity_id": "x1", "entity_type": "EXERCISE",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["transitioned"])

	// Completing the sibling finishes the lesson via propagation.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/api/v1/progress/complete", map[string]interface{}{
		"user_id": "42", "entity_id": "x2", "entity_type": "EXERCISE",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	completed, ok := body["completed"].([]interface{})
	require.True(t, ok)
	assert.Len(t, completed, 5, "x2 plus the full chain up to the roadmap")

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/users/42/progress/LESSON/l1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["completed"])

	// Summary reflects all transitions, achievements were evaluated inline.
	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/users/42/progress", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(6), body["total_completed"], "both exercises and the whole chain above them")

	resp, body = doJSON(t, http.MethodGet, ts.URL+"/api/v1/users/42/achievements", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, body["obtained_count"], float64(1))
}

func TestServer_TrackProgressValidation(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/api/v1/progress/complete", map[string]interface{}{
		"user_id": "42", "entity_id": "x1", "entity_type": "WORKSHOP",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotNil(t, body["error"])

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/v1/progress/complete", map[string]interface{}{
		"entity_id": "x1", "entity_type": "EXERCISE",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_UnknownEntityIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	seedCatalog(t, ts.URL)

	// Tracking an entity missing from the catalog is a hard error, not a
	// silent no-op.
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/v1/progress/complete", map[string]interface{}{
		"user_id": "42", "entity_id": "ghost", "entity_type": "EXERCISE",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_CatalogEndpoints(t *testing.T) {
	ts := newTestServer(t)
	seedCatalog(t, ts.URL)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/api/v1/catalog/entities/LESSON/l1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "m1", body["parent_id"])

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/v1/catalog/entities/LESSON/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Structural validation: a course cannot be parentless.
	resp, _ = doJSON(t, http.MethodPut, ts.URL+"/api/v1/catalog/entities", map[string]interface{}{
		"id": "c9", "entity_type": "COURSE",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_HealthEndpoints(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/healthz", "/ready", "/live"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
