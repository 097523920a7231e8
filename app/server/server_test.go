package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"nutriplan/app/agent"
	"nutriplan/app/api"
	"nutriplan/kb"
	"nutriplan/model"
	"nutriplan/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	knowledge := kb.NewKnowledgeStore(store.NewMemoryStore(), model.NewHashEmbedder(64), "test_kb", kb.WithDimension(64))
	_, err := knowledge.EnsureCollection(context.Background())
	require.NoError(t, err)

	app := NewApp(nil)
	Routes(app, Handlers{
		Check:  api.NewCheckHandler(knowledge),
		Config: api.NewConfigHandler(api.Settings{Collection: "test_kb", PlanDays: 3}),
		Plan:   api.NewPlanHandler(knowledge, agent.NewContextAssembler(knowledge, nil), nil, api.NewSessions(1), nil),
		File:   api.NewFileHandler(t.TempDir(), nil),
	})
	return app
}

func get(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	return resp
}

func TestRoutes(t *testing.T) {
	app := newTestApp(t)

	resp := get(t, app, "/check/healthy")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// freshly created collection holds no vectors yet
	resp = get(t, app, "/check/ready")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = get(t, app, "/api/v1/config")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var settings api.Settings
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&settings))
	assert.Equal(t, "test_kb", settings.Collection)

	resp = get(t, app, "/api/v1/plan/00000000-0000-0000-0000-000000000000/txt")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = get(t, app, "/api/v1/unknown")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
