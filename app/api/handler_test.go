package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nutriplan/app/agent"
	"nutriplan/store"
	"nutriplan/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profileJSON = `{
	"basic": {
		"age": 30,
		"height_cm": 175,
		"weight_kg": 80,
		"country": "Argentina",
		"province": "Córdoba",
		"objective": "Pérdida de grasa",
		"restrictions": ["Lácteos"]
	},
	"activity": {
		"types": ["Musculación"],
		"days_per_week": 5,
		"session_minutes": 60,
		"intensity": "Alta"
	}
}`

type fakeSearcher struct {
	results []types.RetrievalResult
	err     error
	got     struct {
		query string
		topK  int
	}
}

func (f *fakeSearcher) Search(_ context.Context, query string, topK int, _ float64) ([]types.RetrievalResult, error) {
	f.got.query, f.got.topK = query, topK
	return f.results, f.err
}

type fakeAssembler struct{ text string }

func (f fakeAssembler) Assemble(context.Context, types.UserProfile) string { return f.text }

type fakeGenerator struct {
	err error
	got agent.PlanRequest
}

func (f *fakeGenerator) Generate(_ context.Context, req agent.PlanRequest) (types.PlanResult, error) {
	f.got = req
	if f.err != nil {
		return types.PlanResult{}, f.err
	}
	return types.PlanResult{
		ID:        uuid.New(),
		Text:      "PLAN NUTRICIONAL\nDÍA 1\n",
		Validated: true,
		Targets:   req.Targets,
		Meals:     req.Meals,
		Context:   req.Context,
		CreatedAt: time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
	}, nil
}

type fakeStats struct {
	stats store.Stats
	err   error
}

func (f fakeStats) Collection() string { return "tresdiasycarga" }
func (f fakeStats) Stats(context.Context) (store.Stats, error) { return f.stats, f.err }

type testAPI struct {
	app       *fiber.App
	searcher  *fakeSearcher
	generator *fakeGenerator
	sessions  *Sessions
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	ta := testAPI{
		app:       fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(nil)}),
		searcher:  &fakeSearcher{},
		generator: &fakeGenerator{},
		sessions:  NewSessions(10),
	}
	h := NewPlanHandler(ta.searcher, fakeAssembler{text: "### Método\n[metodo, p.3] tres días"}, ta.generator, ta.sessions, nil)
	v1 := ta.app.Group("/api/v1")
	v1.Post("/targets", h.HandleTargets)
	v1.Post("/search", h.HandleSearch)
	v1.Post("/plan", h.HandlePlan)
	v1.Get("/plan/:id/txt", h.HandlePlanText)
	v1.Get("/plan/:id/pdf", h.HandlePlanPDF)
	return ta
}

func do(t *testing.T, app *fiber.App, method, path, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandleTargets(t *testing.T) {
	ta := newTestAPI(t)
	resp := do(t, ta.app, http.MethodPost, "/api/v1/targets", profileJSON)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[targetsResponse](t, resp)
	assert.Greater(t, out.Targets.TargetCalories, 0.0)
	assert.Less(t, out.Targets.TargetCalories, out.Targets.MaintenanceCalories)
	require.NotEmpty(t, out.Meals)

	var sum float64
	for _, m := range out.Meals {
		sum += m.Target.Calories
	}
	assert.InDelta(t, out.Targets.TargetCalories, sum, float64(len(out.Meals)))
}

func TestHandleTargets_InvalidProfile(t *testing.T) {
	ta := newTestAPI(t)
	body := strings.Replace(profileJSON, `"weight_kg": 80`, `"weight_kg": 20`, 1)
	resp := do(t, ta.app, http.MethodPost, "/api/v1/targets", body)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	out := decode[ValidationError](t, resp)
	assert.Contains(t, out.Errors, "UserProfile.Basic.WeightKg")
}

func TestHandleSearch(t *testing.T) {
	ta := newTestAPI(t)
	ta.searcher.results = []types.RetrievalResult{{ID: "chunk_00001", Text: "carga de hidratos", Score: 0.8, Page: 12}}

	resp := do(t, ta.app, http.MethodPost, "/api/v1/search", `{"query":"carga de hidratos","threshold":0.5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[types.SearchResponse](t, resp)
	assert.Equal(t, "carga de hidratos", out.Query)
	assert.Len(t, out.Results, 1)
	assert.Equal(t, defaultTopK, ta.searcher.got.topK)
}

func TestHandleSearch_Rejects(t *testing.T) {
	ta := newTestAPI(t)

	resp := do(t, ta.app, http.MethodPost, "/api/v1/search", `{"query":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, ta.app, http.MethodPost, "/api/v1/search", `{"query":"x","top_k":50}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, ta.app, http.MethodPost, "/api/v1/search", `{`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleSearch_RetrievalFailure(t *testing.T) {
	ta := newTestAPI(t)
	ta.searcher.err = fmt.Errorf("%w: embed query: timeout", types.ErrRetrieval)

	resp := do(t, ta.app, http.MethodPost, "/api/v1/search", `{"query":"creatina"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHandlePlan_ThenDownload(t *testing.T) {
	ta := newTestAPI(t)
	resp := do(t, ta.app, http.MethodPost, "/api/v1/plan", `{"profile":`+profileJSON+`,"days":2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	plan := decode[types.PlanResult](t, resp)

	assert.Equal(t, 2, ta.generator.got.Days)
	assert.Contains(t, ta.generator.got.Context, "tres días")
	assert.NotEmpty(t, ta.generator.got.Meals)
	assert.Equal(t, []string{"Lácteos"}, ta.generator.got.Profile.Basic.Restrictions)

	resp = do(t, ta.app, http.MethodGet, "/api/v1/plan/"+plan.ID.String()+"/txt", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "plan_nutricional_20260309_")
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "PLAN NUTRICIONAL\nDÍA 1\n", string(body))
}

func TestHandlePlan_Errors(t *testing.T) {
	ta := newTestAPI(t)

	resp := do(t, ta.app, http.MethodPost, "/api/v1/plan", `{"profile":`+profileJSON+`,"days":9}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, ta.app, http.MethodPost, "/api/v1/plan", `{"perfil":{}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	ta.generator.err = fmt.Errorf("%w: day 1 attempt 3: empty completion", types.ErrGeneration)
	resp = do(t, ta.app, http.MethodPost, "/api/v1/plan", `{"profile":`+profileJSON+`}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestPlanDownload_Lookup(t *testing.T) {
	ta := newTestAPI(t)

	resp := do(t, ta.app, http.MethodGet, "/api/v1/plan/not-a-uuid/txt", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, ta.app, http.MethodGet, "/api/v1/plan/"+uuid.NewString()+"/pdf", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	out := decode[Error](t, resp)
	assert.Contains(t, out.Message, "plan with")
}

func TestCheckHandler(t *testing.T) {
	tests := []struct {
		name  string
		stats fakeStats
		want  int
	}{
		{"ready", fakeStats{stats: store.Stats{TotalVectorCount: 120, Dimension: 1536}}, http.StatusOK},
		{"empty", fakeStats{stats: store.Stats{Dimension: 1536}}, http.StatusServiceUnavailable},
		{"store down", fakeStats{err: errors.New("connection refused")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(nil)})
			h := NewCheckHandler(tt.stats)
			app.Get("/check/healthy", h.HandleHealthy)
			app.Get("/check/ready", h.HandleReady)

			resp := do(t, app, http.MethodGet, "/check/healthy", "")
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			resp = do(t, app, http.MethodGet, "/check/ready", "")
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestHandleUpload(t *testing.T) {
	dir := t.TempDir()
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(nil)})
	app.Post("/kb/upload", NewFileHandler(dir, nil).HandleUpload)

	upload := func(name string) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("%PDF-1.7\n"))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/kb/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	resp := upload("libro.pdf")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	_, err := os.Stat(filepath.Join(dir, "libro.pdf"))
	assert.NoError(t, err)

	resp = upload("notas.txt")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSessions_EvictsOldest(t *testing.T) {
	s := NewSessions(2)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	for _, id := range ids {
		s.Put(types.PlanResult{ID: id}, types.UserProfile{})
	}

	_, _, ok := s.Get(ids[0])
	assert.False(t, ok)
	for _, id := range ids[1:] {
		_, _, ok := s.Get(id)
		assert.True(t, ok)
	}
}
