package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/portfolio-qubo/internal/events"
	"github.com/aristath/portfolio-qubo/internal/metrics"
	"github.com/aristath/portfolio-qubo/internal/modules/marketdata"
	"github.com/aristath/portfolio-qubo/internal/modules/qubo"
	"github.com/aristath/portfolio-qubo/internal/modules/runs"
	testingpkg "github.com/aristath/portfolio-qubo/internal/testing"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()

	db, cleanup := testingpkg.NewTestDB(t, "runs")
	t.Cleanup(cleanup)

	log := zerolog.Nop()
	service := runs.NewService(
		runs.NewRepository(db.Conn(), log),
		qubo.NewEvaluator(qubo.Options{Workers: 2}, log),
		marketdata.NewService(nil, nil, log),
		events.NewManager(events.NewBus(log), log),
		metrics.NewRegistry(),
		nil,
		log,
	)

	router := chi.NewRouter()
	NewHandler(service, log).RegisterRoutes(router)
	return router
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func inlineBody() map[string]interface{} {
	return map[string]interface{}{
		"assets":        testingpkg.NewUniverseFixture(),
		"mu":            testingpkg.NewMuFixture(),
		"sigma":         testingpkg.NewSigmaFixture(),
		"risk_factor":   0.5,
		"budget":        2,
		"penalty_scale": 5,
		"top":           3,
	}
}

func TestRegisterRoutes(t *testing.T) {
	router := newTestRouter(t)

	testCases := []struct {
		method string
		path   string
		name   string
	}{
		{"POST", "/runs/", "CreateRun"},
		{"GET", "/runs/", "ListRuns"},
		{"GET", "/runs/some-id", "GetRun"},
		{"DELETE", "/runs/some-id", "DeleteRun"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, router, tc.method, tc.path, "{}")
			if tc.path == "/runs/some-id" {
				// Route exists; the run does not
				assert.JSONEq(t, `{"error":"run not found: some-id"}`, rec.Body.String())
				return
			}
			assert.NotEqual(t, http.StatusNotFound, rec.Code, "Route %s %s should be registered", tc.method, tc.path)
		})
	}
}

func TestHandleCreateRun(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, "POST", "/runs/", inlineBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run runs.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, 17, run.Best.Index)
	assert.Equal(t, []string{"AAPL", "JNJ"}, run.Selected)
	assert.Len(t, run.Table, 3)
	assert.Equal(t, 5.0, run.Params.PenaltyScale)

	get := do(t, router, "GET", "/runs/"+run.ID, nil)
	require.Equal(t, http.StatusOK, get.Code)

	list := do(t, router, "GET", "/runs/?limit=5", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var listed struct {
		Runs  []runs.Run `json:"runs"`
		Count int        `json:"count"`
	}
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &listed))
	assert.Equal(t, 1, listed.Count)
	assert.Equal(t, run.ID, listed.Runs[0].ID)

	del := do(t, router, "DELETE", "/runs/"+run.ID, nil)
	assert.Equal(t, http.StatusNoContent, del.Code)

	missing := do(t, router, "GET", "/runs/"+run.ID, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestHandleCreateRun_ClientErrors(t *testing.T) {
	router := newTestRouter(t)

	badBudget := inlineBody()
	badBudget["budget"] = 7

	zeroPenalty := inlineBody()
	zeroPenalty["penalty_scale"] = 0

	badDate := map[string]interface{}{"source": "random", "assets": []string{"A"}, "start": "01/02/2024", "end": "2024-02-01"}

	tests := []struct {
		name string
		body interface{}
		want string
	}{
		{"malformed json", "{not json", "Invalid request body"},
		{"budget out of range", badBudget, "invalid budget"},
		{"explicit zero penalty", zeroPenalty, "invalid parameter penalty_scale"},
		{"bad date", badDate, "invalid start date"},
		{"unknown mode", map[string]interface{}{"mode": "anneal", "mu": []float64{0.1}, "sigma": [][]float64{{0.1}}}, "unknown mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, "POST", "/runs/", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestHandleCreateRun_OmittedPenaltyUsesDefault(t *testing.T) {
	body := inlineBody()
	delete(body, "penalty_scale")

	rec := do(t, newTestRouter(t), "POST", "/runs/", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run runs.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, 5.0, run.Params.PenaltyScale)
}

func TestHandleListRuns_BadLimit(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, "GET", "/runs/?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterRoutes_RoutePrefix(t *testing.T) {
	router := newTestRouter(t)
	rec := do(t, router, "GET", "/some-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
