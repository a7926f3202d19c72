package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/l10ncheck/internal/history"
	"github.com/gotrs-io/l10ncheck/internal/locale"
	"github.com/gotrs-io/l10ncheck/internal/metrics"
	"github.com/gotrs-io/l10ncheck/internal/report"
)

func setupTestServer(t *testing.T, withHistory bool) (*Server, *history.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var store *history.Store
	if withHistory {
		var err error
		store, err = history.Open(context.Background(), ":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
	}
	s := New(":0", locale.Defaults, metrics.NewRecorder(), store)
	s.logger = log.New(io.Discard, "", 0)
	return s, store
}

func get(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req, err := http.NewRequest("GET", path, nil)
	require.NoError(t, err)
	s.Handler().ServeHTTP(w, req)

	var body map[string]any
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func sampleReport() *report.Report {
	rep := report.New("playwright")
	rep.Add(report.Result{Locale: "en", Passed: true, ActualTitle: "Wikipedia, the free encyclopedia"})
	rep.Finish()
	return rep
}

func TestHealth(t *testing.T) {
	s, _ := setupTestServer(t, false)

	w, body := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "dev", body["version"].(map[string]any)["version"])
	assert.NotContains(t, body, "last_run_id")

	rep := sampleReport()
	s.SetLatest(rep)
	_, body = get(t, s, "/healthz")
	assert.Equal(t, rep.RunID, body["last_run_id"])
	assert.Equal(t, true, body["last_run_passed"])
}

func TestLocales(t *testing.T) {
	s, _ := setupTestServer(t, false)
	w, body := get(t, s, "/api/v1/locales")
	assert.Equal(t, http.StatusOK, w.Code)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 4)
	first := data[0].(map[string]any)
	assert.Equal(t, "en", first["locale"])
	assert.Equal(t, "Wikipedia", first["expected_title"])
}

func TestLatestRun(t *testing.T) {
	t.Run("no runs", func(t *testing.T) {
		s, _ := setupTestServer(t, true)
		w, body := get(t, s, "/api/v1/runs/latest")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, false, body["success"])
	})

	t.Run("falls back to history", func(t *testing.T) {
		s, store := setupTestServer(t, true)
		rep := sampleReport()
		require.NoError(t, store.Record(context.Background(), rep))

		w, body := get(t, s, "/api/v1/runs/latest")
		assert.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]any)
		assert.Equal(t, rep.RunID, data["run_id"])
	})

	t.Run("in-memory report wins", func(t *testing.T) {
		s, _ := setupTestServer(t, false)
		rep := sampleReport()
		s.SetLatest(rep)
		assert.Same(t, rep, s.Latest())

		w, body := get(t, s, "/api/v1/runs/latest")
		assert.Equal(t, http.StatusOK, w.Code)
		data := body["data"].(map[string]any)
		assert.Equal(t, rep.RunID, data["run_id"])
	})
}

func TestLocaleHistory(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		s, _ := setupTestServer(t, false)
		w, _ := get(t, s, "/api/v1/locales/en/history")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		s, _ := setupTestServer(t, true)
		w, _ := get(t, s, "/api/v1/locales/en/history?limit=abc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("returns results", func(t *testing.T) {
		s, store := setupTestServer(t, true)
		require.NoError(t, store.Record(context.Background(), sampleReport()))
		require.NoError(t, store.Record(context.Background(), sampleReport()))

		w, body := get(t, s, "/api/v1/locales/en/history?limit=1")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, body["data"], 1)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := setupTestServer(t, false)
	s.metrics.ObserveCase(report.Result{Locale: "es", Passed: true})

	w, _ := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `l10ncheck_cases_total{locale="es",outcome="passed"} 1`)
}
