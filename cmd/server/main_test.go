package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kiranshivaraju/incidentdesk/internal/analyzer"
	"github.com/kiranshivaraju/incidentdesk/internal/analyzer/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── mock history pinger ────────────────────────────────────────────────────

type testPinger struct {
	pingErr error
}

func (p *testPinger) Ping(_ context.Context) error { return p.pingErr }

var _ analyzer.Client = (*mock.Client)(nil)

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(mock.NewClient(), &testPinger{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["analyzer"])
	assert.Equal(t, "ok", services["history"])
}

func TestHealthHandler_AnalyzerDegraded(t *testing.T) {
	h := healthHandler(mock.NewFailingClient(analyzer.ErrNetwork), &testPinger{})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DEGRADED", errObj["code"])
	details := errObj["details"].(map[string]any)
	assert.Equal(t, "degraded", details["analyzer"])
	assert.Equal(t, "ok", details["history"])
}

func TestHealthHandler_HistoryDegraded(t *testing.T) {
	h := healthHandler(mock.NewClient(), &testPinger{pingErr: errors.New("database is locked")})

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnInvalidConfig(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "localstorage")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnMissingRedisURL(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "redis")
	t.Setenv("REDIS_URL", "")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")
}

func TestRun_FailsOnInvalidRedisURL(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "redis")
	t.Setenv("REDIS_URL", "not-a-redis-url")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open history")
}

func TestRun_FailsOnUnwritableSQLitePath(t *testing.T) {
	t.Setenv("HISTORY_BACKEND", "sqlite")
	t.Setenv("HISTORY_SQLITE_PATH", filepath.Join(t.TempDir(), "missing", "dir", "history.db"))

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open history")
}

// ─── shutdown timeout constant test ─────────────────────────────────────────

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
