package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/gridshed/config"
	"github.com/kilianp07/gridshed/core/priority"
	infrapriority "github.com/kilianp07/gridshed/infra/priority"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	def := priority.Builtin()
	require.NoError(t, infrapriority.NewFileStore(filepath.Join(dir, "default.json")).Write(def))

	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Priorities.DefaultPath = filepath.Join(dir, "default.json")
	cfg.Priorities.OverridePath = filepath.Join(dir, "state", "override.json")
	cfg.Logging.Path = filepath.Join(dir, "logs", "decisions.jsonl")
	cfg.Prediction.Backend = "heuristic"
	cfg.Dispatch.Circuits = map[string]string{"MCB_1": "hospital_equipment", "MCB_2": "auxiliary"}
	return cfg
}

func TestServiceDecisionFlow(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	_, err = os.Stat(cfg.Priorities.OverridePath)
	require.NoError(t, err, "missing override is initialised from the defaults")

	h := svc.Handler()
	req := httptest.NewRequest(http.MethodPost, "/api/decisions",
		strings.NewReader(`{"snapshot":{"solar_kw":3,"total_demand_kw":5},"circuits":[{"id":"MCB_1","power_kw":3},{"id":"MCB_2","power_kw":2}]}`))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"MCB_2":"OFF"`)
	assert.Contains(t, rr.Body.String(), `"source_label":"Solar_Power(kW)"`)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/decisions/history?circuit_id=MCB_1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"MCB_1"`)
}

func TestServicePriorityChangePersists(t *testing.T) {
	cfg := testConfig(t)
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	rr := httptest.NewRecorder()
	svc.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/priorities/non_critical/auxiliary", strings.NewReader(`{"priority":0}`)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	stored, err := infrapriority.NewFileStore(cfg.Priorities.OverridePath).Read()
	require.NoError(t, err)
	assert.Equal(t, 0, stored.NonCritical[stored.NonCritical.Index("auxiliary")].Priority)
}

func TestServiceFallsBackToBuiltin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Priorities.DefaultPath = filepath.Join(t.TempDir(), "missing.json")
	svc, err := New(cfg)
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()
	assert.Equal(t, priority.Builtin(), svc.Registry.Priorities().Current)
}

func TestServiceRunStopsOnCancel(t *testing.T) {
	svc, err := New(testConfig(t))
	require.NoError(t, err)
	defer func() { assert.NoError(t, svc.Close()) }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	cfg := testConfig(t)
	cfg.Logging.Backend = "csv"
	_, err := New(cfg)
	assert.Error(t, err)
}
