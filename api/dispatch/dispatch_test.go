package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coredispatch "github.com/kilianp07/gridshed/core/dispatch"
	"github.com/kilianp07/gridshed/core/dispatch/logging"
	"github.com/kilianp07/gridshed/core/grid"
	"github.com/kilianp07/gridshed/core/model"
	"github.com/kilianp07/gridshed/core/prediction"
	"github.com/kilianp07/gridshed/core/priority"
	"github.com/kilianp07/gridshed/infra/logger"
)

func newManager(t *testing.T) *coredispatch.DecisionManager {
	t.Helper()
	reg := priority.NewRegistry(nil, nil, nil)
	m, err := coredispatch.NewDecisionManager(reg, coredispatch.PreferenceSelector{}, coredispatch.PriorityAllocator{}, coredispatch.Config{}, logger.NopLogger{}, nil)
	require.NoError(t, err)
	return m
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestDecisionHandler(t *testing.T) {
	h := NewDecisionHandler(newManager(t))
	rr := post(t, h, "/api/decisions", `{
		"snapshot": {"solar_kw": 6, "wind_kw": 2, "battery_pct": 80},
		"circuits": [{"id": "MCB_1", "power_kw": 5}, {"id": "MCB_2", "power_kw": 2}, {"id": "MCB_3", "power_kw": 2}]
	}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var d model.Decision
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&d))
	assert.Equal(t, model.SourceSolar, d.SelectedSource)
	assert.Equal(t, 8.0, d.TotalAvailableKW)
	assert.Equal(t, model.StatusOff, d.Statuses["MCB_3"])
	assert.InDelta(t, 1.0, d.RemainingKW, 1e-9)
	assert.True(t, d.DemandExceedsSupply)
	assert.Equal(t, []string{"MCB_3"}, d.Shed())
}

func TestDecisionHandlerErrors(t *testing.T) {
	h := NewDecisionHandler(newManager(t))
	cases := map[string]struct {
		body string
		want int
	}{
		"bad json":       {`{`, http.StatusBadRequest},
		"no circuits":    {`{"snapshot":{}, "circuits":[]}`, http.StatusBadRequest},
		"negative draw":  {`{"circuits":[{"id":"MCB_1","power_kw":-1}]}`, http.StatusBadRequest},
		"duplicate id":   {`{"circuits":[{"id":"A","power_kw":1},{"id":"A","power_kw":1}]}`, http.StatusBadRequest},
		"battery range":  {`{"snapshot":{"battery_pct":120},"circuits":[{"id":"A","power_kw":1}]}`, http.StatusBadRequest},
		"bad snapshot":   {`{"snapshot":{"solar_kw":"x"},"circuits":[]}`, http.StatusBadRequest},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			rr := post(t, h, "/api/decisions", c.body)
			assert.Equal(t, c.want, rr.Code, rr.Body.String())
			assert.Contains(t, rr.Body.String(), `"error"`)
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/api/decisions", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

type failingDecider struct{}

func (failingDecider) Decide(context.Context, model.PowerSnapshot, map[string]float64) (model.Decision, error) {
	return model.Decision{}, errors.New("boom")
}

func TestDecisionHandlerInternalError(t *testing.T) {
	rr := post(t, NewDecisionHandler(failingDecider{}), "/api/decisions", `{"circuits":[{"id":"A","power_kw":1}]}`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

const flatPayload = `{
	"Solar_Power(kW)": 6, "Wind_Power(kW)": 2, "DG_Power(kW)": 0, "UPS_Power(kW)": 0,
	"Battery_Percentage(%)": 55, "Total_Load_Demand(kW)": 9,
	"Critical_Load(kW)": 5, "Non_Critical_Load(kW)": 4,
	"MCB_1_Power(kW)": 5, "MCB_2_Power(kW)": 2, "MCB_3_Power(kW)": 2%s
}`

func decodeLegacy(t *testing.T, rr *httptest.ResponseRecorder) legacyResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var out legacyResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

func TestPredictHandlerGridFailure(t *testing.T) {
	h := NewPredictHandler(newManager(t), grid.NewStore())
	out := decodeLegacy(t, post(t, h, "/predict", strings.Replace(flatPayload, "%s", `, "Grid_Status": 0`, 1)))

	assert.Nil(t, out.Priority)
	assert.Equal(t, "Solar_Power(kW)", out.OptimalSource)
	assert.Equal(t, "Failure", out.GridStatus)
	pm := out.PowerManagement
	assert.Equal(t, "Solar_Power(kW)", pm.OptimalSource)
	assert.Equal(t, 8.0, pm.TotalAvailablePower)
	assert.Equal(t, map[string]int{"MCB_1": 1, "MCB_2": 1, "MCB_3": 0}, pm.MCBStatuses)
	assert.Equal(t, map[string]float64{"MCB_1": 5, "MCB_2": 2, "MCB_3": 2}, pm.MCBPowers)
	assert.InDelta(t, 1.0, pm.RemainingPower, 1e-9)
	assert.True(t, pm.DemandExceedsSupply)
	assert.Equal(t, 9.0, pm.TotalDemand)
	assert.Equal(t, 0.0, pm.SourceConsumption["Grid_Power"])
	assert.Equal(t, 6.0, pm.SourceConsumption["Solar_Power"])
}

func TestPredictHandlerUsesGridReading(t *testing.T) {
	g := grid.NewStore()
	status, v, i := 1, 230.0, 20.0
	_, err := g.Set(grid.Update{Status: &status, Voltage: &v, Current: &i})
	require.NoError(t, err)

	m := newManager(t)
	m.SetPredictor(&prediction.MockPredictor{Result: prediction.Result{PriorityScore: 0.56, SourceLabel: "Wind_Power(kW)"}})
	out := decodeLegacy(t, post(t, NewPredictHandler(m, g), "/predict", strings.Replace(flatPayload, "%s", "", 1)))

	assert.Equal(t, "Active", out.GridStatus)
	require.NotNil(t, out.Priority)
	assert.Equal(t, 0.56, *out.Priority)
	assert.Equal(t, "Grid_Power(kW)", out.OptimalSource, "an online grid overrides the advisory label")
	pm := out.PowerManagement
	assert.InDelta(t, 4.6, pm.TotalAvailablePower, 1e-9)
	assert.Equal(t, map[string]int{"MCB_1": 0, "MCB_2": 0, "MCB_3": 0}, pm.MCBStatuses)
	assert.InDelta(t, 4.6, pm.SourceConsumption["Grid_Power"], 1e-9)
}

func TestPredictHandlerPayloadGridWins(t *testing.T) {
	g := grid.NewStore()
	status := 1
	_, err := g.Set(grid.Update{Status: &status})
	require.NoError(t, err)
	out := decodeLegacy(t, post(t, NewPredictHandler(newManager(t), g), "/predict",
		strings.Replace(flatPayload, "%s", `, "Grid_Power(kW)": 50`, 1)))
	assert.Equal(t, "Failure", out.GridStatus, "Grid_Status defaults to 0 when only the power is given")
}

func TestPredictHandlerRejectsBadPayload(t *testing.T) {
	h := NewPredictHandler(newManager(t), nil)
	rr := post(t, h, "/predict", `{"Solar_Power(kW)": 1}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Wind_Power(kW)")

	rr = post(t, h, "/predict", strings.Replace(flatPayload, "%s", `, "MCB_9_Power(kW)": "lots"`, 1))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	noMCB := `{"Solar_Power(kW)": 1, "Wind_Power(kW)": 0, "DG_Power(kW)": 0, "UPS_Power(kW)": 0, "Battery_Percentage(%)": 10, "Total_Load_Demand(kW)": 0}`
	rr = post(t, h, "/predict", noMCB)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "no load data")
}

type memStore struct {
	recs []logging.LogRecord
	last logging.LogQuery
}

func (m *memStore) Append(_ context.Context, r logging.LogRecord) error {
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore) Query(_ context.Context, q logging.LogQuery) ([]logging.LogRecord, error) {
	m.last = q
	var res []logging.LogRecord
	for _, r := range m.recs {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	return res, nil
}

func (m *memStore) Close() error { return nil }

func TestHistoryHandlerAuthAndFilters(t *testing.T) {
	store := &memStore{}
	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(context.Background(), logging.LogRecord{
		ID:        "d1",
		Timestamp: ts,
		Draws:     map[string]float64{"MCB_1": 1},
		Decision:  model.Decision{ID: "d1", AllocationResult: model.AllocationResult{SelectedSource: model.SourceWind}},
	}))
	h := NewHistoryHandler(store, "tok")

	get := func(url, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, url, nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusUnauthorized, get("/api/decisions/history", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/api/decisions/history", "bad").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/api/decisions/history", "to").Code)
	assert.Equal(t, http.StatusUnauthorized, get("/api/decisions/history", "tok2").Code)

	rr := get("/api/decisions/history?circuit_id=MCB_1&source=Wind&limit=5&start=2025-03-01T00:00:00Z", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	var recs []logging.LogRecord
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "d1", recs[0].ID)
	assert.Equal(t, 5, store.last.Limit)
	require.NotNil(t, store.last.Source)
	assert.Equal(t, model.SourceWind, *store.last.Source)

	rr = get("/api/decisions/history?circuit_id=MCB_2", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rr.Body.String()))

	for _, q := range []string{"source=coal", "start=yesterday", "limit=-1"} {
		assert.Equal(t, http.StatusBadRequest, get("/api/decisions/history?"+q, "tok").Code, q)
	}
}

func TestHistoryHandlerWithoutToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/decisions/history", nil)
	rr := httptest.NewRecorder()
	NewHistoryHandler(&memStore{}, "").ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, bytes.HasPrefix(bytes.TrimSpace(rr.Body.Bytes()), []byte("[")))
}

func TestHistoryHandlerCSV(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/decisions/history?format=csv", nil)
	rr := httptest.NewRecorder()
	NewHistoryHandler(&memStore{}, "").ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rr.Body.String(), "decision_id,timestamp,source"))
}
