package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ring-haptics-service/internal/cache"
	"ring-haptics-service/internal/cue"
	"ring-haptics-service/internal/models"
	"ring-haptics-service/internal/store"
	"ring-haptics-service/internal/wellness"
)

type testEnv struct {
	router *mux.Router
	runner *wellness.Runner
	cache  *cache.RedisCache
	store  *store.Store
}

func setup(t *testing.T) *testEnv {
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })

	st, err := store.Open("", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	runner := wellness.NewRunner(wellness.RunnerConfig{Options: wellness.DefaultOptions(), BufferSize: 256}, zap.NewNop())
	runner.Start()
	t.Cleanup(runner.Stop)

	h := NewHandler(runner, c, st, zap.NewNop())
	return &testEnv{router: NewRouter(h, nil), runner: runner, cache: c, store: st}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestSamplesHandler(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/samples", `{"samples":[{"value":1.0,"ts_ms":0},{"value":1.1,"ts_ms":10},{"value":1.2,"ts_ms":20}]}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]int
	decode(t, rec, &resp)
	assert.Equal(t, 3, resp["accepted"])

	n, err := env.cache.GetCounter(cache.SamplesCounterKey)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	rec = env.do(t, http.MethodPost, "/samples", `{"samples":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var big bytes.Buffer
	big.WriteString(`{"samples":[`)
	for i := 0; i <= wellness.MaxBatchSamples; i++ {
		if i > 0 {
			big.WriteString(",")
		}
		big.WriteString(`{"value":1,"ts_ms":0}`)
	}
	big.WriteString(`]}`)
	rec = env.do(t, http.MethodPost, "/samples", big.String())
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestActuatorHandler(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/actuator", `{"thermal_intensity":50,"thermal_duration_s":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CommandResponse
	decode(t, rec, &resp)
	assert.True(t, resp.Accepted)
	assert.Equal(t, uint8(50), resp.Command.ThermalIntensity)

	// 1..4% is below the perceptible floor
	rec = env.do(t, http.MethodPost, "/actuator", `{"thermal_intensity":2,"thermal_duration_s":5}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, "/actuator", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConfigHandler_ClampsAndPersists(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/config", `{"streaming_rate_hz":50,"coherence_update_s":15,"thermal_max_pct":60,"vibration_max_pct":40,"quiet_hours_start":23,"quiet_hours_end":6,"led_brightness":50}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cfg models.Config
	decode(t, rec, &cfg)
	assert.Equal(t, uint8(10), cfg.StreamingRateHz)

	saved, err := env.store.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg, saved)

	prefs, err := env.store.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, uint8(60), prefs.MaxThermalPct)
	assert.Equal(t, uint8(40), prefs.MaxVibPct)
	assert.Equal(t, uint8(23), prefs.QuietStartHour)
}

func TestPreferencesHandlers(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var prefs cue.Preferences
	decode(t, rec, &prefs)
	assert.Equal(t, cue.DefaultPreferences(), prefs)

	// Partial update keeps the other fields
	rec = env.do(t, http.MethodPut, "/preferences", `{"max_vib_pct":150,"sensitivity":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decode(t, rec, &prefs)
	assert.Equal(t, uint8(100), prefs.MaxVibPct)
	assert.Equal(t, cue.SensitivitySubtle, prefs.Sensitivity)
	assert.Equal(t, uint8(80), prefs.MaxThermalPct)

	saved, err := env.store.LoadPreferences()
	require.NoError(t, err)
	assert.Equal(t, prefs, saved)
}

func TestSkinTempAndClearFault(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/skin-temp", `{"celsius":34}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/thermal/clear", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]bool
	decode(t, rec, &resp)
	assert.False(t, resp["cleared"])
}

func TestAutonomousHandler(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPut, "/autonomous", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, env.runner.Snapshot().Autonomous)
}

func TestLatestMetricsHandler(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/metrics/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp LatestMetrics
	decode(t, rec, &resp)
	assert.Equal(t, uint32(0), resp.RRSeen)
	assert.Equal(t, uint8(50), resp.Coherence.ConfidencePct)
}

func TestResetSessionHandler(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodPost, "/session/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decode(t, rec, &resp)
	assert.Equal(t, env.runner.SessionID(), resp["session_id"])
	assert.Equal(t, uint32(0), env.runner.Snapshot().RRSeen)
}

func TestRecentCoherenceHandler(t *testing.T) {
	env := setup(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, env.cache.CacheEvent(wellness.Event{
			Type:      wellness.EventCoherence,
			DeviceMs:  uint32(i+1) * 15000,
			Coherence: &models.CoherencePacket{StressLevel: uint8(40 + i)},
		}))
	}

	rec := env.do(t, http.MethodGet, "/coherence/recent?count=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var events []wellness.Event
	decode(t, rec, &events)
	require.Len(t, events, 2)
	assert.Equal(t, uint32(45000), events[0].DeviceMs)

	// Out-of-range count falls back to the default
	rec = env.do(t, http.MethodGet, "/coherence/recent?count=-4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &events)
	assert.Len(t, events, 3)
}

func TestRecentCoherenceHandler_NoCache(t *testing.T) {
	runner := wellness.NewRunner(wellness.RunnerConfig{}, nil)
	router := NewRouter(NewHandler(runner, nil, nil, nil), nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/coherence/recent", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCueStatsHandler(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/cues/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	decode(t, rec, &resp)
	assert.Equal(t, float64(0), resp["generated"])
	assert.Equal(t, "none", resp["last_type_name"])
	assert.Equal(t, "none", resp["playing"])
}

func TestHealthAndStats(t *testing.T) {
	env := setup(t)

	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health models.HealthStatus
	decode(t, rec, &health)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Redis)
	assert.Equal(t, "open", health.Store)

	require.Equal(t, http.StatusAccepted, env.do(t, http.MethodPost, "/samples", `{"samples":[{"value":1,"ts_ms":0}]}`).Code)

	rec = env.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats models.StatsResponse
	decode(t, rec, &stats)
	assert.Equal(t, int64(1), stats.SamplesTotal)
	assert.True(t, stats.AutonomousMode)
	assert.Greater(t, stats.ActiveGoroutine, 0)
}

func TestPrometheusEndpoint(t *testing.T) {
	env := setup(t)

	env.do(t, http.MethodGet, "/stats", "")
	rec := env.do(t, http.MethodGet, "/prometheus", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ring_request_duration_seconds")
}
