// Package handlers содержит HTTP обработчики для API кольца
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"ring-haptics-service/internal/biometrics"
	"ring-haptics-service/internal/cache"
	"ring-haptics-service/internal/cue"
	"ring-haptics-service/internal/metrics"
	"ring-haptics-service/internal/models"
	"ring-haptics-service/internal/store"
	"ring-haptics-service/internal/wellness"
)

const (
	defaultRecentCount = 50
	maxRecentCount     = cache.MaxRecent
)

// Handler содержит зависимости для HTTP обработчиков.
// cache и store необязательны: без них сервис работает только в памяти
type Handler struct {
	runner    *wellness.Runner
	cache     *cache.RedisCache
	store     *store.Store
	log       *zap.Logger
	startTime time.Time
}

// NewHandler создает новый обработчик
func NewHandler(runner *wellness.Runner, redisCache *cache.RedisCache, st *store.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		runner:    runner,
		cache:     redisCache,
		store:     st,
		log:       log.Named("http"),
		startTime: time.Now(),
	}
}

// LatestMetrics ответ GET /metrics/latest
type LatestMetrics struct {
	DeviceMs  uint32                 `json:"device_ms"`
	Metrics   biometrics.Metrics     `json:"metrics"`
	Coherence models.CoherencePacket `json:"coherence"`
	RRSeen    uint32                 `json:"rr_seen"`
}

// CommandResponse ответ POST /actuator
type CommandResponse struct {
	Accepted bool                   `json:"accepted"`
	Command  models.ActuatorCommand `json:"command"`
}

// SamplesHandler обрабатывает POST /samples - прием PPG-сэмплов
func (h *Handler) SamplesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/samples"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var batch models.SamplesBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.runner.Submit(batch.Samples); err != nil {
		switch {
		case errors.Is(err, wellness.ErrBatchTooLarge):
			h.fail(w, r, endpoint, err.Error(), http.StatusRequestEntityTooLarge)
		default:
			h.fail(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
		}
		return
	}

	// Кэшируем счетчик в Redis
	if h.cache != nil && len(batch.Samples) > 0 {
		if _, err := h.cache.IncrementCounterBy(cache.SamplesCounterKey, int64(len(batch.Samples))); err != nil {
			metrics.CacheMisses.Inc()
		} else {
			metrics.CacheHits.Inc()
		}
	}

	h.ok(w, r, endpoint, map[string]int{"accepted": len(batch.Samples)}, http.StatusAccepted)
}

// ActuatorHandler обрабатывает POST /actuator - внешняя команда на актуаторы
func (h *Handler) ActuatorHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/actuator"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var cmd models.ActuatorCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	accepted, err := h.runner.ApplyCommand(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
		return
	}

	status := http.StatusOK
	if !accepted {
		status = http.StatusConflict
	}
	h.ok(w, r, endpoint, CommandResponse{Accepted: accepted, Command: cmd}, status)
}

// ConfigHandler обрабатывает POST /config - конфигурация устройства
func (h *Handler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/config"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var cfg models.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	applied, err := h.runner.ApplyConfig(r.Context(), cfg)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
		return
	}

	if h.store != nil {
		if err := h.store.SaveConfig(applied); err != nil {
			h.log.Warn("Failed to persist config", zap.Error(err))
		}
		// Максимумы и тихие часы переехали в настройки подсказок
		if err := h.store.SavePreferences(h.runner.Snapshot().Preferences); err != nil {
			h.log.Warn("Failed to persist preferences", zap.Error(err))
		}
	}

	h.ok(w, r, endpoint, applied, http.StatusOK)
}

// GetPreferencesHandler обрабатывает GET /preferences
func (h *Handler) GetPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/preferences"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	h.ok(w, r, endpoint, h.runner.Snapshot().Preferences, http.StatusOK)
}

// PutPreferencesHandler обрабатывает PUT /preferences
func (h *Handler) PutPreferencesHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/preferences"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	// Частичное обновление: незаданные поля сохраняют текущее значение
	prefs := h.runner.Snapshot().Preferences
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	applied, err := h.runner.SetPreferences(r.Context(), prefs)
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
		return
	}

	if h.store != nil {
		if err := h.store.SavePreferences(applied); err != nil {
			h.log.Warn("Failed to persist preferences", zap.Error(err))
		}
	}

	h.ok(w, r, endpoint, applied, http.StatusOK)
}

// SkinTempHandler обрабатывает POST /skin-temp - показание датчика кожи
func (h *Handler) SkinTempHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/skin-temp"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var t models.SkinTemperature
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.runner.UpdateSkinTemp(r.Context(), t.Celsius); err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
		return
	}

	h.ok(w, r, endpoint, t, http.StatusOK)
}

// ClearFaultHandler обрабатывает POST /thermal/clear - снятие аварии нагревателя
func (h *Handler) ClearFaultHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/thermal/clear"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	cleared, err := h.runner.ClearThermalFault(r.Context())
	if err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
		return
	}

	status := http.StatusOK
	if !cleared {
		status = http.StatusConflict
	}
	h.ok(w, r, endpoint, map[string]bool{"cleared": cleared}, status)
}

// AutonomousHandler обрабатывает PUT /autonomous - включение автономных подсказок
func (h *Handler) AutonomousHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/autonomous"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, r, endpoint, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.runner.SetAutonomous(r.Context(), req.Enabled); err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
		return
	}

	h.ok(w, r, endpoint, req, http.StatusOK)
}

// ResetSessionHandler обрабатывает POST /session/reset - новая сенсорная сессия
func (h *Handler) ResetSessionHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/session/reset"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	if err := h.runner.Reset(r.Context()); err != nil {
		h.fail(w, r, endpoint, err.Error(), http.StatusServiceUnavailable)
		return
	}

	h.ok(w, r, endpoint, map[string]string{"session_id": h.runner.SessionID()}, http.StatusOK)
}

// LatestMetricsHandler обрабатывает GET /metrics/latest - текущая биометрия
func (h *Handler) LatestMetricsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/metrics/latest"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	s := h.runner.Snapshot()
	h.ok(w, r, endpoint, LatestMetrics{
		DeviceMs:  s.DeviceMs,
		Metrics:   s.Metrics,
		Coherence: s.Coherence,
		RRSeen:    s.RRSeen,
	}, http.StatusOK)
}

// RecentCoherenceHandler возвращает последние пакеты когерентности из кэша
func (h *Handler) RecentCoherenceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/coherence/recent"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	count := int64(defaultRecentCount)
	if countStr := r.URL.Query().Get("count"); countStr != "" {
		if c, err := strconv.ParseInt(countStr, 10, 64); err == nil && c > 0 && c <= maxRecentCount {
			count = c
		}
	}

	if h.cache == nil {
		h.fail(w, r, endpoint, "Cache not available", http.StatusServiceUnavailable)
		return
	}

	events, err := h.cache.RecentCoherence(count)
	if err != nil {
		h.fail(w, r, endpoint, "Failed to get coherence: "+err.Error(), http.StatusInternalServerError)
		return
	}

	h.ok(w, r, endpoint, events, http.StatusOK)
}

// CueStatsHandler обрабатывает GET /cues/stats
func (h *Handler) CueStatsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/cues/stats"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	s := h.runner.Snapshot()
	response := struct {
		cue.Stats
		LastTypeName string           `json:"last_type_name"`
		Playing      string           `json:"playing"`
		Recent       []wellness.Event `json:"recent,omitempty"`
	}{
		Stats:        s.Cues,
		LastTypeName: s.Cues.LastType.String(),
		Playing:      s.Playing.String(),
	}

	if h.cache != nil {
		if recent, err := h.cache.RecentCues(10); err == nil {
			response.Recent = recent
		}
	}

	h.ok(w, r, endpoint, response, http.StatusOK)
}

// HealthHandler обрабатывает GET /health - проверка здоровья
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	redisStatus := "disconnected"
	if h.cache != nil && h.cache.Ping() == nil {
		redisStatus = "connected"
	}
	storeStatus := "disabled"
	if h.store != nil {
		storeStatus = "open"
		if h.store.Ping() != nil {
			storeStatus = "closed"
		}
	}

	status := models.HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Redis:     redisStatus,
		Store:     storeStatus,
		Uptime:    time.Since(h.startTime).String(),
	}

	h.respondJSON(w, status, http.StatusOK)
}

// StatsHandler обрабатывает GET /stats - статистика сервиса
func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/stats"
	timer := prometheus.NewTimer(metrics.RequestDuration.WithLabelValues(endpoint, r.Method))
	defer timer.ObserveDuration()

	// Обновляем метрику горутин
	goroutines := runtime.NumGoroutine()
	metrics.ActiveGoroutines.Set(float64(goroutines))

	response := h.runner.Stats()
	response.ActiveGoroutine = goroutines

	if h.cache != nil {
		response.CuesStored, _ = h.cache.GetCounter(cache.CuesCounterKey)
	}

	h.ok(w, r, endpoint, response, http.StatusOK)
}

func (h *Handler) ok(w http.ResponseWriter, r *http.Request, endpoint string, data interface{}, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	h.respondJSON(w, data, status)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, endpoint, message string, status int) {
	metrics.RequestsTotal.WithLabelValues(endpoint, r.Method, strconv.Itoa(status)).Inc()
	h.respondError(w, message, status)
}

// respondJSON отправляет JSON ответ
func (h *Handler) respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError отправляет ошибку в JSON формате
func (h *Handler) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
