// Package metrics реализует экспорт метрик в Prometheus
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"ring-haptics-service/internal/biometrics"
)

// Prometheus метрики
var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ring_requests_total",
			Help: "Total number of requests processed",
		},
		[]string{"endpoint", "method", "status"},
	)

	// RequestDuration длительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ring_request_duration_seconds",
			Help:    "Request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"endpoint", "method"},
	)

	// SamplesReceived количество полученных PPG-сэмплов
	SamplesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ring_samples_received_total",
			Help: "Total number of PPG samples received",
		},
	)

	// SamplesDropped сэмплы, не принятые из-за переполненной очереди
	SamplesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ring_samples_dropped_total",
			Help: "Total number of PPG sample batches dropped on a full queue",
		},
	)

	// RRProcessed RR-интервалы по результату проверки на артефакт
	RRProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ring_rr_processed_total",
			Help: "RR intervals fed to the estimator by result",
		},
		[]string{"result"},
	)

	// StressScore сглаженный стресс 0..1
	StressScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ring_stress_score",
			Help: "Smoothed stress score in [0,1]",
		},
	)

	// CoherencePct когерентность в процентах
	CoherencePct = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ring_coherence_pct",
			Help: "Coherence percentage derived from stress",
		},
	)

	// RMSSD текущий RMSSD
	RMSSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ring_rmssd_ms",
			Help: "Incremental RMSSD in milliseconds",
		},
	)

	// BaselineRMSSD персональный baseline
	BaselineRMSSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ring_baseline_rmssd_ms",
			Help: "Adaptive personal RMSSD baseline in milliseconds",
		},
	)

	// MeanRR среднее RR
	MeanRR = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ring_mean_rr_ms",
			Help: "Exponential moving average of RR intervals",
		},
	)

	// CuesGenerated сработавшие подсказки по типу
	CuesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ring_cues_generated_total",
			Help: "Total number of cues generated by type",
		},
		[]string{"type"},
	)

	// CuesSuppressed подавленные гейтами оценки
	CuesSuppressed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ring_cues_suppressed",
			Help: "Cue evaluations suppressed by gates since start",
		},
	)

	// PatternsPlayed запущенные паттерны плеера
	PatternsPlayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ring_patterns_played_total",
			Help: "Signature patterns started by name",
		},
		[]string{"pattern"},
	)

	// ActuatorCommands внешние команды по результату
	ActuatorCommands = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ring_actuator_commands_total",
			Help: "External actuator commands by result",
		},
		[]string{"result"},
	)

	// ThermalFaults переходы нагревателя в аварию по коду
	ThermalFaults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ring_thermal_faults_total",
			Help: "Thermal driver faults by code",
		},
		[]string{"fault"},
	)

	// EventsDropped события, потерянные при переполненном канале
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ring_events_dropped_total",
			Help: "Runner events dropped because the results channel was full",
		},
	)

	// PublishErrors ошибки публикации телеметрии по транспорту
	PublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ring_publish_errors_total",
			Help: "Telemetry publish failures by sink",
		},
		[]string{"sink"},
	)

	// CacheHits успешные записи в кэш
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ring_cache_hits_total",
			Help: "Total number of successful cache writes",
		},
	)

	// CacheMisses неудачные записи в кэш
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ring_cache_misses_total",
			Help: "Total number of failed cache writes",
		},
	)

	// WebsocketClients подключенные клиенты живого потока
	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ring_websocket_clients",
			Help: "Number of connected websocket clients",
		},
	)

	// ActiveGoroutines количество активных горутин
	ActiveGoroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ring_active_goroutines",
			Help: "Number of active goroutines",
		},
	)

	// TickLatency время одного цикла обработки
	TickLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ring_tick_latency_seconds",
			Help:    "Core tick computation latency in seconds",
			Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
		},
	)
)

// UpdateBiometrics обновляет биометрические gauges
func UpdateBiometrics(m biometrics.Metrics) {
	StressScore.Set(m.StressScore)
	CoherencePct.Set(float64(m.CoherencePct()))
	RMSSD.Set(m.RMSSD)
	BaselineRMSSD.Set(m.BaselineRMSSD)
	MeanRR.Set(m.MeanRRMs)
}

// ObserveRR учитывает поданные в оценщик RR
func ObserveRR(accepted, rejected int) {
	if accepted > 0 {
		RRProcessed.WithLabelValues("accepted").Add(float64(accepted))
	}
	if rejected > 0 {
		RRProcessed.WithLabelValues("rejected").Add(float64(rejected))
	}
}

// ObserveCommand учитывает внешнюю команду
func ObserveCommand(accepted bool) {
	if accepted {
		ActuatorCommands.WithLabelValues("accepted").Inc()
		return
	}
	ActuatorCommands.WithLabelValues("rejected").Inc()
}
