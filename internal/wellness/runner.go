package wellness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"ring-haptics-service/internal/actuator"
	"ring-haptics-service/internal/biometrics"
	"ring-haptics-service/internal/cue"
	"ring-haptics-service/internal/metrics"
	"ring-haptics-service/internal/models"
	"ring-haptics-service/internal/signature"
	"ring-haptics-service/internal/tracing"
)

const (
	// TickInterval период цикла ядра
	TickInterval = 10 * time.Millisecond
	// DeviceStateIntervalMs период публикации состояния устройства
	DeviceStateIntervalMs = 5000
	// MaxBatchSamples столько сэмплов принимается за один Submit (10 с при 100 Гц)
	MaxBatchSamples = 1000
)

// ErrStopped runner остановлен
var ErrStopped = errors.New("wellness: runner stopped")

var (
	// ErrBatchTooLarge пакет сэмплов больше MaxBatchSamples
	ErrBatchTooLarge = errors.New("wellness: sample batch too large")
	// ErrQueueFull очередь сэмплов переполнена
	ErrQueueFull = errors.New("wellness: sample queue full")
)

// EventType тип события телеметрии
type EventType string

const (
	EventCue         EventType = "cue"
	EventRR          EventType = "rr"
	EventCoherence   EventType = "coherence"
	EventDeviceState EventType = "device_state"
	EventCommand     EventType = "command"
	EventConfig      EventType = "config"
)

// Event событие для транспортов. Заполнено ровно одно поле полезной нагрузки
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Type      EventType `json:"type"`
	DeviceMs  uint32    `json:"device_ms"`
	Time      time.Time `json:"time"`

	Decision    *Decision               `json:"decision,omitempty"`
	RR          *models.RRBatch         `json:"rr,omitempty"`
	Coherence   *models.CoherencePacket `json:"coherence,omitempty"`
	DeviceState *models.DeviceState     `json:"device_state,omitempty"`
	Command     *models.ActuatorCommand `json:"command,omitempty"`
	Config      *models.Config          `json:"config,omitempty"`
	Accepted    bool                    `json:"accepted,omitempty"`
}

// Snapshot состояние ядра на последний тик, для чтения из HTTP
type Snapshot struct {
	SessionID     string                 `json:"session_id"`
	DeviceMs      uint32                 `json:"device_ms"`
	Metrics       biometrics.Metrics     `json:"metrics"`
	Coherence     models.CoherencePacket `json:"coherence"`
	DeviceState   models.DeviceState     `json:"device_state"`
	Actuators     actuator.Status        `json:"actuators"`
	Playing       signature.Pattern      `json:"playing"`
	Cues          cue.Stats              `json:"cues"`
	Config        models.Config          `json:"config"`
	Preferences   cue.Preferences        `json:"preferences"`
	RRSeen        uint32                 `json:"rr_seen"`
	Autonomous    bool                   `json:"autonomous"`
	SignatureFeel bool                   `json:"signature_feel"`
}

// RunnerConfig параметры Runner
type RunnerConfig struct {
	Options    Options
	BufferSize int
	// Streaming публиковать RR и пакеты когерентности
	Streaming bool
	// Now источник времени, по умолчанию time.Now
	Now func() time.Time
}

type request struct {
	fn   func(m *Manager, nowMs uint32)
	done chan struct{}
}

// Runner владеет Manager из одной горутины. Все изменения ядра идут через каналы
type Runner struct {
	manager   *Manager
	log       *zap.Logger
	tracer    trace.Tracer
	sessionID string
	now       func() time.Time
	start     time.Time
	streaming bool

	samplesChan chan []models.Sample
	reqChan     chan request
	resultsChan chan Event
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup

	mu       sync.RWMutex
	snapshot Snapshot

	samplesTotal atomic.Int64
	rrAccepted   atomic.Int64
	dropped      atomic.Uint64

	hour           int
	lastRRMs       uint32
	lastCoherentMs uint32
	lastStateMs    uint32
	lastValid      uint32
	lastSeen       uint32
	lastSuppressed uint32
	faulted        bool
}

// NewRunner создает runner с новой сессией
func NewRunner(cfg RunnerConfig, log *zap.Logger) *Runner {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Runner{
		manager:     NewManager(cfg.Options),
		log:         log,
		tracer:      tracing.Tracer(),
		sessionID:   uuid.NewString(),
		now:         cfg.Now,
		start:       cfg.Now(),
		streaming:   cfg.Streaming,
		samplesChan: make(chan []models.Sample, cfg.BufferSize),
		reqChan:     make(chan request),
		resultsChan: make(chan Event, cfg.BufferSize),
		stopChan:    make(chan struct{}),
		hour:        -1,
	}
	r.manager.Connect()
	r.manager.SetStreaming(cfg.Streaming)
	r.refreshSnapshot(0)
	return r
}

// SessionID идентификатор сессии, проставляется в события
func (r *Runner) SessionID() string {
	return r.sessionID
}

// Start запускает горутину цикла
func (r *Runner) Start() {
	r.log.Info("Runner started",
		zap.String("session_id", r.sessionID),
		zap.Bool("autonomous", r.manager.Autonomous()),
		zap.Bool("signature_feel", r.manager.SignatureFeel()))
	r.wg.Add(1)
	go r.run()
}

func (r *Runner) run() {
	defer r.wg.Done()
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case batch := <-r.samplesChan:
			r.handleSamples(batch)
		case req := <-r.reqChan:
			req.fn(r.manager, r.clock())
			close(req.done)
		case <-ticker.C:
			r.step(r.clock())
		case <-r.stopChan:
			r.manager.Disconnect()
			return
		}
	}
}

// clock время устройства в мс от старта, с переполнением как у uint32
func (r *Runner) clock() uint32 {
	return uint32(r.now().Sub(r.start).Milliseconds())
}

func (r *Runner) handleSamples(batch []models.Sample) {
	for _, s := range batch {
		r.manager.ProcessSample(s.Value, s.TimestampMs)
	}
}

// step один тик ядра плюс публикация событий и метрик
func (r *Runner) step(nowMs uint32) {
	tickStart := time.Now()

	if h := r.now().Hour(); h != r.hour {
		r.hour = h
		r.manager.SetHour(uint8(h))
	}

	d, triggered := r.manager.Tick(nowMs)
	metrics.TickLatency.Observe(time.Since(tickStart).Seconds())

	if d.Evaluated {
		r.traceEvaluation(tickStart, d, triggered)
	}
	if triggered {
		metrics.CuesGenerated.WithLabelValues(d.Output.Type.String()).Inc()
		if d.Pattern != signature.None {
			metrics.PatternsPlayed.WithLabelValues(d.Pattern.String()).Inc()
		}
		r.log.Info("Cue triggered",
			zap.Stringer("type", d.Output.Type),
			zap.Stringer("priority", d.Output.Priority),
			zap.Stringer("pattern", d.Pattern),
			zap.Bool("direct", d.Direct),
			zap.Uint8("stress", d.Input.StressLevel))
		dec := d
		r.publish(Event{Type: EventCue, DeviceMs: nowMs, Decision: &dec})
	}

	r.observe()
	r.publishPeriodic(nowMs)
	r.refreshSnapshot(nowMs)
}

func (r *Runner) traceEvaluation(start time.Time, d Decision, triggered bool) {
	_, span := r.tracer.Start(context.Background(), "cue.evaluate", trace.WithTimestamp(start))
	span.SetAttributes(
		attribute.String("session.id", r.sessionID),
		attribute.Int("cue.stress", int(d.Input.StressLevel)),
		attribute.Int("cue.coherence", int(d.Input.CoherencePct)),
		attribute.Int("cue.confidence", int(d.Input.ConfidencePct)),
		attribute.Bool("cue.triggered", triggered),
	)
	if triggered {
		span.SetAttributes(
			attribute.String("cue.type", d.Output.Type.String()),
			attribute.String("cue.pattern", d.Pattern.String()),
		)
	}
	span.End()
}

// observe переносит счетчики ядра в prometheus
func (r *Runner) observe() {
	m := r.manager.Metrics()
	seen := r.manager.RRSeen()
	if seen != r.lastSeen {
		accepted := int(m.ValidSamples - r.lastValid)
		if seen < r.lastSeen || m.ValidSamples < r.lastValid {
			// после Reset
			accepted = int(m.ValidSamples)
			r.lastSeen, r.lastValid = 0, 0
		}
		rejected := int(seen-r.lastSeen) - accepted
		metrics.ObserveRR(accepted, rejected)
		metrics.UpdateBiometrics(m)
		r.rrAccepted.Add(int64(accepted))
		r.lastSeen = seen
		r.lastValid = m.ValidSamples
	}

	stats := r.manager.CueStats()
	if stats.Suppressed != r.lastSuppressed {
		metrics.CuesSuppressed.Set(float64(stats.Suppressed))
		r.lastSuppressed = stats.Suppressed
	}

	thermal := r.manager.controller.Thermal()
	faulted := thermal.State() == actuator.ThermalFaulted
	if faulted && !r.faulted {
		metrics.ThermalFaults.WithLabelValues(thermal.Fault().String()).Inc()
		r.log.Warn("Thermal fault",
			zap.Stringer("fault", thermal.Fault()),
			zap.Int8("skin_temp_c", thermal.SkinTemp()))
	}
	r.faulted = faulted
}

func (r *Runner) publishPeriodic(nowMs uint32) {
	cfg := r.manager.Config()

	if r.streaming {
		rrEvery := 1000 / uint32(cfg.StreamingRateHz)
		if nowMs-r.lastRRMs >= rrEvery {
			r.lastRRMs = nowMs
			if rr := r.manager.DrainRR(); rr != nil {
				r.publish(Event{Type: EventRR, DeviceMs: nowMs, RR: &models.RRBatch{
					SessionID:   r.sessionID,
					TimestampMs: nowMs,
					RRMs:        rr,
				}})
			}
		}

		if nowMs-r.lastCoherentMs >= uint32(cfg.CoherenceUpdateS)*1000 {
			r.lastCoherentMs = nowMs
			p := r.manager.CoherencePacket()
			r.publish(Event{Type: EventCoherence, DeviceMs: nowMs, Coherence: &p})
		}
	}

	if nowMs-r.lastStateMs >= DeviceStateIntervalMs {
		r.lastStateMs = nowMs
		s := r.manager.DeviceState(nowMs)
		r.publish(Event{Type: EventDeviceState, DeviceMs: nowMs, DeviceState: &s})
	}
}

// publish неблокирующая отправка, при переполненном канале событие теряется
func (r *Runner) publish(e Event) {
	e.ID = uuid.NewString()
	e.SessionID = r.sessionID
	e.Time = r.now()

	select {
	case r.resultsChan <- e:
	default:
		r.dropped.Add(1)
		metrics.EventsDropped.Inc()
	}
}

func (r *Runner) refreshSnapshot(nowMs uint32) {
	m := r.manager
	s := Snapshot{
		SessionID:     r.sessionID,
		DeviceMs:      nowMs,
		Metrics:       m.Metrics(),
		Coherence:     m.CoherencePacket(),
		DeviceState:   m.DeviceState(nowMs),
		Actuators:     m.ActuatorStatus(nowMs),
		Playing:       m.Playing(),
		Cues:          m.CueStats(),
		Config:        m.Config(),
		Preferences:   m.Preferences(),
		RRSeen:        m.RRSeen(),
		Autonomous:    m.Autonomous(),
		SignatureFeel: m.SignatureFeel(),
	}

	r.mu.Lock()
	r.snapshot = s
	r.mu.Unlock()
}

// Snapshot последнее опубликованное состояние
func (r *Runner) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// Submit ставит пакет сэмплов в очередь без блокировки
func (r *Runner) Submit(batch []models.Sample) error {
	if len(batch) > MaxBatchSamples {
		return ErrBatchTooLarge
	}
	if len(batch) == 0 {
		return nil
	}
	select {
	case r.samplesChan <- batch:
		r.samplesTotal.Add(int64(len(batch)))
		metrics.SamplesReceived.Add(float64(len(batch)))
		return nil
	default:
		metrics.SamplesDropped.Inc()
		return ErrQueueFull
	}
}

// exec выполняет fn в горутине runner и ждет завершения
func (r *Runner) exec(ctx context.Context, fn func(m *Manager, nowMs uint32)) error {
	done := make(chan struct{})
	select {
	case r.reqChan <- request{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.stopChan:
		return ErrStopped
	}
	<-done
	return nil
}

// ApplyCommand внешняя команда на актуаторы
func (r *Runner) ApplyCommand(ctx context.Context, cmd models.ActuatorCommand) (bool, error) {
	var accepted bool
	var nowMs uint32
	err := r.exec(ctx, func(m *Manager, now uint32) {
		nowMs = now
		accepted = m.ApplyCommand(cmd, now)
		r.refreshSnapshot(now)
	})
	if err != nil {
		return false, err
	}

	metrics.ObserveCommand(accepted)
	r.publish(Event{Type: EventCommand, DeviceMs: nowMs, Command: &cmd, Accepted: accepted})
	return accepted, nil
}

// ApplyConfig применяет конфигурацию, возвращает ее после clamp
func (r *Runner) ApplyConfig(ctx context.Context, cfg models.Config) (models.Config, error) {
	var applied models.Config
	var nowMs uint32
	err := r.exec(ctx, func(m *Manager, now uint32) {
		nowMs = now
		applied = m.ApplyConfig(cfg)
		r.refreshSnapshot(now)
	})
	if err != nil {
		return models.Config{}, err
	}

	r.publish(Event{Type: EventConfig, DeviceMs: nowMs, Config: &applied, Accepted: true})
	return applied, nil
}

// SetPreferences заменяет настройки подсказок, возвращает их после clamp
func (r *Runner) SetPreferences(ctx context.Context, p cue.Preferences) (cue.Preferences, error) {
	var applied cue.Preferences
	err := r.exec(ctx, func(m *Manager, now uint32) {
		m.SetPreferences(p)
		applied = m.Preferences()
		r.refreshSnapshot(now)
	})
	return applied, err
}

// UpdateSkinTemp показание датчика кожи
func (r *Runner) UpdateSkinTemp(ctx context.Context, tempC int8) error {
	return r.exec(ctx, func(m *Manager, now uint32) {
		m.UpdateSkinTemp(tempC)
	})
}

// ClearThermalFault снимает аварию нагревателя, если кожа остыла
func (r *Runner) ClearThermalFault(ctx context.Context) (bool, error) {
	var cleared bool
	err := r.exec(ctx, func(m *Manager, now uint32) {
		cleared = m.ClearThermalFault()
		r.refreshSnapshot(now)
	})
	return cleared, err
}

// SetAutonomous включает или выключает автономные подсказки
func (r *Runner) SetAutonomous(ctx context.Context, enabled bool) error {
	return r.exec(ctx, func(m *Manager, now uint32) {
		m.SetAutonomous(enabled)
		r.refreshSnapshot(now)
	})
}

// Reset начинает новую сенсорную сессию
func (r *Runner) Reset(ctx context.Context) error {
	return r.exec(ctx, func(m *Manager, now uint32) {
		m.Reset()
		r.refreshSnapshot(now)
	})
}

// Results канал событий
func (r *Runner) Results() <-chan Event {
	return r.resultsChan
}

// Stats счетчики runner
func (r *Runner) Stats() models.StatsResponse {
	s := r.Snapshot()
	return models.StatsResponse{
		SamplesTotal:   r.samplesTotal.Load(),
		RRAccepted:     r.rrAccepted.Load(),
		RRSeen:         s.RRSeen,
		CuesGenerated:  s.Cues.Generated,
		CuesSuppressed: s.Cues.Suppressed,
		EventsDropped:  r.dropped.Load(),
		DeviceClockMs:  s.DeviceMs,
		AutonomousMode: s.Autonomous,
		SignatureFeel:  s.SignatureFeel,
	}
}

// Stop останавливает цикл и гасит выходы. Повторный вызов безопасен
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopChan)
		r.wg.Wait()
		r.log.Info("Runner stopped", zap.Uint64("events_dropped", r.dropped.Load()))
	})
}
