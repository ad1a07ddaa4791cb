// Package wellness связывает ядро кольца в один цикл обработки:
// PPG -> RR -> биометрия -> решение о подсказке -> паттерн или прямая команда -> актуаторы.
// Manager однопоточный, Runner владеет им из одной горутины
package wellness

import (
	"ring-haptics-service/internal/actuator"
	"ring-haptics-service/internal/biometrics"
	"ring-haptics-service/internal/cue"
	"ring-haptics-service/internal/models"
	"ring-haptics-service/internal/ppg"
	"ring-haptics-service/internal/ringbuf"
	"ring-haptics-service/internal/signature"
)

const (
	// EvalIntervalMs минимальный интервал между автономными оценками
	EvalIntervalMs = 15000
	// MinValidForCue столько валидных RR нужно до первой оценки (~30 с)
	MinValidForCue = 30
	// HighConfidenceSamples после стольких валидных RR уверенность оценки 90
	HighConfidenceSamples = 60
	// RRQueueSize емкость очереди принятых RR для телеметрии
	RRQueueSize = 16

	stabilityPct         = 80
	defaultBatteryPct    = 85
	packetConfidenceHigh = 90
	packetConfidenceLow  = 50
)

// Options параметры Manager
type Options struct {
	// Autonomous включает автономные подсказки
	Autonomous bool
	// SignatureFeel выражает подсказки паттернами плеера, иначе прямой командой контроллеру
	SignatureFeel bool
	ThermalPWM    actuator.PWM
	VibrationPWM  actuator.PWM
}

// DefaultOptions автономный режим с паттернами
func DefaultOptions() Options {
	return Options{Autonomous: true, SignatureFeel: true}
}

// Decision результат автономной оценки в одном тике
type Decision struct {
	Input   cue.Input         `json:"input"`
	Output  cue.Output        `json:"output"`
	Pattern signature.Pattern `json:"pattern"`
	Direct  bool              `json:"direct"`

	// Evaluated вход собран и прошел через движок в этом тике
	Evaluated bool `json:"evaluated"`
}

// Manager владеет всеми компонентами ядра
type Manager struct {
	detector   *ppg.Detector
	metrics    biometrics.Metrics
	engine     *cue.Engine
	controller *actuator.Controller
	player     *signature.Player
	rr         *ringbuf.Ring[float64]

	cfg           models.Config
	autonomous    bool
	signatureFeel bool

	rrSeen      uint32
	lastCheckMs uint32

	connected bool
	streaming bool
}

// NewManager собирает ядро с чистым состоянием
func NewManager(opts Options) *Manager {
	thermal := actuator.NewThermal(opts.ThermalPWM)
	vibration := actuator.NewVibration(opts.VibrationPWM)

	return &Manager{
		detector:      ppg.NewDetector(),
		metrics:       biometrics.NewMetrics(),
		engine:        cue.NewEngine(),
		controller:    actuator.NewController(thermal, vibration),
		player:        signature.NewPlayer(vibration, thermal),
		rr:            ringbuf.New[float64](RRQueueSize),
		autonomous:    opts.Autonomous,
		signatureFeel: opts.SignatureFeel,
		cfg:           models.DefaultConfig(),
	}
}

// ProcessSample передает PPG-сэмпл детектору. RR забираются в Tick
func (m *Manager) ProcessSample(sample float64, tsMs uint32) {
	m.detector.ProcessSample(sample, tsMs)
}

// Tick один цикл: выгрузка RR в оценщик, автономная оценка не чаще раза в 15 с,
// затем тики плеера и контроллера. Команда применяется до тика в том же цикле
func (m *Manager) Tick(nowMs uint32) (Decision, bool) {
	fresh := false
	for {
		rr, ok := m.detector.PopRR()
		if !ok {
			break
		}
		m.rrSeen++
		if m.metrics.ProcessRR(rr) {
			fresh = true
			m.rr.Push(rr)
		}
	}

	var d Decision
	triggered := false
	if fresh && m.autonomous && nowMs-m.lastCheckMs >= EvalIntervalMs {
		m.lastCheckMs = nowMs
		if m.metrics.ValidSamples > MinValidForCue {
			d.Input = m.cueInput(nowMs)
			d.Evaluated = true
			if out, ok := m.engine.Generate(d.Input); ok {
				d.Output = out
				d.Pattern, d.Direct = m.express(out, nowMs)
				triggered = true
			}
		}
	}

	m.player.Tick(nowMs)
	m.controller.Tick(nowMs)
	return d, triggered
}

func (m *Manager) cueInput(nowMs uint32) cue.Input {
	confidence := uint8(70)
	if m.metrics.ValidSamples > HighConfidenceSamples {
		confidence = 90
	}

	var artifact uint8
	if m.rrSeen > 0 {
		artifact = uint8((1 - float64(m.metrics.ValidSamples)/float64(m.rrSeen)) * 100)
	}

	microVar := m.metrics.RMSSD * 10
	if microVar > 65535 {
		microVar = 65535
	}

	return cue.Input{
		TimestampMs:     nowMs,
		StressLevel:     m.metrics.StressPct(),
		CoherencePct:    m.metrics.CoherencePct(),
		ConfidencePct:   confidence,
		MicroVarPct100:  uint16(microVar),
		ArtifactRatePct: artifact,
		StabilityPct:    stabilityPct,
	}
}

// express при активной внешней команде подсказка идет через арбитраж контроллера
func (m *Manager) express(out cue.Output, nowMs uint32) (signature.Pattern, bool) {
	if m.signatureFeel && m.controller.Active().Type == actuator.TypeNone {
		if p := signature.Execute(m.player, out); p != signature.None {
			return p, false
		}
	}
	m.controller.ApplyCue(out.ThermalIntensity, out.ThermalDurationS, out.VibPattern, out.VibIntensity, nowMs)
	return signature.None, true
}

// PopRR выдает самый старый принятый RR из очереди телеметрии
func (m *Manager) PopRR() (float64, bool) {
	return m.rr.Pop()
}

// DrainRR выдает все накопленные RR
func (m *Manager) DrainRR() []float64 {
	if m.rr.Len() == 0 {
		return nil
	}
	out := m.rr.Values()
	m.rr.Reset()
	return out
}

// Metrics копия текущей биометрии
func (m *Manager) Metrics() biometrics.Metrics {
	return m.metrics
}

// RRSeen число RR, поданных в оценщик, включая отбракованные
func (m *Manager) RRSeen() uint32 {
	return m.rrSeen
}

// CoherencePacket снимок для периодической телеметрии
func (m *Manager) CoherencePacket() models.CoherencePacket {
	confidence := uint8(packetConfidenceLow)
	if m.metrics.ValidSamples > MinValidForCue {
		confidence = packetConfidenceHigh
	}
	variability := m.metrics.RMSSD
	if variability > 100 {
		variability = 100
	}
	return models.CoherencePacket{
		StressLevel:      m.metrics.StressPct(),
		CoherencePct:     m.metrics.CoherencePct(),
		ConfidencePct:    confidence,
		VariabilityLevel: uint8(variability),
		MeanRRMs:         uint16(m.metrics.MeanRRMs),
		RMSSDMs:          uint16(m.metrics.RMSSD),
	}
}

// DeviceState состояние устройства. Авария нагревателя выставляет бит 3
func (m *Manager) DeviceState(nowMs uint32) models.DeviceState {
	thermal := m.controller.Thermal()

	var flags uint8
	if thermal.State() == actuator.ThermalFaulted {
		flags |= models.ErrorThermalFault
	}
	conn := models.ConnectionAdvertising
	if m.connected {
		conn = models.ConnectionConnected
	}
	var streaming uint8
	if m.streaming {
		streaming = models.StreamingRR | models.StreamingCoherence
	}

	return models.DeviceState{
		BatteryPct:      defaultBatteryPct,
		ConnectionState: conn,
		StreamingActive: streaming,
		SkinTempC:       thermal.SkinTemp(),
		ErrorFlags:      flags,
		UptimeMin:       uint16(nowMs / 60000),
	}
}

// ApplyCommand внешняя команда: обрезается по максимумам конфигурации,
// останавливает плеер и уходит в контроллер с приоритетом High
func (m *Manager) ApplyCommand(cmd models.ActuatorCommand, nowMs uint32) bool {
	cmd = cmd.LimitTo(m.cfg)
	m.player.StopImmediate()
	return m.controller.ApplyBLE(
		cmd.ThermalIntensity,
		cmd.ThermalDurationS,
		actuator.VibPattern(cmd.VibrationPattern),
		cmd.VibrationIntensity,
		nowMs,
	)
}

// ApplyConfig принимает конфигурацию с clamp и переносит максимумы и тихие часы в настройки подсказок
func (m *Manager) ApplyConfig(cfg models.Config) models.Config {
	cfg = cfg.Clamp()
	m.cfg = cfg

	prefs := m.engine.Preferences()
	prefs.MaxThermalPct = cfg.ThermalMaxPct
	prefs.MaxVibPct = cfg.VibrationMaxPct
	prefs.QuietStartHour = cfg.QuietHoursStart
	prefs.QuietEndHour = cfg.QuietHoursEnd
	m.engine.SetPreferences(prefs)
	return cfg
}

// Config текущая конфигурация
func (m *Manager) Config() models.Config {
	return m.cfg
}

// Preferences настройки подсказок
func (m *Manager) Preferences() cue.Preferences {
	return m.engine.Preferences()
}

// SetPreferences заменяет настройки подсказок целиком
func (m *Manager) SetPreferences(p cue.Preferences) {
	m.engine.SetPreferences(p)
}

// SetAutonomous включает или выключает автономные подсказки
func (m *Manager) SetAutonomous(enabled bool) {
	m.autonomous = enabled
}

// Autonomous включен ли автономный режим
func (m *Manager) Autonomous() bool {
	return m.autonomous
}

// SignatureFeel выражаются ли подсказки паттернами
func (m *Manager) SignatureFeel() bool {
	return m.signatureFeel
}

// SetHour текущий час для тихих часов
func (m *Manager) SetHour(hour uint8) {
	m.engine.SetHour(hour)
}

// UpdateSkinTemp показание датчика кожи для защиты нагревателя
func (m *Manager) UpdateSkinTemp(tempC int8) {
	m.controller.UpdateSkinTemp(tempC)
}

// ClearThermalFault снимает аварию нагревателя, если кожа остыла
func (m *Manager) ClearThermalFault() bool {
	return m.controller.Thermal().ClearFault()
}

// Connect новое соединение: стриминг выключен до подписки
func (m *Manager) Connect() {
	m.connected = true
	m.streaming = false
}

// SetStreaming подписка на телеметрию
func (m *Manager) SetStreaming(enabled bool) {
	m.streaming = enabled
}

// Streaming включена ли телеметрия
func (m *Manager) Streaming() bool {
	return m.streaming
}

// Disconnect немедленно гасит все выходы
func (m *Manager) Disconnect() {
	m.player.StopImmediate()
	m.controller.StopAll()
	m.connected = false
	m.streaming = false
}

// ActuatorStatus состояние актуаторов
func (m *Manager) ActuatorStatus(nowMs uint32) actuator.Status {
	return m.controller.Status(nowMs)
}

// Playing текущий паттерн плеера
func (m *Manager) Playing() signature.Pattern {
	return m.player.Current()
}

// CueStats счетчики движка подсказок
func (m *Manager) CueStats() cue.Stats {
	return m.engine.Stats()
}

// Reset сбрасывает сенсорную часть и историю подсказок, настройки сохраняются
func (m *Manager) Reset() {
	m.detector.Reset()
	m.metrics.Reset()
	m.engine.Reset()
	m.rr.Reset()
	m.rrSeen = 0
	m.lastCheckMs = 0
}
