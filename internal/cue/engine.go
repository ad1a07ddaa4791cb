package cue

import (
	"ring-haptics-service/internal/actuator"
	"ring-haptics-service/internal/ringbuf"
)

const (
	// MinConfidencePct ниже этой уверенности решения не принимаются
	MinConfidencePct = 60
	// MaxArtifactRatePct выше этой доли артефактов решения не принимаются
	MaxArtifactRatePct = 25
	// LowConfidenceStreak после стольких подряд низких уверенностей предлагается проверить посадку
	LowConfidenceStreak = 3
	// CriticalStressLevel стресс выше этого значения вызывает Alert
	CriticalStressLevel = 90

	MicroVarElevated = 500
	MicroVarHigh     = 800
	MicroVarCritical = 1200

	CoherenceMedium   = 50
	CoherenceLow      = 30
	CoherenceCritical = 15

	StabilityUnstable = 40

	CooldownVibrationMs = 30000
	CooldownThermalMs   = 120000
	CooldownCombinedMs  = 180000
	CooldownAlertMs     = 600000

	MaxCuesPerHour = 12
	HourMs         = 3600000
	HistorySize    = 8

	// DefaultHour текущий час до первой синхронизации часов
	DefaultHour = 12

	checkFitIntensity = 20
	trendMinSamples   = 6
)

// Engine движок решений. Не потокобезопасен: владелец один
type Engine struct {
	prefs Preferences

	hasLastCue  bool
	lastCueMs   uint32
	lastCueType Type
	currentHour uint8

	hourStartMs  uint32
	cuesThisHour uint8

	lowConfStreak uint8
	history       *ringbuf.Ring[uint8]

	totalGenerated  uint32
	totalSuppressed uint32
}

// NewEngine создает движок с настройками по умолчанию
func NewEngine() *Engine {
	return &Engine{
		prefs:       DefaultPreferences(),
		currentHour: DefaultHour,
		history:     ringbuf.New[uint8](HistorySize),
	}
}

// Preferences возвращает текущие настройки
func (e *Engine) Preferences() Preferences {
	return e.prefs
}

// SetPreferences заменяет настройки целиком, значения вне диапазона обрезаются
func (e *Engine) SetPreferences(p Preferences) {
	e.prefs = p.Clamp()
}

// SetHour задает текущий час суток, значения >= 24 игнорируются
func (e *Engine) SetHour(hour uint8) {
	if hour < 24 {
		e.currentHour = hour
	}
}

// Hour возвращает текущий час
func (e *Engine) Hour() uint8 {
	return e.currentHour
}

// IsReady true, если подсказки включены
func (e *Engine) IsReady() bool {
	return e.prefs.Enabled
}

// Stats возвращает счетчики
func (e *Engine) Stats() Stats {
	return Stats{
		Generated:  e.totalGenerated,
		Suppressed: e.totalSuppressed,
		LastType:   e.lastCueType,
		LastMs:     e.lastCueMs,
	}
}

// Reset сбрасывает кулдауны, лимиты, серию и историю. Настройки и счетчики сохраняются
func (e *Engine) Reset() {
	e.hasLastCue = false
	e.lastCueMs = 0
	e.lastCueType = TypeNone
	e.lowConfStreak = 0
	e.history.Reset()
	e.cuesThisHour = 0
	e.hourStartMs = 0
}

// Generate прогоняет вход через гейты и каскад. Возвращает решение и признак срабатывания
func (e *Engine) Generate(in Input) (Output, bool) {
	now := in.TimestampMs

	if !e.prefs.Enabled || e.isQuietHours() || !e.checkRateLimit(now) {
		return e.suppress()
	}

	if in.ConfidencePct < MinConfidencePct {
		e.lowConfStreak++
		if e.lowConfStreak >= LowConfidenceStreak &&
			e.prefs.VibrationEnabled &&
			e.canTrigger(TypeVibration, now, CooldownVibrationMs*2) {
			return e.checkFitCue(now), true
		}
		return e.suppress()
	}
	e.lowConfStreak = 0

	e.history.Push(in.CoherencePct)

	if in.ArtifactRatePct > MaxArtifactRatePct {
		return e.suppress()
	}

	p := ProfileFor(e.prefs.Sensitivity)

	if in.StressLevel > CriticalStressLevel || in.MicroVarPct100 > MicroVarCritical {
		if e.canTrigger(TypeCombined, now, CooldownCombinedMs) {
			return e.alertCue(p, now), true
		}
	}

	if in.CoherencePct < CoherenceLow && in.MicroVarPct100 > MicroVarElevated {
		if e.canTrigger(TypeCombined, now, CooldownCombinedMs) {
			return e.combinedCue(p, in, now), true
		}
	}

	if in.StabilityPct < StabilityUnstable && e.prefs.BreathingEnabled && e.prefs.VibrationEnabled {
		if e.canTrigger(TypeVibration, now, CooldownCombinedMs) {
			return e.breathingCue(p, now), true
		}
	}

	if in.MicroVarPct100 > MicroVarElevated && e.prefs.VibrationEnabled {
		if e.canTrigger(TypeVibration, now, CooldownVibrationMs) {
			return e.vibrationCue(p, in, now), true
		}
	}

	if in.CoherencePct < CoherenceMedium && e.prefs.ThermalEnabled {
		if e.canTrigger(TypeThermal, now, CooldownThermalMs) {
			return e.thermalCue(p, in, now), true
		}
	}

	if e.deterioratingTrend() && e.prefs.ThermalEnabled {
		if e.canTrigger(TypeThermal, now, CooldownThermalMs*2) {
			return e.preventiveCue(p, now), true
		}
	}

	// Вмешательство не требуется: это не подавление
	return Output{}, false
}

func (e *Engine) suppress() (Output, bool) {
	e.totalSuppressed++
	return Output{}, false
}

// isQuietHours поддерживает окно через полночь (22 -> 7)
func (e *Engine) isQuietHours() bool {
	hour := e.currentHour
	start, end := e.prefs.QuietStartHour, e.prefs.QuietEndHour
	if start > end {
		return hour >= start || hour < end
	}
	return hour >= start && hour < end
}

func (e *Engine) checkRateLimit(now uint32) bool {
	if now-e.hourStartMs >= HourMs {
		e.cuesThisHour = 0
		e.hourStartMs = now
	}
	return e.cuesThisHour < MaxCuesPerHour
}

// canTrigger: тот же тип или предыдущий Combined требуют полного кулдауна, другой тип половины
func (e *Engine) canTrigger(t Type, now, cooldownMs uint32) bool {
	if !e.hasLastCue {
		return true
	}
	elapsed := now - e.lastCueMs
	if e.lastCueType == t || e.lastCueType == TypeCombined {
		return elapsed >= cooldownMs
	}
	return elapsed >= cooldownMs/2
}

func (e *Engine) recordCue(t Type, now uint32) {
	e.hasLastCue = true
	e.lastCueMs = now
	e.lastCueType = t
	e.cuesThisHour++
	e.totalGenerated++
}

// deterioratingTrend сравнивает средние первой и второй половины истории
func (e *Engine) deterioratingTrend() bool {
	n := e.history.Len()
	if n < trendMinSamples {
		return false
	}
	half := n / 2

	var firstSum, secondSum int
	for i := 0; i < half; i++ {
		firstSum += int(e.history.At(i))
	}
	for i := half; i < n; i++ {
		secondSum += int(e.history.At(i))
	}
	firstAvg := firstSum / half
	secondAvg := secondSum / (n - half)

	return firstAvg > secondAvg && firstAvg-secondAvg > firstAvg/10
}

func severity(coherencePct uint8) uint32 {
	if coherencePct >= CoherenceMedium {
		return 0
	}
	s := uint32(CoherenceMedium-coherencePct) * 100 / (CoherenceMedium - CoherenceCritical)
	if s > 100 {
		s = 100
	}
	return s
}

func clampTo(v, limit uint8) uint8 {
	if v > limit {
		return limit
	}
	return v
}

func scaled(base, top uint8, sev uint32) uint8 {
	return base + uint8(uint32(top-base)*sev/100)
}

func duration(baseS uint32, p Profile) uint8 {
	return uint8(baseS * uint32(p.DurationMult) / 10)
}

func (e *Engine) alertCue(p Profile, now uint32) Output {
	e.recordCue(TypeCombined, now)
	return Output{
		Type:             TypeAlert,
		Priority:         PriorityAlert,
		ThermalIntensity: clampTo(p.ThermalMax, e.prefs.MaxThermalPct),
		ThermalDurationS: duration(20, p),
		VibPattern:       actuator.VibAlert,
		VibIntensity:     clampTo(p.VibMax, e.prefs.MaxVibPct),
		CooldownMs:       CooldownAlertMs,
	}
}

func (e *Engine) combinedCue(p Profile, in Input, now uint32) Output {
	sev := severity(in.CoherencePct)
	e.recordCue(TypeCombined, now)
	return Output{
		Type:             TypeCombined,
		Priority:         PriorityHigh,
		ThermalIntensity: clampTo(scaled(p.ThermalBase, p.ThermalMax, sev), e.prefs.MaxThermalPct),
		ThermalDurationS: duration(15, p),
		VibPattern:       actuator.VibHeartbeat,
		VibIntensity:     clampTo(scaled(p.VibBase, p.VibMax, sev), e.prefs.MaxVibPct),
		CooldownMs:       CooldownCombinedMs,
	}
}

func (e *Engine) breathingCue(p Profile, now uint32) Output {
	e.recordCue(TypeVibration, now)
	return Output{
		Type:         TypeBreathing,
		Priority:     PriorityNormal,
		VibPattern:   actuator.VibBreathing,
		VibIntensity: clampTo(uint8(uint32(p.VibBase)*80/100), e.prefs.MaxVibPct),
		CooldownMs:   CooldownCombinedMs,
	}
}

func (e *Engine) vibrationCue(p Profile, in Input, now uint32) Output {
	pattern := actuator.VibSingle
	intensity := p.VibMax
	if in.MicroVarPct100 > MicroVarHigh {
		pattern = actuator.VibDouble
	} else {
		pos := uint32(in.MicroVarPct100 - MicroVarElevated)
		intensity = p.VibBase + uint8(uint32(p.VibMax-p.VibBase)*pos/(MicroVarHigh-MicroVarElevated))
	}

	e.recordCue(TypeVibration, now)
	return Output{
		Type:         TypeVibration,
		Priority:     PriorityNormal,
		VibPattern:   pattern,
		VibIntensity: clampTo(intensity, e.prefs.MaxVibPct),
		CooldownMs:   CooldownVibrationMs,
	}
}

func (e *Engine) thermalCue(p Profile, in Input, now uint32) Output {
	sev := severity(in.CoherencePct)
	baseS := 10 + 10*sev/100

	e.recordCue(TypeThermal, now)
	return Output{
		Type:             TypeThermal,
		Priority:         PriorityLow,
		ThermalIntensity: clampTo(scaled(p.ThermalBase, p.ThermalMax, sev), e.prefs.MaxThermalPct),
		ThermalDurationS: duration(baseS, p),
		CooldownMs:       CooldownThermalMs,
	}
}

func (e *Engine) preventiveCue(p Profile, now uint32) Output {
	e.recordCue(TypeThermal, now)
	return Output{
		Type:             TypeThermal,
		Priority:         PriorityLow,
		ThermalIntensity: clampTo(p.ThermalBase, e.prefs.MaxThermalPct),
		ThermalDurationS: duration(8, p),
		CooldownMs:       CooldownThermalMs * 3 / 2,
	}
}

func (e *Engine) checkFitCue(now uint32) Output {
	e.lowConfStreak = 0
	e.recordCue(TypeVibration, now)
	return Output{
		Type:         TypeCheckFit,
		Priority:     PriorityLow,
		VibPattern:   actuator.VibTriple,
		VibIntensity: clampTo(checkFitIntensity, e.prefs.MaxVibPct),
		CooldownMs:   CooldownVibrationMs * 3,
	}
}
