package actuator

const (
	// ThermalMaxIntensityPct жесткий потолок скважности нагревателя
	ThermalMaxIntensityPct = 80
	// ThermalMaxDurationS максимальная длительность сессии
	ThermalMaxDurationS = 60
	// ThermalMaxSkinTempC температура кожи, при которой включается защита
	ThermalMaxSkinTempC = 42
	// ThermalClearFaultTempC сброс аварии возможен только ниже этой температуры
	ThermalClearFaultTempC = ThermalMaxSkinTempC - 5
	// ThermalCooldownMs обязательная пауза после сессии
	ThermalCooldownMs = 30000
	// ThermalRampMs длительность плавного старта
	ThermalRampMs = 2000
	// DefaultSkinTempC температура кожи до первого измерения
	DefaultSkinTempC = 25

	tempCheckIntervalMs = 500
	runawayWindowMs     = 1000
	runawayRateC        = 2
)

// ThermalState состояние нагревателя
type ThermalState uint8

const (
	ThermalOff ThermalState = iota
	ThermalRamping
	ThermalActive
	ThermalCooldown
	ThermalFaulted
)

func (s ThermalState) String() string {
	switch s {
	case ThermalOff:
		return "off"
	case ThermalRamping:
		return "ramping"
	case ThermalActive:
		return "active"
	case ThermalCooldown:
		return "cooldown"
	case ThermalFaulted:
		return "fault"
	default:
		return "unknown"
	}
}

// ThermalFault код аварии или аннотации завершения
type ThermalFault uint8

const (
	FaultNone ThermalFault = iota
	FaultOverTemp
	FaultRunaway
	FaultSensorFail
	FaultTimeout
)

func (f ThermalFault) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultOverTemp:
		return "over_temp"
	case FaultRunaway:
		return "runaway"
	case FaultSensorFail:
		return "sensor_fail"
	case FaultTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ThermalPattern идентификатор теплового паттерна
type ThermalPattern uint8

const (
	ThermalPatternOff ThermalPattern = iota
	ThermalPatternConstant
	ThermalPatternPulse
	ThermalPatternWave
	ThermalPatternBurst
)

var thermalPatterns = map[ThermalPattern][]Step{
	// медленный ритм дыхания
	ThermalPatternPulse: {{2000, 100}, {2000, 40}, {2000, 100}, {2000, 40}},
	ThermalPatternWave: {
		{1000, 20}, {1000, 40}, {1000, 60}, {1000, 80}, {1000, 100},
		{1000, 80}, {1000, 60}, {1000, 40}, {1000, 20},
	},
	// быстрое тепло и затухание
	ThermalPatternBurst: {{500, 100}, {500, 90}, {500, 70}, {1000, 50}, {1500, 30}, {1000, 10}},
}

// Thermal драйвер нагревателя: Off -> Ramping -> Active -> Cooldown -> Off, из любого состояния в Fault
type Thermal struct {
	pwm PWM

	state   ThermalState
	fault   ThermalFault
	pattern ThermalPattern

	target uint8
	duty   uint8
	base   uint8

	durationMs    uint32
	sessionLatch  bool
	startMs       uint32
	endMs         uint32
	rampStartMs   uint32
	tempChecked   bool
	lastTempMs    uint32
	cooldownEndMs uint32
	lastNowMs     uint32

	steps       []Step
	stepIndex   int
	stepStarted bool
	stepStartMs uint32

	skinTempC     int8
	runawaySeeded bool
	prevTempC     int8
	prevTempMs    uint32
}

// NewThermal создает выключенный драйвер
func NewThermal(pwm PWM) *Thermal {
	if pwm == nil {
		pwm = NopPWM{}
	}
	t := &Thermal{pwm: pwm, skinTempC: DefaultSkinTempC}
	t.hwEnable(false)
	return t
}

func (t *Thermal) hwSetDuty(pct uint8) {
	if pct > ThermalMaxIntensityPct {
		pct = ThermalMaxIntensityPct
	}
	t.pwm.SetDuty(pct)
}

func (t *Thermal) hwEnable(on bool) {
	if !on {
		t.hwSetDuty(0)
	}
	t.pwm.Enable(on)
}

// SetTimed запускает сессию постоянной интенсивности. Интенсивность 0 останавливает нагрев.
// В Cooldown и Fault запрос игнорируется. Если сессия уже идет, обновляются цель и срок
func (t *Thermal) SetTimed(intensityPct, durationS uint8) {
	if intensityPct == 0 {
		t.Stop()
		return
	}
	if t.state == ThermalCooldown || t.state == ThermalFaulted {
		return
	}

	if intensityPct > ThermalMaxIntensityPct {
		intensityPct = ThermalMaxIntensityPct
	}
	if durationS == 0 || durationS > ThermalMaxDurationS {
		durationS = ThermalMaxDurationS
	}

	if !t.temperatureSafe() {
		t.enterFault(FaultOverTemp)
		return
	}

	t.target = intensityPct
	t.base = intensityPct
	t.pattern = ThermalPatternConstant
	t.steps = nil
	t.durationMs = uint32(durationS) * 1000

	if t.IsActive() && t.sessionLatch {
		// Сессия уже идет: без повторного плавного старта
		t.endMs = t.lastNowMs + t.durationMs
		return
	}

	t.fault = FaultNone
	t.sessionLatch = false
	t.tempChecked = false
	t.state = ThermalRamping
	t.duty = 0
	t.hwEnable(true)
}

// Set включает нагрев на максимальную длительность
func (t *Thermal) Set(intensityPct uint8) {
	t.SetTimed(intensityPct, 0)
}

// Play запускает многошаговый паттерн; паттерны повторяются до истечения срока
func (t *Thermal) Play(pattern ThermalPattern, intensityPct, durationS uint8) {
	if pattern == ThermalPatternConstant {
		t.SetTimed(intensityPct, durationS)
		return
	}
	steps, ok := thermalPatterns[pattern]
	if !ok {
		t.Stop()
		return
	}

	t.SetTimed(intensityPct, durationS)
	if !t.IsActive() {
		return
	}
	t.pattern = pattern
	t.steps = steps
	t.stepIndex = 0
	t.stepStarted = false
}

// Stop выключает нагрев. После Ramping/Active начинается обязательный Cooldown,
// Fault сохраняется до ClearFault
func (t *Thermal) Stop() {
	t.target = 0
	t.duty = 0
	t.steps = nil
	t.hwEnable(false)

	switch t.state {
	case ThermalActive, ThermalRamping:
		t.state = ThermalCooldown
		t.cooldownEndMs = t.lastNowMs + ThermalCooldownMs
	case ThermalCooldown, ThermalFaulted:
	default:
		t.state = ThermalOff
	}
}

// Tick продвигает автомат. Вызывается каждый цикл
func (t *Thermal) Tick(nowMs uint32) {
	t.lastNowMs = nowMs

	if t.state == ThermalRamping && !t.sessionLatch {
		t.sessionLatch = true
		t.startMs = nowMs
		t.rampStartMs = nowMs
		t.endMs = nowMs + t.durationMs
	}

	switch t.state {
	case ThermalRamping:
		t.duty = t.rampDuty(nowMs)
		t.hwSetDuty(t.duty)

		if nowMs-t.rampStartMs >= ThermalRampMs {
			t.state = ThermalActive
		}
		if !t.temperatureSafe() || !t.runawaySafe(nowMs) {
			t.enterFault(t.fault)
		}

	case ThermalActive:
		t.processPattern(nowMs)
		if t.state != ThermalActive {
			return
		}
		t.duty = t.target
		t.hwSetDuty(t.duty)

		if int32(nowMs-t.endMs) >= 0 {
			t.Stop()
			t.fault = FaultTimeout
			return
		}

		if !t.tempChecked || nowMs-t.lastTempMs >= tempCheckIntervalMs {
			t.tempChecked = true
			t.lastTempMs = nowMs
			if !t.temperatureSafe() || !t.runawaySafe(nowMs) {
				t.enterFault(t.fault)
			}
		}

	case ThermalCooldown:
		if int32(nowMs-t.cooldownEndMs) >= 0 {
			t.state = ThermalOff
		}

	case ThermalFaulted:
		t.hwEnable(false)
	}
}

func (t *Thermal) rampDuty(nowMs uint32) uint8 {
	elapsed := nowMs - t.rampStartMs
	if elapsed >= ThermalRampMs {
		return t.target
	}
	return uint8(uint32(t.target) * elapsed / ThermalRampMs)
}

func (t *Thermal) processPattern(nowMs uint32) {
	if len(t.steps) == 0 {
		return
	}
	if !t.stepStarted {
		t.stepStarted = true
		t.stepStartMs = nowMs
		t.target = scalePct(t.steps[t.stepIndex].Pct, t.base)
		return
	}

	if nowMs-t.stepStartMs < t.steps[t.stepIndex].DurationMs {
		return
	}
	t.stepIndex++
	t.stepStartMs = nowMs
	if t.stepIndex >= len(t.steps) {
		t.stepIndex = 0
	}
	t.target = scalePct(t.steps[t.stepIndex].Pct, t.base)
}

func (t *Thermal) temperatureSafe() bool {
	if t.skinTempC >= ThermalMaxSkinTempC {
		t.fault = FaultOverTemp
		return false
	}
	return true
}

func (t *Thermal) runawaySafe(nowMs uint32) bool {
	if !t.runawaySeeded {
		t.runawaySeeded = true
		t.prevTempC = t.skinTempC
		t.prevTempMs = nowMs
		return true
	}
	if nowMs-t.prevTempMs < runawayWindowMs {
		return true
	}
	if int(t.skinTempC)-int(t.prevTempC) > runawayRateC {
		t.fault = FaultRunaway
		return false
	}
	t.prevTempC = t.skinTempC
	t.prevTempMs = nowMs
	return true
}

func (t *Thermal) enterFault(fault ThermalFault) {
	t.fault = fault
	t.state = ThermalFaulted
	t.duty = 0
	t.target = 0
	t.steps = nil
	t.hwEnable(false)
}

// UpdateSkinTemp сообщает свежее показание температуры кожи
func (t *Thermal) UpdateSkinTemp(tempC int8) {
	t.skinTempC = tempC
}

// ClearFault снимает аварию, только если кожа остыла ниже 37°C.
// Сбрасывает и историю детектора разгона
func (t *Thermal) ClearFault() bool {
	if t.state != ThermalFaulted {
		return false
	}
	if t.skinTempC >= ThermalClearFaultTempC {
		return false
	}
	t.fault = FaultNone
	t.state = ThermalOff
	t.runawaySeeded = false
	return true
}

// State возвращает текущее состояние
func (t *Thermal) State() ThermalState { return t.state }

// Fault возвращает код последней аварии
func (t *Thermal) Fault() ThermalFault { return t.fault }

// Duty возвращает текущую скважность
func (t *Thermal) Duty() uint8 { return t.duty }

// SkinTemp возвращает последнюю температуру кожи
func (t *Thermal) SkinTemp() int8 { return t.skinTempC }

// Pattern возвращает активный паттерн
func (t *Thermal) Pattern() ThermalPattern { return t.pattern }

// IsActive true в Ramping и Active
func (t *Thermal) IsActive() bool {
	return t.state == ThermalRamping || t.state == ThermalActive
}
