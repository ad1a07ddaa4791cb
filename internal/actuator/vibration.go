package actuator

// VibMaxIntensityPct потолок скважности вибромотора
const VibMaxIntensityPct = 100

// VibPattern идентификатор вибропаттерна
type VibPattern uint8

const (
	VibOff VibPattern = iota
	VibSingle
	VibDouble
	VibTriple
	VibHeartbeat
	VibBreathing
	VibAlert
)

func (p VibPattern) String() string {
	switch p {
	case VibOff:
		return "off"
	case VibSingle:
		return "single"
	case VibDouble:
		return "double"
	case VibTriple:
		return "triple"
	case VibHeartbeat:
		return "heartbeat"
	case VibBreathing:
		return "breathing"
	case VibAlert:
		return "alert"
	default:
		return "unknown"
	}
}

func heartbeatSteps() []Step {
	beat := []Step{{80, 100}, {60, 0}, {100, 80}}
	var steps []Step
	for i := 0; i < 3; i++ {
		if i > 0 {
			steps = append(steps, Step{760, 0})
		}
		steps = append(steps, beat...)
	}
	return steps
}

func breathingSteps() []Step {
	var steps []Step
	for _, pct := range []uint8{20, 35, 50, 65, 80, 90, 95, 100} {
		steps = append(steps, Step{500, pct})
	}
	for _, pct := range []uint8{90, 75, 60, 45, 30, 20, 10, 5} {
		steps = append(steps, Step{600, pct})
	}
	return append(steps, Step{400, 0})
}

func alertSteps() []Step {
	burst := []Step{{50, 100}, {50, 0}, {50, 100}, {50, 0}, {50, 100}, {50, 0}}
	steps := append([]Step{}, burst...)
	steps = append(steps, Step{150, 0})
	return append(steps, burst...)
}

var vibPatterns = map[VibPattern][]Step{
	VibSingle:    {{100, 100}},
	VibDouble:    {{100, 100}, {100, 0}, {100, 100}},
	VibTriple:    {{80, 100}, {80, 0}, {80, 100}, {80, 0}, {80, 100}},
	VibHeartbeat: heartbeatSteps(),
	VibBreathing: breathingSteps(),
	VibAlert:     alertSteps(),
}

// Vibration драйвер вибромотора: паттерны с шагами и постоянный режим
type Vibration struct {
	pwm PWM

	pattern   VibPattern
	steps     []Step
	stepIndex int
	looping   bool

	intensity   uint8
	duty        uint8
	active      bool
	started     bool
	stepStartMs uint32
}

// NewVibration создает выключенный драйвер
func NewVibration(pwm PWM) *Vibration {
	if pwm == nil {
		pwm = NopPWM{}
	}
	v := &Vibration{pwm: pwm}
	v.setDuty(0)
	v.pwm.Enable(false)
	return v
}

func (v *Vibration) setDuty(pct uint8) {
	if pct > VibMaxIntensityPct {
		pct = VibMaxIntensityPct
	}
	v.duty = pct
	v.pwm.SetDuty(pct)
}

// Play запускает паттерн с базовой интенсивностью. Неизвестный паттерн или Off останавливают мотор
func (v *Vibration) Play(pattern VibPattern, intensityPct uint8) {
	steps, ok := vibPatterns[pattern]
	if !ok {
		v.Stop()
		return
	}
	if intensityPct > VibMaxIntensityPct {
		intensityPct = VibMaxIntensityPct
	}

	v.pattern = pattern
	v.steps = steps
	v.stepIndex = 0
	v.looping = pattern == VibBreathing
	v.intensity = intensityPct
	v.active = true
	v.started = false
	v.pwm.Enable(true)
}

// On включает постоянную вибрацию; 0 выключает
func (v *Vibration) On(intensityPct uint8) {
	if intensityPct == 0 {
		v.Stop()
		return
	}
	if intensityPct > VibMaxIntensityPct {
		intensityPct = VibMaxIntensityPct
	}
	v.pattern = VibOff
	v.steps = nil
	v.looping = false
	v.intensity = intensityPct
	v.active = true
	v.pwm.Enable(true)
	v.setDuty(intensityPct)
}

// Off синоним Stop
func (v *Vibration) Off() {
	v.Stop()
}

// Stop немедленно гасит мотор
func (v *Vibration) Stop() {
	v.pattern = VibOff
	v.steps = nil
	v.stepIndex = 0
	v.looping = false
	v.active = false
	v.started = false
	v.intensity = 0
	v.setDuty(0)
	v.pwm.Enable(false)
}

// Tick продвигает паттерн. Постоянный режим тиков не требует
func (v *Vibration) Tick(nowMs uint32) {
	if !v.active || len(v.steps) == 0 {
		return
	}

	if !v.started {
		v.started = true
		v.stepStartMs = nowMs
		v.setDuty(scalePct(v.steps[0].Pct, v.intensity))
		return
	}

	if nowMs-v.stepStartMs < v.steps[v.stepIndex].DurationMs {
		return
	}

	v.stepIndex++
	v.stepStartMs = nowMs
	if v.stepIndex >= len(v.steps) {
		if !v.looping {
			v.Stop()
			return
		}
		v.stepIndex = 0
	}
	v.setDuty(scalePct(v.steps[v.stepIndex].Pct, v.intensity))
}

// IsActive true пока играет паттерн или включен постоянный режим
func (v *Vibration) IsActive() bool { return v.active }

// Intensity базовая интенсивность текущего воспроизведения
func (v *Vibration) Intensity() uint8 { return v.intensity }

// Duty текущая выходная скважность
func (v *Vibration) Duty() uint8 { return v.duty }

// Pattern текущий паттерн, VibOff в постоянном режиме
func (v *Vibration) Pattern() VibPattern { return v.pattern }
