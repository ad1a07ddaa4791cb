package signature

const (
	// VibMaxPct потолок вибрации, не превышается ни при каком масштабе
	VibMaxPct = 65
	VibGentle = 35
	VibMedium = 50

	// ThermalMaxPct потолок нагрева
	ThermalMaxPct = 70
	ThermalGentle = 40
	ThermalMedium = 55

	// FadeOutMs длительность мягкой остановки
	FadeOutMs = 600
)

// Pattern идентификатор именованного паттерна
type Pattern uint8

const (
	None Pattern = iota
	GroundingPulse
	AttentionTap
	PresenceCheck
	Heartbeat
	BreathingGuide
	WarmExhale
	GroundingWarmth
	SafetyEmbrace
	GentleAlert
	FullReset
	patternCount
)

var patternNames = [...]string{
	None:            "none",
	GroundingPulse:  "grounding_pulse",
	AttentionTap:    "attention_tap",
	PresenceCheck:   "presence_check",
	Heartbeat:       "heartbeat",
	BreathingGuide:  "breathing_guide",
	WarmExhale:      "warm_exhale",
	GroundingWarmth: "grounding_warmth",
	SafetyEmbrace:   "safety_embrace",
	GentleAlert:     "gentle_alert",
	FullReset:       "full_reset",
}

func (p Pattern) String() string {
	if p < patternCount {
		return patternNames[p]
	}
	return "unknown"
}

// Channel выход, которым управляет шаг
type Channel uint8

const (
	ChannelVibration Channel = iota
	ChannelThermal
)

// Step шаг паттерна: за DurationMs выход переходит к Target по кривой Curve
type Step struct {
	DurationMs uint32
	Target     uint8
	Curve      Curve
	Channel    Channel
}

// Sequence неизменяемый паттерн
type Sequence struct {
	Steps []Step
	Loop  bool
}

func vib(ms uint32, target uint8, c Curve) Step {
	return Step{DurationMs: ms, Target: target, Curve: c, Channel: ChannelVibration}
}

func heat(ms uint32, target uint8, c Curve) Step {
	return Step{DurationMs: ms, Target: target, Curve: c, Channel: ChannelThermal}
}

// lub-dub без паузы и без затухания последнего удара
func heartbeatBeat() []Step {
	return []Step{
		vib(120, VibMedium, EaseInSine),
		vib(80, VibMedium, Linear),
		vib(100, 15, EaseOutQuad),
		vib(100, VibGentle, EaseInSine),
		vib(80, VibGentle, Linear),
	}
}

func heartbeatSteps() []Step {
	var steps []Step
	for i := 0; i < 2; i++ {
		steps = append(steps, heartbeatBeat()...)
		steps = append(steps, vib(120, 0, EaseOutSine), vib(400, 0, Linear))
	}
	steps = append(steps, heartbeatBeat()...)
	return append(steps, vib(200, 0, EaseOutSine))
}

func fullResetSteps() []Step {
	steps := []Step{heat(1500, ThermalMedium, EaseInSine)}
	steps = append(steps, heartbeatBeat()...)
	steps = append(steps, vib(120, 0, EaseOutSine))
	steps = append(steps, heat(500, ThermalMedium, Linear))
	steps = append(steps, heartbeatBeat()...)
	steps = append(steps, vib(120, 0, EaseOutSine))
	return append(steps,
		heat(2000, ThermalGentle, EaseOutSine),
		vib(4000, VibGentle, EaseInOutSine),
		vib(6000, 8, EaseOutQuad),
		heat(2000, 0, EaseOutSine),
		vib(500, 0, Linear),
	)
}

var sequences = map[Pattern]Sequence{
	GroundingPulse: {Steps: []Step{
		vib(300, VibGentle, EaseInSine),
		vib(150, VibGentle, Linear),
		vib(450, 0, EaseOutSine),
	}},
	AttentionTap: {Steps: []Step{
		vib(200, VibGentle, EaseInOutSine),
		vib(100, VibGentle, Linear),
		vib(200, 0, EaseOutSine),
		vib(200, 0, Linear),
		vib(200, VibGentle, EaseInOutSine),
		vib(100, VibGentle, Linear),
		vib(300, 0, EaseOutSine),
	}},
	PresenceCheck: {Steps: []Step{
		vib(150, 25, EaseInOutSine),
		vib(150, 0, EaseOutSine),
		vib(120, 0, Linear),
		vib(150, 25, EaseInOutSine),
		vib(150, 0, EaseOutSine),
		vib(120, 0, Linear),
		vib(150, 25, EaseInOutSine),
		vib(250, 0, EaseOutSine),
	}},
	Heartbeat: {Steps: heartbeatSteps()},
	BreathingGuide: {Loop: true, Steps: []Step{
		vib(4000, VibGentle, EaseInOutSine),
		vib(300, VibGentle, Linear),
		vib(6000, 8, EaseOutQuad),
		vib(500, 5, Linear),
	}},
	WarmExhale: {Steps: []Step{
		heat(2000, ThermalGentle, EaseInSine),
		heat(3000, ThermalGentle, Linear),
		heat(4000, 15, EaseOutSine),
		heat(2000, 0, EaseOutQuad),
	}},
	GroundingWarmth: {Steps: []Step{
		heat(1500, ThermalGentle, EaseInOutSine),
		heat(5000, ThermalGentle, Linear),
		heat(3000, 0, EaseOutSine),
	}},
	SafetyEmbrace: {Steps: []Step{
		heat(2000, ThermalMedium, EaseInSine),
		heat(2500, ThermalMedium, Linear),
		heat(1500, ThermalGentle, EaseInOutSine),
		heat(1500, ThermalMedium, EaseInOutSine),
		heat(2000, ThermalGentle, EaseInOutSine),
		heat(4000, 0, EaseOutQuad),
	}},
	GentleAlert: {Steps: []Step{
		heat(500, ThermalGentle, EaseInSine),
		vib(250, VibGentle, EaseInOutSine),
		vib(350, 0, EaseOutSine),
		heat(1000, ThermalGentle, Linear),
		heat(1500, 0, EaseOutSine),
	}},
	FullReset: {Steps: fullResetSteps()},
}

// Lookup возвращает паттерн по идентификатору
func Lookup(p Pattern) (Sequence, bool) {
	s, ok := sequences[p]
	return s, ok
}

// TotalMs длительность одного прохода
func (s Sequence) TotalMs() uint32 {
	var total uint32
	for _, st := range s.Steps {
		total += st.DurationMs
	}
	return total
}

// SafeVibration прижимает запрос к потолку вибрации
func SafeVibration(requested uint8) uint8 {
	if requested > VibMaxPct {
		return VibMaxPct
	}
	return requested
}

// SafeThermal прижимает запрос к потолку нагрева
func SafeThermal(requested uint8) uint8 {
	if requested > ThermalMaxPct {
		return ThermalMaxPct
	}
	return requested
}
