package signature

// VibrationOutput канал вибрации, которым управляет плеер
type VibrationOutput interface {
	On(intensityPct uint8)
	Off()
}

// ThermalOutput канал нагрева. Собственный автомат безопасности драйвера остается в силе
type ThermalOutput interface {
	SetTimed(intensityPct, durationS uint8)
	Stop()
}

// thermalSessionS с таким сроком плеер держит нагрев; каждое изменение продлевает сессию
const thermalSessionS = 60

// Player проигрывает паттерн по шагам с кривыми сглаживания.
// Состояния: Idle, Playing, FadingOut. Владелец один, тики идут из одного цикла
type Player struct {
	vibration VibrationOutput
	thermal   ThermalOutput

	current   Pattern
	seq       Sequence
	stepIndex int
	scale     uint8

	stepStarted bool
	stepStartMs uint32
	from        uint8

	vibOut     uint8
	thermalOut uint8

	fading          bool
	fadeStarted     bool
	fadeStartMs     uint32
	fadeFromVib     uint8
	fadeFromThermal uint8
}

// NewPlayer создает плеер в состоянии Idle
func NewPlayer(vibration VibrationOutput, thermal ThermalOutput) *Player {
	return &Player{vibration: vibration, thermal: thermal}
}

func (p *Player) setVibration(pct uint8) {
	if pct == p.vibOut {
		return
	}
	p.vibOut = pct
	if pct == 0 {
		p.vibration.Off()
		return
	}
	p.vibration.On(pct)
}

func (p *Player) setThermal(pct uint8) {
	if pct == p.thermalOut {
		return
	}
	p.thermalOut = pct
	if pct == 0 {
		p.thermal.Stop()
		return
	}
	p.thermal.SetTimed(pct, thermalSessionS)
}

// Play гасит текущие выходы и запускает паттерн с шага 0. None или неизвестный id означают Stop
func (p *Player) Play(pattern Pattern, scale uint8) {
	seq, ok := sequences[pattern]
	if !ok || len(seq.Steps) == 0 {
		p.Stop()
		return
	}

	p.setVibration(0)
	p.setThermal(0)

	if scale > 100 {
		scale = 100
	}
	p.current = pattern
	p.seq = seq
	p.stepIndex = 0
	p.scale = scale
	p.stepStarted = false
	p.from = 0
	p.fading = false
}

// Stop запускает мягкое затухание от текущих значений. Без активного паттерна ничего не делает
func (p *Player) Stop() {
	if p.current == None {
		return
	}
	p.fading = true
	p.fadeStarted = false
	p.fadeFromVib = p.vibOut
	p.fadeFromThermal = p.thermalOut
}

// StopImmediate синхронно гасит оба канала. Для аварий и разрыва связи
func (p *Player) StopImmediate() {
	p.setVibration(0)
	p.setThermal(0)
	p.current = None
	p.seq = Sequence{}
	p.fading = false
}

// Tick продвигает паттерн или затухание
func (p *Player) Tick(nowMs uint32) {
	if p.fading {
		p.tickFade(nowMs)
		return
	}
	if p.current == None {
		return
	}

	if !p.stepStarted {
		p.stepStarted = true
		p.stepStartMs = nowMs
		p.from = 0
	}

	step := p.seq.Steps[p.stepIndex]
	elapsed := nowMs - p.stepStartMs

	t := 1.0
	if step.DurationMs > 0 {
		t = float64(elapsed) / float64(step.DurationMs)
	}
	if t > 1 {
		t = 1
	}

	target := uint8(uint32(step.Target) * uint32(p.scale) / 100)
	if step.Channel == ChannelVibration {
		target = SafeVibration(target)
	} else {
		target = SafeThermal(target)
	}

	level := EaseIntensity(p.from, target, step.Curve, t)
	if step.Channel == ChannelVibration {
		p.setVibration(level)
	} else {
		p.setThermal(level)
	}

	if elapsed < step.DurationMs {
		return
	}

	p.stepIndex++
	p.stepStartMs = nowMs
	p.from = target

	if p.stepIndex >= len(p.seq.Steps) {
		if p.seq.Loop {
			p.stepIndex = 0
			return
		}
		p.stepIndex = len(p.seq.Steps) - 1
		p.Stop()
	}
}

func (p *Player) tickFade(nowMs uint32) {
	if !p.fadeStarted {
		p.fadeStarted = true
		p.fadeStartMs = nowMs
	}

	t := float64(nowMs-p.fadeStartMs) / FadeOutMs
	if t >= 1 {
		p.StopImmediate()
		return
	}

	p.setVibration(EaseIntensity(p.fadeFromVib, 0, EaseOutSine, t))
	p.setThermal(EaseIntensity(p.fadeFromThermal, 0, EaseOutSine, t))
}

// IsPlaying true, пока паттерн играет и не затухает
func (p *Player) IsPlaying() bool {
	return p.current != None && !p.fading
}

// IsFading true во время мягкой остановки
func (p *Player) IsFading() bool {
	return p.fading
}

// Current текущий паттерн, включая затухающий
func (p *Player) Current() Pattern {
	return p.current
}

// Outputs последние значения, записанные в каналы
func (p *Player) Outputs() (vibPct, thermalPct uint8) {
	return p.vibOut, p.thermalOut
}
