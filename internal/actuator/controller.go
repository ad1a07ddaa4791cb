package actuator

const (
	// MaxIntensityPct верхняя граница интенсивности команды
	MaxIntensityPct = 100
	// MinIntensityPct более слабые команды неощутимы и отклоняются
	MinIntensityPct = 5
	// MaxCommandMs максимальная длительность одной команды
	MaxCommandMs = 60000
	// CombinedVibCapPct потолок вибрации при одновременном нагреве
	CombinedVibCapPct = 60
	// DefaultVibrationCommandMs длительность vibration-only команды с внешнего канала
	DefaultVibrationCommandMs = 5000
)

// Type тип выхода команды
type Type uint8

const (
	TypeNone Type = iota
	TypeThermal
	TypeVibration
	TypeCombined
)

func (t Type) String() string {
	switch t {
	case TypeThermal:
		return "thermal"
	case TypeVibration:
		return "vibration"
	case TypeCombined:
		return "combined"
	default:
		return "none"
	}
}

// Priority приоритет команды
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityAlert
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityAlert:
		return "alert"
	default:
		return "unknown"
	}
}

// Command команда на актуаторы
type Command struct {
	Type             Type           `json:"type"`
	IntensityPct     uint8          `json:"intensity_pct"`
	DurationMs       uint32         `json:"duration_ms"`
	TimestampMs      uint32         `json:"timestamp_ms"`
	Priority         Priority       `json:"priority"`
	ThermalPattern   ThermalPattern `json:"thermal_pattern"`
	VibrationPattern VibPattern     `json:"vibration_pattern"`
	// VibrationPct отдельная интенсивность вибрации для Combined, 0 берет IntensityPct
	VibrationPct     uint8          `json:"vibration_pct,omitempty"`
}

// Status снимок состояния для телеметрии
type Status struct {
	ThermalActive   bool         `json:"thermal_active"`
	VibrationActive bool         `json:"vibration_active"`
	ThermalDuty     uint8        `json:"thermal_duty"`
	VibrationDuty   uint8        `json:"vibration_duty"`
	RemainingMs     uint32       `json:"remaining_ms"`
	CurrentType     Type         `json:"current_type"`
	ThermalState    ThermalState `json:"thermal_state"`
	ThermalFault    ThermalFault `json:"thermal_fault"`
}

// Controller арбитр команд между нагревателем и вибромотором
type Controller struct {
	thermal   *Thermal
	vibration *Vibration

	active           Command
	activeEndMs      uint32
	thermalRunning   bool
	vibrationRunning bool
	skinTempC        int8
}

// NewController создает контроллер поверх двух драйверов
func NewController(thermal *Thermal, vibration *Vibration) *Controller {
	c := &Controller{
		thermal:   thermal,
		vibration: vibration,
		skinTempC: DefaultSkinTempC,
	}
	c.stopOutputs()
	return c
}

// Thermal возвращает драйвер нагревателя
func (c *Controller) Thermal() *Thermal { return c.thermal }

// Vibration возвращает драйвер вибромотора
func (c *Controller) Vibration() *Vibration { return c.vibration }

// Apply принимает команду, если ее приоритет не ниже активной.
// Интенсивность выше 100 и длительность выше 60 с обрезаются, 1..4% отклоняются
func (c *Controller) Apply(cmd Command, nowMs uint32) bool {
	if cmd.IntensityPct > MaxIntensityPct {
		cmd.IntensityPct = MaxIntensityPct
	}
	if cmd.DurationMs > MaxCommandMs {
		cmd.DurationMs = MaxCommandMs
	}
	if cmd.IntensityPct != 0 && cmd.IntensityPct < MinIntensityPct {
		return false
	}

	if c.active.Type != TypeNone && cmd.Priority < c.active.Priority {
		return false
	}

	cmd.TimestampMs = nowMs
	c.active = cmd
	c.activeEndMs = nowMs + cmd.DurationMs

	c.thermal.UpdateSkinTemp(c.skinTempC)
	c.applyOutputs(c.active)
	return true
}

// ApplyBLE упрощенный вход внешнего канала: тип выводится из того, какие поля заданы.
// Все нули останавливают оба выхода
func (c *Controller) ApplyBLE(thermalIntensity, thermalDurationS uint8, vibPattern VibPattern, vibIntensity uint8, nowMs uint32) bool {
	cmd, ok := bleCommand(thermalIntensity, thermalDurationS, vibPattern, vibIntensity)
	if !ok {
		c.StopAll()
		return true
	}
	return c.Apply(cmd, nowMs)
}

// ApplyCue как ApplyBLE, но в Combined вибрация идет со своей интенсивностью,
// а не с интенсивностью нагрева
func (c *Controller) ApplyCue(thermalIntensity, thermalDurationS uint8, vibPattern VibPattern, vibIntensity uint8, nowMs uint32) bool {
	cmd, ok := bleCommand(thermalIntensity, thermalDurationS, vibPattern, vibIntensity)
	if !ok {
		c.StopAll()
		return true
	}
	if cmd.Type == TypeCombined {
		cmd.VibrationPct = vibIntensity
	}
	return c.Apply(cmd, nowMs)
}

func bleCommand(thermalIntensity, thermalDurationS uint8, vibPattern VibPattern, vibIntensity uint8) (Command, bool) {
	cmd := Command{
		Priority:         PriorityHigh,
		VibrationPattern: vibPattern,
	}

	wantThermal := thermalIntensity > 0 && thermalDurationS > 0
	wantVibration := vibPattern > 0 && vibIntensity > 0

	switch {
	case wantThermal && wantVibration:
		cmd.Type = TypeCombined
		cmd.IntensityPct = thermalIntensity
		cmd.DurationMs = uint32(thermalDurationS) * 1000
	case wantThermal:
		cmd.Type = TypeThermal
		cmd.IntensityPct = thermalIntensity
		cmd.DurationMs = uint32(thermalDurationS) * 1000
	case wantVibration:
		cmd.Type = TypeVibration
		cmd.IntensityPct = vibIntensity
		cmd.DurationMs = DefaultVibrationCommandMs
	default:
		return Command{}, false
	}
	return cmd, true
}

func (c *Controller) applyOutputs(cmd Command) {
	durationS := uint8(cmd.DurationMs / 1000)
	if durationS == 0 && cmd.DurationMs > 0 {
		durationS = 1
	}

	switch cmd.Type {
	case TypeThermal:
		c.startThermal(cmd, durationS)
		c.vibration.Stop()
		c.thermalRunning = true
		c.vibrationRunning = false

	case TypeVibration:
		c.startVibration(cmd.VibrationPattern, cmd.IntensityPct)
		c.thermal.Stop()
		c.thermalRunning = false
		c.vibrationRunning = true

	case TypeCombined:
		vib := cmd.IntensityPct
		if cmd.VibrationPct > 0 {
			vib = cmd.VibrationPct
		}
		if vib > CombinedVibCapPct {
			vib = CombinedVibCapPct
		}
		c.startThermal(cmd, durationS)
		c.startVibration(cmd.VibrationPattern, vib)
		c.thermalRunning = true
		c.vibrationRunning = true

	default:
		c.stopOutputs()
	}
}

func (c *Controller) startThermal(cmd Command, durationS uint8) {
	if cmd.ThermalPattern > ThermalPatternOff {
		c.thermal.Play(cmd.ThermalPattern, cmd.IntensityPct, durationS)
		return
	}
	c.thermal.SetTimed(cmd.IntensityPct, durationS)
}

func (c *Controller) startVibration(pattern VibPattern, intensity uint8) {
	if pattern > VibOff {
		c.vibration.Play(pattern, intensity)
		return
	}
	c.vibration.On(intensity)
}

func (c *Controller) stopOutputs() {
	c.thermal.Stop()
	c.vibration.Stop()
	c.thermalRunning = false
	c.vibrationRunning = false
}

// Tick прокручивает драйверы и снимает истекшую команду.
// Должен вызываться после Apply в том же цикле
func (c *Controller) Tick(nowMs uint32) {
	c.thermal.UpdateSkinTemp(c.skinTempC)

	c.thermal.Tick(nowMs)
	c.vibration.Tick(nowMs)

	if c.active.Type != TypeNone && int32(nowMs-c.activeEndMs) >= 0 {
		c.stopOutputs()
		c.active.Type = TypeNone
	}

	c.thermalRunning = c.thermal.IsActive()
	c.vibrationRunning = c.vibration.IsActive()

	if !c.thermalRunning && !c.vibrationRunning {
		c.active.Type = TypeNone
	}
}

// StopAll немедленно останавливает оба выхода и сбрасывает активную команду
func (c *Controller) StopAll() {
	c.stopOutputs()
	c.active.Type = TypeNone
	c.activeEndMs = 0
}

// Status возвращает снимок состояния с оставшимся временем команды
func (c *Controller) Status(nowMs uint32) Status {
	st := Status{
		ThermalActive:   c.thermalRunning,
		VibrationActive: c.vibrationRunning,
		ThermalDuty:     c.thermal.Duty(),
		VibrationDuty:   c.vibration.Duty(),
		CurrentType:     c.active.Type,
		ThermalState:    c.thermal.State(),
		ThermalFault:    c.thermal.Fault(),
	}
	if c.active.Type != TypeNone && int32(c.activeEndMs-nowMs) > 0 {
		st.RemainingMs = c.activeEndMs - nowMs
	}
	return st
}

// Active возвращает текущую команду
func (c *Controller) Active() Command { return c.active }

// IsActive true, если работает хотя бы один выход
func (c *Controller) IsActive() bool {
	return c.thermalRunning || c.vibrationRunning
}

// UpdateSkinTemp сохраняет температуру кожи и передает ее нагревателю
func (c *Controller) UpdateSkinTemp(tempC int8) {
	c.skinTempC = tempC
	c.thermal.UpdateSkinTemp(tempC)
}
