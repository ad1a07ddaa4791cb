package signature

import "ring-haptics-service/internal/cue"

// MinPerceptiblePct ненулевой масштаб ниже этого порога поднимается до него
const MinPerceptiblePct = 15

// Mapping строка таблицы соответствия подсказки и паттерна
type Mapping struct {
	Type     cue.Type
	Priority cue.Priority
	Pattern  Pattern
}

// порядок важен: при поиске только по типу выигрывает первая строка
var mappings = []Mapping{
	{cue.TypeCombined, cue.PriorityAlert, FullReset},
	{cue.TypeVibration, cue.PriorityAlert, FullReset},
	{cue.TypeThermal, cue.PriorityAlert, SafetyEmbrace},

	{cue.TypeCombined, cue.PriorityHigh, Heartbeat},
	{cue.TypeVibration, cue.PriorityHigh, Heartbeat},
	{cue.TypeThermal, cue.PriorityHigh, SafetyEmbrace},

	{cue.TypeBreathing, cue.PriorityNormal, BreathingGuide},
	{cue.TypeVibration, cue.PriorityNormal, AttentionTap},
	{cue.TypeThermal, cue.PriorityNormal, WarmExhale},
	{cue.TypeCombined, cue.PriorityNormal, GentleAlert},

	{cue.TypeVibration, cue.PriorityLow, GroundingPulse},
	{cue.TypeThermal, cue.PriorityLow, GroundingWarmth},
	{cue.TypeCheckFit, cue.PriorityLow, PresenceCheck},

	{cue.TypeAlert, cue.PriorityAlert, FullReset},
	{cue.TypeAlert, cue.PriorityHigh, Heartbeat},
	{cue.TypeAlert, cue.PriorityNormal, GentleAlert},
}

// Mappings возвращает копию таблицы соответствия
func Mappings() []Mapping {
	out := make([]Mapping, len(mappings))
	copy(out, mappings)
	return out
}

// PatternFor выбирает паттерн: точное совпадение типа и приоритета,
// затем только тип, затем категория
func PatternFor(out cue.Output) Pattern {
	if out.Type == cue.TypeNone {
		return None
	}

	for _, m := range mappings {
		if m.Type == out.Type && m.Priority == out.Priority {
			return m.Pattern
		}
	}
	for _, m := range mappings {
		if m.Type == out.Type {
			return m.Pattern
		}
	}

	switch out.Type {
	case cue.TypeAlert, cue.TypeCombined:
		return GentleAlert
	case cue.TypeBreathing:
		return BreathingGuide
	case cue.TypeVibration:
		return GroundingPulse
	case cue.TypeThermal:
		return WarmExhale
	case cue.TypeCheckFit:
		return PresenceCheck
	default:
		return None
	}
}

// PerceptualScale кусочно-линейное приближение квадратного корня:
// 25 -> 50, 50 -> 71, 75 -> 87, 100 -> 100
func PerceptualScale(pct uint8) uint8 {
	x := uint32(pct)
	var scaled uint32
	switch {
	case x < 25:
		scaled = x * 2
	case x < 50:
		scaled = 50 + (x-25)*21/25
	case x < 75:
		scaled = 71 + (x-50)*16/25
	default:
		scaled = 87 + (x-75)*13/25
	}
	if scaled > 100 {
		scaled = 100
	}
	return uint8(scaled)
}

// IntensityScale масштаб паттерна из большей из двух интенсивностей подсказки
func IntensityScale(out cue.Output) uint8 {
	base := out.VibIntensity
	if out.ThermalIntensity > base {
		base = out.ThermalIntensity
	}
	if base == 0 {
		return 0
	}
	scale := PerceptualScale(base)
	if scale < MinPerceptiblePct {
		scale = MinPerceptiblePct
	}
	return scale
}

// Execute проигрывает подсказку как паттерн. Возвращает выбранный паттерн, None если играть нечего
func Execute(p *Player, out cue.Output) Pattern {
	pattern := PatternFor(out)
	if pattern == None {
		return None
	}
	p.Play(pattern, IntensityScale(out))
	return pattern
}
