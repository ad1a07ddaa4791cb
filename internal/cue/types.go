// Package cue принимает решение об автономном тактильном вмешательстве:
// гейты (включение, тихие часы, лимит в час, уверенность, артефакты),
// затем каскад правил с учетом кулдаунов
package cue

import "ring-haptics-service/internal/actuator"

// Type тип подсказки
type Type uint8

const (
	TypeNone Type = iota
	TypeThermal
	TypeVibration
	TypeBreathing
	TypeCombined
	TypeAlert
	TypeCheckFit
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeThermal:
		return "thermal"
	case TypeVibration:
		return "vibration"
	case TypeBreathing:
		return "breathing"
	case TypeCombined:
		return "combined"
	case TypeAlert:
		return "alert"
	case TypeCheckFit:
		return "check_fit"
	default:
		return "unknown"
	}
}

// Priority приоритет подсказки
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

// Input снимок метрик на один цикл решения
type Input struct {
	TimestampMs     uint32 `json:"timestamp_ms"`
	MicroVarPct100  uint16 `json:"micro_var_pct100"`
	CoherencePct    uint8  `json:"coherence_pct"`
	StabilityPct    uint8  `json:"stability_pct"`
	ConfidencePct   uint8  `json:"confidence_pct"`
	StressLevel     uint8  `json:"stress_level"`
	ArtifactRatePct uint8  `json:"artifact_rate_pct"`
}

// Output решение движка. CooldownMs носит рекомендательный характер
type Output struct {
	Type             Type                `json:"type"`
	Priority         Priority            `json:"priority"`
	ThermalIntensity uint8               `json:"thermal_intensity"`
	ThermalDurationS uint8               `json:"thermal_duration_s"`
	VibPattern       actuator.VibPattern `json:"vib_pattern"`
	VibIntensity     uint8               `json:"vib_intensity"`
	CooldownMs       uint32              `json:"cooldown_ms"`
}

// Stats счетчики движка
type Stats struct {
	Generated  uint32 `json:"generated"`
	Suppressed uint32 `json:"suppressed"`
	LastType   Type   `json:"last_type"`
	LastMs     uint32 `json:"last_ms"`
}

// Profile профиль интенсивности, выбирается по чувствительности
type Profile struct {
	ThermalBase  uint8
	ThermalMax   uint8
	VibBase      uint8
	VibMax       uint8
	DurationMult uint8 // множитель x10
}

// Sensitivity чувствительность 0..2
type Sensitivity uint8

const (
	SensitivitySubtle Sensitivity = iota
	SensitivityNormal
	SensitivityAssertive
)

var profiles = [...]Profile{
	SensitivitySubtle:    {ThermalBase: 25, ThermalMax: 50, VibBase: 15, VibMax: 40, DurationMult: 7},
	SensitivityNormal:    {ThermalBase: 35, ThermalMax: 70, VibBase: 30, VibMax: 60, DurationMult: 10},
	SensitivityAssertive: {ThermalBase: 45, ThermalMax: 85, VibBase: 45, VibMax: 80, DurationMult: 13},
}

// ProfileFor возвращает профиль для чувствительности, значения выше 2 считаются assertive
func ProfileFor(s Sensitivity) Profile {
	if s > SensitivityAssertive {
		s = SensitivityAssertive
	}
	return profiles[s]
}
