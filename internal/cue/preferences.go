package cue

import (
	"errors"
	"fmt"
)

// PreferencesSize размер бинарного представления настроек
const PreferencesSize = 9

// ErrShortPreferences бинарный блок короче PreferencesSize
var ErrShortPreferences = errors.New("cue: preferences blob too short")

// ErrInvalidPreferences флаг в блоке не 0 и не 1
var ErrInvalidPreferences = errors.New("cue: invalid preferences flag")

// Preferences пользовательские настройки подсказок
type Preferences struct {
	Enabled          bool        `json:"enabled"`
	MaxThermalPct    uint8       `json:"max_thermal_pct"`
	MaxVibPct        uint8       `json:"max_vib_pct"`
	QuietStartHour   uint8       `json:"quiet_start_hour"`
	QuietEndHour     uint8       `json:"quiet_end_hour"`
	Sensitivity      Sensitivity `json:"sensitivity"`
	BreathingEnabled bool        `json:"breathing_enabled"`
	ThermalEnabled   bool        `json:"thermal_enabled"`
	VibrationEnabled bool        `json:"vibration_enabled"`
}

// DefaultPreferences настройки после инициализации
func DefaultPreferences() Preferences {
	return Preferences{
		Enabled:          true,
		MaxThermalPct:    80,
		MaxVibPct:        70,
		QuietStartHour:   22,
		QuietEndHour:     7,
		Sensitivity:      SensitivityNormal,
		BreathingEnabled: true,
		ThermalEnabled:   true,
		VibrationEnabled: true,
	}
}

// Clamp приводит значения к допустимым границам вместо отказа
func (p Preferences) Clamp() Preferences {
	if p.MaxThermalPct > 100 {
		p.MaxThermalPct = 100
	}
	if p.MaxVibPct > 100 {
		p.MaxVibPct = 100
	}
	if p.QuietStartHour > 23 {
		p.QuietStartHour = 23
	}
	if p.QuietEndHour > 23 {
		p.QuietEndHour = 23
	}
	if p.Sensitivity > SensitivityAssertive {
		p.Sensitivity = SensitivityAssertive
	}
	return p
}

// MarshalBinary упаковывает настройки в 9 байт
func (p Preferences) MarshalBinary() ([]byte, error) {
	return []byte{
		boolByte(p.Enabled),
		p.MaxThermalPct,
		p.MaxVibPct,
		p.QuietStartHour,
		p.QuietEndHour,
		uint8(p.Sensitivity),
		boolByte(p.BreathingEnabled),
		boolByte(p.ThermalEnabled),
		boolByte(p.VibrationEnabled),
	}, nil
}

// UnmarshalBinary распаковывает 9-байтовый блок
func (p *Preferences) UnmarshalBinary(data []byte) error {
	if len(data) < PreferencesSize {
		return fmt.Errorf("%w: got %d bytes", ErrShortPreferences, len(data))
	}
	for _, i := range []int{0, 6, 7, 8} {
		if data[i] > 1 {
			return fmt.Errorf("%w: byte %d = %d", ErrInvalidPreferences, i, data[i])
		}
	}
	*p = Preferences{
		Enabled:          data[0] != 0,
		MaxThermalPct:    data[1],
		MaxVibPct:        data[2],
		QuietStartHour:   data[3],
		QuietEndHour:     data[4],
		Sensitivity:      Sensitivity(data[5]),
		BreathingEnabled: data[6] != 0,
		ThermalEnabled:   data[7] != 0,
		VibrationEnabled: data[8] != 0,
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
