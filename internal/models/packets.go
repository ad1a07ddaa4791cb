package models

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Размеры упакованных структур (little-endian, без выравнивания)
const (
	CoherencePacketSize = 12
	ActuatorCommandSize = 4
	DeviceStateSize     = 8
	ConfigSize          = 16
)

// ErrShortPacket буфер короче упакованной структуры
var ErrShortPacket = errors.New("models: packet too short")

func checkLen(data []byte, want int, name string) error {
	if len(data) < want {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrShortPacket, name, want, len(data))
	}
	return nil
}

// CoherencePacket периодический снимок биометрии для телеметрии
type CoherencePacket struct {
	StressLevel        uint8  `json:"stress_level"`
	CoherencePct       uint8  `json:"coherence_pct"`
	ConfidencePct      uint8  `json:"confidence_pct"`
	VariabilityLevel   uint8  `json:"variability_level"`
	MeanRRMs           uint16 `json:"mean_rr_ms"`
	RMSSDMs            uint16 `json:"rmssd_ms"`
	RespiratoryRateCPM uint16 `json:"respiratory_rate_cpm"` // x10, пока всегда 0
	Reserved           uint16 `json:"-"`
}

// MarshalBinary упаковывает пакет в 12 байт
func (p CoherencePacket) MarshalBinary() ([]byte, error) {
	b := make([]byte, CoherencePacketSize)
	b[0] = p.StressLevel
	b[1] = p.CoherencePct
	b[2] = p.ConfidencePct
	b[3] = p.VariabilityLevel
	binary.LittleEndian.PutUint16(b[4:], p.MeanRRMs)
	binary.LittleEndian.PutUint16(b[6:], p.RMSSDMs)
	binary.LittleEndian.PutUint16(b[8:], p.RespiratoryRateCPM)
	binary.LittleEndian.PutUint16(b[10:], p.Reserved)
	return b, nil
}

// UnmarshalBinary распаковывает пакет
func (p *CoherencePacket) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, CoherencePacketSize, "coherence packet"); err != nil {
		return err
	}
	*p = CoherencePacket{
		StressLevel:        data[0],
		CoherencePct:       data[1],
		ConfidencePct:      data[2],
		VariabilityLevel:   data[3],
		MeanRRMs:           binary.LittleEndian.Uint16(data[4:]),
		RMSSDMs:            binary.LittleEndian.Uint16(data[6:]),
		RespiratoryRateCPM: binary.LittleEndian.Uint16(data[8:]),
		Reserved:           binary.LittleEndian.Uint16(data[10:]),
	}
	return nil
}

// ActuatorCommand внешняя команда на актуаторы. Все нули означают остановку
type ActuatorCommand struct {
	ThermalIntensity   uint8 `json:"thermal_intensity"`
	ThermalDurationS   uint8 `json:"thermal_duration_s"`
	VibrationPattern   uint8 `json:"vibration_pattern"`
	VibrationIntensity uint8 `json:"vibration_intensity"`
}

// MarshalBinary упаковывает команду в 4 байта
func (c ActuatorCommand) MarshalBinary() ([]byte, error) {
	return []byte{c.ThermalIntensity, c.ThermalDurationS, c.VibrationPattern, c.VibrationIntensity}, nil
}

// UnmarshalBinary распаковывает команду
func (c *ActuatorCommand) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, ActuatorCommandSize, "actuator command"); err != nil {
		return err
	}
	*c = ActuatorCommand{
		ThermalIntensity:   data[0],
		ThermalDurationS:   data[1],
		VibrationPattern:   data[2],
		VibrationIntensity: data[3],
	}
	return nil
}

// LimitTo обрезает интенсивности по максимумам из конфигурации
func (c ActuatorCommand) LimitTo(cfg Config) ActuatorCommand {
	if c.ThermalIntensity > cfg.ThermalMaxPct {
		c.ThermalIntensity = cfg.ThermalMaxPct
	}
	if c.VibrationIntensity > cfg.VibrationMaxPct {
		c.VibrationIntensity = cfg.VibrationMaxPct
	}
	return c
}

// Флаги DeviceState
const (
	StreamingRR        = 0x01
	StreamingCoherence = 0x02

	ErrorThermalFault = 0x08
)

// Состояния соединения
const (
	ConnectionIdle uint8 = iota
	ConnectionAdvertising
	ConnectionConnected
)

// DeviceState состояние устройства
type DeviceState struct {
	BatteryPct      uint8  `json:"battery_pct"`
	ChargingState   uint8  `json:"charging_state"`
	ConnectionState uint8  `json:"connection_state"`
	StreamingActive uint8  `json:"streaming_active"`
	SkinTempC       int8   `json:"skin_temp_c"`
	ErrorFlags      uint8  `json:"error_flags"`
	UptimeMin       uint16 `json:"uptime_min"`
}

// MarshalBinary упаковывает состояние в 8 байт
func (s DeviceState) MarshalBinary() ([]byte, error) {
	b := make([]byte, DeviceStateSize)
	b[0] = s.BatteryPct
	b[1] = s.ChargingState
	b[2] = s.ConnectionState
	b[3] = s.StreamingActive
	b[4] = byte(s.SkinTempC)
	b[5] = s.ErrorFlags
	binary.LittleEndian.PutUint16(b[6:], s.UptimeMin)
	return b, nil
}

// UnmarshalBinary распаковывает состояние
func (s *DeviceState) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, DeviceStateSize, "device state"); err != nil {
		return err
	}
	*s = DeviceState{
		BatteryPct:      data[0],
		ChargingState:   data[1],
		ConnectionState: data[2],
		StreamingActive: data[3],
		SkinTempC:       int8(data[4]),
		ErrorFlags:      data[5],
		UptimeMin:       binary.LittleEndian.Uint16(data[6:]),
	}
	return nil
}

// ThermalFault true, если выставлен бит аварии нагревателя
func (s DeviceState) ThermalFault() bool {
	return s.ErrorFlags&ErrorThermalFault != 0
}

// Config настройки устройства, записываемые снаружи
type Config struct {
	StreamingRateHz  uint8   `json:"streaming_rate_hz"`
	CoherenceUpdateS uint8   `json:"coherence_update_s"`
	ThermalMaxPct    uint8   `json:"thermal_max_pct"`
	VibrationMaxPct  uint8   `json:"vibration_max_pct"`
	QuietHoursStart  uint8   `json:"quiet_hours_start"`
	QuietHoursEnd    uint8   `json:"quiet_hours_end"`
	LEDBrightness    uint8   `json:"led_brightness"`
	Reserved         [9]byte `json:"-"`
}

// DefaultConfig конфигурация после включения
func DefaultConfig() Config {
	return Config{
		StreamingRateHz:  4,
		CoherenceUpdateS: 15,
		ThermalMaxPct:    80,
		VibrationMaxPct:  100,
		QuietHoursStart:  22,
		QuietHoursEnd:    7,
		LEDBrightness:    50,
	}
}

// Clamp приводит поля к допустимым границам: частота 1..10 Гц, интервал 5..60 с,
// проценты не выше 100, часы не выше 23
func (c Config) Clamp() Config {
	c.StreamingRateHz = clampRange(c.StreamingRateHz, 1, 10)
	c.CoherenceUpdateS = clampRange(c.CoherenceUpdateS, 5, 60)
	c.ThermalMaxPct = clampRange(c.ThermalMaxPct, 0, 100)
	c.VibrationMaxPct = clampRange(c.VibrationMaxPct, 0, 100)
	c.QuietHoursStart = clampRange(c.QuietHoursStart, 0, 23)
	c.QuietHoursEnd = clampRange(c.QuietHoursEnd, 0, 23)
	c.LEDBrightness = clampRange(c.LEDBrightness, 0, 100)
	return c
}

func clampRange(v, lo, hi uint8) uint8 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MarshalBinary упаковывает конфигурацию в 16 байт
func (c Config) MarshalBinary() ([]byte, error) {
	b := make([]byte, ConfigSize)
	b[0] = c.StreamingRateHz
	b[1] = c.CoherenceUpdateS
	b[2] = c.ThermalMaxPct
	b[3] = c.VibrationMaxPct
	b[4] = c.QuietHoursStart
	b[5] = c.QuietHoursEnd
	b[6] = c.LEDBrightness
	copy(b[7:], c.Reserved[:])
	return b, nil
}

// UnmarshalBinary распаковывает конфигурацию без clamp
func (c *Config) UnmarshalBinary(data []byte) error {
	if err := checkLen(data, ConfigSize, "config"); err != nil {
		return err
	}
	*c = Config{
		StreamingRateHz:  data[0],
		CoherenceUpdateS: data[1],
		ThermalMaxPct:    data[2],
		VibrationMaxPct:  data[3],
		QuietHoursStart:  data[4],
		QuietHoursEnd:    data[5],
		LEDBrightness:    data[6],
	}
	copy(c.Reserved[:], data[7:ConfigSize])
	return nil
}
