// Package actuator реализует драйверы нагревателя и вибромотора
// с собственными конечными автоматами безопасности и контроллер,
// арбитрирующий команды по приоритету
package actuator

// PWM аппаратный канал с контрактом скважности и разрешения драйвера
type PWM interface {
	SetDuty(pct uint8)
	Enable(on bool)
}

// NopPWM канал без железа: используется в симуляции и на сервере
type NopPWM struct{}

// SetDuty ничего не делает
func (NopPWM) SetDuty(uint8) {}

// Enable ничего не делает
func (NopPWM) Enable(bool) {}

// Step шаг паттерна: длительность и процент от базовой интенсивности
type Step struct {
	DurationMs uint32
	Pct        uint8
}

func scalePct(pct, base uint8) uint8 {
	return uint8(uint32(pct) * uint32(base) / 100)
}
