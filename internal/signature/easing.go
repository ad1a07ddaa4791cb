// Package signature задает "характер" кольца: именованные многошаговые
// паттерны с плавными кривыми, которые проигрываются на нагреватель
// и вибромотор с жесткими потолками безопасности и мягким затуханием
package signature

import "math"

// Curve кривая сглаживания перехода
type Curve uint8

const (
	Linear Curve = iota
	EaseInSine
	EaseOutSine
	EaseInOutSine
	EaseOutQuad
	EaseInQuad
	// Breath асимметричное дыхание: вдох 40% длительности, выдох 60%
	Breath
)

func (c Curve) String() string {
	switch c {
	case Linear:
		return "linear"
	case EaseInSine:
		return "ease_in_sine"
	case EaseOutSine:
		return "ease_out_sine"
	case EaseInOutSine:
		return "ease_in_out_sine"
	case EaseOutQuad:
		return "ease_out_quad"
	case EaseInQuad:
		return "ease_in_quad"
	case Breath:
		return "breath"
	default:
		return "unknown"
	}
}

const breathInhaleShare = 0.4

// Ease возвращает значение кривой для прогресса t. t вне [0,1] прижимается к границе
func Ease(c Curve, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}

	switch c {
	case EaseInSine:
		return 1 - math.Cos(t*math.Pi/2)
	case EaseOutSine:
		return math.Sin(t * math.Pi / 2)
	case EaseInOutSine:
		return -(math.Cos(math.Pi*t) - 1) / 2
	case EaseOutQuad:
		return 1 - (1-t)*(1-t)
	case EaseInQuad:
		return t * t
	case Breath:
		if t < breathInhaleShare {
			in := t / breathInhaleShare
			return -(math.Cos(math.Pi*in) - 1) / 2
		}
		out := (t - breathInhaleShare) / (1 - breathInhaleShare)
		return 1 - out*out
	default:
		return t
	}
}

// EaseIntensity интерполирует интенсивность from -> to по кривой с округлением, результат в [0,100]
func EaseIntensity(from, to uint8, c Curve, t float64) uint8 {
	v := float64(from) + (float64(to)-float64(from))*Ease(c, t)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return uint8(v + 0.5)
}
