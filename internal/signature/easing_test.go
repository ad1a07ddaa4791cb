package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allCurves = []Curve{Linear, EaseInSine, EaseOutSine, EaseInOutSine, EaseOutQuad, EaseInQuad, Breath}

func TestEase_LinearIsIdentity(t *testing.T) {
	for i := 0; i <= 20; i++ {
		x := float64(i) / 20
		assert.InDelta(t, x, Ease(Linear, x), 1e-12)
	}
}

func TestEase_ClampsOutsideUnitRange(t *testing.T) {
	for _, c := range allCurves {
		assert.Equal(t, 0.0, Ease(c, -0.5), c.String())
		assert.Equal(t, 0.0, Ease(c, 0), c.String())
		assert.Equal(t, 1.0, Ease(c, 1), c.String())
		assert.Equal(t, 1.0, Ease(c, 7), c.String())
	}
}

func TestEase_CurveShapes(t *testing.T) {
	assert.InDelta(t, 0.2929, Ease(EaseInSine, 0.5), 1e-4)
	assert.InDelta(t, 0.7071, Ease(EaseOutSine, 0.5), 1e-4)
	assert.InDelta(t, 0.5, Ease(EaseInOutSine, 0.5), 1e-9)
	assert.InDelta(t, 0.75, Ease(EaseOutQuad, 0.5), 1e-9)
	assert.InDelta(t, 0.25, Ease(EaseInQuad, 0.5), 1e-9)

	// Breath peaks at the end of the inhale and falls back afterwards
	assert.InDelta(t, 0.5, Ease(Breath, 0.2), 1e-9)
	assert.InDelta(t, 1.0, Ease(Breath, 0.4), 1e-9)
	assert.InDelta(t, 0.75, Ease(Breath, 0.7), 1e-9)
}

func TestEaseIntensity(t *testing.T) {
	assert.Equal(t, uint8(40), EaseIntensity(20, 60, Linear, 0.5))
	assert.Equal(t, uint8(20), EaseIntensity(20, 60, Linear, -1))
	assert.Equal(t, uint8(60), EaseIntensity(20, 60, Linear, 2))
	assert.Equal(t, uint8(30), EaseIntensity(60, 0, Linear, 0.5))
	// Rounds to nearest
	assert.Equal(t, uint8(10), EaseIntensity(0, 35, EaseInSine, 0.5))
	assert.Equal(t, uint8(100), EaseIntensity(200, 250, Linear, 0.5))
}

func TestSafeClamps(t *testing.T) {
	for r := 0; r <= 255; r++ {
		req := uint8(r)
		assert.LessOrEqual(t, SafeVibration(req), uint8(VibMaxPct))
		assert.LessOrEqual(t, SafeThermal(req), uint8(ThermalMaxPct))
		if req <= VibMaxPct {
			assert.Equal(t, req, SafeVibration(req))
		}
		if req <= ThermalMaxPct {
			assert.Equal(t, req, SafeThermal(req))
		}
	}
}
