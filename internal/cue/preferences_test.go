package cue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferences_BinaryRoundTrip(t *testing.T) {
	prefs := DefaultPreferences()

	data, err := prefs.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 80, 70, 22, 7, 1, 1, 1, 1}, data)

	var got Preferences
	require.NoError(t, got.UnmarshalBinary(data))
	assert.Equal(t, prefs, got)

	again, err := got.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestPreferences_ShortBlob(t *testing.T) {
	var p Preferences
	err := p.UnmarshalBinary([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortPreferences)
}

func TestPreferences_RejectsNonBinaryFlags(t *testing.T) {
	for _, i := range []int{0, 6, 7, 8} {
		data := []byte{1, 80, 70, 22, 7, 1, 1, 1, 1}
		data[i] = 2

		p := DefaultPreferences()
		err := p.UnmarshalBinary(data)
		assert.ErrorIs(t, err, ErrInvalidPreferences, "byte %d", i)
		// Target is left untouched on error
		assert.Equal(t, DefaultPreferences(), p)
	}
}

func TestPreferences_Clamp(t *testing.T) {
	p := Preferences{
		MaxThermalPct:  150,
		MaxVibPct:      101,
		QuietStartHour: 30,
		QuietEndHour:   24,
		Sensitivity:    9,
	}.Clamp()

	assert.Equal(t, uint8(100), p.MaxThermalPct)
	assert.Equal(t, uint8(100), p.MaxVibPct)
	assert.Equal(t, uint8(23), p.QuietStartHour)
	assert.Equal(t, uint8(23), p.QuietEndHour)
	assert.Equal(t, SensitivityAssertive, p.Sensitivity)

	// Valid values pass through untouched
	assert.Equal(t, DefaultPreferences(), DefaultPreferences().Clamp())
}

func TestProfileFor(t *testing.T) {
	assert.Equal(t, uint8(7), ProfileFor(SensitivitySubtle).DurationMult)
	assert.Equal(t, uint8(10), ProfileFor(SensitivityNormal).DurationMult)
	assert.Equal(t, ProfileFor(SensitivityAssertive), ProfileFor(Sensitivity(200)))
}
