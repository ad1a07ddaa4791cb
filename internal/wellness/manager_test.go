package wellness

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ring-haptics-service/internal/actuator"
	"ring-haptics-service/internal/biometrics"
	"ring-haptics-service/internal/cue"
	"ring-haptics-service/internal/models"
	"ring-haptics-service/internal/signal"
	"ring-haptics-service/internal/signature"
)

// stressRamp holds a resting rhythm for 90 s, then ramps the heart rate up
var stressRamp = signal.StressRamp(90000)

func newSim(spacing signal.SpacingFunc) *signal.PPGSim {
	return signal.NewPPGSim(100, 1.0, 0.5, 60, 200, spacing)
}

// feed drives the manager like the device loop: one sample and one tick every 10 ms
func feed(m *Manager, sim *signal.PPGSim, untilMs uint32) []Decision {
	var decisions []Decision
	for sim.Now() < untilMs {
		v, ts := sim.Next()
		m.ProcessSample(v, ts)
		if d, ok := m.Tick(ts); ok {
			decisions = append(decisions, d)
		}
	}
	return decisions
}

func TestManager_SteadyRhythmEstablishesBaseline(t *testing.T) {
	m := NewManager(Options{})
	feed(m, newSim(signal.Constant(800)), 90000)

	met := m.Metrics()
	assert.InDelta(t, 110, int(m.RRSeen()), 3)
	assert.InDelta(t, 109, int(met.ValidSamples), 3)
	assert.LessOrEqual(t, met.ValidSamples, met.TotalSamples)
	assert.True(t, met.BaselineEstablished)
	assert.InDelta(t, 800, met.MeanRRMs, 5)
	assert.GreaterOrEqual(t, met.RMSSD, 0.0)
}

func TestManager_StressRisesWhenRhythmTightens(t *testing.T) {
	m := NewManager(Options{})
	sim := newSim(stressRamp)

	feed(m, sim, 90000)
	relaxed := m.Metrics()
	require.True(t, relaxed.BaselineEstablished)
	assert.InDelta(t, 0.495, relaxed.StressScore, 0.03)
	assert.InDelta(t, 40, relaxed.RMSSD, 2)

	feed(m, sim, 180000)
	tense := m.Metrics()
	assert.InDelta(t, 0.806, tense.StressScore, 0.05)
	assert.Greater(t, tense.StressScore, relaxed.StressScore+0.2)
	assert.InDelta(t, 500, tense.MeanRRMs, 10)

	// Autonomous mode was off
	assert.Equal(t, uint32(0), m.CueStats().Generated)
}

func TestManager_AutonomousCuesThroughSignaturePlayer(t *testing.T) {
	m := NewManager(DefaultOptions())
	decisions := feed(m, newSim(stressRamp), 180000)

	require.Len(t, decisions, 2)

	first := decisions[0]
	assert.Equal(t, cue.TypeThermal, first.Output.Type)
	assert.Equal(t, cue.PriorityLow, first.Output.Priority)
	assert.Equal(t, signature.GroundingWarmth, first.Pattern)
	assert.False(t, first.Direct)
	assert.InDelta(t, 30600, int(first.Input.TimestampMs), 1000)
	assert.Equal(t, uint8(70), first.Input.ConfidencePct)
	assert.Equal(t, uint8(80), first.Input.StabilityPct)

	// Alert waits for half of the combined cooldown after the thermal cue
	second := decisions[1]
	assert.Equal(t, cue.TypeAlert, second.Output.Type)
	assert.Equal(t, signature.FullReset, second.Pattern)
	assert.Greater(t, second.Input.StressLevel, uint8(cue.CriticalStressLevel))
	assert.Equal(t, uint8(90), second.Input.ConfidencePct)
	assert.GreaterOrEqual(t, second.Input.TimestampMs-first.Input.TimestampMs, uint32(cue.CooldownCombinedMs/2))

	stats := m.CueStats()
	assert.Equal(t, uint32(2), stats.Generated)
	assert.Equal(t, uint32(0), stats.Suppressed)
	assert.Equal(t, cue.TypeCombined, stats.LastType)
}

func TestManager_DirectModeUsesController(t *testing.T) {
	m := NewManager(Options{Autonomous: true})
	decisions := feed(m, newSim(stressRamp), 31000)

	require.Len(t, decisions, 1)
	d := decisions[0]
	assert.True(t, d.Direct)
	assert.Equal(t, signature.None, d.Pattern)
	assert.Equal(t, signature.None, m.Playing())

	st := m.ActuatorStatus(31000)
	assert.Equal(t, actuator.TypeThermal, st.CurrentType)
	assert.True(t, st.ThermalActive)
	assert.False(t, st.VibrationActive)
	assert.Greater(t, st.RemainingMs, uint32(0))
}

func TestManager_NoEvaluationBeforeEnoughData(t *testing.T) {
	m := NewManager(DefaultOptions())
	decisions := feed(m, newSim(signal.Constant(800)), 25000)

	assert.Empty(t, decisions)
	assert.Equal(t, uint32(0), m.CueStats().Generated)
	assert.Equal(t, uint32(0), m.CueStats().Suppressed)
}

func TestManager_RRQueueDropsOldest(t *testing.T) {
	m := NewManager(Options{})
	feed(m, newSim(signal.Constant(800)), 20000)

	rr := m.DrainRR()
	require.Len(t, rr, RRQueueSize)
	for _, v := range rr {
		assert.InDelta(t, 800, v, 30)
	}
	assert.Nil(t, m.DrainRR())

	_, ok := m.PopRR()
	assert.False(t, ok)
}

func TestManager_PopRRInOrder(t *testing.T) {
	m := NewManager(Options{})
	sim := newSim(signal.Alternating(800, 20))
	feed(m, sim, 10000)

	first, ok := m.PopRR()
	require.True(t, ok)
	second, ok := m.PopRR()
	require.True(t, ok)
	assert.InDelta(t, 40, math.Abs(first-second), 25, "alternating beats should differ, got %v and %v", first, second)
}

func TestManager_CoherencePacket(t *testing.T) {
	m := NewManager(Options{})

	empty := m.CoherencePacket()
	assert.Equal(t, uint8(packetConfidenceLow), empty.ConfidencePct)
	assert.Equal(t, uint16(0), empty.MeanRRMs)

	feed(m, newSim(signal.Alternating(800, 20)), 90000)
	p := m.CoherencePacket()
	assert.Equal(t, uint8(packetConfidenceHigh), p.ConfidencePct)
	assert.InDelta(t, 800, int(p.MeanRRMs), 5)
	assert.InDelta(t, 40, int(p.RMSSDMs), 2)
	assert.InDelta(t, 40, int(p.VariabilityLevel), 2)
	assert.InDelta(t, 49, int(p.StressLevel), 2)
	assert.InDelta(t, 50, int(p.CoherencePct), 2)
	assert.Equal(t, uint16(0), p.RespiratoryRateCPM)
}

func TestManager_ApplyCommandLimitedByConfig(t *testing.T) {
	m := NewManager(Options{})
	cfg := models.DefaultConfig()
	cfg.ThermalMaxPct = 30
	m.ApplyConfig(cfg)

	require.True(t, m.ApplyCommand(models.ActuatorCommand{ThermalIntensity: 90, ThermalDurationS: 10}, 0))
	for now := uint32(0); now <= 2500; now += 10 {
		m.Tick(now)
	}

	st := m.ActuatorStatus(2500)
	assert.Equal(t, actuator.TypeThermal, st.CurrentType)
	assert.Equal(t, uint8(30), st.ThermalDuty)
	assert.Equal(t, actuator.ThermalActive, st.ThermalState)
}

func TestManager_ApplyCommandAllZeroStops(t *testing.T) {
	m := NewManager(Options{})
	require.True(t, m.ApplyCommand(models.ActuatorCommand{VibrationPattern: uint8(actuator.VibHeartbeat), VibrationIntensity: 60}, 0))
	m.Tick(0)
	assert.True(t, m.ActuatorStatus(0).VibrationActive)

	require.True(t, m.ApplyCommand(models.ActuatorCommand{}, 100))
	m.Tick(100)
	st := m.ActuatorStatus(100)
	assert.False(t, st.VibrationActive)
	assert.Equal(t, actuator.TypeNone, st.CurrentType)
}

func TestManager_ApplyConfigClampsAndUpdatesPreferences(t *testing.T) {
	m := NewManager(Options{})

	got := m.ApplyConfig(models.Config{
		StreamingRateHz:  0,
		CoherenceUpdateS: 90,
		ThermalMaxPct:    150,
		VibrationMaxPct:  45,
		QuietHoursStart:  20,
		QuietHoursEnd:    30,
	})
	assert.Equal(t, uint8(1), got.StreamingRateHz)
	assert.Equal(t, uint8(60), got.CoherenceUpdateS)
	assert.Equal(t, got, m.Config())

	prefs := m.Preferences()
	assert.Equal(t, uint8(100), prefs.MaxThermalPct)
	assert.Equal(t, uint8(45), prefs.MaxVibPct)
	assert.Equal(t, uint8(20), prefs.QuietStartHour)
	assert.Equal(t, uint8(23), prefs.QuietEndHour)
	// Untouched preference fields survive
	assert.True(t, prefs.Enabled)
	assert.Equal(t, cue.SensitivityNormal, prefs.Sensitivity)
}

func TestManager_DeviceStateReportsThermalFault(t *testing.T) {
	m := NewManager(Options{})
	m.Connect()
	m.SetStreaming(true)

	require.True(t, m.ApplyCommand(models.ActuatorCommand{ThermalIntensity: 50, ThermalDurationS: 20}, 0))
	for now := uint32(0); now <= 500; now += 10 {
		m.Tick(now)
	}
	assert.False(t, m.DeviceState(500).ThermalFault())

	m.UpdateSkinTemp(43)
	m.Tick(510)

	st := m.DeviceState(180000)
	assert.True(t, st.ThermalFault())
	assert.Equal(t, int8(43), st.SkinTempC)
	assert.Equal(t, models.ConnectionConnected, st.ConnectionState)
	assert.Equal(t, uint8(models.StreamingRR|models.StreamingCoherence), st.StreamingActive)
	assert.Equal(t, uint16(3), st.UptimeMin)

	// Sensing keeps working while output is faulted
	assert.False(t, m.ClearThermalFault())
	m.UpdateSkinTemp(36)
	assert.True(t, m.ClearThermalFault())
	assert.False(t, m.DeviceState(180000).ThermalFault())
}

func TestManager_DisconnectStopsOutputs(t *testing.T) {
	m := NewManager(Options{})
	m.Connect()
	m.SetStreaming(true)

	require.True(t, m.ApplyCommand(models.ActuatorCommand{VibrationPattern: uint8(actuator.VibBreathing), VibrationIntensity: 40}, 0))
	m.Tick(0)
	require.True(t, m.ActuatorStatus(0).VibrationActive)

	m.Disconnect()
	st := m.ActuatorStatus(10)
	assert.False(t, st.VibrationActive)
	assert.False(t, st.ThermalActive)

	ds := m.DeviceState(10)
	assert.Equal(t, models.ConnectionAdvertising, ds.ConnectionState)
	assert.Equal(t, uint8(0), ds.StreamingActive)
	assert.False(t, m.Streaming())
}

func TestManager_ResetKeepsPreferences(t *testing.T) {
	m := NewManager(Options{})
	prefs := cue.DefaultPreferences()
	prefs.Sensitivity = cue.SensitivityAssertive
	m.SetPreferences(prefs)

	feed(m, newSim(signal.Constant(800)), 20000)
	require.NotZero(t, m.Metrics().ValidSamples)

	m.Reset()
	assert.Equal(t, biometrics.NewMetrics(), m.Metrics())
	assert.Equal(t, uint32(0), m.RRSeen())
	assert.Nil(t, m.DrainRR())
	assert.Equal(t, cue.SensitivityAssertive, m.Preferences().Sensitivity)
}

func TestManager_SetAutonomous(t *testing.T) {
	m := NewManager(DefaultOptions())
	assert.True(t, m.Autonomous())
	assert.True(t, m.SignatureFeel())

	m.SetAutonomous(false)
	decisions := feed(m, newSim(stressRamp), 60000)
	assert.Empty(t, decisions)
}

func TestManager_EvaluatedFlag(t *testing.T) {
	m := NewManager(DefaultOptions())
	sim := newSim(stressRamp)

	var evaluated, triggered []uint32
	for sim.Now() < 60000 {
		v, ts := sim.Next()
		m.ProcessSample(v, ts)
		d, ok := m.Tick(ts)
		if ok {
			triggered = append(triggered, ts)
			assert.True(t, d.Evaluated)
		}
		if d.Evaluated {
			evaluated = append(evaluated, ts)
			assert.Equal(t, ts, d.Input.TimestampMs)
		} else {
			assert.Equal(t, Decision{}, d)
		}
	}

	// The second evaluation finds coherence back at 50 and no rule fires
	require.Len(t, evaluated, 2)
	require.Len(t, triggered, 1)
	assert.Equal(t, evaluated[0], triggered[0])
	assert.InDelta(t, 45800, int(evaluated[1]), 1000)
}

func TestManager_DirectCueKeepsVibrationLimit(t *testing.T) {
	m := NewManager(Options{Autonomous: true})

	pattern, direct := m.express(cue.Output{
		Type:             cue.TypeAlert,
		Priority:         cue.PriorityAlert,
		ThermalIntensity: 70,
		ThermalDurationS: 20,
		VibPattern:       actuator.VibAlert,
		VibIntensity:     30,
	}, 1000)

	assert.True(t, direct)
	assert.Equal(t, signature.None, pattern)
	assert.Equal(t, actuator.TypeCombined, m.ActuatorStatus(1000).CurrentType)
	assert.Equal(t, uint8(30), m.controller.Vibration().Intensity())
}
