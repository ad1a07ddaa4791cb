package main

import (
	"fmt"
	"io"
	"time"

	"ring-haptics-service/internal/biometrics"
	"ring-haptics-service/internal/cue"
	"ring-haptics-service/internal/signal"
	"ring-haptics-service/internal/wellness"
)

// simOptions параметры офлайн-сессии
type simOptions struct {
	Duration      time.Duration
	Schedule      string
	Autonomous    bool
	SignatureFeel bool
	Hour          uint8
}

// simResult итог офлайн-сессии
type simResult struct {
	Decisions []wellness.Decision
	Metrics   biometrics.Metrics
	RRSeen    uint32
	Cues      cue.Stats
}

func spacingFor(schedule string) (signal.SpacingFunc, error) {
	switch schedule {
	case "steady":
		return signal.Constant(800), nil
	case "alternating":
		return signal.Alternating(800, 20), nil
	case "ramp":
		return signal.StressRamp(90000), nil
	default:
		return nil, fmt.Errorf("unknown schedule %q (steady, alternating, ramp)", schedule)
	}
}

// simulate прогоняет синтетический PPG через ядро: сэмпл и тик каждые 10 мс
func simulate(opts simOptions) (simResult, error) {
	spacing, err := spacingFor(opts.Schedule)
	if err != nil {
		return simResult{}, err
	}

	m := wellness.NewManager(wellness.Options{
		Autonomous:    opts.Autonomous,
		SignatureFeel: opts.SignatureFeel,
	})
	m.SetHour(opts.Hour)

	sim := signal.NewPPGSim(100, 1.0, 0.5, 60, 200, spacing)
	until := uint32(opts.Duration.Milliseconds())

	var res simResult
	for sim.Now() < until {
		v, ts := sim.Next()
		m.ProcessSample(v, ts)
		if d, ok := m.Tick(ts); ok {
			res.Decisions = append(res.Decisions, d)
		}
	}

	res.Metrics = m.Metrics()
	res.RRSeen = m.RRSeen()
	res.Cues = m.CueStats()
	return res, nil
}

func printSimulation(w io.Writer, res simResult) {
	for _, d := range res.Decisions {
		fmt.Fprintf(w, "%8.2fs  %-8s %-6s stress=%3d conf=%2d%%  pattern=%s thermal=%d%%/%ds vib=%d%%\n",
			float64(d.Input.TimestampMs)/1000,
			d.Output.Type, d.Output.Priority,
			d.Input.StressLevel, d.Input.ConfidencePct,
			d.Pattern,
			d.Output.ThermalIntensity, d.Output.ThermalDurationS,
			d.Output.VibIntensity)
	}

	met := res.Metrics
	fmt.Fprintf(w, "rr_seen=%d valid=%d total=%d\n", res.RRSeen, met.ValidSamples, met.TotalSamples)
	fmt.Fprintf(w, "mean_rr=%.1fms rmssd=%.1fms baseline=%.1fms established=%t\n",
		met.MeanRRMs, met.RMSSD, met.BaselineRMSSD, met.BaselineEstablished)
	fmt.Fprintf(w, "stress=%.3f coherence=%d%%\n", met.StressScore, met.CoherencePct())
	fmt.Fprintf(w, "cues generated=%d suppressed=%d\n", res.Cues.Generated, res.Cues.Suppressed)
}
