// Package biometrics превращает поток RR-интервалов в оценку стресса:
// отбраковка артефактов, инкрементальный RMSSD, адаптивный персональный
// baseline и сглаженный stress score
package biometrics

import "math"

const (
	// MinRRMs нижняя физиологическая граница RR
	MinRRMs = 300.0
	// MaxRRMs верхняя физиологическая граница RR
	MaxRRMs = 2000.0
	// MaxRRChange допустимое относительное изменение между соседними RR (правило 20%)
	MaxRRChange = 0.20
	// DefaultBaselineRMSSD стартовое значение baseline
	DefaultBaselineRMSSD = 40.0
	// BaselineAlpha скорость адаптации baseline (~200 сэмплов)
	BaselineAlpha = 0.005
	// BaselineWarmupSamples после стольких валидных сэмплов baseline начинает адаптироваться
	BaselineWarmupSamples = 10
	// BaselineEstablishedSamples после стольких валидных сэмплов baseline считается установленным
	BaselineEstablishedSamples = 60

	diffAlpha   = 0.1
	meanAlpha   = 0.05
	stressAlpha = 0.2
)

// Metrics накопленная статистика. Меняется только через ProcessRR и Reset
type Metrics struct {
	LastRRMs            float64 `json:"last_rr_ms"`
	MeanRRMs            float64 `json:"mean_rr_ms"`
	MeanDiffSq          float64 `json:"mean_diff_sq"`
	RMSSD               float64 `json:"rmssd"`
	BaselineRMSSD       float64 `json:"baseline_rmssd"`
	BaselineEstablished bool    `json:"baseline_established"`
	StressScore         float64 `json:"stress_score"`
	ValidSamples        uint32  `json:"valid_samples"`
	TotalSamples        uint32  `json:"total_samples"`
}

// NewMetrics возвращает обнуленную статистику с baseline по умолчанию
func NewMetrics() Metrics {
	var m Metrics
	m.Reset()
	return m
}

// Reset обнуляет все поля и возвращает baseline к значению по умолчанию
func (m *Metrics) Reset() {
	*m = Metrics{BaselineRMSSD: DefaultBaselineRMSSD}
}

// ProcessRR принимает кандидата RR. Отбракованный сэмпл не меняет ни одного поля
func (m *Metrics) ProcessRR(rrMs float64) bool {
	if rrMs < MinRRMs || rrMs > MaxRRMs {
		return false
	}

	if m.ValidSamples > 0 {
		if math.Abs(rrMs-m.LastRRMs) > m.LastRRMs*MaxRRChange {
			return false
		}

		diff := rrMs - m.LastRRMs
		diffSq := diff * diff
		if m.ValidSamples == 1 {
			m.MeanDiffSq = diffSq
		} else {
			m.MeanDiffSq = diffAlpha*diffSq + (1-diffAlpha)*m.MeanDiffSq
		}
		m.RMSSD = math.Sqrt(m.MeanDiffSq)
	}

	if m.ValidSamples == 0 {
		m.MeanRRMs = rrMs
	} else {
		m.MeanRRMs = meanAlpha*rrMs + (1-meanAlpha)*m.MeanRRMs
	}

	if m.RMSSD > 0 {
		if m.ValidSamples > BaselineWarmupSamples {
			m.BaselineRMSSD = BaselineAlpha*m.RMSSD + (1-BaselineAlpha)*m.BaselineRMSSD
		}
		if m.ValidSamples > BaselineEstablishedSamples {
			m.BaselineEstablished = true
		}

		raw := StressFromRatio(m.RMSSD / m.BaselineRMSSD)
		if m.ValidSamples == 1 {
			m.StressScore = raw
		} else {
			m.StressScore = stressAlpha*raw + (1-stressAlpha)*m.StressScore
		}
	}

	m.LastRRMs = rrMs
	m.ValidSamples++
	m.TotalSamples++
	return true
}

// StressFromRatio отображает отношение RMSSD/baseline в сырой стресс [0,1]:
// >=1.5 расслабление, <=0.5 острый стресс, между ними линейно
func StressFromRatio(ratio float64) float64 {
	var raw float64
	switch {
	case ratio >= 1.5:
		raw = 0
	case ratio <= 0.5:
		raw = 1
	default:
		raw = 1 - (ratio - 0.5)
	}
	return clamp01(raw)
}

// StressPct стресс в процентах 0-100
func (m *Metrics) StressPct() uint8 {
	return uint8(clamp01(m.StressScore) * 100)
}

// CoherencePct когерентность как обратная к стрессу величина 0-100
func (m *Metrics) CoherencePct() uint8 {
	return uint8((1 - clamp01(m.StressScore)) * 100)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
