// Package signal генерирует синтетический PPG-сигнал для симуляции и тестов
package signal

import "math"

// SpacingFunc возвращает интервал (мс) от удара beat с началом onsetMs до следующего
type SpacingFunc func(beat int, onsetMs uint32) uint32

// Constant интервал без вариабельности
func Constant(ms uint32) SpacingFunc {
	return func(int, uint32) uint32 { return ms }
}

// Alternating чередует base-jitter и base+jitter, давая RMSSD около 2*jitter
func Alternating(base, jitter uint32) SpacingFunc {
	return func(beat int, _ uint32) uint32 {
		if beat%2 == 0 {
			return base - jitter
		}
		return base + jitter
	}
}

// StressRamp чередует 780/820 мс до holdMs, затем укорачивает интервал на 1 мс
// за каждые 100 мс с чередованием +-5 мс, не ниже 500 мс
func StressRamp(holdMs uint32) SpacingFunc {
	return func(beat int, onsetMs uint32) uint32 {
		if onsetMs < holdMs {
			if beat%2 == 0 {
				return 780
			}
			return 820
		}
		base := 800 - int((onsetMs-holdMs)/100)
		if base < 500 {
			base = 500
		}
		if beat%2 == 0 {
			return uint32(base - 5)
		}
		return uint32(base + 5)
	}
}

// PPGSim детерминированная последовательность пульсовых волн
// (приподнятый косинус) поверх постоянной составляющей
type PPGSim struct {
	dc        float64
	amplitude float64
	widthMs   uint32
	stepMs    uint32
	spacing   SpacingFunc

	nowMs     uint32
	nextOnset uint32
	onset     uint32
	hasOnset  bool
	beat      int
}

// NewPPGSim sampleRateHz=100, первый удар на firstOnsetMs
func NewPPGSim(sampleRateHz int, dc, amplitude float64, widthMs, firstOnsetMs uint32, spacing SpacingFunc) *PPGSim {
	if sampleRateHz <= 0 {
		sampleRateHz = 100
	}
	return &PPGSim{
		dc:        dc,
		amplitude: amplitude,
		widthMs:   widthMs,
		stepMs:    uint32(1000 / sampleRateHz),
		spacing:   spacing,
		nextOnset: firstOnsetMs,
	}
}

// Next возвращает следующий сэмпл и его метку времени, затем сдвигает время
func (s *PPGSim) Next() (float64, uint32) {
	ts := s.nowMs
	for ts >= s.nextOnset {
		s.onset = s.nextOnset
		s.hasOnset = true
		s.nextOnset += s.spacing(s.beat, s.nextOnset)
		s.beat++
	}

	v := s.dc
	if s.hasOnset && ts-s.onset < s.widthMs {
		p := float64(ts-s.onset) / float64(s.widthMs)
		v += s.amplitude * 0.5 * (1 - math.Cos(2*math.Pi*p))
	}

	s.nowMs += s.stepMs
	return v, ts
}

// Now возвращает метку времени следующего сэмпла
func (s *PPGSim) Now() uint32 {
	return s.nowMs
}

// Beats возвращает число уже начавшихся ударов
func (s *PPGSim) Beats() int {
	return s.beat
}
