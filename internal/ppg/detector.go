// Package ppg выделяет RR-интервалы из потока PPG-сэмплов (100 Гц)
//
// Конвейер на каждый сэмпл:
// - удаление постоянной составляющей скользящим средним (5 сэмплов)
// - первая производная и возведение в квадрат
// - интегрирование скользящим средним (12 сэмплов, ~120 мс)
// - адаптивный порог с рефрактерным периодом 300 мс
package ppg

import "ring-haptics-service/internal/ringbuf"

const (
	// SampleRateHz частота дискретизации, под которую настроены окна
	SampleRateHz = 100
	// DCWindow окно удаления постоянной составляющей (50 мс)
	DCWindow = 5
	// IntegratorWindow окно интегрирования энергии (120 мс)
	IntegratorWindow = 12
	// RefractoryMs минимальный интервал между пиками
	RefractoryMs = 300
	// InitialThreshold стартовый адаптивный порог
	InitialThreshold = 0.05
	// ThresholdDecay затухание порога на сэмплах без пика
	ThresholdDecay = 0.995
	// ThresholdBoostAlpha скорость подтягивания порога к энергии пика
	ThresholdBoostAlpha = 0.10
	// RRBufferSize емкость очереди RR для внешних потребителей
	RRBufferSize = 32
)

// Detector потоковый детектор пиков. Не потокобезопасен: им владеет один цикл обработки
type Detector struct {
	dc         *ringbuf.Window
	integrator *ringbuf.Window
	rr         *ringbuf.Ring[float64]

	prevDCRemoved float64
	threshold     float64
	lastPeakMs    uint32
	hasPeak       bool
	initialized   bool
}

// NewDetector создает детектор с пустым состоянием
func NewDetector() *Detector {
	return &Detector{
		dc:         ringbuf.NewWindow(DCWindow),
		integrator: ringbuf.NewWindow(IntegratorWindow),
		rr:         ringbuf.New[float64](RRBufferSize),
	}
}

// ProcessSample обрабатывает один сэмпл. Возвращает RR в мс, если найден пик
// и предыдущий пик уже был
func (d *Detector) ProcessSample(sample float64, timestampMs uint32) (float64, bool) {
	if !d.initialized {
		d.dc.Fill(sample)
		d.integrator.Fill(0)
		d.prevDCRemoved = sample
		d.threshold = InitialThreshold
		d.hasPeak = false
		d.lastPeakMs = 0
		d.initialized = true
	}

	dcRemoved := sample - d.dc.Add(sample)

	diff := dcRemoved - d.prevDCRemoved
	d.prevDCRemoved = dcRemoved

	energy := d.integrator.Add(diff * diff)

	refractoryOK := !d.hasPeak || timestampMs-d.lastPeakMs > RefractoryMs
	if !refractoryOK || energy <= d.threshold {
		d.threshold *= ThresholdDecay
		return 0, false
	}

	d.threshold = (1-ThresholdBoostAlpha)*d.threshold + ThresholdBoostAlpha*energy

	var rr float64
	emitted := false
	if d.hasPeak {
		rr = float64(timestampMs - d.lastPeakMs)
		d.rr.Push(rr)
		emitted = true
	}
	d.lastPeakMs = timestampMs
	d.hasPeak = true

	return rr, emitted
}

// PopRR извлекает самый старый RR из очереди
func (d *Detector) PopRR() (float64, bool) {
	return d.rr.Pop()
}

// Pending возвращает число RR, ожидающих извлечения
func (d *Detector) Pending() int {
	return d.rr.Len()
}

// Threshold возвращает текущий адаптивный порог
func (d *Detector) Threshold() float64 {
	return d.threshold
}

// Reset обнуляет все состояние детектора и очередь RR
func (d *Detector) Reset() {
	d.dc.Reset()
	d.integrator.Reset()
	d.rr.Reset()
	d.prevDCRemoved = 0
	d.threshold = 0
	d.lastPeakMs = 0
	d.hasPeak = false
	d.initialized = false
}
