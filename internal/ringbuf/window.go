package ringbuf

// Window реализует скользящее окно с накопленной суммой для быстрого среднего
type Window struct {
	values []float64
	size   int
	index  int
	count  int
	sum    float64
}

// NewWindow создает новое скользящее окно заданного размера
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{
		values: make([]float64, size),
		size:   size,
	}
}

// Fill заполняет все окно одним значением
func (w *Window) Fill(value float64) {
	for i := range w.values {
		w.values[i] = value
	}
	w.sum = value * float64(w.size)
	w.count = w.size
	w.index = 0
}

// Add добавляет новое значение в окно и возвращает новое среднее
func (w *Window) Add(value float64) float64 {
	if w.count >= w.size {
		// Вытесняем старое значение из суммы
		w.sum -= w.values[w.index]
	} else {
		w.count++
	}

	w.values[w.index] = value
	w.sum += value
	w.index = (w.index + 1) % w.size

	return w.Mean()
}

// Mean возвращает среднее значение окна
func (w *Window) Mean() float64 {
	if w.count == 0 {
		return 0
	}
	return w.sum / float64(w.count)
}

// Count возвращает количество элементов в окне
func (w *Window) Count() int {
	return w.count
}

// Size возвращает размер окна
func (w *Window) Size() int {
	return w.size
}

// Reset очищает окно
func (w *Window) Reset() {
	for i := range w.values {
		w.values[i] = 0
	}
	w.index = 0
	w.count = 0
	w.sum = 0
}
