// Package ringbuf реализует ограниченные кольцевые буферы:
// FIFO с вытеснением старейшего элемента и скользящее окно со средним
package ringbuf

// Ring кольцевой буфер фиксированной емкости.
// При переполнении Push вытесняет самый старый элемент.
type Ring[T any] struct {
	values []T
	head   int // индекс самого старого элемента
	count  int
}

// New создает буфер заданной емкости
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{values: make([]T, capacity)}
}

// Push добавляет значение в конец. Возвращает true, если был вытеснен старый элемент
func (r *Ring[T]) Push(v T) bool {
	dropped := false
	if r.count == len(r.values) {
		r.head = (r.head + 1) % len(r.values)
		r.count--
		dropped = true
	}
	tail := (r.head + r.count) % len(r.values)
	r.values[tail] = v
	r.count++
	return dropped
}

// Pop извлекает самый старый элемент
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	if r.count == 0 {
		return zero, false
	}
	v := r.values[r.head]
	r.values[r.head] = zero
	r.head = (r.head + 1) % len(r.values)
	r.count--
	return v, true
}

// At возвращает i-й элемент, считая от самого старого
func (r *Ring[T]) At(i int) T {
	return r.values[(r.head+i)%len(r.values)]
}

// Values возвращает копию содержимого от старого к новому
func (r *Ring[T]) Values() []T {
	out := make([]T, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.At(i)
	}
	return out
}

// Len возвращает количество элементов
func (r *Ring[T]) Len() int {
	return r.count
}

// Cap возвращает емкость буфера
func (r *Ring[T]) Cap() int {
	return len(r.values)
}

// Reset очищает буфер
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.values {
		r.values[i] = zero
	}
	r.head = 0
	r.count = 0
}
