package random

// Queue - тестовый источник случайности с очередью подставных значений.
//
// Пока очередь не пуста, Float64 возвращает значения из нее по FIFO.
// Когда очередь кончается, вызовы уходят в запасной источник - поэтому
// частично заскриптованные тесты остаются валидными.
type Queue struct {
	values   []float64
	fallback Source
	consumed int
}

// NewQueue создает очередь поверх запасного источника.
// fallback обязателен: очередь не умеет генерировать сама.
func NewQueue(fallback Source) *Queue {
	return &Queue{fallback: fallback}
}

// SetQueue заменяет текущую очередь новым набором значений.
func (q *Queue) SetQueue(values []float64) {
	q.values = append([]float64(nil), values...)
	q.consumed = 0
}

// Push добавляет значения в конец очереди.
func (q *Queue) Push(values ...float64) {
	q.values = append(q.values, values...)
}

// Clear очищает очередь. Последующие вызовы идут в fallback.
func (q *Queue) Clear() {
	q.values = nil
	q.consumed = 0
}

// Remaining возвращает количество непотребленных значений.
func (q *Queue) Remaining() int { return len(q.values) }

// Consumed возвращает, сколько подставных значений уже было выдано.
func (q *Queue) Consumed() int { return q.consumed }

func (q *Queue) Float64() float64 {
	if len(q.values) > 0 {
		v := q.values[0]
		q.values = q.values[1:]
		q.consumed++
		return v
	}
	return q.fallback.Float64()
}

func (q *Queue) Die(sides int) int { return dieFrom(q, sides) }

func (q *Queue) Range(min, max int) int { return rangeFrom(q, min, max) }

func (q *Queue) Shuffle(n int, swap func(i, j int)) { shuffleFrom(q, n, swap) }
