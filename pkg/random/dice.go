package random

// Dice - адаптер над Queue для заскриптованных бросков кубика.
//
// Грани (1..sides) конвертируются в значения [0,1) по той же формуле,
// по которой Die раскладывает Float64 на грани. Берется середина интервала
// грани, чтобы результат не зависел от погрешностей плавающей точки.
type Dice struct {
	queue *Queue
	sides int
	faces []int
}

// NewDice создает адаптер для кубика с заданным числом граней.
func NewDice(queue *Queue, sides int) *Dice {
	if sides < 1 {
		sides = 6
	}
	return &Dice{queue: queue, sides: sides}
}

// faceToFloat возвращает значение Float64, при котором Die выдаст нужную грань.
func (d *Dice) faceToFloat(face int) float64 {
	if face < 1 {
		face = 1
	}
	if face > d.sides {
		face = d.sides
	}
	// Середина интервала [ (face-1)/sides, face/sides )
	return (float64(face-1) + 0.5) / float64(d.sides)
}

// SetFaces заменяет очередь заданной последовательностью граней.
func (d *Dice) SetFaces(faces []int) {
	converted := make([]float64, len(faces))
	for i, f := range faces {
		converted[i] = d.faceToFloat(f)
	}
	d.queue.SetQueue(converted)
	d.faces = append([]int(nil), faces...)
}

// PushFaces добавляет грани в конец очереди.
func (d *Dice) PushFaces(faces ...int) {
	for _, f := range faces {
		d.queue.Push(d.faceToFloat(f))
	}
	d.faces = append(d.faces, faces...)
}

// Clear очищает очередь бросков.
func (d *Dice) Clear() {
	d.faces = nil
	d.queue.Clear()
}

// Remaining возвращает количество незаскриптованных бросков в очереди.
func (d *Dice) Remaining() int { return d.queue.Remaining() }

// Faces возвращает заданные грани (для отладки тестов).
func (d *Dice) Faces() []int { return append([]int(nil), d.faces...) }
