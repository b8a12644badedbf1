// Package random содержит единственный источник недетерминизма движка.
//
// Вся игровая логика (Domain и Systems) обязана получать случайность только
// через интерфейс Source. Прямые вызовы math/rand в игровом коде запрещены -
// иначе ломается реплей (см. свойство детерминизма в тестах testkit).
package random

import "math/rand"

// Source - это набор примитивов случайности, который движок передает игровой логике.
//
// Все производные операции (Die, Range, Shuffle) выражены через Float64,
// чтобы очередь подставных значений (Queue) могла управлять любым броском.
type Source interface {
	// Float64 возвращает число в [0, 1).
	Float64() float64
	// Die возвращает результат броска кубика: целое в [1, sides].
	Die(sides int) int
	// Range возвращает целое в [min, max] включительно.
	Range(min, max int) int
	// Shuffle перемешивает n элементов через swap (Fisher-Yates).
	Shuffle(n int, swap func(i, j int))
}

// dieFrom выражает бросок кубика через один вызов Float64.
// Единая формула для всех реализаций: floor(f*sides)+1.
func dieFrom(s Source, sides int) int {
	if sides < 1 {
		return 1
	}
	v := int(s.Float64()*float64(sides)) + 1
	if v > sides {
		v = sides // Float64 теоретически может вернуть значение вплотную к 1
	}
	return v
}

func rangeFrom(s Source, min, max int) int {
	if max <= min {
		return min
	}
	span := max - min + 1
	v := min + int(s.Float64()*float64(span))
	if v > max {
		v = max
	}
	return v
}

func shuffleFrom(s Source, n int, swap func(i, j int)) {
	// Fisher-Yates сверху вниз. Каждый обмен - ровно один draw,
	// поэтому количество потребленных значений предсказуемо для тестов.
	for i := n - 1; i > 0; i-- {
		j := rangeFrom(s, 0, i)
		swap(i, j)
	}
}

// Seeded - продакшен-реализация: псевдослучайный генератор от зерна.
// Сохранив зерно, партию можно воспроизвести байт-в-байт.
type Seeded struct {
	rng  *rand.Rand
	seed int64
}

// NewSeeded создает источник от зерна.
func NewSeeded(seed int64) *Seeded {
	return &Seeded{
		rng:  rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Seed возвращает зерно, с которого начался генератор (для записи в реплей).
func (s *Seeded) Seed() int64 { return s.seed }

func (s *Seeded) Float64() float64 { return s.rng.Float64() }

func (s *Seeded) Die(sides int) int { return dieFrom(s, sides) }

func (s *Seeded) Range(min, max int) int { return rangeFrom(s, min, max) }

func (s *Seeded) Shuffle(n int, swap func(i, j int)) { shuffleFrom(s, n, swap) }
