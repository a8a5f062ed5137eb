package rng

import (
	"errors"
	"fmt"
)

// ErrInvalidTable пустая, нулевая или отрицательная таблица весов. Ошибка конфигурации
var ErrInvalidTable = errors.New("invalid weight table")

// Entry исход и его вес
type Entry[T any] struct {
	Value  T
	Weight int
}

// Table таблица весов. Порядок записей задает порядок кумулятивного поиска
type Table[T any] []Entry[T]

// Total сумма весов
func (t Table[T]) Total() int {
	total := 0
	for _, e := range t {
		total += e.Weight
	}
	return total
}

// Validate проверка таблицы при загрузке конфигурации
func (t Table[T]) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidTable)
	}
	for i, e := range t {
		if e.Weight < 0 {
			return fmt.Errorf("%w: negative weight at %d", ErrInvalidTable, i)
		}
	}
	if t.Total() <= 0 {
		return fmt.Errorf("%w: zero sum", ErrInvalidTable)
	}
	return nil
}

// Choice выбор пропорционально весу, первое попадание по кумулятивной сумме
func Choice[T any](src Source, t Table[T]) (T, error) {
	var zero T
	if err := t.Validate(); err != nil {
		return zero, err
	}
	total := t.Total()
	r := IntN(src, total)
	for _, e := range t {
		if r < e.Weight {
			return e.Value, nil
		}
		r -= e.Weight
	}
	// недостижимо при валидной таблице
	return t[len(t)-1].Value, nil
}
