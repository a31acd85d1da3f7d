package delta

import "fmt"

// RowCache holds one eagerly derived value per row.
type RowCache[T any] struct {
	values []T
}

// NewRowCache derives size values with derive.
func NewRowCache[T any](size int, derive func(row int) T) *RowCache[T] {
	c := &RowCache[T]{values: make([]T, size)}
	for i := range c.values {
		c.values[i] = derive(i)
	}
	return c
}

// Len returns the number of rows.
func (c *RowCache[T]) Len() int { return len(c.values) }

// Get returns the value of row i.
func (c *RowCache[T]) Get(i int) T { return c.values[i] }

// Values returns the backing slice. Callers must not modify it.
func (c *RowCache[T]) Values() []T { return c.values }

// Recalculate derives only the AddElementsCount new rows of r and splices
// them in place of [r.From, r.To).
func (c *RowCache[T]) Recalculate(r Replace, derive func(row int) T) error {
	if r.IsEmpty() {
		return nil
	}
	fresh := make([]T, r.AddElementsCount)
	for i := range fresh {
		fresh[i] = derive(r.From + i)
	}
	next, err := Apply(c.values, r, fresh)
	if err != nil {
		return fmt.Errorf("row cache: %w", err)
	}
	c.values = next
	return nil
}
