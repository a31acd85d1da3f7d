package delta

import "fmt"

// DefaultStep is the checkpoint distance used when NewCompressedList gets a
// non-positive step.
const DefaultStep = 64

// Generator produces the values of a [CompressedList]. First returns the
// value of row 0; Next returns the value of row from the value of row-1.
type Generator[T any] interface {
	First() T
	Next(prev T, row int) T
}

// GeneratorFuncs adapts two plain functions to a [Generator].
type GeneratorFuncs[T any] struct {
	FirstFunc func() T
	NextFunc  func(prev T, row int) T
}

func (g GeneratorFuncs[T]) First() T               { return g.FirstFunc() }
func (g GeneratorFuncs[T]) Next(prev T, row int) T { return g.NextFunc(prev, row) }

// CompressedList is a row-indexed sequence that stores only every step-th
// value. Values in between are regenerated from the nearest preceding
// checkpoint on access, so Get costs at most step-1 generator calls.
//
// CompressedList is not safe for concurrent use.
type CompressedList[T any] struct {
	gen         Generator[T]
	step        int
	size        int
	checkpoints []T // checkpoints[k] is the value of row k*step
}

// NewCompressedList builds a list of size rows from gen.
func NewCompressedList[T any](gen Generator[T], size, step int) *CompressedList[T] {
	if step <= 0 {
		step = DefaultStep
	}
	l := &CompressedList[T]{gen: gen, step: step}
	l.rebuildFrom(0, size)
	return l
}

// Size returns the number of rows.
func (l *CompressedList[T]) Size() int { return l.size }

// Step returns the checkpoint distance.
func (l *CompressedList[T]) Step() int { return l.step }

// Get returns the value of row i. It panics if i is out of range.
func (l *CompressedList[T]) Get(i int) T {
	if i < 0 || i >= l.size {
		panic(fmt.Sprintf("delta: row %d out of range [0, %d)", i, l.size))
	}
	k := i / l.step
	v := l.checkpoints[k]
	for row := k*l.step + 1; row <= i; row++ {
		v = l.gen.Next(v, row)
	}
	return v
}

// Values materializes the whole list.
func (l *CompressedList[T]) Values() []T {
	out := make([]T, l.size)
	for k, cp := range l.checkpoints {
		row := k * l.step
		v := cp
		out[row] = v
		for j := row + 1; j < min(row+l.step, l.size); j++ {
			v = l.gen.Next(v, j)
			out[j] = v
		}
	}
	return out
}

// Recalculate brings the list in line with a generator whose underlying rows
// changed by r. Checkpoints before r.From are kept; the rest are regenerated
// because each value may depend on every row before it.
func (l *CompressedList[T]) Recalculate(r Replace) error {
	if r.From < 0 || r.To < r.From || r.To > l.size {
		return fmt.Errorf("replace %s out of bounds for %d rows", r, l.size)
	}
	if r.IsEmpty() {
		return nil
	}
	l.rebuildFrom(r.From, r.NewSize(l.size))
	return nil
}

// rebuildFrom keeps every checkpoint whose row is below from and regenerates
// the others for a list of newSize rows.
func (l *CompressedList[T]) rebuildFrom(from, newSize int) {
	keep := 0
	if from > 0 {
		keep = (from-1)/l.step + 1
	}
	keep = min(keep, len(l.checkpoints))
	l.checkpoints = l.checkpoints[:keep]
	l.size = newSize
	if newSize == 0 {
		l.checkpoints = l.checkpoints[:0]
		return
	}

	var v T
	row := 0
	if keep == 0 {
		v = l.gen.First()
		l.checkpoints = append(l.checkpoints, v)
	} else {
		row = (keep - 1) * l.step
		v = l.checkpoints[keep-1]
	}
	for row++; row < newSize; row++ {
		v = l.gen.Next(v, row)
		if row%l.step == 0 {
			l.checkpoints = append(l.checkpoints, v)
		}
	}
}
