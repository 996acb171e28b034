// Package sampling implements instantaneous sampling of state behaviors:
// a drift-free time grid, per-subject state resolution and the engine that
// builds one result table per observation and subject.
package sampling

import (
	"iter"

	"github.com/ethoflow/ethoflow/internal/model"
)

// Grid is the ascending sequence start, start+step, ... strictly below end.
// Instants are computed as start+i*step on fixed-point values, so no error
// accumulates however long the grid.
type Grid struct {
	start model.Time
	step  model.Time
	n     int
}

// NewGrid creates a grid over [start, end). A non-positive step or an empty
// range yields an empty grid.
func NewGrid(start, end, step model.Time) Grid {
	if step <= 0 || start >= end {
		return Grid{}
	}
	span := end - start
	return Grid{
		start: start,
		step:  step,
		n:     int((span + step - 1) / step),
	}
}

// Len returns the number of instants.
func (g Grid) Len() int {
	return g.n
}

// At returns the i-th instant. It does not check bounds.
func (g Grid) At(i int) model.Time {
	return g.start + model.Time(i)*g.step
}

// All yields every instant in order. Each call restarts from the first instant.
func (g Grid) All() iter.Seq[model.Time] {
	return func(yield func(model.Time) bool) {
		for i := 0; i < g.n; i++ {
			if !yield(g.At(i)) {
				return
			}
		}
	}
}

// Slice materializes the grid.
func (g Grid) Slice() []model.Time {
	out := make([]model.Time, 0, g.n)
	for t := range g.All() {
		out = append(out, t)
	}
	return out
}
