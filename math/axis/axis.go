/*Package axis implements the uniform one-dimensional coordinate axes that
every interpolation grid in this module is built on top of: N nodes spread
evenly across [min, max], with O(1) node lookup.
*/
package axis

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Axis is a uniform grid of N >= 2 nodes covering [Min, Max]. Node i sits at
// Min + i*Delta, where Delta = (Max-Min)/(N-1). Axis is a plain value type:
// two axes with the same fields are interchangeable, and it is safe to share
// by value across InterpGrids.
type Axis struct {
	n        int
	min, max float64
	delta    float64
}

// New creates a uniform axis of n nodes spanning [min, max].
//
// New panics if n < 2 or min > max, since neither of those can be
// interpolated against.
func New(n int, min, max float64) Axis {
	if n < 2 {
		panic(fmt.Sprintf("axis: n = %d, must be >= 2", n))
	}
	if min > max {
		panic(fmt.Sprintf("axis: min = %g > max = %g", min, max))
	}
	return Axis{n: n, min: min, max: max, delta: (max - min) / float64(n-1)}
}

// NewSingle creates a degenerate one-node axis pinned at value. This is the
// exception carved out by spec.md §4.5 for DIS grids, which force
// N_y2 = 1, y2 in [1,1]: a genuine interpolation Axis always has N >= 2, but
// the second incoming parton doesn't exist in DIS, so its "axis" is a single
// placeholder coordinate.
func NewSingle(value float64) Axis {
	return Axis{n: 1, min: value, max: value, delta: 0}
}

// N returns the number of nodes on the axis.
func (a Axis) N() int { return a.n }

// Min returns the coordinate of node 0.
func (a Axis) Min() float64 { return a.min }

// Max returns the coordinate of node N-1.
func (a Axis) Max() float64 { return a.max }

// Delta returns the uniform node spacing.
func (a Axis) Delta() float64 { return a.delta }

// Node returns the coordinate of node i. i is not range-checked.
func (a Axis) Node(i int) float64 { return a.min + float64(i)*a.delta }

// Nodes returns the coordinates of every node on the axis, in order.
func (a Axis) Nodes() []float64 {
	out := make([]float64, a.n)
	floats.Span(out, a.min, a.max)
	return out
}

// Index returns the (possibly fractional, possibly out-of-[0,N-1]) index of
// x on the axis: (x-Min)/Delta.
func (a Axis) Index(x float64) float64 {
	return (x - a.min) / a.delta
}

// InRange reports whether x falls within [Min, Max].
func (a Axis) InRange(x float64) bool {
	return x >= a.min && x <= a.max
}

// Equal reports structural equality: same node count, range and spacing.
// Axis equality is by value, not by identity.
func Equal(a, b Axis) bool {
	return a.n == b.n && a.min == b.min && a.max == b.max
}
