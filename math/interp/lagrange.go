/*Package interp implements the Lagrange interpolation basis fI(i,n,u) and
the stencil node-index solver k(.) of spec.md §4.2-4.3. This is component
C4: given an order-p stencil, it turns a fractional coordinate into a lower
node index plus the p+1 basis weights to scatter a fill across.
*/
package interp

import (
	"math"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/NNPDF/qgrid/logging"
	"github.com/NNPDF/qgrid/math/axis"
)

// MaxOrder is the hard cap on interpolation order per axis (spec.md §3:
// p_tau, p_y in [1, 16]).
const MaxOrder = 16

// ScratchLen is the length of the basis-weight scratch array (p <= 16, so
// p+1 <= 17 weights).
const ScratchLen = MaxOrder + 1

// factorialMemo caches i! for i in [0, 33], per spec.md §4.3, backed by
// gonum's combinatorics package rather than a hand-rolled loop.
var factorialMemo [34]float64

func init() {
	for i := range factorialMemo {
		factorialMemo[i] = combin.Factorial(i)
	}
}

func factorial(n int) float64 {
	if n >= 0 && n < len(factorialMemo) {
		return factorialMemo[n]
	}
	return combin.Factorial(n)
}

// onNode is the tolerance below which u is considered to coincide with node
// i, per spec.md §4.3.
const onNode = 1e-8

// Basis evaluates fI(i, n, u): the Lagrange basis function for node i of an
// order-n stencil at fractional offset u.
func Basis(i, n int, u float64) float64 {
	if n == 0 && i == 0 {
		return 1
	}
	if math.Abs(u-float64(i)) < onNode {
		return 1
	}

	prod := 1.0
	for z := 0; z <= n; z++ {
		prod *= u - float64(z)
	}

	sign := 1.0
	if (n-i)%2 != 0 {
		sign = -1
	}
	return sign / (factorial(i) * factorial(n-i) * (u - float64(i))) * prod
}

// Row fills out[0..n] with fI(i, n, u) for every i in [0, n]. out must have
// length at least n+1; callers should pass a reusable [ScratchLen]float64
// backed slice to avoid per-fill allocation in hot loops.
func Row(n int, u float64, out []float64) {
	for i := 0; i <= n; i++ {
		out[i] = Basis(i, n, u)
	}
}

// NodeIndex solves for the lower stencil node k and fractional offset u of
// coordinate x on ax at interpolation order p, per spec.md §4.2:
//
//	k = clamp(floor((x-min)/delta) - floor(p/2), 0, N-1-p)
//
// x outside [min, max] is clamped but still filled (OutOfRange is logged,
// never returned), matching the "proceed, don't refuse" policy of §4.2/§7.
func NodeIndex(ax axis.Axis, p int, x float64) (k int, u float64) {
	if ax.N() == 1 {
		// Degenerate axis (DIS's placeholder y2 dimension): one node, no
		// stencil to solve for.
		return 0, 0
	}
	if !ax.InRange(x) {
		logging.Warn("OutOfRange", logging.Fields{"x": x, "min": ax.Min(), "max": ax.Max()},
			"coordinate outside axis range; clamping stencil and proceeding")
	}

	idx := math.Floor(ax.Index(x))
	k = int(idx) - p/2
	if k < 0 {
		k = 0
	}
	if max := ax.N() - 1 - p; k > max {
		k = max
	}

	u = (x - ax.Node(k)) / ax.Delta()
	return k, u
}

// ClampOrder enforces N-1 >= order (spec.md §3/§7 OrderTooHigh), clamping
// down and logging a warning if violated.
func ClampOrder(n, order int) int {
	if order > n-1 {
		logging.Warn("OrderTooHigh", logging.Fields{"order": order, "n": n},
			"interpolation order exceeds N-1 on this axis; clamping down")
		return n - 1
	}
	return order
}
