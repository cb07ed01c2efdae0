/*Package transform implements the monotone x<->y and Q^2<->tau coordinate
changes that let an InterpGrid sample the small-x, low-Q^2 region uniformly
in node space. It is a small process-lifetime registry (seeded with the six
built-in transforms of spec.md §3, extensible by the caller), grounded on
the named-variant dispatch in the original implementation's
"add_transform(name, &igrid::_fx2, &igrid::_fy2)" pattern.
*/
package transform

import (
	"math"
	"sync"

	"github.com/NNPDF/qgrid/errs"
	"github.com/NNPDF/qgrid/logging"
)

// Lambda2 is the QCD scale squared (GeV^2) used by the fixed Q^2<->tau
// transform: tau = ln(ln(Q2/Lambda2)).
const Lambda2 = 0.0625

// Pair is a named monotone bijection between x-space and y-space (or
// Q^2-space and tau-space). Y and X must be mutual inverses on the grid's
// operating range.
type Pair struct {
	Y func(x float64) float64
	X func(y float64) float64
}

// newtonTol and newtonCap bound the f2 inversion per spec.md §3.
const (
	newtonTol = 1e-12
	newtonCap = 100
)

// f2Pair builds the f2 transform for a grid-scoped coefficient a (default 5
// when the caller has no override). f2 requires iterative inversion because
// x(y) has no closed form.
func f2Pair(a float64) Pair {
	y := func(x float64) float64 {
		return -math.Log(x) + a*(1-x)
	}
	x := func(yv float64) float64 {
		// Newton solve for y' in y = y' + a*(1 - exp(-y')).
		yp := yv
		for i := 0; i < newtonCap; i++ {
			f := yp + a*(1-math.Exp(-yp)) - yv
			df := 1 + a*math.Exp(-yp)
			step := f / df
			yp -= step
			if math.Abs(step) < newtonTol {
				return math.Exp(-yp)
			}
		}
		logging.Warn("InversionFailed", logging.Fields{"y": yv, "a": a},
			"f2 inversion did not converge within cap; falling back to exp(-y')")
		return math.Exp(-yp)
	}
	return Pair{Y: y, X: x}
}

var (
	mu       sync.RWMutex
	registry = map[string]func(a float64) Pair{
		"f": func(float64) Pair {
			return Pair{
				Y: func(x float64) float64 { return math.Log(1/x - 1) },
				X: func(y float64) float64 { return 1 / (1 + math.Exp(y)) },
			}
		},
		"f0": func(float64) Pair {
			return Pair{
				Y: func(x float64) float64 { return -math.Log(x) },
				X: func(y float64) float64 { return math.Exp(-y) },
			}
		},
		"f1": func(float64) Pair {
			return Pair{
				Y: func(x float64) float64 { return math.Sqrt(-math.Log(x)) },
				X: func(y float64) float64 { return math.Exp(-y * y) },
			}
		},
		"f2": f2Pair,
		"f3": func(float64) Pair {
			return Pair{
				Y: func(x float64) float64 { return math.Sqrt(-math.Log10(x)) },
				X: func(y float64) float64 { return math.Pow(10, -y*y) },
			}
		},
		"f4": func(float64) Pair {
			return Pair{
				Y: func(x float64) float64 { return -math.Log10(x) },
				X: func(y float64) float64 { return math.Pow(10, -y) },
			}
		},
	}
)

// Register adds (or replaces) a named transform. a is passed through to the
// builder at Lookup time, so builders for transforms that need no
// coefficient can simply ignore it.
func Register(name string, build func(a float64) Pair) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = build
}

// Lookup returns the Pair for name, built with coefficient a (only f2 uses
// it; every other built-in ignores it). It fails with errs.ErrUnknownTransform
// if name is not registered.
func Lookup(name string, a float64) (Pair, error) {
	mu.RLock()
	build, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return Pair{}, errs.ErrUnknownTransform
	}
	return build(a), nil
}

// QTau is the fixed Q^2<->tau transform shared by every grid: tau =
// ln(ln(Q2/Lambda2)).
var QTau = Pair{
	Y: func(q2 float64) float64 { return math.Log(math.Log(q2 / Lambda2)) },
	X: func(tau float64) float64 { return Lambda2 * math.Exp(math.Exp(tau)) },
}
