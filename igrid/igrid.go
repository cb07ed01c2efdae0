/*Package igrid implements InterpGrid (component C7): one sparse tensor per
partonic channel over (tau, y1, y2), owning the fill and single-order
convolution primitives of spec.md §4.5, grounded on the fill/
fill_phasespace/convolute/optimise contract of the original implementation's
appl_igrid.cxx.
*/
package igrid

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/NNPDF/qgrid/errs"
	"github.com/NNPDF/qgrid/luminosity"
	"github.com/NNPDF/qgrid/math/axis"
	"github.com/NNPDF/qgrid/math/interp"
	"github.com/NNPDF/qgrid/math/transform"
	"github.com/NNPDF/qgrid/nodecache"
	"github.com/NNPDF/qgrid/reweight"
	"github.com/NNPDF/qgrid/sparse"
)

// State is the InterpGrid lifecycle of spec.md §4.9:
// Fresh -> PhaseSpace -> Optimised -> Ready -> Sealed(on write).
type State int

const (
	Fresh State = iota
	PhaseSpace
	Optimised
	Ready
	Sealed
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case PhaseSpace:
		return "PhaseSpace"
	case Optimised:
		return "Optimised"
	case Ready:
		return "Ready"
	case Sealed:
		return "Sealed"
	}
	return "Unknown"
}

// DefaultF2Coeff is the default grid-scoped "a" coefficient for the f2
// transform (spec.md §3), used when Spec.F2Coeff is left at its zero value.
const DefaultF2Coeff = 5.0

// Spec bundles the construction parameters for one InterpGrid: the Q^2 and
// x node-count/range/order pairs from spec.md §6's grid_new, translated by
// this package into tau/y axes via the chosen transform.
type Spec struct {
	NQ2            int
	Q2Min, Q2Max   float64
	Q2Order        int
	NX             int
	XMin, XMax     float64
	XOrder         int
	TransformName  string
	F2Coeff        float64 // 0 => DefaultF2Coeff
	K              int
	Reweight       bool
	Symmetrise     bool
	DIS            bool
}

// InterpGrid is component C7: K sparse tensors over (tau, y1, y2) sharing
// one set of axes, plus the transform and flags that gave rise to them.
type InterpGrid struct {
	TauAxis, Y1Axis, Y2Axis axis.Axis
	PTau, PY                int
	TransformName           string
	F2Coeff                 float64
	Reweight                bool
	Symmetrise              bool
	DIS                     bool

	tensors []*sparse.Tensor
	xform   transform.Pair
	state   State
	everOptimised bool
}

// New constructs a Fresh InterpGrid from spec.
func New(s Spec) (*InterpGrid, error) {
	a := s.F2Coeff
	if a == 0 {
		a = DefaultF2Coeff
	}
	xform, err := transform.Lookup(s.TransformName, a)
	if err != nil {
		return nil, err
	}

	tauMin, tauMax := transform.QTau.Y(s.Q2Min), transform.QTau.Y(s.Q2Max)
	yMin, yMax := xform.Y(s.XMax), xform.Y(s.XMin)

	tauAxis := axis.New(s.NQ2, tauMin, tauMax)
	y1Axis := axis.New(s.NX, yMin, yMax)
	y2Axis := y1Axis
	if s.DIS {
		y2Axis = axis.NewSingle(1)
	}

	pTau := interp.ClampOrder(tauAxis.N(), s.Q2Order)
	pY := interp.ClampOrder(y1Axis.N(), s.XOrder)
	if s.DIS {
		pY = interp.ClampOrder(y1Axis.N(), s.XOrder) // y2's own order is forced to 0 via its N=1 axis
	}

	tensors := make([]*sparse.Tensor, s.K)
	for c := range tensors {
		tensors[c] = sparse.New(tauAxis.N(), y1Axis.N(), y2Axis.N())
	}

	return &InterpGrid{
		TauAxis: tauAxis, Y1Axis: y1Axis, Y2Axis: y2Axis,
		PTau: pTau, PY: pY,
		TransformName: s.TransformName, F2Coeff: a,
		Reweight: s.Reweight, Symmetrise: s.Symmetrise, DIS: s.DIS,
		tensors: tensors,
		xform:   xform,
		state:   Fresh,
	}, nil
}

// K returns the number of partonic channels (tensors) this InterpGrid owns.
func (g *InterpGrid) K() int { return len(g.tensors) }

// State returns the current lifecycle state.
func (g *InterpGrid) State() State { return g.state }

// Tensor returns the sparse tensor for channel c, for callers (persistence,
// shrink) that need direct access.
func (g *InterpGrid) Tensor(c int) *sparse.Tensor { return g.tensors[c] }

func (g *InterpGrid) y2Coord(x2 float64) float64 {
	if g.DIS {
		return 1
	}
	return g.xform.Y(x2)
}

// nodeIndices solves the three stencil lower-nodes and fractional offsets
// for one (x1, x2, Q2) point, per spec.md §4.5 steps 1-3.
func (g *InterpGrid) nodeIndices(x1, x2, q2 float64) (kTau, k1, k2 int, uTau, u1, u2 float64) {
	tau := transform.QTau.Y(q2)
	y1 := g.xform.Y(x1)
	y2 := g.y2Coord(x2)

	kTau, uTau = interp.NodeIndex(g.TauAxis, g.PTau, tau)
	k1, u1 = interp.NodeIndex(g.Y1Axis, g.PY, y1)
	py2 := 0
	if !g.DIS {
		py2 = g.PY
	}
	k2, u2 = interp.NodeIndex(g.Y2Axis, py2, y2)
	return
}

// Fill scatters a weighted point across the Lagrange stencil for every
// channel, per spec.md §4.5. It transitions Fresh/PhaseSpace/Optimised to
// Ready (the first real, interpolating fill).
func (g *InterpGrid) Fill(x1, x2, q2 float64, w []float64) error {
	if len(w) != g.K() {
		return fmt.Errorf("igrid: fill: len(w) = %d, want %d", len(w), g.K())
	}

	kTau, k1, k2, uTau, u1, u2 := g.nodeIndices(x1, x2, q2)

	var lTau, l1, l2 [interp.ScratchLen]float64
	interp.Row(g.PTau, uTau, lTau[:])
	interp.Row(g.PY, u1, l1[:])
	py2 := 0
	if !g.DIS {
		py2 = g.PY
	}
	interp.Row(py2, u2, l2[:])

	factor := 1.0
	if g.Reweight {
		factor = 1 / (reweight.Weight(x1) * reweight.Weight(x2))
	}

	for c, t := range g.tensors {
		if w[c] == 0 {
			continue
		}
		wc := w[c] * factor
		for it := 0; it <= g.PTau; it++ {
			lt := lTau[it]
			if lt == 0 {
				continue
			}
			for i1 := 0; i1 <= g.PY; i1++ {
				l1v := l1[i1]
				if l1v == 0 {
					continue
				}
				for i2 := 0; i2 <= py2; i2++ {
					l2v := l2[i2]
					if l2v == 0 {
						continue
					}
					t.Add(kTau+it, k1+i1, k2+i2, wc*lt*l1v*l2v)
				}
			}
		}
	}

	if g.state != Ready && g.state != Sealed {
		g.state = Ready
	}
	return nil
}

// FillPhaseSpace increments a single stencil-anchor cell per channel with no
// interpolation spread, used to discover the populated region before
// Optimise. It transitions Fresh to PhaseSpace.
func (g *InterpGrid) FillPhaseSpace(x1, x2, q2 float64, w []float64) error {
	if len(w) != g.K() {
		return fmt.Errorf("igrid: fill_phasespace: len(w) = %d, want %d", len(w), g.K())
	}
	kTau, k1, k2, _, _, _ := g.nodeIndices(x1, x2, q2)
	for c, t := range g.tensors {
		if w[c] != 0 {
			t.Add(kTau, k1, k2, w[c])
		}
	}
	if g.state == Fresh {
		g.state = PhaseSpace
	}
	return nil
}

// Scale multiplies every channel's tensor by c.
func (g *InterpGrid) Scale(c float64) {
	for _, t := range g.tensors {
		t.Scale(c)
	}
}

// Shrink keeps only the given (sorted, distinct) channel indices, which
// become 0..len(keep)-1 in the order given; the rest are dropped.
func (g *InterpGrid) Shrink(keep []int) error {
	kept := make([]*sparse.Tensor, len(keep))
	for j, c := range keep {
		if c < 0 || c >= len(g.tensors) {
			return fmt.Errorf("igrid: shrink: channel %d out of range [0,%d)", c, len(g.tensors))
		}
		kept[j] = g.tensors[c]
	}
	g.tensors = kept
	return nil
}

// Accumulate adds another InterpGrid's channel tensors into this one's,
// cell-wise, requiring identical axes on every channel (spec.md §4.4).
func (g *InterpGrid) Accumulate(o *InterpGrid) error {
	if g.K() != o.K() || !axis.Equal(g.TauAxis, o.TauAxis) ||
		!axis.Equal(g.Y1Axis, o.Y1Axis) || !axis.Equal(g.Y2Axis, o.Y2Axis) {
		return errs.ErrAxisMismatch
	}
	for c := range g.tensors {
		if err := g.tensors[c].AddTensor(o.tensors[c]); err != nil {
			return err
		}
	}
	return nil
}

// Optimise shrinks each axis to the populated subrange (discovered via
// FillPhaseSpace) plus a margin, then reallocates tensors interpolating onto
// a fresh uniform grid with the given final node counts. Existing content is
// discarded. It is illegal once the grid has reached Ready (spec.md §4.9).
//
// Per spec.md §9's redesign note (c), calling Optimise a second time (the
// grid is already Optimised) widens the margin to order+1 instead of the
// default single-node margin.
func (g *InterpGrid) Optimise(finalNQ2, finalNX1, finalNX2 int) error {
	if g.state == Ready || g.state == Sealed {
		return fmt.Errorf("igrid: optimise illegal in state %s", g.state)
	}

	tauMargin, yMargin := 1, 1
	if g.everOptimised {
		tauMargin = g.PTau + 1
		yMargin = g.PY + 1
	}

	tauLo, tauHi, ok := g.unionTauRange()
	if !ok {
		tauLo, tauHi = 0, g.TauAxis.N()-1
	}
	tauLo = clampInt(tauLo-tauMargin, 0, g.TauAxis.N()-1)
	tauHi = clampInt(tauHi+tauMargin, 0, g.TauAxis.N()-1)

	y1Lo, y1Hi, y2Lo, y2Hi, ok := g.unionYRange()
	if !ok {
		y1Lo, y1Hi = 0, g.Y1Axis.N()-1
		y2Lo, y2Hi = 0, g.Y2Axis.N()-1
	}
	y1Lo = clampInt(y1Lo-yMargin, 0, g.Y1Axis.N()-1)
	y1Hi = clampInt(y1Hi+yMargin, 0, g.Y1Axis.N()-1)

	newTauAxis := axis.New(finalNQ2, g.TauAxis.Node(tauLo), g.TauAxis.Node(tauHi))
	newY1Axis := axis.New(finalNX1, g.Y1Axis.Node(y1Lo), g.Y1Axis.Node(y1Hi))
	newY2Axis := newY1Axis
	if g.DIS {
		newY2Axis = axis.NewSingle(1)
	} else {
		y2Lo = clampInt(y2Lo-yMargin, 0, g.Y2Axis.N()-1)
		y2Hi = clampInt(y2Hi+yMargin, 0, g.Y2Axis.N()-1)
		newY2Axis = axis.New(finalNX2, g.Y2Axis.Node(y2Lo), g.Y2Axis.Node(y2Hi))
	}

	g.TauAxis, g.Y1Axis, g.Y2Axis = newTauAxis, newY1Axis, newY2Axis
	g.PTau = interp.ClampOrder(newTauAxis.N(), g.PTau)
	g.PY = interp.ClampOrder(newY1Axis.N(), g.PY)
	if !g.DIS {
		g.PY = interp.ClampOrder(newY2Axis.N(), g.PY)
	}

	for c := range g.tensors {
		g.tensors[c] = sparse.New(newTauAxis.N(), newY1Axis.N(), newY2Axis.N())
	}

	g.everOptimised = true
	g.state = Optimised
	return nil
}

func (g *InterpGrid) unionTauRange() (lo, hi int, ok bool) {
	first := true
	for _, t := range g.tensors {
		tlo, thi, tok := t.TauRange()
		if !tok {
			continue
		}
		if first || tlo < lo {
			lo = tlo
		}
		if first || thi > hi {
			hi = thi
		}
		first = false
	}
	return lo, hi, !first
}

func (g *InterpGrid) unionYRange() (y1lo, y1hi, y2lo, y2hi int, ok bool) {
	first := true
	for _, t := range g.tensors {
		tlo, thi, tok := t.TauRange()
		if !tok {
			continue
		}
		for tau := tlo; tau <= thi; tau++ {
			a1, a2, b1, b2, yok := t.YRange(tau)
			if !yok {
				continue
			}
			if first || a1 < y1lo {
				y1lo = a1
			}
			if first || a2 > y1hi {
				y1hi = a2
			}
			if first || b1 < y2lo {
				y2lo = b1
			}
			if first || b2 > y2hi {
				y2hi = b2
			}
			first = false
		}
	}
	return y1lo, y1hi, y2lo, y2hi, !first
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OrderTuple is (a,b,c,d): the exponents of alphaS/2pi, alphaEM, ln(muR) and
// ln(muF) carried by one convolution order, per spec.md's Glossary.
type OrderTuple struct{ A, B, C, D int }

// AlphaEM is the fixed QED coupling this engine raises to the OrderTuple.B
// power. spec.md §6's grid_convolute signature carries no alphaEM callback
// or parameter, so this is fixed at unity: callers who need a genuine QED
// coupling should fold it into their channel coefficients (see DESIGN.md).
const AlphaEM = 1.0

// Convolute reduces this InterpGrid's tensors against a populated NodeCache
// and an order tuple, producing this grid's contribution to one bin, per
// spec.md §4.5's Convolution contract. The caller owns the NodeCache's
// lifetime (built once per convolution call, discarded after) per
// SPEC_FULL.md §5.
func (g *InterpGrid) Convolute(cache *nodecache.Cache, order OrderTuple, lum *luminosity.Luminosity, mask []bool, muR, muF float64) float64 {
	lnMuR := math.Log(muR)
	lnMuF := math.Log(muF)
	scaleFactor := math.Pow(AlphaEM, float64(order.B)) *
		math.Pow(lnMuR, float64(order.C)) * math.Pow(lnMuF, float64(order.D))

	result := 0.0
	out := make([]float64, lum.K())
	tvals := make([]float64, lum.K())

	tauLo, tauHi, ok := g.unionTauRange()
	if !ok {
		return 0 // errs.ErrEmpty: nothing was ever filled into this grid.
	}

	for tau := tauLo; tau <= tauHi; tau++ {
		asPow := math.Pow(cache.AlphaS(tau), float64(order.A))
		y1Lo, y1Hi, y2Lo, y2Hi, yok := g.unionYRangeAt(tau)
		if !yok {
			continue
		}
		for y1 := y1Lo; y1 <= y1Hi; y1++ {
			f1 := cache.F1(tau, y1)
			for y2 := y2Lo; y2 <= y2Hi; y2++ {
				f2 := cache.F2(tau, y2)
				lum.Evaluate(f1, f2, out)

				for c, t := range g.tensors {
					if c < len(mask) && !mask[c] {
						tvals[c] = 0
						continue
					}
					tvals[c] = t.At(tau, y1, y2)
				}
				result += asPow * floats.Dot(tvals, out)
			}
		}
	}

	return scaleFactor * result
}

func (g *InterpGrid) unionYRangeAt(tau int) (y1lo, y1hi, y2lo, y2hi int, ok bool) {
	first := true
	for _, t := range g.tensors {
		a1, a2, b1, b2, yok := t.YRange(tau)
		if !yok {
			continue
		}
		if first || a1 < y1lo {
			y1lo = a1
		}
		if first || a2 > y1hi {
			y1hi = a2
		}
		if first || b1 < y2lo {
			y2lo = b1
		}
		if first || b2 > y2hi {
			y2hi = b2
		}
		first = false
	}
	return y1lo, y1hi, y2lo, y2hi, !first
}

// Seal marks this InterpGrid as persisted; convolution remains legal in
// Sealed, every mutating operation does not (enforced by callers, not by
// this type, since persistence itself never mutates tensor content).
func (g *InterpGrid) Seal() { g.state = Sealed }

// XTransform exposes this grid's resolved x<->y transform, for callers
// (nodecache.Build) that need to map y-nodes back to x.
func (g *InterpGrid) XTransform() transform.Pair { return g.xform }

// HasContent reports whether any channel has ever been filled (a non-empty
// trimmed tau range on at least one tensor).
func (g *InterpGrid) HasContent() bool {
	_, _, ok := g.unionTauRange()
	return ok
}

// Params is the 17-double persisted record of spec.md §6, one per
// InterpGrid subdirectory: [N_y1, y1min, y1max, N_y2, y2min, y2max, y_order,
// N_tau, taumin, taumax, tau_order, transvar, K, reweight, symmetrise,
// optimised, DIS]. The Transform name travels alongside as its own UTF-8
// string tag, not part of this record.
type Params struct {
	NY1            int
	Y1Min, Y1Max   float64
	NY2            int
	Y2Min, Y2Max   float64
	YOrder         int
	NTau           int
	TauMin, TauMax float64
	TauOrder       int
	TransVar       float64
	K              int
	Reweight       bool
	Symmetrise     bool
	Optimised      bool
	DIS            bool
}

// ToParams captures this InterpGrid's persisted parameter record.
func (g *InterpGrid) ToParams() Params {
	return Params{
		NY1: g.Y1Axis.N(), Y1Min: g.Y1Axis.Min(), Y1Max: g.Y1Axis.Max(),
		NY2: g.Y2Axis.N(), Y2Min: g.Y2Axis.Min(), Y2Max: g.Y2Axis.Max(),
		YOrder: g.PY,
		NTau:   g.TauAxis.N(), TauMin: g.TauAxis.Min(), TauMax: g.TauAxis.Max(),
		TauOrder:   g.PTau,
		TransVar:   g.F2Coeff,
		K:          g.K(),
		Reweight:   g.Reweight,
		Symmetrise: g.Symmetrise,
		Optimised:  g.everOptimised,
		DIS:        g.DIS,
	}
}

// FromParams reconstructs an InterpGrid from a persisted parameter record,
// a transform name, and the K tensors read back for its channels (one per
// spec.md §6's "weight[c]" histogram). The result is in the Sealed state:
// it was read from storage, not freshly built.
func FromParams(transformName string, p Params, tensors []*sparse.Tensor) (*InterpGrid, error) {
	xform, err := transform.Lookup(transformName, p.TransVar)
	if err != nil {
		return nil, err
	}

	tauAxis := axis.New(p.NTau, p.TauMin, p.TauMax)
	y1Axis := axis.New(p.NY1, p.Y1Min, p.Y1Max)
	y2Axis := y1Axis
	if p.DIS {
		y2Axis = axis.NewSingle(1)
	} else if p.NY2 != p.NY1 || p.Y2Min != p.Y1Min || p.Y2Max != p.Y1Max {
		y2Axis = axis.New(p.NY2, p.Y2Min, p.Y2Max)
	}

	return &InterpGrid{
		TauAxis: tauAxis, Y1Axis: y1Axis, Y2Axis: y2Axis,
		PTau: p.TauOrder, PY: p.YOrder,
		TransformName: transformName, F2Coeff: p.TransVar,
		Reweight: p.Reweight, Symmetrise: p.Symmetrise, DIS: p.DIS,
		tensors:       tensors,
		xform:         xform,
		state:         Sealed,
		everOptimised: p.Optimised,
	}, nil
}
