/*Package grid implements Grid (component C8): a dense N_orders x N_bins
table of InterpGrids sharing one Luminosity, driving multi-order fill and
convolution and owning the bin-edge lookup, grounded on the per-order,
per-bin igrid array and grid_fill/grid_convolute dispatch of the original
implementation's appl_grid.cxx.
*/
package grid

import (
	"fmt"
	"sort"

	"github.com/NNPDF/qgrid/errs"
	"github.com/NNPDF/qgrid/igrid"
	"github.com/NNPDF/qgrid/luminosity"
	"github.com/NNPDF/qgrid/nodecache"
)

// Spec bundles the grid_new parameters of spec.md §6.
type Spec struct {
	BinEdges []float64
	Orders   []igrid.OrderTuple

	Luminosity *luminosity.Luminosity

	NQ2            int
	Q2Min, Q2Max   float64
	Q2Order        int
	NX             int
	XMin, XMax     float64
	XOrder         int
	TransformName  string
	F2Coeff        float64

	Reweight, Symmetrise, DIS bool
}

// Grid is component C8.
type Grid struct {
	edges  []float64
	orders []igrid.OrderTuple
	lum    *luminosity.Luminosity
	rows   [][]*igrid.InterpGrid // [orderIdx][bin]

	transformName string
}

// New builds a Grid: one freshly constructed InterpGrid per (order, bin)
// cell, all sharing the same axes/transform/channel count.
func New(s Spec) (*Grid, error) {
	if len(s.BinEdges) < 2 {
		return nil, fmt.Errorf("grid: need at least 2 bin edges, got %d", len(s.BinEdges))
	}
	for i := 1; i < len(s.BinEdges); i++ {
		if s.BinEdges[i] <= s.BinEdges[i-1] {
			return nil, fmt.Errorf("grid: bin edges must be strictly increasing")
		}
	}
	if s.Luminosity == nil {
		return nil, fmt.Errorf("grid: luminosity is required")
	}
	if len(s.Orders) == 0 {
		return nil, fmt.Errorf("grid: need at least one order tuple")
	}

	nBins := len(s.BinEdges) - 1
	rows := make([][]*igrid.InterpGrid, len(s.Orders))
	for o := range s.Orders {
		rows[o] = make([]*igrid.InterpGrid, nBins)
		for b := 0; b < nBins; b++ {
			ig, err := igrid.New(igrid.Spec{
				NQ2: s.NQ2, Q2Min: s.Q2Min, Q2Max: s.Q2Max, Q2Order: s.Q2Order,
				NX: s.NX, XMin: s.XMin, XMax: s.XMax, XOrder: s.XOrder,
				TransformName: s.TransformName, F2Coeff: s.F2Coeff,
				K:          s.Luminosity.K(),
				Reweight:   s.Reweight,
				Symmetrise: s.Symmetrise,
				DIS:        s.DIS,
			})
			if err != nil {
				return nil, err
			}
			rows[o][b] = ig
		}
	}

	return &Grid{
		edges: append([]float64(nil), s.BinEdges...),
		orders: append([]igrid.OrderTuple(nil), s.Orders...),
		lum:    s.Luminosity,
		rows:   rows,

		transformName: s.TransformName,
	}, nil
}

// Reconstruct rebuilds a Grid directly from its components, bypassing New's
// validation. It is the seam persist uses to hand back a Grid read from
// storage, where the data has already been validated once at write time.
func Reconstruct(edges []float64, orders []igrid.OrderTuple, lum *luminosity.Luminosity, rows [][]*igrid.InterpGrid, transformName string) *Grid {
	return &Grid{edges: edges, orders: orders, lum: lum, rows: rows, transformName: transformName}
}

// NBins returns the number of observable bins.
func (g *Grid) NBins() int { return len(g.edges) - 1 }

// NOrders returns the number of perturbative orders.
func (g *Grid) NOrders() int { return len(g.orders) }

// BinEdges returns the N+1 monotone bin edges.
func (g *Grid) BinEdges() []float64 { return g.edges }

// Orders returns the order tuples, one per row.
func (g *Grid) Orders() []igrid.OrderTuple { return g.orders }

// Luminosity returns the owned luminosity function.
func (g *Grid) Luminosity() *luminosity.Luminosity { return g.lum }

// TransformName returns the transform shared by every InterpGrid cell.
func (g *Grid) TransformName() string { return g.transformName }

// InterpGridAt returns the InterpGrid for (orderIdx, bin), or nil if unused.
func (g *Grid) InterpGridAt(orderIdx, bin int) *igrid.InterpGrid { return g.rows[orderIdx][bin] }

// locateBin finds the half-open bin containing observable via binary search
// over the edges, per spec.md §4.8. Outside [edges[0], edges[N]] the point
// is dropped.
func (g *Grid) locateBin(observable float64) (int, bool) {
	if observable < g.edges[0] || observable > g.edges[len(g.edges)-1] {
		return 0, false
	}
	// sort.Search finds the first edge strictly greater than observable;
	// the bin index is one less, clamped for the observable == last-edge case.
	i := sort.Search(len(g.edges), func(i int) bool { return g.edges[i] > observable })
	bin := i - 1
	if bin >= g.NBins() {
		bin = g.NBins() - 1
	}
	if bin < 0 {
		bin = 0
	}
	return bin, true
}

// Fill locates the bin for observable and forwards to the (orderIdx, bin)
// InterpGrid. Points outside the bin-edge range are silently dropped
// (spec.md E5), not an error.
func (g *Grid) Fill(x1, x2, q2, observable float64, w []float64, orderIdx int) error {
	if orderIdx < 0 || orderIdx >= len(g.orders) {
		return fmt.Errorf("grid: fill: order index %d out of range [0,%d)", orderIdx, len(g.orders))
	}
	bin, ok := g.locateBin(observable)
	if !ok {
		return nil
	}
	return g.rows[orderIdx][bin].Fill(x1, x2, q2, w)
}

// FillPhaseSpace is the phase-space-discovery counterpart of Fill.
func (g *Grid) FillPhaseSpace(x1, x2, q2, observable float64, w []float64, orderIdx int) error {
	if orderIdx < 0 || orderIdx >= len(g.orders) {
		return fmt.Errorf("grid: fill_phasespace: order index %d out of range [0,%d)", orderIdx, len(g.orders))
	}
	bin, ok := g.locateBin(observable)
	if !ok {
		return nil
	}
	return g.rows[orderIdx][bin].FillPhaseSpace(x1, x2, q2, w)
}

// Scale multiplies every InterpGrid cell by c.
func (g *Grid) Scale(c float64) {
	for _, row := range g.rows {
		for _, ig := range row {
			if ig != nil {
				ig.Scale(c)
			}
		}
	}
}

// Optimise runs InterpGrid.Optimise on every cell.
func (g *Grid) Optimise(finalNQ2, finalNX1, finalNX2 int) error {
	for _, row := range g.rows {
		for _, ig := range row {
			if ig == nil {
				continue
			}
			if err := ig.Optimise(finalNQ2, finalNX1, finalNX2); err != nil {
				return err
			}
		}
	}
	return nil
}

// ConvoluteParams bundles the external PDF/alphaS/splitting callbacks and
// scale factors of grid_convolute (spec.md §6).
type ConvoluteParams struct {
	PDF1, PDF2 nodecache.PDFFunc
	AlphaS     nodecache.AlphaSFunc
	Splitting  nodecache.SplittingFunc
	NLoops     int
	Mask       []bool // nil means every channel enabled
	MuR, MuF   float64
	BeamScale  float64 // "E" in spec.md §6
}

// Convolute reduces every (order, bin) InterpGrid against the given PDF/
// alphaS callbacks and returns one cross section per bin, multiplied by the
// bin width (spec.md §4.8). If every InterpGrid in the grid is empty
// (nothing was ever filled), results are all zero and the returned error
// wraps errs.ErrEmpty — informational, not a failure the caller must check.
func (g *Grid) Convolute(p ConvoluteParams) ([]float64, error) {
	results := make([]float64, g.NBins())
	anyContent := false

	for orderIdx, row := range g.rows {
		order := g.orders[orderIdx]
		for bin, ig := range row {
			if ig == nil || !ig.HasContent() {
				continue
			}
			anyContent = true

			cache := nodecache.Build(nodecache.Params{
				TauAxis: ig.TauAxis, Y1Axis: ig.Y1Axis, Y2Axis: ig.Y2Axis,
				XTransform: ig.XTransform(),
				MuR:        p.MuR, MuF: p.MuF, BeamScale: p.BeamScale,
				PDF1: p.PDF1, PDF2: p.PDF2, AlphaS: p.AlphaS,
				Splitting: p.Splitting, NLoops: p.NLoops,
				Symmetric: ig.Symmetrise, Reweight: ig.Reweight,
			})

			results[bin] += ig.Convolute(cache, order, g.lum, p.Mask, p.MuR, p.MuF)
		}
	}

	for bin := range results {
		width := g.edges[bin+1] - g.edges[bin]
		results[bin] *= width
	}

	if !anyContent {
		return results, errs.ErrEmpty
	}
	return results, nil
}
