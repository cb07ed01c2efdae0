/*Package nodecache implements component C6: the per-convolution
precomputation of the PDF product and alphaS at every (tau, y) node,
grounded on the m_fg1/m_fg2/m_fsplit1/m_fsplit2 caches built once per
convolution in the original implementation's appl_igrid.cxx convolute path.
A Cache is built fresh for one InterpGrid.Convolute call and discarded at
its end; it never escapes that call (see SPEC_FULL.md §5).
*/
package nodecache

import (
	"math"

	"github.com/NNPDF/qgrid/luminosity"
	"github.com/NNPDF/qgrid/math/axis"
	"github.com/NNPDF/qgrid/math/transform"
	"github.com/NNPDF/qgrid/reweight"
)

// PDFFunc fills out with x*f(pdg; x, Q) at the 14 flavour slots of
// spec.md §6. Disabled flavours (e.g. missing photon PDF) must be written
// as 0 by the caller.
type PDFFunc func(x, q float64, out *[luminosity.NumFlavours]float64)

// AlphaSFunc returns alphaS(Q).
type AlphaSFunc func(q float64) float64

// SplittingFunc fills out with the DGLAP splitting-function convolution at
// (x, Q), same flavour layout as PDFFunc.
type SplittingFunc func(x, q float64, out *[luminosity.NumFlavours]float64)

// Params bundles everything needed to build a Cache for one igrid.
type Params struct {
	TauAxis, Y1Axis, Y2Axis axis.Axis
	XTransform              transform.Pair // this grid's x<->y transform
	MuR, MuF, BeamScale     float64
	PDF1, PDF2              PDFFunc
	AlphaS                  AlphaSFunc
	Splitting               SplittingFunc // nil if unavailable
	NLoops                  int
	Symmetric               bool
	Reweight                bool
}

// Cache holds the precomputed per-node quantities for one convolution.
type Cache struct {
	alphaS      []float64                                  // len nTau, alphaS(muR*Q(tau))/2pi
	f1          [][][luminosity.NumFlavours]float64         // [tau][y1]
	f2          [][][luminosity.NumFlavours]float64         // [tau][y2], may alias f1
	split1      [][][luminosity.NumFlavours]float64         // optional
	split2      [][][luminosity.NumFlavours]float64         // optional
	hasSplitting bool
}

func qOf(tau float64) float64 {
	q2 := transform.QTau.X(tau)
	return math.Sqrt(q2)
}

func nodeVector(pdf PDFFunc, x, q, beamScale float64, doReweight bool) [luminosity.NumFlavours]float64 {
	var out [luminosity.NumFlavours]float64
	xs := x * beamScale
	if xs >= 1 {
		return out
	}
	pdf(xs, q, &out)
	for i := range out {
		out[i] /= x
		if doReweight {
			out[i] *= reweight.Weight(x)
		}
	}
	return out
}

func splitVector(split SplittingFunc, x, q, beamScale float64, doReweight bool) [luminosity.NumFlavours]float64 {
	var out [luminosity.NumFlavours]float64
	xs := x * beamScale
	if xs >= 1 {
		return out
	}
	split(xs, q, &out)
	for i := range out {
		out[i] /= x
		if doReweight {
			out[i] *= reweight.Weight(x)
		}
	}
	return out
}

// Build populates a Cache for every (tau, y) node on the given axes.
func Build(p Params) *Cache {
	nTau := p.TauAxis.N()
	nY1 := p.Y1Axis.N()
	nY2 := p.Y2Axis.N()

	c := &Cache{
		alphaS: make([]float64, nTau),
		f1:     make([][][luminosity.NumFlavours]float64, nTau),
	}

	sameAxis := p.Symmetric && axis.Equal(p.Y1Axis, p.Y2Axis)
	if !sameAxis {
		c.f2 = make([][][luminosity.NumFlavours]float64, nTau)
	}

	useSplitting := p.Splitting != nil && p.NLoops == 1 && p.MuF != 1
	if useSplitting {
		c.hasSplitting = true
		c.split1 = make([][][luminosity.NumFlavours]float64, nTau)
		if !sameAxis {
			c.split2 = make([][][luminosity.NumFlavours]float64, nTau)
		}
	}

	for itau := 0; itau < nTau; itau++ {
		tau := p.TauAxis.Node(itau)
		q := qOf(tau)
		c.alphaS[itau] = p.AlphaS(p.MuR*q) / (2 * math.Pi)

		row1 := make([][luminosity.NumFlavours]float64, nY1)
		for iy := 0; iy < nY1; iy++ {
			x := p.XTransform.X(p.Y1Axis.Node(iy))
			row1[iy] = nodeVector(p.PDF1, x, p.MuF*q, p.BeamScale, p.Reweight)
		}
		c.f1[itau] = row1

		if useSplitting {
			srow1 := make([][luminosity.NumFlavours]float64, nY1)
			for iy := 0; iy < nY1; iy++ {
				x := p.XTransform.X(p.Y1Axis.Node(iy))
				srow1[iy] = splitVector(p.Splitting, x, p.MuF*q, p.BeamScale, p.Reweight)
			}
			c.split1[itau] = srow1
		}

		if sameAxis {
			continue
		}

		row2 := make([][luminosity.NumFlavours]float64, nY2)
		for iy := 0; iy < nY2; iy++ {
			x := p.XTransform.X(p.Y2Axis.Node(iy))
			row2[iy] = nodeVector(p.PDF2, x, p.MuF*q, p.BeamScale, p.Reweight)
		}
		c.f2[itau] = row2

		if useSplitting {
			srow2 := make([][luminosity.NumFlavours]float64, nY2)
			for iy := 0; iy < nY2; iy++ {
				x := p.XTransform.X(p.Y2Axis.Node(iy))
				srow2[iy] = splitVector(p.Splitting, x, p.MuF*q, p.BeamScale, p.Reweight)
			}
			c.split2[itau] = srow2
		}
	}

	if sameAxis {
		c.f2 = c.f1
		if useSplitting {
			c.split2 = c.split1
		}
	}

	return c
}

// F1 returns the 14-vector cached at (tau, y1).
func (c *Cache) F1(tau, y1 int) *[luminosity.NumFlavours]float64 { return &c.f1[tau][y1] }

// F2 returns the 14-vector cached at (tau, y2).
func (c *Cache) F2(tau, y2 int) *[luminosity.NumFlavours]float64 { return &c.f2[tau][y2] }

// AlphaS returns the cached alphaS(muR*Q(tau))/2pi for tau node.
func (c *Cache) AlphaS(tau int) float64 { return c.alphaS[tau] }

// HasSplitting reports whether the splitting-function cache was built
// (nloops == 1 && muF != 1, per spec.md §9 redesign flag (a)).
func (c *Cache) HasSplitting() bool { return c.hasSplitting }

// Split1 returns the cached splitting convolution at (tau, y1). Only valid
// when HasSplitting is true.
func (c *Cache) Split1(tau, y1 int) *[luminosity.NumFlavours]float64 { return &c.split1[tau][y1] }

// Split2 returns the cached splitting convolution at (tau, y2). Only valid
// when HasSplitting is true.
func (c *Cache) Split2(tau, y2 int) *[luminosity.NumFlavours]float64 { return &c.split2[tau][y2] }
