package igrid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NNPDF/qgrid/luminosity"
	"github.com/NNPDF/qgrid/nodecache"
)

func testSpec(k int) Spec {
	return Spec{
		NQ2: 10, Q2Min: 2, Q2Max: 1e6, Q2Order: 1,
		NX: 20, XMin: 1e-5, XMax: 1, XOrder: 1,
		TransformName: "f2",
		K:             k,
	}
}

func flatLuminosity(t *testing.T) *luminosity.Luminosity {
	t.Helper()
	lum, err := luminosity.New([]luminosity.Channel{
		{Pairs: []luminosity.Pair{{PDG1: 2, PDG2: 2, Coeff: 1}}},
	})
	require.NoError(t, err)
	return lum
}

// unitPDF returns x*f(pdg;x,Q) = x, i.e. a constant density f(x) = 1. Once
// the node cache divides back out by x, every cached node below x = 1 carries
// exactly 1 (the node at x = 1 is zeroed), so the Lagrange stencil's partition-of-unity
// property (the basis functions always sum to 1) carries a filled weight
// through Convolute unchanged and exactly, not just approximately.
func unitPDF(x, q float64, out *[luminosity.NumFlavours]float64) {
	i, _ := luminosity.IndexOf(2)
	out[i] = x
}

func unitAlphaS(q float64) float64 { return 2 * math.Pi } // so cached alphaS/2pi == 1

func TestNewBuildsConsistentAxes(t *testing.T) {
	g, err := New(testSpec(1))
	require.NoError(t, err)
	require.Equal(t, g.TauAxis.N(), 10)
	require.Equal(t, g.Y1Axis.N(), 20)
	require.True(t, g.Y2Axis.N() == 20)
	require.Equal(t, Fresh, g.State())
}

func TestDISGridHasDegenerateY2Axis(t *testing.T) {
	s := testSpec(1)
	s.DIS = true
	g, err := New(s)
	require.NoError(t, err)
	require.Equal(t, 1, g.Y2Axis.N())
}

func TestFillTransitionsToReady(t *testing.T) {
	g, err := New(testSpec(1))
	require.NoError(t, err)
	require.NoError(t, g.Fill(0.25, 0.25, 10000, []float64{1.0}))
	require.Equal(t, Ready, g.State())
}

func TestFillPhaseSpaceTransitionsToPhaseSpace(t *testing.T) {
	g, err := New(testSpec(1))
	require.NoError(t, err)
	require.NoError(t, g.FillPhaseSpace(0.25, 0.25, 10000, []float64{1.0}))
	require.Equal(t, PhaseSpace, g.State())
}

func TestFillWrongLengthWeightsErrors(t *testing.T) {
	g, err := New(testSpec(2))
	require.NoError(t, err)
	require.Error(t, g.Fill(0.25, 0.25, 10000, []float64{1.0}))
}

// TestConvoluteReproducesFilledWeightExactly relies on the Lagrange basis
// partition-of-unity property (its values always sum to 1 for any argument)
// together with a constant unitPDF: a filled weight must come back out of
// Fill+Convolute unchanged, to float precision, wherever the (x1, x2, Q2)
// point lands relative to the node grid, provided its stencil does not reach
// the zeroed x = 1 node.
func TestConvoluteReproducesFilledWeightExactly(t *testing.T) {
	g, err := New(testSpec(1))
	require.NoError(t, err)

	w := []float64{3.0}
	require.NoError(t, g.Fill(0.25, 0.25, 10000.0, w))

	lum := flatLuminosity(t)
	cache := nodecache.Build(nodecache.Params{
		TauAxis: g.TauAxis, Y1Axis: g.Y1Axis, Y2Axis: g.Y2Axis,
		XTransform: g.xform,
		MuR:        1, MuF: 1, BeamScale: 1,
		PDF1: unitPDF, PDF2: unitPDF, AlphaS: unitAlphaS,
	})

	got := g.Convolute(cache, OrderTuple{A: 0, B: 0, C: 0, D: 0}, lum, nil, 1, 1)
	require.InDelta(t, 3.0, got, 1e-9)
}

func TestConvoluteLinearInWeight(t *testing.T) {
	lum := flatLuminosity(t)
	cacheFor := func(g *InterpGrid) *nodecache.Cache {
		return nodecache.Build(nodecache.Params{
			TauAxis: g.TauAxis, Y1Axis: g.Y1Axis, Y2Axis: g.Y2Axis,
			XTransform: g.xform, MuR: 1, MuF: 1, BeamScale: 1,
			PDF1: unitPDF, PDF2: unitPDF, AlphaS: unitAlphaS,
		})
	}

	g1, err := New(testSpec(1))
	require.NoError(t, err)
	require.NoError(t, g1.Fill(0.25, 0.25, 10000, []float64{1.0}))
	r1 := g1.Convolute(cacheFor(g1), OrderTuple{}, lum, nil, 1, 1)
	require.InDelta(t, 1.0, r1, 1e-9)

	g2, err := New(testSpec(1))
	require.NoError(t, err)
	require.NoError(t, g2.Fill(0.25, 0.25, 10000, []float64{1.0}))
	require.NoError(t, g2.Fill(0.25, 0.25, 10000, []float64{1.0}))
	r2 := g2.Convolute(cacheFor(g2), OrderTuple{}, lum, nil, 1, 1)
	require.InDelta(t, 2.0, r2, 1e-9)
}

func TestConvoluteMaskZeroesChannel(t *testing.T) {
	lum, err := luminosity.New([]luminosity.Channel{
		{Pairs: []luminosity.Pair{{PDG1: 2, PDG2: 2, Coeff: 1}}},
		{Pairs: []luminosity.Pair{{PDG1: 1, PDG2: 1, Coeff: 1}}},
	})
	require.NoError(t, err)

	g, err := New(testSpec(2))
	require.NoError(t, err)
	require.NoError(t, g.Fill(0.25, 0.25, 10000, []float64{1.0, 1.0}))

	cache := nodecache.Build(nodecache.Params{
		TauAxis: g.TauAxis, Y1Axis: g.Y1Axis, Y2Axis: g.Y2Axis,
		XTransform: g.xform, MuR: 1, MuF: 1, BeamScale: 1,
		PDF1: unitPDF, PDF2: unitPDF, AlphaS: unitAlphaS,
	})

	// unitPDF only ever writes the up-quark (PDG 2) slot, so channel 0
	// (up-up) carries the filled weight and channel 1 (down-down) is always
	// zero. Excluding channel 0 must zero the result even though channel 1
	// stays unmasked.
	full := g.Convolute(cache, OrderTuple{}, lum, nil, 1, 1)
	require.InDelta(t, 1.0, full, 1e-9)

	channel0Excluded := g.Convolute(cache, OrderTuple{}, lum, []bool{false, true}, 1, 1)
	require.Equal(t, 0.0, channel0Excluded)
}

func TestConvoluteEmptyGridReturnsZero(t *testing.T) {
	g, err := New(testSpec(1))
	require.NoError(t, err)
	lum := flatLuminosity(t)
	cache := nodecache.Build(nodecache.Params{
		TauAxis: g.TauAxis, Y1Axis: g.Y1Axis, Y2Axis: g.Y2Axis,
		XTransform: g.xform, MuR: 1, MuF: 1, BeamScale: 1,
		PDF1: unitPDF, PDF2: unitPDF, AlphaS: unitAlphaS,
	})
	require.Equal(t, 0.0, g.Convolute(cache, OrderTuple{}, lum, nil, 1, 1))
}

func TestOptimiseIllegalAfterReady(t *testing.T) {
	g, err := New(testSpec(1))
	require.NoError(t, err)
	require.NoError(t, g.Fill(0.25, 0.25, 10000, []float64{1.0}))
	require.Equal(t, Ready, g.State())
	require.Error(t, g.Optimise(5, 5, 5))
}

func TestOptimiseShrinksAxesToPopulatedRegion(t *testing.T) {
	g, err := New(testSpec(1))
	require.NoError(t, err)
	require.NoError(t, g.FillPhaseSpace(0.25, 0.25, 10000, []float64{1.0}))
	require.NoError(t, g.Optimise(5, 5, 5))
	require.Equal(t, Optimised, g.State())
	require.Equal(t, 5, g.TauAxis.N())
	require.Equal(t, 5, g.Y1Axis.N())
	// content must have been discarded by the reallocation
	_, _, ok := g.tensors[0].TauRange()
	require.False(t, ok)
}

func TestShrinkDropsChannels(t *testing.T) {
	g, err := New(testSpec(3))
	require.NoError(t, err)
	require.NoError(t, g.Fill(0.25, 0.25, 10000, []float64{1, 2, 3}))
	require.NoError(t, g.Shrink([]int{0, 2}))
	require.Equal(t, 2, g.K())
}

func TestAccumulateRequiresMatchingChannelCount(t *testing.T) {
	g1, err := New(testSpec(1))
	require.NoError(t, err)
	g2, err := New(testSpec(2))
	require.NoError(t, err)
	require.Error(t, g1.Accumulate(g2))
}

func TestAccumulateSumsContent(t *testing.T) {
	g1, err := New(testSpec(1))
	require.NoError(t, err)
	g2, err := New(testSpec(1))
	require.NoError(t, err)
	require.NoError(t, g1.Fill(0.25, 0.25, 10000, []float64{1.0}))
	require.NoError(t, g2.Fill(0.25, 0.25, 10000, []float64{1.0}))
	require.NoError(t, g1.Accumulate(g2))

	lum := flatLuminosity(t)
	cache := nodecache.Build(nodecache.Params{
		TauAxis: g1.TauAxis, Y1Axis: g1.Y1Axis, Y2Axis: g1.Y2Axis,
		XTransform: g1.xform, MuR: 1, MuF: 1, BeamScale: 1,
		PDF1: unitPDF, PDF2: unitPDF, AlphaS: unitAlphaS,
	})

	require.InDelta(t, 2.0, g1.Convolute(cache, OrderTuple{}, lum, nil, 1, 1), 1e-9)
}
