package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NNPDF/qgrid/errs"
)

func TestRoundTrip(t *testing.T) {
	names := []string{"f", "f0", "f1", "f2", "f3", "f4"}
	xs := []float64{0.001, 0.01, 0.1, 0.25, 0.5, 0.75, 0.99}

	for _, name := range names {
		pair, err := Lookup(name, 5)
		require.NoError(t, err)
		for _, x := range xs {
			y := pair.Y(x)
			got := pair.X(y)
			require.InDeltaf(t, x, got, 1e-9, "%s round-trip at x=%g", name, x)
		}
	}
}

func TestUnknownTransform(t *testing.T) {
	_, err := Lookup("nope", 5)
	require.ErrorIs(t, err, errs.ErrUnknownTransform)
}

func TestQTauRoundTrip(t *testing.T) {
	for _, q2 := range []float64{100, 1000, 1e6} {
		tau := QTau.Y(q2)
		require.InDelta(t, q2, QTau.X(tau), 1e-6)
	}
}

func TestRegisterCustomTransform(t *testing.T) {
	Register("identity", func(float64) Pair {
		return Pair{
			Y: func(x float64) float64 { return x },
			X: func(y float64) float64 { return y },
		}
	})
	pair, err := Lookup("identity", 0)
	require.NoError(t, err)
	require.Equal(t, 0.42, pair.Y(0.42))
	require.Equal(t, 0.42, pair.X(0.42))
}

func TestF2Monotone(t *testing.T) {
	pair, err := Lookup("f2", 5)
	require.NoError(t, err)
	prev := math.Inf(-1)
	for x := 0.99; x > 1e-6; x -= 0.01 {
		y := pair.Y(x)
		require.Greater(t, y, prev)
		prev = y
	}
}
