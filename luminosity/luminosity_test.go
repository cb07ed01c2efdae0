package luminosity

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexOfCoversAllSlots(t *testing.T) {
	for i := 0; i < NumFlavours; i++ {
		pdg := PDGAt(i)
		idx, ok := IndexOf(pdg)
		require.True(t, ok)
		require.Equal(t, i, idx)
	}
}

func TestIndexOfRejectsUnknown(t *testing.T) {
	_, ok := IndexOf(7)
	require.False(t, ok)
	_, ok = IndexOf(0)
	require.False(t, ok)
}

func TestEvaluateSingleChannel(t *testing.T) {
	lum, err := New([]Channel{
		{Pairs: []Pair{{PDG1: 2, PDG2: 2, Coeff: 1.0}}}, // up-up
	})
	require.NoError(t, err)

	var f1, f2 [NumFlavours]float64
	i, _ := IndexOf(2)
	f1[i] = 0.25
	f2[i] = 0.5

	out := make([]float64, lum.K())
	lum.Evaluate(&f1, &f2, out)
	require.InDelta(t, 0.125, out[0], 1e-12)
}

func TestEvaluateOverlappingChannels(t *testing.T) {
	lum, err := New([]Channel{
		{Pairs: []Pair{{PDG1: 2, PDG2: 2, Coeff: 1.0}, {PDG1: -2, PDG2: -2, Coeff: 1.0}}},
		{Pairs: []Pair{{PDG1: 2, PDG2: 2, Coeff: 2.0}}},
	})
	require.NoError(t, err)

	var f1, f2 [NumFlavours]float64
	iu, _ := IndexOf(2)
	iub, _ := IndexOf(-2)
	f1[iu], f2[iu] = 1, 1
	f1[iub], f2[iub] = 2, 2

	out := make([]float64, lum.K())
	lum.Evaluate(&f1, &f2, out)
	require.InDelta(t, 1*1+2*2, out[0], 1e-12)
	require.InDelta(t, 2*1*1, out[1], 1e-12)
}

func TestNewRejectsUnsupportedPDG(t *testing.T) {
	_, err := New([]Channel{{Pairs: []Pair{{PDG1: 99, PDG2: 2, Coeff: 1}}}})
	require.Error(t, err)
}
