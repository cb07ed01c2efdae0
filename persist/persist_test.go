package persist

import (
	"database/sql"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NNPDF/qgrid/errs"
	"github.com/NNPDF/qgrid/grid"
	"github.com/NNPDF/qgrid/igrid"
	"github.com/NNPDF/qgrid/luminosity"
)

func testGrid(t *testing.T) *grid.Grid {
	t.Helper()
	lum, err := luminosity.New([]luminosity.Channel{
		{Pairs: []luminosity.Pair{{PDG1: 2, PDG2: 2, Coeff: 1}}},
	})
	require.NoError(t, err)

	g, err := grid.New(grid.Spec{
		BinEdges:   []float64{0, 1},
		Orders:     []igrid.OrderTuple{{}},
		Luminosity: lum,
		NQ2:        10, Q2Min: 2, Q2Max: 1e6, Q2Order: 1,
		NX: 20, XMin: 1e-5, XMax: 1, XOrder: 1,
		TransformName: "f2",
	})
	require.NoError(t, err)
	require.NoError(t, g.Fill(0.25, 0.25, 10000, 0.5, []float64{1.0}, 0))
	return g
}

func identityPDF(x, q float64, out *[luminosity.NumFlavours]float64) {
	i, _ := luminosity.IndexOf(2)
	out[i] = x * x
}

func unitAlphaS(q float64) float64 { return 2 * math.Pi }

func convolute(t *testing.T, g *grid.Grid) []float64 {
	t.Helper()
	results, err := g.Convolute(grid.ConvoluteParams{
		PDF1: identityPDF, PDF2: identityPDF, AlphaS: unitAlphaS,
		MuR: 1, MuF: 1, BeamScale: 1,
	})
	require.NoError(t, err)
	return results
}

func TestWriteReadRoundTrip(t *testing.T) {
	g := testGrid(t)
	before := convolute(t, g)

	path := filepath.Join(t.TempDir(), "grid.db")
	require.NoError(t, Write(path, g))

	g2, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, g.NBins(), g2.NBins())
	require.Equal(t, g.NOrders(), g2.NOrders())

	after := convolute(t, g2)
	require.Equal(t, before, after)
}

func TestReadRejectsNewerFormatVersion(t *testing.T) {
	g := testGrid(t)
	path := filepath.Join(t.TempDir(), "grid.db")
	require.NoError(t, Write(path, g))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)

	var blob []byte
	require.NoError(t, db.QueryRow(`SELECT value FROM grid_meta WHERE key = 'grid'`).Scan(&blob))
	var meta gridMeta
	require.NoError(t, json.Unmarshal(blob, &meta))
	meta.FormatVersion = "99.0.0"
	blob, err = json.Marshal(meta)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE grid_meta SET value = ? WHERE key = 'grid'`, blob)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Read(path)
	require.ErrorIs(t, err, errs.ErrIOFailure)
}

func TestReadMissingFileFails(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "does-not-exist.db"))
	require.Error(t, err)
}

func TestParamsRoundTripThroughEncoding(t *testing.T) {
	p := igrid.Params{
		NY1: 12, Y1Min: -1.5, Y1Max: 4.25,
		NY2: 12, Y2Min: -1.5, Y2Max: 4.25,
		YOrder: 3,
		NTau:   8, TauMin: 0, TauMax: 6.1,
		TauOrder: 2,
		TransVar: 5,
		K:        3,
		Reweight: true, Symmetrise: false, Optimised: true, DIS: false,
	}
	blob := encodeParams(p)
	got, err := decodeParams(blob)
	require.NoError(t, err)
	require.Equal(t, p, got)
}

func TestDecodeParamsRejectsShortBuffer(t *testing.T) {
	_, err := decodeParams([]byte{1, 2, 3})
	require.Error(t, err)
}
