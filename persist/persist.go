/*Package persist implements the concrete realisation of spec.md §6's
"object store addressable by path": a single-file SQLite database opened
through modernc.org/sqlite (pure Go, no cgo), grounded on the embedded
sql.DB-per-store pattern of theRebelliousNerd-codenerd's internal/store
package. grid_meta carries the Grid-level metadata (bin edges, order
tuples, luminosity, transform name, format version); igrid carries each
InterpGrid's 17-double parameter record; weight carries the trimmed
non-zero cells of every channel's tensor, one row per non-zero cell.
*/
package persist

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/NNPDF/qgrid/errs"
	"github.com/NNPDF/qgrid/grid"
	"github.com/NNPDF/qgrid/igrid"
	"github.com/NNPDF/qgrid/luminosity"
	"github.com/NNPDF/qgrid/sparse"
	"github.com/NNPDF/qgrid/version"
)

const schema = `
CREATE TABLE IF NOT EXISTS grid_meta(key TEXT PRIMARY KEY, value BLOB);
CREATE TABLE IF NOT EXISTS igrid(
	order_idx INTEGER, bin INTEGER, transform TEXT, parameters BLOB,
	PRIMARY KEY(order_idx, bin)
);
CREATE TABLE IF NOT EXISTS weight(
	order_idx INTEGER, bin INTEGER, channel INTEGER,
	tau INTEGER, y1 INTEGER, y2 INTEGER, value REAL,
	PRIMARY KEY(order_idx, bin, channel, tau, y1, y2)
);
`

// paramCount is the 17-double persisted InterpGrid record of spec.md §6.
const paramCount = 17

func encodeParams(p igrid.Params) []byte {
	vals := [paramCount]float64{
		float64(p.NY1), p.Y1Min, p.Y1Max,
		float64(p.NY2), p.Y2Min, p.Y2Max,
		float64(p.YOrder),
		float64(p.NTau), p.TauMin, p.TauMax,
		float64(p.TauOrder),
		p.TransVar,
		float64(p.K),
		boolF(p.Reweight), boolF(p.Symmetrise), boolF(p.Optimised), boolF(p.DIS),
	}
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, vals[:])
	return buf.Bytes()
}

func boolF(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func decodeParams(raw []byte) (igrid.Params, error) {
	var vals [paramCount]float64
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, vals[:]); err != nil {
		return igrid.Params{}, fmt.Errorf("%w: decoding igrid parameters: %v", errs.ErrIOFailure, err)
	}
	return igrid.Params{
		NY1: round(vals[0]), Y1Min: vals[1], Y1Max: vals[2],
		NY2: round(vals[3]), Y2Min: vals[4], Y2Max: vals[5],
		YOrder: round(vals[6]),
		NTau:   round(vals[7]), TauMin: vals[8], TauMax: vals[9],
		TauOrder: round(vals[10]),
		TransVar: vals[11],
		K:        round(vals[12]),
		Reweight: vals[13] != 0, Symmetrise: vals[14] != 0,
		Optimised: vals[15] != 0, DIS: vals[16] != 0,
	}, nil
}

func round(v float64) int { return int(v + 0.5) }

type gridMeta struct {
	BinEdges      []float64          `json:"bin_edges"`
	Orders        []igrid.OrderTuple `json:"orders"`
	Luminosity    []luminosity.Channel `json:"luminosity"`
	TransformName string             `json:"transform_name"`
	FormatVersion string             `json:"format_version"`
}

// Write persists g to a fresh SQLite database at path, overwriting any
// existing file. Every operation runs in one transaction: a failure leaves
// no partial state (spec.md §7 IOFailure policy).
func Write(path string, g *grid.Grid) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: removing existing %s: %v", errs.ErrIOFailure, path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("%w: opening %s: %v", errs.ErrIOFailure, path, err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %v", errs.ErrIOFailure, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schema); err != nil {
		return fmt.Errorf("%w: creating schema: %v", errs.ErrIOFailure, err)
	}

	meta := gridMeta{
		BinEdges:      g.BinEdges(),
		Orders:        g.Orders(),
		Luminosity:    g.Luminosity().Channels,
		TransformName: g.TransformName(),
		FormatVersion: version.FormatVersion,
	}
	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: encoding grid_meta: %v", errs.ErrIOFailure, err)
	}
	if _, err := tx.Exec(`INSERT INTO grid_meta(key, value) VALUES('grid', ?)`, metaBlob); err != nil {
		return fmt.Errorf("%w: writing grid_meta: %v", errs.ErrIOFailure, err)
	}

	for orderIdx := 0; orderIdx < g.NOrders(); orderIdx++ {
		for bin := 0; bin < g.NBins(); bin++ {
			ig := g.InterpGridAt(orderIdx, bin)
			if ig == nil {
				continue
			}
			ig.Seal()

			paramsBlob := encodeParams(ig.ToParams())
			if _, err := tx.Exec(
				`INSERT INTO igrid(order_idx, bin, transform, parameters) VALUES(?, ?, ?, ?)`,
				orderIdx, bin, g.TransformName(), paramsBlob,
			); err != nil {
				return fmt.Errorf("%w: writing igrid(%d,%d): %v", errs.ErrIOFailure, orderIdx, bin, err)
			}

			for c := 0; c < ig.K(); c++ {
				t := ig.Tensor(c)
				t.Trim()
				tauLo, tauHi, ok := t.TauRange()
				if !ok {
					continue
				}
				for tau := tauLo; tau <= tauHi; tau++ {
					y1lo, y1hi, y2lo, y2hi, ok := t.YRange(tau)
					if !ok {
						continue
					}
					for y1 := y1lo; y1 <= y1hi; y1++ {
						for y2 := y2lo; y2 <= y2hi; y2++ {
							v := t.At(tau, y1, y2)
							if v == 0 {
								continue
							}
							if _, err := tx.Exec(
								`INSERT INTO weight(order_idx, bin, channel, tau, y1, y2, value) VALUES(?, ?, ?, ?, ?, ?, ?)`,
								orderIdx, bin, c, tau, y1, y2, v,
							); err != nil {
								return fmt.Errorf("%w: writing weight cell: %v", errs.ErrIOFailure, err)
							}
						}
					}
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %v", errs.ErrIOFailure, err)
	}
	return nil
}

// Read reconstructs a Grid from the SQLite database at path. Every
// InterpGrid comes back in the Sealed state.
func Read(path string) (*grid.Grid, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", errs.ErrIOFailure, path, err)
	}
	defer db.Close()

	var metaBlob []byte
	if err := db.QueryRow(`SELECT value FROM grid_meta WHERE key = 'grid'`).Scan(&metaBlob); err != nil {
		return nil, fmt.Errorf("%w: reading grid_meta: %v", errs.ErrIOFailure, err)
	}
	var meta gridMeta
	if err := json.Unmarshal(metaBlob, &meta); err != nil {
		return nil, fmt.Errorf("%w: decoding grid_meta: %v", errs.ErrIOFailure, err)
	}

	newer, err := version.Later(meta.FormatVersion, version.FormatVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing format_version %q: %v", errs.ErrIOFailure, meta.FormatVersion, err)
	}
	if newer {
		return nil, fmt.Errorf("%w: container format %s is newer than this build supports (%s)",
			errs.ErrIOFailure, meta.FormatVersion, version.FormatVersion)
	}

	lum, err := luminosity.New(meta.Luminosity)
	if err != nil {
		return nil, fmt.Errorf("%w: reconstructing luminosity: %v", errs.ErrIOFailure, err)
	}

	nBins := len(meta.BinEdges) - 1
	rows := make([][]*igrid.InterpGrid, len(meta.Orders))
	for o := range rows {
		rows[o] = make([]*igrid.InterpGrid, nBins)
	}

	igridRows, err := db.Query(`SELECT order_idx, bin, transform, parameters FROM igrid`)
	if err != nil {
		return nil, fmt.Errorf("%w: reading igrid table: %v", errs.ErrIOFailure, err)
	}
	defer igridRows.Close()

	type pending struct {
		orderIdx, bin int
		transformName string
		params        igrid.Params
	}
	var cells []pending

	for igridRows.Next() {
		var orderIdx, bin int
		var transformName string
		var paramsBlob []byte
		if err := igridRows.Scan(&orderIdx, &bin, &transformName, &paramsBlob); err != nil {
			return nil, fmt.Errorf("%w: scanning igrid row: %v", errs.ErrIOFailure, err)
		}
		params, err := decodeParams(paramsBlob)
		if err != nil {
			return nil, err
		}
		cells = append(cells, pending{orderIdx, bin, transformName, params})
	}
	if err := igridRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating igrid rows: %v", errs.ErrIOFailure, err)
	}

	for _, cell := range cells {
		tensors := make([]*sparse.Tensor, cell.params.K)
		for c := range tensors {
			tensors[c] = sparse.New(cell.params.NTau, cell.params.NY1, cell.params.NY2)
		}

		weightRows, err := db.Query(
			`SELECT channel, tau, y1, y2, value FROM weight WHERE order_idx = ? AND bin = ?`,
			cell.orderIdx, cell.bin,
		)
		if err != nil {
			return nil, fmt.Errorf("%w: reading weight rows: %v", errs.ErrIOFailure, err)
		}
		for weightRows.Next() {
			var channel, tau, y1, y2 int
			var value float64
			if err := weightRows.Scan(&channel, &tau, &y1, &y2, &value); err != nil {
				weightRows.Close()
				return nil, fmt.Errorf("%w: scanning weight row: %v", errs.ErrIOFailure, err)
			}
			tensors[channel].Add(tau, y1, y2, value)
		}
		if err := weightRows.Err(); err != nil {
			weightRows.Close()
			return nil, fmt.Errorf("%w: iterating weight rows: %v", errs.ErrIOFailure, err)
		}
		weightRows.Close()

		ig, err := igrid.FromParams(cell.transformName, cell.params, tensors)
		if err != nil {
			return nil, err
		}
		rows[cell.orderIdx][cell.bin] = ig
	}

	return grid.Reconstruct(meta.BinEdges, meta.Orders, lum, rows, meta.TransformName), nil
}
