/*Package sparse implements SparseTensor3D (component C3): a trimmed-range
accumulator over (tau, y1, y2) of scalar weights. Storage is a map from the
outer tau index to a rectangular dense sub-block over (y1, y2); allocation
per tau is lazy, and a fast path pre-materialises every tau's block to the
full logical (y1, y2) extent so a fill loop can index it with no bounds
adjustment. This is a direct translation of the original implementation's
SparseMatrix3d (a double** lookup table keyed by a jagged axis) into Go's
map-of-slices idiom; see DESIGN.md.
*/
package sparse

import "github.com/NNPDF/qgrid/errs"

// Tensor is a sparse 3-D accumulator of shape (nTau, nY1, nY2). The zero
// value is not usable; construct with New.
type Tensor struct {
	nTau, nY1, nY2 int
	blocks         map[int]*block
	fast           bool
}

type block struct {
	y1min, y1max, y2min, y2max int // inclusive
	data                       []float64
}

func (b *block) width() int  { return b.y2max - b.y2min + 1 }
func (b *block) height() int { return b.y1max - b.y1min + 1 }

func (b *block) idx(y1, y2 int) int {
	return (y1-b.y1min)*b.width() + (y2 - b.y2min)
}

func newBlock(y1, y2 int) *block {
	return &block{y1min: y1, y1max: y1, y2min: y2, y2max: y2, data: []float64{0}}
}

// New creates an empty tensor of logical shape (nTau, nY1, nY2).
func New(nTau, nY1, nY2 int) *Tensor {
	return &Tensor{nTau: nTau, nY1: nY1, nY2: nY2, blocks: map[int]*block{}}
}

// Shape returns the tensor's logical (nTau, nY1, nY2) dimensions.
func (t *Tensor) Shape() (nTau, nY1, nY2 int) { return t.nTau, t.nY1, t.nY2 }

// At reads the cell (tau, y1, y2). Out-of-trim reads (no block for tau, or
// (y1,y2) outside that tau's trimmed box) return 0.
func (t *Tensor) At(tau, y1, y2 int) float64 {
	b, ok := t.blocks[tau]
	if !ok {
		return 0
	}
	if y1 < b.y1min || y1 > b.y1max || y2 < b.y2min || y2 > b.y2max {
		return 0
	}
	return b.data[b.idx(y1, y2)]
}

// extend grows b's rectangle (reallocating data) to include (y1, y2), if
// necessary, preserving existing contents.
func (b *block) extend(y1, y2 int) {
	if y1 >= b.y1min && y1 <= b.y1max && y2 >= b.y2min && y2 <= b.y2max {
		return
	}
	ny1min, ny1max := min(b.y1min, y1), max(b.y1max, y1)
	ny2min, ny2max := min(b.y2min, y2), max(b.y2max, y2)
	width := ny2max - ny2min + 1
	height := ny1max - ny1min + 1
	data := make([]float64, width*height)
	for r := b.y1min; r <= b.y1max; r++ {
		for c := b.y2min; c <= b.y2max; c++ {
			data[(r-ny1min)*width+(c-ny2min)] = b.data[b.idx(r, c)]
		}
	}
	b.y1min, b.y1max, b.y2min, b.y2max = ny1min, ny1max, ny2min, ny2max
	b.data = data
}

// Add accumulates delta into cell (tau, y1, y2), extending the tau layer's
// block as needed. This is the mutating "operator()" of spec.md §4.4.
func (t *Tensor) Add(tau, y1, y2 int, delta float64) {
	b, ok := t.blocks[tau]
	if !ok {
		b = newBlock(y1, y2)
		t.blocks[tau] = b
	} else {
		b.extend(y1, y2)
	}
	b.data[b.idx(y1, y2)] += delta
}

// SetupFast pre-materialises a dense block over the full logical (y1, y2)
// extent for every tau layer, so AddFast can index it with no per-cell
// bounds adjustment. It is the escape hatch for tight fill loops; it must be
// torn down (EmptyFast, or implicitly by Trim) before the trim invariant is
// relied upon again.
func (t *Tensor) SetupFast() {
	for tau := 0; tau < t.nTau; tau++ {
		b, ok := t.blocks[tau]
		if !ok {
			b = &block{y1min: 0, y1max: t.nY1 - 1, y2min: 0, y2max: t.nY2 - 1,
				data: make([]float64, t.nY1*t.nY2)}
			t.blocks[tau] = b
			continue
		}
		b.extend(0, 0)
		b.extend(t.nY1-1, t.nY2-1)
	}
	t.fast = true
}

// EmptyFast tears down the fast path. It does not shrink blocks back down;
// call Trim for that.
func (t *Tensor) EmptyFast() { t.fast = false }

// FastEnabled reports whether SetupFast is currently active.
func (t *Tensor) FastEnabled() bool { return t.fast }

// AddFast accumulates delta into (tau, y1, y2) without any bounds-adjustment
// logic. It must only be called between SetupFast and EmptyFast/Trim, with
// indices known to be in range.
func (t *Tensor) AddFast(tau, y1, y2 int, delta float64) {
	b := t.blocks[tau]
	b.data[b.idx(y1, y2)] += delta
}

// Trim contracts every tau layer's block to the minimal bounding box of its
// non-zero entries and discards layers that end up empty. It also tears
// down the fast path. Trim is idempotent.
func (t *Tensor) Trim() {
	t.fast = false
	for tau, b := range t.blocks {
		y1min, y1max, y2min, y2max := -1, -1, -1, -1
		for y1 := b.y1min; y1 <= b.y1max; y1++ {
			for y2 := b.y2min; y2 <= b.y2max; y2++ {
				if b.data[b.idx(y1, y2)] == 0 {
					continue
				}
				if y1min == -1 || y1 < y1min {
					y1min = y1
				}
				if y1 > y1max {
					y1max = y1
				}
				if y2min == -1 || y2 < y2min {
					y2min = y2
				}
				if y2 > y2max {
					y2max = y2
				}
			}
		}
		if y1min == -1 {
			delete(t.blocks, tau)
			continue
		}
		nb := &block{y1min: y1min, y1max: y1max, y2min: y2min, y2max: y2max,
			data: make([]float64, (y1max-y1min+1)*(y2max-y2min+1))}
		for y1 := y1min; y1 <= y1max; y1++ {
			for y2 := y2min; y2 <= y2max; y2++ {
				nb.data[nb.idx(y1, y2)] = b.data[b.idx(y1, y2)]
			}
		}
		t.blocks[tau] = nb
	}
}

// Untrim is a no-op restore marker: trimming never destroys information (it
// only shrinks bounding boxes around non-zero content), so there is nothing
// to actually restore.
func (t *Tensor) Untrim() {}

// TauRange returns the minimal [tauMin, tauMax] spanning populated layers.
// ok is false if the tensor has no non-empty layer.
func (t *Tensor) TauRange() (tauMin, tauMax int, ok bool) {
	first := true
	for tau := range t.blocks {
		if first || tau < tauMin {
			tauMin = tau
		}
		if first || tau > tauMax {
			tauMax = tau
		}
		first = false
	}
	return tauMin, tauMax, !first
}

// YRange returns the trimmed [y1min,y1max]x[y2min,y2max] bounding box for a
// tau layer. ok is false if that layer has no block.
func (t *Tensor) YRange(tau int) (y1min, y1max, y2min, y2max int, ok bool) {
	b, ok := t.blocks[tau]
	if !ok {
		return 0, 0, 0, 0, false
	}
	return b.y1min, b.y1max, b.y2min, b.y2max, true
}

// HasLayer reports whether tau has an allocated block.
func (t *Tensor) HasLayer(tau int) bool {
	_, ok := t.blocks[tau]
	return ok
}

// Scale multiplies every stored cell by c.
func (t *Tensor) Scale(c float64) {
	for _, b := range t.blocks {
		for i := range b.data {
			b.data[i] *= c
		}
	}
}

// SameAxes reports whether t and o share identical logical shape, which is
// the precondition for Add and for channel comparison in Equal.
func (t *Tensor) SameAxes(o *Tensor) bool {
	return t.nTau == o.nTau && t.nY1 == o.nY1 && t.nY2 == o.nY2
}

// AddTensor accumulates every cell of o into t, cell-wise. It requires
// SameAxes(o); otherwise it fails with errs.ErrAxisMismatch.
func (t *Tensor) AddTensor(o *Tensor) error {
	if !t.SameAxes(o) {
		return errs.ErrAxisMismatch
	}
	for tau, ob := range o.blocks {
		for y1 := ob.y1min; y1 <= ob.y1max; y1++ {
			for y2 := ob.y2min; y2 <= ob.y2max; y2++ {
				v := ob.data[ob.idx(y1, y2)]
				if v != 0 {
					t.Add(tau, y1, y2, v)
				}
			}
		}
	}
	return nil
}

// Equal compares trimmed non-zero content pointwise with exact equality
// (spec.md §3: "Equality requires matching axes AND identical non-zero
// content"). It does not require either tensor to already be trimmed.
func Equal(a, b *Tensor) bool {
	if !a.SameAxes(b) {
		return false
	}
	seen := map[[3]int]bool{}
	check := func(t *Tensor) bool {
		for tau, bl := range t.blocks {
			for y1 := bl.y1min; y1 <= bl.y1max; y1++ {
				for y2 := bl.y2min; y2 <= bl.y2max; y2++ {
					v := bl.data[bl.idx(y1, y2)]
					if v == 0 {
						continue
					}
					key := [3]int{tau, y1, y2}
					if seen[key] {
						continue
					}
					seen[key] = true
					if a.At(tau, y1, y2) != b.At(tau, y1, y2) {
						return false
					}
				}
			}
		}
		return true
	}
	return check(a) && check(b)
}
