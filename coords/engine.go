// Package coords validates and orders the coordinates of sparse and
// global-order writes: out-of-bounds checks against the dimension domains,
// the stable sort into the array's global cell order (row-major, col-major
// or Hilbert), duplicate detection, and the global-order verification of
// streamed submissions.
package coords

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/buffer"
	"github.com/vincentschut/tiledb/errs"
	"github.com/vincentschut/tiledb/internal/pool"
)

// Engine operates on the per-dimension coordinate views of one submission.
// All methods leave the user buffers untouched.
type Engine struct {
	schema *array.Schema
	views  []*buffer.View
	cells  int

	// sig is the dimension comparison order of the schema's cell order:
	// row-major compares the first dimension first, col-major the last.
	// Hilbert ties break over the raw tuple in row-major significance.
	sig []int
}

// NewEngine creates an Engine over one coordinate view per dimension, in
// schema dimension order. The views must agree on their cell count.
func NewEngine(schema *array.Schema, views []*buffer.View) (*Engine, error) {
	if len(views) != schema.DimNum() {
		return nil, fmt.Errorf("%w: got %d coordinate buffers for %d dimensions",
			errs.ErrInternal, len(views), schema.DimNum())
	}
	cells := views[0].CellCount()
	for i, v := range views {
		if v.CellCount() != cells {
			return nil, fmt.Errorf("%w: dimension %q has %d cells, %q has %d",
				errs.ErrFieldCellCountMismatch,
				schema.Dimensions[i].Name, v.CellCount(),
				schema.Dimensions[0].Name, cells)
		}
	}
	e := &Engine{schema: schema, views: views, cells: cells}
	e.sig = make([]int, schema.DimNum())
	for i := range e.sig {
		if schema.CellOrder == array.CellColMajor {
			e.sig[i] = schema.DimNum() - 1 - i
		} else {
			e.sig[i] = i
		}
	}
	return e, nil
}

// CellCount returns the number of coordinate tuples.
func (e *Engine) CellCount() int {
	return e.cells
}

// SplitZipped demultiplexes a zipped coordinates buffer into one buffer per
// dimension by strided copy. The returned buffers are freshly allocated and
// owned by the caller (the writer's arena).
func SplitZipped(schema *array.Schema, zipped []byte) ([][]byte, error) {
	cellSize, err := schema.CoordsCellSize()
	if err != nil {
		return nil, err
	}
	if cellSize == 0 || len(zipped)%cellSize != 0 {
		return nil, fmt.Errorf("%w: field %q: size %d is not a multiple of the coordinate tuple size %d",
			errs.ErrInvalidBufferShape, array.CoordsName, len(zipped), cellSize)
	}
	cells := len(zipped) / cellSize

	split := make([][]byte, schema.DimNum())
	offset := 0
	for d := range schema.Dimensions {
		size := schema.Dimensions[d].Type.Size()
		out := make([]byte, 0, cells*size)
		for c := 0; c < cells; c++ {
			base := c*cellSize + offset
			out = append(out, zipped[base:base+size]...)
		}
		split[d] = out
		offset += size
	}
	return split, nil
}

// CheckOutOfBounds verifies every coordinate lies within its dimension's
// inclusive domain, failing at the first violation.
func (e *Engine) CheckOutOfBounds() error {
	for d, v := range e.views {
		dim := &e.schema.Dimensions[d]
		for i := 0; i < e.cells; i++ {
			if !dim.Contains(v.Cell(i)) {
				return fmt.Errorf("%w: dimension %q, cell %d: coordinate %s outside domain [%s, %s]",
					errs.ErrCoordinateOutOfBounds, dim.Name, i,
					dim.Type.Format(v.Cell(i)),
					dim.Type.Format(dim.Dom.Low), dim.Type.Format(dim.Dom.High))
			}
		}
	}
	return nil
}

// cmpRaw compares the coordinate tuples of cells i and j lexicographically
// in significance order.
func (e *Engine) cmpRaw(i, j int) int {
	for _, d := range e.sig {
		if c := e.schema.Dimensions[d].Type.Compare(e.views[d].Cell(i), e.views[d].Cell(j)); c != 0 {
			return c
		}
	}
	return 0
}

// Cmp compares cells i and j in the schema's global cell order. The
// optional hilbert slice carries precomputed Hilbert keys.
func (e *Engine) Cmp(i, j int, hilbert []uint64) int {
	if hilbert != nil {
		if hilbert[i] < hilbert[j] {
			return -1
		}
		if hilbert[i] > hilbert[j] {
			return 1
		}
	}
	return e.cmpRaw(i, j)
}

// HilbertValues computes the Hilbert key of every cell. The returned
// cleanup function must be deferred to return the slice to the pool.
func (e *Engine) HilbertValues() ([]uint64, func()) {
	bits := uint(e.schema.HilbertBitsPerDim()) //nolint:gosec
	values, cleanup := pool.GetUint64Slice(e.cells)
	point := make([]uint64, e.schema.DimNum())
	for i := 0; i < e.cells; i++ {
		for d := range e.views {
			point[d] = bucket(&e.schema.Dimensions[d], e.views[d].Cell(i), bits)
		}
		values[i] = hilbertIndex(point, bits)
	}
	return values, cleanup
}

// SortPositions returns the stable permutation that arranges the cells in
// the schema's global cell order. Ties keep user submission order so that
// first-occurrence deduplication is reproducible.
func (e *Engine) SortPositions() ([]uint64, func()) {
	pos, cleanup := pool.GetUint64Slice(e.cells)
	for i := range pos {
		pos[i] = uint64(i) //nolint:gosec
	}

	var hilbert []uint64
	if e.schema.CellOrder == array.CellHilbert {
		var hvCleanup func()
		hilbert, hvCleanup = e.HilbertValues()
		defer hvCleanup()
	}

	sort.SliceStable(pos, func(a, b int) bool {
		return e.Cmp(int(pos[a]), int(pos[b]), hilbert) < 0 //nolint:gosec
	})
	return pos, cleanup
}

// equal reports whether cells i and j have bit-wise equal coordinate
// tuples across all dimensions.
func (e *Engine) equal(i, j int) bool {
	for _, v := range e.views {
		if !bytes.Equal(v.Cell(i), v.Cell(j)) {
			return false
		}
	}
	return true
}

// ComputeDupsSorted scans the sorted permutation and returns the source
// positions of second-and-later members of each duplicate run. The first
// occurrence (in submission order, by sort stability) is never reported.
func (e *Engine) ComputeDupsSorted(pos []uint64) map[uint64]struct{} {
	dups := make(map[uint64]struct{})
	for k := 1; k < len(pos); k++ {
		if e.equal(int(pos[k-1]), int(pos[k])) { //nolint:gosec
			dups[pos[k]] = struct{}{}
		}
	}
	return dups
}

// CheckDupsSorted fails with the first duplicate pair found in the sorted
// permutation.
func (e *Engine) CheckDupsSorted(pos []uint64) error {
	for k := 1; k < len(pos); k++ {
		a, b := int(pos[k-1]), int(pos[k]) //nolint:gosec
		if e.equal(a, b) {
			return fmt.Errorf("%w: cells %d and %d both have coordinates %s",
				errs.ErrCoordinateDuplicate, a, b, e.CoordsToStr(b))
		}
	}
	return nil
}

// ComputeDupsSequential detects duplicate runs in submission order. It is
// applicable to global-order writes, whose cells are already sorted.
func (e *Engine) ComputeDupsSequential() map[uint64]struct{} {
	dups := make(map[uint64]struct{})
	for i := 1; i < e.cells; i++ {
		if e.equal(i-1, i) {
			dups[uint64(i)] = struct{}{} //nolint:gosec
		}
	}
	return dups
}

// CheckDupsSequential fails with the first adjacent duplicate pair in
// submission order.
func (e *Engine) CheckDupsSequential() error {
	for i := 1; i < e.cells; i++ {
		if e.equal(i-1, i) {
			return fmt.Errorf("%w: cells %d and %d both have coordinates %s",
				errs.ErrCoordinateDuplicate, i-1, i, e.CoordsToStr(i))
		}
	}
	return nil
}

// CheckGlobalOrder verifies the cells as submitted are non-decreasing in
// the global cell order; a strict decrease is an error. prev, when
// non-nil, is the last coordinate tuple of the previous submission of the
// same global-order query.
func (e *Engine) CheckGlobalOrder(prev [][]byte) error {
	var hilbert []uint64
	if e.schema.CellOrder == array.CellHilbert {
		var cleanup func()
		hilbert, cleanup = e.HilbertValues()
		defer cleanup()
	}

	if prev != nil && e.cells > 0 {
		if e.cmpTupleToCell(prev, 0, hilbert) > 0 {
			return fmt.Errorf("%w: cell 0 with coordinates %s precedes the last cell of the previous submission",
				errs.ErrCoordinateOutOfOrder, e.CoordsToStr(0))
		}
	}
	for i := 1; i < e.cells; i++ {
		if e.Cmp(i-1, i, hilbert) > 0 {
			return fmt.Errorf("%w: cell %d with coordinates %s succeeds cell %d with coordinates %s",
				errs.ErrCoordinateOutOfOrder, i-1, e.CoordsToStr(i-1), i, e.CoordsToStr(i))
		}
	}
	return nil
}

// cmpTupleToCell compares a raw coordinate tuple against cell j.
func (e *Engine) cmpTupleToCell(tuple [][]byte, j int, hilbert []uint64) int {
	if hilbert != nil {
		bits := uint(e.schema.HilbertBitsPerDim()) //nolint:gosec
		point := make([]uint64, e.schema.DimNum())
		for d := range tuple {
			point[d] = bucket(&e.schema.Dimensions[d], tuple[d], bits)
		}
		hv := hilbertIndex(point, bits)
		if hv < hilbert[j] {
			return -1
		}
		if hv > hilbert[j] {
			return 1
		}
	}
	for _, d := range e.sig {
		if c := e.schema.Dimensions[d].Type.Compare(tuple[d], e.views[d].Cell(j)); c != 0 {
			return c
		}
	}
	return 0
}

// Tuple returns a copy of cell i's coordinate tuple, one value per
// dimension. Used to carry the last written coordinates across global-order
// submissions.
func (e *Engine) Tuple(i int) [][]byte {
	tuple := make([][]byte, len(e.views))
	for d, v := range e.views {
		tuple[d] = bytes.Clone(v.Cell(i))
	}
	return tuple
}

// CoordsToStr renders cell i's coordinate tuple for error messages.
func (e *Engine) CoordsToStr(i int) string {
	var sb strings.Builder
	sb.WriteByte('(')
	for d, v := range e.views {
		if d > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(e.schema.Dimensions[d].Type.Format(v.Cell(i)))
	}
	sb.WriteByte(')')
	return sb.String()
}
