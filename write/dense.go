package write

import (
	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/buffer"
	"github.com/vincentschut/tiledb/tile"
)

// denseTiler maps a dense subarray to the deterministic sequence of space
// tiles intersecting it, and fills per-field tiles from the user buffers in
// the array's global tile/cell order. The user's cell layout only selects
// how the flat buffer linearizes over the subarray; the produced fragment
// is identical for row- and column-major inputs over equivalent data.
type denseTiler struct {
	schema     *array.Schema
	sub        *Subarray
	userLayout array.Layout

	domLow  []int64
	extents []int64
	tileLo  []int64 // first intersecting tile coordinate per dimension
	tileNum []int64 // intersecting tile count per dimension

	subExtent []int64
	tileCells int64
}

func newDenseTiler(schema *array.Schema, sub *Subarray, userLayout array.Layout) *denseTiler {
	n := schema.DimNum()
	dt := &denseTiler{
		schema:     schema,
		sub:        sub,
		userLayout: userLayout,
		domLow:     make([]int64, n),
		extents:    make([]int64, n),
		tileLo:     make([]int64, n),
		tileNum:    make([]int64, n),
		subExtent:  make([]int64, n),
		tileCells:  1,
	}
	for d := 0; d < n; d++ {
		dim := &schema.Dimensions[d]
		dt.domLow[d], _ = dim.DomainInt()
		dt.extents[d] = dim.TileExtent
		dt.tileLo[d] = (sub.Low[d] - dt.domLow[d]) / dim.TileExtent
		tileHi := (sub.High[d] - dt.domLow[d]) / dim.TileExtent
		dt.tileNum[d] = tileHi - dt.tileLo[d] + 1
		dt.subExtent[d] = sub.High[d] - sub.Low[d] + 1
		dt.tileCells *= dim.TileExtent
	}
	return dt
}

// tileCount returns the number of space tiles intersecting the subarray.
func (dt *denseTiler) tileCount() int64 {
	n := int64(1)
	for _, t := range dt.tileNum {
		n *= t
	}
	return n
}

// tileCellCapacity returns the cell capacity of one space tile.
func (dt *denseTiler) tileCellCapacity() int64 {
	return dt.tileCells
}

// significance returns the dimension iteration order implied by an order
// flag: row-major visits the last dimension fastest, col-major the first.
func significance(n int, rowMajor bool) []int {
	sig := make([]int, n)
	for i := 0; i < n; i++ {
		if rowMajor {
			sig[i] = i
		} else {
			sig[i] = n - 1 - i
		}
	}
	return sig
}

// tileStart returns the first cell coordinate of the idx-th intersecting
// tile, enumerated in the schema's tile order.
func (dt *denseTiler) tileStart(idx int64) []int64 {
	n := len(dt.extents)
	sig := significance(n, dt.schema.TileOrder == array.TileRowMajor)

	start := make([]int64, n)
	// Decompose idx over the intersecting tile grid, fastest dimension
	// last in sig.
	for i := n - 1; i >= 0; i-- {
		d := sig[i]
		tc := dt.tileLo[d] + idx%dt.tileNum[d]
		idx /= dt.tileNum[d]
		start[d] = dt.domLow[d] + tc*dt.extents[d]
	}
	return start
}

// srcIndex linearizes a cell coordinate into the user buffer position,
// inverting the subarray's dense linearization under the user layout.
func (dt *denseTiler) srcIndex(coord []int64) int64 {
	sig := significance(len(coord), dt.userLayout == array.RowMajor)
	var idx int64
	for _, d := range sig {
		idx = idx*dt.subExtent[d] + (coord[d] - dt.sub.Low[d])
	}
	return idx
}

// srcStride returns the user-buffer stride of unit steps along dimension d.
func (dt *denseTiler) srcStride(d int) int64 {
	stride := int64(1)
	if dt.userLayout == array.RowMajor {
		for k := d + 1; k < len(dt.subExtent); k++ {
			stride *= dt.subExtent[k]
		}
	} else {
		for k := 0; k < d; k++ {
			stride *= dt.subExtent[k]
		}
	}
	return stride
}

// fillTile walks the idx-th tile's full cell grid in the schema's cell
// order and appends every cell to the builder: user cells where the tile
// intersects the subarray, empty padding elsewhere. Runs along the
// innermost dimension collapse to bulk copies when the user layout keeps
// them contiguous.
func (dt *denseTiler) fillTile(idx int64, view *buffer.View, builder *tile.Builder) {
	n := len(dt.extents)
	start := dt.tileStart(idx)
	sig := significance(n, dt.schema.CellOrder == array.CellRowMajor)
	inner := sig[n-1]
	innerStride := dt.srcStride(inner)

	coord := make([]int64, n)
	copy(coord, start)

	var walk func(level int)
	walk = func(level int) {
		if level == n-1 {
			dt.fillRow(coord, start[inner], inner, innerStride, view, builder)
			return
		}
		d := sig[level]
		for v := start[d]; v < start[d]+dt.extents[d]; v++ {
			coord[d] = v
			walk(level + 1)
		}
	}
	walk(0)
}

// fillRow emits one innermost-dimension run of a tile: leading padding up
// to the subarray, the intersecting cells, then trailing padding.
func (dt *denseTiler) fillRow(coord []int64, rowStart int64, inner int, innerStride int64,
	view *buffer.View, builder *tile.Builder,
) {
	extent := dt.extents[inner]

	// A row whose outer coordinates fall outside the subarray is all
	// padding.
	for d := range coord {
		if d == inner {
			continue
		}
		if coord[d] < dt.sub.Low[d] || coord[d] > dt.sub.High[d] {
			builder.AppendEmpty(int(extent))
			return
		}
	}

	cellLo := max(rowStart, dt.sub.Low[inner])
	cellHi := min(rowStart+extent-1, dt.sub.High[inner])
	if cellLo > cellHi {
		builder.AppendEmpty(int(extent))
		return
	}

	builder.AppendEmpty(int(cellLo - rowStart))

	coord[inner] = cellLo
	src := dt.srcIndex(coord)
	count := cellHi - cellLo + 1
	if innerStride == 1 {
		builder.AppendRange(view, int(src), int(src+count))
	} else {
		for k := int64(0); k < count; k++ {
			builder.AppendCell(view, int(src+k*innerStride))
		}
	}
	coord[inner] = rowStart

	builder.AppendEmpty(int(rowStart + extent - 1 - cellHi))
}
