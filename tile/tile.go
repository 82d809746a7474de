// Package tile implements the in-memory tiles of the write path: the unit
// of filtering and on-disk storage, and the Builder that accumulates user
// cells into them.
package tile

import (
	"encoding/binary"

	"github.com/vincentschut/tiledb/internal/pool"
)

// OffsetWidth is the on-disk width of one tile-local offset. Offsets tiles
// always store uint64 start positions regardless of the user's configured
// offsets representation.
const OffsetWidth = 8

// Tile is a buffer of cells for one stream of one field. Its bytes are the
// pre-filter image persisted after the filter pipeline runs.
type Tile struct {
	buf   *pool.ByteBuffer
	cells int
}

// New creates an empty tile, pre-growing the pooled buffer to the given
// byte capacity.
func New(byteCapacity int) *Tile {
	t := &Tile{buf: pool.GetTileBuffer()}
	if byteCapacity > 0 {
		t.buf.Grow(byteCapacity)
	}
	return t
}

// Bytes returns the tile's byte image.
func (t *Tile) Bytes() []byte {
	return t.buf.Bytes()
}

// Size returns the logical byte size of the tile.
func (t *Tile) Size() int {
	return t.buf.Len()
}

// CellCount returns the number of cells written into the tile.
func (t *Tile) CellCount() int {
	return t.cells
}

// Empty reports whether the tile holds no cells.
func (t *Tile) Empty() bool {
	return t.cells == 0
}

// Release returns the tile's buffer to the pool. The tile must not be used
// afterwards.
func (t *Tile) Release() {
	if t.buf != nil {
		pool.PutTileBuffer(t.buf)
		t.buf = nil
	}
	t.cells = 0
}

func (t *Tile) appendBytes(b []byte) {
	t.buf.MustWrite(b)
}

func (t *Tile) appendUint64(v uint64) {
	t.buf.B = binary.LittleEndian.AppendUint64(t.buf.B, v)
}

// Group bundles the streams of one field's tile: the data tile, the offsets
// tile of var fields, and the validity tile of nullable fields.
type Group struct {
	Data     *Tile
	Offsets  *Tile // nil for fixed-size fields
	Validity *Tile // nil for non-nullable fields
}

// Cells returns the number of cells in the group. For var fields this is
// the offsets tile's count.
func (g Group) Cells() int {
	if g.Offsets != nil {
		return g.Offsets.cells
	}
	if g.Data == nil {
		return 0
	}
	return g.Data.cells
}

// Empty reports whether the group holds no cells.
func (g Group) Empty() bool {
	return g.Cells() == 0
}

// Cell returns the value bytes of cell i within the group.
func (g Group) Cell(i int) []byte {
	if g.Offsets == nil {
		size := g.Data.Size() / g.Data.cells
		return g.Data.Bytes()[i*size : (i+1)*size]
	}
	offs := g.Offsets.Bytes()
	start := binary.LittleEndian.Uint64(offs[i*OffsetWidth:])
	end := uint64(g.Data.Size())
	if i+1 < g.Offsets.cells {
		end = binary.LittleEndian.Uint64(offs[(i+1)*OffsetWidth:])
	}
	return g.Data.Bytes()[start:end]
}

// ValidityByte returns the validity byte of cell i, or 1 when the group has
// no validity tile.
func (g Group) ValidityByte(i int) byte {
	if g.Validity == nil {
		return 1
	}
	return g.Validity.Bytes()[i]
}

// Release returns all stream buffers of the group to the pool.
func (g Group) Release() {
	if g.Data != nil {
		g.Data.Release()
	}
	if g.Offsets != nil {
		g.Offsets.Release()
	}
	if g.Validity != nil {
		g.Validity.Release()
	}
}
