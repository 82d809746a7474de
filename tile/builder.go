package tile

import (
	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/buffer"
)

// Builder accumulates the cells of one field into fixed-capacity tiles,
// splitting across tile boundaries as cells arrive. The caller drives it
// with cells already arranged in the target order (sort permutation applied,
// duplicates skipped); the Builder only shapes them into tiles.
type Builder struct {
	field    array.Field
	capacity int

	cur  Group
	full []Group
}

// NewBuilder creates a Builder for a field with the given cells-per-tile
// capacity.
func NewBuilder(field array.Field, capacity int) *Builder {
	return &Builder{field: field, capacity: capacity}
}

// Field returns the field the Builder accumulates.
func (b *Builder) Field() array.Field {
	return b.field
}

// Seed installs a partially filled tile group as the current tile. Used by
// global-order writes to resume the last tile of a previous submission.
func (b *Builder) Seed(g Group) {
	b.cur = g
}

func (b *Builder) ensureCurrent() {
	if b.cur.Data != nil {
		return
	}
	if b.field.Var() {
		b.cur.Data = New(0)
		b.cur.Offsets = New(b.capacity * OffsetWidth)
	} else {
		b.cur.Data = New(b.capacity * b.field.CellSize())
	}
	if b.field.Nullable {
		b.cur.Validity = New(b.capacity)
	}
}

func (b *Builder) rotateIfFull() {
	if b.cur.Data != nil && b.cur.Cells() >= b.capacity {
		b.full = append(b.full, b.cur)
		b.cur = Group{}
	}
}

// AppendCell copies cell i of the view into the current tile, starting a
// new tile when the current one is full.
func (b *Builder) AppendCell(v *buffer.View, i int) {
	b.rotateIfFull()
	b.ensureCurrent()

	if b.field.Var() {
		b.cur.Offsets.appendUint64(uint64(b.cur.Data.Size()))
		b.cur.Offsets.cells++
		b.cur.Data.appendBytes(v.Cell(i))
	} else {
		b.cur.Data.appendBytes(v.Cell(i))
		b.cur.Data.cells++
	}
	if b.cur.Validity != nil {
		b.cur.Validity.appendBytes([]byte{v.Validity(i)})
		b.cur.Validity.cells++
	}
	if b.field.Var() {
		b.cur.Data.cells++
	}
}

// AppendRange copies cells [start, end) of the view, splitting across tile
// boundaries. Fixed-size fields without validity take a bulk copy per tile
// chunk; other shapes fall back to per-cell appends.
func (b *Builder) AppendRange(v *buffer.View, start, end int) {
	if b.field.Var() || b.field.Nullable {
		for i := start; i < end; i++ {
			b.AppendCell(v, i)
		}
		return
	}
	for start < end {
		b.rotateIfFull()
		b.ensureCurrent()
		room := b.capacity - b.cur.Cells()
		n := end - start
		if n > room {
			n = room
		}
		b.cur.Data.appendBytes(v.CellRange(start, start+n))
		b.cur.Data.cells += n
		start += n
	}
}

// AppendEmpty writes n empty cells: the field's fill pattern for fixed
// fields, zero-length values for var fields, and validity 0 when nullable.
func (b *Builder) AppendEmpty(n int) {
	fill := b.field.Fill()
	for ; n > 0; n-- {
		b.rotateIfFull()
		b.ensureCurrent()

		if b.field.Var() {
			b.cur.Offsets.appendUint64(uint64(b.cur.Data.Size()))
			b.cur.Offsets.cells++
			b.cur.Data.cells++
		} else {
			b.cur.Data.appendBytes(fill)
			b.cur.Data.cells++
		}
		if b.cur.Validity != nil {
			b.cur.Validity.appendBytes([]byte{0})
			b.cur.Validity.cells++
		}
	}
}

// CurrentCells returns the cell count of the in-progress tile.
func (b *Builder) CurrentCells() int {
	if b.cur.Data == nil {
		return 0
	}
	return b.cur.Cells()
}

// PopFull removes and returns the completed tiles accumulated so far,
// leaving any partial tile in place. Rotation happens lazily on append, so
// an exactly-full current tile is promoted here as well.
func (b *Builder) PopFull() []Group {
	b.rotateIfFull()
	full := b.full
	b.full = nil
	return full
}

// TakeCurrent removes and returns the in-progress tile group, which may be
// empty. Used by global-order writes to stash the trailing partial tile.
func (b *Builder) TakeCurrent() Group {
	b.ensureCurrent()
	cur := b.cur
	b.cur = Group{}
	return cur
}

// Finish completes the build. When pad is true the trailing tile is filled
// with empty cells up to capacity (dense layouts); otherwise a non-empty
// partial trails as-is (sparse layouts).
func (b *Builder) Finish(pad bool) []Group {
	if b.cur.Data != nil && b.cur.Cells() > 0 && pad {
		b.AppendEmpty(b.capacity - b.cur.Cells())
	}
	b.rotateIfFull()
	if b.cur.Data != nil {
		if b.cur.Cells() > 0 {
			b.full = append(b.full, b.cur)
		} else {
			b.cur.Release()
		}
		b.cur = Group{}
	}
	tiles := b.full
	b.full = nil
	return tiles
}
