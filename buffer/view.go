// Package buffer provides typed, immutable views over the cell buffers a
// user binds to a write query.
//
// A View borrows the user memory for the duration of one submission and
// never mutates it. All shape validation of the raw buffers happens at view
// construction, so the rest of the write path can index cells without
// re-checking bounds.
package buffer

import (
	"fmt"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/errs"
)

// View is a validated, cell-addressable view over the buffers of one field:
// a values buffer, an offsets buffer for var fields, and a validity vector
// for nullable fields.
type View struct {
	field    array.Field
	values   []byte
	validity []byte

	// offs holds normalized absolute byte offsets, one per cell plus the
	// implicit final offset equal to len(values). Nil for fixed fields.
	offs []uint64

	cellCount int
}

// NewView validates the raw buffers of a field against its shape and
// returns a cell-addressable view. The offsets configuration governs how a
// var field's offsets buffer is decoded.
func NewView(field array.Field, values, offsets, validity []byte, cfg OffsetsConfig) (*View, error) {
	v := &View{field: field, values: values, validity: validity}

	if field.Var() {
		if err := v.initVar(offsets, cfg); err != nil {
			return nil, err
		}
	} else {
		cellSize := field.CellSize()
		if cellSize == 0 {
			return nil, fmt.Errorf("%w: field %q: zero cell size", errs.ErrInternal, field.Name)
		}
		if len(offsets) != 0 {
			return nil, fmt.Errorf("%w: field %q: offsets bound to a fixed-size field",
				errs.ErrInvalidBufferShape, field.Name)
		}
		if len(values)%cellSize != 0 {
			return nil, fmt.Errorf("%w: field %q: values size %d is not a multiple of cell size %d",
				errs.ErrInvalidBufferShape, field.Name, len(values), cellSize)
		}
		v.cellCount = len(values) / cellSize
	}

	if field.Nullable {
		if len(validity) != v.cellCount {
			return nil, fmt.Errorf("%w: field %q: validity size %d does not match cell count %d",
				errs.ErrInvalidBufferShape, field.Name, len(validity), v.cellCount)
		}
	} else if len(validity) != 0 {
		return nil, fmt.Errorf("%w: field %q: validity bound to a non-nullable field",
			errs.ErrInvalidBufferShape, field.Name)
	}

	return v, nil
}

func (v *View) initVar(offsets []byte, cfg OffsetsConfig) error {
	name := v.field.Name
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: field %q: %v", errs.ErrConfiguration, name, err)
	}
	width := cfg.ElemWidth()
	if len(offsets) == 0 || len(offsets)%width != 0 {
		return fmt.Errorf("%w: field %q: offsets size %d is not a positive multiple of %d",
			errs.ErrInvalidBufferShape, name, len(offsets), width)
	}

	elems := len(offsets) / width
	cells := elems
	if cfg.ExtraElement {
		cells = elems - 1
		if cells < 1 {
			return fmt.Errorf("%w: field %q: offsets hold only the sentinel element",
				errs.ErrInvalidBufferShape, name)
		}
	}

	dsize := v.field.Type.Size()
	offs := make([]uint64, cells+1)
	for i := 0; i < cells; i++ {
		offs[i] = cfg.Decode(offsets, i, dsize)
	}
	if cfg.ExtraElement {
		// The sentinel must equal the values size; it becomes the final
		// offset after validation.
		sentinel := cfg.Decode(offsets, cells, dsize)
		if sentinel != uint64(len(v.values)) {
			return fmt.Errorf("%w: field %q: sentinel offset %d does not equal values size %d",
				errs.ErrInvalidBufferShape, name, sentinel, len(v.values))
		}
	}
	offs[cells] = uint64(len(v.values))

	for i := 0; i < cells; i++ {
		if offs[i] > offs[i+1] {
			return fmt.Errorf("%w: field %q: offsets decrease at cell %d (%d > %d)",
				errs.ErrInvalidBufferShape, name, i, offs[i], offs[i+1])
		}
	}
	if offs[0] != 0 {
		return fmt.Errorf("%w: field %q: first offset %d is not zero",
			errs.ErrInvalidBufferShape, name, offs[0])
	}

	v.offs = offs
	v.cellCount = cells

	return nil
}

// Field returns the field the view belongs to.
func (v *View) Field() array.Field {
	return v.field
}

// CellCount returns the number of cells the view addresses.
func (v *View) CellCount() int {
	return v.cellCount
}

// Cell returns the value bytes of cell i.
func (v *View) Cell(i int) []byte {
	if v.offs != nil {
		return v.values[v.offs[i]:v.offs[i+1]]
	}
	size := v.field.CellSize()
	return v.values[i*size : (i+1)*size]
}

// CellSize returns the value byte size of cell i.
func (v *View) CellSize(i int) int {
	if v.offs != nil {
		return int(v.offs[i+1] - v.offs[i]) //nolint:gosec
	}
	return v.field.CellSize()
}

// CellRange returns the contiguous value bytes of cells [start, end).
// Valid only for fixed-size fields.
func (v *View) CellRange(start, end int) []byte {
	size := v.field.CellSize()
	return v.values[start*size : end*size]
}

// Validity returns the validity byte of cell i, normalized to 0 or 1.
// Non-nullable fields report every cell as valid.
func (v *View) Validity(i int) byte {
	if v.validity == nil {
		return 1
	}
	if v.validity[i] != 0 {
		return 1
	}
	return 0
}

// Nullable reports whether the view carries a validity vector.
func (v *View) Nullable() bool {
	return v.validity != nil
}
