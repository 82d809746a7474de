package array

import "math"

// VarNum is the cell-value-count sentinel marking a variable-length field.
const VarNum uint32 = math.MaxUint32

// Field describes one attribute or dimension of the schema: its datatype,
// the number of values per cell (VarNum for variable length) and whether a
// validity vector accompanies it.
type Field struct {
	Name       string
	Type       Datatype
	CellValNum uint32
	Nullable   bool

	// FillValue is the per-cell pattern written into padded empty cells of
	// dense fragments. A nil FillValue means all-zero bytes.
	FillValue []byte

	// IsDim marks coordinate fields. Dimensions are never nullable.
	IsDim bool
}

// Var reports whether the field has variable-length cells.
func (f *Field) Var() bool {
	return f.CellValNum == VarNum
}

// CellSize returns the fixed per-cell byte size, or 0 for var fields.
func (f *Field) CellSize() int {
	if f.Var() {
		return 0
	}
	return f.Type.Size() * int(f.CellValNum)
}

// Fill returns the resolved empty-cell pattern for a fixed field: the
// schema-provided fill value, or zero bytes when unspecified.
func (f *Field) Fill() []byte {
	if f.Var() {
		return nil
	}
	if len(f.FillValue) == f.CellSize() {
		return f.FillValue
	}
	return make([]byte, f.CellSize())
}
