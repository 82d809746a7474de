package write

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/buffer"
	"github.com/vincentschut/tiledb/tile"
)

func int32Buf(vals ...int32) []byte {
	var b []byte
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	return b
}

func dense2DSchema() *array.Schema {
	dim := func(name string) array.Dimension {
		return array.Dimension{
			Name: name,
			Type: array.Int32,
			Dom: array.Domain{
				Low:  array.Int32.AppendInt(nil, 0),
				High: array.Int32.AppendInt(nil, 3),
			},
			TileExtent: 2,
		}
	}
	return &array.Schema{
		Dense:      true,
		Dimensions: []array.Dimension{dim("rows"), dim("cols")},
		Attributes: []array.Field{{Name: "a", Type: array.Int32, CellValNum: 1}},
		CellOrder:  array.CellRowMajor,
		TileOrder:  array.TileRowMajor,
	}
}

func tilerGroups(t *testing.T, schema *array.Schema, sub *Subarray, layout array.Layout, values []byte) []tile.Group {
	t.Helper()
	f := schema.Attributes[0]
	view, err := buffer.NewView(f, values, nil, nil, buffer.DefaultOffsetsConfig())
	require.NoError(t, err)

	tiler := newDenseTiler(schema, sub, layout)
	builder := tile.NewBuilder(f, int(tiler.tileCellCapacity()))
	for ti := int64(0); ti < tiler.tileCount(); ti++ {
		tiler.fillTile(ti, view, builder)
	}
	return builder.Finish(true)
}

func TestDenseTilerFullDomain(t *testing.T) {
	schema := dense2DSchema()
	sub := &Subarray{Low: []int64{0, 0}, High: []int64{3, 3}}

	// 4x4 values in row-major order over the subarray.
	var vals []int32
	for i := int32(0); i < 16; i++ {
		vals = append(vals, i)
	}
	groups := tilerGroups(t, schema, sub, array.RowMajor, int32Buf(vals...))
	require.Len(t, groups, 4)

	// 2x2 tiles in row-major tile order, cells row-major within each tile.
	require.Equal(t, int32Buf(0, 1, 4, 5), groups[0].Data.Bytes())
	require.Equal(t, int32Buf(2, 3, 6, 7), groups[1].Data.Bytes())
	require.Equal(t, int32Buf(8, 9, 12, 13), groups[2].Data.Bytes())
	require.Equal(t, int32Buf(10, 11, 14, 15), groups[3].Data.Bytes())
	for _, g := range groups {
		g.Release()
	}
}

func TestDenseTilerColMajorInputEquivalence(t *testing.T) {
	schema := dense2DSchema()
	sub := &Subarray{Low: []int64{0, 0}, High: []int64{3, 3}}

	// The same logical cells, linearized column-major: the value of cell
	// (r, c) is r*4+c, stored at buffer index c*4+r.
	colVals := make([]int32, 16)
	for r := int32(0); r < 4; r++ {
		for c := int32(0); c < 4; c++ {
			colVals[c*4+r] = r*4 + c
		}
	}
	colGroups := tilerGroups(t, schema, sub, array.ColMajor, int32Buf(colVals...))

	var rowVals []int32
	for i := int32(0); i < 16; i++ {
		rowVals = append(rowVals, i)
	}
	rowGroups := tilerGroups(t, schema, sub, array.RowMajor, int32Buf(rowVals...))

	require.Len(t, colGroups, len(rowGroups))
	for i := range rowGroups {
		require.Equal(t, rowGroups[i].Data.Bytes(), colGroups[i].Data.Bytes(),
			"tile %d differs between user layouts", i)
	}
	for _, g := range append(rowGroups, colGroups...) {
		g.Release()
	}
}

func TestDenseTilerPartialBoundary(t *testing.T) {
	schema := dense2DSchema()
	// Subarray [1,2]x[1,2] touches all four tiles; the rest of each tile
	// pads with the zero fill value.
	sub := &Subarray{Low: []int64{1, 1}, High: []int64{2, 2}}
	groups := tilerGroups(t, schema, sub, array.RowMajor, int32Buf(10, 20, 30, 40))
	require.Len(t, groups, 4)

	// Tile 0 holds cells (0,0) (0,1) (1,0) (1,1): only (1,1) intersects.
	require.Equal(t, int32Buf(0, 0, 0, 10), groups[0].Data.Bytes())
	// Tile 1 holds (0,2) (0,3) (1,2) (1,3): only (1,2)=20 intersects.
	require.Equal(t, int32Buf(0, 0, 20, 0), groups[1].Data.Bytes())
	// Tile 2 holds (2,0) (2,1) (3,0) (3,1): only (2,1)=30.
	require.Equal(t, int32Buf(0, 30, 0, 0), groups[2].Data.Bytes())
	// Tile 3 holds (2,2) (2,3) (3,2) (3,3): only (2,2)=40.
	require.Equal(t, int32Buf(40, 0, 0, 0), groups[3].Data.Bytes())
	for _, g := range groups {
		g.Release()
	}
}

func TestDenseTilerColMajorOrders(t *testing.T) {
	schema := dense2DSchema()
	schema.CellOrder = array.CellColMajor
	schema.TileOrder = array.TileColMajor
	sub := &Subarray{Low: []int64{0, 0}, High: []int64{3, 3}}

	var vals []int32
	for i := int32(0); i < 16; i++ {
		vals = append(vals, i)
	}
	groups := tilerGroups(t, schema, sub, array.RowMajor, int32Buf(vals...))
	require.Len(t, groups, 4)

	// Col-major tile order: tile 1 is the (rows 2-3, cols 0-1) tile.
	// Col-major cells within: (2,0) (3,0) (2,1) (3,1).
	require.Equal(t, int32Buf(8, 12, 9, 13), groups[1].Data.Bytes())
	for _, g := range groups {
		g.Release()
	}
}

func TestSubarrayValidate(t *testing.T) {
	schema := dense2DSchema()

	ok := &Subarray{Low: []int64{0, 1}, High: []int64{2, 3}}
	require.NoError(t, ok.validate(schema))
	require.Equal(t, int64(9), ok.cellCount())

	bad := &Subarray{Low: []int64{0, 0}, High: []int64{4, 3}}
	require.Error(t, bad.validate(schema))

	inverted := &Subarray{Low: []int64{2, 0}, High: []int64{1, 3}}
	require.Error(t, inverted.validate(schema))

	short := &Subarray{Low: []int64{0}, High: []int64{1}}
	require.Error(t, short.validate(schema))
}

func TestSubarrayTileAligned(t *testing.T) {
	schema := dense2DSchema()
	require.True(t, (&Subarray{Low: []int64{0, 0}, High: []int64{3, 3}}).tileAligned(schema))
	require.True(t, (&Subarray{Low: []int64{2, 0}, High: []int64{3, 1}}).tileAligned(schema))
	require.False(t, (&Subarray{Low: []int64{1, 0}, High: []int64{2, 3}}).tileAligned(schema))

	full := fullDomain(schema)
	require.Equal(t, []int64{0, 0}, full.Low)
	require.Equal(t, []int64{3, 3}, full.High)
}
