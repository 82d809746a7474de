package tile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/buffer"
)

func int32View(t *testing.T, vals ...int32) *buffer.View {
	t.Helper()
	var b []byte
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	f := array.Field{Name: "a", Type: array.Int32, CellValNum: 1}
	v, err := buffer.NewView(f, b, nil, nil, buffer.DefaultOffsetsConfig())
	require.NoError(t, err)
	return v
}

func varView(t *testing.T, cells ...string) *buffer.View {
	t.Helper()
	var values []byte
	var offs []byte
	for _, c := range cells {
		offs = binary.LittleEndian.AppendUint64(offs, uint64(len(values)))
		values = append(values, c...)
	}
	f := array.Field{Name: "v", Type: array.StringASCII, CellValNum: array.VarNum}
	v, err := buffer.NewView(f, values, offs, nil, buffer.DefaultOffsetsConfig())
	require.NoError(t, err)
	return v
}

func tileOffsets(tl *Tile) []uint64 {
	b := tl.Bytes()
	offs := make([]uint64, 0, len(b)/OffsetWidth)
	for i := 0; i+OffsetWidth <= len(b); i += OffsetWidth {
		offs = append(offs, binary.LittleEndian.Uint64(b[i:]))
	}
	return offs
}

func TestBuilderFixedSplitsAcrossTiles(t *testing.T) {
	v := int32View(t, 0, 1, 2, 3, 4, 5, 6)
	f := v.Field()

	b := NewBuilder(f, 3)
	b.AppendRange(v, 0, 7)
	groups := b.Finish(false)

	require.Len(t, groups, 3)
	require.Equal(t, 3, groups[0].Cells())
	require.Equal(t, 3, groups[1].Cells())
	require.Equal(t, 1, groups[2].Cells())
	require.Equal(t, v.CellRange(0, 3), groups[0].Data.Bytes())
	require.Equal(t, v.CellRange(3, 6), groups[1].Data.Bytes())
	require.Equal(t, v.CellRange(6, 7), groups[2].Data.Bytes())
	for _, g := range groups {
		g.Release()
	}
}

func TestBuilderVarTileLocalOffsets(t *testing.T) {
	v := varView(t, "aa", "b", "cccc", "dd", "e")
	f := v.Field()

	b := NewBuilder(f, 2)
	for i := 0; i < 5; i++ {
		b.AppendCell(v, i)
	}
	groups := b.Finish(false)
	require.Len(t, groups, 3)

	// Offsets restart at zero within every tile.
	require.Equal(t, []uint64{0, 2}, tileOffsets(groups[0].Offsets))
	require.Equal(t, []byte("aab"), groups[0].Data.Bytes())
	require.Equal(t, []uint64{0, 4}, tileOffsets(groups[1].Offsets))
	require.Equal(t, []byte("ccccdd"), groups[1].Data.Bytes())
	require.Equal(t, []uint64{0}, tileOffsets(groups[2].Offsets))
	require.Equal(t, []byte("e"), groups[2].Data.Bytes())

	require.Equal(t, []byte("cccc"), groups[1].Cell(0))
	require.Equal(t, []byte("dd"), groups[1].Cell(1))
	for _, g := range groups {
		g.Release()
	}
}

func TestBuilderPadding(t *testing.T) {
	t.Run("FixedFillValue", func(t *testing.T) {
		f := array.Field{Name: "a", Type: array.Uint8, CellValNum: 1, FillValue: []byte{0xAB}}
		b := NewBuilder(f, 4)
		b.AppendEmpty(2)
		v, err := buffer.NewView(f, []byte{1}, nil, nil, buffer.DefaultOffsetsConfig())
		require.NoError(t, err)
		b.AppendCell(v, 0)
		groups := b.Finish(true)
		require.Len(t, groups, 1)
		require.Equal(t, 4, groups[0].Cells())
		require.Equal(t, []byte{0xAB, 0xAB, 1, 0xAB}, groups[0].Data.Bytes())
		groups[0].Release()
	})

	t.Run("FixedDefaultZero", func(t *testing.T) {
		f := array.Field{Name: "a", Type: array.Int32, CellValNum: 1}
		b := NewBuilder(f, 2)
		b.AppendEmpty(2)
		groups := b.Finish(false)
		require.Len(t, groups, 1)
		require.Equal(t, make([]byte, 8), groups[0].Data.Bytes())
		groups[0].Release()
	})

	t.Run("VarEmptyCells", func(t *testing.T) {
		f := array.Field{Name: "v", Type: array.StringASCII, CellValNum: array.VarNum, Nullable: true}
		b := NewBuilder(f, 3)
		b.AppendEmpty(3)
		groups := b.Finish(false)
		require.Len(t, groups, 1)
		require.Equal(t, 0, groups[0].Data.Size())
		require.Equal(t, []uint64{0, 0, 0}, tileOffsets(groups[0].Offsets))
		require.Equal(t, []byte{0, 0, 0}, groups[0].Validity.Bytes())
		groups[0].Release()
	})
}

func TestBuilderNullable(t *testing.T) {
	f := array.Field{Name: "n", Type: array.Uint8, CellValNum: 1, Nullable: true}
	v, err := buffer.NewView(f, []byte{10, 20, 30}, nil, []byte{1, 0, 1}, buffer.DefaultOffsetsConfig())
	require.NoError(t, err)

	b := NewBuilder(f, 4)
	b.AppendRange(v, 0, 3)
	groups := b.Finish(false)
	require.Len(t, groups, 1)
	require.Equal(t, []byte{10, 20, 30}, groups[0].Data.Bytes())
	require.Equal(t, []byte{1, 0, 1}, groups[0].Validity.Bytes())
	require.Equal(t, byte(0), groups[0].ValidityByte(1))
	groups[0].Release()
}

func TestBuilderPopFullAndSeed(t *testing.T) {
	v := int32View(t, 0, 1, 2, 3, 4)
	f := v.Field()

	b := NewBuilder(f, 2)
	b.AppendRange(v, 0, 5)

	full := b.PopFull()
	require.Len(t, full, 2)
	require.Equal(t, 1, b.CurrentCells())

	// Stash the partial tile and resume it in a fresh builder, the way the
	// global write state does across submissions.
	cur := b.TakeCurrent()
	require.Equal(t, 1, cur.Cells())

	b2 := NewBuilder(f, 2)
	b2.Seed(cur)
	require.Equal(t, 1, b2.CurrentCells())
	b2.AppendCell(v, 0)
	full2 := b2.PopFull()
	require.Len(t, full2, 1)
	require.Equal(t, 2, full2[0].Cells())

	for _, g := range append(full, full2...) {
		g.Release()
	}
	b2.TakeCurrent().Release()
}

func TestBuilderFinishDropsEmptyCurrent(t *testing.T) {
	v := int32View(t, 0, 1)
	b := NewBuilder(v.Field(), 2)
	b.AppendRange(v, 0, 2)
	groups := b.Finish(true)
	require.Len(t, groups, 1)
	require.Equal(t, 2, groups[0].Cells())
	groups[0].Release()
}
