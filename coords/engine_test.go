package coords

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/buffer"
	"github.com/vincentschut/tiledb/errs"
)

func int32Bytes(vals ...int32) []byte {
	var b []byte
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint32(b, uint32(v))
	}
	return b
}

func sparseSchema2D(order array.CellOrder) *array.Schema {
	dim := func(name string) array.Dimension {
		return array.Dimension{
			Name: name,
			Type: array.Int32,
			Dom: array.Domain{
				Low:  array.Int32.AppendInt(nil, 0),
				High: array.Int32.AppendInt(nil, 99),
			},
		}
	}
	return &array.Schema{
		Dimensions: []array.Dimension{dim("d1"), dim("d2")},
		Capacity:   10,
		CellOrder:  order,
		TileOrder:  array.TileRowMajor,
	}
}

func engine2D(t *testing.T, schema *array.Schema, d1, d2 []int32) *Engine {
	t.Helper()
	mk := func(name string, vals []int32) *buffer.View {
		f, ok := schema.Field(name)
		require.True(t, ok)
		v, err := buffer.NewView(f, int32Bytes(vals...), nil, nil, buffer.DefaultOffsetsConfig())
		require.NoError(t, err)
		return v
	}
	e, err := NewEngine(schema, []*buffer.View{mk("d1", d1), mk("d2", d2)})
	require.NoError(t, err)
	return e
}

func TestNewEngineCellCountMismatch(t *testing.T) {
	schema := sparseSchema2D(array.CellRowMajor)
	f1, _ := schema.Field("d1")
	f2, _ := schema.Field("d2")
	v1, err := buffer.NewView(f1, int32Bytes(1, 2), nil, nil, buffer.DefaultOffsetsConfig())
	require.NoError(t, err)
	v2, err := buffer.NewView(f2, int32Bytes(1), nil, nil, buffer.DefaultOffsetsConfig())
	require.NoError(t, err)
	_, err = NewEngine(schema, []*buffer.View{v1, v2})
	require.ErrorIs(t, err, errs.ErrFieldCellCountMismatch)
}

func TestSplitZipped(t *testing.T) {
	schema := sparseSchema2D(array.CellRowMajor)

	// Three cells: (1,10), (2,20), (3,30) zipped per cell.
	zipped := int32Bytes(1, 10, 2, 20, 3, 30)
	split, err := SplitZipped(schema, zipped)
	require.NoError(t, err)
	require.Len(t, split, 2)
	require.Equal(t, int32Bytes(1, 2, 3), split[0])
	require.Equal(t, int32Bytes(10, 20, 30), split[1])

	_, err = SplitZipped(schema, zipped[:5])
	require.ErrorIs(t, err, errs.ErrInvalidBufferShape)
}

func TestCheckOutOfBounds(t *testing.T) {
	schema := sparseSchema2D(array.CellRowMajor)

	t.Run("InBounds", func(t *testing.T) {
		e := engine2D(t, schema, []int32{0, 99}, []int32{99, 0})
		require.NoError(t, e.CheckOutOfBounds())
	})

	t.Run("Violation", func(t *testing.T) {
		e := engine2D(t, schema, []int32{5, 100}, []int32{5, 5})
		err := e.CheckOutOfBounds()
		require.ErrorIs(t, err, errs.ErrCoordinateOutOfBounds)
		require.Contains(t, err.Error(), "d1")
		require.Contains(t, err.Error(), "100")
	})
}

func TestSortPositionsRowMajor(t *testing.T) {
	schema := sparseSchema2D(array.CellRowMajor)
	e := engine2D(t, schema, []int32{2, 1, 2, 1}, []int32{0, 5, 0, 3})

	pos, cleanup := e.SortPositions()
	defer cleanup()

	// Row-major: d1 most significant. Ties on (2,0) keep submission order.
	require.Equal(t, []uint64{3, 1, 0, 2}, pos)
}

func TestSortPositionsColMajor(t *testing.T) {
	schema := sparseSchema2D(array.CellColMajor)
	e := engine2D(t, schema, []int32{2, 1, 3, 1}, []int32{0, 5, 0, 3})

	pos, cleanup := e.SortPositions()
	defer cleanup()

	// Col-major: d2 most significant.
	require.Equal(t, []uint64{0, 2, 3, 1}, pos)
}

func TestSortPositionsHilbert(t *testing.T) {
	schema := sparseSchema2D(array.CellHilbert)
	e := engine2D(t, schema, []int32{10, 90, 10, 10}, []int32{10, 90, 90, 10})

	pos, cleanup := e.SortPositions()
	defer cleanup()
	require.Len(t, pos, 4)

	// Hilbert duplicates stay adjacent and stable: cells 0 and 3 share a
	// coordinate tuple and must keep submission order.
	i0, i3 := indexOf(pos, 0), indexOf(pos, 3)
	require.Equal(t, i0+1, i3)

	// The permutation must be deterministic across runs.
	pos2, cleanup2 := e.SortPositions()
	defer cleanup2()
	require.Equal(t, pos, pos2)
}

func indexOf(pos []uint64, want uint64) int {
	for i, p := range pos {
		if p == want {
			return i
		}
	}
	return -1
}

func TestDuplicateDetection(t *testing.T) {
	schema := sparseSchema2D(array.CellRowMajor)
	e := engine2D(t, schema, []int32{5, 2, 5, 8}, []int32{1, 1, 1, 1})

	pos, cleanup := e.SortPositions()
	defer cleanup()

	t.Run("ComputeKeepsFirstOccurrence", func(t *testing.T) {
		dups := e.ComputeDupsSorted(pos)
		require.Len(t, dups, 1)
		_, dropped := dups[2]
		require.True(t, dropped, "the later duplicate (cell 2) must be dropped, not cell 0")
	})

	t.Run("CheckErrors", func(t *testing.T) {
		err := e.CheckDupsSorted(pos)
		require.ErrorIs(t, err, errs.ErrCoordinateDuplicate)
		require.Contains(t, err.Error(), "cells 0 and 2")
		require.Contains(t, err.Error(), "(5, 1)")
	})

	t.Run("NoDups", func(t *testing.T) {
		e2 := engine2D(t, schema, []int32{1, 2, 3}, []int32{1, 2, 3})
		pos2, cleanup2 := e2.SortPositions()
		defer cleanup2()
		require.NoError(t, e2.CheckDupsSorted(pos2))
		require.Empty(t, e2.ComputeDupsSorted(pos2))
	})
}

func TestSequentialDuplicates(t *testing.T) {
	schema := sparseSchema2D(array.CellRowMajor)
	e := engine2D(t, schema, []int32{1, 1, 2}, []int32{4, 4, 4})

	dups := e.ComputeDupsSequential()
	require.Len(t, dups, 1)
	_, ok := dups[1]
	require.True(t, ok)

	err := e.CheckDupsSequential()
	require.ErrorIs(t, err, errs.ErrCoordinateDuplicate)
}

func TestCheckGlobalOrder(t *testing.T) {
	schema := sparseSchema2D(array.CellRowMajor)

	t.Run("Ordered", func(t *testing.T) {
		e := engine2D(t, schema, []int32{1, 1, 2}, []int32{0, 9, 3})
		require.NoError(t, e.CheckGlobalOrder(nil))
	})

	t.Run("EqualAdjacentAllowed", func(t *testing.T) {
		e := engine2D(t, schema, []int32{1, 1}, []int32{5, 5})
		require.NoError(t, e.CheckGlobalOrder(nil))
	})

	t.Run("StrictDecrease", func(t *testing.T) {
		e := engine2D(t, schema, []int32{2, 1}, []int32{0, 0})
		err := e.CheckGlobalOrder(nil)
		require.ErrorIs(t, err, errs.ErrCoordinateOutOfOrder)
		require.Contains(t, err.Error(), "(2, 0)")
	})

	t.Run("PreviousSubmissionBoundary", func(t *testing.T) {
		e := engine2D(t, schema, []int32{3, 4}, []int32{0, 0})
		prev := [][]byte{int32Bytes(5), int32Bytes(0)}
		err := e.CheckGlobalOrder(prev)
		require.ErrorIs(t, err, errs.ErrCoordinateOutOfOrder)

		prevOK := [][]byte{int32Bytes(3), int32Bytes(0)}
		require.NoError(t, e.CheckGlobalOrder(prevOK))
	})
}

func TestTupleAndCoordsToStr(t *testing.T) {
	schema := sparseSchema2D(array.CellRowMajor)
	e := engine2D(t, schema, []int32{7}, []int32{9})

	require.Equal(t, "(7, 9)", e.CoordsToStr(0))
	tuple := e.Tuple(0)
	require.Equal(t, int32Bytes(7), tuple[0])
	require.Equal(t, int32Bytes(9), tuple[1])
}
