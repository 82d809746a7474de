package coords

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vincentschut/tiledb/array"
)

func TestHilbertIndexBijective2D(t *testing.T) {
	// With 3 bits per dimension, the 8x8 grid maps onto the 64 curve
	// positions exactly once.
	seen := make(map[uint64]struct{})
	for x := uint64(0); x < 8; x++ {
		for y := uint64(0); y < 8; y++ {
			idx := hilbertIndex([]uint64{x, y}, 3)
			require.Less(t, idx, uint64(64))
			_, dup := seen[idx]
			require.False(t, dup, "curve position %d visited twice", idx)
			seen[idx] = struct{}{}
		}
	}
	require.Len(t, seen, 64)
}

func TestHilbertIndexLocality(t *testing.T) {
	// Walking the curve index by index must step to a neighboring cell:
	// the Hilbert curve moves one unit per step.
	const bits = 3
	coordsOf := make(map[uint64][2]uint64)
	for x := uint64(0); x < 8; x++ {
		for y := uint64(0); y < 8; y++ {
			coordsOf[hilbertIndex([]uint64{x, y}, bits)] = [2]uint64{x, y}
		}
	}
	for idx := uint64(0); idx < 63; idx++ {
		a, b := coordsOf[idx], coordsOf[idx+1]
		dist := absDiff(a[0], b[0]) + absDiff(a[1], b[1])
		require.Equal(t, uint64(1), dist, "step %d→%d jumps from %v to %v", idx, idx+1, a, b)
	}
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

func TestHilbertIndexDeterministic(t *testing.T) {
	first := hilbertIndex([]uint64{5, 2, 7}, 4)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, hilbertIndex([]uint64{5, 2, 7}, 4))
	}
}

func TestBucketQuantization(t *testing.T) {
	dim := &array.Dimension{
		Name: "d",
		Type: array.Int32,
		Dom: array.Domain{
			Low:  array.Int32.AppendInt(nil, 0),
			High: array.Int32.AppendInt(nil, 100),
		},
	}

	t.Run("Endpoints", func(t *testing.T) {
		require.Equal(t, uint64(0), bucket(dim, array.Int32.AppendInt(nil, 0), 8))
		require.Equal(t, uint64(255), bucket(dim, array.Int32.AppendInt(nil, 100), 8))
	})

	t.Run("Monotonic", func(t *testing.T) {
		prev := uint64(0)
		for v := int64(0); v <= 100; v += 5 {
			b := bucket(dim, array.Int32.AppendInt(nil, v), 8)
			require.GreaterOrEqual(t, b, prev)
			prev = b
		}
	})

	t.Run("DegenerateDomain", func(t *testing.T) {
		point := &array.Dimension{
			Name: "p",
			Type: array.Int32,
			Dom: array.Domain{
				Low:  array.Int32.AppendInt(nil, 7),
				High: array.Int32.AppendInt(nil, 7),
			},
		}
		require.Equal(t, uint64(0), bucket(point, array.Int32.AppendInt(nil, 7), 8))
	})

	t.Run("BytesDimension", func(t *testing.T) {
		sdim := &array.Dimension{
			Name: "s",
			Type: array.StringASCII,
			Dom:  array.Domain{Low: []byte(""), High: []byte("\xff")},
		}
		a := bucket(sdim, []byte("aaa"), 16)
		b := bucket(sdim, []byte("zzz"), 16)
		require.Less(t, a, b)
	})
}
