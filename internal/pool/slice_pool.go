package pool

import "sync"

// Slice pools for reuse of the position and key slices built per submission
// by the coordinate engine (sort permutations, Hilbert values).
var uint64SlicePool = sync.Pool{
	New: func() any { return &[]uint64{} },
}

// GetUint64Slice retrieves a uint64 slice of exactly the requested length
// from the pool, allocating a fresh one when the pooled capacity is
// insufficient. The caller must invoke the returned cleanup function
// (typically with defer) to return the slice to the pool.
func GetUint64Slice(size int) ([]uint64, func()) {
	ptr, _ := uint64SlicePool.Get().(*[]uint64)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]uint64, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { uint64SlicePool.Put(ptr) }
}
