// Package pool provides pooled buffers for tile accumulation and fragment
// metadata assembly.
package pool

import (
	"io"
	"sync"
)

// Default sizes of pooled buffers. Tile buffers start at one typical tile
// payload; metadata buffers are smaller. Oversized buffers are dropped on
// Put to bound pool memory.
const (
	TileBufferDefaultSize  = 1024 * 64       // 64KiB
	TileBufferMaxThreshold = 1024 * 1024 * 4 // 4MiB
	MetaBufferDefaultSize  = 1024 * 4        // 4KiB
	MetaBufferMaxThreshold = 1024 * 256      // 256KiB
)

// ByteBuffer is a growable byte slice with explicit length control, used as
// the backing store of in-memory tiles.
type ByteBuffer struct {
	// B is the underlying byte slice.
	B []byte
}

// NewByteBuffer creates a new ByteBuffer with the specified initial capacity.
func NewByteBuffer(defaultSize int) *ByteBuffer {
	return &ByteBuffer{
		B: make([]byte, 0, defaultSize),
	}
}

// Bytes returns the underlying byte slice.
func (bb *ByteBuffer) Bytes() []byte {
	return bb.B
}

// Reset empties the buffer while retaining the allocated memory.
func (bb *ByteBuffer) Reset() {
	bb.B = bb.B[:0]
}

// Len returns the length of the buffer.
func (bb *ByteBuffer) Len() int {
	return len(bb.B)
}

// Cap returns the capacity of the buffer.
func (bb *ByteBuffer) Cap() int {
	return cap(bb.B)
}

// MustWrite appends data to the buffer, growing it if necessary.
func (bb *ByteBuffer) MustWrite(data []byte) {
	bb.B = append(bb.B, data...)
}

// Write implements io.Writer.
func (bb *ByteBuffer) Write(data []byte) (int, error) {
	bb.B = append(bb.B, data...)
	return len(data), nil
}

// WriteTo writes the contents of the buffer to w.
func (bb *ByteBuffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(bb.B)
	return int64(n), err
}

// Grow ensures the buffer can hold requiredBytes more bytes without
// reallocating. Small buffers grow by TileBufferDefaultSize steps, larger
// ones by 25% of current capacity.
func (bb *ByteBuffer) Grow(requiredBytes int) {
	available := cap(bb.B) - len(bb.B)
	if available >= requiredBytes {
		return
	}

	growBy := TileBufferDefaultSize
	if cap(bb.B) > 4*TileBufferDefaultSize {
		growBy = cap(bb.B) / 4
	}
	if growBy < requiredBytes {
		growBy = requiredBytes
	}

	newBuf := make([]byte, len(bb.B), len(bb.B)+growBy)
	copy(newBuf, bb.B)
	bb.B = newBuf
}

// ByteBufferPool is a pool of ByteBuffers backed by sync.Pool. Buffers whose
// capacity exceeds maxThreshold are discarded on Put to prevent memory bloat.
type ByteBufferPool struct {
	pool         sync.Pool
	maxThreshold int
}

// NewByteBufferPool creates a pool handing out buffers of the given default
// capacity.
func NewByteBufferPool(defaultSize int, maxThreshold int) *ByteBufferPool {
	return &ByteBufferPool{
		pool: sync.Pool{
			New: func() any {
				return NewByteBuffer(defaultSize)
			},
		},
		maxThreshold: maxThreshold,
	}
}

// Get retrieves a ByteBuffer from the pool.
func (bbp *ByteBufferPool) Get() *ByteBuffer {
	bb, _ := bbp.pool.Get().(*ByteBuffer)
	return bb
}

// Put returns a ByteBuffer to the pool for reuse.
func (bbp *ByteBufferPool) Put(bb *ByteBuffer) {
	if bb == nil {
		return
	}
	if bbp.maxThreshold > 0 && cap(bb.B) > bbp.maxThreshold {
		return
	}
	bb.Reset()
	bbp.pool.Put(bb)
}

var (
	tileDefaultPool = NewByteBufferPool(TileBufferDefaultSize, TileBufferMaxThreshold)
	metaDefaultPool = NewByteBufferPool(MetaBufferDefaultSize, MetaBufferMaxThreshold)
)

// GetTileBuffer retrieves a ByteBuffer from the tile pool.
func GetTileBuffer() *ByteBuffer {
	return tileDefaultPool.Get()
}

// PutTileBuffer returns a ByteBuffer to the tile pool.
func PutTileBuffer(bb *ByteBuffer) {
	tileDefaultPool.Put(bb)
}

// GetMetaBuffer retrieves a ByteBuffer from the metadata pool.
func GetMetaBuffer() *ByteBuffer {
	return metaDefaultPool.Get()
}

// PutMetaBuffer returns a ByteBuffer to the metadata pool.
func PutMetaBuffer(bb *ByteBuffer) {
	metaDefaultPool.Put(bb)
}
