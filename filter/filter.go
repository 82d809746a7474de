// Package filter implements the tile filter pipeline of the write path.
//
// Every tile buffer is pushed through the pipeline of its field before it is
// persisted. Filters are content-preserving end-to-end: decompressing a
// filtered tile reconstructs the pre-filter byte image exactly, which the
// round-trip tests rely on.
package filter

import (
	"fmt"
)

// Type identifies a filter in fragment metadata. The value is persisted as
// a single byte per stream, so readers can unfilter without consulting the
// schema.
type Type uint8

const (
	TypeNone Type = 0x1 // TypeNone passes tile bytes through unchanged.
	TypeZstd Type = 0x2 // TypeZstd applies Zstandard compression.
	TypeS2   Type = 0x3 // TypeS2 applies S2 (Snappy-compatible) compression.
	TypeLZ4  Type = 0x4 // TypeLZ4 applies LZ4 block compression.
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "None"
	case TypeZstd:
		return "Zstd"
	case TypeS2:
		return "S2"
	case TypeLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}

// Valid reports whether t is a recognized filter type.
func (t Type) Valid() bool {
	return t >= TypeNone && t <= TypeLZ4
}

// Compressor compresses one tile buffer.
//
// The input is the complete byte image of a tile (data, offsets or validity
// stream). The returned slice is owned by the caller; the input is never
// modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor reverses a Compressor.
//
// Implementations must be safe for concurrent use: the fragment writer
// filters the tiles of a field in parallel.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions of a filter.
type Codec interface {
	Compressor
	Decompressor
}

// CreateCodec is a factory returning the Codec for a filter type.
//
// Parameters:
//   - filterType: Type of filter (None, Zstd, S2, or LZ4)
//   - target: Description of target usage (for error messages)
//
// Returns:
//   - Codec: Codec instance for the specified type
//   - error: Invalid filter type error
func CreateCodec(filterType Type, target string) (Codec, error) {
	switch filterType {
	case TypeNone:
		return NewNoOpCodec(), nil
	case TypeZstd:
		return NewZstdCodec(), nil
	case TypeS2:
		return NewS2Codec(), nil
	case TypeLZ4:
		return NewLZ4Codec(), nil
	default:
		return nil, fmt.Errorf("invalid %s filter: %s", target, filterType)
	}
}

var builtinCodecs = map[Type]Codec{
	TypeNone: NewNoOpCodec(),
	TypeZstd: NewZstdCodec(),
	TypeS2:   NewS2Codec(),
	TypeLZ4:  NewLZ4Codec(),
}

// GetCodec retrieves a built-in Codec for the specified filter type.
func GetCodec(filterType Type) (Codec, error) {
	if codec, ok := builtinCodecs[filterType]; ok {
		return codec, nil
	}

	return nil, fmt.Errorf("unsupported filter type: %s", filterType)
}
