package filter

// ZstdCodec applies Zstandard compression. A Pipeline uses it only where it
// is selected; every stream of a new Pipeline starts with the no-op codec.
//
// Two implementations exist: a cgo binding (valyala/gozstd) selected when
// cgo is available, and a pure-Go fallback (klauspost/compress/zstd). Both
// produce standard zstd frames and interoperate freely.
type ZstdCodec struct{}

var _ Codec = (*ZstdCodec)(nil)

// NewZstdCodec creates a new Zstd codec with default settings.
func NewZstdCodec() ZstdCodec {
	return ZstdCodec{}
}
