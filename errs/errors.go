// Package errs defines the sentinel errors returned by the write path.
//
// Callers should use errors.Is to classify failures. Every error produced by
// the writer wraps one of these sentinels with fmt.Errorf("%w: ...") so that
// the message carries the offending field name and cell index where known.
package errs

import "errors"

// Configuration and binding errors. These arise before any durable effect.
var (
	// ErrConfiguration indicates an invalid writer parameter: unknown field
	// name, missing required buffer part, malformed subarray, or an invalid
	// query-scoped configuration value.
	ErrConfiguration = errors.New("invalid writer configuration")

	// ErrInvalidBufferShape indicates a user buffer whose sizes are
	// inconsistent with the field definition: values size not a multiple of
	// the cell size, non-monotonic offsets, a trailing sentinel offset that
	// does not equal the values size, or a validity vector whose length does
	// not match the cell count.
	ErrInvalidBufferShape = errors.New("invalid buffer shape")

	// ErrUnsupportedLayout indicates a (dense/sparse, layout) combination the
	// writer does not implement.
	ErrUnsupportedLayout = errors.New("unsupported write layout")
)

// Coordinate errors, reported during sparse and global-order writes.
var (
	// ErrCoordinateDuplicate indicates two cells with bit-wise equal
	// coordinate tuples when deduplication is disabled and duplicate
	// checking is enabled.
	ErrCoordinateDuplicate = errors.New("duplicate coordinates")

	// ErrCoordinateOutOfBounds indicates a coordinate outside the inclusive
	// dimension domain.
	ErrCoordinateOutOfBounds = errors.New("coordinates out of bounds")

	// ErrCoordinateOutOfOrder indicates that cells submitted under the
	// global-order layout strictly decrease in the global order.
	ErrCoordinateOutOfOrder = errors.New("coordinates out of global order")
)

// Cross-field and lifecycle errors.
var (
	// ErrFieldCellCountMismatch indicates that the bound fields do not agree
	// on the number of cells, either within one submission or accumulated
	// across the submissions of a global-order write.
	ErrFieldCellCountMismatch = errors.New("field cell count mismatch")

	// ErrWriterInitialized is returned by setters invoked after Init.
	ErrWriterInitialized = errors.New("writer already initialized")

	// ErrWriterNotInitialized is returned by Write and Finalize before Init.
	ErrWriterNotInitialized = errors.New("writer not initialized")

	// ErrWriterErrored is returned when a writer that entered the error
	// state receives further Write calls.
	ErrWriterErrored = errors.New("writer is in error state")

	// ErrAlreadyFinalized is returned when Write or Finalize is called after
	// a successful Finalize.
	ErrAlreadyFinalized = errors.New("writer already finalized")

	// ErrNotGlobalLayout is returned by Finalize when no global-order write
	// is pending.
	ErrNotGlobalLayout = errors.New("finalize applies only to global-order writes")
)

// Fatal errors.
var (
	// ErrStorage wraps failures reported by the storage backend.
	ErrStorage = errors.New("storage backend error")

	// ErrInternal indicates a broken internal invariant. It is not
	// user-recoverable.
	ErrInternal = errors.New("internal invariant violation")
)

// Fragment metadata errors.
var (
	// ErrInvalidFragmentName indicates a fragment directory name that does
	// not follow the __<t_start>_<t_end>_<uuid>_<version> grammar.
	ErrInvalidFragmentName = errors.New("invalid fragment name")

	// ErrInvalidMetadata indicates a fragment metadata file that is
	// truncated, has a bad checksum, or an unsupported format version.
	ErrInvalidMetadata = errors.New("invalid fragment metadata")

	// ErrFragmentNotCommitted indicates a fragment directory without a
	// commit marker. Such fragments are invisible and safe to remove.
	ErrFragmentNotCommitted = errors.New("fragment not committed")
)
