package write

import (
	"fmt"
	"runtime"
	"strconv"

	"github.com/vincentschut/tiledb/buffer"
	"github.com/vincentschut/tiledb/errs"
)

// Recognized query-scoped configuration keys.
const (
	KeyCheckCoordDups      = "check_coord_dups"
	KeyCheckCoordOOB       = "check_coord_oob"
	KeyDedupCoords         = "dedup_coords"
	KeyCheckGlobalOrder    = "check_global_order"
	KeyOffsetsMode         = "offsets_mode"
	KeyOffsetsExtraElement = "offsets_extra_element"
	KeyOffsetsBitsize      = "offsets_bitsize"
)

// Config holds the query-scoped parameters of one writer.
type Config struct {
	// CheckCoordDups enables the duplicate check for sparse writes. It is
	// meaningful only while DedupCoords is false.
	CheckCoordDups bool

	// CheckCoordOOB enables the out-of-bounds check for sparse writes.
	CheckCoordOOB bool

	// DedupCoords drops duplicate coordinates instead of erroring.
	DedupCoords bool

	// CheckGlobalOrder enables the order verification of global-layout
	// writes. Writer.DisableCheckGlobalOrder and this flag follow
	// last-writer-wins semantics.
	CheckGlobalOrder bool

	// OffsetsMode selects whether var-field offsets count bytes or
	// elements.
	OffsetsMode buffer.OffsetsMode

	// OffsetsExtraElement expects a trailing sentinel offset equal to the
	// values size.
	OffsetsExtraElement bool

	// OffsetsBitsize is the integer width of each offset: 32 or 64.
	OffsetsBitsize uint32

	// Concurrency bounds the worker pool of the fragment writer. Zero
	// selects the hardware parallelism.
	Concurrency int
}

// DefaultConfig returns the writer defaults: both coordinate checks on,
// deduplication off, global-order verification on, byte offsets of 64 bits
// without a sentinel.
func DefaultConfig() Config {
	return Config{
		CheckCoordDups:   true,
		CheckCoordOOB:    true,
		CheckGlobalOrder: true,
		OffsetsMode:      buffer.OffsetsBytes,
		OffsetsBitsize:   64,
	}
}

// Set applies one configuration key. Unknown keys and malformed values fail
// with ErrConfiguration.
func (c *Config) Set(key, value string) error {
	switch key {
	case KeyCheckCoordDups, KeyCheckCoordOOB, KeyDedupCoords, KeyCheckGlobalOrder, KeyOffsetsExtraElement:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%w: key %q: %q is not a boolean", errs.ErrConfiguration, key, value)
		}
		switch key {
		case KeyCheckCoordDups:
			c.CheckCoordDups = b
		case KeyCheckCoordOOB:
			c.CheckCoordOOB = b
		case KeyDedupCoords:
			c.DedupCoords = b
		case KeyCheckGlobalOrder:
			c.CheckGlobalOrder = b
		case KeyOffsetsExtraElement:
			c.OffsetsExtraElement = b
		}
	case KeyOffsetsMode:
		mode, err := buffer.ParseOffsetsMode(value)
		if err != nil {
			return fmt.Errorf("%w: key %q: %v", errs.ErrConfiguration, key, err)
		}
		c.OffsetsMode = mode
	case KeyOffsetsBitsize:
		bits, err := strconv.ParseUint(value, 10, 32)
		if err != nil || (bits != 32 && bits != 64) {
			return fmt.Errorf("%w: key %q: %q is not 32 or 64", errs.ErrConfiguration, key, value)
		}
		c.OffsetsBitsize = uint32(bits)
	default:
		return fmt.Errorf("%w: unrecognized configuration key %q", errs.ErrConfiguration, key)
	}
	return nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.offsetsConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrConfiguration, err)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: negative concurrency", errs.ErrConfiguration)
	}
	return nil
}

// offsetsConfig folds the three offsets knobs into the buffer package form.
func (c *Config) offsetsConfig() buffer.OffsetsConfig {
	return buffer.OffsetsConfig{
		Mode:         c.OffsetsMode,
		ExtraElement: c.OffsetsExtraElement,
		BitSize:      c.OffsetsBitsize,
	}
}

// concurrency resolves the worker count, defaulting to the hardware
// parallelism.
func (c *Config) concurrency() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}
