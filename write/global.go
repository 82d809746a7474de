package write

import (
	"fmt"

	"github.com/vincentschut/tiledb/errs"
	"github.com/vincentschut/tiledb/fragment"
	"github.com/vincentschut/tiledb/tile"
)

// globalWriteState carries a global-order query across submissions: the
// per-field builders holding the partial last tiles, the per-field cell
// counters, and the shared fragment writer whose metadata accumulates
// until Finalize.
type globalWriteState struct {
	frag     *fragment.Writer
	builders map[string]*tile.Builder

	cellsWritten map[string]uint64

	// lastTuple is the final coordinate tuple of the previous submission,
	// used to verify global order across submission boundaries. Nil for
	// dense arrays and before the first sparse submission.
	lastTuple [][]byte

	tStart uint64
	tEnd   uint64
}

// checkCellCounts verifies every field has accumulated the same number of
// cells. It runs after each submission and again before commit.
func (s *globalWriteState) checkCellCounts() error {
	var ref string
	var refCount uint64
	first := true
	for name, count := range s.cellsWritten {
		if first {
			ref, refCount, first = name, count, false
			continue
		}
		if count != refCount {
			return fmt.Errorf("%w: field %q has %d cells written, field %q has %d",
				errs.ErrFieldCellCountMismatch, name, count, ref, refCount)
		}
	}
	return nil
}

// cells returns the accumulated cell count, identical across fields once
// checkCellCounts has passed.
func (s *globalWriteState) cells() uint64 {
	for _, count := range s.cellsWritten {
		return count
	}
	return 0
}

// allLastTilesEmpty reports whether no partial tile is pending.
func (s *globalWriteState) allLastTilesEmpty() bool {
	for _, b := range s.builders {
		if b.CurrentCells() > 0 {
			return false
		}
	}
	return true
}

// release drops all pending tile buffers.
func (s *globalWriteState) release() {
	for _, b := range s.builders {
		for _, g := range b.Finish(false) {
			g.Release()
		}
	}
}
