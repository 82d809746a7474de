package write

import (
	"fmt"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/errs"
)

// Subarray is the contiguous multi-dimensional region a dense write covers,
// with inclusive per-dimension bounds. Dense arrays have integer
// dimensions, so the bounds are plain int64.
type Subarray struct {
	Low  []int64
	High []int64
}

// cellCount returns the number of cells the subarray covers.
func (s *Subarray) cellCount() int64 {
	n := int64(1)
	for d := range s.Low {
		n *= s.High[d] - s.Low[d] + 1
	}
	return n
}

// validate checks the subarray against the schema's dimension domains.
func (s *Subarray) validate(schema *array.Schema) error {
	if len(s.Low) != schema.DimNum() || len(s.High) != schema.DimNum() {
		return fmt.Errorf("%w: subarray has %d ranges for %d dimensions",
			errs.ErrConfiguration, len(s.Low), schema.DimNum())
	}
	for d := range s.Low {
		dim := &schema.Dimensions[d]
		low, high := dim.DomainInt()
		if s.Low[d] > s.High[d] {
			return fmt.Errorf("%w: subarray range [%d, %d] on dimension %q is inverted",
				errs.ErrConfiguration, s.Low[d], s.High[d], dim.Name)
		}
		if s.Low[d] < low || s.High[d] > high {
			return fmt.Errorf("%w: subarray range [%d, %d] exceeds domain [%d, %d] of dimension %q",
				errs.ErrConfiguration, s.Low[d], s.High[d], low, high, dim.Name)
		}
	}
	return nil
}

// tileAligned reports whether the subarray starts and ends on space-tile
// boundaries, which dense global-order writes require.
func (s *Subarray) tileAligned(schema *array.Schema) bool {
	for d := range s.Low {
		dim := &schema.Dimensions[d]
		domLow, _ := dim.DomainInt()
		if (s.Low[d]-domLow)%dim.TileExtent != 0 {
			return false
		}
		if (s.High[d]-domLow+1)%dim.TileExtent != 0 {
			return false
		}
	}
	return true
}

// fullDomain returns the subarray covering the entire domain.
func fullDomain(schema *array.Schema) *Subarray {
	s := &Subarray{
		Low:  make([]int64, schema.DimNum()),
		High: make([]int64, schema.DimNum()),
	}
	for d := range schema.Dimensions {
		s.Low[d], s.High[d] = schema.Dimensions[d].DomainInt()
	}
	return s
}
