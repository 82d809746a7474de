package write

import (
	"fmt"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/errs"
	"github.com/vincentschut/tiledb/fragment"
	"github.com/vincentschut/tiledb/tile"
)

// computeMBRs derives one minimum bounding rectangle per tile from the
// coordinate tile groups of all dimensions. The groups of every dimension
// tile identically, so index ti addresses the same cells in each.
func computeMBRs(schema *array.Schema, dimGroups map[string][]tile.Group) ([]fragment.MBR, error) {
	if len(dimGroups) == 0 {
		return nil, nil
	}
	tileNum := len(dimGroups[schema.Dimensions[0].Name])
	for d := range schema.Dimensions {
		if got := len(dimGroups[schema.Dimensions[d].Name]); got != tileNum {
			return nil, fmt.Errorf("%w: dimension %q produced %d tiles, %q produced %d",
				errs.ErrInternal, schema.Dimensions[d].Name, got, schema.Dimensions[0].Name, tileNum)
		}
	}

	mbrs := make([]fragment.MBR, 0, tileNum)
	for ti := 0; ti < tileNum; ti++ {
		mbr := make(fragment.MBR, schema.DimNum())
		for d := range schema.Dimensions {
			dim := &schema.Dimensions[d]
			grp := dimGroups[dim.Name][ti]
			var low, high []byte
			for c := 0; c < grp.Cells(); c++ {
				cell := grp.Cell(c)
				if low == nil || dim.Type.Compare(cell, low) < 0 {
					low = append([]byte(nil), cell...)
				}
				if high == nil || dim.Type.Compare(cell, high) > 0 {
					high = append([]byte(nil), cell...)
				}
			}
			mbr[d] = fragment.Range{Low: low, High: high}
		}
		mbrs = append(mbrs, mbr)
	}
	return mbrs, nil
}

// subarrayDomain encodes a dense subarray as per-dimension ranges for the
// fragment's non-empty domain.
func subarrayDomain(schema *array.Schema, sub *Subarray) []fragment.Range {
	ranges := make([]fragment.Range, schema.DimNum())
	for d := range schema.Dimensions {
		t := schema.Dimensions[d].Type
		ranges[d] = fragment.Range{
			Low:  t.AppendInt(nil, sub.Low[d]),
			High: t.AppendInt(nil, sub.High[d]),
		}
	}
	return ranges
}
