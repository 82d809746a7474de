package array

import (
	"fmt"

	"github.com/vincentschut/tiledb/errs"
)

// Domain is the inclusive [Low, High] bound of one dimension, encoded the
// same way as cell values of the dimension's datatype. For byte-oriented
// dimensions the bounds are byte strings compared lexicographically.
type Domain struct {
	Low  []byte
	High []byte
}

// Dimension is a coordinate field plus its domain and, for dense arrays,
// the tile extent in cells along the dimension.
type Dimension struct {
	Name string
	Type Datatype
	Dom  Domain

	// TileExtent is the space-tile extent in cells. Meaningful only for
	// integer dimensions of dense arrays; zero otherwise.
	TileExtent int64
}

// Field returns the dimension as a coordinate Field.
func (d *Dimension) Field() Field {
	cvn := uint32(1)
	if d.Type.IsBytes() {
		cvn = VarNum
	}
	return Field{Name: d.Name, Type: d.Type, CellValNum: cvn, IsDim: true}
}

// Contains reports whether the encoded coordinate lies within the domain.
func (d *Dimension) Contains(coord []byte) bool {
	return d.Type.Compare(coord, d.Dom.Low) >= 0 && d.Type.Compare(coord, d.Dom.High) <= 0
}

// DomainInt returns the domain bounds of an integer dimension as int64.
func (d *Dimension) DomainInt() (low, high int64) {
	return d.Type.DecodeInt(d.Dom.Low), d.Type.DecodeInt(d.Dom.High)
}

func (d *Dimension) validate(dense bool) error {
	if d.Name == "" {
		return fmt.Errorf("%w: dimension with empty name", errs.ErrConfiguration)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: dimension %q: invalid datatype", errs.ErrConfiguration, d.Name)
	}
	if d.Type.IsBytes() {
		if dense {
			return fmt.Errorf("%w: dimension %q: dense arrays require integer dimensions",
				errs.ErrConfiguration, d.Name)
		}
		// Var domains may be empty byte strings but Low must not exceed High.
		if d.Type.Compare(d.Dom.Low, d.Dom.High) > 0 {
			return fmt.Errorf("%w: dimension %q: domain low exceeds high", errs.ErrConfiguration, d.Name)
		}
		return nil
	}
	if len(d.Dom.Low) != d.Type.Size() || len(d.Dom.High) != d.Type.Size() {
		return fmt.Errorf("%w: dimension %q: domain bounds must be %d bytes",
			errs.ErrConfiguration, d.Name, d.Type.Size())
	}
	if d.Type.Compare(d.Dom.Low, d.Dom.High) > 0 {
		return fmt.Errorf("%w: dimension %q: domain low exceeds high", errs.ErrConfiguration, d.Name)
	}
	if d.Type == Uint64 && d.Type.DecodeUnsigned(d.Dom.High)>>63 != 0 {
		return fmt.Errorf("%w: dimension %q: uint64 domains above 2^63-1 are not supported",
			errs.ErrConfiguration, d.Name)
	}
	if dense {
		if !d.Type.IsInteger() {
			return fmt.Errorf("%w: dimension %q: dense arrays require integer dimensions",
				errs.ErrConfiguration, d.Name)
		}
		if d.TileExtent <= 0 {
			return fmt.Errorf("%w: dimension %q: dense dimensions need a positive tile extent",
				errs.ErrConfiguration, d.Name)
		}
	}
	return nil
}
