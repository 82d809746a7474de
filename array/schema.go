package array

import (
	"fmt"

	"github.com/vincentschut/tiledb/errs"
)

// CoordsName is the reserved buffer name for zipped coordinates, where the
// values of all dimensions are interleaved per cell.
const CoordsName = "__coords"

// Schema describes a typed multi-dimensional array: its dimensions with
// domains, its attributes, and the tile/cell orders that define the global
// cell order.
type Schema struct {
	Dense      bool
	Dimensions []Dimension
	Attributes []Field

	// Capacity is the number of cells per data tile of a sparse fragment.
	Capacity int64

	CellOrder CellOrder
	TileOrder TileOrder

	// HilbertBits is the number of bits per dimension used to quantize
	// coordinates for Hilbert ordering. Zero selects 64/len(Dimensions).
	HilbertBits int

	// AllowDups permits duplicate coordinates in sparse fragments.
	AllowDups bool

	// KeyValue marks schemas backing key-value stores. Such arrays accept
	// writes only in global order; the writer substitutes the layout when
	// the schema is set.
	KeyValue bool
}

// Validate checks the schema for internal consistency.
func (s *Schema) Validate() error {
	if len(s.Dimensions) == 0 {
		return fmt.Errorf("%w: schema has no dimensions", errs.ErrConfiguration)
	}
	seen := make(map[string]struct{}, len(s.Dimensions)+len(s.Attributes))
	for i := range s.Dimensions {
		d := &s.Dimensions[i]
		if err := d.validate(s.Dense); err != nil {
			return err
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: duplicate field name %q", errs.ErrConfiguration, d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	for i := range s.Attributes {
		a := &s.Attributes[i]
		if a.Name == "" || a.Name == CoordsName {
			return fmt.Errorf("%w: invalid attribute name %q", errs.ErrConfiguration, a.Name)
		}
		if !a.Type.Valid() {
			return fmt.Errorf("%w: attribute %q: invalid datatype", errs.ErrConfiguration, a.Name)
		}
		if a.CellValNum == 0 {
			return fmt.Errorf("%w: attribute %q: zero cell-value count", errs.ErrConfiguration, a.Name)
		}
		if _, dup := seen[a.Name]; dup {
			return fmt.Errorf("%w: duplicate field name %q", errs.ErrConfiguration, a.Name)
		}
		seen[a.Name] = struct{}{}
	}
	if !s.Dense && s.Capacity <= 0 {
		return fmt.Errorf("%w: sparse schema needs a positive tile capacity", errs.ErrConfiguration)
	}
	if s.CellOrder == 0 || s.CellOrder > CellHilbert {
		return fmt.Errorf("%w: invalid cell order", errs.ErrConfiguration)
	}
	if s.TileOrder == 0 || s.TileOrder > TileColMajor {
		return fmt.Errorf("%w: invalid tile order", errs.ErrConfiguration)
	}
	if s.CellOrder == CellHilbert {
		if s.Dense {
			return fmt.Errorf("%w: hilbert cell order applies only to sparse arrays", errs.ErrConfiguration)
		}
		if bits := s.HilbertBitsPerDim(); bits*len(s.Dimensions) > 64 {
			return fmt.Errorf("%w: hilbert bits %d exceed 64 total bits over %d dimensions",
				errs.ErrConfiguration, bits, len(s.Dimensions))
		}
	}
	return nil
}

// DimNum returns the number of dimensions.
func (s *Schema) DimNum() int {
	return len(s.Dimensions)
}

// Field looks up a dimension or attribute by name.
func (s *Schema) Field(name string) (Field, bool) {
	for i := range s.Dimensions {
		if s.Dimensions[i].Name == name {
			return s.Dimensions[i].Field(), true
		}
	}
	for i := range s.Attributes {
		if s.Attributes[i].Name == name {
			return s.Attributes[i], true
		}
	}
	return Field{}, false
}

// Dimension looks up a dimension by name.
func (s *Schema) Dimension(name string) (*Dimension, bool) {
	for i := range s.Dimensions {
		if s.Dimensions[i].Name == name {
			return &s.Dimensions[i], true
		}
	}
	return nil, false
}

// Fields returns every field of the schema, dimensions first, in schema
// order. Dense schemas contribute attributes only, since dense fragments
// materialize no coordinates.
func (s *Schema) Fields() []Field {
	fields := make([]Field, 0, len(s.Dimensions)+len(s.Attributes))
	if !s.Dense {
		for i := range s.Dimensions {
			fields = append(fields, s.Dimensions[i].Field())
		}
	}
	fields = append(fields, s.Attributes...)
	return fields
}

// CoordsCellSize returns the byte size of one zipped-coordinate cell.
// Zipped coordinates require fixed-size dimensions.
func (s *Schema) CoordsCellSize() (int, error) {
	size := 0
	for i := range s.Dimensions {
		d := &s.Dimensions[i]
		if d.Type.IsBytes() {
			return 0, fmt.Errorf("%w: zipped coordinates require fixed-size dimensions, %q is var-sized",
				errs.ErrConfiguration, d.Name)
		}
		size += d.Type.Size()
	}
	return size, nil
}

// HilbertBitsPerDim returns the quantization bit count per dimension.
func (s *Schema) HilbertBitsPerDim() int {
	if s.HilbertBits > 0 {
		return s.HilbertBits
	}
	return 64 / len(s.Dimensions)
}

// ForcesGlobalOrder reports whether the schema admits only global-order
// writes. Key-value schemas have a fixed layout for both reads and writes.
func (s *Schema) ForcesGlobalOrder() bool {
	return s.KeyValue
}
