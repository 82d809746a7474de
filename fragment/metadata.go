package fragment

import (
	"fmt"
	"math"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/endian"
	"github.com/vincentschut/tiledb/errs"
	"github.com/vincentschut/tiledb/filter"
	"github.com/vincentschut/tiledb/internal/hash"
	"github.com/vincentschut/tiledb/internal/pool"
)

// metadataMagic identifies a fragment metadata file ("TDBF").
const metadataMagic uint32 = 0x54444246

// TileRecord locates one filtered tile within its per-field file.
type TileRecord struct {
	Offset       uint64
	FilteredSize uint64
	OriginalSize uint64
}

// TileStats carries the per-tile min/max/sum statistics of numeric
// single-value attributes. Min and Max are raw cell bytes; Sum accumulates
// valid cells as float64.
type TileStats struct {
	Min []byte
	Max []byte
	Sum float64
}

// Range is an inclusive [Low, High] pair of encoded coordinate values.
type Range struct {
	Low  []byte
	High []byte
}

// MBR is the minimum bounding rectangle of one tile: one Range per
// dimension in schema order.
type MBR []Range

// FieldMeta records the tile layout of one field within the fragment.
type FieldMeta struct {
	Name     string
	Var      bool
	Nullable bool

	DataFilter     filter.Type
	OffsetsFilter  filter.Type
	ValidityFilter filter.Type

	// Per-tile records, indexed by tile id, one slice per present stream.
	DataTiles     []TileRecord
	OffsetsTiles  []TileRecord
	ValidityTiles []TileRecord

	// TileCellCounts is the number of cells per tile. The trailing tile of
	// a sparse fragment may hold fewer cells than its siblings.
	TileCellCounts []uint64

	// Stats is non-nil for numeric single-value attributes, one entry per
	// tile.
	Stats []TileStats
}

// TileNum returns the number of tiles recorded for the field.
func (fm *FieldMeta) TileNum() int {
	return len(fm.DataTiles)
}

// Metadata is the fragment metadata file: tile layout per field, bounding
// regions, the timestamp range and format version. It is populated during
// the write and serialized at commit.
type Metadata struct {
	Version            uint32
	Dense              bool
	ConsolidatedFooter bool
	TimestampStart     uint64
	TimestampEnd       uint64

	// CellsWritten is the total cell count of the fragment, identical
	// across fields.
	CellsWritten uint64

	// NonEmptyDomain is the tight bounding box of the written cells, one
	// Range per dimension.
	NonEmptyDomain []Range

	// MBRs hold the per-tile coordinate extents of sparse fragments.
	MBRs []MBR

	Fields []FieldMeta
}

// NewMetadata initializes metadata for a fragment of the given schema.
func NewMetadata(schema *array.Schema, pipeline *filter.Pipeline, tStart, tEnd uint64) *Metadata {
	m := &Metadata{
		Version:        FormatVersion,
		Dense:          schema.Dense,
		TimestampStart: tStart,
		TimestampEnd:   tEnd,
	}
	for _, f := range schema.Fields() {
		fm := FieldMeta{
			Name:       f.Name,
			Var:        f.Var(),
			Nullable:   f.Nullable,
			DataFilter: pipeline.For(f.Name, filter.StreamData),
		}
		if fm.Var {
			fm.OffsetsFilter = pipeline.For(f.Name, filter.StreamOffsets)
		}
		if fm.Nullable {
			fm.ValidityFilter = pipeline.For(f.Name, filter.StreamValidity)
		}
		m.Fields = append(m.Fields, fm)
	}
	return m
}

// Field returns the metadata of the named field.
func (m *Metadata) Field(name string) (*FieldMeta, bool) {
	for i := range m.Fields {
		if m.Fields[i].Name == name {
			return &m.Fields[i], true
		}
	}
	return nil, false
}

// ExpandNonEmptyDomain grows the non-empty domain to cover the given range
// per dimension.
func (m *Metadata) ExpandNonEmptyDomain(dims []array.Dimension, ranges []Range) {
	if m.NonEmptyDomain == nil {
		m.NonEmptyDomain = make([]Range, len(ranges))
		for d := range ranges {
			m.NonEmptyDomain[d] = Range{
				Low:  append([]byte(nil), ranges[d].Low...),
				High: append([]byte(nil), ranges[d].High...),
			}
		}
		return
	}
	for d := range ranges {
		t := dims[d].Type
		if t.Compare(ranges[d].Low, m.NonEmptyDomain[d].Low) < 0 {
			m.NonEmptyDomain[d].Low = append([]byte(nil), ranges[d].Low...)
		}
		if t.Compare(ranges[d].High, m.NonEmptyDomain[d].High) > 0 {
			m.NonEmptyDomain[d].High = append([]byte(nil), ranges[d].High...)
		}
	}
}

// Bytes serializes the metadata: a fixed header, the domain and MBR
// sections, one section per field, and an xxHash64 checksum footer.
func (m *Metadata) Bytes() []byte {
	engine := endian.GetLittleEndianEngine()
	bb := pool.GetMetaBuffer()
	defer pool.PutMetaBuffer(bb)
	b := bb.Bytes()

	b = engine.AppendUint32(b, metadataMagic)
	b = engine.AppendUint32(b, m.Version)
	b = append(b, boolByte(m.Dense), boolByte(m.ConsolidatedFooter), 0, 0)
	b = engine.AppendUint64(b, m.TimestampStart)
	b = engine.AppendUint64(b, m.TimestampEnd)
	b = engine.AppendUint64(b, m.CellsWritten)

	b = engine.AppendUint32(b, uint32(len(m.NonEmptyDomain))) //nolint:gosec
	for _, r := range m.NonEmptyDomain {
		b = appendBlob(engine, b, r.Low)
		b = appendBlob(engine, b, r.High)
	}

	b = engine.AppendUint32(b, uint32(len(m.MBRs))) //nolint:gosec
	for _, mbr := range m.MBRs {
		b = engine.AppendUint32(b, uint32(len(mbr))) //nolint:gosec
		for _, r := range mbr {
			b = appendBlob(engine, b, r.Low)
			b = appendBlob(engine, b, r.High)
		}
	}

	b = engine.AppendUint32(b, uint32(len(m.Fields))) //nolint:gosec
	for i := range m.Fields {
		b = m.Fields[i].appendTo(engine, b)
	}

	b = engine.AppendUint64(b, hash.Checksum(b))
	bb.B = b

	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (fm *FieldMeta) appendTo(engine endian.EndianEngine, b []byte) []byte {
	b = appendString(engine, b, fm.Name)
	var flags byte
	if fm.Var {
		flags |= 0x1
	}
	if fm.Nullable {
		flags |= 0x2
	}
	b = append(b, flags, byte(fm.DataFilter), byte(fm.OffsetsFilter), byte(fm.ValidityFilter))

	b = appendTileRecords(engine, b, fm.DataTiles)
	b = appendTileRecords(engine, b, fm.OffsetsTiles)
	b = appendTileRecords(engine, b, fm.ValidityTiles)

	b = engine.AppendUint32(b, uint32(len(fm.TileCellCounts))) //nolint:gosec
	for _, c := range fm.TileCellCounts {
		b = engine.AppendUint64(b, c)
	}

	b = engine.AppendUint32(b, uint32(len(fm.Stats))) //nolint:gosec
	for _, s := range fm.Stats {
		b = appendBlob(engine, b, s.Min)
		b = appendBlob(engine, b, s.Max)
		b = engine.AppendUint64(b, math.Float64bits(s.Sum))
	}
	return b
}

func appendTileRecords(engine endian.EndianEngine, b []byte, recs []TileRecord) []byte {
	b = engine.AppendUint32(b, uint32(len(recs))) //nolint:gosec
	for _, r := range recs {
		b = engine.AppendUint64(b, r.Offset)
		b = engine.AppendUint64(b, r.FilteredSize)
		b = engine.AppendUint64(b, r.OriginalSize)
	}
	return b
}

func appendBlob(engine endian.EndianEngine, b, blob []byte) []byte {
	b = engine.AppendUint32(b, uint32(len(blob))) //nolint:gosec
	return append(b, blob...)
}

func appendString(engine endian.EndianEngine, b []byte, s string) []byte {
	b = engine.AppendUint16(b, uint16(len(s))) //nolint:gosec
	return append(b, s...)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

// metaReader walks a serialized metadata buffer with bounds checks.
type metaReader struct {
	engine endian.EndianEngine
	b      []byte
	pos    int
	err    error
}

func (r *metaReader) fail() {
	if r.err == nil {
		r.err = fmt.Errorf("%w: truncated at byte %d", errs.ErrInvalidMetadata, r.pos)
	}
}

func (r *metaReader) bytes(n int) []byte {
	if r.err != nil || n < 0 || r.pos+n > len(r.b) {
		r.fail()
		return nil
	}
	out := r.b[r.pos : r.pos+n]
	r.pos += n
	return out
}

func (r *metaReader) u64() uint64 {
	b := r.bytes(8)
	if b == nil {
		return 0
	}
	return r.engine.Uint64(b)
}

func (r *metaReader) u32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return r.engine.Uint32(b)
}

func (r *metaReader) u16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return r.engine.Uint16(b)
}

func (r *metaReader) u8() byte {
	b := r.bytes(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *metaReader) blob() []byte {
	n := int(r.u32())
	b := r.bytes(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

func (r *metaReader) str() string {
	n := int(r.u16())
	return string(r.bytes(n))
}

func (r *metaReader) tileRecords() []TileRecord {
	n := int(r.u32())
	if r.err != nil || n == 0 {
		return nil
	}
	recs := make([]TileRecord, 0, n)
	for i := 0; i < n; i++ {
		recs = append(recs, TileRecord{
			Offset:       r.u64(),
			FilteredSize: r.u64(),
			OriginalSize: r.u64(),
		})
	}
	return recs
}

// ParseMetadata deserializes and checksums a fragment metadata file.
func ParseMetadata(data []byte) (*Metadata, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: file too small", errs.ErrInvalidMetadata)
	}
	body, footer := data[:len(data)-8], data[len(data)-8:]
	engine := endian.GetLittleEndianEngine()
	if engine.Uint64(footer) != hash.Checksum(body) {
		return nil, fmt.Errorf("%w: checksum mismatch", errs.ErrInvalidMetadata)
	}

	r := &metaReader{engine: engine, b: body}
	if r.u32() != metadataMagic {
		return nil, fmt.Errorf("%w: bad magic", errs.ErrInvalidMetadata)
	}

	m := &Metadata{}
	m.Version = r.u32()
	if m.Version > FormatVersion {
		return nil, fmt.Errorf("%w: format version %d is newer than supported %d",
			errs.ErrInvalidMetadata, m.Version, FormatVersion)
	}
	m.Dense = r.u8() != 0
	m.ConsolidatedFooter = r.u8() != 0
	r.bytes(2) // reserved
	m.TimestampStart = r.u64()
	m.TimestampEnd = r.u64()
	m.CellsWritten = r.u64()

	domNum := int(r.u32())
	for i := 0; i < domNum && r.err == nil; i++ {
		m.NonEmptyDomain = append(m.NonEmptyDomain, Range{Low: r.blob(), High: r.blob()})
	}

	mbrNum := int(r.u32())
	for i := 0; i < mbrNum && r.err == nil; i++ {
		dims := int(r.u32())
		mbr := make(MBR, 0, dims)
		for d := 0; d < dims && r.err == nil; d++ {
			mbr = append(mbr, Range{Low: r.blob(), High: r.blob()})
		}
		m.MBRs = append(m.MBRs, mbr)
	}

	fieldNum := int(r.u32())
	for i := 0; i < fieldNum && r.err == nil; i++ {
		var fm FieldMeta
		fm.Name = r.str()
		flags := r.u8()
		fm.Var = flags&0x1 != 0
		fm.Nullable = flags&0x2 != 0
		fm.DataFilter = filter.Type(r.u8())
		fm.OffsetsFilter = filter.Type(r.u8())
		fm.ValidityFilter = filter.Type(r.u8())
		fm.DataTiles = r.tileRecords()
		fm.OffsetsTiles = r.tileRecords()
		fm.ValidityTiles = r.tileRecords()
		cells := int(r.u32())
		for c := 0; c < cells && r.err == nil; c++ {
			fm.TileCellCounts = append(fm.TileCellCounts, r.u64())
		}
		statNum := int(r.u32())
		for s := 0; s < statNum && r.err == nil; s++ {
			fm.Stats = append(fm.Stats, TileStats{
				Min: r.blob(),
				Max: r.blob(),
				Sum: math.Float64frombits(r.u64()),
			})
		}
		m.Fields = append(m.Fields, fm)
	}

	if r.err != nil {
		return nil, r.err
	}
	if r.pos != len(body) {
		return nil, fmt.Errorf("%w: %d trailing bytes", errs.ErrInvalidMetadata, len(body)-r.pos)
	}
	return m, nil
}
