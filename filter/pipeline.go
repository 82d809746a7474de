package filter

import "fmt"

// Stream distinguishes the byte streams a field can produce. Var fields add
// an offsets stream and nullable fields a validity stream next to the data
// stream; each stream carries its own filter.
type Stream uint8

const (
	StreamData     Stream = 0x1
	StreamOffsets  Stream = 0x2
	StreamValidity Stream = 0x3
)

func (s Stream) String() string {
	switch s {
	case StreamData:
		return "data"
	case StreamOffsets:
		return "offsets"
	case StreamValidity:
		return "validity"
	default:
		return "unknown"
	}
}

// Pipeline maps each field and stream to a filter type. Unconfigured fields
// inherit the pipeline default for their data stream; offsets and validity
// streams default to pass-through so that readers can seek into them without
// decompressing attribute payloads.
type Pipeline struct {
	defaultData Type
	fields      map[string]Type
	offsets     Type
	validity    Type
}

// NewPipeline creates a pipeline with pass-through defaults for every
// stream.
func NewPipeline() *Pipeline {
	return &Pipeline{
		defaultData: TypeNone,
		fields:      make(map[string]Type),
		offsets:     TypeNone,
		validity:    TypeNone,
	}
}

// SetDefault sets the filter applied to data streams of fields without a
// per-field override.
func (p *Pipeline) SetDefault(t Type) error {
	if !t.Valid() {
		return fmt.Errorf("invalid default filter: %s", t)
	}
	p.defaultData = t

	return nil
}

// SetField overrides the data-stream filter of one field.
func (p *Pipeline) SetField(name string, t Type) error {
	if !t.Valid() {
		return fmt.Errorf("invalid filter for field %q: %s", name, t)
	}
	p.fields[name] = t

	return nil
}

// SetOffsets sets the filter applied to offsets streams of all var fields.
func (p *Pipeline) SetOffsets(t Type) error {
	if !t.Valid() {
		return fmt.Errorf("invalid offsets filter: %s", t)
	}
	p.offsets = t

	return nil
}

// SetValidity sets the filter applied to validity streams of all nullable
// fields.
func (p *Pipeline) SetValidity(t Type) error {
	if !t.Valid() {
		return fmt.Errorf("invalid validity filter: %s", t)
	}
	p.validity = t

	return nil
}

// For returns the filter type selected for the given field and stream.
func (p *Pipeline) For(field string, stream Stream) Type {
	switch stream {
	case StreamOffsets:
		return p.offsets
	case StreamValidity:
		return p.validity
	default:
		if t, ok := p.fields[field]; ok {
			return t
		}
		return p.defaultData
	}
}

// CodecFor resolves the Codec selected for the given field and stream.
func (p *Pipeline) CodecFor(field string, stream Stream) (Type, Codec, error) {
	t := p.For(field, stream)
	codec, err := GetCodec(t)
	if err != nil {
		return 0, nil, err
	}

	return t, codec, nil
}
