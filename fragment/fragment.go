package fragment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/vincentschut/tiledb/errs"
	"github.com/vincentschut/tiledb/filter"
	"github.com/vincentschut/tiledb/storage"
	"github.com/vincentschut/tiledb/tile"
)

// Fragment is a committed fragment opened for verification: its parsed
// metadata plus handles to unfilter the per-field tile streams. It is not a
// query reader; it reconstructs cell sequences exactly as written.
type Fragment struct {
	Meta *Metadata

	backend storage.Backend
	dir     string
}

// Committed reports whether the fragment directory at dir carries a commit
// marker. Directories without one are invisible and safe to remove.
func Committed(backend storage.Backend, dir string) (bool, error) {
	return backend.Exists(path.Join(dir, CommitMarkerName))
}

// Load opens a committed fragment under the array directory. It fails with
// ErrFragmentNotCommitted when the commit marker is absent.
func Load(backend storage.Backend, arrayDir, name string) (*Fragment, error) {
	if _, err := ParseName(name); err != nil {
		return nil, err
	}
	dir := path.Join(arrayDir, FragmentsDirName, name)
	committed, err := Committed(backend, dir)
	if err != nil {
		return nil, err
	}
	if !committed {
		return nil, fmt.Errorf("%w: %s", errs.ErrFragmentNotCommitted, name)
	}
	raw, err := backend.Read(path.Join(dir, MetadataFileName))
	if err != nil {
		return nil, err
	}
	meta, err := ParseMetadata(raw)
	if err != nil {
		return nil, err
	}
	return &Fragment{Meta: meta, backend: backend, dir: dir}, nil
}

// List returns the names of committed fragments under the array directory,
// sorted by name (and therefore by start timestamp). Uncommitted or foreign
// directories are skipped.
func List(backend storage.Backend, arrayDir string) ([]string, error) {
	entries, err := backend.List(path.Join(arrayDir, FragmentsDirName))
	if errors.Is(err, storage.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !strings.HasPrefix(e, "__") {
			continue
		}
		if _, err := ParseName(e); err != nil {
			continue
		}
		committed, err := Committed(backend, path.Join(arrayDir, FragmentsDirName, e))
		if err != nil {
			return nil, err
		}
		if committed {
			names = append(names, e)
		}
	}
	sort.Strings(names)
	return names, nil
}

// streamTiles unfilters every tile of one stream of a field.
func (f *Fragment) streamTiles(fieldFile string, recs []TileRecord, t filter.Type) ([][]byte, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	raw, err := f.backend.Read(path.Join(f.dir, fieldFile))
	if err != nil {
		return nil, err
	}
	codec, err := filter.GetCodec(t)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidMetadata, err)
	}
	tiles := make([][]byte, len(recs))
	for i, rec := range recs {
		if rec.Offset+rec.FilteredSize > uint64(len(raw)) {
			return nil, fmt.Errorf("%w: tile %d of %s extends past file end", errs.ErrInvalidMetadata, i, fieldFile)
		}
		out, err := codec.Decompress(raw[rec.Offset : rec.Offset+rec.FilteredSize])
		if err != nil {
			return nil, fmt.Errorf("%w: unfiltering tile %d of %s: %v", errs.ErrInvalidMetadata, i, fieldFile, err)
		}
		if out == nil {
			out = []byte{}
		}
		if uint64(len(out)) != rec.OriginalSize {
			return nil, fmt.Errorf("%w: tile %d of %s unfiltered to %d bytes, want %d",
				errs.ErrInvalidMetadata, i, fieldFile, len(out), rec.OriginalSize)
		}
		tiles[i] = out
	}
	return tiles, nil
}

// FieldCells reconstructs the full cell sequence of one field across all
// tiles, along with the validity bytes of nullable fields (nil otherwise).
func (f *Fragment) FieldCells(name string) (cells [][]byte, validity []byte, err error) {
	fm, ok := f.Meta.Field(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: field %q not in fragment", errs.ErrInvalidMetadata, name)
	}

	dataFile := fm.Name + FileSuffix
	if fm.Var {
		dataFile = fm.Name + VarFileSuffix
	}
	dataTiles, err := f.streamTiles(dataFile, fm.DataTiles, fm.DataFilter)
	if err != nil {
		return nil, nil, err
	}

	var offsetsTiles [][]byte
	if fm.Var {
		offsetsTiles, err = f.streamTiles(fm.Name+FileSuffix, fm.OffsetsTiles, fm.OffsetsFilter)
		if err != nil {
			return nil, nil, err
		}
	}
	var validityTiles [][]byte
	if fm.Nullable {
		validityTiles, err = f.streamTiles(fm.Name+ValidityFileSuffix, fm.ValidityTiles, fm.ValidityFilter)
		if err != nil {
			return nil, nil, err
		}
	}

	for ti, cellNum64 := range fm.TileCellCounts {
		cellNum := int(cellNum64) //nolint:gosec
		data := dataTiles[ti]
		switch {
		case fm.Var:
			offs := offsetsTiles[ti]
			if len(offs) != cellNum*tile.OffsetWidth {
				return nil, nil, fmt.Errorf("%w: offsets tile %d of %q holds %d bytes for %d cells",
					errs.ErrInvalidMetadata, ti, name, len(offs), cellNum)
			}
			for c := 0; c < cellNum; c++ {
				start := binary.LittleEndian.Uint64(offs[c*tile.OffsetWidth:])
				end := uint64(len(data))
				if c+1 < cellNum {
					end = binary.LittleEndian.Uint64(offs[(c+1)*tile.OffsetWidth:])
				}
				if start > end || end > uint64(len(data)) {
					return nil, nil, fmt.Errorf("%w: offsets tile %d of %q out of range",
						errs.ErrInvalidMetadata, ti, name)
				}
				cells = append(cells, data[start:end])
			}
		case cellNum > 0:
			size := len(data) / cellNum
			for c := 0; c < cellNum; c++ {
				cells = append(cells, data[c*size:(c+1)*size])
			}
		}
		if fm.Nullable {
			validity = append(validity, validityTiles[ti][:cellNum]...)
		}
	}
	return cells, validity, nil
}
