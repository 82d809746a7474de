package fragment

import (
	"fmt"
	"path"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/errs"
	"github.com/vincentschut/tiledb/filter"
	"github.com/vincentschut/tiledb/storage"
	"github.com/vincentschut/tiledb/tile"
)

// Writer creates one fragment: it filters tiles through the per-field
// pipeline, appends them to the per-field files, populates the fragment
// metadata and finally commits by writing the marker file.
//
// Tiles of one field are filtered in parallel but appended and recorded in
// tile-index order, so the produced fragment is identical for any worker
// count. The external caller (the write orchestrator) serializes all method
// calls.
type Writer struct {
	backend     storage.Backend
	logger      *zap.Logger
	pipeline    *filter.Pipeline
	schema      *array.Schema
	dir         string
	name        string
	meta        *Metadata
	concurrency int

	cursors map[string]*streamCursors
}

// streamCursors tracks the append position of each per-field file.
type streamCursors struct {
	data     uint64
	offsets  uint64
	validity uint64
}

// NewWriter prepares a fragment writer. Create must be called before any
// tiles are written.
func NewWriter(backend storage.Backend, arrayDir, name string, schema *array.Schema,
	pipeline *filter.Pipeline, tStart, tEnd uint64, concurrency int, logger *zap.Logger,
) *Writer {
	if concurrency < 1 {
		concurrency = 1
	}
	w := &Writer{
		backend:     backend,
		logger:      logger,
		pipeline:    pipeline,
		schema:      schema,
		dir:         path.Join(arrayDir, FragmentsDirName, name),
		name:        name,
		meta:        NewMetadata(schema, pipeline, tStart, tEnd),
		concurrency: concurrency,
		cursors:     make(map[string]*streamCursors),
	}
	for _, f := range schema.Fields() {
		w.cursors[f.Name] = &streamCursors{}
	}
	return w
}

// Name returns the fragment name.
func (w *Writer) Name() string {
	return w.name
}

// Dir returns the fragment directory path.
func (w *Writer) Dir() string {
	return w.dir
}

// Meta returns the metadata under construction.
func (w *Writer) Meta() *Metadata {
	return w.meta
}

// Create makes the fragment directory.
func (w *Writer) Create() error {
	if err := w.backend.MkdirAll(w.dir); err != nil {
		return err
	}
	w.logger.Debug("created fragment directory", zap.String("fragment", w.name))
	return nil
}

// filePath returns the on-disk file of one stream of a field. Var fields
// keep their offset runs in <field>.tdb and values in <field>_var.tdb.
func (w *Writer) filePath(field array.Field, stream filter.Stream) string {
	switch stream {
	case filter.StreamOffsets:
		return path.Join(w.dir, field.Name+FileSuffix)
	case filter.StreamValidity:
		return path.Join(w.dir, field.Name+ValidityFileSuffix)
	default:
		if field.Var() {
			return path.Join(w.dir, field.Name+VarFileSuffix)
		}
		return path.Join(w.dir, field.Name+FileSuffix)
	}
}

// filteredGroup is the pipeline output of one tile group.
type filteredGroup struct {
	data     []byte
	offsets  []byte
	validity []byte

	dataOrig     uint64
	offsetsOrig  uint64
	validityOrig uint64
}

// WriteTiles filters and persists the given tile groups of one field,
// recording their offsets, sizes and statistics in the fragment metadata.
// The groups' buffers are released on success.
func (w *Writer) WriteTiles(field array.Field, groups []tile.Group) error {
	if len(groups) == 0 {
		return nil
	}
	fm, ok := w.meta.Field(field.Name)
	if !ok {
		return fmt.Errorf("%w: field %q not in fragment metadata", errs.ErrInternal, field.Name)
	}

	_, dataCodec, err := w.pipeline.CodecFor(field.Name, filter.StreamData)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrConfiguration, err)
	}
	_, offCodec, err := w.pipeline.CodecFor(field.Name, filter.StreamOffsets)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrConfiguration, err)
	}
	_, valCodec, err := w.pipeline.CodecFor(field.Name, filter.StreamValidity)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrConfiguration, err)
	}

	// Attribute statistics come from the unfiltered cells, before the
	// pipeline replaces the byte image.
	statable := fm.Stats != nil || (field.Type.Numeric() && !field.Var() && field.CellValNum == 1 && !field.IsDim)

	filtered := make([]filteredGroup, len(groups))
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for i := range groups {
		i := i
		g.Go(func() error {
			grp := groups[i]
			fg := &filtered[i]
			fg.dataOrig = uint64(grp.Data.Size()) //nolint:gosec
			var err error
			if fg.data, err = dataCodec.Compress(grp.Data.Bytes()); err != nil {
				return fmt.Errorf("filtering data tile of %q: %w", field.Name, err)
			}
			if grp.Offsets != nil {
				fg.offsetsOrig = uint64(grp.Offsets.Size()) //nolint:gosec
				if fg.offsets, err = offCodec.Compress(grp.Offsets.Bytes()); err != nil {
					return fmt.Errorf("filtering offsets tile of %q: %w", field.Name, err)
				}
			}
			if grp.Validity != nil {
				fg.validityOrig = uint64(grp.Validity.Size()) //nolint:gosec
				if fg.validity, err = valCodec.Compress(grp.Validity.Bytes()); err != nil {
					return fmt.Errorf("filtering validity tile of %q: %w", field.Name, err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Append in tile-index order so the fragment is deterministic for any
	// worker count.
	cur := w.cursors[field.Name]
	for i, grp := range groups {
		fg := &filtered[i]

		if statable {
			fm.Stats = append(fm.Stats, tileStats(field, grp))
		}
		fm.TileCellCounts = append(fm.TileCellCounts, uint64(grp.Cells())) //nolint:gosec

		if err := w.backend.Append(w.filePath(field, filter.StreamData), fg.data); err != nil {
			return err
		}
		fm.DataTiles = append(fm.DataTiles, TileRecord{
			Offset:       cur.data,
			FilteredSize: uint64(len(fg.data)), //nolint:gosec
			OriginalSize: fg.dataOrig,
		})
		cur.data += uint64(len(fg.data)) //nolint:gosec

		if grp.Offsets != nil {
			if err := w.backend.Append(w.filePath(field, filter.StreamOffsets), fg.offsets); err != nil {
				return err
			}
			fm.OffsetsTiles = append(fm.OffsetsTiles, TileRecord{
				Offset:       cur.offsets,
				FilteredSize: uint64(len(fg.offsets)), //nolint:gosec
				OriginalSize: fg.offsetsOrig,
			})
			cur.offsets += uint64(len(fg.offsets)) //nolint:gosec
		}
		if grp.Validity != nil {
			if err := w.backend.Append(w.filePath(field, filter.StreamValidity), fg.validity); err != nil {
				return err
			}
			fm.ValidityTiles = append(fm.ValidityTiles, TileRecord{
				Offset:       cur.validity,
				FilteredSize: uint64(len(fg.validity)), //nolint:gosec
				OriginalSize: fg.validityOrig,
			})
			cur.validity += uint64(len(fg.validity)) //nolint:gosec
		}

		grp.Release()
	}

	w.logger.Debug("wrote tiles",
		zap.String("fragment", w.name),
		zap.String("field", field.Name),
		zap.Int("tiles", len(groups)))
	return nil
}

// tileStats computes min/max/sum over the valid cells of one tile.
func tileStats(field array.Field, grp tile.Group) TileStats {
	var stats TileStats
	for i := 0; i < grp.Cells(); i++ {
		if grp.ValidityByte(i) == 0 {
			continue
		}
		cell := grp.Cell(i)
		if stats.Min == nil || field.Type.Compare(cell, stats.Min) < 0 {
			stats.Min = append([]byte(nil), cell...)
		}
		if stats.Max == nil || field.Type.Compare(cell, stats.Max) > 0 {
			stats.Max = append([]byte(nil), cell...)
		}
		if field.Type.IsFloat() {
			stats.Sum += field.Type.DecodeFloat(cell)
		} else {
			stats.Sum += float64(field.Type.DecodeInt(cell))
		}
	}
	return stats
}

// WriteAll persists the tiles of several fields, processing fields in
// parallel. Each field's tiles and metadata records are disjoint, so no
// locking is needed; the orchestrator merges nothing afterwards.
func (w *Writer) WriteAll(fields []array.Field, tiles map[string][]tile.Group) error {
	var g errgroup.Group
	g.SetLimit(w.concurrency)
	for _, f := range fields {
		f := f
		if _, ok := tiles[f.Name]; !ok {
			continue
		}
		g.Go(func() error {
			return w.WriteTiles(f, tiles[f.Name])
		})
	}
	return g.Wait()
}

// RenameTo restamps the fragment directory with a new name. Global-order
// writes use it before commit, once the submission window [tStart, tEnd]
// is known. The fragment is still uncommitted at that point, so a crash
// mid-rename leaves only reclaimable directories.
func (w *Writer) RenameTo(name string) error {
	if name == w.name {
		return nil
	}
	newDir := path.Join(path.Dir(w.dir), name)
	if err := w.backend.Rename(w.dir, newDir); err != nil {
		return err
	}
	w.dir = newDir
	w.name = name
	return nil
}

// SetTimestampRange updates the metadata's submission window.
func (w *Writer) SetTimestampRange(tStart, tEnd uint64) {
	w.meta.TimestampStart = tStart
	w.meta.TimestampEnd = tEnd
}

// Commit makes the fragment durable: fsync of all tile data files, then
// the metadata file, then the commit marker. The marker is the
// linearization point; a fragment without it does not exist to readers.
func (w *Writer) Commit() error {
	for _, f := range w.schema.Fields() {
		for _, stream := range []filter.Stream{filter.StreamData, filter.StreamOffsets, filter.StreamValidity} {
			p := w.filePath(f, stream)
			exists, err := w.backend.Exists(p)
			if err != nil {
				return err
			}
			if exists {
				if err := w.backend.Sync(p); err != nil {
					return err
				}
			}
		}
	}

	metaPath := path.Join(w.dir, MetadataFileName)
	if err := w.backend.Write(metaPath, w.meta.Bytes()); err != nil {
		return err
	}
	if err := w.backend.Sync(metaPath); err != nil {
		return err
	}

	markerPath := path.Join(w.dir, CommitMarkerName)
	if err := w.backend.Write(markerPath, nil); err != nil {
		return err
	}
	if err := w.backend.Sync(markerPath); err != nil {
		return err
	}
	if err := w.backend.SyncDir(w.dir); err != nil {
		return err
	}

	w.logger.Info("committed fragment",
		zap.String("fragment", w.name),
		zap.Uint64("cells", w.meta.CellsWritten),
		zap.Int("fields", len(w.meta.Fields)))
	return nil
}

// Abort removes the in-progress fragment directory. Errors are ignored;
// the write error that triggered the abort is the one worth reporting, and
// an uncommitted directory is eligible for reclamation either way.
func (w *Writer) Abort() {
	_ = w.backend.RemoveAll(w.dir)
	w.logger.Debug("aborted fragment", zap.String("fragment", w.name))
}
