// Package write implements the write orchestrator: it validates the user's
// buffer bindings, branches on the array density and query layout, drives
// the dense tiler or the coordinate engine, accumulates tiles and hands
// them to the fragment writer for filtering, persistence and commit.
package write

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/buffer"
	"github.com/vincentschut/tiledb/coords"
	"github.com/vincentschut/tiledb/errs"
	"github.com/vincentschut/tiledb/filter"
	"github.com/vincentschut/tiledb/fragment"
	"github.com/vincentschut/tiledb/internal/options"
	"github.com/vincentschut/tiledb/storage"
	"github.com/vincentschut/tiledb/tile"
)

// state is the writer lifecycle position.
type state uint8

const (
	stateUninit state = iota
	stateInited
	stateWaiting // global-order write pending finalize
	stateFinalized
	stateErrored
	stateCleaned
)

// WrittenFragment records one durably committed fragment of this writer.
type WrittenFragment struct {
	Name           string
	TimestampStart uint64
	TimestampEnd   uint64
}

// binding is one field's raw user buffers, borrowed read-only.
type binding struct {
	values   []byte
	offsets  []byte
	validity []byte
}

// Writer processes write queries against one array. It is externally
// single-threaded: the caller serializes all method calls. Parallelism
// happens inside the fragment writer's worker pool.
type Writer struct {
	schema   *array.Schema
	backend  storage.Backend
	arrayDir string
	config   Config
	pipeline *filter.Pipeline
	logger   *zap.Logger

	layout   array.Layout
	subarray *Subarray
	buffers  map[string]binding
	zipped   []byte
	hasCoord bool

	// fragName, when set, overrides the generated fragment name of the
	// next fragment. Used for deterministic tests and re-writes.
	fragName string

	state state
	err   error

	gs *globalWriteState

	// arena owns the split-coordinate buffers allocated on behalf of the
	// user; they live until Close.
	arena [][]byte

	written []WrittenFragment
}

// Option configures a Writer at construction.
type Option = options.Option[*Writer]

// WithConfig replaces the writer's query-scoped configuration.
func WithConfig(cfg Config) Option {
	return options.New(func(w *Writer) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		w.config = cfg
		return nil
	})
}

// WithConfigKey applies one configuration key by name, as listed in the
// configuration table.
func WithConfigKey(key, value string) Option {
	return options.New(func(w *Writer) error {
		return w.config.Set(key, value)
	})
}

// WithLayout sets the query layout.
func WithLayout(l array.Layout) Option {
	return options.New(func(w *Writer) error {
		return w.SetLayout(l)
	})
}

// WithPipeline sets the filter pipeline applied to tile streams.
func WithPipeline(p *filter.Pipeline) Option {
	return options.NoError(func(w *Writer) {
		w.pipeline = p
	})
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return options.NoError(func(w *Writer) {
		w.logger = l
	})
}

// NewWriter creates a writer for the array rooted at arrayDir. Key-value
// schemas start in global-order layout; everything else defaults to
// row-major.
func NewWriter(backend storage.Backend, arrayDir string, schema *array.Schema, opts ...Option) (*Writer, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	w := &Writer{
		schema:   schema,
		backend:  backend,
		arrayDir: arrayDir,
		config:   DefaultConfig(),
		pipeline: filter.NewPipeline(),
		logger:   zap.NewNop(),
		layout:   array.RowMajor,
		buffers:  make(map[string]binding),
	}
	if schema.ForcesGlobalOrder() {
		w.layout = array.GlobalOrder
	}
	if err := options.Apply(w, opts...); err != nil {
		return nil, err
	}
	return w, nil
}

// Layout returns the effective query layout.
func (w *Writer) Layout() array.Layout {
	return w.layout
}

// Config returns the writer's configuration.
func (w *Writer) Config() Config {
	return w.config
}

// WrittenFragments returns the commit log of this writer: one record per
// fragment whose commit marker is durable.
func (w *Writer) WrittenFragments() []WrittenFragment {
	return w.written
}

func (w *Writer) mutable() error {
	if w.state != stateUninit {
		return fmt.Errorf("%w: parameters are mutable only before Init", errs.ErrWriterInitialized)
	}
	return nil
}

// bindable guards the buffer setters. Unlike the other parameters, buffers
// may be rebound between the submissions of an initialized query, which
// global-order writes rely on.
func (w *Writer) bindable() error {
	switch w.state {
	case stateUninit, stateInited, stateWaiting:
		return nil
	case stateErrored, stateCleaned:
		return fmt.Errorf("%w: %v", errs.ErrWriterErrored, w.err)
	default:
		return errs.ErrAlreadyFinalized
	}
}

// SetLayout sets the query layout. Key-value schemas accept only the
// global order.
func (w *Writer) SetLayout(l array.Layout) error {
	if err := w.mutable(); err != nil {
		return err
	}
	if !l.Valid() {
		return fmt.Errorf("%w: invalid layout", errs.ErrConfiguration)
	}
	if w.schema.ForcesGlobalOrder() && l != array.GlobalOrder {
		return fmt.Errorf("%w: key-value arrays accept only global-order writes", errs.ErrConfiguration)
	}
	w.layout = l
	return nil
}

// SetConfig replaces the query-scoped configuration.
func (w *Writer) SetConfig(cfg Config) error {
	if err := w.mutable(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	w.config = cfg
	return nil
}

// DisableCheckGlobalOrder turns off global-order verification. It and the
// configuration flag follow last-writer-wins: whichever was set most
// recently decides.
func (w *Writer) DisableCheckGlobalOrder() {
	w.config.CheckGlobalOrder = false
}

// SetSubarray sets the dense region the write covers, with inclusive
// bounds per dimension.
func (w *Writer) SetSubarray(low, high []int64) error {
	if err := w.mutable(); err != nil {
		return err
	}
	if !w.schema.Dense {
		return fmt.Errorf("%w: subarrays apply only to dense writes", errs.ErrConfiguration)
	}
	sub := &Subarray{Low: append([]int64(nil), low...), High: append([]int64(nil), high...)}
	if err := sub.validate(w.schema); err != nil {
		return err
	}
	w.subarray = sub
	return nil
}

// SetFragmentName overrides the generated name of the next fragment.
func (w *Writer) SetFragmentName(name string) error {
	if err := w.mutable(); err != nil {
		return err
	}
	if _, err := fragment.ParseName(name); err != nil {
		return err
	}
	w.fragName = name
	return nil
}

func (w *Writer) fieldFor(name string) (array.Field, error) {
	f, ok := w.schema.Field(name)
	if !ok {
		return array.Field{}, fmt.Errorf("%w: field %q is not part of the schema", errs.ErrConfiguration, name)
	}
	return f, nil
}

// SetBuffer binds the values buffer of a fixed-size, non-nullable field.
func (w *Writer) SetBuffer(name string, values []byte) error {
	if err := w.bindable(); err != nil {
		return err
	}
	f, err := w.fieldFor(name)
	if err != nil {
		return err
	}
	if f.Var() || f.Nullable {
		return fmt.Errorf("%w: field %q needs a complete binding (var=%t nullable=%t)",
			errs.ErrConfiguration, name, f.Var(), f.Nullable)
	}
	w.buffers[name] = binding{values: values}
	if f.IsDim {
		w.hasCoord = true
	}
	return nil
}

// SetBufferVar binds the offsets and values buffers of a var-size,
// non-nullable field.
func (w *Writer) SetBufferVar(name string, offsets, values []byte) error {
	if err := w.bindable(); err != nil {
		return err
	}
	f, err := w.fieldFor(name)
	if err != nil {
		return err
	}
	if !f.Var() || f.Nullable {
		return fmt.Errorf("%w: field %q is not var-sized and non-nullable", errs.ErrConfiguration, name)
	}
	w.buffers[name] = binding{values: values, offsets: offsets}
	if f.IsDim {
		w.hasCoord = true
	}
	return nil
}

// SetBufferNullable binds the values and validity buffers of a fixed-size,
// nullable attribute.
func (w *Writer) SetBufferNullable(name string, values, validity []byte) error {
	if err := w.bindable(); err != nil {
		return err
	}
	f, err := w.fieldFor(name)
	if err != nil {
		return err
	}
	if f.Var() || !f.Nullable {
		return fmt.Errorf("%w: field %q is not fixed-size and nullable", errs.ErrConfiguration, name)
	}
	w.buffers[name] = binding{values: values, validity: validity}
	return nil
}

// SetBufferVarNullable binds the offsets, values and validity buffers of a
// var-size, nullable attribute.
func (w *Writer) SetBufferVarNullable(name string, offsets, values, validity []byte) error {
	if err := w.bindable(); err != nil {
		return err
	}
	f, err := w.fieldFor(name)
	if err != nil {
		return err
	}
	if !f.Var() || !f.Nullable {
		return fmt.Errorf("%w: field %q is not var-sized and nullable", errs.ErrConfiguration, name)
	}
	w.buffers[name] = binding{values: values, offsets: offsets, validity: validity}
	return nil
}

// SetCoordsBuffer binds a zipped coordinates buffer holding the
// interleaved values of all dimensions per cell. The writer splits it per
// dimension before validation.
func (w *Writer) SetCoordsBuffer(zipped []byte) error {
	if err := w.bindable(); err != nil {
		return err
	}
	if _, err := w.schema.CoordsCellSize(); err != nil {
		return err
	}
	w.zipped = zipped
	w.hasCoord = true
	return nil
}

// Init validates the bindings against the schema and freezes the writer
// parameters. It must be called once before Write.
func (w *Writer) Init() error {
	if w.state != stateUninit {
		return fmt.Errorf("%w: Init called twice", errs.ErrWriterInitialized)
	}
	if err := w.config.Validate(); err != nil {
		return err
	}

	dense := w.schema.Dense
	switch {
	case dense && (w.layout == array.RowMajor || w.layout == array.ColMajor):
	case w.layout == array.GlobalOrder:
	case !dense && (w.layout == array.RowMajor || w.layout == array.ColMajor || w.layout == array.Unordered):
	default:
		return fmt.Errorf("%w: %s writes in %s layout", errs.ErrUnsupportedLayout,
			denseStr(dense), w.layout)
	}

	if dense {
		if w.hasCoord {
			return fmt.Errorf("%w: dense writes take no coordinate buffers", errs.ErrConfiguration)
		}
		if w.subarray == nil {
			w.subarray = fullDomain(w.schema)
		}
		if w.layout == array.GlobalOrder && !w.subarray.tileAligned(w.schema) {
			return fmt.Errorf("%w: dense global-order writes need a tile-aligned subarray", errs.ErrConfiguration)
		}
	} else {
		if w.subarray != nil {
			return fmt.Errorf("%w: subarrays apply only to dense writes", errs.ErrConfiguration)
		}
		if !w.hasCoord {
			return fmt.Errorf("%w: sparse writes need coordinate buffers", errs.ErrConfiguration)
		}
	}

	if err := w.checkBufferNames(); err != nil {
		return err
	}

	w.optimizeLayoutFor1D()
	w.state = stateInited
	w.logger.Debug("writer initialized",
		zap.String("layout", w.layout.String()),
		zap.Bool("dense", dense))
	return nil
}

// checkBufferNames verifies every attribute is bound and, for sparse
// writes, that coordinates arrive either zipped or split but not both.
func (w *Writer) checkBufferNames() error {
	for i := range w.schema.Attributes {
		name := w.schema.Attributes[i].Name
		if _, ok := w.buffers[name]; !ok {
			return fmt.Errorf("%w: attribute %q has no buffer", errs.ErrConfiguration, name)
		}
	}
	if w.schema.Dense {
		return nil
	}
	split := 0
	for i := range w.schema.Dimensions {
		if _, ok := w.buffers[w.schema.Dimensions[i].Name]; ok {
			split++
		}
	}
	switch {
	case w.zipped != nil && split > 0:
		return fmt.Errorf("%w: both zipped and split coordinate buffers are set", errs.ErrConfiguration)
	case w.zipped == nil && split != w.schema.DimNum():
		return fmt.Errorf("%w: %d of %d dimensions have coordinate buffers",
			errs.ErrConfiguration, split, w.schema.DimNum())
	}
	return nil
}

// optimizeLayoutFor1D substitutes the array cell order for the user layout
// on one-dimensional arrays, making row- and column-major equivalent and
// sparing the sort that a differing layout would imply.
func (w *Writer) optimizeLayoutFor1D() {
	if w.schema.DimNum() != 1 {
		return
	}
	if w.layout != array.RowMajor && w.layout != array.ColMajor {
		return
	}
	switch w.schema.CellOrder {
	case array.CellRowMajor:
		w.layout = array.RowMajor
	case array.CellColMajor:
		w.layout = array.ColMajor
	default:
	}
}

// fail latches the writer into the error state, removing any in-progress
// fragment and discarding the global write state.
func (w *Writer) fail(frag *fragment.Writer, err error) error {
	if frag != nil {
		frag.Abort()
	}
	if w.gs != nil {
		if w.gs.frag != nil && w.gs.frag != frag {
			w.gs.frag.Abort()
		}
		w.gs.release()
		w.gs = nil
	}
	w.state = stateErrored
	w.err = err
	w.logger.Error("write failed", zap.Error(err))
	return err
}

// Write performs one submission, dispatching on the array density and the
// query layout.
func (w *Writer) Write() error {
	switch w.state {
	case stateUninit:
		return fmt.Errorf("%w: call Init before Write", errs.ErrWriterNotInitialized)
	case stateErrored, stateCleaned:
		return fmt.Errorf("%w: %v", errs.ErrWriterErrored, w.err)
	case stateFinalized:
		return errs.ErrAlreadyFinalized
	case stateWaiting:
		if w.layout != array.GlobalOrder {
			return fmt.Errorf("%w: writer awaits Finalize", errs.ErrNotGlobalLayout)
		}
	case stateInited:
	}

	switch {
	case w.layout == array.GlobalOrder:
		return w.globalWrite()
	case w.schema.Dense:
		return w.orderedWrite()
	default:
		return w.unorderedWrite()
	}
}

// buildViews validates the bound buffers into per-field views and checks
// that every field agrees on the cell count. For sparse schemas the
// per-dimension coordinate views are returned separately, in dimension
// order.
func (w *Writer) buildViews() (map[string]*buffer.View, []*buffer.View, int, error) {
	offCfg := w.config.offsetsConfig()
	views := make(map[string]*buffer.View)

	// Zipped coordinates are re-split on every submission: global-order
	// queries may rebind the buffer between writes. The split buffers live
	// in the writer's arena until Close.
	if w.zipped != nil {
		split, err := coords.SplitZipped(w.schema, w.zipped)
		if err != nil {
			return nil, nil, 0, err
		}
		w.arena = split
	}

	var dimViews []*buffer.View
	if !w.schema.Dense {
		for d := range w.schema.Dimensions {
			f := w.schema.Dimensions[d].Field()
			var values, offsets []byte
			if w.zipped != nil {
				values = w.arena[d]
			} else {
				b := w.buffers[f.Name]
				values, offsets = b.values, b.offsets
			}
			v, err := buffer.NewView(f, values, offsets, nil, offCfg)
			if err != nil {
				return nil, nil, 0, err
			}
			views[f.Name] = v
			dimViews = append(dimViews, v)
		}
	}

	for i := range w.schema.Attributes {
		f := w.schema.Attributes[i]
		b := w.buffers[f.Name]
		v, err := buffer.NewView(f, b.values, b.offsets, b.validity, offCfg)
		if err != nil {
			return nil, nil, 0, err
		}
		views[f.Name] = v
	}

	cells := -1
	ref := ""
	for _, f := range w.schema.Fields() {
		v := views[f.Name]
		if cells < 0 {
			cells, ref = v.CellCount(), f.Name
			continue
		}
		if v.CellCount() != cells {
			return nil, nil, 0, fmt.Errorf("%w: field %q has %d cells, field %q has %d",
				errs.ErrFieldCellCountMismatch, f.Name, v.CellCount(), ref, cells)
		}
	}
	return views, dimViews, cells, nil
}

// newFragment creates the fragment writer and its directory.
func (w *Writer) newFragment(tStart, tEnd uint64) (*fragment.Writer, error) {
	name := w.fragName
	if name == "" {
		name = fragment.NewNameRange(tStart, tEnd, fragment.FormatVersion)
	}
	frag := fragment.NewWriter(w.backend, w.arrayDir, name, w.schema, w.pipeline,
		tStart, tEnd, w.config.concurrency(), w.logger)
	if err := frag.Create(); err != nil {
		return nil, err
	}
	return frag, nil
}

// orderedWrite handles dense row- and column-major submissions: the dense
// tiler enumerates the tiles intersecting the subarray in the schema tile
// order and fills them from the user buffers, producing one self-contained
// committed fragment.
func (w *Writer) orderedWrite() error {
	views, _, cells, err := w.buildViews()
	if err != nil {
		return w.fail(nil, err)
	}
	expected := w.subarray.cellCount()
	if int64(cells) != expected {
		return w.fail(nil, fmt.Errorf("%w: buffers hold %d cells but the subarray covers %d",
			errs.ErrInvalidBufferShape, cells, expected))
	}

	tiler := newDenseTiler(w.schema, w.subarray, w.layout)
	capacity := int(tiler.tileCellCapacity())
	tileNum := tiler.tileCount()

	now := uint64(time.Now().UTC().UnixMilli()) //nolint:gosec
	frag, err := w.newFragment(now, now)
	if err != nil {
		return w.fail(nil, err)
	}

	fields := w.schema.Fields()
	tiles := make(map[string][]tile.Group, len(fields))
	for _, f := range fields {
		builder := tile.NewBuilder(f, capacity)
		for ti := int64(0); ti < tileNum; ti++ {
			tiler.fillTile(ti, views[f.Name], builder)
		}
		tiles[f.Name] = builder.Finish(true)
	}

	meta := frag.Meta()
	meta.CellsWritten = uint64(expected) //nolint:gosec
	meta.ExpandNonEmptyDomain(w.schema.Dimensions, subarrayDomain(w.schema, w.subarray))

	if err := frag.WriteAll(fields, tiles); err != nil {
		return w.fail(frag, err)
	}
	if err := frag.Commit(); err != nil {
		return w.fail(frag, err)
	}
	w.logWritten(frag.Name(), now, now)
	return nil
}

// unorderedWrite handles sparse submissions in row-major, col-major or
// unordered layout: coordinates are validated, sorted into the global cell
// order, deduplicated per policy, tiled and committed as one fragment.
func (w *Writer) unorderedWrite() error {
	views, dimViews, _, err := w.buildViews()
	if err != nil {
		return w.fail(nil, err)
	}

	engine, err := coords.NewEngine(w.schema, dimViews)
	if err != nil {
		return w.fail(nil, err)
	}
	if w.config.CheckCoordOOB {
		if err := engine.CheckOutOfBounds(); err != nil {
			return w.fail(nil, err)
		}
	}

	pos, posCleanup := engine.SortPositions()
	defer posCleanup()

	var dups map[uint64]struct{}
	switch {
	case w.config.DedupCoords:
		dups = engine.ComputeDupsSorted(pos)
	case w.config.CheckCoordDups:
		if err := engine.CheckDupsSorted(pos); err != nil {
			return w.fail(nil, err)
		}
	}

	now := uint64(time.Now().UTC().UnixMilli()) //nolint:gosec
	frag, err := w.newFragment(now, now)
	if err != nil {
		return w.fail(nil, err)
	}

	fields := w.schema.Fields()
	tiles := make(map[string][]tile.Group, len(fields))
	kept := 0
	for _, f := range fields {
		builder := tile.NewBuilder(f, int(w.schema.Capacity))
		n := 0
		for _, p := range pos {
			if _, skip := dups[p]; skip {
				continue
			}
			builder.AppendCell(views[f.Name], int(p)) //nolint:gosec
			n++
		}
		tiles[f.Name] = builder.Finish(false)
		kept = n
	}

	dimGroups := make(map[string][]tile.Group, w.schema.DimNum())
	for d := range w.schema.Dimensions {
		name := w.schema.Dimensions[d].Name
		dimGroups[name] = tiles[name]
	}
	mbrs, err := computeMBRs(w.schema, dimGroups)
	if err != nil {
		return w.fail(frag, err)
	}

	meta := frag.Meta()
	meta.CellsWritten = uint64(kept) //nolint:gosec
	meta.MBRs = mbrs
	for _, mbr := range mbrs {
		meta.ExpandNonEmptyDomain(w.schema.Dimensions, mbr)
	}

	if err := frag.WriteAll(fields, tiles); err != nil {
		return w.fail(frag, err)
	}
	if err := frag.Commit(); err != nil {
		return w.fail(frag, err)
	}
	w.logWritten(frag.Name(), now, now)
	return nil
}

// globalWrite handles one submission of a global-order query, dense or
// sparse. Only full tiles are persisted; the trailing partial tile stays in
// the global write state until the next submission or Finalize.
func (w *Writer) globalWrite() error {
	views, dimViews, cells, err := w.buildViews()
	if err != nil {
		return w.fail(nil, err)
	}

	if w.gs == nil {
		if err := w.initGlobalState(); err != nil {
			return w.fail(nil, err)
		}
	}
	gs := w.gs

	var dups map[uint64]struct{}
	if !w.schema.Dense {
		engine, err := coords.NewEngine(w.schema, dimViews)
		if err != nil {
			return w.fail(nil, err)
		}
		if w.config.CheckCoordOOB {
			if err := engine.CheckOutOfBounds(); err != nil {
				return w.fail(nil, err)
			}
		}
		if w.config.CheckGlobalOrder {
			if err := engine.CheckGlobalOrder(gs.lastTuple); err != nil {
				return w.fail(nil, err)
			}
		}
		switch {
		case w.config.DedupCoords:
			dups = engine.ComputeDupsSequential()
		case w.config.CheckCoordDups:
			if err := engine.CheckDupsSequential(); err != nil {
				return w.fail(nil, err)
			}
		}
		if cells > 0 {
			gs.lastTuple = engine.Tuple(cells - 1)
		}
	}

	fields := w.schema.Fields()
	full := make(map[string][]tile.Group, len(fields))
	for _, f := range fields {
		builder := gs.builders[f.Name]
		n := 0
		for i := 0; i < cells; i++ {
			if _, skip := dups[uint64(i)]; skip { //nolint:gosec
				continue
			}
			builder.AppendCell(views[f.Name], i)
			n++
		}
		full[f.Name] = builder.PopFull()
		gs.cellsWritten[f.Name] += uint64(n) //nolint:gosec
	}

	if err := gs.checkCellCounts(); err != nil {
		return w.fail(nil, err)
	}

	if !w.schema.Dense {
		dimGroups := make(map[string][]tile.Group, w.schema.DimNum())
		for d := range w.schema.Dimensions {
			name := w.schema.Dimensions[d].Name
			dimGroups[name] = full[name]
		}
		mbrs, err := computeMBRs(w.schema, dimGroups)
		if err != nil {
			return w.fail(nil, err)
		}
		meta := gs.frag.Meta()
		meta.MBRs = append(meta.MBRs, mbrs...)
		for _, mbr := range mbrs {
			meta.ExpandNonEmptyDomain(w.schema.Dimensions, mbr)
		}
	}

	if err := gs.frag.WriteAll(fields, full); err != nil {
		return w.fail(nil, err)
	}

	gs.tEnd = uint64(time.Now().UTC().UnixMilli()) //nolint:gosec
	w.state = stateWaiting
	w.logger.Debug("global submission accepted",
		zap.Int("cells", cells),
		zap.Uint64("cells_written", gs.cells()))
	return nil
}

// initGlobalState creates the global write state and the shared fragment
// on the first global-order submission.
func (w *Writer) initGlobalState() error {
	now := uint64(time.Now().UTC().UnixMilli()) //nolint:gosec
	frag, err := w.newFragment(now, now)
	if err != nil {
		return err
	}

	capacity := int(w.schema.Capacity)
	if w.schema.Dense {
		capacity = int(newDenseTiler(w.schema, w.subarray, array.RowMajor).tileCellCapacity())
	}

	gs := &globalWriteState{
		frag:         frag,
		builders:     make(map[string]*tile.Builder),
		cellsWritten: make(map[string]uint64),
		tStart:       now,
		tEnd:         now,
	}
	for _, f := range w.schema.Fields() {
		gs.builders[f.Name] = tile.NewBuilder(f, capacity)
		gs.cellsWritten[f.Name] = 0
	}
	w.gs = gs
	return nil
}

// Finalize flushes the pending last tiles of a global-order query, commits
// the fragment and ends the query. On a writer in the error state it
// reports the prior error and completes cleanup.
func (w *Writer) Finalize() error {
	switch w.state {
	case stateErrored:
		w.state = stateCleaned
		return fmt.Errorf("%w: %v", errs.ErrWriterErrored, w.err)
	case stateCleaned:
		return fmt.Errorf("%w: %v", errs.ErrWriterErrored, w.err)
	case stateFinalized:
		return errs.ErrAlreadyFinalized
	case stateUninit:
		return errs.ErrWriterNotInitialized
	case stateInited:
		return fmt.Errorf("%w: no global-order write is pending", errs.ErrNotGlobalLayout)
	case stateWaiting:
	}
	gs := w.gs

	fields := w.schema.Fields()
	last := make(map[string][]tile.Group, len(fields))
	for _, f := range fields {
		cur := gs.builders[f.Name].TakeCurrent()
		if cur.Cells() > 0 {
			last[f.Name] = []tile.Group{cur}
		} else {
			cur.Release()
		}
	}

	if err := gs.checkCellCounts(); err != nil {
		return w.fail(nil, err)
	}
	if w.schema.Dense {
		if expected := uint64(w.subarray.cellCount()); gs.cells() != expected { //nolint:gosec
			return w.fail(nil, fmt.Errorf("%w: global write supplied %d of %d subarray cells",
				errs.ErrFieldCellCountMismatch, gs.cells(), expected))
		}
	}

	meta := gs.frag.Meta()
	if !w.schema.Dense && len(last) > 0 {
		dimGroups := make(map[string][]tile.Group, w.schema.DimNum())
		for d := range w.schema.Dimensions {
			name := w.schema.Dimensions[d].Name
			dimGroups[name] = last[name]
		}
		mbrs, err := computeMBRs(w.schema, dimGroups)
		if err != nil {
			return w.fail(nil, err)
		}
		meta.MBRs = append(meta.MBRs, mbrs...)
		for _, mbr := range mbrs {
			meta.ExpandNonEmptyDomain(w.schema.Dimensions, mbr)
		}
	}
	if w.schema.Dense {
		meta.ExpandNonEmptyDomain(w.schema.Dimensions, subarrayDomain(w.schema, w.subarray))
	}

	if err := gs.frag.WriteAll(fields, last); err != nil {
		return w.fail(nil, err)
	}

	meta.CellsWritten = gs.cells()
	if w.fragName == "" && gs.tEnd > gs.tStart {
		if err := gs.frag.RenameTo(fragment.NewNameRange(gs.tStart, gs.tEnd, fragment.FormatVersion)); err != nil {
			return w.fail(nil, err)
		}
	}
	gs.frag.SetTimestampRange(gs.tStart, gs.tEnd)

	if err := gs.frag.Commit(); err != nil {
		return w.fail(nil, err)
	}
	w.logWritten(gs.frag.Name(), gs.tStart, gs.tEnd)
	w.gs = nil
	w.state = stateFinalized
	return nil
}

// Close releases the writer's resources: any pending uncommitted global
// fragment is removed and the split-coordinate arena is dropped. A writer
// cannot be used after Close.
func (w *Writer) Close() error {
	if w.gs != nil {
		w.gs.frag.Abort()
		w.gs.release()
		w.gs = nil
	}
	w.arena = nil
	if w.state != stateFinalized {
		w.state = stateCleaned
	}
	return nil
}

func (w *Writer) logWritten(name string, tStart, tEnd uint64) {
	w.written = append(w.written, WrittenFragment{
		Name:           name,
		TimestampStart: tStart,
		TimestampEnd:   tEnd,
	})
	w.logger.Info("fragment written",
		zap.String("fragment", name),
		zap.Uint64("t_start", tStart),
		zap.Uint64("t_end", tEnd))
}

func denseStr(dense bool) string {
	if dense {
		return "dense"
	}
	return "sparse"
}
