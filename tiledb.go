// Package tiledb provides the write path of a tiled multi-dimensional
// array storage engine: user cell buffers go in, durably committed on-disk
// fragments come out.
//
// An array is described by an array.Schema (dimensions with domains,
// attributes, tile capacity and cell/tile orders). A write.Writer binds the
// user buffers, validates coordinates, arranges cells into fixed-capacity
// tiles, pushes every tile through a filter pipeline and commits the result
// as a fragment: one directory holding per-field tile files, a metadata
// file and a commit marker whose presence defines the fragment's existence.
//
// # Basic Usage
//
// Writing a sparse array with unordered cells:
//
//	schema := &array.Schema{
//	    Dimensions: []array.Dimension{{
//	        Name: "d",
//	        Type: array.Int32,
//	        Dom:  array.Domain{Low: low, High: high},
//	    }},
//	    Attributes: []array.Field{{Name: "a", Type: array.Float32, CellValNum: 1}},
//	    Capacity:   1024,
//	    CellOrder:  array.CellRowMajor,
//	    TileOrder:  array.TileRowMajor,
//	}
//
//	w, _ := tiledb.NewWriter("/data/myarray", schema,
//	    write.WithLayout(array.Unordered))
//	w.SetBuffer("d", coordBytes)
//	w.SetBuffer("a", valueBytes)
//	w.Init()
//	if err := w.Write(); err != nil {
//	    return err
//	}
//	w.Close()
//
// Global-order writes stream cells across submissions and commit once on
// Finalize:
//
//	w, _ := tiledb.NewWriter("/data/myarray", schema,
//	    write.WithLayout(array.GlobalOrder))
//	// bind buffers, Init, then:
//	w.Write()            // submission 1
//	// rebind, then:
//	w.Write()            // submission 2
//	w.Finalize()         // flush last tiles, commit
//
// # Package Structure
//
// This package provides convenient top-level wrappers around the write
// package. For fine-grained control, use the write, array, filter and
// fragment packages directly.
package tiledb

import (
	"github.com/vincentschut/tiledb/array"
	"github.com/vincentschut/tiledb/storage"
	"github.com/vincentschut/tiledb/write"
)

// NewWriter creates a writer for the array rooted at arrayDir on the local
// filesystem. Use write.NewWriter directly to supply a different storage
// backend.
func NewWriter(arrayDir string, schema *array.Schema, opts ...write.Option) (*write.Writer, error) {
	return write.NewWriter(storage.NewLocal(), arrayDir, schema, opts...)
}
