// Package source loads reference datasets from columnar and delimited files.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/apache/arrow/go/v18/arrow/memory"
	pqfile "github.com/apache/arrow/go/v18/parquet/file"
	"github.com/apache/arrow/go/v18/parquet/pqarrow"
	"github.com/charmbracelet/log"

	"github.com/go-scripts/dqcheck/internal/dataset"
	"github.com/go-scripts/dqcheck/internal/normalize"
)

// Options controls how a Parquet source is read
type Options struct {
	// Filters on partition keys prune directories, the rest filter rows
	Filters []dataset.Predicate
	// Columns restricts the data columns read. Partition keys are always kept.
	Columns []string
	Prepare Prepare
}

// Prepare is the post-load shaping of a reference dataset
type Prepare struct {
	DateColumns []string
	IntColumns  []string
	SortBy      string
	Select      []string
	Renames     map[string]string
}

type parquetPart struct {
	path       string
	partitions [][2]string
}

// ReadParquet loads a Parquet file or a key=value partitioned directory tree
func ReadParquet(ctx context.Context, path string, opts Options) (*dataset.Dataset, error) {
	for _, p := range opts.Filters {
		if err := p.Validate(); err != nil {
			return nil, &SourceReadError{Path: path, Err: err}
		}
	}

	parts, partKeys, err := collectParts(path, opts.Filters)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	log.Debug("Reading parquet source", "path", path, "files", len(parts))

	out := dataset.New()
	for _, part := range parts {
		ds, err := readParquetFile(ctx, part.path, opts.Columns, partKeys)
		if err != nil {
			return nil, &SourceReadError{Path: part.path, Err: err}
		}
		n := ds.NumRows()
		for _, kv := range part.partitions {
			vals := make([]any, n)
			for i := range vals {
				vals[i] = kv[1]
			}
			ds.Columns = append(ds.Columns, dataset.Column{Name: kv[0], Values: vals})
		}
		out = out.Append(ds)
	}

	// Everything pruned: an empty dataset shaped like the requested output
	if len(parts) == 0 {
		names := opts.Prepare.Select
		if len(names) == 0 {
			names = opts.Columns
		}
		for _, name := range names {
			out.Columns = append(out.Columns, dataset.Column{Name: name, Values: []any{}})
		}
		return out.Rename(opts.Prepare.Renames), nil
	}

	var rowFilters []dataset.Predicate
	for _, p := range opts.Filters {
		if !partKeys[p.Column] {
			rowFilters = append(rowFilters, p)
		}
	}
	if len(rowFilters) > 0 {
		out, err = out.Filter(rowFilters...)
		if err != nil {
			return nil, &SourceReadError{Path: path, Err: err}
		}
	}

	out, err = prepare(out, opts.Prepare)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	return out, nil
}

// collectParts walks a partitioned tree, skipping directories whose
// key=value segment fails a filter on that key
func collectParts(root string, filters []dataset.Predicate) ([]parquetPart, map[string]bool, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, nil, err
	}
	partKeys := make(map[string]bool)
	if !info.IsDir() {
		return []parquetPart{{path: root}}, partKeys, nil
	}

	var parts []parquetPart
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p == root {
				return nil
			}
			key, value, ok := strings.Cut(d.Name(), "=")
			if !ok {
				return nil
			}
			partKeys[key] = true
			for _, f := range filters {
				if f.Column != key {
					continue
				}
				match, err := f.MatchString(value)
				if err != nil {
					return fmt.Errorf("partition %s: %w", d.Name(), err)
				}
				if !match {
					return fs.SkipDir
				}
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".parquet") {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		parts = append(parts, parquetPart{path: p, partitions: partitionsOf(rel)})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sort.Slice(parts, func(i, j int) bool { return parts[i].path < parts[j].path })
	return parts, partKeys, nil
}

func partitionsOf(rel string) [][2]string {
	var kvs [][2]string
	if rel == "." {
		return kvs
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if k, v, ok := strings.Cut(seg, "="); ok {
			kvs = append(kvs, [2]string{k, v})
		}
	}
	return kvs
}

func readParquetFile(ctx context.Context, path string, columns []string, partKeys map[string]bool) (*dataset.Dataset, error) {
	rdr, err := pqfile.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer rdr.Close()

	var indices []int
	if len(columns) > 0 {
		schema := rdr.MetaData().Schema
		for _, name := range columns {
			if partKeys[name] {
				continue
			}
			idx := schema.ColumnIndexByName(name)
			if idx < 0 {
				return nil, &dataset.SchemaMismatchError{Reason: fmt.Sprintf("column %q not found in %s", name, filepath.Base(path))}
			}
			indices = append(indices, idx)
		}
		if len(indices) == 0 {
			return nil, errors.New("no data columns selected")
		}
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	rr, err := fr.GetRecordReader(ctx, indices, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create record reader: %w", err)
	}
	defer rr.Release()

	schema := rr.Schema()
	cols := make([]dataset.Column, schema.NumFields())
	for i, field := range schema.Fields() {
		cols[i] = dataset.Column{Name: field.Name, Values: []any{}}
	}

	for rr.Next() {
		rec := rr.Record()
		for j, arr := range rec.Columns() {
			for i := 0; i < arr.Len(); i++ {
				cols[j].Values = append(cols[j].Values, cellValue(arr, i))
			}
		}
	}
	if err := rr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error reading records: %w", err)
	}

	return &dataset.Dataset{Columns: cols}, nil
}

func prepare(ds *dataset.Dataset, p Prepare) (*dataset.Dataset, error) {
	var err error
	for _, name := range p.DateColumns {
		if ds, err = normalize.DateColumn(ds, name); err != nil {
			return nil, err
		}
	}
	for _, name := range p.IntColumns {
		if ds, err = normalize.IntColumn(ds, name); err != nil {
			return nil, err
		}
	}
	if p.SortBy != "" {
		if ds, err = ds.SortBy(p.SortBy); err != nil {
			return nil, err
		}
	}
	if len(p.Select) > 0 {
		if ds, err = ds.Select(p.Select...); err != nil {
			return nil, err
		}
	}
	if len(p.Renames) > 0 {
		ds = ds.Rename(p.Renames)
	}
	return ds, nil
}
