// Package dataset manages the columnar master dataset: a daily-refreshed
// local parquet cache downloaded from object storage, read-only thereafter.
// It exposes column projection and bounded sampling; no mutation path exists.
package dataset

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// Row is one record, column name to value. Values are Go scalars
// (string, int64, float64, bool, nil) or []string for list columns.
type Row map[string]any

// Frame is an in-memory columnar slice of the dataset.
type Frame struct {
	Columns []string
	Rows    []Row
}

// Empty reports whether the frame has no rows.
func (f *Frame) Empty() bool { return len(f.Rows) == 0 }

// ReadColumns returns the top-level column names of a parquet file.
func ReadColumns(path string) ([]string, error) {
	pf, closer, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	fields := pf.Schema().Fields()
	cols := make([]string, 0, len(fields))
	for _, field := range fields {
		cols = append(cols, field.Name())
	}
	return cols, nil
}

// ReadFrame loads rows from a parquet file. columns restricts the projection
// (nil means all columns); limit bounds the number of rows (0 means all).
func ReadFrame(path string, columns []string, limit int) (*Frame, error) {
	pf, closer, err := openParquet(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	schema := pf.Schema()

	// Leaf column index → top-level field name. A path longer than one
	// element means a nested (list) column.
	leafPaths := schema.Columns()
	names := make([]string, len(leafPaths))
	isList := make([]bool, len(leafPaths))
	for i, p := range leafPaths {
		names[i] = p[0]
		isList[i] = len(p) > 1
	}

	var want map[string]bool
	if columns != nil {
		want = make(map[string]bool, len(columns))
		for _, c := range columns {
			want[c] = true
		}
	}

	frame := &Frame{}
	for _, field := range schema.Fields() {
		if want == nil || want[field.Name()] {
			frame.Columns = append(frame.Columns, field.Name())
		}
	}

	buf := make([]parquet.Row, 128)
	for _, rowGroup := range pf.RowGroups() {
		rows := rowGroup.Rows()
		for {
			n, readErr := rows.ReadRows(buf)
			for _, prow := range buf[:n] {
				row := decodeRow(prow, names, isList, want)
				frame.Rows = append(frame.Rows, row)
				if limit > 0 && len(frame.Rows) >= limit {
					_ = rows.Close()
					return frame, nil
				}
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("failed to read parquet rows: %w", readErr)
			}
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("failed to close parquet row reader: %w", err)
		}
	}
	return frame, nil
}

func decodeRow(prow parquet.Row, names []string, isList []bool, want map[string]bool) Row {
	row := make(Row)
	for _, v := range prow {
		idx := v.Column()
		if idx < 0 || idx >= len(names) {
			continue
		}
		name := names[idx]
		if want != nil && !want[name] {
			continue
		}
		if isList[idx] {
			list, _ := row[name].([]string)
			if !v.IsNull() {
				list = append(list, v.String())
			}
			row[name] = list
			continue
		}
		if v.IsNull() {
			row[name] = nil
			continue
		}
		row[name] = decodeValue(v)
	}
	return row
}

func decodeValue(v parquet.Value) any {
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean()
	case parquet.Int32:
		return int64(v.Int32())
	case parquet.Int64:
		return v.Int64()
	case parquet.Float:
		return float64(v.Float())
	case parquet.Double:
		return v.Double()
	default:
		return v.String()
	}
}

func openParquet(path string) (*parquet.File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat dataset file: %w", err)
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	return pf, f, nil
}
