package source

import (
	"encoding/csv"
	"errors"
	"io"
	"os"

	"github.com/go-scripts/dqcheck/internal/dataset"
)

// ReadCSV loads a header-first CSV file. All values are kept as strings.
func ReadCSV(path string) (*dataset.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return dataset.New(), nil
	}
	if err != nil {
		return nil, &SourceReadError{Path: path, Err: err}
	}

	cols := make([]dataset.Column, len(header))
	for i, name := range header {
		cols[i] = dataset.Column{Name: name, Values: []any{}}
	}

	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &SourceReadError{Path: path, Err: err}
		}
		for i, v := range record {
			cols[i].Values = append(cols[i].Values, v)
		}
	}

	return dataset.New(cols...), nil
}
