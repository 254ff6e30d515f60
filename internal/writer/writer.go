package writer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/go-scripts/dqcheck/internal/dataset"
)

// FileWriter writes numbered snapshot artifacts to an output directory
type FileWriter struct {
	outputDir string
	prefix    string
	runID     string
}

// New creates a new FileWriter, creating outputDir if needed.
// Files are named <prefix><n>.png and <prefix><n>.csv.
func New(outputDir, prefix string) (*FileWriter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &FileWriter{outputDir: outputDir, prefix: prefix}, nil
}

// NewRun creates a FileWriter in a fresh <baseDir>/<run id> directory so
// repeated runs do not overwrite each other.
func NewRun(baseDir, prefix string) (*FileWriter, error) {
	id := uuid.NewString()
	w, err := New(filepath.Join(baseDir, id), prefix)
	if err != nil {
		return nil, err
	}
	w.runID = id
	return w, nil
}

// Dir returns the output directory
func (w *FileWriter) Dir() string {
	return w.outputDir
}

// RunID returns the run id, empty unless created by NewRun
func (w *FileWriter) RunID() string {
	return w.runID
}

// WriteImage writes PNG bytes for snapshot n and returns the file path
func (w *FileWriter) WriteImage(n int, png []byte) (string, error) {
	path := w.path(n, ".png")
	if err := os.WriteFile(path, png, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}

// WriteTable writes the dataset of snapshot n as CSV and returns the file path
func (w *FileWriter) WriteTable(n int, ds *dataset.Dataset) (string, error) {
	path := w.path(n, ".csv")
	if err := WriteCSV(path, ds); err != nil {
		return "", err
	}
	return path, nil
}

// WriteSummary writes the run summary as summary.json
func (w *FileWriter) WriteSummary(summary any) error {
	path := filepath.Join(w.outputDir, "summary.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	return nil
}

func (w *FileWriter) path(n int, ext string) string {
	return filepath.Join(w.outputDir, fmt.Sprintf("%s%d%s", w.prefix, n, ext))
}

// WriteCSV writes a header row followed by one row per dataset row.
// Ragged columns leave trailing cells empty.
func WriteCSV(path string, ds *dataset.Dataset) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	cw := csv.NewWriter(file)
	if err := cw.Write(ds.Names()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := 0; i < ds.NumRows(); i++ {
		row := ds.Row(i)
		record := make([]string, len(row))
		for j, v := range row {
			record[j] = dataset.Format(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return file.Close()
}
