// Package sink persists a combined price table.
package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"pricefetcher/internal/model"
)

// CSVWriter writes a table as comma-separated values with a header row and
// a leading row-index column.
type CSVWriter struct{}

// NewCSVWriter creates a CSV sink.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// Write replaces the file at path with the table. The data is written to a
// temporary file next to path and renamed into place, so on failure any
// existing file is left untouched.
func (w *CSVWriter) Write(table *model.CombinedTable, path string) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	cw := csv.NewWriter(tmp)
	if err := cw.WriteAll(table.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}

	// CreateTemp uses 0600
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}

	return nil
}
