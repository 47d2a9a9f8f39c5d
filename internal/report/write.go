package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteCSV writes rows to path with the row type's fixed header, fully
// overwriting any previous report. An empty row set still produces the header.
func WriteCSV[R Row](path string, rows []R) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	var zero R
	err = w.Write(zero.Header())
	if err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		err = w.Write(row.Record())
		if err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}

	return f.Close()
}

// WriteJSON writes v as indented JSON with a trailing newline. Map keys
// serialize sorted, keeping summaries diffable across runs.
func WriteJSON(path string, v any) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	err = os.WriteFile(path, append(data, '\n'), 0o644)
	if err != nil {
		return fmt.Errorf("write summary file: %w", err)
	}

	return nil
}
