package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
)

// utf8BOM lets spreadsheet tools detect the encoding of the CSVs.
const utf8BOM = "\ufeff"

// Write stores the Markdown report and every table under dir, returning
// the paths written.
func Write(dir string, r *Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var paths []string

	mdPath := filepath.Join(dir, fmt.Sprintf("weekly_report_%s.md", r.RunDate))
	if err := os.WriteFile(mdPath, []byte(r.Markdown), 0o644); err != nil {
		return paths, fmt.Errorf("write report: %w", err)
	}
	paths = append(paths, mdPath)

	for _, t := range r.Tables {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", t.Name, r.RunDate))
		if err := writeCSV(path, t); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeCSV(path string, t Table) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
