package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Sternrassler/county-property-scraper/pkg/table"
)

// SourceColumn is the second column of the provenance log.
const SourceColumn = "source"

// WriteCSV writes the header and rows of t to path, replacing any existing
// file.
func WriteCSV(path string, t *table.Table) error {
	err := writeFileAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(t.Headers); err != nil {
			return err
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return err
		}
		return cw.Error()
	})
	if err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// appendProvenance appends one (identifying value, source) line per distinct
// non-empty identifying value of t. The header is written when the file is
// new or empty. It returns the number of lines appended.
func appendProvenance(path string, t *table.Table, identifyingColumn, source string) (n int, err error) {
	col, name := t.IdentifyingColumn(identifyingColumn)
	if col < 0 {
		return 0, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open provenance log: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close provenance log: %w", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat provenance log: %w", err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write([]string{name, SourceColumn}); err != nil {
			return 0, fmt.Errorf("write provenance header: %w", err)
		}
	}

	seen := make(map[string]bool, t.Len())
	for i := range t.Rows {
		v := t.Value(i, col)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		if err := cw.Write([]string{v, source}); err != nil {
			return n, fmt.Errorf("append provenance: %w", err)
		}
		n++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, fmt.Errorf("append provenance: %w", err)
	}
	return n, nil
}

// writeFileAtomic writes through a temporary file in the same directory and
// renames it into place.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
