// Package table holds the logical table reassembled from portal pages.
package table

import (
	"fmt"
)

// DefaultIdentifyingColumn is the column used for provenance and summaries.
const DefaultIdentifyingColumn = "Folio"

// Table is a fixed header plus rows of string cells.
// Once returned from a run it must be treated as read-only.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Width returns the number of header columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.Headers)
}

// IsEmpty reports whether the table has no rows.
func (t *Table) IsEmpty() bool {
	return t.Len() == 0
}

// Column returns the index of the named header, or -1.
func (t *Table) Column(name string) int {
	if t == nil {
		return -1
	}
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// IdentifyingColumn returns the index and name of the column that identifies
// a row. It prefers name and falls back to the first column.
func (t *Table) IdentifyingColumn(name string) (int, string) {
	if i := t.Column(name); i >= 0 {
		return i, name
	}
	if t.Width() == 0 {
		return -1, ""
	}
	return 0, t.Headers[0]
}

// Value returns the cell at (row, col) or "" when the row is short.
func (t *Table) Value(row, col int) string {
	if row < 0 || row >= t.Len() || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// RowMismatch describes one row whose cell count differs from the header.
type RowMismatch struct {
	Row   int
	Cells int
	Want  int
}

func (m RowMismatch) String() string {
	return fmt.Sprintf("row %d has %d cells, header has %d", m.Row, m.Cells, m.Want)
}

// Validate lists every row whose length differs from the header length.
func (t *Table) Validate() []RowMismatch {
	var out []RowMismatch
	if t == nil {
		return out
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Headers) {
			out = append(out, RowMismatch{Row: i, Cells: len(row), Want: len(t.Headers)})
		}
	}
	return out
}

// Repaired returns a copy of the table in which short rows are padded with
// empty cells and long rows are truncated to the header width, together
// with the mismatches that were fixed. The receiver is not modified.
func (t *Table) Repaired() (*Table, []RowMismatch) {
	mismatches := t.Validate()
	if len(mismatches) == 0 {
		return t, nil
	}

	width := len(t.Headers)
	rows := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		fixed := make([]string, width)
		copy(fixed, row)
		rows[i] = fixed
	}

	headers := make([]string, width)
	copy(headers, t.Headers)

	return &Table{Headers: headers, Rows: rows}, mismatches
}
