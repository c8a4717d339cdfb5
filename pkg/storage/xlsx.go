package storage

import (
	"fmt"

	"github.com/Sternrassler/county-property-scraper/pkg/table"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet name used when XLSXWriter.Sheet is empty.
const DefaultSheet = "Properties"

// XLSXWriter writes a table as a single-sheet workbook.
type XLSXWriter struct {
	Sheet string
}

// Write saves t to path, header in row 1.
func (w XLSXWriter) Write(path string, t *table.Table) error {
	sheet := w.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}

	if err := sw.SetRow("A1", cells(t.Headers)); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, row := range t.Rows {
		addr, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
		if err := sw.SetRow(addr, cells(row)); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

func cells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
