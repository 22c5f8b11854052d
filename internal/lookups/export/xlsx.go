package export

import (
	"fmt"
	"io"

	"ean_lookup_backend/internal/lookups/transport"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName    = "Results"
	columnWidths = 22
)

// WriteXLSX writes table as a workbook with a single Results sheet. Every
// cell is stored as text so EANs keep their leading digits intact.
func WriteXLSX(w io.Writer, table transport.ResultTable) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	for i, col := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellStr(sheetName, cell, col); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastCol, headerStyle); err != nil {
		return fmt.Errorf("apply header style: %w", err)
	}

	for r, result := range table.Results {
		for c, value := range Row(result) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellStr(sheetName, cell, value); err != nil {
				return fmt.Errorf("write row %d: %w", r+1, err)
			}
		}
	}

	first, _ := excelize.ColumnNumberToName(1)
	last, _ := excelize.ColumnNumberToName(len(Header))
	if err := f.SetColWidth(sheetName, first, last, columnWidths); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
