// Package xlsxexport renders canonical records as an Excel workbook.
package xlsxexport

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"icpscout/internal/csvexport"
	"icpscout/internal/domain"
)

// SheetName is the worksheet holding one row per company.
const SheetName = "Companies"

var widths = map[string]float64{
	"A": 28, "B": 24, "C": 10, "D": 10, "E": 10, "F": 18,
	"G": 60, "H": 40, "I": 22, "J": 16, "K": 30, "L": 80,
}

// Build returns the workbook bytes. Columns match the CSV output; team size
// and score are written as numbers so they sort in Excel.
func Build(recs []domain.CanonicalRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}

	for i, h := range csvexport.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, bold)
	}

	for i := range recs {
		row := i + 2
		cells := csvexport.Row(&recs[i])
		for col, v := range cells {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			var value any = v
			switch {
			case col == 2 && recs[i].TeamSize != nil:
				value = *recs[i].TeamSize
			case col == 3 && v != "":
				value = recs[i].ICPScore
			}
			if err := f.SetCellValue(SheetName, cell, value); err != nil {
				return nil, fmt.Errorf("xlsx row %d: %w", row, err)
			}
		}
	}

	for col, w := range widths {
		_ = f.SetColWidth(SheetName, col, col, w)
	}
	_ = f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}
