package export

import (
	"fmt"
	"io"

	"github.com/xaenox/edu-assistant/internal/models"
	"github.com/xuri/excelize/v2"
)

// SheetName is the single sheet of a dialog workbook.
const SheetName = "Dialog"

var header = []interface{}{"turn_number", "role", "content", "model_response"}

// NewWorkbook builds a single-sheet workbook from rows. The caller closes it.
func NewWorkbook(rows []models.ExportRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		f.Close()
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("export: write header: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		values := []interface{}{row.TurnNumber, string(row.Role), row.Content, row.ModelResponse}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("export: write row %d: %w", row.TurnNumber, err)
		}
	}
	return f, nil
}

// WriteWorkbook serializes rows as an .xlsx document to w.
func WriteWorkbook(w io.Writer, rows []models.ExportRow) error {
	f, err := NewWorkbook(rows)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}
