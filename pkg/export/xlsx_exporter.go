package export

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

const xlsxSheetName = "Ranking"

// XLSXExporter renders datasets into a single-sheet workbook.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render builds the workbook and returns its bytes.
func (e *XLSXExporter) Render(data Dataset) ([]byte, error) {
	if len(data.Columns) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one column")
	}
	book := excelize.NewFile()
	defer book.Close()

	if err := book.SetSheetName("Sheet1", xlsxSheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(data.Columns))
	for i, label := range data.labels() {
		header[i] = label
	}
	if err := book.SetSheetRow(xlsxSheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	style, err := book.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		lastCell, _ := excelize.CoordinatesToCellName(len(data.Columns), 1)
		_ = book.SetCellStyle(xlsxSheetName, "A1", lastCell, style)
	}

	for i, row := range data.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		values := make([]interface{}, len(data.Columns))
		for j, value := range data.record(row) {
			values[j] = value
			if data.Columns[j].Numeric {
				values[j] = xlsxNumber(value)
			}
		}
		if err := book.SetSheetRow(xlsxSheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write xlsx row: %w", err)
		}
	}

	buf, err := book.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func xlsxNumber(value string) interface{} {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
