package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ethoflow/ethoflow/pkg/table"
)

// excelize rejects sheet names longer than 31 characters.
const maxSheetName = 31

func sheetName(name string) string {
	r := []rune(name)
	if len(r) > maxSheetName {
		r = r[:maxSheetName]
	}
	return string(r)
}

func encodeXLSX(t *table.ResultTable, name string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := sheetName(name)
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("stream writer: %w", err)
	}

	header := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		header[i] = h
	}
	if err := sw.SetRow("A1", header); err != nil {
		return nil, err
	}

	for r, row := range t.Rows {
		values := make([]interface{}, 0, len(row.Cells)+1)
		values = append(values, row.Time.Seconds())
		for _, c := range row.Cells {
			values = append(values, int(c))
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return nil, err
		}
		if err := sw.SetRow(cell, values); err != nil {
			return nil, err
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush rows: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
