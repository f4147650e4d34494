package ingest

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/contact-scrub/internal/schema"
)

// readXLSX reads one worksheet. Cell values are taken raw so numeric ids and phones keep
// their digits instead of the sheet's display format.
func readXLSX(r io.Reader, sheet string) (schema.Table, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return schema.Table{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return schema.Table{}, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return schema.Table{}, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return schema.Table{}, nil
	}

	var data [][]string
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		data = append(data, row)
	}
	return schema.Table{Header: rows[0], Rows: data}, nil
}
