// Package export writes projected tables as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/contact-scrub/internal/schema"
)

// DefaultSheet is the worksheet name the CRM importer reads.
const DefaultSheet = "Sheet1"

// Format is an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (expected csv or xlsx)", s)
}

// FormatFor picks the format from a file extension; anything but .csv is written as XLSX.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatXLSX
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// Write encodes table to w in format f.
func Write(w io.Writer, table schema.Table, f Format) error {
	if f == FormatCSV {
		return WriteCSV(w, table, ',')
	}
	return WriteXLSX(w, table, DefaultSheet)
}

// WriteCSV writes the header and rows separated by delim.
func WriteCSV(w io.Writer, table schema.Table, delim rune) error {
	cw := csv.NewWriter(w)
	cw.Comma = delim

	if err := cw.Write(table.Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes table to a single worksheet. Every cell is stored as text so ids and
// phone numbers are not reformatted by spreadsheet software.
func WriteXLSX(w io.Writer, table schema.Table, sheet string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = DefaultSheet
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}

	if err := sw.SetRow("A1", cells(table.Header)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, cells(row)); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func cells(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = excelize.Cell{Value: v}
	}
	return out
}

// WriteFile writes table to path, creating parent directories and picking the format
// from the extension.
func WriteFile(path string, table schema.Table, sheet string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer file.Close()

	switch FormatFor(path) {
	case FormatCSV:
		err = WriteCSV(file, table, ',')
	default:
		err = WriteXLSX(file, table, sheet)
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
