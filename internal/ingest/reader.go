// Package ingest reads contact lists from CSV and XLSX files into raw tables.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/contact-scrub/internal/schema"
)

// Options control how a file is read.
type Options struct {
	// Delimiter forces the CSV separator; zero means sniff it from the header line.
	Delimiter rune
	// Sheet selects the XLSX worksheet; empty means the first one.
	Sheet string
}

// Format is a supported input format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrUnsupportedFormat is returned for files that are neither delimited text nor XLSX.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// DetectFormat picks the reader from a file name.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt", ".tsv":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q (expected .csv, .tsv, .txt or .xlsx)", ErrUnsupportedFormat, filepath.Base(name))
}

// ReadFile reads the table stored at path.
func ReadFile(path string, opts Options) (schema.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return schema.Table{}, fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	return Read(file, filepath.Base(path), opts)
}

// Read reads a table from r, using name to pick the format.
func Read(r io.Reader, name string, opts Options) (schema.Table, error) {
	format, err := DetectFormat(name)
	if err != nil {
		return schema.Table{}, err
	}

	var table schema.Table
	switch format {
	case FormatXLSX:
		table, err = readXLSX(r, opts.Sheet)
	default:
		delim := opts.Delimiter
		if delim == 0 && strings.EqualFold(filepath.Ext(name), ".tsv") {
			delim = '\t'
		}
		table, err = readCSV(r, delim)
	}
	if err != nil {
		return schema.Table{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	table.Name = name
	return table, nil
}

var candidateDelimiters = []rune{',', ';', '\t', '|'}

// SniffDelimiter returns the candidate separator occurring most often outside quotes
// in line, preferring earlier candidates on ties. Defaults to a comma.
func SniffDelimiter(line string) rune {
	counts := make(map[rune]int, len(candidateDelimiters))
	quoted := false
	for _, c := range line {
		if c == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[c]++
		}
	}

	best, bestCount := ',', 0
	for _, d := range candidateDelimiters {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

const bom = "\ufeff"

func readCSV(r io.Reader, delim rune) (schema.Table, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return schema.Table{}, err
	}
	hasBOM := bytes.HasPrefix(head, []byte(bom))
	if delim == 0 {
		line := bytes.TrimPrefix(head, []byte(bom))
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		delim = SniffDelimiter(string(line))
	}
	if hasBOM {
		if _, err := br.Discard(len(bom)); err != nil {
			return schema.Table{}, err
		}
	}

	reader := csv.NewReader(br)
	reader.Comma = delim
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return schema.Table{}, nil
	}
	if err != nil {
		return schema.Table{}, fmt.Errorf("failed to read header: %w", err)
	}

	var rows [][]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return schema.Table{}, fmt.Errorf("failed to read CSV record: %w", err)
		}
		if blank(record) {
			continue
		}
		rows = append(rows, record)
	}
	return schema.Table{Header: header, Rows: rows}, nil
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
