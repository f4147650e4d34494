package ingest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		line string
		want rune
	}{
		{"empresa,nombre,cargo", ','},
		{"empresa;nombre;cargo", ';'},
		{"empresa\tnombre\tcargo", '\t'},
		{"empresa|nombre|cargo", '|'},
		{`"Apellidos, Nombre";empresa;cargo`, ';'},
		{"single", ','},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, SniffDelimiter(tt.line))
		})
	}
}

func TestReadCSV(t *testing.T) {
	input := "\ufeffEmpresa;Nombre;Numero\r\nAcme;\"Ruiz; Ana\";600 111 222\r\n\r\n;;\r\nBeta;Luis\r\n"

	table, err := Read(strings.NewReader(input), "reparto.csv", Options{})
	require.NoError(t, err)

	assert.Equal(t, "reparto.csv", table.Name)
	assert.Equal(t, []string{"Empresa", "Nombre", "Numero"}, table.Header)
	assert.Equal(t, [][]string{
		{"Acme", "Ruiz; Ana", "600 111 222"},
		{"Beta", "Luis"},
	}, table.Rows)
}

func TestReadTSVDefaultsToTab(t *testing.T) {
	table, err := Read(strings.NewReader("a,b\tc\n1,2\t3\n"), "list.tsv", Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a,b", "c"}, table.Header)
}

func TestReadForcedDelimiter(t *testing.T) {
	table, err := Read(strings.NewReader("a;b,c\n1;2,3\n"), "list.csv", Options{Delimiter: ','})
	require.NoError(t, err)
	assert.Equal(t, []string{"a;b", "c"}, table.Header)
}

func TestReadEmptyCSV(t *testing.T) {
	table, err := Read(strings.NewReader(""), "empty.csv", Options{})
	require.NoError(t, err)
	assert.Equal(t, "empty.csv", table.Name)
	assert.Empty(t, table.Header)
	assert.Zero(t, table.Len())
}

func TestReadUnsupported(t *testing.T) {
	_, err := Read(strings.NewReader("x"), "contacts.ods", Options{})
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func workbook(t *testing.T, sheets map[string][][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			require.NoError(t, f.SetSheetName("Sheet1", name))
			first = false
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetSheetRow(name, cell, &row))
		}
	}

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadXLSX(t *testing.T) {
	data := workbook(t, map[string][][]interface{}{
		"Reparto": {
			{"ENLACE LINKEDIN", "Nombre", "Numero", "NUMERO DATO"},
			{"linkedin.com/in/ana", "Ana", 600111222, 1001},
			{nil, nil, nil, nil},
			{"", "Luis"},
		},
	})

	path := filepath.Join(t.TempDir(), "reparto.xlsx")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	table, err := ReadFile(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, "reparto.xlsx", table.Name)
	assert.Equal(t, []string{"ENLACE LINKEDIN", "Nombre", "Numero", "NUMERO DATO"}, table.Header)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"linkedin.com/in/ana", "Ana", "600111222", "1001"}, table.Rows[0])
	assert.Equal(t, "Luis", table.Rows[1][1])
}

func TestReadXLSXEmptySheet(t *testing.T) {
	data := workbook(t, map[string][][]interface{}{"Lista negra": nil})

	table, err := Read(bytes.NewReader(data), "lista_negra.xlsx", Options{})
	require.NoError(t, err)
	assert.Equal(t, "lista_negra.xlsx", table.Name)
	assert.Zero(t, table.Len())
}

func TestReadXLSXMissingSheet(t *testing.T) {
	data := workbook(t, map[string][][]interface{}{"Sheet1": {{"a"}}})

	_, err := Read(bytes.NewReader(data), "list.xlsx", Options{Sheet: "Lista negra"})
	assert.ErrorContains(t, err, `sheet "Lista negra"`)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"), Options{})
	assert.ErrorContains(t, err, "failed to open file")
}
