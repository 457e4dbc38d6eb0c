// Package tabular reads and writes the spreadsheet files the tool exchanges
// with users: the PO register and the invoice history. Both .xlsx and .csv
// are accepted; the file extension selects the format.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for a file extension that is neither
// spreadsheet nor CSV.
var ErrUnsupportedFormat = errors.New("unsupported table format")

// Table is a header row plus data rows, all as display strings.
type Table struct {
	Sheet  string
	Header []string
	Rows   [][]string
}

// Column returns the index of the named column, or -1. Names are compared
// after trimming, exactly first and then case-insensitively.
func (t *Table) Column(name string) int {
	name = strings.TrimSpace(name)
	for i, h := range t.Header {
		if strings.TrimSpace(h) == name {
			return i
		}
	}
	for i, h := range t.Header {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i
		}
	}
	return -1
}

// MissingColumns lists the names among required that the header lacks.
func (t *Table) MissingColumns(required ...string) []string {
	var missing []string
	for _, name := range required {
		if t.Column(name) < 0 {
			missing = append(missing, name)
		}
	}
	return missing
}

// Value returns the trimmed cell of row at col, or "" when the row is short.
func (t *Table) Value(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// IsSpreadsheet reports whether path names an Excel workbook.
func IsSpreadsheet(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return true
	}
	return false
}

// IsCSV reports whether path names a CSV file.
func IsCSV(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".csv"
}

// Read loads a table from path. For workbooks, preferredSheet is used when
// present and the first sheet otherwise.
func Read(path, preferredSheet string) (*Table, error) {
	const op = "Read"

	switch {
	case IsSpreadsheet(path):
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to open workbook %s: %w", op, path, err)
		}
		defer f.Close()
		return readWorkbook(f, preferredSheet)
	case IsCSV(path):
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to open %s: %w", op, path, err)
		}
		defer file.Close()
		return ReadCSV(file)
	default:
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// ReadWorkbook loads a table from an Excel stream.
func ReadWorkbook(r io.Reader, preferredSheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ReadWorkbook: failed to open workbook: %w", err)
	}
	defer f.Close()
	return readWorkbook(f, preferredSheet)
}

func readWorkbook(f *excelize.File, preferredSheet string) (*Table, error) {
	const op = "readWorkbook"

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", op)
	}
	sheet := sheets[0]
	for _, name := range sheets {
		if preferredSheet != "" && strings.EqualFold(name, preferredSheet) {
			sheet = name
			break
		}
	}

	// Raw values keep number formats such as "#,##0" out of the amounts.
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read sheet %s: %w", op, sheet, err)
	}

	t := fromRows(rows)
	t.Sheet = sheet
	return t, nil
}

// ReadCSV loads a table from CSV. Rows may have varying lengths.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return fromRows(rows), nil
}

// fromRows takes the first non-blank row as header and drops blank rows.
func fromRows(rows [][]string) *Table {
	t := &Table{}
	for _, row := range rows {
		if isBlank(row) {
			continue
		}
		if t.Header == nil {
			t.Header = row
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// Write stores header and rows at path, replacing the file atomically: the
// data goes to a temporary file in the same directory which is then renamed.
func Write(path, sheet string, header []string, rows [][]string) error {
	const op = "Write"

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%s: failed to create directory %s: %w", op, dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%s: failed to create temporary file: %w", op, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	switch {
	case IsSpreadsheet(path):
		err = writeWorkbook(tmp, sheet, header, rows)
	case IsCSV(path):
		err = writeCSV(tmp, header, rows)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		tmp.Close()
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%s: failed to close temporary file: %w", op, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("%s: failed to replace %s: %w", op, path, err)
	}
	return nil
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	if err := writer.WriteAll(rows); err != nil {
		return err
	}
	return writer.Error()
}

func writeWorkbook(w io.Writer, sheet string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}
