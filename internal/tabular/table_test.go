package tabular

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestReadCSV(t *testing.T) {
	input := "\ufeffPO_Number, Total_PO_Value\n\nPO-1,1000\nPO-2\n"
	table, err := ReadCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if got := table.Column("PO_Number"); got != 0 {
		t.Errorf("Column(PO_Number) = %d, want 0", got)
	}
	if got := table.Column("total_po_value"); got != 1 {
		t.Errorf("Column(total_po_value) = %d, want 1", got)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("rows = %d, want 2 (blank rows dropped)", len(table.Rows))
	}
	if got := table.Value(table.Rows[1], 1); got != "" {
		t.Errorf("Value on short row = %q, want empty", got)
	}
	if missing := table.MissingColumns("PO_Number", "Client_Name"); !reflect.DeepEqual(missing, []string{"Client_Name"}) {
		t.Errorf("MissingColumns() = %v", missing)
	}
}

func TestWriteAndReadBack(t *testing.T) {
	header := []string{"invoice_number", "po_number"}
	rows := [][]string{{"INV-1", "PO-1"}, {"INV-2", "PO-2"}}

	for _, name := range []string{"history.csv", "history.xlsx"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			if err := Write(path, "History", header, rows); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			table, err := Read(path, "History")
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if !reflect.DeepEqual(table.Header, header) {
				t.Errorf("Header = %v, want %v", table.Header, header)
			}
			if !reflect.DeepEqual(table.Rows, rows) {
				t.Errorf("Rows = %v, want %v", table.Rows, rows)
			}

			// Overwrite in place.
			if err := Write(path, "History", header, rows[:1]); err != nil {
				t.Fatalf("second Write() error = %v", err)
			}
			table, err = Read(path, "History")
			if err != nil {
				t.Fatalf("Read() error = %v", err)
			}
			if len(table.Rows) != 1 {
				t.Errorf("rows after overwrite = %d, want 1", len(table.Rows))
			}
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	_, err := Read("register.json", "")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Read() error = %v, want ErrUnsupportedFormat", err)
	}
	err = Write(filepath.Join(t.TempDir(), "x.txt"), "", nil, nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Write() error = %v, want ErrUnsupportedFormat", err)
	}
}
