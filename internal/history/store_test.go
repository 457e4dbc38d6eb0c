package history

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicecontrol/pkg/models"
)

func rec(invoice, po, amount string) models.HistoryRecord {
	return models.HistoryRecord{
		InvoiceNumber: invoice,
		PONumber:      po,
		InvoiceAmount: decimal.RequireFromString(amount),
		FileName:      invoice + ".pdf",
		BatchID:       "b1",
		ProcessedAt:   time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC),
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "invoice_history.csv"), zerolog.Nop())
	records, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Load() = %v, want empty", records)
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, name := range []string{"invoice_history.csv", "invoice_history.xlsx"} {
		t.Run(name, func(t *testing.T) {
			store := NewStore(filepath.Join(t.TempDir(), "data", name), zerolog.Nop())
			want := []models.HistoryRecord{rec("INV-1", "PO-1", "100.50"), rec("INV-2", "PO-2", "7")}

			if err := store.Save(want); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := store.Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("Load() returned %d records, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i].InvoiceNumber != want[i].InvoiceNumber ||
					got[i].PONumber != want[i].PONumber ||
					!got[i].InvoiceAmount.Equal(want[i].InvoiceAmount) ||
					!got[i].ProcessedAt.Equal(want[i].ProcessedAt) ||
					got[i].BatchID != want[i].BatchID {
					t.Errorf("record %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestLoadRejectsFileWithoutInvoiceColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	if err := os.WriteFile(path, []byte("po_number,invoice_amount\nPO-1,10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := NewStore(path, zerolog.Nop()).Load()
	if !errors.Is(err, ErrMalformedHistory) {
		t.Errorf("Load() error = %v, want ErrMalformedHistory", err)
	}
}

func TestMergeFirstOccurrenceWins(t *testing.T) {
	existing := []models.HistoryRecord{rec("INV-1", "PO-1", "10")}
	incoming := []models.HistoryRecord{rec("inv-1", "PO-9", "99"), rec("INV-2", "PO-2", "20")}

	merged := Merge(existing, incoming)
	if len(merged) != 2 {
		t.Fatalf("Merge() = %d records, want 2", len(merged))
	}
	if merged[0].PONumber != "PO-1" {
		t.Errorf("existing record replaced: %+v", merged[0])
	}

	again := Merge(merged, incoming)
	if !reflect.DeepEqual(again, merged) {
		t.Errorf("merging the same batch twice changed the history: %v vs %v", again, merged)
	}
}

func TestIndexLookup(t *testing.T) {
	idx := NewIndex([]models.HistoryRecord{rec("INV-2024-001", "PO-1", "10")})
	if _, ok := idx.Lookup(" inv 2024-001"); !ok {
		t.Error("Lookup() should match other spellings of the same number")
	}
	if _, ok := idx.Lookup("INV-2024-002"); ok {
		t.Error("Lookup() matched an unknown number")
	}
}

func TestTotal(t *testing.T) {
	got := Total([]models.HistoryRecord{rec("A1", "P", "10.25"), rec("A2", "P", "0.75")})
	if !got.Equal(decimal.NewFromInt(11)) {
		t.Errorf("Total() = %s, want 11", got)
	}
}
