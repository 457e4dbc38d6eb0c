// Package history persists the invoices accepted across runs so that an
// invoice number is never charged twice.
package history

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicecontrol/internal/extraction"
	"invoicecontrol/internal/tabular"
	"invoicecontrol/pkg/models"
)

// History file columns, in file order.
const (
	ColInvoiceNumber = "invoice_number"
	ColPONumber      = "po_number"
	ColInvoiceAmount = "invoice_amount"
	ColFileName      = "file_name"
	ColBatchID       = "batch_id"
	ColProcessedAt   = "processed_at"
)

// Columns is the header written to the history file.
var Columns = []string{ColInvoiceNumber, ColPONumber, ColInvoiceAmount, ColFileName, ColBatchID, ColProcessedAt}

// SheetName is used when the history is kept in a workbook.
const SheetName = "History"

// ErrMalformedHistory is returned when the history file lacks the
// invoice_number column.
var ErrMalformedHistory = errors.New("history file has no invoice_number column")

// Store reads and rewrites the history file at a fixed path
type Store struct {
	path string
	log  zerolog.Logger
}

// NewStore creates a store for path. The file need not exist yet.
func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{path: path, log: log}
}

// Path returns the history file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the persisted records. A missing file is an empty history.
func (s *Store) Load() ([]models.HistoryRecord, error) {
	const op = "Load"

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		s.log.Info().Str("path", s.path).Msg("No history file yet, starting empty")
		return nil, nil
	}

	table, err := tabular.Read(s.path, SheetName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if table.Header == nil {
		return nil, nil
	}
	if table.Column(ColInvoiceNumber) < 0 {
		return nil, fmt.Errorf("%s: %s: %w", op, s.path, ErrMalformedHistory)
	}

	var (
		colInvoice = table.Column(ColInvoiceNumber)
		colPO      = table.Column(ColPONumber)
		colAmount  = table.Column(ColInvoiceAmount)
		colFile    = table.Column(ColFileName)
		colBatch   = table.Column(ColBatchID)
		colAt      = table.Column(ColProcessedAt)
	)

	records := make([]models.HistoryRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		invoice := extraction.NormalizeIdentifier(table.Value(row, colInvoice))
		if invoice == "" {
			continue
		}
		rec := models.HistoryRecord{
			InvoiceNumber: invoice,
			PONumber:      table.Value(row, colPO),
			FileName:      table.Value(row, colFile),
			BatchID:       table.Value(row, colBatch),
		}
		if amount, ok := extraction.ParseAmount(table.Value(row, colAmount)); ok {
			rec.InvoiceAmount = amount
		}
		if raw := table.Value(row, colAt); raw != "" {
			if at, err := time.Parse(time.RFC3339, raw); err == nil {
				rec.ProcessedAt = at.UTC()
			} else {
				s.log.Warn().Str("invoice_number", invoice).Str("processed_at", raw).Msg("Unreadable history timestamp")
			}
		}
		records = append(records, rec)
	}

	s.log.Debug().Str("path", s.path).Int("records", len(records)).Msg("Loaded invoice history")
	return records, nil
}

// Save replaces the history file with records. The write is atomic.
func (s *Store) Save(records []models.HistoryRecord) error {
	const op = "Save"

	if err := tabular.Write(s.path, SheetName, Columns, Rows(records)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info().Str("path", s.path).Int("records", len(records)).Msg("Saved invoice history")
	return nil
}

// Rows renders records in Columns order.
func Rows(records []models.HistoryRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.InvoiceNumber,
			r.PONumber,
			extraction.FormatAmount(r.InvoiceAmount),
			r.FileName,
			r.BatchID,
			FormatTime(r.ProcessedAt),
		})
	}
	return rows
}

// FormatTime renders a timestamp the way the history file stores it.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// Merge appends incoming to existing, dropping any record whose invoice
// number is already present. The first occurrence wins, so merging the
// same batch twice is a no-op.
func Merge(existing, incoming []models.HistoryRecord) []models.HistoryRecord {
	merged := make([]models.HistoryRecord, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, group := range [][]models.HistoryRecord{existing, incoming} {
		for _, r := range group {
			key := extraction.NormalizeIdentifier(r.InvoiceNumber)
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged
}

// Index answers "was this invoice number accepted before?".
type Index map[string]models.HistoryRecord

// NewIndex builds an index keyed by canonical invoice number. The first
// record of a number wins.
func NewIndex(records []models.HistoryRecord) Index {
	idx := make(Index, len(records))
	for _, r := range records {
		key := extraction.NormalizeIdentifier(r.InvoiceNumber)
		if key == "" {
			continue
		}
		if _, ok := idx[key]; !ok {
			idx[key] = r
		}
	}
	return idx
}

// Lookup returns the earlier acceptance of invoiceNumber, if any.
func (i Index) Lookup(invoiceNumber string) (models.HistoryRecord, bool) {
	r, ok := i[extraction.NormalizeIdentifier(invoiceNumber)]
	return r, ok
}

// Record converts an accepted result into a history record.
func Record(result models.InvoiceResult) models.HistoryRecord {
	return models.HistoryRecord{
		InvoiceNumber: result.InvoiceNumber,
		PONumber:      result.PONumber,
		InvoiceAmount: result.InvoiceAmount.Decimal,
		FileName:      result.FileName,
		BatchID:       result.BatchID,
		ProcessedAt:   result.ProcessedAt,
	}
}

// Total sums the amounts of records.
func Total(records []models.HistoryRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		total = total.Add(r.InvoiceAmount)
	}
	return total
}
