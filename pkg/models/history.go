package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// HistoryRecord remembers an invoice accepted in a previous run.
type HistoryRecord struct {
	InvoiceNumber string          `json:"invoice_number"` // Canonical invoice identifier, the dedup key
	PONumber      string          `json:"po_number"`      // PO the invoice was charged against
	InvoiceAmount decimal.Decimal `json:"invoice_amount"` // Charged amount
	FileName      string          `json:"file_name"`      // Source document of the accepted invoice
	BatchID       string          `json:"batch_id"`       // Run that accepted the invoice
	ProcessedAt   time.Time       `json:"processed_at"`   // UTC timestamp of that run
}
