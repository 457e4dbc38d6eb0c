// Package reconciliation decides the status of every invoice of a batch
// against the PO budgets and the invoice history.
//
// Invoices are folded one at a time in file name order. Each VALID invoice
// consumes budget, so the outcome of an invoice depends on the ones before
// it in the same batch.
package reconciliation

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicecontrol/internal/extraction"
	"invoicecontrol/internal/history"
	"invoicecontrol/internal/register"
	"invoicecontrol/pkg/models"
)

// Engine reconciles the invoices of one batch. It owns the ledger for the
// duration of the batch and is not safe for concurrent use.
type Engine struct {
	ledger      *register.Ledger
	history     history.Index
	batchID     string
	processedAt time.Time

	seen     map[string]string // canonical invoice number -> first file
	accepted []models.HistoryRecord

	log zerolog.Logger
}

// NewEngine creates an engine charging ledger and checking hist.
func NewEngine(ledger *register.Ledger, hist history.Index, batchID string, processedAt time.Time, log zerolog.Logger) *Engine {
	if hist == nil {
		hist = history.Index{}
	}
	return &Engine{
		ledger:      ledger,
		history:     hist,
		batchID:     batchID,
		processedAt: processedAt.UTC(),
		seen:        make(map[string]string),
		log:         log,
	}
}

// ReconcileAll reconciles outcomes in order.
func (e *Engine) ReconcileAll(outcomes []Outcome) []models.InvoiceResult {
	results := make([]models.InvoiceResult, 0, len(outcomes))
	for _, o := range outcomes {
		results = append(results, e.Reconcile(o))
	}
	return results
}

// Reconcile decides the status of one invoice. The first matching rule wins:
// ERROR, NEEDS_REVIEW, DUPLICATE, DUPLICATE_HISTORY, INVALID, PO_NOT_FOUND,
// OVERBUDGET, then VALID.
func (e *Engine) Reconcile(o Outcome) models.InvoiceResult {
	result := models.InvoiceResult{
		BatchID:       e.batchID,
		ProcessedAt:   e.processedAt,
		FileName:      o.FileName,
		PONumber:      strings.TrimSpace(o.Fields.PONumber),
		InvoiceNumber: extraction.NormalizeIdentifier(o.Fields.InvoiceNumber),
		InvoiceAmount: o.Fields.InvoiceAmount,
	}

	result.Status, result.Reason = e.decide(&result, o)

	event := e.log.Debug()
	if result.Status != models.StatusValid {
		event = e.log.Info()
	}
	event.
		Str("file", result.FileName).
		Str("invoice_number", result.InvoiceNumber).
		Str("po_number", result.PONumber).
		Str("status", result.Status.String()).
		Str("reason", result.Reason).
		Msg("Reconciled invoice")

	return result
}

func (e *Engine) decide(result *models.InvoiceResult, o Outcome) (models.Status, string) {
	if o.Failed() {
		return models.StatusError, fmt.Sprintf("Extraction error: %v", o.Err)
	}

	invoice := result.InvoiceNumber
	if invoice == "" {
		reason := "Invoice number not found"
		if o.Fields.Note != "" {
			reason += "; " + o.Fields.Note
		}
		return models.StatusNeedsReview, reason
	}

	if first, dup := e.seen[invoice]; dup {
		return models.StatusDuplicate, fmt.Sprintf("Duplicate invoice number in this batch (first seen in %s)", first)
	}
	e.seen[invoice] = result.FileName

	if prev, dup := e.history.Lookup(invoice); dup {
		return models.StatusDuplicateHistory, fmt.Sprintf("Invoice already processed in batch %s (%s)", prev.BatchID, prev.FileName)
	}

	if result.PONumber == "" {
		return models.StatusInvalid, "PO number not found"
	}
	if !result.InvoiceAmount.Valid {
		return models.StatusInvalid, "Invoice amount not found"
	}
	amount := result.InvoiceAmount.Decimal
	if !amount.IsPositive() {
		return models.StatusInvalid, fmt.Sprintf("Invoice amount %s is not positive", extraction.FormatAmount(amount))
	}

	po, ok := e.ledger.Lookup(result.PONumber)
	if !ok {
		return models.StatusPONotFound, fmt.Sprintf("PO %s not found in register", result.PONumber)
	}
	result.PONumber = po.PONumber
	result.ClientName = po.ClientName
	result.ProjectName = po.ProjectName

	if !po.Covers(amount) {
		result.RemainingBefore = decimal.NewNullDecimal(po.RemainingBudget)
		result.RemainingAfter = decimal.NewNullDecimal(po.RemainingBudget)
		return models.StatusOverbudget, fmt.Sprintf("Invoice %s exceeds remaining budget %s",
			extraction.FormatAmount(amount), extraction.FormatAmount(po.RemainingBudget))
	}

	before, after := po.Charge(amount)
	result.RemainingBefore = decimal.NewNullDecimal(before)
	result.RemainingAfter = decimal.NewNullDecimal(after)
	e.accepted = append(e.accepted, history.Record(*result))

	return models.StatusValid, "OK"
}

// Accepted returns the history records of the VALID invoices so far.
func (e *Engine) Accepted() []models.HistoryRecord {
	out := make([]models.HistoryRecord, len(e.accepted))
	copy(out, e.accepted)
	return out
}

// Ledger returns the ledger with the balances after the reconciled invoices.
func (e *Engine) Ledger() *register.Ledger {
	return e.ledger
}
