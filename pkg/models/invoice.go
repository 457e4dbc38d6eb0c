package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceDocument is a single invoice file handed to an extractor.
type InvoiceDocument struct {
	FileName string // Base name of the source file, used in reports
	Content  []byte // Raw PDF bytes
}

// ExtractedFields holds the values pulled out of one invoice document.
// Missing values stay empty (or invalid for the amount); extraction never
// invents a value it could not find.
type ExtractedFields struct {
	PONumber       string              `json:"po_number,omitempty"`      // Trimmed PO candidate as it appears in the text
	InvoiceNumber  string              `json:"invoice_number,omitempty"` // Canonical invoice identifier
	InvoiceAmount  decimal.NullDecimal `json:"invoice_amount"`           // Amount to pay, including taxes
	RawTextPreview string              `json:"raw_text_preview,omitempty"`
	Note           string              `json:"note,omitempty"` // Diagnostic, e.g. why the text was empty
}

// HasInvoiceNumber reports whether an invoice number was found.
func (f ExtractedFields) HasInvoiceNumber() bool {
	return f.InvoiceNumber != ""
}

// HasPONumber reports whether a PO number was found.
func (f ExtractedFields) HasPONumber() bool {
	return f.PONumber != ""
}

// Missing lists the names of the fields that could not be extracted.
func (f ExtractedFields) Missing() []string {
	var missing []string
	if f.PONumber == "" {
		missing = append(missing, "po_number")
	}
	if f.InvoiceNumber == "" {
		missing = append(missing, "invoice_number")
	}
	if !f.InvoiceAmount.Valid {
		missing = append(missing, "invoice_amount")
	}
	return missing
}

// InvoiceResult is one row of the control report.
type InvoiceResult struct {
	// Run metadata
	BatchID     string    `json:"batch_id"`
	ProcessedAt time.Time `json:"processed_at"`
	FileName    string    `json:"file_name"`

	// Extracted values
	PONumber      string              `json:"po_number"`
	InvoiceNumber string              `json:"invoice_number"`
	InvoiceAmount decimal.NullDecimal `json:"invoice_amount"`

	// Decision
	Status Status `json:"status"`
	Reason string `json:"reason"`

	// Budget snapshot, only set when the PO was found and the amount usable
	RemainingBefore decimal.NullDecimal `json:"remaining_before"`
	RemainingAfter  decimal.NullDecimal `json:"remaining_after"`

	// Register metadata
	ClientName  string `json:"client_name,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
}
