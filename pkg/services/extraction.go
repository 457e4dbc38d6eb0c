package services

import (
	"context"

	"invoicecontrol/pkg/models"
)

// TextSource turns document bytes into plain text
type TextSource interface {
	// TextOf returns the text layer of the document. An error means the text
	// could not be read; callers treat it as an empty document.
	TextOf(ctx context.Context, content []byte) (string, error)
}

// FieldExtractor pulls invoice fields out of a document
type FieldExtractor interface {
	// Extract never fails: fields it cannot find are left empty and the
	// reason, if any, lands in ExtractedFields.Note.
	Extract(ctx context.Context, doc models.InvoiceDocument) models.ExtractedFields
}

// ResultPublisher mirrors a finished batch to an external destination
type ResultPublisher interface {
	PublishResults(ctx context.Context, batchID string, results []models.InvoiceResult) error
}
