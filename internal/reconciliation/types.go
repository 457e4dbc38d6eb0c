package reconciliation

import (
	"invoicecontrol/pkg/models"
)

// Outcome is the extraction result of one document, ready to reconcile.
type Outcome struct {
	FileName string                 // Base name of the document
	Fields   models.ExtractedFields // Whatever extraction found
	Err      error                  // Unexpected failure while reading or extracting
}

// Failed reports whether extraction broke down for this document.
func (o Outcome) Failed() bool {
	return o.Err != nil
}
