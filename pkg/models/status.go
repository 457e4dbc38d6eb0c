package models

import "fmt"

// Status is the reconciliation outcome of one invoice.
type Status string

const (
	StatusValid            Status = "VALID"             // Accepted and charged against the PO
	StatusNeedsReview      Status = "NEEDS_REVIEW"      // Invoice number could not be extracted
	StatusInvalid          Status = "INVALID"           // PO number or amount missing or unusable
	StatusOverbudget       Status = "OVERBUDGET"        // Amount exceeds the live remaining budget
	StatusPONotFound       Status = "PO_NOT_FOUND"      // PO number absent from the register
	StatusDuplicate        Status = "DUPLICATE"         // Invoice number already seen in this batch
	StatusDuplicateHistory Status = "DUPLICATE_HISTORY" // Invoice number accepted in an earlier run
	StatusError            Status = "ERROR"             // Extraction failed unexpectedly
)

// Statuses lists every status in report order.
var Statuses = []Status{
	StatusValid,
	StatusNeedsReview,
	StatusInvalid,
	StatusOverbudget,
	StatusPONotFound,
	StatusDuplicate,
	StatusDuplicateHistory,
	StatusError,
}

// ParseStatus converts a report value back into a Status.
func ParseStatus(s string) (Status, error) {
	for _, status := range Statuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

func (s Status) String() string {
	return string(s)
}
