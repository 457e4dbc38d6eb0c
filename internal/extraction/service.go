// Package extraction pulls PO numbers, invoice numbers and amounts out of
// invoice PDFs.
//
// The pipeline is text-based: a TextSource yields the embedded text layer,
// NormalizeText canonicalizes it, and ordered rule lists produce candidates
// for each field. Rules are evaluated most specific first; the first usable
// candidate wins unless the amount policy asks for the largest labeled total.
//
// Every extractor is total: it returns whatever it found and records the
// reason for an empty result in ExtractedFields.Note instead of failing.
package extraction

import (
	"fmt"
	"strings"
)

// AmountPolicy decides between several amount candidates found in a document.
type AmountPolicy string

const (
	// AmountPolicyFirstLabeled keeps the candidate of the most specific
	// matching label.
	AmountPolicyFirstLabeled AmountPolicy = "first-labeled"

	// AmountPolicyLargest keeps the largest candidate across all labels.
	AmountPolicyLargest AmountPolicy = "largest"
)

// ParseAmountPolicy validates a policy name from configuration.
func ParseAmountPolicy(s string) (AmountPolicy, error) {
	switch AmountPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", AmountPolicyFirstLabeled:
		return AmountPolicyFirstLabeled, nil
	case AmountPolicyLargest:
		return AmountPolicyLargest, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAmountPolicy, s)
	}
}

// Config tunes the rule-based extractor.
type Config struct {
	AmountPolicy  AmountPolicy // Tie-break between amount candidates
	PreviewLength int          // Characters of normalized text kept in RawTextPreview
	TotalWindow   int          // Characters after a "Total TTC" label searched by the currency fallback
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		AmountPolicy:  AmountPolicyFirstLabeled,
		PreviewLength: 300,
		TotalWindow:   200,
	}
}
