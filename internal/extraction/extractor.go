package extraction

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicecontrol/pkg/models"
	"invoicecontrol/pkg/services"
)

// Extractor is the rule-based field extractor.
type Extractor struct {
	source services.TextSource
	config Config
	log    zerolog.Logger
}

// NewExtractor creates an extractor reading text through source.
func NewExtractor(source services.TextSource, config Config, log zerolog.Logger) *Extractor {
	if config.PreviewLength < 0 {
		config.PreviewLength = 0
	}
	if config.TotalWindow <= 0 {
		config.TotalWindow = DefaultConfig().TotalWindow
	}
	if config.AmountPolicy == "" {
		config.AmountPolicy = AmountPolicyFirstLabeled
	}
	return &Extractor{
		source: source,
		config: config,
		log:    log,
	}
}

// Extract implements services.FieldExtractor.
func (e *Extractor) Extract(ctx context.Context, doc models.InvoiceDocument) models.ExtractedFields {
	fields, _ := e.Analyze(ctx, doc)
	return fields
}

// Analyze extracts the fields of doc and also returns the normalized text
// they were read from, for passes that build on the rule-based result.
func (e *Extractor) Analyze(ctx context.Context, doc models.InvoiceDocument) (models.ExtractedFields, string) {
	raw, err := e.source.TextOf(ctx, doc.Content)
	if err != nil {
		e.log.Warn().
			Err(err).
			Str("file", doc.FileName).
			Msg("Could not read text layer, treating document as empty")
	}

	text := NormalizeText(raw)
	fields := e.ExtractFromText(text)
	if text == "" {
		fields.Note = emptyTextNote(err)
	}

	e.log.Debug().
		Str("file", doc.FileName).
		Int("text_length", len(text)).
		Str("po_number", fields.PONumber).
		Str("invoice_number", fields.InvoiceNumber).
		Str("invoice_amount", formatNullAmount(fields.InvoiceAmount)).
		Msg("Extracted invoice fields")

	return fields, text
}

// ExtractFromText runs the rules over text. It is pure and is the entry
// point for callers that already hold the document text.
func (e *Extractor) ExtractFromText(text string) models.ExtractedFields {
	text = NormalizeText(text)
	if text == "" {
		return models.ExtractedFields{}
	}

	var fields models.ExtractedFields
	fields.RawTextPreview = Preview(text, e.config.PreviewLength)
	fields.PONumber = e.findPONumber(text)
	fields.InvoiceNumber = e.findInvoiceNumber(text, fields.PONumber)
	if amount, ok := e.findAmount(text); ok {
		fields.InvoiceAmount = decimal.NewNullDecimal(amount)
	}
	return fields
}

func (e *Extractor) findPONumber(text string) string {
	for _, rule := range poRules {
		for _, candidate := range rule.candidates(text) {
			if !hasDigit(candidate) {
				continue
			}
			e.log.Trace().Str("rule", rule.name).Str("candidate", candidate).Msg("PO number matched")
			return candidate
		}
	}
	return ""
}

func (e *Extractor) findInvoiceNumber(text, poNumber string) string {
	po := NormalizeIdentifier(poNumber)
	acceptable := func(canonical string) bool {
		return canonical != "" && hasDigit(canonical) && canonical != po && !looksLikePO(canonical)
	}

	for _, rules := range [][]idRule{strictInvoiceRules, labeledInvoiceRules} {
		for _, rule := range rules {
			for _, candidate := range rule.candidates(text) {
				canonical := NormalizeIdentifier(candidate)
				if !acceptable(canonical) {
					continue
				}
				e.log.Trace().Str("rule", rule.name).Str("candidate", canonical).Msg("Invoice number matched")
				return canonical
			}
		}
	}

	// Heuristic tokens: longest wins, first seen on ties.
	var best string
	for _, candidate := range heuristicInvoiceRule.candidates(text) {
		canonical := NormalizeIdentifier(candidate)
		if len(canonical) < minHeuristicLength || !acceptable(canonical) {
			continue
		}
		if len(canonical) > len(best) {
			best = canonical
		}
	}
	if best != "" {
		e.log.Trace().Str("rule", heuristicInvoiceRule.name).Str("candidate", best).Msg("Invoice number matched")
	}
	return best
}

func (e *Extractor) findAmount(text string) (decimal.Decimal, bool) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, rule := range amountRules {
		for _, candidate := range rule.candidates(text) {
			amount, ok := ParseAmount(candidate)
			if !ok {
				continue
			}
			if e.config.AmountPolicy != AmountPolicyLargest {
				e.log.Trace().Str("rule", rule.name).Str("amount", amount.String()).Msg("Amount matched")
				return amount, true
			}
			if !found || amount.GreaterThan(best) {
				best, found = amount, true
			}
		}
	}
	if e.config.AmountPolicy == AmountPolicyLargest {
		for _, candidate := range currencyAmounts(text) {
			if amount, ok := ParseAmount(candidate); ok && (!found || amount.GreaterThan(best)) {
				best, found = amount, true
			}
		}
	}
	if found {
		e.log.Trace().Str("policy", string(e.config.AmountPolicy)).Str("amount", best.String()).Msg("Amount matched")
		return best, true
	}

	if candidate, ok := currencyFallback(text, e.config.TotalWindow); ok {
		if amount, ok := ParseAmount(candidate); ok {
			e.log.Trace().Str("rule", "currency-fallback").Str("amount", amount.String()).Msg("Amount matched")
			return amount, true
		}
	}
	return decimal.Zero, false
}

func emptyTextNote(err error) string {
	switch {
	case err == nil:
		return "no text extracted from document"
	case errors.Is(err, ErrNoTextLayer):
		return "no embedded text layer (scanned document?)"
	case errors.Is(err, ErrInvalidPDF):
		return "not a valid PDF document"
	default:
		return "text extraction failed: " + err.Error()
	}
}

func formatNullAmount(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return FormatAmount(d.Decimal)
}
