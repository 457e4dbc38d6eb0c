package extraction

import (
	"regexp"
	"strings"
)

// idRule finds identifier candidates in normalized text, in document order.
type idRule struct {
	name string
	re   *regexp.Regexp
	// capture builds the candidate from the first submatch. It defaults to
	// trimming trailing punctuation.
	capture func(group string) string
}

func (r idRule) candidates(text string) []string {
	var out []string
	for _, m := range r.re.FindAllStringSubmatch(text, -1) {
		if len(m) < 2 {
			continue
		}
		var c string
		if r.capture != nil {
			c = r.capture(m[1])
		} else {
			c = trimCandidate(m[1])
		}
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func trimCandidate(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".-/_")
}

// idToken is a single identifier-looking token.
const idToken = `([A-Z0-9][A-Z0-9\-/_.]*)`

// numberLabel matches the usual "number" spellings after a document label.
const numberLabel = `(?:(?:number|numero|numéro|num|no|nr)\b\.?|n°|#)`

// poRules are ordered from the most explicit label to the bare token.
var poRules = []idRule{
	{
		name: "purchase-order",
		re:   regexp.MustCompile(`(?i)\bpurchase[ \-]order\s*` + numberLabel + `?\s*[:#]?\s*` + idToken),
	},
	{
		name: "bon-de-commande",
		re:   regexp.MustCompile(`(?i)\bbon\s+de\s+commande\s*` + numberLabel + `?\s*[:#]?\s*` + idToken),
	},
	{
		name: "po-reference",
		re:   regexp.MustCompile(`(?i)\bP\.?O\.?\s*ref(?:erence|\.)?\s*[:#]?\s*` + idToken),
	},
	{
		name: "po-label",
		re:   regexp.MustCompile(`(?i)\bP\.?O\b\.?\s*` + numberLabel + `?\s*[:#]?\s*` + idToken),
	},
	{
		name: "bc-label",
		re:   regexp.MustCompile(`(?i)\bBC\s*` + numberLabel + `?\s*[:#]\s*` + idToken),
	},
	{
		name: "po-token",
		re:   regexp.MustCompile(`(?i)\b(PO[\-_/]?\d[A-Z0-9\-/_.]*)`),
	},
}

// strictInvoiceRules match tokens that carry their own INV prefix.
var strictInvoiceRules = []idRule{
	{
		name: "inv-token",
		re:   regexp.MustCompile(`(?i)\b(INV(?:OICE)?[\-_/]?\d[A-Z0-9\-/_.]*)`),
	},
	{
		name: "inv-prefixed-token",
		re:   regexp.MustCompile(`(?i)\b(INV(?:OICE)?[\-_/]?[A-Z]{1,4}[\-_/]?\d[A-Z0-9\-/_.]*)`),
	},
}

// labelTail captures the rest of the line after a label; leadingIdentifier
// turns it into a candidate.
const labelTail = `\s*[:#]?\s*([^\n]*)`

// labeledInvoiceRules match an invoice label followed by the identifier.
var labeledInvoiceRules = []idRule{
	{
		name:    "invoice-label",
		re:      regexp.MustCompile(`(?i)\binvoice\s*` + numberLabel + labelTail),
		capture: leadingIdentifier,
	},
	{
		name:    "facture-label",
		re:      regexp.MustCompile(`(?i)\bfacture\s*` + numberLabel + `?` + labelTail),
		capture: leadingIdentifier,
	},
	{
		name:    "bill-label",
		re:      regexp.MustCompile(`(?i)\bbill\s*` + numberLabel + labelTail),
		capture: leadingIdentifier,
	},
	{
		name:    "document-label",
		re:      regexp.MustCompile(`(?i)\bdocument\s*` + numberLabel + labelTail),
		capture: leadingIdentifier,
	},
	{
		name:    "reference-label",
		re:      regexp.MustCompile(`(?i)\br[ée]f[ée]rence\s*` + numberLabel + `?` + labelTail),
		capture: leadingIdentifier,
	},
}

// heuristicInvoiceRule finds loose document tokens; the longest one wins.
var heuristicInvoiceRule = idRule{
	name: "document-token",
	re:   regexp.MustCompile(`(?i)\b((?:INV|FCT|FA|BILL)[A-Z0-9\-/_.]*\d[A-Z0-9\-/_.]*)`),
}

// minHeuristicLength filters out short noise tokens such as "FA1".
const minHeuristicLength = 6

// maxContinuationDigits bounds the digit groups appended to a labeled
// identifier, so "FA 2024 001" is read whole but a trailing phone number
// is not.
const maxContinuationDigits = 6

// leadingIdentifier reads the first token of a label tail and appends the
// pure digit groups that follow it.
func leadingIdentifier(tail string) string {
	fields := strings.Fields(tail)
	if len(fields) == 0 {
		return ""
	}
	first := trimCandidate(fields[0])
	if first == "" || !isIdentifierStart(first[0]) {
		return ""
	}
	parts := []string{first}
	for _, f := range fields[1:] {
		if len(f) > maxContinuationDigits || !allDigits(f) {
			break
		}
		parts = append(parts, f)
	}
	return strings.Join(parts, " ")
}

func isIdentifierStart(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

var rePOLooking = regexp.MustCompile(`^(?:P\.?O\.?|PURCHASE|BON|BC)(?:[\-_/.]|\d|$)`)

// looksLikePO reports whether a canonical identifier is really a PO number.
func looksLikePO(canonical string) bool {
	return rePOLooking.MatchString(canonical)
}

// amountNumber is a number with optional grouping and up to two decimals.
const amountNumber = `(-?\d{1,3}(?:[ .,']\d{3})+(?:[.,]\d{1,2})?|-?\d+(?:[.,]\d{1,2})?)`

// amountEnd rejects a number directly followed by another digit group or
// a percent sign, so a VAT rate is never read as the total.
const amountEnd = `(?:$|\n|[^\d%\s]| +(?:[^\d%\s]|\n|$))`

// labelGap allows a few words, a currency sign, line breaks or a VAT rate
// between a label and its amount.
const labelGap = `(?:[^\d]|\d+(?:[.,]\d+)?\s?%){0,60}?`

// amountRule finds labeled totals. skip filters out matches whose label
// qualifier shows the number is not the amount to pay.
type amountRule struct {
	name string
	re   *regexp.Regexp
	skip func(text string, match []int) bool
}

func (r amountRule) candidates(text string) []string {
	var out []string
	for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
		if r.skip != nil && r.skip(text, m) {
			continue
		}
		// The number is always the last group.
		n := len(m)
		out = append(out, text[m[n-2]:m[n-1]])
	}
	return out
}

var amountRules = []amountRule{
	{
		name: "total-ttc",
		re:   regexp.MustCompile(`(?i)\btotal\s*T\.?\s?T\.?\s?C\b\.?` + labelGap + amountNumber + amountEnd),
	},
	{
		name: "amount-due",
		re:   regexp.MustCompile(`(?i)(?:\b(?:net|total|montant)\s*[àa]\s*payer|\bamount\s*due|\bbalance\s*due)` + labelGap + amountNumber + amountEnd),
	},
	{
		name: "total",
		re: regexp.MustCompile(`(?i)\b(?:grand\s*total|total\s*amount|total\s*due|total)\b` +
			`(\s*\(?\s*(?:HT|H\.T\.?|hors\s*taxes?|excl\w*|net|before\s*tax\w*|TVA|VAT|taxes?)\b)?` +
			labelGap + amountNumber + amountEnd),
		skip: func(text string, m []int) bool {
			if m[2] >= 0 {
				return true
			}
			return precededBySub(text, m[0])
		},
	},
	{
		name: "montant-ttc",
		re:   regexp.MustCompile(`(?i)\bmontant\s*(?:TTC|total)\b` + labelGap + amountNumber + amountEnd),
	},
}

// precededBySub catches "Sub-total" and "Sub total", which the word
// boundary in front of "total" lets through.
func precededBySub(text string, start int) bool {
	from := start - 4
	if from < 0 {
		from = 0
	}
	return strings.Contains(strings.ToLower(text[from:start]), "sub")
}

var (
	reTotalTTCLabel  = regexp.MustCompile(`(?i)\btotal\s*T\.?\s?T\.?\s?C\b\.?`)
	reCurrencyAmount = regexp.MustCompile(`(?i)` + amountNumber + `\s?(?:€|\$|£|\b(?:EUR|USD|GBP|CHF|MAD|DH|XOF|TND|CAD)\b)`)
)

// currencyFallback returns the last currency amount shortly after a
// "Total TTC" label, or else the first currency amount in the document.
func currencyFallback(text string, window int) (string, bool) {
	if loc := reTotalTTCLabel.FindStringIndex(text); loc != nil {
		end := loc[1] + window
		if end > len(text) {
			end = len(text)
		}
		if matches := reCurrencyAmount.FindAllStringSubmatch(text[loc[1]:end], -1); len(matches) > 0 {
			return matches[len(matches)-1][1], true
		}
	}
	if m := reCurrencyAmount.FindStringSubmatch(text); m != nil {
		return m[1], true
	}
	return "", false
}

// currencyAmounts returns every amount followed by a currency marker.
func currencyAmounts(text string) []string {
	matches := reCurrencyAmount.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}
