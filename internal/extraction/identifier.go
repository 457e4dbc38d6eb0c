package extraction

import (
	"regexp"
	"strings"
)

var (
	reIdentifierSpace = regexp.MustCompile(`\s+`)
	reIdentifierJunk  = regexp.MustCompile(`[^A-Z0-9\-/_.]`)
)

// NormalizeIdentifier returns the canonical form of an invoice or PO number:
// upper case, inner whitespace turned into hyphens, only A-Z 0-9 - / _ .
// kept, and leading or trailing punctuation trimmed. Two identifiers refer
// to the same document when their canonical forms are equal.
func NormalizeIdentifier(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	s = reIdentifierSpace.ReplaceAllString(s, "-")
	s = reIdentifierJunk.ReplaceAllString(s, "")
	return strings.Trim(s, "-/_.")
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
