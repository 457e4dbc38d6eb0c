package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	reLineBreaks      = regexp.MustCompile(`\r\n?`)
	reHorizontalSpace = regexp.MustCompile(` {2,}`)
	reBlankLines      = regexp.MustCompile(`\n{3,}`)
)

// NormalizeText canonicalizes raw PDF text so the rules can rely on a single
// form: NFKC, LF line breaks, invisible characters removed, exotic spaces
// turned into plain spaces, runs of spaces collapsed, lines trimmed and
// at most one blank line between paragraphs.
//
// The function is idempotent.
func NormalizeText(raw string) string {
	if raw == "" {
		return ""
	}

	s := norm.NFKC.String(raw)
	s = reLineBreaks.ReplaceAllString(s, "\n")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n':
			return r
		case r == '\t':
			return ' '
		case unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			return -1
		case unicode.IsSpace(r):
			return ' '
		}
		return r
	}, s)
	s = reHorizontalSpace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = reBlankLines.ReplaceAllString(s, "\n\n")

	return strings.TrimSpace(s)
}

// Preview returns the first n characters of text.
func Preview(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
