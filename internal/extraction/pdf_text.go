package extraction

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog"
)

// PDFTextSource reads the embedded text layer of a PDF. It does no OCR.
type PDFTextSource struct {
	log zerolog.Logger
}

// NewPDFTextSource creates a text source backed by the pure Go PDF reader.
func NewPDFTextSource(log zerolog.Logger) *PDFTextSource {
	return &PDFTextSource{log: log}
}

// TextOf implements services.TextSource. Parser panics on malformed input
// are turned into ErrUnreadablePDF.
func (s *PDFTextSource) TextOf(ctx context.Context, content []byte) (text string, err error) {
	const op = "TextOf"

	if err := ctx.Err(); err != nil {
		return "", WrapExtractionError(op, err, "")
	}
	if !bytes.HasPrefix(bytes.TrimLeft(content, "\x00\t\r\n "), []byte("%PDF")) {
		return "", WrapExtractionError(op, ErrInvalidPDF, "missing %PDF header")
	}

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = WrapExtractionError(op, ErrUnreadablePDF, fmt.Sprint(r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", WrapExtractionError(op, ErrUnreadablePDF, err.Error())
	}

	text = pageText(reader)

	if strings.TrimSpace(text) == "" {
		return "", WrapExtractionError(op, ErrNoTextLayer, fmt.Sprintf("%d page(s)", reader.NumPage()))
	}

	s.log.Debug().
		Int("pages", reader.NumPage()).
		Int("text_length", len(text)).
		Msg("Read PDF text layer")

	return text, nil
}

// textRun is a stretch of glyphs laid down left to right on one baseline.
type textRun struct {
	x, y, size float64
	text       strings.Builder
}

// pageText rebuilds the text line by line from glyph positions. Runs that
// share a baseline form one line, ordered left to right; lines go top to
// bottom. A gap wider than a fraction of the font size becomes a space, so
// kerned TJ pieces stay joined while Td-separated cells do not.
func pageText(reader *pdf.Reader) string {
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, line := range textLines(page.Content().Text) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func textLines(glyphs []pdf.Text) []string {
	var (
		runs []*textRun
		cur  *textRun
		endX float64
	)
	for _, g := range glyphs {
		if g.S == "\n" || g.S == "" {
			continue
		}
		tol := lineTolerance(g.FontSize)
		if cur == nil || math.Abs(g.Y-cur.y) > tol || g.X < endX-tol {
			cur = &textRun{x: g.X, y: g.Y, size: g.FontSize}
			runs = append(runs, cur)
		} else if g.X-endX > 0.15*math.Max(g.FontSize, 1) && !strings.HasSuffix(cur.text.String(), " ") {
			cur.text.WriteByte(' ')
		}
		cur.text.WriteString(g.S)
		endX = g.X + g.W
	}

	type row struct {
		y    float64
		runs []*textRun
	}
	var rows []*row
	for _, r := range runs {
		var target *row
		for _, candidate := range rows {
			if math.Abs(candidate.y-r.y) <= lineTolerance(r.size) {
				target = candidate
				break
			}
		}
		if target == nil {
			target = &row{y: r.y}
			rows = append(rows, target)
		}
		target.runs = append(target.runs, r)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })

	lines := make([]string, 0, len(rows))
	for _, rw := range rows {
		sort.SliceStable(rw.runs, func(i, j int) bool { return rw.runs[i].x < rw.runs[j].x })
		parts := make([]string, 0, len(rw.runs))
		for _, r := range rw.runs {
			parts = append(parts, strings.TrimSpace(r.text.String()))
		}
		lines = append(lines, strings.Join(parts, " "))
	}
	return lines
}

func lineTolerance(fontSize float64) float64 {
	return math.Max(fontSize, 2) / 2
}

// StaticTextSource serves documents whose content is already plain text.
// It backs the extract command's --text mode and tests.
type StaticTextSource struct{}

// TextOf implements services.TextSource.
func (StaticTextSource) TextOf(_ context.Context, content []byte) (string, error) {
	return string(content), nil
}
