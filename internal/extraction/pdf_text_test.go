package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicecontrol/pkg/models"
)

// buildPDF writes a one-page PDF whose content stream is given verbatim,
// with a correct cross-reference table.
func buildPDF(content string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content)+1, content),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestPDFTextSourceKeepsLinesApart(t *testing.T) {
	// Lines positioned with Td, the way most generators lay out text.
	doc := buildPDF(strings.Join([]string{
		"BT /F1 12 Tf 72 720 Td",
		"(Invoice No: INV-001) Tj",
		"0 -20 Td (Purchase Order: PO-123) Tj",
		"0 -20 Td (Total TTC) Tj 120 0 Td (1200.00 EUR) Tj",
		"ET",
	}, "\n"))

	text, err := NewPDFTextSource(zerolog.Nop()).TextOf(context.Background(), doc)
	if err != nil {
		t.Fatalf("TextOf() error = %v", err)
	}

	lines := strings.Split(NormalizeText(text), "\n")
	want := map[string]bool{
		"Invoice No: INV-001":    false,
		"Purchase Order: PO-123": false,
		"Total TTC 1200.00 EUR":  false,
	}
	for _, line := range lines {
		if _, ok := want[line]; ok {
			want[line] = true
		}
	}
	for line, seen := range want {
		if !seen {
			t.Errorf("line %q not found in %q", line, text)
		}
	}

	extractor := NewExtractor(NewPDFTextSource(zerolog.Nop()), DefaultConfig(), zerolog.Nop())
	fields := extractor.Extract(context.Background(), models.InvoiceDocument{FileName: "a.pdf", Content: doc})
	if fields.PONumber != "PO-123" || fields.InvoiceNumber != "INV-001" {
		t.Errorf("fields = %+v", fields)
	}
	if !fields.InvoiceAmount.Valid || !fields.InvoiceAmount.Decimal.Equal(decimal.RequireFromString("1200")) {
		t.Errorf("amount = %v, want 1200", fields.InvoiceAmount)
	}
}

func TestPDFTextSourceJoinsKernedRuns(t *testing.T) {
	doc := buildPDF("BT /F1 12 Tf 72 720 Td [(Inv) -20 (oice No: INV-042)] TJ ET")

	text, err := NewPDFTextSource(zerolog.Nop()).TextOf(context.Background(), doc)
	if err != nil {
		t.Fatalf("TextOf() error = %v", err)
	}
	if !strings.Contains(text, "Invoice No: INV-042") {
		t.Errorf("text = %q", text)
	}
}

func TestPDFTextSourceWithoutText(t *testing.T) {
	_, err := NewPDFTextSource(zerolog.Nop()).TextOf(context.Background(), buildPDF("0 0 m 10 10 l S"))
	if err == nil || !strings.Contains(err.Error(), ErrNoTextLayer.Error()) {
		t.Errorf("TextOf() error = %v, want ErrNoTextLayer", err)
	}
}
