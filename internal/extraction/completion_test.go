package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicecontrol/pkg/models"
)

type fakeCompleter struct {
	resp  *CompletionResponse
	err   error
	calls int
}

func (f *fakeCompleter) Complete(_ context.Context, _ string) (*CompletionResponse, error) {
	f.calls++
	return f.resp, f.err
}

func newAssisted(completer Completer, policy AmountPolicy) *AssistedExtractor {
	return NewAssistedExtractor(newTestExtractor(policy), completer, zerolog.Nop())
}

func doc(text string) models.InvoiceDocument {
	return models.InvoiceDocument{FileName: "doc.pdf", Content: []byte(text)}
}

func TestAssistedExtractorFillsMissingFields(t *testing.T) {
	completer := &fakeCompleter{resp: &CompletionResponse{
		PONumber:      "PO-1",
		InvoiceNumber: "inv 77",
		InvoiceAmount: "1 234,50",
	}}
	got := newAssisted(completer, AmountPolicyFirstLabeled).Extract(context.Background(), doc("Purchase Order: PO-900\nsee attachment"))

	if got.PONumber != "PO-900" {
		t.Errorf("PONumber = %q, rule-based value must be kept", got.PONumber)
	}
	if got.InvoiceNumber != "INV-77" {
		t.Errorf("InvoiceNumber = %q, want INV-77", got.InvoiceNumber)
	}
	if !got.InvoiceAmount.Valid || !got.InvoiceAmount.Decimal.Equal(decimal.RequireFromString("1234.50")) {
		t.Errorf("InvoiceAmount = %v, want 1234.50", got.InvoiceAmount)
	}
}

func TestAssistedExtractorSkipsCompleteDocuments(t *testing.T) {
	completer := &fakeCompleter{}
	got := newAssisted(completer, AmountPolicyFirstLabeled).Extract(context.Background(), doc(frenchInvoice))

	if completer.calls != 0 {
		t.Errorf("completer called %d times for a complete document", completer.calls)
	}
	if got.InvoiceNumber != "FA-2024-0153" {
		t.Errorf("InvoiceNumber = %q", got.InvoiceNumber)
	}
}

func TestAssistedExtractorSkipsEmptyText(t *testing.T) {
	completer := &fakeCompleter{}
	newAssisted(completer, AmountPolicyFirstLabeled).Extract(context.Background(), doc(""))
	if completer.calls != 0 {
		t.Errorf("completer called %d times for an empty document", completer.calls)
	}
}

func TestAssistedExtractorKeepsRulesOnFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("connection refused")}
	got := newAssisted(completer, AmountPolicyFirstLabeled).Extract(context.Background(), doc("Invoice No: 4411"))

	if got.InvoiceNumber != "4411" {
		t.Errorf("InvoiceNumber = %q, want 4411", got.InvoiceNumber)
	}
	if got.HasPONumber() || got.InvoiceAmount.Valid {
		t.Errorf("unexpected fields after failed completion: %+v", got)
	}
}

func TestAssistedExtractorGuardsInvoiceNumber(t *testing.T) {
	completer := &fakeCompleter{resp: &CompletionResponse{InvoiceNumber: "PO-900"}}
	got := newAssisted(completer, AmountPolicyFirstLabeled).Extract(context.Background(), doc("Purchase Order: PO-900"))
	if got.HasInvoiceNumber() {
		t.Errorf("InvoiceNumber = %q, a PO number must not become the invoice number", got.InvoiceNumber)
	}
}

func TestSelectAmount(t *testing.T) {
	rule := decimal.NewNullDecimal(decimal.NewFromInt(100))
	log := zerolog.Nop()

	if got := selectAmount(rule, decimal.RequireFromString("100.2"), AmountPolicyLargest, log); !got.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("agreeing sources: got %s, want the rule amount", got.Decimal)
	}
	if got := selectAmount(rule, decimal.NewFromInt(150), AmountPolicyFirstLabeled, log); !got.Decimal.Equal(decimal.NewFromInt(100)) {
		t.Errorf("first-labeled: got %s, want 100", got.Decimal)
	}
	if got := selectAmount(rule, decimal.NewFromInt(150), AmountPolicyLargest, log); !got.Decimal.Equal(decimal.NewFromInt(150)) {
		t.Errorf("largest: got %s, want 150", got.Decimal)
	}
	if got := selectAmount(decimal.NullDecimal{}, decimal.NewFromInt(7), AmountPolicyFirstLabeled, log); !got.Valid || !got.Decimal.Equal(decimal.NewFromInt(7)) {
		t.Errorf("model only: got %v, want 7", got)
	}
}

func TestParseCompletionResponse(t *testing.T) {
	got, err := parseCompletionResponse("Sure! {\"po_number\": \"PO-12\", \"invoice_number\": null, \"invoice_amount\": 1500000}")
	if err != nil {
		t.Fatalf("parseCompletionResponse() error = %v", err)
	}
	if got.PONumber != "PO-12" || got.InvoiceNumber != "" || got.InvoiceAmount != "1500000" {
		t.Errorf("parseCompletionResponse() = %+v", got)
	}

	if _, err := parseCompletionResponse("not json"); err == nil {
		t.Error("expected an error for a non-JSON answer")
	}
}

func TestOpenAICompleter(t *testing.T) {
	var gotModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   req.Model,
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"finish_reason": "stop",
					"message": map[string]string{
						"role":    "assistant",
						"content": `{"po_number":"PO-42","invoice_number":"INV-9","invoice_amount":"980.00"}`,
					},
				},
			},
		})
	}))
	defer server.Close()

	config := DefaultCompletionConfig()
	config.BaseURL = server.URL + "/v1"
	config.Model = "llama3.2"
	completer, err := NewOpenAICompleter(config, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewOpenAICompleter() error = %v", err)
	}

	got, err := completer.Complete(context.Background(), "Invoice text")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if gotModel != "llama3.2" {
		t.Errorf("model sent = %q", gotModel)
	}
	if got.PONumber != "PO-42" || got.InvoiceNumber != "INV-9" || got.InvoiceAmount != "980.00" {
		t.Errorf("Complete() = %+v", got)
	}
}

func TestNewOpenAICompleterRequiresEndpoint(t *testing.T) {
	if _, err := NewOpenAICompleter(DefaultCompletionConfig(), zerolog.Nop()); err == nil {
		t.Error("expected an error without API key or base URL")
	}
}
