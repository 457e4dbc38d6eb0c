package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicecontrol/internal/batch"
	"invoicecontrol/internal/register"
	"invoicecontrol/pkg/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRunner struct {
	req batch.Request
	// files seen in the invoice directory at run time
	invoices []string
	err      error
}

func (f *fakeRunner) Run(_ context.Context, req batch.Request) (*batch.Summary, error) {
	f.req = req
	entries, _ := os.ReadDir(req.InvoiceDir)
	for _, e := range entries {
		f.invoices = append(f.invoices, e.Name())
	}
	if f.err != nil {
		return nil, f.err
	}
	if err := os.WriteFile(req.OutputPath, []byte("xlsx-bytes"), 0o644); err != nil {
		return nil, err
	}
	return &batch.Summary{
		BatchID:     "abc123def0",
		ProcessedAt: time.Date(2024, 3, 12, 9, 30, 0, 0, time.UTC),
		OutputPath:  req.OutputPath,
		Results: []models.InvoiceResult{
			{FileName: "a.pdf", Status: models.StatusValid, InvoiceAmount: decimal.NewNullDecimal(decimal.NewFromInt(10))},
		},
	}, nil
}

type fakeHistory struct {
	records []models.HistoryRecord
	err     error
}

func (f fakeHistory) Load() ([]models.HistoryRecord, error) {
	return f.records, f.err
}

func uploadRequest(t *testing.T, target string, invoices map[string]string, registerName string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for name, content := range invoices {
		part, err := w.CreateFormFile(FieldInvoices, name)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprint(part, content)
	}
	if registerName != "" {
		part, err := w.CreateFormFile(FieldRegister, registerName)
		if err != nil {
			t.Fatal(err)
		}
		fmt.Fprint(part, "PO_Number,Total_PO_Value,Amount_Already_Invoiced\n")
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newTestRouter(runner BatchRunner, hist HistoryReader) *gin.Engine {
	return NewRouter(NewHandler(runner, hist, zerolog.Nop()), nil, zerolog.Nop())
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter(&fakeRunner{}, fakeHistory{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("response has no request id")
	}
}

func TestCreateBatchReturnsWorkbook(t *testing.T) {
	runner := &fakeRunner{}
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/batches", map[string]string{
		"a.pdf":            "%PDF-1.4",
		"../../escape.pdf": "%PDF-1.4",
	}, "PO_Register.csv")

	newTestRouter(runner, fakeHistory{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Batch-ID"); got != "abc123def0" {
		t.Errorf("X-Batch-ID = %q", got)
	}
	if rec.Body.String() != "xlsx-bytes" {
		t.Errorf("body = %q, want the workbook", rec.Body.String())
	}
	if len(runner.invoices) != 2 {
		t.Errorf("staged invoices = %v, want 2 files", runner.invoices)
	}
	if filepath.Dir(runner.req.RegisterPath) != filepath.Dir(runner.req.InvoiceDir) {
		t.Errorf("register staged at %s", runner.req.RegisterPath)
	}
	if _, err := os.Stat(runner.req.InvoiceDir); !errors.Is(err, os.ErrNotExist) {
		t.Error("work directory not cleaned up")
	}
}

func TestCreateBatchJSONSummary(t *testing.T) {
	rec := httptest.NewRecorder()
	req := uploadRequest(t, "/api/batches?format=json", map[string]string{"a.pdf": "%PDF-1.4"}, "PO_Register.xlsx")

	newTestRouter(&fakeRunner{}, fakeHistory{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body struct {
		BatchID string                 `json:"batch_id"`
		Results []models.InvoiceResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.BatchID != "abc123def0" || len(body.Results) != 1 || body.Results[0].Status != models.StatusValid {
		t.Errorf("body = %+v", body)
	}
}

func TestCreateBatchRejectsBadUploads(t *testing.T) {
	tests := []struct {
		name     string
		invoices map[string]string
		register string
		runErr   error
		want     int
	}{
		{name: "no invoices", register: "PO_Register.csv", want: http.StatusBadRequest},
		{name: "no register", invoices: map[string]string{"a.pdf": "x"}, want: http.StatusBadRequest},
		{name: "register type", invoices: map[string]string{"a.pdf": "x"}, register: "po.json", want: http.StatusBadRequest},
		{name: "no pdf documents", invoices: map[string]string{"a.txt": "x"}, register: "po.csv", runErr: fmt.Errorf("Run: %w", batch.ErrNoDocuments), want: http.StatusBadRequest},
		{name: "missing columns", invoices: map[string]string{"a.pdf": "x"}, register: "po.csv", runErr: &register.ColumnError{Missing: []string{"PO_Number"}}, want: http.StatusUnprocessableEntity},
		{name: "write failure", invoices: map[string]string{"a.pdf": "x"}, register: "po.csv", runErr: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newTestRouter(&fakeRunner{err: tt.runErr}, fakeHistory{}).ServeHTTP(rec, uploadRequest(t, "/api/batches", tt.invoices, tt.register))
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestListHistory(t *testing.T) {
	hist := fakeHistory{records: []models.HistoryRecord{{InvoiceNumber: "INV-1", PONumber: "PO-1"}}}
	rec := httptest.NewRecorder()
	newTestRouter(&fakeRunner{}, hist).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	var body struct {
		Count   int                    `json:"count"`
		Records []models.HistoryRecord `json:"records"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 1 || body.Records[0].InvoiceNumber != "INV-1" {
		t.Errorf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	newTestRouter(&fakeRunner{}, fakeHistory{err: errors.New("malformed")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
