// Package server exposes batch reconciliation over HTTP: invoices and a PO
// register are uploaded, the control workbook comes back.
package server

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"invoicecontrol/internal/batch"
	"invoicecontrol/internal/register"
	"invoicecontrol/internal/tabular"
	"invoicecontrol/pkg/models"
)

// Form fields of a batch upload.
const (
	FieldInvoices = "invoices"
	FieldRegister = "po_register"

	outputName = "Invoice_Control_Output.xlsx"
)

// BatchRunner executes one reconciliation batch.
type BatchRunner interface {
	Run(ctx context.Context, req batch.Request) (*batch.Summary, error)
}

// HistoryReader lists the persisted invoice history.
type HistoryReader interface {
	Load() ([]models.HistoryRecord, error)
}

// Handler serves the batch API. Batches run one at a time because the
// history file has a single writer.
type Handler struct {
	runner  BatchRunner
	history HistoryReader
	mu      sync.Mutex
	log     zerolog.Logger
}

func NewHandler(runner BatchRunner, history HistoryReader, log zerolog.Logger) *Handler {
	return &Handler{runner: runner, history: history, log: log}
}

// Health reports liveness
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// CreateBatch reconciles the uploaded invoices against the uploaded PO
// register. The response is the control workbook, or a JSON summary when
// format=json is requested.
func (h *Handler) CreateBatch(c *gin.Context) {
	log := requestLogger(c, h.log)

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form required"})
		return
	}

	invoices := form.File[FieldInvoices]
	if len(invoices) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one invoice PDF is required"})
		return
	}
	registers := form.File[FieldRegister]
	if len(registers) != 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one PO register file is required"})
		return
	}
	registerName := filepath.Base(registers[0].Filename)
	if !tabular.IsSpreadsheet(registerName) && !tabular.IsCSV(registerName) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "PO register must be .xlsx or .csv"})
		return
	}

	workDir, err := os.MkdirTemp("", "invoicecontrol-*")
	if err != nil {
		log.Error().Err(err).Msg("Failed to create work directory")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to prepare batch"})
		return
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn().Err(err).Str("dir", workDir).Msg("Failed to remove work directory")
		}
	}()

	req, err := h.stage(c, workDir, invoices, registers[0])
	if err != nil {
		log.Error().Err(err).Msg("Failed to store uploaded files")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store uploaded files"})
		return
	}

	log.Info().
		Int("invoices", len(invoices)).
		Str("register", registerName).
		Msg("Starting uploaded batch")

	h.mu.Lock()
	summary, err := h.runner.Run(c.Request.Context(), req)
	h.mu.Unlock()
	if err != nil {
		status := statusFor(err)
		log.Error().Err(err).Int("status", status).Msg("Batch failed")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Batch-ID", summary.BatchID)
	if strings.EqualFold(c.Query("format"), "json") {
		c.JSON(http.StatusOK, gin.H{
			"batch_id":     summary.BatchID,
			"processed_at": summary.ProcessedAt,
			"results":      summary.Results,
			"by_status":    summary.Totals.ByStatus,
			"total_amount": summary.Totals.TotalAmount,
			"valid_amount": summary.Totals.ValidAmount,
			"new_history":  summary.NewHistory,
		})
		return
	}
	c.FileAttachment(summary.OutputPath, fmt.Sprintf("Invoice_Control_%s.xlsx", summary.BatchID))
}

// stage saves the uploads under workDir. Client file names are reduced to
// their base name.
func (h *Handler) stage(c *gin.Context, workDir string, invoices []*multipart.FileHeader, reg *multipart.FileHeader) (batch.Request, error) {
	invoiceDir := filepath.Join(workDir, "invoices")
	if err := os.MkdirAll(invoiceDir, 0o755); err != nil {
		return batch.Request{}, err
	}

	for _, fh := range invoices {
		name := filepath.Base(fh.Filename)
		if name == "." || name == string(filepath.Separator) {
			continue
		}
		if err := c.SaveUploadedFile(fh, filepath.Join(invoiceDir, name)); err != nil {
			return batch.Request{}, fmt.Errorf("failed to save %s: %w", name, err)
		}
	}

	registerPath := filepath.Join(workDir, filepath.Base(reg.Filename))
	if err := c.SaveUploadedFile(reg, registerPath); err != nil {
		return batch.Request{}, fmt.Errorf("failed to save register: %w", err)
	}

	return batch.Request{
		InvoiceDir:   invoiceDir,
		RegisterPath: registerPath,
		OutputPath:   filepath.Join(workDir, outputName),
	}, nil
}

// ListHistory returns the persisted history as JSON.
func (h *Handler) ListHistory(c *gin.Context) {
	records, err := h.history.Load()
	if err != nil {
		log := requestLogger(c, h.log)
		log.Error().Err(err).Msg("Failed to load history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	if records == nil {
		records = []models.HistoryRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}

// statusFor maps structural batch errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, batch.ErrNoDocuments):
		return http.StatusBadRequest
	case errors.Is(err, register.ErrMissingColumns):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
