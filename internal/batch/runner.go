// Package batch runs a complete reconciliation: it lists the invoice PDFs,
// loads the PO register and the history, extracts and reconciles every
// document, writes the control workbook and persists the new history.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"invoicecontrol/internal/history"
	"invoicecontrol/internal/logger"
	"invoicecontrol/internal/reconciliation"
	"invoicecontrol/internal/register"
	"invoicecontrol/internal/report"
	"invoicecontrol/pkg/models"
	"invoicecontrol/pkg/services"
)

// ErrNoDocuments is returned when the invoice directory has no PDF files.
var ErrNoDocuments = errors.New("no invoice documents found")

// Request names the inputs and output of one run.
type Request struct {
	InvoiceDir   string // Directory scanned (non-recursively) for *.pdf
	RegisterPath string // PO register, .xlsx or .csv
	OutputPath   string // Control workbook to write
}

// Options tunes a runner
type Options struct {
	Workers   int                      // Extraction workers, 1 means sequential
	DryRun    bool                     // Write the report but leave the history file untouched
	Publisher services.ResultPublisher // Optional mirror of the results
	Progress  ProgressFunc             // Optional per-document callback
}

// Summary describes a finished run.
type Summary struct {
	BatchID     string
	ProcessedAt time.Time
	OutputPath  string
	HistoryPath string
	Results     []models.InvoiceResult
	Totals      report.Totals
	NewHistory  int // Records appended to the history by this run
}

// Runner executes batches
type Runner struct {
	extractor services.FieldExtractor
	loader    *register.Loader
	history   *history.Store
	writer    *report.Writer
	opts      Options

	now        func() time.Time
	newBatchID func() string

	log zerolog.Logger
}

// NewRunner wires a runner. store is the persistent history.
func NewRunner(extractor services.FieldExtractor, store *history.Store, opts Options, log zerolog.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		extractor:  extractor,
		loader:     register.NewLoader(logger.WithComponent(log, "register")),
		history:    store,
		writer:     report.NewWriter(logger.WithComponent(log, "report")),
		opts:       opts,
		now:        time.Now,
		newBatchID: NewBatchID,
		log:        log,
	}
}

// NewBatchID returns a short random run identifier.
func NewBatchID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// Run executes one batch. Only structural problems fail the run: no
// documents, an unreadable register or history, a report that cannot be
// written or a canceled context. Everything that goes wrong with a single
// document ends up as a status in the results.
func (r *Runner) Run(ctx context.Context, req Request) (*Summary, error) {
	const op = "Run"

	paths, err := FindDocuments(req.InvoiceDir)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list invoices in %s: %w", op, req.InvoiceDir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %s: %w", op, req.InvoiceDir, ErrNoDocuments)
	}

	ledger, err := r.loader.Load(req.RegisterPath)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load PO register: %w", op, err)
	}

	past, err := r.history.Load()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to load invoice history: %w", op, err)
	}

	batchID := r.newBatchID()
	processedAt := r.now().UTC().Truncate(time.Second)
	log := r.log.With().Str("batch_id", batchID).Logger()

	log.Info().
		Int("documents", len(paths)).
		Int("pos", ledger.Len()).
		Int("history", len(past)).
		Int("workers", r.opts.Workers).
		Msg("Starting batch")

	outcomes, err := r.extractAll(ctx, paths)
	if err != nil {
		return nil, fmt.Errorf("%s: extraction interrupted: %w", op, err)
	}

	engine := reconciliation.NewEngine(ledger, history.NewIndex(past), batchID, processedAt, logger.WithComponent(log, "reconciliation"))
	results := engine.ReconcileAll(outcomes)
	merged := history.Merge(past, engine.Accepted())

	rep := &report.Report{
		BatchID:     batchID,
		ProcessedAt: processedAt,
		Results:     results,
		Budgets:     ledger.Records(),
		History:     merged,
	}
	if err := r.writer.Save(req.OutputPath, rep); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	newHistory := len(merged) - len(past)
	if r.opts.DryRun {
		log.Info().Int("skipped_records", newHistory).Msg("Dry run, history not saved")
	} else if err := r.history.Save(merged); err != nil {
		return nil, fmt.Errorf("%s: report written but history not saved: %w", op, err)
	}

	if r.opts.Publisher != nil {
		if err := r.opts.Publisher.PublishResults(ctx, batchID, results); err != nil {
			log.Warn().Err(err).Msg("Failed to publish results")
		}
	}

	summary := &Summary{
		BatchID:     batchID,
		ProcessedAt: processedAt,
		OutputPath:  req.OutputPath,
		HistoryPath: r.history.Path(),
		Results:     results,
		Totals:      report.ComputeTotals(results),
		NewHistory:  newHistory,
	}

	log.Info().
		Int("documents", summary.Totals.Documents).
		Int("valid", summary.Totals.ByStatus[models.StatusValid]).
		Str("valid_amount", summary.Totals.ValidAmount.StringFixed(2)).
		Int("new_history", summary.NewHistory).
		Str("output", req.OutputPath).
		Msg("Batch completed")

	return summary, nil
}
