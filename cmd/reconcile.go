package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"invoicecontrol/internal/batch"
	"invoicecontrol/internal/history"
	"invoicecontrol/internal/logger"
	"invoicecontrol/internal/reconciliation"
	"invoicecontrol/internal/register"
	"invoicecontrol/internal/sheets"
	"invoicecontrol/pkg/models"
)

func newReconcileCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile a folder of invoice PDFs against the PO register",
		Long: `Extract every PDF in the invoice folder, check it against the PO register
and the invoice history, and write the control workbook.

Invoices accepted as VALID are charged against their PO budget and appended
to the history file, so a later run reports them as DUPLICATE_HISTORY.

Environment variables provide the defaults for every flag:
  INVOICE_DIR, PO_REGISTER_PATH, OUTPUT_PATH, HISTORY_PATH, BATCH_WORKERS,
  AMOUNT_POLICY, ASSIST_ENABLED, GOOGLE_SHEET_URL`,
		Example: `  # Reconcile with the configured defaults
  invoicecontrol reconcile

  # Explicit inputs, four extraction workers
  invoicecontrol reconcile --invoices ./inbox --register PO_Register.xlsx --workers 4

  # Check a batch without recording it in the history
  invoicecontrol reconcile --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runReconcile(cmd)
		},
	}

	cmd.Flags().String("invoices", a.cfg.InvoiceDir, "Folder containing the invoice PDFs")
	cmd.Flags().String("register", a.cfg.RegisterPath, "PO register (.xlsx or .csv)")
	cmd.Flags().StringP("output", "o", a.cfg.OutputPath, "Control workbook to write")
	cmd.Flags().String("history", a.cfg.HistoryPath, "Invoice history file (.csv or .xlsx)")
	cmd.Flags().Int("workers", a.cfg.BatchWorkers, "Parallel extraction workers")
	cmd.Flags().String("amount-policy", a.cfg.AmountPolicy, "Amount selection: first-labeled or largest")
	cmd.Flags().Bool("assist", a.cfg.AssistEnabled, "Let a language model fill fields the rules missed")
	cmd.Flags().Bool("dry-run", false, "Write the report but do not update the history")
	cmd.Flags().String("sheet-url", a.cfg.GoogleSheetURL, "Also append the results to this Google Sheet")
	return cmd
}

func (a *app) runReconcile(cmd *cobra.Command) error {
	log := logger.WithComponent(a.log, "reconcile")

	// Get flags
	invoiceDir, _ := cmd.Flags().GetString("invoices")
	registerPath, _ := cmd.Flags().GetString("register")
	outputPath, _ := cmd.Flags().GetString("output")
	historyPath, _ := cmd.Flags().GetString("history")
	workers, _ := cmd.Flags().GetInt("workers")
	policy, _ := cmd.Flags().GetString("amount-policy")
	assist, _ := cmd.Flags().GetBool("assist")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	sheetURL, _ := cmd.Flags().GetString("sheet-url")

	if workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}

	extractor, err := a.newExtractor(nil, policy, assist)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	opts := batch.Options{
		Workers: workers,
		DryRun:  dryRun,
		Progress: func(done, total int, o reconciliation.Outcome) {
			line := fmt.Sprintf("[%d/%d] %s", done, total, o.FileName)
			if o.Failed() {
				line += " - read error"
			} else if o.Fields.InvoiceNumber != "" {
				line += " - " + o.Fields.InvoiceNumber
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		},
	}
	if sheetURL != "" {
		publisher, err := sheets.NewSheetsService(ctx, sheetURL, a.cfg.GoogleSheetWorksheet, logger.WithComponent(a.log, "sheets"))
		if err != nil {
			return fmt.Errorf("failed to initialize Google Sheets service: %w", err)
		}
		opts.Publisher = publisher
	}

	store := history.NewStore(historyPath, logger.WithComponent(a.log, "history"))
	runner := batch.NewRunner(extractor, store, opts, logger.WithComponent(a.log, "batch"))

	log.Info().
		Str("invoices", invoiceDir).
		Str("register", registerPath).
		Str("output", outputPath).
		Bool("dry_run", dryRun).
		Msg("Starting reconciliation")

	summary, err := runner.Run(ctx, batch.Request{
		InvoiceDir:   invoiceDir,
		RegisterPath: registerPath,
		OutputPath:   outputPath,
	})
	if err != nil {
		return explainRunError(err)
	}

	printSummary(cmd, summary, dryRun)
	return nil
}

// explainRunError turns structural failures into messages a user can act on
func explainRunError(err error) error {
	switch {
	case errors.Is(err, batch.ErrNoDocuments):
		return fmt.Errorf("no PDF files found in the invoice folder: %w", err)
	case errors.Is(err, register.ErrMissingColumns):
		return fmt.Errorf("the PO register is missing required columns (%s): %w",
			strings.Join(register.RequiredColumns, ", "), err)
	case errors.Is(err, history.ErrMalformedHistory):
		return fmt.Errorf("the invoice history file is damaged, fix or move it before running again: %w", err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("reconciliation was canceled")
	default:
		return fmt.Errorf("reconciliation failed: %w", err)
	}
}

func printSummary(cmd *cobra.Command, summary *batch.Summary, dryRun bool) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "Batch %s - %d invoice(s)\n", summary.BatchID, summary.Totals.Documents)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	for _, res := range summary.Results {
		fmt.Fprintf(out, "%-40s %-18s %s\n", res.FileName, res.Status, res.Reason)
	}
	fmt.Fprintln(out)
	for _, status := range models.Statuses {
		if n := summary.Totals.ByStatus[status]; n > 0 {
			fmt.Fprintf(out, "%-18s %d\n", status, n)
		}
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Total amount:      %s\n", summary.Totals.TotalAmount.StringFixed(2))
	fmt.Fprintf(out, "Valid amount:      %s\n", summary.Totals.ValidAmount.StringFixed(2))
	fmt.Fprintf(out, "Report:            %s\n", summary.OutputPath)
	if dryRun {
		fmt.Fprintln(out, "History:           not updated (dry run)")
	} else {
		fmt.Fprintf(out, "History:           %s (+%d)\n", filepath.Clean(summary.HistoryPath), summary.NewHistory)
	}
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
