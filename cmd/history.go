package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"invoicecontrol/internal/extraction"
	"invoicecontrol/internal/history"
	"invoicecontrol/internal/logger"
	"invoicecontrol/pkg/models"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List invoices accepted by previous runs",
		Example: `  # Show the whole history
  invoicecontrol history

  # Look up one invoice as JSON
  invoicecontrol history --invoice INV-2024-001 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd)
		},
	}

	cmd.Flags().String("history", a.cfg.HistoryPath, "Invoice history file (.csv or .xlsx)")
	cmd.Flags().String("invoice", "", "Only show this invoice number")
	cmd.Flags().String("po", "", "Only show invoices charged to this PO")
	cmd.Flags().Bool("json", false, "Print JSON instead of a table")
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command) error {
	historyPath, _ := cmd.Flags().GetString("history")
	invoice, _ := cmd.Flags().GetString("invoice")
	po, _ := cmd.Flags().GetString("po")
	asJSON, _ := cmd.Flags().GetBool("json")

	store := history.NewStore(historyPath, logger.WithComponent(a.log, "history"))
	records, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	records = filterHistory(records, invoice, po)

	out := cmd.OutOrStdout()
	if asJSON {
		if records == nil {
			records = []models.HistoryRecord{}
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No invoices in %s\n", store.Path())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INVOICE\tPO\tAMOUNT\tFILE\tBATCH\tPROCESSED AT")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.InvoiceNumber, r.PONumber, extraction.FormatAmount(r.InvoiceAmount),
			r.FileName, r.BatchID, history.FormatTime(r.ProcessedAt))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d invoice(s), %s total\n", len(records), extraction.FormatAmount(history.Total(records)))
	return nil
}

// filterHistory keeps the records matching the given invoice and PO.
// Empty filters match everything.
func filterHistory(records []models.HistoryRecord, invoice, po string) []models.HistoryRecord {
	if invoice == "" && po == "" {
		return records
	}
	invoice = extraction.NormalizeIdentifier(invoice)
	po = extraction.NormalizeIdentifier(po)

	var out []models.HistoryRecord
	for _, r := range records {
		if invoice != "" && r.InvoiceNumber != invoice {
			continue
		}
		if po != "" && extraction.NormalizeIdentifier(r.PONumber) != po {
			continue
		}
		out = append(out, r)
	}
	return out
}
