package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"invoicecontrol/internal/extraction"
	"invoicecontrol/internal/logger"
	"invoicecontrol/pkg/models"
	"invoicecontrol/pkg/services"
)

// ExtractOutput is the JSON printed by the extract command.
type ExtractOutput struct {
	FileName string                 `json:"file_name"`
	Fields   models.ExtractedFields `json:"fields"`
	Missing  []string               `json:"missing,omitempty"`
}

func newExtractCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [pdf-file]",
		Short: "Extract PO number, invoice number and amount from one invoice",
		Long: `Run the field extractor on a single document and print the result as JSON.

Useful to understand why an invoice ended up as NEEDS_REVIEW or INVALID:
the output includes a preview of the normalized text the rules saw.
With --text the file is read as plain text instead of a PDF.`,
		Example: `  # Extract fields from a PDF
  invoicecontrol extract invoice.pdf

  # Test the rules on a text dump
  invoicecontrol extract --text invoice.txt

  # Save the result
  invoicecontrol extract invoice.pdf -o fields.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runExtract(cmd, args[0])
		},
	}

	cmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	cmd.Flags().Bool("text", false, "Treat the input as plain text")
	cmd.Flags().String("amount-policy", a.cfg.AmountPolicy, "Amount selection: first-labeled or largest")
	cmd.Flags().Bool("assist", a.cfg.AssistEnabled, "Let a language model fill fields the rules missed")
	return cmd
}

func (a *app) runExtract(cmd *cobra.Command, path string) error {
	log := logger.WithComponent(a.log, "extract")

	outputPath, _ := cmd.Flags().GetString("output")
	asText, _ := cmd.Flags().GetBool("text")
	policy, _ := cmd.Flags().GetString("amount-policy")
	assist, _ := cmd.Flags().GetBool("assist")

	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var source services.TextSource
	if asText {
		source = extraction.StaticTextSource{}
	}
	extractor, err := a.newExtractor(source, policy, assist)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fields := extractor.Extract(ctx, models.InvoiceDocument{
		FileName: filepath.Base(path),
		Content:  content,
	})

	log.Info().
		Str("file", path).
		Str("po_number", fields.PONumber).
		Str("invoice_number", fields.InvoiceNumber).
		Bool("amount_found", fields.InvoiceAmount.Valid).
		Msg("Extraction completed")

	jsonData, err := json.MarshalIndent(ExtractOutput{
		FileName: filepath.Base(path),
		Fields:   fields,
		Missing:  fields.Missing(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, jsonData, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		log.Info().Str("output_file", outputPath).Int("bytes", len(jsonData)).Msg("Fields written to file")
		return nil
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
	return err
}
