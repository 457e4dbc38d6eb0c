package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"invoicecontrol/internal/config"
	"invoicecontrol/internal/extraction"
	"invoicecontrol/internal/logger"
	"invoicecontrol/pkg/services"
)

var version = "1.0.0"

// app carries what every command needs.
type app struct {
	cfg *config.Config
	log zerolog.Logger
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "invoicecontrol",
		Short: "Invoice control - check supplier invoices against PO budgets",
		Long: `Invoice control reads supplier invoice PDFs, extracts the PO number,
invoice number and amount, and checks every invoice against the purchase
order register and the history of previously accepted invoices.

Each run writes a control workbook with one status per invoice
(VALID, OVERBUDGET, PO_NOT_FOUND, DUPLICATE, ...) and records the accepted
invoices so they are never charged twice.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newReconcileCmd(a),
		newExtractCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
	)
	return rootCmd
}

// Execute runs the command line.
func Execute(cfg *config.Config, log zerolog.Logger) error {
	return run(&app{cfg: cfg, log: log}, os.Args[1:])
}

func run(a *app, args []string) error {
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent(a.log, "cmd")
		log.Error().
			Err(err).
			Msg("Command execution failed")
		return err
	}
	return nil
}

// newExtractor builds the field extractor, reading PDFs unless another
// source is given. With assist, a language model fills the fields the rules
// miss.
func (a *app) newExtractor(source services.TextSource, policy string, assist bool) (services.FieldExtractor, error) {
	extractionConfig := a.cfg.ExtractionConfig()
	if policy != "" {
		p, err := extraction.ParseAmountPolicy(policy)
		if err != nil {
			return nil, err
		}
		extractionConfig.AmountPolicy = p
	}

	log := logger.WithComponent(a.log, "extraction")
	if source == nil {
		source = extraction.NewPDFTextSource(log)
	}
	base := extraction.NewExtractor(source, extractionConfig, log)
	if !assist {
		return base, nil
	}

	completer, err := extraction.NewOpenAICompleter(a.cfg.CompletionConfig(), logger.WithComponent(a.log, "completion"))
	if err != nil {
		return nil, fmt.Errorf("failed to set up assisted extraction: %w", err)
	}
	return extraction.NewAssistedExtractor(base, completer, log), nil
}
