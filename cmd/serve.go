package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"invoicecontrol/internal/batch"
	"invoicecontrol/internal/history"
	"invoicecontrol/internal/logger"
	"invoicecontrol/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload API",
		Long: `Start an HTTP server that reconciles uploaded batches.

  POST /api/batches   multipart: invoices (PDF, repeated), po_register (.xlsx or .csv)
                      returns the control workbook, or JSON with ?format=json
  GET  /api/history   accepted invoices
  GET  /api/health    liveness

Batches share the history file configured by HISTORY_PATH and run one at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd)
		},
	}

	cmd.Flags().String("addr", a.cfg.HTTPAddr, "Listen address")
	cmd.Flags().String("history", a.cfg.HistoryPath, "Invoice history file (.csv or .xlsx)")
	cmd.Flags().Int("workers", a.cfg.BatchWorkers, "Parallel extraction workers per batch")
	cmd.Flags().Bool("assist", a.cfg.AssistEnabled, "Let a language model fill fields the rules missed")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command) error {
	log := logger.WithComponent(a.log, "serve")

	addr, _ := cmd.Flags().GetString("addr")
	historyPath, _ := cmd.Flags().GetString("history")
	workers, _ := cmd.Flags().GetInt("workers")
	assist, _ := cmd.Flags().GetBool("assist")

	extractor, err := a.newExtractor(nil, "", assist)
	if err != nil {
		return err
	}

	store := history.NewStore(historyPath, logger.WithComponent(a.log, "history"))
	runner := batch.NewRunner(extractor, store, batch.Options{Workers: workers}, logger.WithComponent(a.log, "batch"))

	gin.SetMode(gin.ReleaseMode)
	handler := server.NewHandler(runner, store, logger.WithComponent(a.log, "http"))
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.NewRouter(handler, a.cfg.CORSOrigins, logger.WithComponent(a.log, "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("history", store.Path()).Msg("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
