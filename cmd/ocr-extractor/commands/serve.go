package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/ocr-extractor/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	logger := serverLogger(cfg)

	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	pdfErr := a.ProbePDF()
	if pdfErr != nil {
		logger.Warn().Err(pdfErr).Msg("PDF rendering unavailable, serving image-only OCR")
	}

	baseCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	router := api.NewRouter(api.Deps{
		Service:      a.Service,
		Store:        a.Store,
		Jobs:         api.NewJobRegistry(cfg.Server.JobRetention),
		Tracker:      a.Tracker,
		Logger:       logger,
		MaxFileBytes: cfg.OCR.MaxFileBytes,
		PDFError:     pdfErr,
		BaseContext:  baseCtx,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	logger.Info().
		Str("addr", cfg.Addr()).
		Int("pool_size", cfg.OCR.PoolSize).
		Str("languages", cfg.LanguageSpec()).
		Str("store", cfg.Store.Driver).
		Bool("hosted", a.Hosted != nil).
		Msg("Starting OCR extractor API")

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Server error")
			return err
		}
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
	return nil
}
