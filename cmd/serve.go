package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/shelfscanner/internal/config"
	"github.com/lehigh-university-libraries/shelfscanner/internal/handlers"
)

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scan HTTP service",
		Long: `Starts the shelf scanning service on the specified port.

Capture clients POST shelf photos to /scan/capture for the full pipeline or to
/detect/spines for spine boxes only. Detector and extractor backends are built on
the first request that needs them.`,
		Example: `  # Start server on default port 8000
  shelfscanner serve

  # Start server on custom port with JSON logs
  shelfscanner serve --port 3000 --log-format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			books, cleanup, err := newCatalog(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			handler := handlers.New(cfg, newScanService(cfg, books), books)

			addr := ":" + port
			server := &http.Server{
				Addr:              addr,
				Handler:           handler.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			// Start server in goroutine
			serverErr := make(chan error, 1)
			go func() {
				slog.Info("Shelf scanner available",
					"addr", addr,
					"env", cfg.Env,
					"scan_enabled", cfg.ScanEnabled,
					"detect_backend", cfg.Detect.Backend,
					"extract_backend", cfg.Extract.Backend,
				)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			// Wait for context cancellation (Ctrl+C) or server error
			select {
			case <-cmd.Context().Done():
				slog.Info("Shutting down server...")
				// Give server 5 seconds to shut down gracefully
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					slog.Error("Server shutdown failed", "err", err)
					return err
				}
				slog.Info("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8000", "Port to listen on")

	return cmd
}
