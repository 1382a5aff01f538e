package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/archivecast/podgen/internal/app"
	"github.com/archivecast/podgen/internal/logging"
)

// newServeCommand runs the daemon in the foreground: the same wiring
// cmd/podgend uses, exposed here so operators don't need a second binary
// for local runs.
func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and background ingestion scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			logger := logging.New(cfg.Logging.Level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("build application: %w", err)
			}

			serveErr := make(chan error, 1)
			go func() { serveErr <- application.Start(context.Background()) }()

			select {
			case err := <-serveErr:
				if err != nil {
					return fmt.Errorf("server exited: %w", err)
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return application.Shutdown(shutdownCtx)
		},
	}
}
