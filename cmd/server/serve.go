package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Infow("starting apiresource server",
				"version", version,
				"storage", cfg.Storage.Driver,
				"base_path", cfg.API.BasePath,
			)

			app, err := newApplication(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer app.Close()

			server := &http.Server{
				Addr:         cfg.Server.Addr(),
				Handler:      app.handler(),
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
				IdleTimeout:  cfg.Server.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Infow("server listening", "addr", server.Addr, "gzip", cfg.Server.Gzip)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					log.Errorw("server failed", "error", err)
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Info("shutting down server...")

			// Give outstanding requests time to complete
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Errorw("server forced to shutdown", "error", err)
				return err
			}

			log.Info("server stopped")
			return nil
		},
	}
}
