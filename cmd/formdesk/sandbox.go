package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alecgard/formdesk/internal/sandbox"
)

var sandboxOrigins []string

var sandboxCmd = &cobra.Command{
	Use:   "sandbox",
	Short: "Serve an in-memory formdesk backend for local development",
	RunE:  runSandbox,
}

func init() {
	sandboxCmd.Flags().StringSliceVar(&sandboxOrigins, "allow-origin", []string{"http://localhost:3000"}, "CORS origins allowed to call the sandbox")
	rootCmd.AddCommand(sandboxCmd)
}

func runSandbox(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	handler, err := sandbox.NewServer(sandbox.Options{
		JWTSecret:      cfg.Sandbox.JWTSecret,
		TokenTTL:       cfg.Sandbox.TokenTTL,
		AllowedOrigins: sandboxOrigins,
		RateLimit:      cfg.Sandbox.RateLimit,
		RateWindow:     cfg.Sandbox.RateWindow,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.SandboxAddr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("sandbox starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
