package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/artpar/cloudpublish/internal/shell/emulator"
	"github.com/artpar/cloudpublish/internal/shell/store"
)

// runEmulator serves the management emulator until ctx is cancelled.
func (a *app) runEmulator(ctx context.Context, args []string) int {
	cfg := a.config.Emulator

	fs := flag.NewFlagSet("emulator", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "SQLite database path")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "Listen port")
	if err := fs.Parse(args); err != nil {
		return ExitConfigError
	}

	if err := ensureDir(cfg.DSN); err != nil {
		a.logger.Error("failed to create database directory", "error", err)
		return ExitServerError
	}
	st, err := store.NewSQLiteStore(cfg.DSN)
	if err != nil {
		a.logger.Error("failed to open store", "dsn", cfg.DSN, "error", err)
		return ExitServerError
	}
	defer st.Close()

	srv := &http.Server{
		Addr: cfg.Address(),
		Handler: emulator.NewServer(st, emulator.Config{
			Token:           cfg.Token,
			StorageEndpoint: cfg.StorageEndpoint,
			StorageRegion:   cfg.StorageRegion,
			DNSSuffix:       a.config.Publish.DNSSuffix,
		}, a.logger).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting management emulator", "address", srv.Addr, "dsn", cfg.DSN)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.logger.Error("emulator stopped", "error", err)
		return ExitServerError
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown failed", "error", err)
		return ExitServerError
	}
	fmt.Fprintln(a.stdout, "emulator stopped")
	return ExitSuccess
}

// ensureDir creates the parent directory of a file DSN.
func ensureDir(dsn string) error {
	path, _, _ := strings.Cut(dsn, "?")
	path = strings.TrimPrefix(path, "file:")
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
