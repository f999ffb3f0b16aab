package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/jbx/internal/server"
	"github.com/desertthunder/jbx/internal/shared"
)

const shutdownTimeout = 5 * time.Second

// Mock serves the in-memory jukebox until ctx is cancelled.
func (r *Runner) Mock(ctx context.Context, cmd *cli.Command) error {
	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Mock.Addr()
	}

	m := server.NewMock(server.MockOptions{
		StageDelay: cmd.Duration("stage-delay"),
		Logger:     shared.WithLogger(r.logger, "component", "mock"),
	})
	if !cmd.Bool("empty") {
		m.Seed()
	}

	srv := &http.Server{Addr: addr, Handler: m.Handler()}
	errs := make(chan error, 1)
	go func() {
		errs <- srv.ListenAndServe()
	}()

	r.logger.Info("mock server listening", "addr", addr, "songs", len(m.Songs()))
	r.writePlain("Mock jukebox on http://%s (Ctrl+C to stop)\n", addr)

	select {
	case err := <-errs:
		m.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("mock server failed: %w", err)
	case <-ctx.Done():
	}

	// Streams never finish on their own, so close them before waiting on the server.
	m.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down mock server: %w", err)
	}
	r.logger.Info("mock server stopped")
	return nil
}
