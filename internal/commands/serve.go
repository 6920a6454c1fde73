// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextcloud/go_voice_bridge/internal/constants"
	"github.com/nextcloud/go_voice_bridge/internal/device/portaudio"
	"github.com/nextcloud/go_voice_bridge/internal/handlers"
	"github.com/nextcloud/go_voice_bridge/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP control API",
	Long: `Run the HTTP control API on http.addr (VB_HTTP_ADDR).

Use a "unix:" prefix to listen on a unix socket, for example
unix:/tmp/voicebridge.sock. When http.token (VB_API_TOKEN) is set every
request except /heartbeat needs "Authorization: Bearer <token>".

Devices named in the config are bound at startup.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.RequireCredentials(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	host, err := portaudio.NewHost()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, host, func(m service.StatusMessage) {
		slog.Debug("status", "text", m.Text, "error", m.Error)
	})
	if err != nil {
		_ = host.Terminate()
		return err
	}
	defer a.Close()

	if err := bindConfigured(a.orch, cfg); err != nil {
		slog.Warn("configured devices not bound", "error", err)
	}

	// The handler must see a nil interface, not a nil *history.Store.
	var hist handlers.HistoryReader
	if a.history != nil {
		hist = a.history
	}
	h := handlers.NewHandler(a.orch, hist)

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	skipAuth := map[string]bool{
		"/heartbeat": true,
	}
	if cfg.HTTP.Token == "" {
		slog.Warn("no API token configured, the control API is unauthenticated")
	}
	authedHandler := handlers.AuthMiddleware(cfg.HTTP.Token, skipAuth, mux)

	srv := &http.Server{
		Handler:      authedHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ln, err := listen(cfg.HTTP.Addr)
	if err != nil {
		return err
	}

	slog.Info("starting voicebridge", "version", Version, "addr", cfg.HTTP.Addr)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.HTTPShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func listen(addr string) (net.Listener, error) {
	if sockPath, ok := strings.CutPrefix(addr, "unix:"); ok {
		os.Remove(sockPath) // clean up stale socket
		ln, err := net.Listen("unix", sockPath)
		if err != nil {
			return nil, fmt.Errorf("listening on unix socket %s: %w", sockPath, err)
		}
		slog.Info("HTTP server listening on unix socket", "path", sockPath)
		return ln, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}
	slog.Info("HTTP server listening on TCP", "addr", addr)
	return ln, nil
}
