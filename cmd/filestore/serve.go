package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/shyim/filestore/internal/api"
)

var (
	socketPath string
	listenAddr string
	basicAuth  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured pools over HTTP",
	Long:  "Initialize every configured pool and serve it over an HTTP API on a Unix socket and, optionally, a TCP address. Prometheus metrics are exposed on /metrics.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&socketPath, "socket", api.DefaultSocketPath, "Unix socket path for the API (empty to disable)")
	serveCmd.Flags().StringVar(&listenAddr, "listen", "", "Also listen on a TCP address (e.g., :8080)")
	serveCmd.Flags().StringVar(&basicAuth, "auth.basic", "", "Basic auth for /pools (htpasswd file path or inline user:hash)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	slog.Info("starting filestore server", "pools", len(cfg.StoragePools), "default", cfg.DefaultStorage)

	poolManager, err := openPools(ctx)
	if err != nil {
		slog.Error("failed to initialize storage pools", "error", err)
		return err
	}
	defer func() {
		if err := poolManager.Close(context.Background()); err != nil {
			slog.Warn("failed to close storage pools", "error", err)
		}
	}()

	for _, name := range poolManager.List() {
		backend, _ := poolManager.Get(name)
		slog.Info("storage pool", "name", name, "key", backend.Key())
	}

	opts := api.Options{
		SocketPath: socketPath,
		Addr:       listenAddr,
		TempDir:    cfg.TempDir,
	}
	if basicAuth != "" {
		creds, err := api.LoadCredentials(basicAuth)
		if err != nil {
			return err
		}
		opts.Auth = creds
		slog.Info("API basic auth enabled", "users", creds.UserCount())
	}

	server := api.NewServer(poolManager, opts)

	errc := make(chan error, 1)
	go func() {
		errc <- server.Start()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server error", "error", err)
			return err
		}
	case <-ctx.Done():
		slog.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Warn("API server shutdown error", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
