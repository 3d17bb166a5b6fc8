package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shyim/filestore/internal/config"
	"github.com/shyim/filestore/internal/logging"
	"github.com/shyim/filestore/internal/metrics"
	"github.com/shyim/filestore/internal/storage"

	// Import storage drivers for self-registration
	_ "github.com/shyim/filestore/internal/storages"
)

var (
	cfg = config.New()

	// Bound separately so flags can win over the config file
	logLevel  string
	logFormat string
	tempDir   string

	rootCmd = &cobra.Command{
		Use:               "filestore",
		Short:             "Pluggable file storage",
		Long:              "Upload, download and search files across configured storage pools (local, s3, bolt, memory).",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringArrayVar(&cfg.StorageArgs, "storage", []string{}, "Storage pool configuration (format: pool.option=value)")
	rootCmd.PersistentFlags().StringVar(&cfg.DefaultStorage, "default-storage", "", "Default storage pool name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringVar(&tempDir, "temp-dir", os.TempDir(), "Staging directory for archive downloads")

	// Add commands
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(metaCmd)
	rootCmd.AddCommand(driversCmd)
	rootCmd.AddCommand(poolsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(htpasswdCmd)
}

// setup resolves the configuration and installs logging and metrics
func setup(cmd *cobra.Command, args []string) error {
	if err := cfg.ParseStoragePools(); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") || cfg.LogFormat == "" {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("temp-dir") {
		cfg.TempDir = tempDir
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	metrics.Register()
	return nil
}

// openPools creates and initializes every configured pool
func openPools(ctx context.Context) (*storage.PoolManager, error) {
	if len(cfg.StoragePools) == 0 {
		return nil, fmt.Errorf("no storage pools configured, use --storage, --config or %s<POOL>_TYPE", config.EnvStoragePrefix)
	}

	return storage.NewPoolManager(ctx, cfg.StoragePools, cfg.DefaultStorage, nil, storage.WithTempDir(cfg.TempDir))
}

// withPool runs fn against the named pool, or the default pool when name is
// empty, and closes all pools afterwards.
func withPool(ctx context.Context, name string, fn func(storage.Backend) error) (err error) {
	pm, err := openPools(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := pm.Close(ctx); err == nil {
			err = closeErr
		}
	}()

	backend, err := pm.GetOrDefault(name)
	if err != nil {
		return err
	}
	return fn(backend)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
