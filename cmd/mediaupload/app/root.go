// Package app wires configuration, storage and status tracking into the
// mediaupload command line.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/mediaqueue/pkg/config"
	"github.com/dmitrymomot/mediaqueue/pkg/file"
	"github.com/dmitrymomot/mediaqueue/pkg/logger"
	"github.com/dmitrymomot/mediaqueue/pkg/redis"
	"github.com/dmitrymomot/mediaqueue/pkg/upload"
)

const serviceName = "mediaupload"

// appConfig selects backends. Backend settings live in their own packages.
type appConfig struct {
	Env           string `env:"APP_ENV" envDefault:"development"`
	LogLevel      string `env:"LOG_LEVEL"`
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"local"`
	StatusStore   string `env:"STATUS_STORE" envDefault:"memory"`
}

// Run executes the command line with os.Args, cancelling on SIGINT or SIGTERM.
func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// NewRootCommand builds the mediaupload command tree.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Upload media directories to local or S3 storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("env-file", "", "Load environment variables from this file first")

	cmd.AddCommand(
		newUploadCommand(),
		newStatusCommand(),
	)

	return cmd
}

// deps holds what the subcommands share.
type deps struct {
	cfg       appConfig
	uploadCfg upload.Config
	logger    *slog.Logger
	storage   file.Storage
	closers   []func() error
}

func (d *deps) Close() error {
	var firstErr error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func loadDeps(cmd *cobra.Command, withStorage bool) (*deps, error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := config.LoadEnv(envFile); err != nil {
			return nil, err
		}
	}

	d := &deps{}
	if err := config.Load(&d.cfg); err != nil {
		return nil, err
	}
	if err := config.Load(&d.uploadCfg); err != nil {
		return nil, err
	}

	opts := []logger.Option{
		logger.WithEnvironment(d.cfg.Env, serviceName),
		logger.WithOutput(cmd.ErrOrStderr()),
	}
	if d.cfg.LogLevel != "" {
		opts = append(opts, logger.WithLevel(logger.ParseLevel(d.cfg.LogLevel)))
	}
	d.logger = logger.New(opts...)
	logger.SetAsDefault(d.logger)

	if !withStorage {
		return d, nil
	}

	storage, err := newStorage(cmd.Context(), d.cfg.StorageDriver)
	if err != nil {
		return nil, err
	}
	d.storage = storage

	return d, nil
}

func newStorage(ctx context.Context, driver string) (file.Storage, error) {
	switch driver {
	case "local", "":
		var cfg file.LocalConfig
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		return file.NewLocalStorageFromConfig(cfg)
	case "s3":
		var cfg file.S3Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		return file.NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q: want local or s3", driver)
	}
}

// newStatusStore returns the configured store for batch.
func (d *deps) newStatusStore(ctx context.Context, batch string) (upload.StatusStore, error) {
	switch d.cfg.StatusStore {
	case "memory", "":
		return upload.NewMemoryStatusStore(), nil
	case "redis":
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, client.Close)
		return upload.NewRedisStatusStore(client, batch), nil
	default:
		return nil, fmt.Errorf("unknown STATUS_STORE %q: want memory or redis", d.cfg.StatusStore)
	}
}
