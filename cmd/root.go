// Package cmd defines the crawlersvc command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/crawlersvc/internal/config"
	"github.com/JakeFAU/crawlersvc/internal/server"
)

const closeTimeout = 10 * time.Second

type rootOptions struct {
	configPath string
	envFile    string
	cfg        config.Config
}

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "crawlersvc",
		Short: "Recursive URL crawling service",
		Long: `crawlersvc accepts URLs over HTTP, crawls them recursively up to a fixed
depth, skips URLs crawled within the last week and keeps the results on disk
or in Cloud Storage for a bounded time and size.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(opts.envFile); err != nil {
				return err
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the config")

	cmd.AddCommand(newServeCmd(opts), newCrawlCmd(opts), newCleanupCmd(opts))
	return cmd
}

// withApp builds the application, runs fn and closes the application.
func withApp(ctx context.Context, opts *rootOptions, fn func(*server.App) error) error {
	app, err := server.Build(ctx, opts.cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = app.Close(closeCtx)
	}()
	return fn(app)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
