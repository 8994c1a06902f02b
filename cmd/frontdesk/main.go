// Package main is the frontdesk CLI: an automated telephone receptionist
// that answers a practice's phone line, looks up hours/address/prices, and
// books appointments against the shared schedule.
//
// Start the webhook server:
//
//	frontdesk serve --config frontdesk.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/frontdesk/internal/calls"
	"github.com/haasonsaas/frontdesk/internal/config"
	"github.com/haasonsaas/frontdesk/internal/dialogue"
	"github.com/haasonsaas/frontdesk/internal/observability"
	"github.com/haasonsaas/frontdesk/internal/schedule"
	"github.com/haasonsaas/frontdesk/internal/server"
	"github.com/haasonsaas/frontdesk/internal/transcripts"
)

// Build information, populated by ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	root := &cobra.Command{
		Use:   "frontdesk",
		Short: "Automated telephone receptionist",
	}

	var configPath string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configPath)
		},
	}
	serveCmd.Flags().StringVarP(&configPath, "config", "c", os.Getenv("FRONTDESK_CONFIG"), "path to config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("frontdesk %s (commit %s, built %s)\n", version, commit, date)
		},
	}

	root.AddCommand(serveCmd, versionCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	logger.Info("starting frontdesk", "version", version, "practice", cfg.Practice.Name)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	records := transcripts.NewStore(cfg.Storage, logger)
	if err := records.EnsureDirs(); err != nil {
		return err
	}

	sched := schedule.NewStore(cfg.Storage.ScheduleCSV, logger)
	practice := config.NewPracticeSource(cfg.Practice)

	engine := dialogue.NewEngine(sched, practice, dialogue.NewRandomSelector(), cfg.Dialogue, logger)
	srv := server.New(cfg, engine, calls.NewStore(), records, metrics, registry, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Edits to the config file reach callers without a restart.
	if configPath != "" {
		go func() {
			if err := config.WatchPractice(ctx, configPath, practice, logger); err != nil && ctx.Err() == nil {
				logger.Warn("practice watcher stopped", "error", err)
			}
		}()
	}

	return srv.Run(ctx)
}
