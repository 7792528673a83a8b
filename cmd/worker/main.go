// File: cmd/worker/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/EXON826/iglive-tgms-worker/internal/config"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/model"
	"github.com/EXON826/iglive-tgms-worker/internal/domain/ports/repository"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/logging"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/metrics"
	"github.com/EXON826/iglive-tgms-worker/internal/infra/sched"
)

// Set through -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		devMode bool
	)
	root := &cobra.Command{
		Use:           "tgms-worker",
		Short:         "Group management worker: join requests, group registration and live broadcasts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file (optional)")
	root.PersistentFlags().BoolVar(&devMode, "dev", false, "developer mode: console logs, secrets unredacted")

	load := func() (*config.Config, error) {
		return config.LoadConfig(cfgPath, devMode)
	}

	root.AddCommand(newRunCmd(load), newSweepCmd(load), newEnqueueCmd(load), newVersionCmd())
	return root
}

func newRunCmd(load func() (*config.Config, error)) *cobra.Command {
	var once, dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume jobs until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if once {
				cfg.Worker.RunOnce = true
			}
			logger := logging.New(cfg.Log, cfg.Runtime.Dev)
			metrics.MustRegister()
			metrics.SetBuildInfo(version, commit)
			logger.Info().
				Str("version", version).
				Str("bot_token", logging.Redact(cfg.Bot.Token, cfg.Runtime.Dev)).
				Bool("dry_run", dryRun).
				Msg("starting worker")

			a, err := newApp(cmd.Context(), cfg, logger, dryRun)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.Run(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "process at most one job, then exit")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "log platform calls instead of sending them")
	return cmd
}

func newSweepCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Requeue processing jobs whose lease expired, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger := logging.New(cfg.Log, cfg.Runtime.Dev)
			a, err := newStoreApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return sched.NewStaleJobSweeper(a.jobs, cfg.Bot.Token, cfg.Worker.StaleAfter, cfg.Worker.MaxRetries, logger).Sweep(cmd.Context())
		},
	}
}

func newEnqueueCmd(load func() (*config.Config, error)) *cobra.Command {
	var payload string
	cmd := &cobra.Command{
		Use:   "enqueue JOB_TYPE",
		Short: "Insert a pending job for this bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			jobType := model.NormalizeJobType(args[0])
			if !json.Valid([]byte(payload)) {
				return fmt.Errorf("payload is not valid JSON")
			}
			if _, err := model.ParsePayload(jobType, []byte(payload)); err != nil {
				return err
			}

			logger := logging.New(cfg.Log, cfg.Runtime.Dev)
			a, err := newStoreApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			job := &model.Job{BotToken: cfg.Bot.Token, Type: string(jobType), Payload: []byte(payload)}
			if err := a.jobs.Enqueue(cmd.Context(), repository.NoTX, job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued job %d (%s)\n", job.ID, jobType)
			return nil
		},
	}
	cmd.Flags().StringVar(&payload, "payload", "{}", "job payload as JSON")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tgms-worker %s (%s)\n", version, commit)
		},
	}
}
