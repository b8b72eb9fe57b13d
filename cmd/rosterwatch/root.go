package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"rosterwatch/internal/platform/config"
	"rosterwatch/internal/platform/logger"
)

// ErrNoLiveSession is returned when live engagement is requested; this build
// only carries the dry-run session.
var ErrNoLiveSession = errors.New("no live session backend in this build, run with --dry-run")

var errNoNation = errors.New("no session nation configured and no region_override set")

type rootOptions struct {
	configPath string
	logLevel   string
	dryRun     bool
	resetQueue bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "rosterwatch",
		Short:         "Watch a region roster and engage hostile arrivals",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.toml", "path to the TOML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override [log] level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", true, "log engagements instead of performing them")
	cmd.Flags().BoolVar(&opts.resetQueue, "reset-queue", false, "clear the shared Redis queue before starting")

	cmd.AddCommand(newIFFCmd(opts))
	return cmd
}

// loadConfig reads the config file and builds the run logger. Warnings
// collected while resolving defaults are logged here.
func loadConfig(opts *rootOptions, out io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	log := logger.New(logger.ParseLevel(cfg.LogLevel), logger.ParseFormat(cfg.LogFormat), out).
		With("run_id", uuid.NewString())
	for _, w := range cfg.Warnings {
		log.Warn("config default applied", "detail", w)
	}
	return cfg, log, nil
}

func configSummary(cfg config.Config) []any {
	return []any{
		"wa_only", cfg.WAOnly,
		"ignore_ros", cfg.IgnoreOfficers,
		"ignore_residents", cfg.IgnoreResidents,
		"ban_unknowns", cfg.BanUnknowns,
		"stop_on_update", cfg.StopOnUpdate,
		"poll_interval", cfg.PollInterval,
		"jitter", cfg.Jitter,
		"queue_backend", cfg.Queue.Backend,
	}
}

func wrapStartup(step string, err error) error {
	return fmt.Errorf("%s: %w", step, err)
}
