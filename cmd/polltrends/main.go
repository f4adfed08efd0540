package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"PollTrends/internal/app"
	"PollTrends/internal/config"
	"PollTrends/internal/infrastructure/scheduler"
	"PollTrends/internal/logging"
	"PollTrends/internal/usecase"
)

type rootOptions struct {
	configPath string
	url        string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "polltrends",
		Short:         "Clean a published poll table and estimate per-candidate trends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config path (default $POLLTRENDS_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&opts.url, "url", "", "Page holding the poll table")

	rootCmd.AddCommand(newRunCmd(opts), newCleanCmd(opts), newWatchCmd(opts))
	return rootCmd
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		window   int
		noClip   bool
		restarts int
		workers  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, clean and estimate moving-average and Gaussian-process trends",
		Long: `Fetch the poll table, clean it, estimate a trend per candidate with every
configured method and write the cleaned table, trend exports and charts.

Example: polltrends run --window 7 --restarts 5 --workers 8`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("window") {
				cfg.MovingAverage.Window = window
			}
			if flags.Changed("no-clip") {
				clip := !noClip
				cfg.MovingAverage.ClipOutliers = &clip
			}
			if flags.Changed("restarts") {
				cfg.GaussianProcess.Restarts = restarts
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			return execute(cmd.Context(), cmd.OutOrStdout(), cfg, true)
		},
	}

	cmd.Flags().IntVar(&window, "window", 10, "Moving-average window in days")
	cmd.Flags().BoolVar(&noClip, "no-clip", false, "Disable 1st/99th percentile clipping")
	cmd.Flags().IntVar(&restarts, "restarts", 10, "Gaussian-process optimizer restarts")
	cmd.Flags().IntVar(&workers, "workers", 1, "Concurrent entity estimations (1 runs sequentially)")
	return cmd
}

func newCleanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Fetch and clean the poll table without estimating trends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), cmd.OutOrStdout(), cfg, false)
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the full pipeline on a fixed interval until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.Schedule.Interval = interval
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return watch(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 24*time.Hour, "Time between runs")
	return cmd
}

func watch(ctx context.Context, out io.Writer, cfg config.Config) error {
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	sched := scheduler.NewIntervalScheduler(cfg.Schedule.Interval)
	err = sched.Start(ctx, func(ctx context.Context, at time.Time) {
		report, err := application.Run(ctx)
		if err != nil {
			logger.Error("scheduled run failed", "at", at, "error", err)
			return
		}
		printSummary(out, report)
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return sched.Stop(stopCtx)
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.url != "" {
		cfg.Source.URL = opts.url
	}
	return cfg, cfg.Validate()
}

func execute(ctx context.Context, out io.Writer, cfg config.Config, trends bool) error {
	logger := logging.NewWithWriter(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer application.Close()

	var report usecase.Report
	if trends {
		report, err = application.Run(ctx)
	} else {
		report, err = application.Clean(ctx)
	}
	if err != nil {
		return err
	}

	printSummary(out, report)
	return nil
}

func printSummary(out io.Writer, report usecase.Report) {
	fmt.Fprintf(out, "run %s\n", report.RunID)
	fmt.Fprintf(out, "rows: %d, entities: %d, warnings: %d\n",
		len(report.Table.Records), len(report.Table.Entities), len(report.Diagnostics))
	for _, entity := range report.Table.Entities {
		fmt.Fprintf(out, "  %s\n", entity)
	}
	if len(report.Estimates) > 0 {
		fmt.Fprintf(out, "estimates: %d\n", len(report.Estimates))
	}
	if len(report.Failures) > 0 {
		fmt.Fprintf(out, "failures: %d\n", len(report.Failures))
		for _, f := range report.Failures {
			method := f.Method
			if method == "" {
				method = "series"
			}
			fmt.Fprintf(out, "  %s (%s): %v\n", f.Entity, method, f.Err)
		}
	}
}
