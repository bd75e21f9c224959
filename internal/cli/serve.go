package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"harmonic-trader/internal/api"
	"harmonic-trader/internal/scheduler"
)

// addServiceCommands adds the long-running commands.
func addServiceCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newScheduleCmd(app))
}

func newScheduler(app *App) (*scheduler.Scheduler, error) {
	cfg := app.Config.Scheduler
	s := scheduler.New(app.Scanner, cfg.Symbols, app.Config.SchedulerTimeframes(),
		scheduler.WithNotifier(app.Notifier),
		scheduler.WithMetrics(app.Metrics),
		scheduler.WithLogger(app.Logger),
	)
	if err := s.Register(cfg.Spec); err != nil {
		return nil, err
	}
	return s, nil
}

func newServeCmd(app *App) *cobra.Command {
	var (
		host         string
		port         int
		withSchedule bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the pattern endpoints under /api/pattern, plus /healthz and /metrics.
Scheduled rescans run alongside when enabled in the config or with --schedule.`,
		Example: `  harmonic serve
  harmonic serve --port 9090 --schedule`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			cfg := app.Config.Server
			if cmd.Flags().Changed("host") {
				cfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}

			opts := []api.HandlerOption{
				api.WithRecorder(app.Metrics),
				api.WithHandlerLogger(app.Logger),
				api.WithVersion(Version),
			}
			if app.Store != nil {
				opts = append(opts, api.WithHistory(app.Store))
			}
			server := api.NewServer(api.NewHandler(app.Scanner, opts...), app.Logger,
				api.WithHost(cfg.Host),
				api.WithPort(cfg.Port),
				api.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout, 0),
			)

			var sched *scheduler.Scheduler
			if withSchedule || app.Config.Scheduler.Enabled {
				s, err := newScheduler(app)
				if err != nil {
					return err
				}
				if err := s.Start(); err != nil {
					return err
				}
				sched = s
			}

			if err := server.Start(); err != nil {
				return err
			}
			output.Success("✓ Listening on http://%s", server.Addr())
			if sched != nil {
				output.Dim("  Scheduled rescans: %s", app.Config.Scheduler.Spec)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var runErr error
			select {
			case <-ctx.Done():
			case runErr = <-server.Errors():
			}

			if sched != nil {
				sched.Stop()
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Stop(shutdownCtx); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	cmd.Flags().BoolVar(&withSchedule, "schedule", false, "also run scheduled rescans")

	return cmd
}

func newScheduleCmd(app *App) *cobra.Command {
	var (
		runNow bool
		once   bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Rescan the configured watchlist on a cron schedule",
		Long: `Scan every configured symbol and timeframe on the [scheduler] cron spec.
New detections are sent to the configured notification channels.`,
		Example: `  harmonic schedule
  harmonic schedule --once`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			sched, err := newScheduler(app)
			if err != nil {
				return err
			}
			defer sched.Stop()

			if runNow || once {
				summary, err := sched.RunNow(cmd.Context())
				if err != nil {
					return err
				}
				if output.IsJSON() {
					if err := output.JSON(summary); err != nil {
						return err
					}
				} else {
					output.Success("✓ Scanned %d series: %d new detection(s), %d without data, %d failure(s)",
						summary.Scans, summary.Detections, summary.NoData, summary.Failures)
				}
				if once {
					return nil
				}
			}

			if err := sched.Start(); err != nil {
				return err
			}
			if !output.IsJSON() {
				output.Info("Scheduler running (%s), next run %s", app.Config.Scheduler.Spec, FormatDateTime(sched.Next()))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().BoolVar(&runNow, "run-now", false, "run one pass immediately before scheduling")
	cmd.Flags().BoolVar(&once, "once", false, "run one pass and exit")

	return cmd
}
