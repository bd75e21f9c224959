// Package cli provides the command-line interface for the harmonic pattern scanner.
package cli

import (
	"github.com/spf13/cobra"

	"harmonic-trader/internal/config"
)

// Version information
const (
	Version   = "0.1.0"
	BuildDate = "2026-10-01"
)

// Command annotations read by the root pre-run hook.
const (
	annotationBootstrap      = "bootstrap"       // "false" skips store/cache wiring
	annotationTolerateConfig = "tolerate_config" // "true" keeps going on an invalid config
)

// NewRootCmd creates the root command for the CLI.
func NewRootCmd() *cobra.Command {
	app := &App{}

	rootCmd := &cobra.Command{
		Use:   "harmonic",
		Short: "Harmonic XABCD chart pattern scanner",
		Long: `Harmonic detects Gartley, Bat, Butterfly, Crab, Shark and Cypher patterns
in OHLCV candle series.

Candles can be scanned straight from a JSON file or imported into the local
store and scanned by symbol and timeframe. The same scanner backs the HTTP API
(harmonic serve) and scheduled rescans (harmonic schedule).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("config")
			debug, _ := cmd.Flags().GetBool("debug")
			tolerate := cmd.Annotations[annotationTolerateConfig] == "true"
			if err := app.loadConfig(dir, debug, tolerate); err != nil {
				return err
			}
			if cmd.Annotations[annotationBootstrap] == "false" {
				return nil
			}
			return app.bootstrap(cmd.Context())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			app.Close()
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/harmonic-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	addCoreCommands(rootCmd, app)
	addAnalysisCommands(rootCmd, app)
	addDataCommands(rootCmd, app)
	addServiceCommands(rootCmd, app)

	return rootCmd
}

func noBootstrap() map[string]string {
	return map[string]string{annotationBootstrap: "false"}
}

// addCoreCommands adds core utility commands.
func addCoreCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Annotations: noBootstrap(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(map[string]string{
					"version":    Version,
					"build_date": BuildDate,
				})
			}
			output.Printf("Harmonic Trader v%s\n", Version)
			output.Dim("Build date: %s", BuildDate)
			return nil
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate the application configuration.",
	}

	tolerant := map[string]string{
		annotationBootstrap:      "false",
		annotationTolerateConfig: "true",
	}

	cmd.AddCommand(&cobra.Command{
		Use:         "show",
		Short:       "Show current configuration",
		Annotations: noBootstrap(),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(redacted(app.Config))
			}
			showConfig(output, app.Config)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file path",
		Annotations: tolerant,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			path := config.ConfigPath(app.ConfigDir)
			if output.IsJSON() {
				return output.JSON(map[string]string{"path": path})
			}
			output.Println(path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: tolerant,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if app.ConfigErr != nil {
				if output.IsJSON() {
					_ = output.JSON(map[string]interface{}{"valid": false, "error": app.ConfigErr.Error()})
				} else {
					output.Error("Configuration validation failed: %v", app.ConfigErr)
				}
				return app.ConfigErr
			}
			if output.IsJSON() {
				return output.JSON(map[string]bool{"valid": true})
			}
			output.Success("✓ Configuration is valid")
			return nil
		},
	})

	return cmd
}

// redacted returns a copy of cfg with secrets masked.
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "********"
	}
	out.Cache.RedisPassword = mask(out.Cache.RedisPassword)
	out.Notifications.Telegram.BotToken = mask(out.Notifications.Telegram.BotToken)
	return out
}

func showConfig(output *Output, cfg *config.Config) {
	output.Bold("Detection")
	output.Printf("  Lookback:         %d\n", cfg.Detection.Lookback)
	output.Printf("  Min Candles:      %d\n", cfg.Detection.MinCandles)
	output.Printf("  Placeholders:     %v\n", cfg.Detection.AllowPlaceholders)
	output.Printf("  Candle Limit:     %d\n", cfg.Detection.CandleLimit)
	output.Println()

	output.Bold("Storage")
	output.Printf("  SQLite:           %s\n", cfg.Store.Path)
	output.Printf("  Cache:            %s (ttl %s)\n", cfg.Cache.Backend, cfg.Cache.TTL)
	if cfg.Cache.Backend == "redis" {
		output.Printf("  Redis:            %s db %d\n", cfg.Cache.RedisAddr, cfg.Cache.RedisDB)
	}
	output.Println()

	output.Bold("Server")
	output.Printf("  Address:          %s\n", cfg.Server.Addr())
	output.Println()

	output.Bold("Scheduler")
	output.Printf("  Enabled:          %v\n", cfg.Scheduler.Enabled)
	output.Printf("  Spec:             %s\n", cfg.Scheduler.Spec)
	output.Printf("  Symbols:          %v\n", cfg.Scheduler.Symbols)
	output.Printf("  Timeframes:       %v\n", cfg.Scheduler.Timeframes)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Enabled:          %v\n", cfg.Notifications.Enabled)
	output.Printf("  Level:            %s\n", cfg.Notifications.Level)
	output.Printf("  Webhook:          %v\n", cfg.Notifications.Webhook.Enabled)
	output.Printf("  Telegram:         %v\n", cfg.Notifications.Telegram.Enabled)
}
