// Package main provides the CLI entrypoint for adhan.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/config"
	"github.com/jmylchreest/adhan/internal/daemon"
	"github.com/jmylchreest/adhan/internal/dbus"
	"github.com/jmylchreest/adhan/internal/schedule"
	"github.com/jmylchreest/adhan/internal/store"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	daemonCfg  *config.DaemonConfig
	globalOpts struct {
		verbose          bool
		configPath       string
		daemonConfigPath string
		timetablePath    string
		bus              string
	}
	logger *slog.Logger

	timetable *store.Timetable
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "adhan",
	Short: "Prayer times and announcement control for adhand",
	Long: `adhan shows the prayer timetable and controls the adhand announcement
daemon.

It reads the same configuration and timetable as adhand, so today's times and
the next prayer are available even when the daemon is not running. Commands
that touch the audio channel talk to adhand over D-Bus.

Running adhan without a subcommand launches the terminal display.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		daemonCfg, err = config.LoadDaemonConfig(globalOpts.daemonConfigPath)
		if err != nil {
			return fmt.Errorf("failed to load daemon config: %w", err)
		}
		if globalOpts.bus != "" {
			daemonCfg.DBus.Bus = globalOpts.bus
		}

		loc, err := daemonCfg.Location.Load()
		if err != nil {
			return err
		}

		path := globalOpts.timetablePath
		if path == "" {
			path = daemonCfg.TimetablePath()
		}
		timetable = store.NewTimetable(path, loc)
		if err := timetable.Hydrate(); err != nil {
			logger.Warn("failed to load timetable", "path", path, "error", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if timetable != nil {
			return timetable.Close()
		}
		return nil
	},
	// Default to TUI when no subcommand is provided
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to CLI config file (default: ~/.config/adhan/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.daemonConfigPath, "daemon-config", "",
		"Path to daemon config file (default: ~/.config/adhan/adhand.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.timetablePath, "timetable", "",
		"Path to timetable file (default: from the daemon config)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.bus, "bus", "",
		"D-Bus bus to reach adhand on (session, system)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// describeDay returns the schedule view for now, or false when the
// timetable has no entry for today.
func describeDay(now time.Time) (schedule.View, bool) {
	r, ok := daemon.NewResolverCache(timetable, logger).ResolverFor(now)
	if !ok {
		return schedule.View{}, false
	}
	return r.Describe(now, daemonCfg.Schedule.BlackoutMinutes), true
}

// connectDaemon opens a D-Bus client for adhand.
func connectDaemon() (*dbus.Client, error) {
	return dbus.NewClient(daemonCfg.DBus.Bus)
}
