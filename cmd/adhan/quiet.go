package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/config"
	"github.com/jmylchreest/adhan/internal/dbus"
	"github.com/jmylchreest/adhan/internal/store"
)

var quietOpts struct {
	silent bool // Suppress output, return exit code only
	reason string
}

// quietCmd represents the quiet command group.
var quietCmd = &cobra.Command{
	Use:   "quiet",
	Short: "Manage quiet mode",
	Long: `Manage quiet mode for adhand.

While quiet mode is on, adhand skips hourly chimes and pre/post prayer
announcements. The call to prayer itself still plays unless
quiet.prayer_bypass is off in adhand.toml.

When adhand is running the change is made over D-Bus and takes effect
immediately. Otherwise the shared state file is updated and the daemon
picks it up when it starts.

Exit code: 0=off, 1=on.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to showing status
		return quietStatusRun(cmd, args)
	},
}

var quietOnCmd = &cobra.Command{
	Use:   "on",
	Short: "Enable quiet mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return quietSetRun(func(bool) bool { return true })
	},
}

var quietOffCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable quiet mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return quietSetRun(func(bool) bool { return false })
	},
}

var quietToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Toggle quiet mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		return quietSetRun(func(current bool) bool { return !current })
	},
}

var quietStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show quiet mode status",
	RunE:  quietStatusRun,
}

func init() {
	quietCmd.AddCommand(quietOnCmd)
	quietCmd.AddCommand(quietOffCmd)
	quietCmd.AddCommand(quietToggleCmd)
	quietCmd.AddCommand(quietStatusCmd)

	for _, cmd := range []*cobra.Command{quietCmd, quietOnCmd, quietOffCmd, quietToggleCmd, quietStatusCmd} {
		cmd.Flags().BoolVarP(&quietOpts.silent, "silent", "s", false,
			"Suppress output, return exit code only (0=off, 1=on)")
	}
	for _, cmd := range []*cobra.Command{quietOnCmd, quietOffCmd, quietToggleCmd} {
		cmd.Flags().StringVar(&quietOpts.reason, "reason", "",
			"Reason recorded with the change")
	}

	rootCmd.AddCommand(quietCmd)
}

func quietSetRun(target func(current bool) bool) error {
	statePath := config.StatePath()
	state, err := store.LoadSharedState(statePath)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	enabled := target(state.Quiet)

	client, err := connectDaemon()
	if err != nil {
		if !errors.Is(err, dbus.ErrDaemonNotRunning) {
			logger.Warn("D-Bus unavailable, updating state file", "error", err)
		}
		if err := writeQuiet(statePath, state, enabled, time.Now()); err != nil {
			return err
		}
	} else {
		defer client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.SetQuiet(ctx, enabled); err != nil {
			return fmt.Errorf("failed to set quiet mode: %w", err)
		}
	}

	printQuiet(enabled)
	return quietExit(enabled)
}

// writeQuiet records a user quiet change in the state file.
func writeQuiet(path string, state *store.SharedState, enabled bool, now time.Time) error {
	reason := quietOpts.reason
	if reason == "" {
		reason = "quiet " + onOff(enabled)
	}
	state.SetQuiet(enabled, store.QuietTriggerUser, reason, "cli", now)
	if err := store.SaveSharedState(path, state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

func quietStatusRun(cmd *cobra.Command, args []string) error {
	state, err := store.LoadSharedState(config.StatePath())
	if err != nil {
		if !quietOpts.silent {
			fmt.Fprintf(os.Stderr, "Failed to load state: %v\n", err)
		}
		return err
	}

	printQuiet(state.Quiet)
	if !quietOpts.silent && state.LastTransition != nil {
		t := state.LastTransition
		fmt.Printf("  Last change: %s\n", formatTransitionTime(t.Timestamp))
		fmt.Printf("  Trigger: %s\n", t.Trigger)
		if t.Reason != "" {
			fmt.Printf("  Reason: %s\n", t.Reason)
		}
		if t.Source != "" {
			fmt.Printf("  Source: %s\n", t.Source)
		}
	}
	return quietExit(state.Quiet)
}

func printQuiet(enabled bool) {
	if !quietOpts.silent {
		fmt.Println("Quiet mode: " + onOff(enabled))
	}
}

// quietExit exits with 1 when quiet mode is on.
func quietExit(enabled bool) error {
	if enabled {
		os.Exit(1)
	}
	return nil
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

// formatTransitionTime formats a unix timestamp as a human-readable relative time.
func formatTransitionTime(timestamp int64) string {
	return humanize.Time(time.Unix(timestamp, 0))
}
