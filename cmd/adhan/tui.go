package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/config"
	"github.com/jmylchreest/adhan/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the prayer time display",
	Long: `Launch the full screen prayer time display.

The display shows:
  - A running clock and today's date
  - Today's prayer times with the current prayer underlined
  - A countdown to the next prayer (tomorrow's Fajr after Isha)
  - A banner while a congregation is in progress
  - What adhand is playing, when it is running

Key bindings:
  z           Toggle quiet mode
  R           Reset the audio channel
  r           Reload the timetable
  ?           Show help
  q           Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts := tui.Options{
		Config:          cfg,
		Location:        daemonCfg.Location.Name,
		Timetable:       timetable,
		BlackoutMinutes: daemonCfg.Schedule.BlackoutMinutes,
		StatePath:       config.StatePath(),
	}

	if cfg.TUI.ShowChannel {
		client, err := connectDaemon()
		if err != nil {
			logger.Debug("adhand not reachable, display only", "error", err)
		} else {
			defer client.Close()
			opts.Daemon = client
			signals, err := client.Subscribe(ctx)
			if err != nil {
				logger.Warn("failed to subscribe to announcements", "error", err)
			} else {
				opts.Signals = signals
			}
		}
	}

	return tui.Run(opts)
}
