package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/schedule"
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the next prayer",
	Long: `Show the next prayer and how long until it starts.

After Isha the next prayer is tomorrow's Fajr, which needs tomorrow's
entry in the timetable.`,
	RunE: runNext,
}

func init() {
	rootCmd.AddCommand(nextCmd)
}

func runNext(cmd *cobra.Command, args []string) error {
	now := time.Now().In(timetable.Location())
	view, ok := describeDay(now)
	if !ok {
		return fmt.Errorf("no prayer times for today in %s", timetable.Path())
	}
	fmt.Println(describeNext(view, now, cfg.Display.TimeFormat))
	return nil
}

// describeNext renders the next prayer line, e.g. "Asr at 4:45 PM (3 hours from now)".
func describeNext(v schedule.View, now time.Time, timeFormat string) string {
	n := v.Next
	if n.Instant.IsZero() {
		return fmt.Sprintf("%s tomorrow (time unknown)", n.Label)
	}

	day := ""
	if !n.IsToday {
		day = "tomorrow "
	}
	return fmt.Sprintf("%s %sat %s (%s)", n.Label, day, n.Instant.Format(timeFormat),
		humanize.RelTime(n.Instant, now, "ago", "from now"))
}
