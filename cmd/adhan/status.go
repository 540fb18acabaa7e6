package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/daemon"
	"github.com/jmylchreest/adhan/internal/schedule"
)

var statusOpts struct {
	format string
}

// WaybarStatus represents the Waybar custom module JSON format.
type WaybarStatus struct {
	Text    string `json:"text"`
	Alt     string `json:"alt,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
	Class   string `json:"class,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show adhand status",
	Long: `Show what adhand is doing: quiet mode, the audio channel and today's
schedule as the daemon sees it.

Output formats:
  text    Human readable summary (default)
  json    The daemon status JSON, unchanged
  waybar  Waybar custom module JSON

The waybar format falls back to the local timetable when adhand is not
running:

  "custom/adhan": {
    "exec": "adhan status --format waybar",
    "interval": 30,
    "return-type": "json",
    "on-click": "adhan quiet toggle"
  }`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusOpts.format, "format", "text",
		"Output format (text, json, waybar)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	raw, st, err := fetchStatus(ctx)
	if err != nil && statusOpts.format != "waybar" {
		return fmt.Errorf("failed to query adhand: %w", err)
	}

	switch statusOpts.format {
	case "json":
		_, err := os.Stdout.Write(append(raw, '\n'))
		return err
	case "waybar":
		now := time.Now().In(timetable.Location())
		if st == nil {
			var local *schedule.View
			if v, ok := describeDay(now); ok {
				local = &v
			}
			return outputWaybar(generateWaybarStatus(local, now, false, "", false))
		}
		return outputWaybar(generateWaybarStatus(st.Schedule, now, st.Quiet, st.Channel.CurrentAsset, true))
	case "text", "":
		fmt.Print(formatStatus(st, cfg.Display.TimeFormat))
		return nil
	default:
		return fmt.Errorf("unknown format %q", statusOpts.format)
	}
}

// fetchStatus queries the daemon and decodes its reply.
func fetchStatus(ctx context.Context) ([]byte, *daemon.Status, error) {
	client, err := connectDaemon()
	if err != nil {
		return nil, nil, err
	}
	defer client.Close()

	raw, err := client.Status(ctx)
	if err != nil {
		return nil, nil, err
	}
	var st daemon.Status
	if err := json.Unmarshal(raw, &st); err != nil {
		return raw, nil, fmt.Errorf("failed to decode status: %w", err)
	}
	return raw, &st, nil
}

// formatStatus renders the daemon status for people.
func formatStatus(st *daemon.Status, timeFormat string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Location:  %s\n", st.Location)
	fmt.Fprintf(&b, "Timetable: %d days\n", st.Days)
	if st.Quiet {
		fmt.Fprintln(&b, "Quiet:     on")
	} else {
		fmt.Fprintln(&b, "Quiet:     off")
	}

	ch := st.Channel
	switch {
	case ch.CurrentAsset != "":
		fmt.Fprintf(&b, "Playing:   %s (%s)\n", ch.CurrentAsset, ch.CurrentPriority)
	case ch.Loading:
		fmt.Fprintln(&b, "Playing:   loading")
	default:
		fmt.Fprintln(&b, "Playing:   nothing")
	}
	if len(ch.Pending) > 0 {
		fmt.Fprintf(&b, "Queued:    %d of %d\n", len(ch.Pending), ch.QueueLimit)
	}
	fmt.Fprintf(&b, "Device:    %s, %d clips cached\n", deviceState(ch.DeviceRunning), len(ch.Cached))

	if st.Schedule == nil {
		fmt.Fprintln(&b, "Schedule:  no prayer times for today")
		return b.String()
	}
	if st.Schedule.Current != nil {
		fmt.Fprintf(&b, "Current:   %s\n", st.Schedule.Current.Label)
	}
	fmt.Fprintf(&b, "Next:      %s\n", describeNext(*st.Schedule, st.Now, timeFormat))
	if st.Schedule.Blackout {
		fmt.Fprintln(&b, "Congregation in progress")
	}
	return b.String()
}

func deviceState(running bool) string {
	if running {
		return "running"
	}
	return "suspended"
}

// generateWaybarStatus creates a WaybarStatus from the day's view.
func generateWaybarStatus(v *schedule.View, now time.Time, quiet bool, playing string, online bool) WaybarStatus {
	if v == nil {
		return WaybarStatus{Text: "", Alt: "empty", Class: "empty", Tooltip: "No prayer times for today"}
	}

	class := "normal"
	switch {
	case !online:
		class = "offline"
	case playing != "":
		class = "playing"
	case v.Blackout:
		class = "blackout"
	case quiet:
		class = "quiet"
	}

	text := v.Next.Label.String()
	if d, ok := v.NextIn(now); ok {
		text = fmt.Sprintf("%s %s", v.Next.Label, formatShortDuration(d))
	}

	var lines []string
	for _, e := range v.Prayers {
		shown := e.Time
		if e.At != nil {
			shown = e.At.Format("15:04")
		}
		lines = append(lines, fmt.Sprintf("%s\t%s", e.Label, shown))
	}
	if playing != "" {
		lines = append(lines, "Playing "+playing)
	}
	if quiet {
		lines = append(lines, "Quiet mode on")
	}
	if !online {
		lines = append(lines, "adhand is not running")
	}

	return WaybarStatus{
		Text:    text,
		Alt:     class,
		Tooltip: strings.Join(lines, "\n"),
		Class:   class,
	}
}

// formatShortDuration renders d as "3h25m" or "12m".
func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// outputWaybar writes the status as JSON.
func outputWaybar(status WaybarStatus) error {
	return json.NewEncoder(os.Stdout).Encode(status)
}
