package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/adapter/output"
	"github.com/jmylchreest/adhan/internal/core"
	"github.com/jmylchreest/adhan/internal/schedule"
)

var todayOpts struct {
	date     string
	format   string
	template string
}

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show today's prayer times",
	Long: `Show the prayer times for today (or --date) from the timetable.

The prayer whose congregation has most recently started is marked with '>'.

Output formats:
  table  Aligned columns with the current prayer marked (default)
  plain  Aligned columns only
  json   The schedule view as JSON
  dmenu  One prayer per line for dmenu/rofi/fuzzel

Custom templates (--template) are applied per prayer and can use:
  {{.Index}} {{.Date}} {{.Label}} {{.Time}} {{.Raw}} {{.Current}} {{.Error}}
  and the functions upper, lower and pad.`,
	RunE: runToday,
}

func init() {
	rootCmd.AddCommand(todayCmd)

	todayCmd.Flags().StringVar(&todayOpts.date, "date", "",
		"Show another day (YYYY-MM-DD, tomorrow, +N)")
	todayCmd.Flags().StringVar(&todayOpts.format, "format", "table",
		"Output format (table, plain, json, dmenu)")
	todayCmd.Flags().StringVar(&todayOpts.template, "template", "",
		"Go template applied to each prayer")
}

func runToday(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormatType(todayOpts.format)
	if err != nil {
		return err
	}

	now := time.Now().In(timetable.Location())
	if todayOpts.date != "" {
		d, err := core.ParseDate(todayOpts.date, now)
		if err != nil {
			return err
		}
		if !sameDay(d, now) {
			now = d
		}
	}

	view, ok := describeDay(now)
	if !ok {
		return fmt.Errorf("no prayer times for %s in %s", now.Format("2006-01-02"), timetable.Path())
	}

	if format == output.FormatJSON {
		return output.NewJSONFormatter(formatterOptions("")).FormatSingle(os.Stdout, view)
	}
	return output.NewFormatter(format, formatterOptions(todayOpts.template)).Format(os.Stdout, []schedule.View{view})
}

// formatterOptions builds output options from the CLI display config.
func formatterOptions(template string) output.FormatterOptions {
	opts := output.DefaultFormatterOptions()
	opts.TimeFormat = cfg.Display.TimeFormat
	opts.DateFormat = cfg.Display.DateFormat
	opts.Template = template
	return opts
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.In(a.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
