package main

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/adapter/output"
	"github.com/jmylchreest/adhan/internal/core"
	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/schedule"
)

var daysOpts struct {
	from     string
	count    int
	order    string
	format   string
	template string
}

var daysCmd = &cobra.Command{
	Use:   "days",
	Short: "List prayer times for several days",
	Long: `List the timetable for a range of days, starting today by default.

Missing days are reported on stderr: adhand makes no announcements on a day
the timetable does not cover.

Examples:
  adhan days                    # the next 7 days
  adhan days --from +7 -n 14    # a fortnight starting next week
  adhan days --format dmenu | fuzzel --dmenu`,
	RunE: runDays,
}

func init() {
	rootCmd.AddCommand(daysCmd)

	daysCmd.Flags().StringVar(&daysOpts.from, "from", "today",
		"First day (YYYY-MM-DD, today, tomorrow, +N, -N)")
	daysCmd.Flags().IntVarP(&daysOpts.count, "count", "n", 7,
		"Number of days to show (0 = all)")
	daysCmd.Flags().StringVar(&daysOpts.order, "order", "asc",
		"Sort order (asc, desc)")
	daysCmd.Flags().StringVar(&daysOpts.format, "format", "table",
		"Output format (table, plain, json, dmenu)")
	daysCmd.Flags().StringVar(&daysOpts.template, "template", "",
		"Go template applied to each prayer")
}

func runDays(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormatType(daysOpts.format)
	if err != nil {
		return err
	}

	now := time.Now().In(timetable.Location())
	from, err := core.ParseDate(daysOpts.from, now)
	if err != nil {
		return err
	}

	days := core.Filter(timetable.Days(), core.FilterOptions{From: from})
	core.Sort(days, core.SortAsc)
	if daysOpts.count > 0 && len(days) > daysOpts.count {
		days = days[:daysOpts.count]
	}
	if len(days) == 0 {
		return fmt.Errorf("no prayer times from %s in %s", from.Format("2006-01-02"), timetable.Path())
	}

	for _, gap := range core.Gaps(days) {
		fmt.Fprintf(os.Stderr, "warning: no prayer times for %s\n", gap.Format("2006-01-02"))
	}

	views := buildViews(days, now, daemonCfg.Schedule.BlackoutMinutes)
	if core.ParseSortOrder(daysOpts.order) == core.SortDesc {
		slices.Reverse(views)
	}

	return output.NewFormatter(format, formatterOptions(daysOpts.template)).Format(os.Stdout, views)
}

// buildViews describes each day. Today's view is taken at now so the
// current prayer is marked; other days are taken at midnight.
func buildViews(days []model.DailyPrayerTimes, now time.Time, blackoutMinutes int) []schedule.View {
	views := make([]schedule.View, 0, len(days))
	for _, d := range days {
		at := d.Date
		if sameDay(d.Date, now) {
			at = now
		}
		tomorrow := core.LookupByDate(days, d.Date.AddDate(0, 0, 1))
		views = append(views, schedule.NewResolver(d, tomorrow).Describe(at, blackoutMinutes))
	}
	return views
}
