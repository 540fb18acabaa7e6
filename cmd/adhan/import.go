package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/adhan/internal/adapter/input"
	"github.com/jmylchreest/adhan/internal/core"
	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/store"
)

var importOpts struct {
	replace bool
	prune   bool
	dryRun  bool
}

var importCmd = &cobra.Command{
	Use:   "import [file|-]",
	Short: "Import prayer times into the timetable",
	Long: `Import prayer times exported by a prayer time service into the
timetable adhand reads.

Input is YAML or JSON: either a timetable document ({"days": [...]}) or a
bare list of days. Each day has date (YYYY-MM-DD) and fajr, zuhr (or dhuhr),
asr, maghrib and isha as 12-hour "h:mm" times. Reads stdin when no file is
given.

Imported days replace existing days with the same date. adhand reloads the
timetable when it changes.

Examples:
  curl -s https://example.org/times.json | adhan import
  adhan import november.yaml --prune`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importOpts.replace, "replace", false,
		"Replace the whole timetable instead of merging")
	importCmd.Flags().BoolVar(&importOpts.prune, "prune", false,
		"Drop days before today")
	importCmd.Flags().BoolVarP(&importOpts.dryRun, "dry-run", "n", false,
		"Show what would change without writing")
}

func runImport(cmd *cobra.Command, args []string) error {
	source := "-"
	if len(args) == 1 {
		source = args[0]
	}

	adapter, err := input.NewAdapter(source, timetable.Location())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	incoming, err := adapter.Import(ctx)
	if err != nil {
		return err
	}
	if len(incoming) == 0 {
		return fmt.Errorf("no days found in %s", source)
	}

	now := time.Now().In(timetable.Location())
	result := mergeTimetable(timetable.Days(), incoming, importOpts.replace, importOpts.prune, now)

	for _, d := range incoming {
		if !d.Complete() {
			fmt.Fprintf(os.Stderr, "warning: %s is missing prayer times\n", d.Date.Format(store.DateLayout))
		}
	}
	for _, gap := range core.Gaps(result.days) {
		fmt.Fprintf(os.Stderr, "warning: no prayer times for %s\n", gap.Format(store.DateLayout))
	}

	fmt.Printf("%d imported, %d pruned, %d days total\n", len(incoming), result.pruned, len(result.days))
	if importOpts.dryRun {
		return nil
	}

	logger.Debug("writing timetable", "path", timetable.Path(), "days", len(result.days), "source", adapter.Name())
	return store.SaveTimetable(timetable.Path(), result.days)
}

type mergeResult struct {
	days   []model.DailyPrayerTimes
	pruned int
}

// mergeTimetable folds incoming into existing.
func mergeTimetable(existing, incoming []model.DailyPrayerTimes, replace, prune bool, now time.Time) mergeResult {
	var days []model.DailyPrayerTimes
	if replace {
		days = core.Merge(nil, incoming)
	} else {
		days = core.Merge(existing, incoming)
	}

	var pruned int
	if prune {
		days, pruned = core.PruneBefore(days, now)
	}
	return mergeResult{days: days, pruned: pruned}
}
