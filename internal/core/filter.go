// Package core provides filtering, sorting, and lookup logic for timetable days.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/store"
)

// FilterOptions specifies which timetable days to keep.
type FilterOptions struct {
	From     time.Time // Inclusive calendar day (zero=no lower bound)
	To       time.Time // Inclusive calendar day (zero=no upper bound)
	Complete bool      // Only days with all five times
	Limit    int       // Maximum results (0=unlimited)
}

// Filter returns the days matching opts, in their original order.
func Filter(days []model.DailyPrayerTimes, opts FilterOptions) []model.DailyPrayerTimes {
	from, to := "", ""
	if !opts.From.IsZero() {
		from = dateKey(opts.From)
	}
	if !opts.To.IsZero() {
		to = dateKey(opts.To)
	}

	result := make([]model.DailyPrayerTimes, 0, len(days))
	for _, d := range days {
		key := dateKey(d.Date)
		if from != "" && key < from {
			continue
		}
		if to != "" && key > to {
			continue
		}
		if opts.Complete && !d.Complete() {
			continue
		}

		result = append(result, d)
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
	}
	return result
}

// Merge combines two timetables. Days in incoming replace days in existing
// with the same date. The result is sorted by date.
func Merge(existing, incoming []model.DailyPrayerTimes) []model.DailyPrayerTimes {
	byDate := make(map[string]model.DailyPrayerTimes, len(existing)+len(incoming))
	for _, d := range existing {
		byDate[dateKey(d.Date)] = d
	}
	for _, d := range incoming {
		byDate[dateKey(d.Date)] = d
	}

	result := make([]model.DailyPrayerTimes, 0, len(byDate))
	for _, d := range byDate {
		result = append(result, d)
	}
	Sort(result, SortAsc)
	return result
}

// PruneBefore drops days earlier than cutoff's calendar day and returns the
// remaining days and how many were removed.
func PruneBefore(days []model.DailyPrayerTimes, cutoff time.Time) ([]model.DailyPrayerTimes, int) {
	kept := Filter(days, FilterOptions{From: cutoff})
	return kept, len(days) - len(kept)
}

// ParseDate parses a day reference relative to now: "today", "tomorrow",
// "yesterday", a signed day offset ("+7", "-1") or YYYY-MM-DD.
func ParseDate(s string, now time.Time) (time.Time, error) {
	loc := now.Location()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case "yesterday":
		return today.AddDate(0, 0, -1), nil
	}

	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		n, err := strconv.Atoi(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day offset %q", s)
		}
		return today.AddDate(0, 0, n), nil
	}

	t, err := time.ParseInLocation(store.DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD, today, tomorrow or +N)", s)
	}
	return t, nil
}

func dateKey(t time.Time) string {
	return t.Format(store.DateLayout)
}
