package core

import (
	"time"

	"github.com/jmylchreest/adhan/internal/model"
)

// LookupByDate finds the entry for date's calendar day.
// Returns nil if not found.
func LookupByDate(days []model.DailyPrayerTimes, date time.Time) *model.DailyPrayerTimes {
	key := dateKey(date)
	for i := range days {
		if dateKey(days[i].Date) == key {
			return &days[i]
		}
	}
	return nil
}

// LookupByIndex finds a day by its index (1-based for user-friendliness).
// Returns nil if index is out of bounds.
func LookupByIndex(days []model.DailyPrayerTimes, index int) *model.DailyPrayerTimes {
	idx := index - 1
	if idx < 0 || idx >= len(days) {
		return nil
	}
	return &days[idx]
}

// Gaps returns the calendar days missing between the earliest and latest
// entries. The daemon stays silent on those days.
func Gaps(days []model.DailyPrayerTimes) []time.Time {
	if len(days) < 2 {
		return nil
	}

	sorted := make([]model.DailyPrayerTimes, len(days))
	copy(sorted, days)
	Sort(sorted, SortAsc)

	var gaps []time.Time
	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1].Date, dateKey(sorted[i].Date)
		for d := prev.AddDate(0, 0, 1); dateKey(d) < next; d = d.AddDate(0, 0, 1) {
			gaps = append(gaps, d)
		}
	}
	return gaps
}
