package core

import (
	"sort"
	"strings"

	"github.com/jmylchreest/adhan/internal/model"
)

// SortOrder represents ascending or descending order.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort sorts days in place by calendar date.
func Sort(days []model.DailyPrayerTimes, order SortOrder) {
	if len(days) == 0 {
		return
	}

	sort.SliceStable(days, func(i, j int) bool {
		a, b := dateKey(days[i].Date), dateKey(days[j].Date)
		if order == SortDesc {
			return a > b
		}
		return a < b
	})
}

// ParseSortOrder parses a sort order string. Unknown values sort ascending.
func ParseSortOrder(s string) SortOrder {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desc", "descending", "d":
		return SortDesc
	default:
		return SortAsc
	}
}
