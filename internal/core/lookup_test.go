package core

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/adhan/internal/model"
)

func TestLookupByDate(t *testing.T) {
	days := testDays()

	t.Run("found", func(t *testing.T) {
		result := LookupByDate(days, time.Date(2026, 10, 20, 13, 0, 0, 0, time.UTC))
		require.NotNil(t, result)
		fajr, _ := result.Time(model.Fajr)
		assert.Equal(t, "5:33", fajr)
	})

	t.Run("not found", func(t *testing.T) {
		assert.Nil(t, LookupByDate(days, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("empty slice", func(t *testing.T) {
		assert.Nil(t, LookupByDate(nil, time.Now()))
	})
}

func TestLookupByIndex(t *testing.T) {
	days := testDays()

	tests := []struct {
		name  string
		index int
		want  string
	}{
		{"first", 1, "2026-10-18"},
		{"last", 4, "2026-10-21"},
		{"zero", 0, ""},
		{"negative", -1, ""},
		{"out of bounds", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := LookupByIndex(days, tt.index)
			if tt.want == "" {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tt.want, dateKey(result.Date))
		})
	}
}

func TestGaps(t *testing.T) {
	days := []model.DailyPrayerTimes{day("2026-10-23"), day("2026-10-18"), day("2026-10-19"), day("2026-10-21")}

	gaps := Gaps(days)
	var got []string
	for _, g := range gaps {
		got = append(got, dateKey(g))
	}
	assert.Equal(t, []string{"2026-10-20", "2026-10-22"}, got)

	assert.Nil(t, Gaps(days[:1]))
	assert.Empty(t, Gaps(testDays()))
}

func TestGaps_DaylightSaving(t *testing.T) {
	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)

	a := model.NewDailyPrayerTimes(time.Date(2026, 10, 24, 0, 0, 0, 0, loc), "6:00", "1:00", "3:30", "5:50", "7:20")
	b := model.NewDailyPrayerTimes(time.Date(2026, 10, 27, 0, 0, 0, 0, loc), "6:00", "12:55", "3:25", "4:45", "6:15")

	var got []string
	for _, g := range Gaps([]model.DailyPrayerTimes{a, b}) {
		got = append(got, dateKey(g))
	}
	assert.Equal(t, []string{"2026-10-25", "2026-10-26"}, got)
}
