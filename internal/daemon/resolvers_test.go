package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/store"
)

func TestResolverCache(t *testing.T) {
	tt := testTimetable()
	c := NewResolverCache(tt, nil)

	r, ok := c.ResolverFor(at(10, 0, 0))
	require.True(t, ok)
	assert.Equal(t, "2026-10-19", c.Day())

	same, ok := c.ResolverFor(at(11, 0, 0))
	require.True(t, ok)
	assert.Same(t, r, same, "cached within the day")

	next := r.NextPrayer(at(21, 0, 0))
	assert.False(t, next.IsToday)
	assert.True(t, time.Date(2026, 10, 20, 5, 32, 0, 0, time.UTC).Equal(next.Instant), "uses tomorrow's entry")

	tomorrow, ok := c.ResolverFor(at(10, 0, 0).AddDate(0, 0, 1))
	require.True(t, ok)
	assert.NotSame(t, r, tomorrow)
	assert.Equal(t, "2026-10-20", c.Day())
}

func TestResolverCache_RebuildsOnReload(t *testing.T) {
	tt := testTimetable()
	c := NewResolverCache(tt, nil)

	r, ok := c.ResolverFor(at(10, 0, 0))
	require.True(t, ok)

	tt.Replace([]model.DailyPrayerTimes{
		model.NewDailyPrayerTimes(testDay, "5:30", "1:30", "4:45", "7:10", "8:30"),
	})

	fresh, ok := c.ResolverFor(at(10, 0, 0))
	require.True(t, ok)
	assert.NotSame(t, r, fresh)

	zuhr, err := fresh.ResolveInstant(model.Zuhr)
	require.NoError(t, err)
	assert.True(t, at(13, 30, 0).Equal(zuhr))
}

func TestResolverCache_MissingDay(t *testing.T) {
	c := NewResolverCache(store.NewTimetable("", time.UTC), nil)

	r, ok := c.ResolverFor(at(10, 0, 0))
	assert.False(t, ok)
	assert.Nil(t, r)

	_, ok = c.ResolverFor(at(10, 0, 0))
	assert.False(t, ok, "stays missing without a reload")
}

func TestKiosk_Rollover(t *testing.T) {
	k, _, _ := newTestKiosk(t)

	k.Rollover(context.Background(), at(0, 0, 30))
	assert.Equal(t, "2026-10-19", k.lastDay)

	k.Rollover(context.Background(), at(0, 0, 30).AddDate(0, 0, 2))
	assert.Equal(t, "2026-10-21", k.lastDay)
}
