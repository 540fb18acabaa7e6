package schedule

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/adhan/internal/model"
)

func TestDescribe(t *testing.T) {
	r := testResolver()

	v := r.Describe(at(13, 20, 0), DefaultBlackoutMinutes)
	assert.Equal(t, "2026-10-19", v.Date)
	require.Len(t, v.Prayers, 5)
	require.NotNil(t, v.Current)
	assert.Equal(t, model.Zuhr, v.Current.Label)
	assert.True(t, v.Prayers[1].Current)
	assert.False(t, v.Prayers[0].Current)
	assert.Equal(t, "1:15", v.Prayers[1].Time)
	require.NotNil(t, v.Prayers[1].At)
	assert.True(t, at(13, 15, 0).Equal(*v.Prayers[1].At))
	assert.Equal(t, model.Asr, v.Next.Label)
	assert.True(t, v.Blackout)

	left, ok := v.NextIn(at(13, 20, 0))
	require.True(t, ok)
	assert.Equal(t, 3*time.Hour+25*time.Minute, left)
}

func TestDescribe_BeforeFajrAndAfterIsha(t *testing.T) {
	r := testResolver()

	early := r.Describe(at(4, 0, 0), DefaultBlackoutMinutes)
	assert.Nil(t, early.Current)
	assert.Equal(t, model.Fajr, early.Next.Label)
	assert.True(t, early.Next.IsToday)
	assert.False(t, early.Blackout)

	late := r.Describe(at(22, 0, 0), DefaultBlackoutMinutes)
	require.NotNil(t, late.Current)
	assert.Equal(t, model.Isha, late.Current.Label)
	assert.False(t, late.Next.IsToday)
	assert.True(t, time.Date(2026, 10, 20, 5, 32, 0, 0, time.UTC).Equal(late.Next.Instant))
}

func TestDescribe_MalformedEntry(t *testing.T) {
	day := model.NewDailyPrayerTimes(testDay, "5:30", "1:15", "later", "7:10", "8:30")
	v := NewResolver(day, nil).Describe(at(12, 0, 0), DefaultBlackoutMinutes)

	assert.Nil(t, v.Prayers[2].At)
	assert.Contains(t, v.Prayers[2].Error, "later")

	_, ok := NewResolver(day, nil).Describe(at(21, 0, 0), 13).NextIn(at(21, 0, 0))
	assert.False(t, ok, "tomorrow unknown")
}

func TestView_JSON(t *testing.T) {
	v := testResolver().Describe(at(13, 20, 0), DefaultBlackoutMinutes)

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"label":"zuhr"`)
	assert.Contains(t, string(data), `"blackout":true`)

	var back View
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, model.Zuhr, back.Current.Label)
	assert.Equal(t, "4:45", back.Prayers[2].Time)
}
