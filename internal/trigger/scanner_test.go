package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/schedule"
)

type recorder struct {
	reqs []model.PlaybackRequest
}

func (r *recorder) Submit(req model.PlaybackRequest) {
	r.reqs = append(r.reqs, req)
}

func clock(day, h, m, s int) time.Time {
	return time.Date(2026, 10, day, h, m, s, 0, time.UTC)
}

func fixedSource(times ...string) ResolverSource {
	return ResolverFunc(func(now time.Time) (*schedule.Resolver, bool) {
		y, mo, d := now.Date()
		date := time.Date(y, mo, d, 0, 0, 0, 0, now.Location())
		day := model.NewDailyPrayerTimes(date, times[0], times[1], times[2], times[3], times[4])
		return schedule.NewResolver(day, nil), true
	})
}

func standardSource() ResolverSource {
	return fixedSource("5:30", "1:15", "4:45", "7:10", "8:30")
}

func newTestScanner(t *testing.T, cfg Config, src ResolverSource) (*Scanner, *recorder) {
	t.Helper()
	rec := &recorder{}
	s := NewScanner(cfg, src, rec, nil)
	s.SetPicker(func(n int) int { return 2 })
	return s, rec
}

func TestScanner_HourlyChimeFiresOnce(t *testing.T) {
	s, rec := newTestScanner(t, DefaultConfig(), standardSource())

	got := s.Tick(clock(19, 14, 0, 0))
	require.Len(t, got, 1)
	assert.Equal(t, "3.mp3", got[0].Asset)
	assert.Equal(t, model.PriorityHourly, got[0].Priority)
	assert.Equal(t, 0.5, got[0].Volume)

	assert.Empty(t, s.Tick(clock(19, 14, 0, 0)), "repeat tick in the same second")
	assert.Len(t, rec.reqs, 1)
}

func TestScanner_ChimeMarkerResetsAtMinuteOne(t *testing.T) {
	s, rec := newTestScanner(t, DefaultConfig(), standardSource())

	s.Tick(clock(19, 14, 0, 0))
	s.Tick(clock(19, 14, 1, 0))
	s.Tick(clock(19, 15, 0, 0))
	assert.Len(t, rec.reqs, 2)
}

func TestScanner_ChimeWindow(t *testing.T) {
	tests := []struct {
		hour int
		want bool
	}{
		{0, false},
		{4, false},
		{5, true},
		{12, true},
		{23, true},
	}
	for _, tt := range tests {
		s, _ := newTestScanner(t, DefaultConfig(), standardSource())
		got := s.Tick(clock(19, tt.hour, 0, 0))
		assert.Equal(t, tt.want, len(got) == 1, "hour %d", tt.hour)
	}
}

func TestScanner_ChimeNotOnTheHour(t *testing.T) {
	s, rec := newTestScanner(t, DefaultConfig(), standardSource())
	s.Tick(clock(19, 14, 0, 1))
	s.Tick(clock(19, 14, 30, 0))
	assert.Empty(t, rec.reqs)
}

func TestScanner_ChimeBlackout(t *testing.T) {
	src := fixedSource("5:30", "1:15", "4:50", "7:10", "8:30")

	s, _ := newTestScanner(t, DefaultConfig(), src)
	assert.Len(t, s.Tick(clock(19, 17, 0, 0)), 1, "chime plays through blackout by default")

	cfg := DefaultConfig()
	cfg.Chime.RespectBlackout = true
	s, _ = newTestScanner(t, cfg, src)
	assert.Empty(t, s.Tick(clock(19, 17, 0, 0)), "asr blackout runs to 17:03")
}

func TestScanner_ChimeDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Chime.Enabled = false
	s, _ := newTestScanner(t, cfg, standardSource())
	assert.Empty(t, s.Tick(clock(19, 14, 0, 0)))
}

func TestScanner_PrayerFiresExactlyOnce(t *testing.T) {
	s, rec := newTestScanner(t, DefaultConfig(), standardSource())

	s.Tick(clock(19, 13, 15, 0))
	s.Tick(clock(19, 13, 15, 0).Add(300 * time.Millisecond))
	s.Tick(clock(19, 13, 15, 0).Add(900 * time.Millisecond))

	require.Len(t, rec.reqs, 1)
	req := rec.reqs[0]
	assert.Equal(t, "prayer.mp3", req.Asset)
	assert.Equal(t, model.PriorityPrayer, req.Priority)
	assert.Equal(t, model.KindPrayer, req.Kind)
	require.NotNil(t, req.Label)
	assert.Equal(t, model.Zuhr, *req.Label)
}

func TestScanner_PrePrayer(t *testing.T) {
	s, rec := newTestScanner(t, DefaultConfig(), standardSource())

	s.Tick(clock(19, 12, 55, 0))
	require.Len(t, rec.reqs, 1)
	assert.Equal(t, "zuhr.mp3", rec.reqs[0].Asset)
	assert.Equal(t, model.PriorityPrePrayer, rec.reqs[0].Priority)

	s.Tick(clock(19, 5, 10, 0))
	require.Len(t, rec.reqs, 2)
	assert.Equal(t, "fajr.mp3", rec.reqs[1].Asset)
}

func TestScanner_FajrUsesOwnPrayerAsset(t *testing.T) {
	s, rec := newTestScanner(t, DefaultConfig(), standardSource())
	s.Tick(clock(19, 5, 30, 0))
	require.Len(t, rec.reqs, 1)
	assert.Equal(t, "prayer_fajr.mp3", rec.reqs[0].Asset)
}

func TestScanner_PostPrayer(t *testing.T) {
	// 2026-10-19 is a Monday, 2026-10-23 a Friday.
	s, rec := newTestScanner(t, DefaultConfig(), standardSource())
	s.Tick(clock(19, 21, 30, 0))
	require.Len(t, rec.reqs, 1)
	assert.Equal(t, "everyday.mp3", rec.reqs[0].Asset)
	assert.Equal(t, model.PriorityPostPrayer, rec.reqs[0].Priority)

	s, rec = newTestScanner(t, DefaultConfig(), standardSource())
	s.Tick(clock(23, 21, 30, 0))
	require.Len(t, rec.reqs, 1)
	assert.Equal(t, "friday.mp3", rec.reqs[0].Asset)

	// Only Isha has a post-prayer announcement.
	s, rec = newTestScanner(t, DefaultConfig(), standardSource())
	s.Tick(clock(19, 14, 15, 0))
	assert.Empty(t, rec.reqs)
}

func TestScanner_PostPrayerPastMidnight(t *testing.T) {
	// Isha at 11:20 PM puts the recitation at 00:20, which falls under the
	// next day's plan and is not announced.
	s, rec := newTestScanner(t, DefaultConfig(), fixedSource("5:30", "1:15", "4:45", "7:10", "11:20"))
	for now := clock(19, 23, 0, 0); now.Before(clock(20, 1, 0, 0)); now = now.Add(time.Second) {
		s.Tick(now)
	}

	kinds := map[model.TriggerKind]int{}
	for _, req := range rec.reqs {
		kinds[req.Kind]++
	}
	assert.Equal(t, 1, kinds[model.KindPrePrayer])
	assert.Equal(t, 1, kinds[model.KindPrayer])
	assert.Zero(t, kinds[model.KindPostPrayer])
}

func TestScanner_StrictSkipsMissedTick(t *testing.T) {
	s, rec := newTestScanner(t, DefaultConfig(), standardSource())
	s.Tick(clock(19, 13, 14, 59))
	s.Tick(clock(19, 13, 15, 1))
	assert.Empty(t, rec.reqs)
}

func TestScanner_Tolerance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tolerance = 2 * time.Second
	s, rec := newTestScanner(t, cfg, standardSource())

	s.Tick(clock(19, 13, 15, 1))
	s.Tick(clock(19, 13, 15, 2))
	require.Len(t, rec.reqs, 1)
	assert.Equal(t, "prayer.mp3", rec.reqs[0].Asset)

	s, rec = newTestScanner(t, cfg, standardSource())
	s.Tick(clock(19, 13, 15, 3))
	assert.Empty(t, rec.reqs, "outside the tolerance")

	s, rec = newTestScanner(t, cfg, standardSource())
	s.Tick(clock(19, 14, 0, 2))
	assert.Len(t, rec.reqs, 1, "chime honours the tolerance too")
}

func TestScanner_NoTimetable(t *testing.T) {
	src := ResolverFunc(func(time.Time) (*schedule.Resolver, bool) { return nil, false })
	s, rec := newTestScanner(t, DefaultConfig(), src)

	s.Tick(clock(19, 13, 15, 0))
	assert.Empty(t, rec.reqs)

	s.Tick(clock(19, 14, 0, 0))
	require.Len(t, rec.reqs, 1)
	assert.Equal(t, model.KindHourly, rec.reqs[0].Kind)
}

func TestScanner_MalformedLabelSkipped(t *testing.T) {
	src := fixedSource("5:30", "1:15", "four", "7:10", "8:30")
	s, rec := newTestScanner(t, DefaultConfig(), src)

	s.Tick(clock(19, 19, 10, 0))
	require.Len(t, rec.reqs, 1)
	assert.Equal(t, model.Maghrib, *rec.reqs[0].Label)
}

func TestScanner_EvictsFiredKeys(t *testing.T) {
	s, _ := newTestScanner(t, DefaultConfig(), standardSource())
	s.Tick(clock(19, 13, 15, 0))
	assert.Equal(t, 1, s.FiredCount())

	s.Tick(clock(19, 13, 16, 0))
	assert.Equal(t, 1, s.FiredCount())

	s.Tick(clock(19, 13, 18, 0))
	assert.Equal(t, 0, s.FiredCount())
}

func TestScanner_SetConfigKeepsFired(t *testing.T) {
	s, rec := newTestScanner(t, DefaultConfig(), standardSource())
	s.Tick(clock(19, 13, 15, 0))

	cfg := DefaultConfig()
	cfg.Tolerance = 5 * time.Second
	s.SetConfig(cfg)
	s.Tick(clock(19, 13, 15, 3))
	assert.Len(t, rec.reqs, 1)
}

func TestPlan(t *testing.T) {
	day := model.NewDailyPrayerTimes(clock(19, 0, 0, 0), "5:30", "1:15", "4:45", "7:10", "8:30")
	triggers, errs := Plan(schedule.NewResolver(day, nil), DefaultConfig())
	require.Empty(t, errs)
	require.Len(t, triggers, 11)

	for i := 1; i < len(triggers); i++ {
		assert.False(t, triggers[i].At.Before(triggers[i-1].At))
	}
	assert.Equal(t, model.KindPrePrayer, triggers[0].Kind)
	assert.True(t, clock(19, 5, 10, 0).Equal(triggers[0].At))
	last := triggers[len(triggers)-1]
	assert.Equal(t, model.KindPostPrayer, last.Kind)
	assert.True(t, clock(19, 21, 30, 0).Equal(last.At))
}

func TestAssets(t *testing.T) {
	a := DefaultAssets()
	a.PrePrayer[model.Asr] = "asr_reminder.ogg"
	assert.Equal(t, "asr_reminder.ogg", a.PrePrayerAsset(model.Asr))
	assert.Equal(t, "isha.mp3", a.PrePrayerAsset(model.Isha))

	all := a.All()
	assert.Contains(t, all, "prayer_fajr.mp3")
	assert.Contains(t, all, "friday.mp3")
	assert.Len(t, all, 9)
}

func TestFiredSet(t *testing.T) {
	set := NewFiredSet(0)
	assert.Equal(t, DefaultEvictionWindow, set.Window())

	at := clock(19, 13, 15, 0)
	k := model.NewFiredKey(model.Zuhr, model.KindPrayer, at)
	assert.True(t, set.Mark(k))
	assert.False(t, set.Mark(k))
	assert.True(t, set.Has(k))

	assert.Equal(t, 0, set.Evict(at.Add(2*time.Minute)))
	assert.Equal(t, 1, set.Evict(at.Add(2*time.Minute+time.Second)))

	assert.Equal(t, 3*time.Minute, evictionWindow(2*time.Minute))
	assert.Equal(t, DefaultEvictionWindow, evictionWindow(time.Second))
}
