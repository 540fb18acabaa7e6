package trigger

import (
	"fmt"
	"sort"
	"time"

	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/schedule"
)

// Defaults for the announcement schedule.
const (
	DefaultPrePrayerLead   = 20 * time.Minute
	DefaultPostPrayerDelay = 60 * time.Minute
	DefaultFriday          = time.Friday
	DefaultChimeStart      = 5
	DefaultChimeEnd        = 23
	DefaultChimeVolume     = 0.5
)

// Assets names the files played for each kind of announcement.
type Assets struct {
	// PrePrayer overrides the per-label reminder asset. Missing labels
	// fall back to "<label>.mp3".
	PrePrayer    map[model.PrayerLabel]string
	Prayer       string
	PrayerFajr   string
	PostFriday   string
	PostEveryday string
}

// DefaultAssets returns the stock asset names.
func DefaultAssets() Assets {
	return Assets{
		PrePrayer:    map[model.PrayerLabel]string{},
		Prayer:       "prayer.mp3",
		PrayerFajr:   "prayer_fajr.mp3",
		PostFriday:   "friday.mp3",
		PostEveryday: "everyday.mp3",
	}
}

// PrePrayerAsset returns the reminder played ahead of label.
func (a Assets) PrePrayerAsset(l model.PrayerLabel) string {
	if name, ok := a.PrePrayer[l]; ok && name != "" {
		return name
	}
	return l.Key() + ".mp3"
}

// PrayerAsset returns the call played at label's congregation time.
func (a Assets) PrayerAsset(l model.PrayerLabel) string {
	if l == model.Fajr {
		return a.PrayerFajr
	}
	return a.Prayer
}

// PostPrayerAsset returns the recitation played after Isha.
func (a Assets) PostPrayerAsset(day, friday time.Weekday) string {
	if day == friday {
		return a.PostFriday
	}
	return a.PostEveryday
}

// All returns every asset the plan can reference, without duplicates.
func (a Assets) All() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, l := range model.Labels {
		add(a.PrePrayerAsset(l))
		add(a.PrayerAsset(l))
	}
	add(a.PostFriday)
	add(a.PostEveryday)
	return out
}

// Chime configures the hourly chime.
type Chime struct {
	Enabled         bool
	StartHour       int
	EndHour         int
	Pool            []string
	Volume          float64
	RespectBlackout bool
}

// DefaultChime returns the stock chime: eight clips between 05:00 and 23:00.
func DefaultChime() Chime {
	pool := make([]string, 8)
	for i := range pool {
		pool[i] = fmt.Sprintf("%d.mp3", i+1)
	}
	return Chime{
		Enabled:   true,
		StartHour: DefaultChimeStart,
		EndHour:   DefaultChimeEnd,
		Pool:      pool,
		Volume:    DefaultChimeVolume,
	}
}

// InWindow reports whether hour lies in [StartHour, EndHour].
func (c Chime) InWindow(hour int) bool {
	return hour >= c.StartHour && hour <= c.EndHour
}

// Config controls what the scanner fires and when.
type Config struct {
	PrePrayerLead   time.Duration
	PostPrayerDelay time.Duration
	Friday          time.Weekday
	// Tolerance lets a trigger fire late by up to this much. Zero means
	// the tick must land on the exact second.
	Tolerance       time.Duration
	BlackoutMinutes int
	Volume          float64
	Assets          Assets
	Chime           Chime
}

// DefaultConfig returns the stock scanner configuration.
func DefaultConfig() Config {
	return Config{
		PrePrayerLead:   DefaultPrePrayerLead,
		PostPrayerDelay: DefaultPostPrayerDelay,
		Friday:          DefaultFriday,
		BlackoutMinutes: schedule.DefaultBlackoutMinutes,
		Volume:          1.0,
		Assets:          DefaultAssets(),
		Chime:           DefaultChime(),
	}
}

// Trigger is one planned announcement.
type Trigger struct {
	Label  model.PrayerLabel
	Kind   model.TriggerKind
	At     time.Time
	Asset  string
	Volume float64
}

// Key returns the de-duplication key for the trigger.
func (t Trigger) Key() model.FiredKey {
	return model.NewFiredKey(t.Label, t.Kind, t.At)
}

// Request builds the playback request for the trigger.
func (t Trigger) Request(now time.Time) model.PlaybackRequest {
	return model.NewPlaybackRequest(t.Asset, t.Kind.Priority(), t.Volume, t.Kind, now).WithLabel(t.Label)
}

// Matches reports whether now falls on the trigger, allowing up to
// tolerance of lateness.
func (t Trigger) Matches(now time.Time, tolerance time.Duration) bool {
	sec := now.Truncate(time.Second)
	at := t.At.Truncate(time.Second)
	if tolerance <= 0 {
		return sec.Equal(at)
	}
	return !sec.Before(at) && !sec.After(at.Add(tolerance))
}

// Plan lists the day's prayer announcements in time order.
// Labels that cannot be resolved are returned as errors and left out.
func Plan(r *schedule.Resolver, cfg Config) ([]Trigger, []error) {
	var (
		out  []Trigger
		errs []error
	)
	for _, l := range model.Labels {
		instant, err := r.ResolveInstant(l)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out,
			Trigger{Label: l, Kind: model.KindPrePrayer, At: instant.Add(-cfg.PrePrayerLead), Asset: cfg.Assets.PrePrayerAsset(l), Volume: cfg.Volume},
			Trigger{Label: l, Kind: model.KindPrayer, At: instant, Asset: cfg.Assets.PrayerAsset(l), Volume: cfg.Volume},
		)
		if l == model.Isha {
			post := instant.Add(cfg.PostPrayerDelay)
			out = append(out, Trigger{
				Label:  l,
				Kind:   model.KindPostPrayer,
				At:     post,
				Asset:  cfg.Assets.PostPrayerAsset(post.Weekday(), cfg.Friday),
				Volume: cfg.Volume,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out, errs
}
