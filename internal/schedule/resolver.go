// Package schedule turns a day's ambiguous prayer clock strings into
// absolute instants and answers current/next/blackout questions about them.
package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/adhan/internal/model"
)

// DefaultBlackoutMinutes is the blackout window used when none is configured.
const DefaultBlackoutMinutes = 13

var (
	errMissingTime = errors.New("no time given")
	errClockFormat = errors.New("expected h:mm")
)

// MalformedTimeError reports a clock string that is not "h:mm" or "hh:mm".
type MalformedTimeError struct {
	Label model.PrayerLabel
	Value string
	Err   error
}

func (e *MalformedTimeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed time %q for %s: %v", e.Value, e.Label, e.Err)
	}
	return fmt.Sprintf("malformed time %q for %s", e.Value, e.Label)
}

func (e *MalformedTimeError) Unwrap() error {
	return e.Err
}

// Current is the prayer whose congregation has most recently started.
type Current struct {
	Index   int               `json:"index"`
	Label   model.PrayerLabel `json:"label"`
	Instant time.Time         `json:"at"`
}

// Next is the upcoming prayer. When IsToday is false the label is tomorrow's
// Fajr and Instant is only set if tomorrow's times were supplied.
type Next struct {
	Index   int               `json:"index"`
	Label   model.PrayerLabel `json:"label"`
	IsToday bool              `json:"is_today"`
	Instant time.Time         `json:"at"`
}

// Resolver answers schedule questions for a single calendar day.
type Resolver struct {
	today    model.DailyPrayerTimes
	tomorrow *model.DailyPrayerTimes
	loc      *time.Location
}

// NewResolver creates a resolver for today's times. tomorrow may be nil.
// Instants are anchored on today.Date in its location.
func NewResolver(today model.DailyPrayerTimes, tomorrow *model.DailyPrayerTimes) *Resolver {
	loc := today.Date.Location()
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{
		today:    today,
		tomorrow: tomorrow,
		loc:      loc,
	}
}

// Date returns the calendar day this resolver answers for.
func (r *Resolver) Date() time.Time {
	y, m, d := r.today.Date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.loc)
}

// Today returns the raw times the resolver was built from.
func (r *Resolver) Today() model.DailyPrayerTimes {
	return r.today
}

// ResolveInstant returns today's congregation instant for label.
func (r *Resolver) ResolveInstant(label model.PrayerLabel) (time.Time, error) {
	return resolve(r.today, label, r.loc)
}

// TomorrowInstant resolves label against tomorrow's times, if known.
func (r *Resolver) TomorrowInstant(label model.PrayerLabel) (time.Time, bool) {
	if r.tomorrow == nil {
		return time.Time{}, false
	}
	t, err := resolve(*r.tomorrow, label, r.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Instants resolves every label. Malformed labels are returned in errs and
// left out of the map.
func (r *Resolver) Instants() (map[model.PrayerLabel]time.Time, []error) {
	out := make(map[model.PrayerLabel]time.Time, len(model.Labels))
	var errs []error
	for _, l := range model.Labels {
		t, err := r.ResolveInstant(l)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[l] = t
	}
	return out, errs
}

// CurrentPrayer returns the latest prayer whose instant is at or before now.
// ok is false before Fajr.
func (r *Resolver) CurrentPrayer(now time.Time) (Current, bool) {
	var (
		best  Current
		found bool
	)
	for _, l := range model.Labels {
		t, err := r.ResolveInstant(l)
		if err != nil {
			continue
		}
		if t.After(now) {
			continue
		}
		if !found || t.After(best.Instant) {
			best = Current{Index: l.Index(), Label: l, Instant: t}
			found = true
		}
	}
	return best, found
}

// NextPrayer returns the first prayer, in label order, whose instant is after now.
// After Isha it returns tomorrow's Fajr with IsToday false.
func (r *Resolver) NextPrayer(now time.Time) Next {
	for _, l := range model.Labels {
		t, err := r.ResolveInstant(l)
		if err != nil {
			continue
		}
		if now.Before(t) {
			return Next{Index: l.Index(), Label: l, IsToday: true, Instant: t}
		}
	}

	next := Next{Index: model.Fajr.Index(), Label: model.Fajr}
	if t, ok := r.TomorrowInstant(model.Fajr); ok {
		next.Instant = t
	}
	return next
}

// IsBlackout reports whether now lies within [instant, instant+minutes] of any prayer.
func (r *Resolver) IsBlackout(now time.Time, minutes int) bool {
	window := time.Duration(minutes) * time.Minute
	for _, l := range model.Labels {
		t, err := r.ResolveInstant(l)
		if err != nil {
			continue
		}
		if !now.Before(t) && !now.After(t.Add(window)) {
			return true
		}
	}
	return false
}

func resolve(day model.DailyPrayerTimes, label model.PrayerLabel, loc *time.Location) (time.Time, error) {
	raw, ok := day.Time(label)
	if !ok {
		return time.Time{}, &MalformedTimeError{Label: label, Value: raw, Err: errMissingTime}
	}
	hour, minute, err := ParseClock(raw)
	if err != nil {
		return time.Time{}, &MalformedTimeError{Label: label, Value: raw, Err: err}
	}

	// Fajr is always morning; every other prayer is afternoon or evening.
	if label == model.Fajr {
		if hour >= 12 {
			hour -= 12
		}
	} else if hour < 12 {
		hour += 12
	}

	y, m, d := day.Date.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc), nil
}

// ParseClock parses "h:mm" or "hh:mm" into hour and minute.
// Hours 0-23 are accepted so that 24-hour feeds pass through unchanged.
func ParseClock(s string) (hour, minute int, err error) {
	s = strings.TrimSpace(s)
	hs, ms, ok := strings.Cut(s, ":")
	if !ok {
		return 0, 0, errClockFormat
	}
	if len(hs) < 1 || len(hs) > 2 || len(ms) != 2 || !digits(hs) || !digits(ms) {
		return 0, 0, errClockFormat
	}
	hour, err = strconv.Atoi(hs)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("hour out of range")
	}
	minute, err = strconv.Atoi(ms)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("minute out of range")
	}
	return hour, minute, nil
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
