// Package model defines the core data structures for adhan.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// PrayerLabel identifies one of the five daily prayers.
// The numeric value is the prayer's index in the day; order matters.
type PrayerLabel int

const (
	Fajr PrayerLabel = iota
	Zuhr
	Asr
	Maghrib
	Isha
)

// Labels lists the prayers in daily order.
var Labels = []PrayerLabel{Fajr, Zuhr, Asr, Maghrib, Isha}

// LabelNames maps labels to their display names.
var LabelNames = map[PrayerLabel]string{
	Fajr:    "Fajr",
	Zuhr:    "Zuhr",
	Asr:     "Asr",
	Maghrib: "Maghrib",
	Isha:    "Isha",
}

// ErrUnknownLabel is returned when a prayer name cannot be parsed.
var ErrUnknownLabel = errors.New("unknown prayer label")

// String returns the display name of the label.
func (l PrayerLabel) String() string {
	if name, ok := LabelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("PrayerLabel(%d)", int(l))
}

// Index returns the label's position in the day (0-4).
func (l PrayerLabel) Index() int {
	return int(l)
}

// Valid reports whether l is one of the five known labels.
func (l PrayerLabel) Valid() bool {
	return l >= Fajr && l <= Isha
}

// Key returns the lower-case name used in files and asset names.
func (l PrayerLabel) Key() string {
	return strings.ToLower(l.String())
}

// ParseLabel parses a prayer name case-insensitively.
// "dhuhr" is accepted as an alias of Zuhr since most timetable feeds spell it that way.
func ParseLabel(s string) (PrayerLabel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fajr":
		return Fajr, nil
	case "zuhr", "dhuhr", "zuhur":
		return Zuhr, nil
	case "asr":
		return Asr, nil
	case "maghrib":
		return Maghrib, nil
	case "isha":
		return Isha, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownLabel, s)
}

// MarshalText implements encoding.TextMarshaler.
func (l PrayerLabel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLabel, int(l))
	}
	return []byte(l.Key()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *PrayerLabel) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// DailyPrayerTimes holds one calendar day's congregation start times.
// Times are ambiguous 12-hour "h:mm" strings exactly as supplied by the
// prayer data source; disambiguation happens in the schedule package.
type DailyPrayerTimes struct {
	Date  time.Time
	Times map[PrayerLabel]string
}

// NewDailyPrayerTimes builds a DailyPrayerTimes from times given in label order.
func NewDailyPrayerTimes(date time.Time, fajr, zuhr, asr, maghrib, isha string) DailyPrayerTimes {
	return DailyPrayerTimes{
		Date: date,
		Times: map[PrayerLabel]string{
			Fajr:    fajr,
			Zuhr:    zuhr,
			Asr:     asr,
			Maghrib: maghrib,
			Isha:    isha,
		},
	}
}

// Time returns the raw clock string for the label.
func (d DailyPrayerTimes) Time(l PrayerLabel) (string, bool) {
	t, ok := d.Times[l]
	return t, ok && t != ""
}

// Complete reports whether every label has a time.
func (d DailyPrayerTimes) Complete() bool {
	for _, l := range Labels {
		if _, ok := d.Time(l); !ok {
			return false
		}
	}
	return true
}

// SameDay reports whether the entry is for the calendar day containing t.
func (d DailyPrayerTimes) SameDay(t time.Time) bool {
	y1, m1, d1 := d.Date.Date()
	y2, m2, d2 := t.In(d.Date.Location()).Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
