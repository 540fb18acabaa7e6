// Package store provides the prayer timetable and the state shared between
// adhan and adhand.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/adhan/internal/model"
)

// DateLayout is the layout of timetable dates.
const DateLayout = "2006-01-02"

// ChangeEvent signals timetable content changes.
type ChangeEvent struct {
	Days   int    // Number of days loaded
	Source string // File the days came from
}

// dayEntry is one row of the timetable file. Times are "h:mm" on a 12-hour
// clock without meridiem, the way printed mosque timetables list them.
type dayEntry struct {
	Date    string `yaml:"date"`
	Fajr    string `yaml:"fajr"`
	Zuhr    string `yaml:"zuhr"`
	Dhuhr   string `yaml:"dhuhr,omitempty"` // Alias of zuhr
	Asr     string `yaml:"asr"`
	Maghrib string `yaml:"maghrib"`
	Isha    string `yaml:"isha"`
}

// timetableFile is the on-disk layout. JSON files use the same keys.
type timetableFile struct {
	Days []dayEntry `yaml:"days"`
}

// Timetable holds daily prayer times loaded from a YAML or JSON file.
type Timetable struct {
	mu   sync.RWMutex
	path string
	loc  *time.Location
	days map[string]model.DailyPrayerTimes // date -> times

	loadedAt    time.Time
	version     uint64 // Bumped on every Replace
	subscribers []chan ChangeEvent
	closed      bool
}

// NewTimetable creates an empty timetable backed by path. Dates are
// interpreted in loc (time.Local when nil).
func NewTimetable(path string, loc *time.Location) *Timetable {
	if loc == nil {
		loc = time.Local
	}
	return &Timetable{
		path: path,
		loc:  loc,
		days: make(map[string]model.DailyPrayerTimes),
	}
}

// Path returns the backing file.
func (t *Timetable) Path() string {
	return t.path
}

// Hydrate (re)loads the backing file. On error the previously loaded days
// are kept.
func (t *Timetable) Hydrate() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return fmt.Errorf("read timetable: %w", err)
	}

	days, err := ParseTimetable(data, t.loc)
	if err != nil {
		return fmt.Errorf("%s: %w", t.path, err)
	}

	t.Replace(days)
	return nil
}

// Replace swaps the loaded days for days and notifies subscribers.
func (t *Timetable) Replace(days []model.DailyPrayerTimes) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.days = make(map[string]model.DailyPrayerTimes, len(days))
	for _, d := range days {
		t.days[d.Date.Format(DateLayout)] = d
	}
	t.loadedAt = time.Now()
	t.version++

	t.notifyChange(ChangeEvent{Days: len(t.days), Source: t.path})
}

// Day returns the entry for the calendar day containing date.
func (t *Timetable) Day(date time.Time) (model.DailyPrayerTimes, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.days[date.In(t.loc).Format(DateLayout)]
	return d, ok
}

// Days returns every loaded day in date order.
func (t *Timetable) Days() []model.DailyPrayerTimes {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.DailyPrayerTimes, 0, len(t.days))
	for _, d := range t.days {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b model.DailyPrayerTimes) int {
		return a.Date.Compare(b.Date)
	})
	return out
}

// Len returns the number of loaded days.
func (t *Timetable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.days)
}

// LoadedAt returns when the days were last replaced.
func (t *Timetable) LoadedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loadedAt
}

// Version returns a counter that changes whenever the days are replaced.
func (t *Timetable) Version() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Location returns the zone dates are interpreted in.
func (t *Timetable) Location() *time.Location {
	return t.loc
}

// Subscribe returns a channel that receives change events.
func (t *Timetable) Subscribe() <-chan ChangeEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan ChangeEvent, 4)
	if t.closed {
		close(ch)
		return ch
	}
	t.subscribers = append(t.subscribers, ch)
	return ch
}

// Close closes all subscriber channels.
func (t *Timetable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	for _, ch := range t.subscribers {
		close(ch)
	}
	t.subscribers = nil
	return nil
}

// notifyChange sends a change event to all subscribers (non-blocking).
func (t *Timetable) notifyChange(event ChangeEvent) {
	for _, ch := range t.subscribers {
		select {
		case ch <- event:
		default:
			// Channel full, skip
		}
	}
}

// ParseTimetable parses a YAML or JSON timetable. Clock strings are kept
// verbatim; malformed ones are reported when they are resolved.
func ParseTimetable(data []byte, loc *time.Location) ([]model.DailyPrayerTimes, error) {
	if loc == nil {
		loc = time.Local
	}

	var file timetableFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse timetable: %w", err)
	}

	var errs []error
	days := make([]model.DailyPrayerTimes, 0, len(file.Days))
	for i, e := range file.Days {
		date, err := time.ParseInLocation(DateLayout, strings.TrimSpace(e.Date), loc)
		if err != nil {
			errs = append(errs, fmt.Errorf("day %d: invalid date %q", i, e.Date))
			continue
		}
		zuhr := e.Zuhr
		if zuhr == "" {
			zuhr = e.Dhuhr
		}
		days = append(days, model.NewDailyPrayerTimes(date,
			strings.TrimSpace(e.Fajr),
			strings.TrimSpace(zuhr),
			strings.TrimSpace(e.Asr),
			strings.TrimSpace(e.Maghrib),
			strings.TrimSpace(e.Isha),
		))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return days, nil
}

// MarshalTimetable renders days in the YAML file layout.
func MarshalTimetable(days []model.DailyPrayerTimes) ([]byte, error) {
	file := timetableFile{Days: make([]dayEntry, 0, len(days))}
	for _, d := range days {
		file.Days = append(file.Days, dayEntry{
			Date:    d.Date.Format(DateLayout),
			Fajr:    d.Times[model.Fajr],
			Zuhr:    d.Times[model.Zuhr],
			Asr:     d.Times[model.Asr],
			Maghrib: d.Times[model.Maghrib],
			Isha:    d.Times[model.Isha],
		})
	}
	return yaml.Marshal(&file)
}

// SaveTimetable writes days to path in the YAML layout. The file is
// replaced atomically so watchers never see a partial timetable.
func SaveTimetable(path string, days []model.DailyPrayerTimes) error {
	data, err := MarshalTimetable(days)
	if err != nil {
		return fmt.Errorf("marshal timetable: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create timetable directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write timetable: %w", err)
	}
	return os.Rename(tmpPath, path)
}
