package schedule

import (
	"time"

	"github.com/jmylchreest/adhan/internal/model"
)

// Entry is one prayer of the day as shown to people.
type Entry struct {
	Label   model.PrayerLabel `json:"label"`
	Time    string            `json:"time"` // As written in the timetable
	At      *time.Time        `json:"at,omitempty"`
	Error   string            `json:"error,omitempty"`
	Current bool              `json:"current"`
}

// View summarises a day at a moment: every prayer, which one is current,
// which is next and whether a blackout is in force.
type View struct {
	Date     string   `json:"date"`
	Prayers  []Entry  `json:"prayers"`
	Current  *Current `json:"current,omitempty"`
	Next     Next     `json:"next"`
	Blackout bool     `json:"blackout"`
}

// NextIn returns the time left until the next prayer. ok is false when
// the next instant is unknown.
func (v View) NextIn(now time.Time) (time.Duration, bool) {
	if v.Next.Instant.IsZero() {
		return 0, false
	}
	return v.Next.Instant.Sub(now), true
}

// Describe builds the view of r's day at now.
func (r *Resolver) Describe(now time.Time, blackoutMinutes int) View {
	v := View{
		Date:     r.Date().Format("2006-01-02"),
		Prayers:  make([]Entry, 0, len(model.Labels)),
		Next:     r.NextPrayer(now),
		Blackout: r.IsBlackout(now, blackoutMinutes),
	}

	cur, ok := r.CurrentPrayer(now)
	if ok {
		v.Current = &cur
	}

	for _, l := range model.Labels {
		raw, _ := r.today.Time(l)
		e := Entry{Label: l, Time: raw}
		if t, err := r.ResolveInstant(l); err != nil {
			e.Error = err.Error()
		} else {
			e.At = &t
		}
		e.Current = ok && cur.Label == l
		v.Prayers = append(v.Prayers, e)
	}
	return v
}
