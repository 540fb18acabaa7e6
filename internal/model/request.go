package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Priority ranks audio announcements. Lower values win.
type Priority int

const (
	PriorityNone       Priority = 0
	PriorityPrayer     Priority = 1
	PriorityPrePrayer  Priority = 2
	PriorityPostPrayer Priority = 3
	PriorityHourly     Priority = 4
)

// PriorityNames maps priorities to their text form.
var PriorityNames = map[Priority]string{
	PriorityNone:       "none",
	PriorityPrayer:     "prayer",
	PriorityPrePrayer:  "prePrayer",
	PriorityPostPrayer: "postPrayer",
	PriorityHourly:     "hourly",
}

// ErrInvalidPriority is returned for unknown priority names or ranks.
var ErrInvalidPriority = errors.New("invalid priority")

// String returns the text form of the priority.
func (p Priority) String() string {
	if name, ok := PriorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

// Valid reports whether p is one of the four playable ranks.
func (p Priority) Valid() bool {
	return p >= PriorityPrayer && p <= PriorityHourly
}

// Outranks reports whether p strictly beats other.
// PriorityNone is beaten by every valid priority.
func (p Priority) Outranks(other Priority) bool {
	if !p.Valid() {
		return false
	}
	if !other.Valid() {
		return true
	}
	return p < other
}

// ParsePriority parses the text form of a priority.
func ParsePriority(s string) (Priority, error) {
	for p, name := range PriorityNames {
		if p.Valid() && name == s {
			return p, nil
		}
	}
	return PriorityNone, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
// "none" is accepted so idle channel snapshots round-trip.
func (p *Priority) UnmarshalText(text []byte) error {
	if string(text) == PriorityNames[PriorityNone] {
		*p = PriorityNone
		return nil
	}
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// TriggerKind identifies what produced a playback request.
type TriggerKind string

const (
	KindHourly     TriggerKind = "hourly"
	KindPrePrayer  TriggerKind = "prePrayer"
	KindPrayer     TriggerKind = "prayer"
	KindPostPrayer TriggerKind = "postPrayer"
	KindManual     TriggerKind = "manual"
)

// Priority returns the channel priority used for this kind of trigger.
// Manual requests carry their own priority and return PriorityNone here.
func (k TriggerKind) Priority() Priority {
	switch k {
	case KindPrayer:
		return PriorityPrayer
	case KindPrePrayer:
		return PriorityPrePrayer
	case KindPostPrayer:
		return PriorityPostPrayer
	case KindHourly:
		return PriorityHourly
	default:
		return PriorityNone
	}
}

// PlaybackRequest asks the audio channel to play one asset.
type PlaybackRequest struct {
	ID        string       `json:"id"`
	Asset     string       `json:"asset"`
	Priority  Priority     `json:"priority"`
	Volume    float64      `json:"volume"`
	Kind      TriggerKind  `json:"kind"`
	Label     *PrayerLabel `json:"label,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Validation errors.
var (
	ErrEmptyAsset = errors.New("asset cannot be empty")
	ErrEmptyID    = errors.New("request id cannot be empty")
)

// NewPlaybackRequest creates a request with a generated ULID.
// Volume is clamped to [0,1].
func NewPlaybackRequest(asset string, priority Priority, volume float64, kind TriggerKind, now time.Time) PlaybackRequest {
	return PlaybackRequest{
		ID:        newID(now),
		Asset:     asset,
		Priority:  priority,
		Volume:    ClampVolume(volume),
		Kind:      kind,
		CreatedAt: now,
	}
}

// WithLabel returns a copy of the request tagged with a prayer label.
func (r PlaybackRequest) WithLabel(l PrayerLabel) PlaybackRequest {
	r.Label = &l
	return r
}

// Validate checks that the request can be played.
func (r PlaybackRequest) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.Asset == "" {
		return ErrEmptyAsset
	}
	if !r.Priority.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidPriority, int(r.Priority))
	}
	return nil
}

// ClampVolume restricts v to [0,1].
func ClampVolume(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func newID(now time.Time) string {
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		// Time-only fallback, still traceable in logs.
		return fmt.Sprintf("req-%d", now.UnixNano())
	}
	return id.String()
}

// FiredKey identifies a trigger that has already fired.
type FiredKey struct {
	Label   PrayerLabel
	Kind    TriggerKind
	Instant int64 // unix seconds
}

// NewFiredKey builds a key for the trigger instant, truncated to the second.
func NewFiredKey(label PrayerLabel, kind TriggerKind, at time.Time) FiredKey {
	return FiredKey{Label: label, Kind: kind, Instant: at.Unix()}
}

// String returns a compact representation for logs.
func (k FiredKey) String() string {
	return fmt.Sprintf("%s/%s@%d", k.Label.Key(), k.Kind, k.Instant)
}
