// Package trigger decides, once per second, which announcement is due and
// hands it to the audio channel exactly once.
package trigger

import (
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/schedule"
)

// Submitter accepts playback requests. Submit must not block on playback.
type Submitter interface {
	Submit(req model.PlaybackRequest)
}

// SubmitFunc adapts a function to Submitter.
type SubmitFunc func(req model.PlaybackRequest)

// Submit calls f(req).
func (f SubmitFunc) Submit(req model.PlaybackRequest) { f(req) }

// ResolverSource returns the resolver for the day containing now.
// ok is false when no timetable is known for that day.
type ResolverSource interface {
	ResolverFor(now time.Time) (*schedule.Resolver, bool)
}

// ResolverFunc adapts a function to ResolverSource.
type ResolverFunc func(now time.Time) (*schedule.Resolver, bool)

// ResolverFor calls f(now).
func (f ResolverFunc) ResolverFor(now time.Time) (*schedule.Resolver, bool) { return f(now) }

const noHour = -1

// Scanner evaluates hourly and prayer triggers on every tick.
type Scanner struct {
	mu     sync.Mutex
	logger *slog.Logger
	cfg    Config
	source ResolverSource
	out    Submitter
	fired  *FiredSet
	pick   func(n int) int

	lastChimeHour int

	// malformed labels already logged, per day
	warnedDay string
	warned    map[model.PrayerLabel]bool

	missingDay string
}

// NewScanner creates a scanner.
func NewScanner(cfg Config, source ResolverSource, out Submitter, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		logger:        logger,
		cfg:           cfg,
		source:        source,
		out:           out,
		fired:         NewFiredSet(evictionWindow(cfg.Tolerance)),
		pick:          rand.IntN,
		lastChimeHour: noHour,
		warned:        make(map[model.PrayerLabel]bool),
	}
}

// SetPicker replaces the chime asset picker. pick(n) must return a value in [0,n).
func (s *Scanner) SetPicker(pick func(n int) int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pick = pick
}

// SetConfig swaps the configuration. Fired keys are kept so a reload
// cannot re-fire an announcement.
func (s *Scanner) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.fired.SetWindow(evictionWindow(cfg.Tolerance))
}

// Config returns the current configuration.
func (s *Scanner) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Tick runs one scan at now and returns the requests it submitted.
func (s *Scanner) Tick(now time.Time) []model.PlaybackRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fired.Evict(now)

	resolver, ok := s.source.ResolverFor(now)
	if !ok {
		s.noteMissing(now)
		resolver = nil
	}

	var fired []model.PlaybackRequest
	if req, ok := s.chime(now, resolver); ok {
		fired = append(fired, req)
	}
	if resolver != nil {
		fired = append(fired, s.prayers(now, resolver)...)
	}

	for _, req := range fired {
		s.out.Submit(req)
	}
	return fired
}

func (s *Scanner) chime(now time.Time, r *schedule.Resolver) (model.PlaybackRequest, bool) {
	c := s.cfg.Chime
	if now.Minute() == 1 {
		s.lastChimeHour = noHour
	}
	if !c.Enabled || len(c.Pool) == 0 {
		return model.PlaybackRequest{}, false
	}
	if now.Minute() != 0 || now.Second() > chimeSlack(s.cfg.Tolerance) {
		return model.PlaybackRequest{}, false
	}
	hour := now.Hour()
	if !c.InWindow(hour) || s.lastChimeHour == hour {
		return model.PlaybackRequest{}, false
	}
	s.lastChimeHour = hour

	if c.RespectBlackout && r != nil && r.IsBlackout(now, s.cfg.BlackoutMinutes) {
		s.logger.Debug("hourly chime suppressed during blackout", "hour", hour)
		return model.PlaybackRequest{}, false
	}

	asset := c.Pool[s.pick(len(c.Pool))]
	s.logger.Debug("hourly chime", "hour", hour, "asset", asset)
	return model.NewPlaybackRequest(asset, model.PriorityHourly, c.Volume, model.KindHourly, now), true
}

func (s *Scanner) prayers(now time.Time, r *schedule.Resolver) []model.PlaybackRequest {
	triggers, errs := Plan(r, s.cfg)
	s.noteMalformed(now, errs)

	var out []model.PlaybackRequest
	for _, t := range triggers {
		if !t.Matches(now, s.cfg.Tolerance) {
			continue
		}
		if !s.fired.Mark(t.Key()) {
			continue
		}
		s.logger.Info("announcement due",
			"label", t.Label,
			"kind", t.Kind,
			"asset", t.Asset,
			"at", t.At.Format(time.TimeOnly),
		)
		out = append(out, t.Request(now))
	}
	return out
}

func (s *Scanner) noteMalformed(now time.Time, errs []error) {
	day := now.Format(time.DateOnly)
	if day != s.warnedDay {
		s.warnedDay = day
		clear(s.warned)
	}
	for _, err := range errs {
		var mte *schedule.MalformedTimeError
		if !errors.As(err, &mte) {
			s.logger.Warn("cannot resolve prayer time", "error", err)
			continue
		}
		if s.warned[mte.Label] {
			continue
		}
		s.warned[mte.Label] = true
		s.logger.Warn("skipping prayer with malformed time", "label", mte.Label, "value", mte.Value, "error", mte.Err)
	}
}

func (s *Scanner) noteMissing(now time.Time) {
	day := now.Format(time.DateOnly)
	if day == s.missingDay {
		return
	}
	s.missingDay = day
	s.logger.Warn("no prayer times for today, only the hourly chime will sound", "date", day)
}

// FiredCount returns the number of remembered fired keys.
func (s *Scanner) FiredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired.Len()
}

func chimeSlack(tolerance time.Duration) int {
	sec := int(tolerance / time.Second)
	if sec > 59 {
		return 59
	}
	return sec
}
