package daemon

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/adhan/internal/audio"
)

// DefaultReportInterval is the minimum time between repeats of the same failure.
const DefaultReportInterval = time.Minute

// Reporter forwards audio failures to log and external sinks. Repeats of
// the same failure are rate limited so a broken asset or a suspended
// device cannot flood the sinks.
type Reporter struct {
	mu     sync.Mutex
	logger *slog.Logger
	now    func() time.Time

	handlers []func(key string, err error)

	lastReport  map[string]time.Time // key -> last report time
	minInterval time.Duration
	suppressed  int
}

// NewReporter creates a Reporter.
func NewReporter(logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		logger:      logger,
		now:         time.Now,
		lastReport:  make(map[string]time.Time),
		minInterval: DefaultReportInterval,
	}
}

// AddHandler registers fn to receive every report that passes the rate limit.
func (r *Reporter) AddHandler(fn func(key string, err error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, fn)
}

// SetMinInterval sets the minimum interval between duplicate reports.
func (r *Reporter) SetMinInterval(interval time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minInterval = interval
}

// Report records err. It returns false when the report was rate limited.
func (r *Reporter) Report(err error) bool {
	if err == nil {
		return false
	}
	key := FailureKey(err)

	r.mu.Lock()
	now := r.now()
	if last, ok := r.lastReport[key]; ok && now.Sub(last) < r.minInterval {
		r.suppressed++
		r.mu.Unlock()
		r.logger.Debug("failure report rate-limited", "key", key)
		return false
	}
	r.lastReport[key] = now
	handlers := append([]func(string, error){}, r.handlers...)
	r.mu.Unlock()

	r.logger.Warn("audio failure reported", "key", key, "error", err)
	for _, fn := range handlers {
		fn(key, err)
	}
	return true
}

// Suppressed returns how many reports were dropped by the rate limit.
func (r *Reporter) Suppressed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppressed
}

// FailureKey groups errors for rate limiting: one key per failing asset
// and kind of failure.
func FailureKey(err error) string {
	var (
		loadErr   *audio.AssetLoadError
		playErr   *audio.AssetPlayError
		suspended *audio.ContextSuspendedError
	)
	switch {
	case errors.As(err, &loadErr):
		return "load:" + loadErr.Asset
	case errors.As(err, &playErr):
		return "play:" + playErr.Asset
	case errors.As(err, &suspended):
		return "suspended"
	default:
		return "other:" + err.Error()
	}
}
