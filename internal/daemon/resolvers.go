package daemon

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/schedule"
	"github.com/jmylchreest/adhan/internal/store"
)

// ResolverCache builds one schedule.Resolver per calendar day from the
// timetable and rebuilds it when the day rolls over or the timetable is
// reloaded. Yesterday's times are never used for today.
type ResolverCache struct {
	mu     sync.Mutex
	logger *slog.Logger
	tt     *store.Timetable

	day      string
	version  uint64
	resolver *schedule.Resolver
}

// NewResolverCache creates a cache over tt.
func NewResolverCache(tt *store.Timetable, logger *slog.Logger) *ResolverCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResolverCache{logger: logger, tt: tt}
}

// ResolverFor returns the resolver for the day containing now. ok is false
// when the timetable has no entry for that day.
func (c *ResolverCache) ResolverFor(now time.Time) (*schedule.Resolver, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	local := now.In(c.tt.Location())
	day := local.Format(store.DateLayout)
	version := c.tt.Version()
	if day == c.day && version == c.version {
		return c.resolver, c.resolver != nil
	}

	if c.day != "" && day != c.day {
		c.logger.Info("day rolled over", "from", c.day, "to", day)
	}
	c.day, c.version = day, version
	c.resolver = nil

	today, ok := c.tt.Day(local)
	if !ok {
		return nil, false
	}

	var tomorrow *model.DailyPrayerTimes
	if d, ok := c.tt.Day(local.AddDate(0, 0, 1)); ok {
		tomorrow = &d
	}
	c.resolver = schedule.NewResolver(today, tomorrow)
	return c.resolver, true
}

// Day returns the day the cached resolver was built for.
func (c *ResolverCache) Day() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.day
}
