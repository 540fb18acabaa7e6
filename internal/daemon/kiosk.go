package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/adhan/internal/audio"
	"github.com/jmylchreest/adhan/internal/config"
	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/schedule"
	"github.com/jmylchreest/adhan/internal/store"
	"github.com/jmylchreest/adhan/internal/trigger"
)

// Scheduled task names.
const (
	TaskScanner   = "scanner"
	TaskMonitor   = "monitor"
	TaskHeartbeat = "heartbeat"
	TaskRollover  = "rollover"
)

// ErrQuiet is attached to requests dropped while quiet mode is on.
var ErrQuiet = errors.New("quiet mode")

// Kiosk ties the timetable, the trigger scanner and the audio channel
// together and applies quiet mode between them.
type Kiosk struct {
	mu     sync.RWMutex
	logger *slog.Logger
	now    func() time.Time

	cfg       *config.DaemonConfig
	timetable *store.Timetable
	resolvers *ResolverCache
	scanner   *trigger.Scanner
	manager   *audio.Manager
	reporter  *Reporter

	statePath    string
	quiet        bool
	prayerBypass bool

	observers []func(audio.Event)
	lastDay   string
}

// NewKiosk wires a kiosk playing on device. statePath is the shared state
// file quiet mode is persisted to.
func NewKiosk(cfg *config.DaemonConfig, tt *store.Timetable, device audio.Device, statePath string, logger *slog.Logger) *Kiosk {
	if logger == nil {
		logger = slog.Default()
	}

	k := &Kiosk{
		logger:       logger,
		now:          time.Now,
		cfg:          cfg,
		timetable:    tt,
		resolvers:    NewResolverCache(tt, logger),
		manager:      audio.NewManager(device, ManagerOptions(cfg), logger.With("component", "audio")),
		reporter:     NewReporter(logger),
		statePath:    statePath,
		quiet:        cfg.Quiet.Enabled,
		prayerBypass: cfg.Quiet.PrayerBypass,
	}
	k.scanner = trigger.NewScanner(ScannerConfig(cfg), k.resolvers, k, logger.With("component", "scanner"))

	k.manager.SetObserver(k.dispatch)
	k.manager.SetErrorSink(func(err error) { k.reporter.Report(err) })
	return k
}

// SetClock replaces the time source used for manual requests and status.
func (k *Kiosk) SetClock(now func() time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.now = now
}

// Manager returns the audio channel.
func (k *Kiosk) Manager() *audio.Manager {
	return k.manager
}

// Scanner returns the trigger scanner.
func (k *Kiosk) Scanner() *trigger.Scanner {
	return k.scanner
}

// Reporter returns the failure reporter.
func (k *Kiosk) Reporter() *Reporter {
	return k.reporter
}

// AddObserver registers fn to receive channel events, including requests
// dropped by quiet mode.
func (k *Kiosk) AddObserver(fn func(audio.Event)) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.observers = append(k.observers, fn)
}

func (k *Kiosk) dispatch(ev audio.Event) {
	k.mu.RLock()
	observers := slices.Clone(k.observers)
	k.mu.RUnlock()

	for _, fn := range observers {
		fn(ev)
	}
}

// Submit passes req to the audio channel unless quiet mode holds it back.
// While quiet only prayer calls pass, and only with prayer_bypass set.
func (k *Kiosk) Submit(req model.PlaybackRequest) {
	k.mu.RLock()
	blocked := k.quiet && !(k.prayerBypass && req.Priority == model.PriorityPrayer)
	now := k.now()
	k.mu.RUnlock()

	if blocked {
		k.logger.Info("announcement suppressed by quiet mode", "asset", req.Asset, "priority", req.Priority)
		k.dispatch(audio.Event{Kind: audio.EventDropped, Request: req, Err: ErrQuiet, At: now})
		return
	}
	k.manager.Submit(req)
}

// Play submits a manual request and returns its id. Manual requests are
// operator actions and ignore quiet mode.
func (k *Kiosk) Play(asset, priority string, volume float64) (string, error) {
	p, err := model.ParsePriority(priority)
	if err != nil {
		return "", err
	}
	if asset == "" {
		return "", model.ErrEmptyAsset
	}

	k.mu.RLock()
	now := k.now()
	k.mu.RUnlock()

	req := model.NewPlaybackRequest(asset, p, volume, model.KindManual, now)
	k.logger.Info("manual announcement", "asset", asset, "priority", p, "id", req.ID)
	k.manager.Submit(req)
	return req.ID, nil
}

// Reset clears the channel and restarts the keep-alive loop if configured.
func (k *Kiosk) Reset() error {
	k.manager.Shutdown()

	k.mu.RLock()
	keepAlive := k.cfg.Audio.KeepAlive
	k.mu.RUnlock()

	if keepAlive {
		return k.manager.StartKeepAlive()
	}
	return nil
}

// Quiet reports whether quiet mode is on.
func (k *Kiosk) Quiet() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.quiet
}

// SetQuiet switches quiet mode and persists it to the shared state file.
func (k *Kiosk) SetQuiet(enabled bool, by store.QuietTrigger, source string) error {
	k.mu.Lock()
	k.quiet = enabled
	path := k.statePath
	now := k.now()
	k.mu.Unlock()

	k.logger.Info("quiet mode changed", "enabled", enabled, "source", source)
	if path == "" {
		return nil
	}

	state, err := store.LoadSharedState(path)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	reason := "quiet off"
	if enabled {
		reason = "quiet on"
	}
	state.SetQuiet(enabled, by, reason, source, now)
	return store.SaveSharedState(path, state)
}

// ApplyState adopts quiet mode from a reloaded shared state file.
func (k *Kiosk) ApplyState(state *store.SharedState) {
	k.mu.Lock()
	changed := k.quiet != state.Quiet
	k.quiet = state.Quiet
	k.mu.Unlock()

	if changed {
		k.logger.Info("quiet mode changed", "enabled", state.Quiet, "source", "state file")
	}
}

// ApplyConfig applies a reloaded configuration. Schedule, chime, asset and
// quiet settings take effect at once; audio device and policy changes need
// a restart.
func (k *Kiosk) ApplyConfig(cfg *config.DaemonConfig) {
	k.mu.Lock()
	old := k.cfg
	k.cfg = cfg
	k.prayerBypass = cfg.Quiet.PrayerBypass
	k.mu.Unlock()

	k.scanner.SetConfig(ScannerConfig(cfg))

	if old.Audio.Device != cfg.Audio.Device || old.Audio.Policy != cfg.Audio.Policy ||
		old.Audio.QueueLimit != cfg.Audio.QueueLimit || old.Location.Timezone != cfg.Location.Timezone {
		k.logger.Warn("audio device, policy, queue or timezone changed; restart adhand to apply")
	}
}

// Config returns the active configuration.
func (k *Kiosk) Config() *config.DaemonConfig {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.cfg
}

// Assets returns every asset the kiosk may play.
func (k *Kiosk) Assets() []string {
	cfg := k.scanner.Config()
	assets := cfg.Assets.All()
	for _, a := range cfg.Chime.Pool {
		if !slices.Contains(assets, a) {
			assets = append(assets, a)
		}
	}
	return assets
}

// Start preloads assets and starts the keep-alive loop as configured.
// Failures are reported, never fatal.
func (k *Kiosk) Start(ctx context.Context) {
	cfg := k.Config()

	if cfg.Audio.Preload {
		if err := k.manager.Preload(ctx, k.Assets()...); err != nil {
			k.logger.Warn("some assets failed to preload", "error", err)
		}
	}
	if cfg.Audio.KeepAlive {
		if err := k.manager.StartKeepAlive(); err != nil {
			k.reporter.Report(err)
		}
	}
}

// RegisterTasks adds the kiosk's recurring tasks to s.
func (k *Kiosk) RegisterTasks(s *Scheduler) {
	cfg := k.Config()

	s.Every(TaskScanner, time.Second, k.Tick)
	s.Every(TaskMonitor, cfg.Audio.MonitorInterval.Duration(), k.Monitor)
	s.Every(TaskHeartbeat, cfg.Audio.HeartbeatInterval.Duration(), k.Heartbeat)
	s.Every(TaskRollover, time.Minute, k.Rollover)
}

// Tick runs one trigger scan on the timetable's local clock.
func (k *Kiosk) Tick(_ context.Context, now time.Time) {
	k.scanner.Tick(now.In(k.timetable.Location()))
}

// Monitor resumes a suspended audio device.
func (k *Kiosk) Monitor(ctx context.Context, _ time.Time) {
	if err := k.manager.CheckAlive(ctx); err != nil {
		k.logger.Debug("audio monitor", "error", err)
	}
}

// Heartbeat plays the silent heartbeat probe.
func (k *Kiosk) Heartbeat(ctx context.Context, _ time.Time) {
	if err := k.manager.Heartbeat(ctx); err != nil {
		k.logger.Debug("audio heartbeat", "error", err)
	}
}

// Rollover notices new days and warns when the timetable is running out.
func (k *Kiosk) Rollover(_ context.Context, now time.Time) {
	local := now.In(k.timetable.Location())
	day := local.Format(store.DateLayout)

	k.mu.Lock()
	changed := day != k.lastDay
	k.lastDay = day
	k.mu.Unlock()
	if !changed {
		return
	}

	if _, ok := k.timetable.Day(local); !ok {
		k.logger.Warn("no prayer times for today, prayer announcements are off", "date", day)
	} else if _, ok := k.timetable.Day(local.AddDate(0, 0, 1)); !ok {
		k.logger.Warn("timetable has no entry for tomorrow", "date", day)
	}
}

// Status describes the kiosk at the current time.
func (k *Kiosk) Status() Status {
	k.mu.RLock()
	now := k.now()
	cfg := k.cfg
	quiet := k.quiet
	k.mu.RUnlock()

	st := Status{
		Location: cfg.Location.Name,
		Now:      now,
		Quiet:    quiet,
		Channel:  k.manager.Snapshot(),
		Fired:    k.scanner.FiredCount(),
		Days:     k.timetable.Len(),
	}
	if r, ok := k.resolvers.ResolverFor(now); ok {
		view := r.Describe(now, cfg.Schedule.BlackoutMinutes)
		st.Schedule = &view
	}
	return st
}

// StatusJSON returns Status encoded as JSON.
func (k *Kiosk) StatusJSON() ([]byte, error) {
	return json.Marshal(k.Status())
}

// Close shuts the audio channel and its device down.
func (k *Kiosk) Close() error {
	return k.manager.Close()
}

// Status is the daemon state reported over D-Bus and by `adhan status`.
type Status struct {
	Location string             `json:"location"`
	Now      time.Time          `json:"now"`
	Schedule *schedule.View     `json:"schedule,omitempty"` // nil when today has no times
	Days     int                `json:"timetable_days"`
	Quiet    bool               `json:"quiet"`
	Channel  audio.ChannelState `json:"channel"`
	Fired    int                `json:"fired"`
}

// ScannerConfig converts daemon configuration to trigger settings.
func ScannerConfig(cfg *config.DaemonConfig) trigger.Config {
	assets := trigger.Assets{
		PrePrayer:    make(map[model.PrayerLabel]string, len(cfg.Assets.PrePrayer)),
		Prayer:       cfg.Assets.Prayer,
		PrayerFajr:   cfg.Assets.PrayerFajr,
		PostFriday:   cfg.Assets.PostFriday,
		PostEveryday: cfg.Assets.PostEveryday,
	}
	for name, asset := range cfg.Assets.PrePrayer {
		if l, err := model.ParseLabel(name); err == nil {
			assets.PrePrayer[l] = asset
		}
	}

	return trigger.Config{
		PrePrayerLead:   cfg.Schedule.PrePrayerLead.Duration(),
		PostPrayerDelay: cfg.Schedule.PostPrayerDelay.Duration(),
		Friday:          cfg.FridayWeekday(),
		Tolerance:       cfg.Schedule.Tolerance.Duration(),
		BlackoutMinutes: cfg.Schedule.BlackoutMinutes,
		Volume:          cfg.AnnouncementVolume(),
		Assets:          assets,
		Chime: trigger.Chime{
			Enabled:         cfg.Chime.Enabled,
			StartHour:       cfg.Chime.StartHour,
			EndHour:         cfg.Chime.EndHour,
			Pool:            slices.Clone(cfg.Chime.Pool),
			Volume:          cfg.Chime.Volume,
			RespectBlackout: cfg.Chime.RespectBlackout,
		},
	}
}

// ManagerOptions converts daemon configuration to audio channel options.
func ManagerOptions(cfg *config.DaemonConfig) audio.Options {
	opts := audio.DefaultOptions()
	if p, err := audio.ParsePolicy(cfg.Audio.Policy); err == nil {
		opts.Policy = p
	}
	opts.QueueLimit = cfg.Audio.QueueLimit
	opts.HeartbeatLength = cfg.Audio.HeartbeatLength.Duration()
	return opts
}

// NewDevice creates the configured audio device.
func NewDevice(cfg *config.DaemonConfig, logger *slog.Logger) audio.Device {
	switch cfg.Audio.Device {
	case config.DeviceNull:
		return audio.NewNullDevice(cfg.AssetDir())
	default:
		return audio.NewBeepDevice(cfg.AssetDir(), logger)
	}
}

// WatchAssets registers every kiosk asset with w, resolved against dir.
func (k *Kiosk) WatchAssets(w *audio.Watcher, dir string) {
	for _, asset := range k.Assets() {
		w.Watch(asset, audio.AssetPath(dir, asset))
	}
}
