package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jmylchreest/adhan/internal/model"
)

// Policy decides what happens to a request that cannot take the channel.
type Policy string

const (
	// PolicyQueue keeps deferred requests and plays them, oldest first,
	// once the channel is free.
	PolicyQueue Policy = "queue"
	// PolicyDrop discards deferred requests.
	PolicyDrop Policy = "drop"
)

// ParsePolicy parses a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyQueue, PolicyDrop:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown audio policy %q (want %q or %q)", s, PolicyQueue, PolicyDrop)
}

// Manager defaults.
const (
	DefaultQueueLimit      = 8
	DefaultHeartbeatLength = 2 * time.Second
	MaxHeartbeatLength     = 3 * time.Second
	DefaultProbeLength     = 50 * time.Millisecond
	keepAliveLength        = time.Second
)

// Options configures a Manager.
type Options struct {
	Policy          Policy
	QueueLimit      int
	HeartbeatLength time.Duration
	ProbeLength     time.Duration
}

// DefaultOptions returns the stock manager options.
func DefaultOptions() Options {
	return Options{
		Policy:          PolicyQueue,
		QueueLimit:      DefaultQueueLimit,
		HeartbeatLength: DefaultHeartbeatLength,
		ProbeLength:     DefaultProbeLength,
	}
}

func (o Options) normalize() Options {
	if o.Policy == "" {
		o.Policy = PolicyQueue
	}
	if o.QueueLimit <= 0 {
		o.QueueLimit = DefaultQueueLimit
	}
	if o.HeartbeatLength <= 0 {
		o.HeartbeatLength = DefaultHeartbeatLength
	}
	if o.HeartbeatLength > MaxHeartbeatLength {
		o.HeartbeatLength = MaxHeartbeatLength
	}
	if o.ProbeLength <= 0 {
		o.ProbeLength = DefaultProbeLength
	}
	return o
}

// EventKind names a channel event.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventQueued    EventKind = "queued"
	EventDropped   EventKind = "dropped"
	EventPreempted EventKind = "preempted"
	EventFinished  EventKind = "finished"
	EventFailed    EventKind = "failed"
)

// Event describes something that happened on the channel.
type Event struct {
	Kind    EventKind
	Request model.PlaybackRequest
	Err     error
	At      time.Time
}

// ChannelState is a snapshot of the channel.
type ChannelState struct {
	CurrentID       string                  `json:"current_id,omitempty"`
	CurrentAsset    string                  `json:"current_asset,omitempty"`
	CurrentPriority model.Priority          `json:"current_priority"`
	Loading         bool                    `json:"loading"`
	Pending         []model.PlaybackRequest `json:"pending"`
	KeepAliveActive bool                    `json:"keep_alive_active"`
	Cached          []string                `json:"cached"`
	Policy          Policy                  `json:"policy"`
	QueueLimit      int                     `json:"queue_limit"`
	DeviceRunning   bool                    `json:"device_running"`
}

// Idle reports whether nothing holds the channel.
func (s ChannelState) Idle() bool {
	return s.CurrentID == ""
}

// slot is one claim on the channel. gen identifies the claim so late
// callbacks from an older claim can be told apart.
type slot struct {
	gen     uint64
	req     model.PlaybackRequest
	clip    Clip
	noCache bool
}

// Manager owns the single audio output channel.
type Manager struct {
	mu     sync.Mutex
	logger *slog.Logger
	device Device
	opts   Options

	now      func() time.Time
	spawn    func(func())
	observer func(Event)
	sink     func(error)

	gen     uint64
	current *slot
	pending []model.PlaybackRequest
	cache   map[string]Clip

	keepAlive     Clip
	wantKeepAlive bool
	probes        map[Clip]struct{}
}

// NewManager creates a manager playing on device.
func NewManager(device Device, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		device: device,
		opts:   opts.normalize(),
		now:    time.Now,
		spawn:  func(fn func()) { go fn() },
		cache:  make(map[string]Clip),
		probes: make(map[Clip]struct{}),
	}
}

// SetObserver registers fn to receive channel events. fn is called
// without the manager's lock held.
func (m *Manager) SetObserver(fn func(Event)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// SetErrorSink registers fn to receive load, play and suspension errors.
func (m *Manager) SetErrorSink(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = fn
}

// Policy returns the active deferral policy.
func (m *Manager) Policy() Policy {
	return m.opts.Policy
}

// Submit offers a request to the channel. It never blocks on loading or
// playback; failures go to the error sink.
func (m *Manager) Submit(req model.PlaybackRequest) {
	if err := req.Validate(); err != nil {
		m.logger.Warn("rejecting invalid playback request", "asset", req.Asset, "error", err)
		m.emit([]Event{{Kind: EventDropped, Request: req, Err: err, At: m.now()}})
		return
	}

	var events []Event
	m.mu.Lock()
	start := m.submitLocked(req, &events)
	m.mu.Unlock()

	m.emit(events)
	m.start(start)
}

func (m *Manager) submitLocked(req model.PlaybackRequest, events *[]Event) *slot {
	now := m.now()
	if m.current == nil || req.Priority.Outranks(m.current.req.Priority) {
		if cur := m.current; cur != nil {
			m.logger.Info("preempting announcement",
				"asset", cur.req.Asset,
				"priority", cur.req.Priority,
				"by", req.Asset,
				"by_priority", req.Priority,
			)
			m.releaseLocked(cur, true)
			*events = append(*events, Event{Kind: EventPreempted, Request: cur.req, At: now})
		}
		return m.claimLocked(req)
	}

	if m.opts.Policy == PolicyDrop {
		m.logger.Info("dropping announcement, channel busy",
			"asset", req.Asset,
			"priority", req.Priority,
			"current", m.current.req.Asset,
			"current_priority", m.current.req.Priority,
		)
		*events = append(*events, Event{Kind: EventDropped, Request: req, At: now})
		return nil
	}

	if len(m.pending) >= m.opts.QueueLimit {
		m.logger.Warn("dropping announcement, queue full", "asset", req.Asset, "limit", m.opts.QueueLimit)
		*events = append(*events, Event{Kind: EventDropped, Request: req, At: now})
		return nil
	}
	m.pending = append(m.pending, req)
	m.logger.Debug("queued announcement", "asset", req.Asset, "priority", req.Priority, "depth", len(m.pending))
	*events = append(*events, Event{Kind: EventQueued, Request: req, At: now})
	return nil
}

// claimLocked makes req the current request. Its clip is loaded by start.
func (m *Manager) claimLocked(req model.PlaybackRequest) *slot {
	m.gen++
	s := &slot{gen: m.gen, req: req}
	m.current = s
	return s
}

// drainLocked claims the oldest pending request if the channel is idle.
func (m *Manager) drainLocked() *slot {
	if m.current != nil || len(m.pending) == 0 {
		return nil
	}
	next := m.pending[0]
	m.pending = slices.Delete(m.pending, 0, 1)
	m.logger.Debug("draining queue", "asset", next.Asset, "remaining", len(m.pending))
	return m.claimLocked(next)
}

func (m *Manager) isCurrentLocked(s *slot) bool {
	return m.current != nil && m.current.gen == s.gen
}

// releaseLocked stops the slot's clip. Evicted clips are released, others
// go back to the cache.
func (m *Manager) releaseLocked(s *slot, evict bool) {
	if m.current == s {
		m.current = nil
	}
	if s.clip == nil {
		return
	}
	s.clip.Stop()
	if evict || s.noCache {
		s.clip.Release()
	} else {
		m.cacheLocked(s.req.Asset, s.clip)
	}
	s.clip = nil
}

func (m *Manager) cacheLocked(asset string, clip Clip) {
	if old, ok := m.cache[asset]; ok && old != clip {
		old.Release()
	}
	m.cache[asset] = clip
}

func (m *Manager) start(s *slot) {
	if s == nil {
		return
	}
	m.spawn(func() { m.load(s) })
}

func (m *Manager) load(s *slot) {
	asset := s.req.Asset

	m.mu.Lock()
	clip, cached := m.cache[asset]
	if cached {
		delete(m.cache, asset)
	}
	m.mu.Unlock()

	if !cached {
		var err error
		clip, err = m.device.Load(context.Background(), asset)
		if err != nil {
			m.fail(s, &AssetLoadError{Asset: asset, Err: err})
			return
		}
	}

	var events []Event
	m.mu.Lock()
	if !m.isCurrentLocked(s) {
		m.mu.Unlock()
		// Superseded while loading.
		clip.Stop()
		clip.Release()
		m.logger.Debug("released superseded load", "asset", asset, "gen", s.gen)
		return
	}

	s.clip = clip
	if err := clip.Play(s.req.Volume, false, func(err error) { m.finished(s, err) }); err != nil {
		m.releaseLocked(s, true)
		perr := &AssetPlayError{Asset: asset, Err: err}
		events = append(events, Event{Kind: EventFailed, Request: s.req, Err: perr, At: m.now()})
		next := m.drainLocked()
		sink := m.sink
		m.mu.Unlock()

		m.report(sink, perr)
		m.emit(events)
		m.start(next)
		return
	}
	events = append(events, Event{Kind: EventStarted, Request: s.req, At: m.now()})
	m.mu.Unlock()

	m.logger.Info("playing announcement",
		"asset", asset,
		"priority", s.req.Priority,
		"volume", s.req.Volume,
		"cached", cached,
	)
	m.emit(events)
}

// fail handles a load error for s.
func (m *Manager) fail(s *slot, err error) {
	m.mu.Lock()
	if !m.isCurrentLocked(s) {
		m.mu.Unlock()
		m.logger.Debug("ignoring failure of superseded request", "asset", s.req.Asset, "error", err)
		return
	}
	m.releaseLocked(s, true)
	events := []Event{{Kind: EventFailed, Request: s.req, Err: err, At: m.now()}}
	next := m.drainLocked()
	sink := m.sink
	m.mu.Unlock()

	m.report(sink, err)
	m.emit(events)
	m.start(next)
}

// finished is the clip completion callback.
func (m *Manager) finished(s *slot, err error) {
	m.mu.Lock()
	if !m.isCurrentLocked(s) {
		m.mu.Unlock()
		return
	}

	var (
		events []Event
		sink   func(error)
	)
	if err != nil {
		perr := &AssetPlayError{Asset: s.req.Asset, Err: err}
		m.releaseLocked(s, true)
		events = append(events, Event{Kind: EventFailed, Request: s.req, Err: perr, At: m.now()})
		sink = m.sink
		err = perr
	} else {
		m.releaseLocked(s, false)
		events = append(events, Event{Kind: EventFinished, Request: s.req, At: m.now()})
	}
	next := m.drainLocked()
	m.mu.Unlock()

	if err != nil {
		m.report(sink, err)
	} else {
		m.logger.Debug("announcement finished", "asset", s.req.Asset)
	}
	m.emit(events)
	m.start(next)
}

// Preload loads assets into the cache so their first play starts at once.
func (m *Manager) Preload(ctx context.Context, assets ...string) error {
	var errs []error
	for _, asset := range assets {
		m.mu.Lock()
		_, ok := m.cache[asset]
		m.mu.Unlock()
		if ok {
			continue
		}

		clip, err := m.device.Load(ctx, asset)
		if err != nil {
			errs = append(errs, &AssetLoadError{Asset: asset, Err: err})
			continue
		}

		m.mu.Lock()
		if _, ok := m.cache[asset]; ok {
			clip.Release()
		} else {
			m.cache[asset] = clip
		}
		m.mu.Unlock()
		m.logger.Debug("preloaded asset", "asset", asset)
	}
	return errors.Join(errs...)
}

// Invalidate drops the cached clip for asset. A clip that is playing
// finishes but is not cached again.
func (m *Manager) Invalidate(asset string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if clip, ok := m.cache[asset]; ok {
		clip.Release()
		delete(m.cache, asset)
	}
	if m.current != nil && m.current.req.Asset == asset {
		m.current.noCache = true
	}
	m.logger.Debug("asset invalidated", "asset", asset)
}

// StartKeepAlive starts the silent background loop. Calling it while the
// loop is running does nothing.
func (m *Manager) StartKeepAlive() error {
	m.mu.Lock()
	m.wantKeepAlive = true
	running := m.keepAlive != nil
	m.mu.Unlock()
	if running {
		return nil
	}

	clip, err := m.device.Silence(keepAliveLength)
	if err != nil {
		return &AssetLoadError{Asset: SilenceAsset, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keepAlive != nil {
		clip.Release()
		return nil
	}
	err = clip.Play(0, true, func(err error) { m.keepAliveStopped(clip, err) })
	if err != nil {
		clip.Release()
		return &AssetPlayError{Asset: SilenceAsset, Err: err}
	}
	m.keepAlive = clip
	m.logger.Debug("keep-alive started")
	return nil
}

func (m *Manager) keepAliveStopped(clip Clip, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keepAlive != clip {
		return
	}
	m.keepAlive = nil
	clip.Release()
	m.logger.Warn("keep-alive loop stopped", "error", err)
}

// KeepAliveActive reports whether the background loop is running.
func (m *Manager) KeepAliveActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keepAlive != nil
}

// CheckAlive resumes a suspended device. If a plain resume is not enough it
// plays a zero-volume probe and checks again. Once running, a stopped
// keep-alive loop is restarted.
func (m *Manager) CheckAlive(ctx context.Context) error {
	if !m.device.IsRunning() {
		m.logger.Warn("audio device not running, resuming")
		if err := m.device.Resume(ctx); err != nil {
			m.logger.Debug("resume failed", "error", err)
		}
		if !m.device.IsRunning() {
			if err := m.probe(m.opts.ProbeLength); err != nil {
				m.logger.Debug("probe failed", "error", err)
			}
		}
		if !m.device.IsRunning() {
			err := &ContextSuspendedError{}
			m.reportNow(err)
			return err
		}
		m.logger.Info("audio device resumed")
	}

	m.mu.Lock()
	restart := m.wantKeepAlive && m.keepAlive == nil
	m.mu.Unlock()
	if restart {
		m.logger.Info("restarting keep-alive loop")
		return m.StartKeepAlive()
	}
	return nil
}

// Heartbeat plays a short silent probe whatever the device state.
func (m *Manager) Heartbeat(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.probe(m.opts.HeartbeatLength); err != nil {
		err = &ContextSuspendedError{Err: err}
		m.reportNow(err)
		return err
	}
	m.logger.Debug("heartbeat probe", "length", m.opts.HeartbeatLength)
	return nil
}

// probe plays a silent clip of length d at zero volume.
func (m *Manager) probe(d time.Duration) error {
	clip, err := m.device.Silence(d)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	err = clip.Play(0, false, func(error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.probes[clip]; ok {
			delete(m.probes, clip)
			clip.Release()
		}
	})
	if err != nil {
		clip.Release()
		return err
	}
	m.probes[clip] = struct{}{}
	return nil
}

// Shutdown stops and releases everything: the current clip, the queue,
// the keep-alive loop, probes and the cache. It is safe to call more than
// once and the manager can be used again afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur := m.current; cur != nil {
		m.releaseLocked(cur, true)
	}
	m.current = nil
	m.pending = nil

	if m.keepAlive != nil {
		m.keepAlive.Stop()
		m.keepAlive.Release()
		m.keepAlive = nil
	}
	m.wantKeepAlive = false

	for clip := range m.probes {
		clip.Stop()
		clip.Release()
	}
	clear(m.probes)

	for asset, clip := range m.cache {
		clip.Stop()
		clip.Release()
		delete(m.cache, asset)
	}
	m.logger.Debug("audio channel reset")
}

// Close shuts the channel down and closes the device.
func (m *Manager) Close() error {
	m.Shutdown()
	return m.device.Close()
}

// Snapshot returns the current channel state.
func (m *Manager) Snapshot() ChannelState {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := ChannelState{
		Pending:         slices.Clone(m.pending),
		KeepAliveActive: m.keepAlive != nil,
		Policy:          m.opts.Policy,
		QueueLimit:      m.opts.QueueLimit,
		DeviceRunning:   m.device.IsRunning(),
	}
	if st.Pending == nil {
		st.Pending = []model.PlaybackRequest{}
	}
	if cur := m.current; cur != nil {
		st.CurrentID = cur.req.ID
		st.CurrentAsset = cur.req.Asset
		st.CurrentPriority = cur.req.Priority
		st.Loading = cur.clip == nil
	}
	st.Cached = make([]string, 0, len(m.cache))
	for asset := range m.cache {
		st.Cached = append(st.Cached, asset)
	}
	slices.Sort(st.Cached)
	return st
}

func (m *Manager) emit(events []Event) {
	if len(events) == 0 {
		return
	}
	m.mu.Lock()
	fn := m.observer
	m.mu.Unlock()
	if fn == nil {
		return
	}
	for _, e := range events {
		fn(e)
	}
}

func (m *Manager) reportNow(err error) {
	m.mu.Lock()
	sink := m.sink
	m.mu.Unlock()
	m.report(sink, err)
}

func (m *Manager) report(sink func(error), err error) {
	m.logger.Warn("audio failure", "error", err)
	if sink != nil {
		sink(err)
	}
}
