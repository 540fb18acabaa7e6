package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/adhan/internal/model"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	errs   []error
}

func (s *recorder) event(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recorder) err(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

func (s *recorder) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = string(e.Kind) + ":" + e.Request.Asset
	}
	return out
}

func newTestManager(t *testing.T, opts Options) (*Manager, *FakeDevice, *recorder) {
	t.Helper()
	dev := NewFakeDevice()
	m := NewManager(dev, opts, nil)
	m.spawn = func(fn func()) { fn() }
	s := &recorder{}
	m.SetObserver(s.event)
	m.SetErrorSink(s.err)
	return m, dev, s
}

func req(asset string, p model.Priority) model.PlaybackRequest {
	return model.NewPlaybackRequest(asset, p, 1, model.KindManual, time.Now())
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("drop")
	require.NoError(t, err)
	assert.Equal(t, PolicyDrop, p)

	_, err = ParsePolicy("mix")
	assert.Error(t, err)
}

func TestManager_PlaysWhenIdle(t *testing.T) {
	m, dev, s := newTestManager(t, DefaultOptions())

	m.Submit(req("1.mp3", model.PriorityHourly))

	assert.Equal(t, []string{"1.mp3"}, dev.Playing())
	st := m.Snapshot()
	assert.Equal(t, "1.mp3", st.CurrentAsset)
	assert.Equal(t, model.PriorityHourly, st.CurrentPriority)
	assert.False(t, st.Loading)
	assert.Equal(t, []string{"started:1.mp3"}, s.kinds())
}

func TestManager_PrayerPreemptsHourly(t *testing.T) {
	m, dev, s := newTestManager(t, DefaultOptions())

	m.Submit(req("1.mp3", model.PriorityHourly))
	m.Submit(req("prayer.mp3", model.PriorityPrayer))

	assert.Equal(t, []string{"prayer.mp3"}, dev.Playing())
	assert.Equal(t, []string{"started:1.mp3", "preempted:1.mp3", "started:prayer.mp3"}, s.kinds())

	hourly := dev.Clips()[0]
	_, _, released, _ := hourly.State()
	assert.True(t, released, "preempted clip is unloaded")
	assert.Empty(t, m.Snapshot().Pending, "preempted request is not requeued")
}

func TestManager_HourlyNeverPreemptsPrayer(t *testing.T) {
	for _, policy := range []Policy{PolicyQueue, PolicyDrop} {
		t.Run(string(policy), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Policy = policy
			m, dev, _ := newTestManager(t, opts)

			m.Submit(req("prayer.mp3", model.PriorityPrayer))
			m.Submit(req("1.mp3", model.PriorityHourly))

			assert.Equal(t, []string{"prayer.mp3"}, dev.Playing())
			assert.Equal(t, "prayer.mp3", m.Snapshot().CurrentAsset)
		})
	}
}

func TestManager_QueuePolicyDrainsAfterCompletion(t *testing.T) {
	m, dev, s := newTestManager(t, DefaultOptions())

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	m.Submit(req("1.mp3", model.PriorityHourly))
	require.Len(t, m.Snapshot().Pending, 1)

	require.True(t, dev.Finish("prayer.mp3", nil))

	assert.Equal(t, []string{"1.mp3"}, dev.Playing())
	assert.Empty(t, m.Snapshot().Pending)
	assert.Equal(t, []string{
		"started:prayer.mp3",
		"queued:1.mp3",
		"finished:prayer.mp3",
		"started:1.mp3",
	}, s.kinds())
}

func TestManager_DropPolicyDiscards(t *testing.T) {
	opts := DefaultOptions()
	opts.Policy = PolicyDrop
	m, dev, s := newTestManager(t, opts)

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	m.Submit(req("1.mp3", model.PriorityHourly))
	assert.Empty(t, m.Snapshot().Pending)

	dev.Finish("prayer.mp3", nil)
	assert.Empty(t, dev.Playing())
	assert.True(t, m.Snapshot().Idle())
	assert.Contains(t, s.kinds(), "dropped:1.mp3")
}

func TestManager_EqualPriorityDefers(t *testing.T) {
	m, dev, _ := newTestManager(t, DefaultOptions())

	m.Submit(req("1.mp3", model.PriorityHourly))
	m.Submit(req("2.mp3", model.PriorityHourly))

	assert.Equal(t, []string{"1.mp3"}, dev.Playing())
	require.Len(t, m.Snapshot().Pending, 1)
	assert.Equal(t, "2.mp3", m.Snapshot().Pending[0].Asset)
}

func TestManager_DrainIsFIFO(t *testing.T) {
	m, dev, _ := newTestManager(t, DefaultOptions())

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	m.Submit(req("everyday.mp3", model.PriorityPostPrayer))
	m.Submit(req("1.mp3", model.PriorityHourly))
	m.Submit(req("asr.mp3", model.PriorityPrePrayer))

	var order []string
	for _, asset := range []string{"prayer.mp3", "everyday.mp3", "1.mp3", "asr.mp3"} {
		require.True(t, dev.Finish(asset, nil), asset)
		if p := dev.Playing(); len(p) > 0 {
			order = append(order, p[0])
		}
	}
	assert.Equal(t, []string{"everyday.mp3", "1.mp3", "asr.mp3"}, order)
	assert.True(t, m.Snapshot().Idle())
}

func TestManager_QueueLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.QueueLimit = 2
	m, _, s := newTestManager(t, opts)

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	m.Submit(req("1.mp3", model.PriorityHourly))
	m.Submit(req("2.mp3", model.PriorityHourly))
	m.Submit(req("3.mp3", model.PriorityHourly))

	assert.Len(t, m.Snapshot().Pending, 2)
	assert.Contains(t, s.kinds(), "dropped:3.mp3")
}

func TestManager_LoadFailureDrains(t *testing.T) {
	m, dev, s := newTestManager(t, DefaultOptions())
	dev.FailLoad("bad.mp3", os.ErrNotExist)

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	m.Submit(req("bad.mp3", model.PriorityHourly))
	m.Submit(req("good.mp3", model.PriorityHourly))

	dev.Finish("prayer.mp3", nil)

	assert.Equal(t, []string{"good.mp3"}, dev.Playing())
	require.Len(t, s.errs, 1)
	var lerr *AssetLoadError
	require.ErrorAs(t, s.errs[0], &lerr)
	assert.Equal(t, "bad.mp3", lerr.Asset)
	assert.ErrorIs(t, s.errs[0], os.ErrNotExist)
	assert.Contains(t, s.kinds(), "failed:bad.mp3")
}

func TestManager_LoadFailureWhenIdle(t *testing.T) {
	m, dev, s := newTestManager(t, DefaultOptions())
	dev.FailLoad("missing.mp3", os.ErrNotExist)

	m.Submit(req("missing.mp3", model.PriorityPrayer))

	assert.True(t, m.Snapshot().Idle(), "failed load never leaves the channel stuck")
	assert.Len(t, s.errs, 1)
}

func TestManager_PlayFailureDrains(t *testing.T) {
	m, dev, s := newTestManager(t, DefaultOptions())
	boom := errors.New("device busy")
	dev.FailPlay("bad.mp3", boom)

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	m.Submit(req("bad.mp3", model.PriorityHourly))
	m.Submit(req("good.mp3", model.PriorityHourly))
	dev.Finish("prayer.mp3", nil)

	assert.Equal(t, []string{"good.mp3"}, dev.Playing())
	require.Len(t, s.errs, 1)
	var perr *AssetPlayError
	require.ErrorAs(t, s.errs[0], &perr)
	assert.ErrorIs(t, perr, boom)
}

func TestManager_PlaybackErrorReleasesClip(t *testing.T) {
	m, dev, s := newTestManager(t, DefaultOptions())

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	m.Submit(req("1.mp3", model.PriorityHourly))
	dev.Finish("prayer.mp3", errors.New("underrun"))

	assert.Equal(t, []string{"1.mp3"}, dev.Playing())
	assert.NotContains(t, m.Snapshot().Cached, "prayer.mp3")
	assert.Len(t, s.errs, 1)
	assert.Contains(t, s.kinds(), "failed:prayer.mp3")
}

func TestManager_CompletionCachesClip(t *testing.T) {
	m, dev, _ := newTestManager(t, DefaultOptions())

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	dev.Finish("prayer.mp3", nil)
	assert.Equal(t, []string{"prayer.mp3"}, m.Snapshot().Cached)

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	assert.Equal(t, 1, dev.LoadCount("prayer.mp3"))
	assert.Equal(t, []string{"prayer.mp3"}, dev.Playing())
	assert.Empty(t, m.Snapshot().Cached, "a playing clip is owned by the slot")
}

func TestManager_SupersededLoadIsReleased(t *testing.T) {
	m, dev, _ := newTestManager(t, DefaultOptions())
	var deferred []func()
	m.spawn = func(fn func()) { deferred = append(deferred, fn) }

	m.Submit(req("1.mp3", model.PriorityHourly))
	assert.True(t, m.Snapshot().Loading)
	m.Submit(req("prayer.mp3", model.PriorityPrayer))

	require.Len(t, deferred, 2)
	for _, fn := range deferred {
		fn()
	}

	assert.Equal(t, []string{"prayer.mp3"}, dev.Playing())
	clips := dev.Clips()
	require.Len(t, clips, 2)
	assert.Equal(t, "1.mp3", clips[0].Asset())
	_, _, released, _ := clips[0].State()
	assert.True(t, released)
	assert.Equal(t, 0, clips[0].Plays())
}

func TestManager_LateCompletionIgnored(t *testing.T) {
	m, dev, _ := newTestManager(t, DefaultOptions())

	m.Submit(req("1.mp3", model.PriorityHourly))
	hourly := dev.Clips()[0]
	m.Submit(req("prayer.mp3", model.PriorityPrayer))

	// A callback from the preempted claim must not free the new one.
	s := &slot{gen: 1, req: req("1.mp3", model.PriorityHourly), clip: hourly}
	m.finished(s, nil)

	assert.Equal(t, "prayer.mp3", m.Snapshot().CurrentAsset)
}

func TestManager_KeepAlive(t *testing.T) {
	m, dev, _ := newTestManager(t, DefaultOptions())

	require.NoError(t, m.StartKeepAlive())
	require.NoError(t, m.StartKeepAlive())
	assert.True(t, m.KeepAliveActive())
	assert.Equal(t, []string{SilenceAsset}, dev.Playing())

	loop := dev.Clips()[0]
	playing, looping, _, volume := loop.State()
	assert.True(t, playing)
	assert.True(t, looping)
	assert.Equal(t, 0.0, volume)

	m.Submit(req("1.mp3", model.PriorityHourly))
	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	assert.Equal(t, []string{SilenceAsset, "prayer.mp3"}, dev.Playing(), "keep-alive is never preempted")
	assert.True(t, m.Snapshot().KeepAliveActive)
}

func TestManager_ShutdownThenKeepAlive(t *testing.T) {
	m, dev, _ := newTestManager(t, DefaultOptions())

	require.NoError(t, m.Preload(context.Background(), "fajr.mp3", "isha.mp3"))
	require.NoError(t, m.StartKeepAlive())
	require.NoError(t, m.Heartbeat(context.Background()))
	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	m.Submit(req("1.mp3", model.PriorityHourly))

	m.Shutdown()
	m.Shutdown()

	st := m.Snapshot()
	assert.True(t, st.Idle())
	assert.Empty(t, st.Pending)
	assert.Empty(t, st.Cached)
	assert.False(t, st.KeepAliveActive)
	assert.Equal(t, 0, dev.Live())

	require.NoError(t, m.StartKeepAlive())
	assert.Equal(t, 1, dev.Live(), "only the keep-alive loop remains")
	assert.Equal(t, []string{SilenceAsset}, dev.Playing())

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	assert.Equal(t, "prayer.mp3", m.Snapshot().CurrentAsset, "usable after shutdown")
}

func TestManager_CheckAlive(t *testing.T) {
	t.Run("running", func(t *testing.T) {
		m, dev, _ := newTestManager(t, DefaultOptions())
		require.NoError(t, m.CheckAlive(context.Background()))
		assert.Equal(t, 0, dev.Resumes())
	})

	t.Run("resume works", func(t *testing.T) {
		m, dev, _ := newTestManager(t, DefaultOptions())
		dev.Suspend()
		require.NoError(t, m.CheckAlive(context.Background()))
		assert.Equal(t, 1, dev.Resumes())
		assert.True(t, dev.IsRunning())
	})

	t.Run("probe wakes device", func(t *testing.T) {
		m, dev, _ := newTestManager(t, DefaultOptions())
		dev.Suspend()
		dev.SetResumeFails(true)
		dev.SetResumeOnPlay(true)
		require.NoError(t, m.CheckAlive(context.Background()))

		probe := dev.Clips()[0]
		assert.Equal(t, SilenceAsset, probe.Asset())
		_, looping, _, volume := probe.State()
		assert.False(t, looping)
		assert.Equal(t, 0.0, volume)
	})

	t.Run("stays suspended", func(t *testing.T) {
		m, dev, s := newTestManager(t, DefaultOptions())
		dev.Suspend()
		dev.SetResumeFails(true)

		err := m.CheckAlive(context.Background())
		var serr *ContextSuspendedError
		require.ErrorAs(t, err, &serr)
		require.Len(t, s.errs, 1)
	})

	t.Run("restarts keep-alive", func(t *testing.T) {
		m, dev, _ := newTestManager(t, DefaultOptions())
		require.NoError(t, m.StartKeepAlive())
		loop := dev.Clips()[0]
		m.keepAliveStopped(loop, errors.New("stream closed"))
		assert.False(t, m.KeepAliveActive())

		require.NoError(t, m.CheckAlive(context.Background()))
		assert.True(t, m.KeepAliveActive())
		assert.Len(t, dev.Clips(), 2)
	})
}

func TestManager_Heartbeat(t *testing.T) {
	opts := DefaultOptions()
	opts.HeartbeatLength = time.Minute
	m, dev, _ := newTestManager(t, opts)
	assert.Equal(t, MaxHeartbeatLength, m.opts.HeartbeatLength)

	require.NoError(t, m.Heartbeat(context.Background()))
	assert.Equal(t, []string{SilenceAsset}, dev.Playing())

	require.True(t, dev.Finish(SilenceAsset, nil))
	assert.Equal(t, 0, dev.Live(), "finished probe is released")
}

func TestManager_Invalidate(t *testing.T) {
	m, dev, _ := newTestManager(t, DefaultOptions())

	require.NoError(t, m.Preload(context.Background(), "fajr.mp3"))
	m.Invalidate("fajr.mp3")
	assert.Empty(t, m.Snapshot().Cached)
	assert.Equal(t, 0, dev.Live())

	m.Submit(req("prayer.mp3", model.PriorityPrayer))
	m.Invalidate("prayer.mp3")
	dev.Finish("prayer.mp3", nil)
	assert.Empty(t, m.Snapshot().Cached, "clip that changed while playing is not cached")
}

func TestManager_Preload(t *testing.T) {
	m, dev, _ := newTestManager(t, DefaultOptions())
	dev.FailLoad("broken.mp3", os.ErrNotExist)

	err := m.Preload(context.Background(), "fajr.mp3", "broken.mp3", "fajr.mp3")
	var lerr *AssetLoadError
	require.ErrorAs(t, err, &lerr)
	assert.Equal(t, "broken.mp3", lerr.Asset)

	assert.Equal(t, []string{"fajr.mp3"}, m.Snapshot().Cached)
	assert.Equal(t, 1, dev.LoadCount("fajr.mp3"))
}

func TestManager_InvalidRequestDropped(t *testing.T) {
	m, dev, s := newTestManager(t, DefaultOptions())

	m.Submit(model.PlaybackRequest{ID: "x", Asset: "1.mp3"})
	assert.Empty(t, dev.Playing())
	assert.Equal(t, []string{"dropped:1.mp3"}, s.kinds())
}

func TestManager_NullDevice(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.mp3"), []byte("x"), 0o644))

	m := NewManager(NewNullDevice(dir), DefaultOptions(), nil)
	done := make(chan Event, 4)
	m.SetObserver(func(e Event) {
		if e.Kind == EventFinished || e.Kind == EventFailed {
			done <- e
		}
	})

	m.Submit(req("1.mp3", model.PriorityHourly))
	select {
	case e := <-done:
		assert.Equal(t, EventFinished, e.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("null device never finished")
	}

	m.Submit(req("missing.mp3", model.PriorityHourly))
	select {
	case e := <-done:
		assert.Equal(t, EventFailed, e.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("missing asset never failed")
	}
	require.NoError(t, m.Close())
}

type invalidations struct {
	mu     sync.Mutex
	assets []string
}

func (i *invalidations) Invalidate(asset string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.assets = append(i.assets, asset)
}

func TestWatcher_Check(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prayer.mp3")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	inv := &invalidations{}
	w := NewWatcher(inv, nil)
	w.Watch("prayer.mp3", path)
	w.Watch("missing.mp3", filepath.Join(dir, "missing.mp3"))
	assert.Equal(t, 2, w.Len())

	assert.Empty(t, w.Check())

	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	assert.Equal(t, []string{"prayer.mp3"}, w.Check())
	assert.Empty(t, w.Check(), "change is reported once")
	assert.Equal(t, []string{"prayer.mp3"}, inv.assets)

	require.NoError(t, w.Start(context.Background()))
	assert.True(t, w.IsRunning())
	w.Stop()
	assert.False(t, w.IsRunning())
}
