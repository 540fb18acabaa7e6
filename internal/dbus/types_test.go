package dbus

import (
	"errors"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/adhan/internal/audio"
	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/store"
)

type fakeController struct {
	status   []byte
	err      error
	played   []string
	quiet    []bool
	quietBy  store.QuietTrigger
	source   string
	resets   int
	statusFn func() ([]byte, error)
}

func (f *fakeController) StatusJSON() ([]byte, error) {
	if f.statusFn != nil {
		return f.statusFn()
	}
	return f.status, f.err
}

func (f *fakeController) Play(asset, priority string, volume float64) (string, error) {
	if _, err := model.ParsePriority(priority); err != nil {
		return "", err
	}
	if asset == "" {
		return "", model.ErrEmptyAsset
	}
	f.played = append(f.played, asset)
	return "01JB0000000000000000000000", nil
}

func (f *fakeController) SetQuiet(enabled bool, by store.QuietTrigger, source string) error {
	f.quiet = append(f.quiet, enabled)
	f.quietBy, f.source = by, source
	return f.err
}

func (f *fakeController) Reset() error {
	f.resets++
	return f.err
}

func TestControlServer_Methods(t *testing.T) {
	ctrl := &fakeController{status: []byte(`{"quiet":false}`)}
	s := NewControlServer(ctrl, nil)

	status, derr := s.Status()
	require.Nil(t, derr)
	assert.JSONEq(t, `{"quiet":false}`, status)

	id, derr := s.Play("prayer.mp3", "prayer", 1)
	require.Nil(t, derr)
	assert.NotEmpty(t, id)
	assert.Equal(t, []string{"prayer.mp3"}, ctrl.played)

	assert.Nil(t, s.SetQuiet(true))
	assert.Equal(t, []bool{true}, ctrl.quiet)
	assert.Equal(t, store.QuietTriggerRemote, ctrl.quietBy)
	assert.Equal(t, SourceDBus, ctrl.source)

	assert.Nil(t, s.Reset())
	assert.Equal(t, 1, ctrl.resets)
}

func TestControlServer_Errors(t *testing.T) {
	ctrl := &fakeController{err: errors.New("disk full")}
	s := NewControlServer(ctrl, nil)

	_, derr := s.Play("prayer.mp3", "loud", 1)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgument, derr.Name)

	_, derr = s.Play("", "prayer", 1)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorInvalidArgument, derr.Name)

	_, derr = s.Status()
	require.NotNil(t, derr)
	assert.Equal(t, ErrorFailed, derr.Name)
	assert.Equal(t, []any{"disk full"}, derr.Body)

	derr = s.SetQuiet(false)
	require.NotNil(t, derr)
	assert.Equal(t, ErrorFailed, derr.Name)

	assert.NotNil(t, s.Reset())
}

func TestControlServer_StopWithoutStart(t *testing.T) {
	s := NewControlServer(&fakeController{}, nil)
	assert.NoError(t, s.Stop())
	assert.ErrorIs(t, s.EmitQuietChanged(true), errNotConnected)

	// Not connected: events are dropped quietly.
	s.ObserveEvent(audio.Event{Kind: audio.EventStarted})
}

func TestSignalFor(t *testing.T) {
	req := model.NewPlaybackRequest("zuhr.mp3", model.PriorityPrePrayer, 1, model.KindPrePrayer, time.Now())

	tests := []struct {
		name     string
		ev       audio.Event
		wantName string
		wantArgs []any
		wantOK   bool
	}{
		{
			name:     "started",
			ev:       audio.Event{Kind: audio.EventStarted, Request: req},
			wantName: SignalAnnouncementStarted,
			wantArgs: []any{"zuhr.mp3", "prePrayer"},
			wantOK:   true,
		},
		{
			name:     "finished",
			ev:       audio.Event{Kind: audio.EventFinished, Request: req},
			wantName: SignalAnnouncementFinished,
			wantArgs: []any{"zuhr.mp3", "prePrayer", ""},
			wantOK:   true,
		},
		{
			name:     "failed",
			ev:       audio.Event{Kind: audio.EventFailed, Request: req, Err: errors.New("decode failed")},
			wantName: SignalAnnouncementFinished,
			wantArgs: []any{"zuhr.mp3", "prePrayer", "decode failed"},
			wantOK:   true,
		},
		{
			name:     "preempted",
			ev:       audio.Event{Kind: audio.EventPreempted, Request: req},
			wantName: SignalAnnouncementFinished,
			wantArgs: []any{"zuhr.mp3", "prePrayer", "preempted"},
			wantOK:   true,
		},
		{name: "queued", ev: audio.Event{Kind: audio.EventQueued, Request: req}},
		{name: "dropped", ev: audio.Event{Kind: audio.EventDropped, Request: req}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, args, ok := signalFor(tt.ev)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestParseSignal(t *testing.T) {
	started, err := ParseSignal(&dbus.Signal{
		Name: Interface + "." + SignalAnnouncementStarted,
		Body: []any{"prayer.mp3", "prayer"},
	})
	require.NoError(t, err)
	assert.Equal(t, AnnouncementSignal{Name: SignalAnnouncementStarted, Asset: "prayer.mp3", Priority: "prayer"}, started)
	assert.False(t, started.Finished())

	finished, err := ParseSignal(&dbus.Signal{
		Name: Interface + "." + SignalAnnouncementFinished,
		Body: []any{"prayer.mp3", "prayer", "device lost"},
	})
	require.NoError(t, err)
	assert.True(t, finished.Finished())
	assert.Equal(t, "device lost", finished.Error)

	_, err = ParseSignal(&dbus.Signal{Name: Interface + "." + SignalQuietChanged, Body: []any{true}})
	assert.Error(t, err)

	_, err = ParseSignal(&dbus.Signal{Name: Interface + "." + SignalAnnouncementFinished, Body: []any{"a", "b"}})
	assert.Error(t, err)

	_, err = ParseSignal(&dbus.Signal{Name: Interface + "." + SignalAnnouncementStarted, Body: []any{1, "b"}})
	assert.Error(t, err)

	_, err = ParseSignal(nil)
	assert.Error(t, err)
}

func TestToDBusError(t *testing.T) {
	assert.Nil(t, toDBusError(nil))
	assert.Equal(t, ErrorInvalidArgument, toDBusError(model.ErrInvalidPriority).Name)
	assert.Equal(t, ErrorFailed, toDBusError(&audio.ContextSuspendedError{}).Name)
}

func TestConnect_UnknownBus(t *testing.T) {
	_, err := Connect("tcp")
	assert.Error(t, err)

	_, err = NewClient("tcp")
	assert.Error(t, err)
}

func TestIntrospection(t *testing.T) {
	var methods []string
	for _, m := range controlMethods() {
		methods = append(methods, m.Name)
	}
	assert.Equal(t, []string{"Status", "Play", "SetQuiet", "Reset"}, methods)

	var signals []string
	for _, s := range controlSignals() {
		signals = append(signals, s.Name)
	}
	assert.Equal(t, []string{SignalAnnouncementStarted, SignalAnnouncementFinished, SignalQuietChanged}, signals)
}
