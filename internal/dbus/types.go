package dbus

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/adhan/internal/audio"
	"github.com/jmylchreest/adhan/internal/model"
	"github.com/jmylchreest/adhan/internal/store"
)

const (
	// Interface is the control interface name.
	Interface = "io.github.jmylchreest.Adhan"
	// Path is the control object path.
	Path = dbus.ObjectPath("/io/github/jmylchreest/Adhan")
	// BusName is the bus name adhand claims.
	BusName = "io.github.jmylchreest.Adhan"
)

// Bus names accepted by Connect.
const (
	BusSession = "session"
	BusSystem  = "system"
)

// Signal names.
const (
	SignalAnnouncementStarted  = "AnnouncementStarted"
	SignalAnnouncementFinished = "AnnouncementFinished"
	SignalQuietChanged         = "QuietChanged"
)

// D-Bus error names returned by the control methods.
const (
	ErrorInvalidArgument = Interface + ".Error.InvalidArgument"
	ErrorFailed          = Interface + ".Error.Failed"
)

// ErrDaemonNotRunning is returned by the client when nobody owns BusName.
var ErrDaemonNotRunning = errors.New("adhand is not running")

// Controller is the daemon side of the control interface.
type Controller interface {
	StatusJSON() ([]byte, error)
	Play(asset, priority string, volume float64) (string, error)
	SetQuiet(enabled bool, by store.QuietTrigger, source string) error
	Reset() error
}

// AnnouncementSignal is a decoded announcement signal.
type AnnouncementSignal struct {
	Name     string `json:"signal"`
	Asset    string `json:"asset"`
	Priority string `json:"priority"`
	Error    string `json:"error,omitempty"`
}

// Finished reports whether the signal marks the end of an announcement.
func (s AnnouncementSignal) Finished() bool {
	return s.Name == SignalAnnouncementFinished
}

// signalFor maps a channel event to the signal it is announced with.
// Queued and dropped requests never reached the speaker, so they have none.
func signalFor(ev audio.Event) (string, []any, bool) {
	asset, priority := ev.Request.Asset, ev.Request.Priority.String()

	switch ev.Kind {
	case audio.EventStarted:
		return SignalAnnouncementStarted, []any{asset, priority}, true
	case audio.EventFinished, audio.EventFailed:
		msg := ""
		if ev.Err != nil {
			msg = ev.Err.Error()
		}
		return SignalAnnouncementFinished, []any{asset, priority, msg}, true
	case audio.EventPreempted:
		return SignalAnnouncementFinished, []any{asset, priority, "preempted"}, true
	}
	return "", nil, false
}

// ParseSignal decodes an announcement signal received from the bus.
func ParseSignal(sig *dbus.Signal) (AnnouncementSignal, error) {
	if sig == nil {
		return AnnouncementSignal{}, errors.New("nil signal")
	}

	var out AnnouncementSignal
	switch sig.Name {
	case Interface + "." + SignalAnnouncementStarted:
		out.Name = SignalAnnouncementStarted
		if len(sig.Body) < 2 {
			return out, fmt.Errorf("%s: want 2 arguments, got %d", out.Name, len(sig.Body))
		}
	case Interface + "." + SignalAnnouncementFinished:
		out.Name = SignalAnnouncementFinished
		if len(sig.Body) < 3 {
			return out, fmt.Errorf("%s: want 3 arguments, got %d", out.Name, len(sig.Body))
		}
		out.Error, _ = sig.Body[2].(string)
	default:
		return out, fmt.Errorf("unexpected signal %q", sig.Name)
	}

	var ok bool
	if out.Asset, ok = sig.Body[0].(string); !ok {
		return out, fmt.Errorf("%s: invalid asset type %T", out.Name, sig.Body[0])
	}
	if out.Priority, ok = sig.Body[1].(string); !ok {
		return out, fmt.Errorf("%s: invalid priority type %T", out.Name, sig.Body[1])
	}
	return out, nil
}

// toDBusError converts a controller error into a named D-Bus error.
func toDBusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name := ErrorFailed
	if errors.Is(err, model.ErrInvalidPriority) || errors.Is(err, model.ErrEmptyAsset) {
		name = ErrorInvalidArgument
	}
	return dbus.NewError(name, []any{err.Error()})
}

// Connect returns the shared connection to the named bus.
func Connect(bus string) (*dbus.Conn, error) {
	switch bus {
	case "", BusSession:
		return dbus.SessionBus()
	case BusSystem:
		return dbus.SystemBus()
	}
	return nil, fmt.Errorf("unknown bus %q (want %q or %q)", bus, BusSession, BusSystem)
}
