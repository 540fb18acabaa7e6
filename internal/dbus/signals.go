package dbus

import (
	"errors"
	"fmt"

	"github.com/jmylchreest/adhan/internal/audio"
)

var errNotConnected = errors.New("not connected to D-Bus")

func (s *ControlServer) emit(name string, args ...any) error {
	s.mu.RLock()
	conn, running := s.conn, s.running
	s.mu.RUnlock()
	if conn == nil || !running {
		return errNotConnected
	}

	if err := conn.Emit(Path, Interface+"."+name, args...); err != nil {
		return fmt.Errorf("failed to emit %s signal: %w", name, err)
	}
	s.logger.Debug("emitted signal", "signal", name, "args", args)
	return nil
}

// EmitQuietChanged emits QuietChanged.
func (s *ControlServer) EmitQuietChanged(enabled bool) error {
	return s.emit(SignalQuietChanged, enabled)
}

// ObserveEvent forwards channel events as announcement signals. It is
// meant to be registered as a kiosk observer.
func (s *ControlServer) ObserveEvent(ev audio.Event) {
	name, args, ok := signalFor(ev)
	if !ok {
		return
	}
	if err := s.emit(name, args...); err != nil && !errors.Is(err, errNotConnected) {
		s.logger.Warn("failed to emit announcement signal", "signal", name, "error", err)
	}
}
