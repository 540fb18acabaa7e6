package dbus

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jmylchreest/adhan/internal/store"
)

// SourceDBus identifies quiet mode changes made over the bus.
const SourceDBus = "dbus"

// ControlServer exports the adhand control interface.
type ControlServer struct {
	conn       *dbus.Conn
	logger     *slog.Logger
	controller Controller

	mu      sync.RWMutex
	running bool
}

// NewControlServer creates a server backed by ctrl.
func NewControlServer(ctrl Controller, logger *slog.Logger) *ControlServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlServer{
		logger:     logger,
		controller: ctrl,
	}
}

// Start exports the control object on conn and claims BusName.
func (s *ControlServer) Start(conn *dbus.Conn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("server already running")
	}

	if err := conn.Export(s, Path, Interface); err != nil {
		return fmt.Errorf("failed to export object: %w", err)
	}

	node := &introspect.Node{
		Name: string(Path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    Interface,
				Methods: controlMethods(),
				Signals: controlSignals(),
			},
		},
	}
	if err := conn.Export(introspect.NewIntrospectable(node), Path,
		"org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("failed to export introspectable: %w", err)
	}

	reply, err := conn.RequestName(BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken, is another adhand running?", BusName)
	}

	s.conn = conn
	s.running = true
	s.logger.Info("D-Bus control server started", "interface", Interface, "path", Path)
	return nil
}

// Stop releases the bus name. The shared connection stays open.
func (s *ControlServer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false

	if _, err := s.conn.ReleaseName(BusName); err != nil {
		s.logger.Warn("failed to release bus name", "error", err)
	}
	s.logger.Info("D-Bus control server stopped")
	return nil
}

// Status returns the daemon status as JSON.
// D-Bus method: Status() -> s
func (s *ControlServer) Status() (string, *dbus.Error) {
	s.logger.Debug("Status called")
	data, err := s.controller.StatusJSON()
	if err != nil {
		return "", toDBusError(err)
	}
	return string(data), nil
}

// Play submits a manual announcement and returns its request id.
// D-Bus method: Play(ssd) -> s
func (s *ControlServer) Play(asset, priority string, volume float64) (string, *dbus.Error) {
	s.logger.Debug("Play called", "asset", asset, "priority", priority, "volume", volume)
	id, err := s.controller.Play(asset, priority, volume)
	if err != nil {
		return "", toDBusError(err)
	}
	return id, nil
}

// SetQuiet switches quiet mode.
// D-Bus method: SetQuiet(b) -> nothing
func (s *ControlServer) SetQuiet(enabled bool) *dbus.Error {
	s.logger.Debug("SetQuiet called", "enabled", enabled)
	if err := s.controller.SetQuiet(enabled, store.QuietTriggerRemote, SourceDBus); err != nil {
		return toDBusError(err)
	}
	if err := s.EmitQuietChanged(enabled); err != nil {
		s.logger.Debug("QuietChanged not emitted", "error", err)
	}
	return nil
}

// Reset clears the audio channel.
// D-Bus method: Reset() -> nothing
func (s *ControlServer) Reset() *dbus.Error {
	s.logger.Debug("Reset called")
	return toDBusError(s.controller.Reset())
}

func controlMethods() []introspect.Method {
	return []introspect.Method{
		{
			Name: "Status",
			Args: []introspect.Arg{
				{Name: "status", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "Play",
			Args: []introspect.Arg{
				{Name: "asset", Type: "s", Direction: "in"},
				{Name: "priority", Type: "s", Direction: "in"},
				{Name: "volume", Type: "d", Direction: "in"},
				{Name: "id", Type: "s", Direction: "out"},
			},
		},
		{
			Name: "SetQuiet",
			Args: []introspect.Arg{
				{Name: "enabled", Type: "b", Direction: "in"},
			},
		},
		{Name: "Reset"},
	}
}

func controlSignals() []introspect.Signal {
	return []introspect.Signal{
		{
			Name: SignalAnnouncementStarted,
			Args: []introspect.Arg{
				{Name: "asset", Type: "s"},
				{Name: "priority", Type: "s"},
			},
		},
		{
			Name: SignalAnnouncementFinished,
			Args: []introspect.Arg{
				{Name: "asset", Type: "s"},
				{Name: "priority", Type: "s"},
				{Name: "error", Type: "s"},
			},
		},
		{
			Name: SignalQuietChanged,
			Args: []introspect.Arg{
				{Name: "enabled", Type: "b"},
			},
		},
	}
}
