// Package mqtt publishes announcement and lifecycle events to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/jmylchreest/adhan/internal/model"
)

// Topic suffixes appended to the configured base topic.
const (
	EventsSuffix = "events"
	SystemSuffix = "system"
)

// System event names.
const (
	EventStartup   = "STARTUP"
	EventShutdown  = "SHUTDOWN"
	EventHeartbeat = "HEARTBEAT"
	EventOffline   = "OFFLINE" // Last will
	EventError     = "ERROR"
)

// Publisher publishes events to MQTT.
type Publisher interface {
	// PublishAnnouncement sends a channel event to the broker.
	// Failures are returned, never fatal to the caller.
	PublishAnnouncement(event AnnouncementEvent) error

	// PublishSystem sends a lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// AnnouncementEvent describes something the audio channel did.
type AnnouncementEvent struct {
	Timestamp time.Time
	Event     string // started, queued, dropped, preempted, finished, failed
	Request   model.PlaybackRequest
	Err       error
}

// SystemEvent represents a daemon lifecycle event.
type SystemEvent struct {
	Timestamp time.Time
	Event     string // e.g. "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason    string // e.g. "SIGTERM" for shutdown, the message for errors
	Location  string
	Quiet     bool
	Retained  bool
}

// AnnouncementPayload is the JSON body of an announcement event.
type AnnouncementPayload struct {
	Announcement AnnouncementInner `json:"announcement"`
}

// AnnouncementInner contains the announcement details.
type AnnouncementInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	ID        string `json:"id"`
	Asset     string `json:"asset"`
	Priority  string `json:"priority"`
	Kind      string `json:"kind"`
	Label     string `json:"label,omitempty"`
	Error     string `json:"error,omitempty"`
}

// FormatAnnouncementPayload creates the JSON payload for a channel event.
func FormatAnnouncementPayload(event AnnouncementEvent) ([]byte, error) {
	inner := AnnouncementInner{
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
		Event:     event.Event,
		ID:        event.Request.ID,
		Asset:     event.Request.Asset,
		Priority:  event.Request.Priority.String(),
		Kind:      string(event.Request.Kind),
	}
	if event.Request.Label != nil {
		inner.Label = event.Request.Label.Key()
	}
	if event.Err != nil {
		inner.Error = event.Err.Error()
	}
	return json.Marshal(AnnouncementPayload{Announcement: inner})
}

// SystemPayload is the JSON body of a system event.
type SystemPayload struct {
	System SystemInner `json:"system"`
}

// SystemInner contains the system event details.
type SystemInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
	Location  string `json:"location,omitempty"`
	Quiet     bool   `json:"quiet,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	return json.Marshal(SystemPayload{
		System: SystemInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
			Location:  event.Location,
			Quiet:     event.Quiet,
		},
	})
}

// JoinTopic appends suffix to base with a single separator.
func JoinTopic(base, suffix string) string {
	base = strings.TrimRight(base, "/")
	if base == "" {
		return suffix
	}
	return base + "/" + suffix
}
