package audio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// SilenceAsset is the name reported for generated silent clips.
const SilenceAsset = "<silence>"

// Device is an audio output that can load and play clips.
type Device interface {
	// Load decodes the named asset.
	Load(ctx context.Context, asset string) (Clip, error)
	// Silence returns an inaudible clip of length d.
	Silence(d time.Duration) (Clip, error)
	// IsRunning reports whether the device is currently able to play.
	IsRunning() bool
	// Resume tries to bring a suspended device back.
	Resume(ctx context.Context) error
	Close() error
}

// Clip is a loaded asset.
type Clip interface {
	// Play starts playback. done is called at most once, when a non-looping
	// clip ends or fails, and never from within Play itself. A stopped clip
	// does not call done.
	Play(volume float64, loop bool, done func(error)) error
	// Stop halts playback. The clip can be played again.
	Stop()
	// Release frees the clip. Released clips cannot be played.
	Release()
}

var (
	// ErrClipReleased is returned when playing a released clip.
	ErrClipReleased = errors.New("clip released")
	// ErrDeviceClosed is returned by a closed device.
	ErrDeviceClosed = errors.New("audio device closed")
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// AssetLoadError reports an asset that could not be loaded.
type AssetLoadError struct {
	Asset string
	Err   error
}

func (e *AssetLoadError) Error() string {
	return fmt.Sprintf("load asset %q: %v", e.Asset, e.Err)
}

func (e *AssetLoadError) Unwrap() error { return e.Err }

// AssetPlayError reports an asset that loaded but failed to play.
type AssetPlayError struct {
	Asset string
	Err   error
}

func (e *AssetPlayError) Error() string {
	return fmt.Sprintf("play asset %q: %v", e.Asset, e.Err)
}

func (e *AssetPlayError) Unwrap() error { return e.Err }

// ContextSuspendedError reports a device that stayed suspended after every
// resume attempt.
type ContextSuspendedError struct {
	Err error
}

func (e *ContextSuspendedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("audio device suspended: %v", e.Err)
	}
	return "audio device suspended"
}

func (e *ContextSuspendedError) Unwrap() error { return e.Err }
