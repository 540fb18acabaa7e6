package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

const defaultSampleRate = beep.SampleRate(44100)

// BeepDevice plays clips on the system speaker.
type BeepDevice struct {
	mu     sync.Mutex
	logger *slog.Logger

	// Directory relative asset names are resolved against
	dir string

	initialized bool
	closed      bool
	sampleRate  beep.SampleRate
}

// NewBeepDevice creates a speaker-backed device reading assets from dir.
// The speaker is opened lazily on the first load.
func NewBeepDevice(dir string, logger *slog.Logger) *BeepDevice {
	if logger == nil {
		logger = slog.Default()
	}
	return &BeepDevice{
		logger:     logger,
		dir:        dir,
		sampleRate: defaultSampleRate,
	}
}

// Path resolves an asset name to a file path.
func (d *BeepDevice) Path(asset string) string {
	return AssetPath(d.dir, asset)
}

// Load decodes the asset into memory.
// Supports WAV, OGG, and MP3 formats.
func (d *BeepDevice) Load(ctx context.Context, asset string) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buffer, err := d.decode(d.Path(asset))
	if err != nil {
		return nil, err
	}
	d.logger.Debug("asset decoded", "asset", asset, "duration", d.sampleRate.D(buffer.Len()))
	return &beepClip{dev: d, name: asset, buffer: buffer}, nil
}

func (d *BeepDevice) decode(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".ogg":
		streamer, format, err = vorbis.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	defer func() { _ = streamer.Close() }()

	if err := d.ensureInitialized(format.SampleRate); err != nil {
		return nil, err
	}

	buffer := beep.NewBuffer(format)
	buffer.Append(streamer)
	return buffer, nil
}

// Silence returns an inaudible clip of length dur.
func (d *BeepDevice) Silence(dur time.Duration) (Clip, error) {
	if err := d.ensureInitialized(defaultSampleRate); err != nil {
		return nil, err
	}
	rate := d.rate()
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	buffer := beep.NewBuffer(format)
	buffer.Append(silence(rate.N(dur)))
	return &beepClip{dev: d, name: SilenceAsset, buffer: buffer}, nil
}

// IsRunning reports whether the speaker is open.
func (d *BeepDevice) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.initialized && !d.closed
}

// Resume opens the speaker if it is not open yet.
func (d *BeepDevice) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.ensureInitialized(defaultSampleRate)
}

// Close stops all playback and closes the speaker.
func (d *BeepDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		speaker.Close()
		d.initialized = false
	}
	d.closed = true
	d.logger.Debug("audio device closed")
	return nil
}

// ensureInitialized initializes the speaker if not already done.
func (d *BeepDevice) ensureInitialized(sampleRate beep.SampleRate) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDeviceClosed
	}
	if d.initialized {
		return nil
	}

	bufferSize := sampleRate.N(100 * time.Millisecond)
	if err := speaker.Init(sampleRate, bufferSize); err != nil {
		return fmt.Errorf("failed to initialize speaker: %w", err)
	}

	d.sampleRate = sampleRate
	d.initialized = true
	d.logger.Debug("speaker initialized", "sample_rate", sampleRate)
	return nil
}

func (d *BeepDevice) rate() beep.SampleRate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sampleRate
}

type beepClip struct {
	dev    *BeepDevice
	name   string
	buffer *beep.Buffer

	mu       sync.Mutex
	ctrl     *beep.Ctrl
	released bool
}

func (c *beepClip) Play(volume float64, loop bool, done func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return ErrClipReleased
	}
	if err := c.dev.ensureInitialized(c.buffer.Format().SampleRate); err != nil {
		return err
	}
	c.stopLocked()

	var streamer beep.Streamer
	seeker := c.buffer.Streamer(0, c.buffer.Len())
	if loop {
		streamer = beep.Loop(-1, seeker)
	} else {
		streamer = seeker
	}

	if rate := c.dev.rate(); c.buffer.Format().SampleRate != rate {
		streamer = beep.Resample(4, c.buffer.Format().SampleRate, rate, streamer)
	}

	if volume < 1.0 {
		streamer = &effects.Volume{
			Streamer: streamer,
			Base:     2,
			Volume:   volumeToExponent(volume),
			Silent:   volume <= 0,
		}
	}

	if !loop && done != nil {
		// The callback runs with the speaker locked; hand off so done may
		// stop clips or start new ones.
		streamer = beep.Seq(streamer, beep.Callback(func() { go done(nil) }))
	}

	c.ctrl = &beep.Ctrl{Streamer: streamer}
	speaker.Play(c.ctrl)
	return nil
}

func (c *beepClip) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *beepClip) stopLocked() {
	if c.ctrl == nil {
		return
	}
	speaker.Lock()
	c.ctrl.Streamer = nil
	speaker.Unlock()
	c.ctrl = nil
}

func (c *beepClip) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	c.released = true
	c.buffer = nil
}

// silence yields n zero samples.
func silence(n int) beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		if n <= 0 {
			return 0, false
		}
		k := min(len(samples), n)
		clear(samples[:k])
		n -= k
		return k, true
	})
}

// volumeToExponent converts a linear volume (0-1) to a base-2 exponent for
// effects.Volume: 0.5 is -1, 0.25 is -2.
func volumeToExponent(volume float64) float64 {
	if volume <= 0 {
		return -10
	}
	return math.Log2(volume)
}

// AssetPath resolves an asset name against dir, expanding "~".
func AssetPath(dir, asset string) string {
	path := asset
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	if !filepath.IsAbs(path) && dir != "" {
		path = filepath.Join(dir, path)
	}
	return path
}
