package audio

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// NullDevice plays nothing. Clips finish as soon as they start, so the
// channel's sequencing still runs on hosts without a sound card.
// When dir is set, Load checks that the asset file exists.
type NullDevice struct {
	dir string

	mu     sync.Mutex
	closed bool
}

// NewNullDevice creates a silent device.
func NewNullDevice(dir string) *NullDevice {
	return &NullDevice{dir: dir}
}

func (d *NullDevice) Load(ctx context.Context, asset string) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.dir != "" {
		if _, err := os.Stat(AssetPath(d.dir, asset)); err != nil {
			return nil, fmt.Errorf("open: %w", err)
		}
	}
	return &nullClip{}, nil
}

func (d *NullDevice) Silence(time.Duration) (Clip, error) {
	return &nullClip{}, nil
}

func (d *NullDevice) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.closed
}

func (d *NullDevice) Resume(context.Context) error {
	return nil
}

func (d *NullDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

type nullClip struct {
	mu       sync.Mutex
	released bool
}

func (c *nullClip) Play(_ float64, loop bool, done func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrClipReleased
	}
	if !loop && done != nil {
		go done(nil)
	}
	return nil
}

func (c *nullClip) Stop() {}

func (c *nullClip) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
}
