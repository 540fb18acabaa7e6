package audio

import (
	"context"
	"sync"
	"time"
)

// FakeDevice is a scriptable Device for tests. Clips play until Finish is
// called for them.
type FakeDevice struct {
	mu sync.Mutex

	running      bool
	resumeFails  bool
	resumeOnPlay bool
	closed       bool
	resumes      int

	loadErrs map[string]error
	playErrs map[string]error
	loads    map[string]int
	clips    []*FakeClip
}

// NewFakeDevice creates a running fake device.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{
		running:  true,
		loadErrs: make(map[string]error),
		playErrs: make(map[string]error),
		loads:    make(map[string]int),
	}
}

// FailLoad makes every Load of asset return err. A nil err clears it.
func (d *FakeDevice) FailLoad(asset string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.loadErrs, asset)
		return
	}
	d.loadErrs[asset] = err
}

// FailPlay makes every Play of asset return err. A nil err clears it.
func (d *FakeDevice) FailPlay(asset string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.playErrs, asset)
		return
	}
	d.playErrs[asset] = err
}

// Suspend marks the device as not running.
func (d *FakeDevice) Suspend() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.running = false
}

// SetResumeFails makes Resume leave the device suspended.
func (d *FakeDevice) SetResumeFails(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumeFails = fail
}

// SetResumeOnPlay makes any Play wake a suspended device.
func (d *FakeDevice) SetResumeOnPlay(on bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumeOnPlay = on
}

// Resumes returns how many times Resume was called.
func (d *FakeDevice) Resumes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resumes
}

// LoadCount returns how many times asset was loaded.
func (d *FakeDevice) LoadCount(asset string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loads[asset]
}

func (d *FakeDevice) Load(ctx context.Context, asset string) (Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loads[asset]++
	if err := d.loadErrs[asset]; err != nil {
		return nil, err
	}
	return d.newClipLocked(asset), nil
}

func (d *FakeDevice) Silence(time.Duration) (Clip, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.newClipLocked(SilenceAsset), nil
}

func (d *FakeDevice) newClipLocked(asset string) *FakeClip {
	c := &FakeClip{dev: d, asset: asset}
	d.clips = append(d.clips, c)
	return c
}

func (d *FakeDevice) IsRunning() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running && !d.closed
}

func (d *FakeDevice) Resume(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resumes++
	if !d.resumeFails {
		d.running = true
	}
	return nil
}

func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Finish ends the oldest playing, non-looping clip of asset, calling its
// done callback with err. It reports whether such a clip was found.
func (d *FakeDevice) Finish(asset string, err error) bool {
	d.mu.Lock()
	var target *FakeClip
	for _, c := range d.clips {
		if c.asset == asset && c.playing && !c.loop {
			target = c
			break
		}
	}
	if target == nil {
		d.mu.Unlock()
		return false
	}
	done := target.done
	target.playing = false
	target.done = nil
	d.mu.Unlock()

	if done != nil {
		done(err)
	}
	return true
}

// Playing returns the assets of every playing clip, in load order.
func (d *FakeDevice) Playing() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, c := range d.clips {
		if c.playing {
			out = append(out, c.asset)
		}
	}
	return out
}

// Live returns the number of clips that have not been released.
func (d *FakeDevice) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.clips {
		if !c.released {
			n++
		}
	}
	return n
}

// Clips returns every clip created so far.
func (d *FakeDevice) Clips() []*FakeClip {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeClip(nil), d.clips...)
}

// FakeClip is a clip created by FakeDevice.
type FakeClip struct {
	dev   *FakeDevice
	asset string

	playing  bool
	loop     bool
	released bool
	volume   float64
	plays    int
	done     func(error)
}

func (c *FakeClip) Play(volume float64, loop bool, done func(error)) error {
	d := c.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.released {
		return ErrClipReleased
	}
	if err := d.playErrs[c.asset]; err != nil {
		return err
	}
	if d.resumeOnPlay {
		d.running = true
	}
	c.playing = true
	c.loop = loop
	c.volume = volume
	c.done = done
	c.plays++
	return nil
}

func (c *FakeClip) Stop() {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.playing = false
	c.done = nil
}

func (c *FakeClip) Release() {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.playing = false
	c.done = nil
	c.released = true
}

// Asset returns the clip's asset name.
func (c *FakeClip) Asset() string { return c.asset }

// State returns whether the clip is playing, looping and released, and the
// volume of its last play.
func (c *FakeClip) State() (playing, loop, released bool, volume float64) {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.playing, c.loop, c.released, c.volume
}

// Plays returns how many times the clip was played.
func (c *FakeClip) Plays() int {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	return c.plays
}
