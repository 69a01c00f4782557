package encoder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/grabsend/internal/grab"
	"github.com/banshee-data/grabsend/internal/timeutil"
)

// Driver runs every registered encoder once per frame at a fixed rate.
// Encoders are ticked in registration order on a single goroutine.
type Driver struct {
	clock    timeutil.Clock
	interval time.Duration

	mu       sync.Mutex
	encoders []*Encoder
	before   func(frame uint64)

	frames atomic.Uint64
}

// NewDriver returns a driver that ticks every interval on clock.
func NewDriver(clock timeutil.Clock, interval time.Duration) *Driver {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Driver{clock: clock, interval: interval}
}

// Add registers an encoder. Encoders added while running join on the next
// frame.
func (d *Driver) Add(e *Encoder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.encoders = append(d.encoders, e)
}

// BeforeFrame installs a hook run at the start of every frame, before any
// encoder ticks. The scripted scene uses it to advance its timeline.
func (d *Driver) BeforeFrame(f func(frame uint64)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.before = f
}

// Encoders returns the registered encoders.
func (d *Driver) Encoders() []*Encoder {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Encoder(nil), d.encoders...)
}

// Frames returns the number of frames run so far.
func (d *Driver) Frames() uint64 { return d.frames.Load() }

// Frame runs one frame and returns the events it emitted.
func (d *Driver) Frame() []grab.Event {
	d.mu.Lock()
	encoders := append([]*Encoder(nil), d.encoders...)
	before := d.before
	d.mu.Unlock()

	frame := d.frames.Add(1)
	if before != nil {
		before(frame)
	}

	var events []grab.Event
	for _, e := range encoders {
		if ev, ok := e.Tick(); ok {
			events = append(events, ev)
		}
	}
	return events
}

// Init initialises every registered encoder.
func (d *Driver) Init() {
	for _, e := range d.Encoders() {
		e.Init()
	}
}

// Shutdown stops every registered encoder.
func (d *Driver) Shutdown() {
	for _, e := range d.Encoders() {
		e.Shutdown()
	}
}

// Run initialises the encoders and runs frames until ctx is cancelled, then
// shuts them down. It returns ctx.Err().
func (d *Driver) Run(ctx context.Context) error {
	d.Init()
	defer d.Shutdown()

	ticker := d.clock.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			d.Frame()
		}
	}
}
