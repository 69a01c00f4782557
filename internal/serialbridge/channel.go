// Package serialbridge owns the single serial connection to the actuator
// controller. Writes are best effort: a line is attempted once, bounded by a
// write timeout, and dropped on failure.
package serialbridge

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/banshee-data/grabsend/internal/monitoring"
	"github.com/banshee-data/grabsend/internal/timeutil"
)

var (
	ErrChannelExists = errors.New("serial channel already exists in this process")
	ErrChannelClosed = errors.New("serial channel closed")
	ErrWriteFailed   = errors.New("failed to write to serial port")
)

// PortOpenError reports that the device could not be acquired. The channel
// stays closed and every Send becomes a no-op.
type PortOpenError struct {
	Path string
	Err  error
}

func (e *PortOpenError) Error() string {
	return fmt.Sprintf("open serial port %s: %v", e.Path, e.Err)
}

func (e *PortOpenError) Unwrap() error { return e.Err }

// SendResult is the outcome of a single best-effort write.
type SendResult int

const (
	// SendOK means the whole line reached the driver.
	SendOK SendResult = iota
	// SendSkipped means the channel was not open.
	SendSkipped
	// SendTimeout means the write did not finish within the write timeout.
	SendTimeout
	// SendFailed means the driver returned an error or a short write.
	SendFailed
	// SendBusy means an earlier timed-out write is still pending.
	SendBusy
)

func (r SendResult) String() string {
	switch r {
	case SendOK:
		return "ok"
	case SendSkipped:
		return "skipped"
	case SendTimeout:
		return "timeout"
	case SendFailed:
		return "failed"
	case SendBusy:
		return "busy"
	default:
		return fmt.Sprintf("SendResult(%d)", int(r))
	}
}

// Dropped reports whether the line was attempted on an open channel but
// never delivered.
func (r SendResult) Dropped() bool {
	return r == SendTimeout || r == SendFailed || r == SendBusy
}

// Stats is a snapshot of a channel's delivery counters.
type Stats struct {
	Path      string `json:"path"`
	BaudRate  int    `json:"baud_rate"`
	Open      bool   `json:"open"`
	Sent      uint64 `json:"sent"`
	Skipped   uint64 `json:"skipped"`
	TimedOut  uint64 `json:"timed_out"`
	Failed    uint64 `json:"failed"`
	Busy      uint64 `json:"busy"`
	LastLine  string `json:"last_line,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Dropped is the number of lines lost on an open channel.
func (s Stats) Dropped() uint64 { return s.TimedOut + s.Failed + s.Busy }

// process-wide claim: at most one channel owns the physical port
var (
	activeMu sync.Mutex
	active   *Channel
)

// Option configures a Channel.
type Option func(*Channel)

// WithClock replaces the clock used to bound writes.
func WithClock(clock timeutil.Clock) Option {
	return func(c *Channel) { c.clock = clock }
}

// Channel is the single owner of the serial device. It is safe for
// concurrent use; writes are serialised.
type Channel struct {
	path    string
	opts    PortOptions
	factory SerialPortFactory
	clock   timeutil.Clock

	mu       sync.Mutex
	port     SerialPorter
	open     bool
	released bool
	pending  chan error // non-nil while a timed-out write has not returned
	stats    Stats
}

// NewChannel validates opts and claims the process-wide channel slot. A
// second call while a channel is live returns ErrChannelExists; the first
// channel is unaffected. The port is not touched until Open.
func NewChannel(path string, opts PortOptions, factory SerialPortFactory, options ...Option) (*Channel, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("serial port path is required")
	}
	normalised, err := opts.Normalise()
	if err != nil {
		return nil, fmt.Errorf("invalid serial options: %w", err)
	}
	if factory == nil {
		factory = RealFactory{}
	}

	c := &Channel{
		path:    path,
		opts:    normalised,
		factory: factory,
		clock:   timeutil.RealClock{},
	}
	for _, o := range options {
		o(c)
	}
	c.stats.Path = path
	c.stats.BaudRate = normalised.BaudRate

	activeMu.Lock()
	defer activeMu.Unlock()
	if active != nil {
		monitoring.Warnf("[Serial] channel for %s already exists, refusing second owner for %s", active.path, path)
		return nil, ErrChannelExists
	}
	active = c
	return c, nil
}

// Open acquires the device. Failure is logged and returned; the channel then
// stays closed for the rest of its life and Send never writes.
func (c *Channel) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return ErrChannelClosed
	}
	if c.open {
		return nil
	}

	port, err := c.factory.Open(c.path, c.opts)
	if err != nil {
		c.stats.LastError = err.Error()
		monitoring.Errorf("[Serial] Open failed: %v", err)
		return &PortOpenError{Path: c.path, Err: err}
	}

	if tp, ok := port.(TimeoutSerialPorter); ok {
		if err := tp.SetReadTimeout(c.opts.ReadTimeout); err != nil {
			port.Close()
			err = fmt.Errorf("failed to set read timeout: %w", err)
			c.stats.LastError = err.Error()
			monitoring.Errorf("[Serial] Open failed: %v", err)
			return &PortOpenError{Path: c.path, Err: err}
		}
	}

	if mp, ok := port.(ModemSerialPorter); ok {
		if err := mp.SetDTR(true); err != nil {
			monitoring.Warnf("[Serial] failed to assert DTR: %v", err)
		}
		if err := mp.SetRTS(false); err != nil {
			monitoring.Warnf("[Serial] failed to deassert RTS: %v", err)
		}
	}

	c.port = port
	c.open = true
	c.stats.Open = true
	monitoring.Logf("[Serial] Opened %s@%d", c.path, c.opts.BaudRate)
	return nil
}

// Send writes line followed by a newline. It never retries and never queues:
// the outcome is reported and, for drops, logged as a warning.
func (c *Channel) Send(line string) SendResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		c.stats.Skipped++
		return SendSkipped
	}

	if c.pending != nil {
		select {
		case <-c.pending:
			c.pending = nil
		default:
			c.stats.Busy++
			monitoring.Warnf("[Serial] Write dropped, previous write still pending: %q", line)
			return SendBusy
		}
	}

	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	buf := []byte(line)
	port := c.port

	done := make(chan error, 1)
	go func() {
		n, err := port.Write(buf)
		if err == nil && n != len(buf) {
			err = ErrWriteFailed
		}
		done <- err
	}()

	timer := c.clock.NewTimer(c.opts.WriteTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			c.stats.Failed++
			c.stats.LastError = err.Error()
			monitoring.Warnf("[Serial] Write failed: %v", err)
			return SendFailed
		}
		c.stats.Sent++
		c.stats.LastLine = strings.TrimSuffix(line, "\n")
		return SendOK
	case <-timer.C():
		c.pending = done
		c.stats.TimedOut++
		c.stats.LastError = fmt.Sprintf("write timed out after %s", c.opts.WriteTimeout)
		monitoring.Warnf("[Serial] Write failed: timed out after %s", c.opts.WriteTimeout)
		return SendTimeout
	}
}

// Close releases the device and the process-wide claim. Errors from the
// driver are logged and swallowed. Close is idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.open {
		if err := c.port.Close(); err != nil {
			monitoring.Logf("[Serial] close error ignored: %v", err)
		}
		c.open = false
		c.stats.Open = false
	}
	c.released = true
	c.mu.Unlock()

	activeMu.Lock()
	if active == c {
		active = nil
	}
	activeMu.Unlock()
	return nil
}

// IsOpen reports whether the device is currently held open.
func (c *Channel) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Path returns the configured device path.
func (c *Channel) Path() string { return c.path }

// Options returns the normalised port options.
func (c *Channel) Options() PortOptions { return c.opts }

// Stats returns a snapshot of the delivery counters.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
