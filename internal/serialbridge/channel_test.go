package serialbridge

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/grabsend/internal/monitoring"
)

// newTestChannel builds a channel over a testable port and releases the
// process-wide claim when the test ends.
func newTestChannel(t *testing.T, opts PortOptions) (*Channel, *TestableSerialPort, *MockSerialPortFactory) {
	t.Helper()
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)
	c, err := NewChannel("/dev/ttyTEST0", opts, factory)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, port, factory
}

func muteLogs(t *testing.T) *logRecorder {
	t.Helper()
	original := monitoring.Logf
	t.Cleanup(func() { monitoring.Logf = original })
	rec := &logRecorder{}
	monitoring.SetLogger(rec.logf)
	return rec
}

type logRecorder struct {
	mu    sync.Mutex
	count int
}

func (r *logRecorder) logf(string, ...interface{}) {
	r.mu.Lock()
	r.count++
	r.mu.Unlock()
}

func (r *logRecorder) n() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func TestChannel_OpenAndSend(t *testing.T) {
	muteLogs(t)
	c, port, factory := newTestChannel(t, PortOptions{})

	require.NoError(t, c.Open())
	assert.True(t, c.IsOpen())
	assert.True(t, port.DTR, "DTR should be asserted")
	assert.False(t, port.RTS, "RTS should be deasserted")

	call := factory.LastCall()
	require.NotNil(t, call)
	assert.Equal(t, "/dev/ttyTEST0", call.Path)
	assert.Equal(t, 57600, call.Options.BaudRate)

	assert.Equal(t, SendOK, c.Send("0,1,150.00"))
	assert.Equal(t, SendOK, c.Send("0,0,150.00\n"))
	assert.Equal(t, []string{"0,1,150.00", "0,0,150.00"}, port.WrittenLines())

	stats := c.Stats()
	assert.Equal(t, uint64(2), stats.Sent)
	assert.Equal(t, uint64(0), stats.Dropped())
	assert.Equal(t, "0,0,150.00", stats.LastLine)

	// opening twice is harmless
	require.NoError(t, c.Open())
	assert.Len(t, factory.OpenCalls, 1)
}

func TestChannel_OpenFailureDegrades(t *testing.T) {
	rec := muteLogs(t)
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)
	factory.Error = errors.New("permission denied")

	c, err := NewChannel("COM8", PortOptions{}, factory)
	require.NoError(t, err)
	defer c.Close()

	err = c.Open()
	var openErr *PortOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, "COM8", openErr.Path)
	assert.ErrorIs(t, err, factory.Error)
	assert.Positive(t, rec.n(), "open failure should be logged")

	assert.NotPanics(t, func() {
		for i := 0; i < 100; i++ {
			assert.Equal(t, SendSkipped, c.Send("1,1,72.50"))
		}
	})
	assert.False(t, c.IsOpen())
	assert.Equal(t, uint64(100), c.Stats().Skipped)
	assert.Equal(t, 0, port.WriteCalls)
}

func TestChannel_OpenAppliesReadTimeout(t *testing.T) {
	muteLogs(t)
	port := NewTestableSerialPort()
	var opened []string
	opener := SerialPortOpener(func(path string, opts PortOptions) (SerialPorter, error) {
		opened = append(opened, path)
		return port, nil
	})

	c, err := NewChannel("/dev/ttyTEST0", PortOptions{ReadTimeout: 20 * time.Millisecond}, opener)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Open())
	assert.Equal(t, []string{"/dev/ttyTEST0"}, opened)
	assert.Equal(t, 20*time.Millisecond, port.ReadTimeout)
}

func TestChannel_ReadTimeoutFailureClosesPort(t *testing.T) {
	muteLogs(t)
	port := NewTestableSerialPort()
	port.ReadTimeoutError = errors.New("ioctl failed")

	c, err := NewChannel("/dev/ttyTEST0", PortOptions{}, NewMockSerialPortFactory(port))
	require.NoError(t, err)
	defer c.Close()

	err = c.Open()
	var openErr *PortOpenError
	require.ErrorAs(t, err, &openErr)
	assert.ErrorIs(t, err, port.ReadTimeoutError)
	assert.True(t, port.IsClosed())
	assert.False(t, c.IsOpen())
	assert.Equal(t, SendSkipped, c.Send("0,1,1.00"))
}

func TestChannel_SendBeforeOpenIsSkipped(t *testing.T) {
	muteLogs(t)
	c, port, _ := newTestChannel(t, PortOptions{})
	assert.Equal(t, SendSkipped, c.Send("0,1,1.00"))
	assert.Empty(t, port.GetWrittenData())
}

func TestChannel_WriteFailureIsDropped(t *testing.T) {
	rec := muteLogs(t)
	c, port, _ := newTestChannel(t, PortOptions{})
	require.NoError(t, c.Open())

	port.SetWriteError(errors.New("device unplugged"))
	before := rec.n()
	assert.Equal(t, SendFailed, c.Send("0,1,10.00"))
	assert.Greater(t, rec.n(), before, "write failure should be logged")

	// no retry: the next line goes out on its own
	assert.Equal(t, SendOK, c.Send("0,0,10.00"))
	assert.Equal(t, []string{"0,0,10.00"}, port.WrittenLines())

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, "device unplugged", stats.LastError)
}

func TestChannel_ShortWriteFails(t *testing.T) {
	muteLogs(t)
	c, port, _ := newTestChannel(t, PortOptions{})
	require.NoError(t, c.Open())
	port.ShortWrite = true

	assert.Equal(t, SendFailed, c.Send("1,0,5.00"))
	assert.Equal(t, ErrWriteFailed.Error(), c.Stats().LastError)
}

func TestChannel_WriteTimeout(t *testing.T) {
	muteLogs(t)
	c, port, _ := newTestChannel(t, PortOptions{WriteTimeout: 10 * time.Millisecond})
	require.NoError(t, c.Open())

	port.SetWriteLatency(200 * time.Millisecond)
	start := time.Now()
	assert.Equal(t, SendTimeout, c.Send("0,1,1.00"))
	assert.Less(t, time.Since(start), 150*time.Millisecond, "Send should return at the write timeout")

	// the stuck write still owns the port
	assert.Equal(t, SendBusy, c.Send("0,0,1.00"))

	port.SetWriteLatency(0)
	assert.Eventually(t, func() bool {
		return c.Send("1,1,2.00") == SendOK
	}, 2*time.Second, 20*time.Millisecond)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats.TimedOut)
	assert.GreaterOrEqual(t, stats.Busy, uint64(1))
	assert.Equal(t, uint64(1), stats.Sent)
}

func TestChannel_Close(t *testing.T) {
	muteLogs(t)
	c, port, _ := newTestChannel(t, PortOptions{})
	require.NoError(t, c.Open())

	port.CloseError = errors.New("close failed")
	assert.NoError(t, c.Close(), "close errors are swallowed")
	assert.True(t, port.IsClosed())
	assert.False(t, c.IsOpen())
	assert.NoError(t, c.Close())

	assert.Equal(t, SendSkipped, c.Send("0,1,1.00"))
	assert.ErrorIs(t, c.Open(), ErrChannelClosed)
}

func TestChannel_SingleOwner(t *testing.T) {
	muteLogs(t)
	first, _, _ := newTestChannel(t, PortOptions{})
	require.NoError(t, first.Open())

	second, err := NewChannel("/dev/ttyTEST1", PortOptions{}, NewMockSerialPortFactory(NewTestableSerialPort()))
	assert.ErrorIs(t, err, ErrChannelExists)
	assert.Nil(t, second)
	assert.True(t, first.IsOpen(), "first channel must be unaffected")

	// releasing the first lets a new owner in
	first.Close()
	third, err := NewChannel("/dev/ttyTEST1", PortOptions{}, NewMockSerialPortFactory(NewTestableSerialPort()))
	require.NoError(t, err)
	third.Close()
}

func TestNewChannel_InvalidArguments(t *testing.T) {
	_, err := NewChannel("", PortOptions{}, nil)
	assert.Error(t, err)

	_, err = NewChannel("COM3", PortOptions{BaudRate: 1234}, nil)
	assert.Error(t, err)
}

func TestChannel_ConcurrentSends(t *testing.T) {
	muteLogs(t)
	c, port, _ := newTestChannel(t, PortOptions{})
	require.NoError(t, c.Open())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Send("1,1,3.00")
		}()
	}
	wg.Wait()

	lines := port.WrittenLines()
	assert.Len(t, lines, 20)
	for _, l := range lines {
		assert.Equal(t, "1,1,3.00", l, "writes must not interleave")
	}
}

func TestSendResult(t *testing.T) {
	assert.Equal(t, "ok", SendOK.String())
	assert.Equal(t, "busy", SendBusy.String())
	assert.False(t, SendOK.Dropped())
	assert.False(t, SendSkipped.Dropped())
	assert.True(t, SendTimeout.Dropped())
	assert.True(t, SendFailed.Dropped())
	assert.True(t, SendBusy.Dropped())
}
