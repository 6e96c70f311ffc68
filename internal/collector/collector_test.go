package collector

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"drgex/internal/adc"
	"drgex/internal/config"
	"drgex/internal/frame"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances only when the scripted source delivers data
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// scriptedSource produces frames at a fixed rate on a fake clock
type scriptedSource struct {
	clock     *fakeClock
	period    time.Duration
	next      func(i int) []byte // frame bytes for the i-th read across all opens
	reads     int
	opens     int
	closes    int
	failOpen  func(n int) error
	readErr   func(i int) error
	onRead    func(i int)
	openPorts int
}

func (s *scriptedSource) Name() string { return "/dev/fake0" }

func (s *scriptedSource) Open() (io.ReadCloser, error) {
	s.opens++
	if s.failOpen != nil {
		if err := s.failOpen(s.opens); err != nil {
			return nil, err
		}
	}
	s.openPorts++
	return &scriptedPort{src: s}, nil
}

type scriptedPort struct {
	src    *scriptedSource
	closed bool
}

func (p *scriptedPort) Read(b []byte) (int, error) {
	if p.closed {
		return 0, errors.New("port closed")
	}
	s := p.src
	i := s.reads
	s.reads++
	s.clock.Advance(s.period)
	if s.onRead != nil {
		s.onRead(i)
	}
	if s.readErr != nil {
		if err := s.readErr(i); err != nil {
			return 0, err
		}
	}
	return copy(b, s.next(i)), nil
}

func (p *scriptedPort) Close() error {
	if !p.closed {
		p.closed = true
		p.src.closes++
		p.src.openPorts--
	}
	return nil
}

func newTestCollector(src *scriptedSource, d time.Duration) *Collector {
	c := NewCollector(config.AcquisitionConfig{
		Duration:         d,
		ReopenDelay:      100 * time.Millisecond,
		MaxSessionFactor: 3.2,
	}, src, nil)
	c.now = src.clock.Now
	c.sleep = func(_ context.Context, d time.Duration) { src.clock.Advance(d) }
	return c
}

func constant(v int) func(int) []byte {
	return func(int) []byte { return frame.Encode(v) }
}

func TestRunErrorFreeSource(t *testing.T) {
	for _, tc := range []struct {
		rate int
		d    time.Duration
	}{
		{1000, 2 * time.Second},
		{1500, time.Second},
		{250, 4 * time.Second},
	} {
		src := &scriptedSource{
			clock:  newFakeClock(),
			period: time.Second / time.Duration(tc.rate),
			next:   func(i int) []byte { return frame.Encode(i % 4096) },
		}
		c := newTestCollector(src, tc.d)

		capture, err := c.Run(context.Background())
		require.NoError(t, err)

		want := float64(tc.rate) * tc.d.Seconds()
		assert.InDelta(t, want, len(capture.Samples), 1, "rate %d", tc.rate)
		assert.Equal(t, 0, capture.ErrorCount)
		assert.True(t, capture.Complete)
		assert.Equal(t, "/dev/fake0", capture.Port)

		rate, err := capture.SampleRate()
		require.NoError(t, err)
		assert.InDelta(t, float64(tc.rate), rate, 1/tc.d.Seconds())
		assert.Equal(t, 1, src.opens)
		assert.Equal(t, 0, src.openPorts, "port must be closed after the session")

		for i, v := range capture.Samples {
			require.Equal(t, i%4096, v)
		}
	}
}

func TestRunOutOfRangeRestartsWindow(t *testing.T) {
	const badFrame = 500
	src := &scriptedSource{
		clock:  newFakeClock(),
		period: time.Millisecond,
		next: func(i int) []byte {
			switch {
			case i < badFrame:
				return frame.Encode(1)
			case i == badFrame:
				return frame.Encode(5000)
			default:
				return frame.Encode(2)
			}
		},
	}
	c := newTestCollector(src, time.Second)

	capture, err := c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, capture.ErrorCount)
	assert.True(t, capture.Complete)
	assert.InDelta(t, 1000, len(capture.Samples), 1)
	for _, v := range capture.Samples {
		require.Equal(t, 2, v, "samples from before the reset must be discarded")
	}
	assert.Equal(t, 2, src.opens, "port is reopened once")
	assert.Equal(t, 2, src.closes)
}

func TestRunNegativeFrameCountsAsError(t *testing.T) {
	src := &scriptedSource{
		clock:  newFakeClock(),
		period: time.Millisecond,
		next: func(i int) []byte {
			if i == 10 || i == 20 {
				return frame.Encode(-7)
			}
			return frame.Encode(100)
		},
	}
	capture, err := newTestCollector(src, 200*time.Millisecond).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, capture.ErrorCount)
	assert.True(t, capture.Complete)
	assert.InDelta(t, 200, len(capture.Samples), 1)
}

func TestRunContinuousCorruptionTerminates(t *testing.T) {
	src := &scriptedSource{
		clock:  newFakeClock(),
		period: time.Millisecond,
		next:   constant(-1),
	}
	c := newTestCollector(src, time.Second)

	capture, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, capture.Complete)
	assert.Empty(t, capture.Samples)
	assert.Greater(t, capture.ErrorCount, 0)
	assert.Equal(t, 0, capture.DisplayRate())

	_, err = capture.SampleRate()
	assert.True(t, errors.Is(err, adc.ErrEmptyBuffer))
}

func TestRunIncompleteFramesAreRetried(t *testing.T) {
	src := &scriptedSource{
		clock:  newFakeClock(),
		period: time.Millisecond,
		next: func(i int) []byte {
			switch i % 3 {
			case 0:
				return []byte{0x10} // one byte then a timeout
			case 1:
				return nil
			default:
				return frame.Encode(42)
			}
		},
	}
	capture, err := newTestCollector(src, 300*time.Millisecond).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, capture.ErrorCount)
	assert.InDelta(t, 100, len(capture.Samples), 1)
	for _, v := range capture.Samples {
		require.Equal(t, 42, v)
	}
}

func TestRunReadFailureIsFatal(t *testing.T) {
	src := &scriptedSource{
		clock:  newFakeClock(),
		period: time.Millisecond,
		next:   constant(1),
		readErr: func(i int) error {
			if i == 50 {
				return errors.New("device removed")
			}
			return nil
		},
	}
	capture, err := newTestCollector(src, time.Second).Run(context.Background())
	assert.Nil(t, capture)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceFailed))
	assert.Contains(t, err.Error(), "device removed")
	assert.Equal(t, 0, src.openPorts)
}

func TestRunReopenFailureIsFatal(t *testing.T) {
	src := &scriptedSource{
		clock:  newFakeClock(),
		period: time.Millisecond,
		next:   constant(9999),
		failOpen: func(n int) error {
			if n > 1 {
				return errors.New("no such device")
			}
			return nil
		},
	}
	_, err := newTestCollector(src, time.Second).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSourceFailed))
	assert.Equal(t, 2, src.opens)
}

func TestRunOpenFailureIsFatal(t *testing.T) {
	src := &scriptedSource{
		clock:    newFakeClock(),
		next:     constant(1),
		failOpen: func(int) error { return errors.New("permission denied") },
	}
	_, err := newTestCollector(src, time.Second).Run(context.Background())
	assert.True(t, errors.Is(err, ErrSourceFailed))
}

func TestRunRejectsNonPositiveDuration(t *testing.T) {
	src := &scriptedSource{clock: newFakeClock(), next: constant(1)}
	_, err := newTestCollector(src, 0).Run(context.Background())
	assert.True(t, errors.Is(err, adc.ErrInvalidDuration))
	assert.Equal(t, 0, src.opens, "nothing is opened for a rejected duration")
}

func TestRunCancelDiscardsBuffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &scriptedSource{
		clock:  newFakeClock(),
		period: time.Millisecond,
		next:   constant(7),
		onRead: func(i int) {
			if i == 300 {
				cancel()
			}
		},
	}
	capture, err := newTestCollector(src, time.Second).Run(ctx)
	assert.Nil(t, capture)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 0, src.openPorts, "cancellation closes the port")
}

// blockingOpener hands out a port whose reads wait for release
type blockingOpener struct {
	opened  chan struct{}
	release chan struct{}
}

func (b *blockingOpener) Name() string { return "/dev/block0" }

func (b *blockingOpener) Open() (io.ReadCloser, error) {
	close(b.opened)
	return &blockingPort{release: b.release}, nil
}

type blockingPort struct{ release chan struct{} }

func (p *blockingPort) Read([]byte) (int, error) {
	<-p.release
	return 0, io.EOF
}

func (p *blockingPort) Close() error { return nil }

func TestRunRejectsConcurrentSession(t *testing.T) {
	opener := &blockingOpener{opened: make(chan struct{}), release: make(chan struct{})}
	c := NewCollector(config.AcquisitionConfig{Duration: time.Hour, MaxSessionFactor: 1}, opener, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Run(ctx)
		done <- err
	}()

	<-opener.opened
	assert.True(t, c.Running())

	_, err := c.Run(context.Background())
	assert.True(t, errors.Is(err, ErrSessionActive))

	cancel()
	close(opener.release)
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(5 * time.Second):
		t.Fatal("first session did not stop after cancellation")
	}
	assert.False(t, c.Running())
}
