package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"drgex/internal/adc"
	"drgex/internal/config"
	"drgex/internal/frame"

	"go.uber.org/zap"
)

var (
	// ErrSessionActive is returned when Run is called while a session is in progress.
	ErrSessionActive = errors.New("acquisition session already running")

	// ErrSourceFailed wraps fatal byte-stream failures such as a removed device.
	ErrSourceFailed = errors.New("byte-stream source failed")
)

// Opener opens the byte-stream source. Every call must open the same port.
type Opener interface {
	Open() (io.ReadCloser, error)
	Name() string
}

// Capture is the result of a finished session
type Capture struct {
	Samples    []int         // In-range readings from the last error-free window
	Duration   time.Duration // Target window length
	ErrorCount int           // Out-of-range frames seen, each forcing a reset
	Complete   bool          // False when the hard session limit ended an unfinished window
	StartedAt  time.Time     // Start of the window the samples belong to
	Port       string
}

// SampleRate returns the exact effective rate of the capture.
func (c *Capture) SampleRate() (float64, error) {
	return adc.SampleRate(len(c.Samples), c.Duration)
}

// DisplayRate returns the truncated rate, or zero for an empty capture.
func (c *Capture) DisplayRate() int {
	rate, err := c.SampleRate()
	if err != nil {
		return 0
	}
	return adc.DisplayRate(rate)
}

// Collector runs fixed-duration capture sessions against one source
type Collector struct {
	config  config.AcquisitionConfig
	opener  Opener
	logger  *zap.Logger
	running atomic.Bool

	now   func() time.Time
	sleep func(context.Context, time.Duration)
}

// NewCollector returns a collector reading from opener. A nil logger
// disables logging.
func NewCollector(cfg config.AcquisitionConfig, opener Opener, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		config: cfg,
		opener: opener,
		logger: logger.Named("collector"),
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Running reports whether a session is in progress.
func (c *Collector) Running() bool {
	return c.running.Load()
}

// Run captures one error-free window of the configured duration. Any
// out-of-range frame discards the buffer, reopens the port and restarts the
// window. Cancelling ctx closes the port and discards the partial buffer.
func (c *Collector) Run(ctx context.Context) (*Capture, error) {
	if c.config.Duration <= 0 {
		return nil, fmt.Errorf("%w: %v", adc.ErrInvalidDuration, c.config.Duration)
	}
	if !c.running.CompareAndSwap(false, true) {
		return nil, ErrSessionActive
	}
	defer c.running.Store(false)

	port, err := c.opener.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSourceFailed, err)
	}

	s := &session{
		collector: c,
		port:      port,
		samples:   make([]int, 0, 4096),
	}
	defer s.close()

	return s.run(ctx)
}

type session struct {
	collector   *Collector
	port        io.ReadCloser
	samples     []int
	errorCount  int
	windowStart time.Time
	frame       [frame.Size]byte
}

func (s *session) run(ctx context.Context) (*Capture, error) {
	c := s.collector
	duration := c.config.Duration
	factor := max(c.config.MaxSessionFactor, 1)

	started := c.now()
	deadline := started.Add(time.Duration(float64(duration) * factor))
	s.windowStart = started

	c.logger.Info("Acquisition started",
		zap.String("port", c.opener.Name()),
		zap.Duration("duration", duration),
		zap.Time("deadline", deadline))

	complete := false
	for {
		if err := ctx.Err(); err != nil {
			c.logger.Warn("Acquisition cancelled, discarding partial buffer",
				zap.Int("samples", len(s.samples)))
			return nil, fmt.Errorf("acquisition cancelled: %w", err)
		}

		now := c.now()
		if now.Sub(s.windowStart) >= duration {
			complete = true
			break
		}
		if !now.Before(deadline) {
			c.logger.Warn("Session limit reached before an error-free window completed",
				zap.Int("errors", s.errorCount),
				zap.Int("discarded", len(s.samples)))
			s.samples = s.samples[:0]
			break
		}

		n, err := s.readFrame()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrSourceFailed, c.opener.Name(), err)
		}

		res := frame.Decode(s.frame[:n])
		switch res.Status {
		case frame.StatusOK:
			s.samples = append(s.samples, res.Value)
		case frame.StatusOutOfRange:
			s.errorCount++
			c.logger.Warn("ADC value out of range, resynchronizing",
				zap.Int("value", res.Value),
				zap.Int("errors", s.errorCount),
				zap.Int("discarded", len(s.samples)))
			if err := s.reopen(ctx); err != nil {
				return nil, err
			}
			s.samples = s.samples[:0]
			s.windowStart = c.now()
		case frame.StatusIncomplete:
			// Short read; try again
		}
	}

	capture := &Capture{
		Samples:    s.samples,
		Duration:   duration,
		ErrorCount: s.errorCount,
		Complete:   complete,
		StartedAt:  s.windowStart,
		Port:       c.opener.Name(),
	}

	c.logger.Info("Acquisition finished",
		zap.Int("samples", len(capture.Samples)),
		zap.Int("rate", capture.DisplayRate()),
		zap.Int("errors", capture.ErrorCount),
		zap.Bool("complete", capture.Complete))

	return capture, nil
}

// readFrame fills s.frame. A read returning no data is a timeout and ends
// the attempt; whatever arrived so far is dropped by the decoder.
func (s *session) readFrame() (int, error) {
	n := 0
	for n < frame.Size {
		m, err := s.port.Read(s.frame[n:])
		n += m
		if err != nil {
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, err
		}
		if m == 0 {
			break
		}
	}
	return n, nil
}

func (s *session) reopen(ctx context.Context) error {
	c := s.collector
	s.close()

	c.sleep(ctx, c.config.ReopenDelay)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("acquisition cancelled: %w", err)
	}

	port, err := c.opener.Open()
	if err != nil {
		return fmt.Errorf("%w: reopen: %w", ErrSourceFailed, err)
	}
	s.port = port
	c.logger.Debug("Port reopened", zap.String("port", c.opener.Name()))
	return nil
}

func (s *session) close() {
	if s.port == nil {
		return
	}
	if err := s.port.Close(); err != nil {
		s.collector.logger.Debug("Port close error", zap.Error(err))
	}
	s.port = nil
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
