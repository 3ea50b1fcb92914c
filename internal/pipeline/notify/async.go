package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"matchflow/internal/pipeline/models"
)

var (
	// ErrBufferFull is returned when the async buffer has no room; the request is dropped.
	ErrBufferFull = errors.New("notification buffer full")
	// ErrSinkClosed is returned for requests submitted after Close.
	ErrSinkClosed = errors.New("notification sink closed")
)

// AsyncSink decouples callers from a slow transport with a bounded buffer
// drained by a single worker. When the buffer is full the request is dropped
// and counted; the caller never blocks.
type AsyncSink struct {
	inner   Sink
	queue   chan models.NotificationRequest
	timeout time.Duration
	logger  *slog.Logger
	onDrop  func()
	onError func(error)

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64
}

type AsyncOption func(*AsyncSink)

func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(s *AsyncSink) {
		s.logger = logger
	}
}

// WithDeliveryTimeout bounds each delivery attempt on the inner sink.
func WithDeliveryTimeout(d time.Duration) AsyncOption {
	return func(s *AsyncSink) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDropHook is called once per dropped request.
func WithDropHook(fn func()) AsyncOption {
	return func(s *AsyncSink) {
		s.onDrop = fn
	}
}

// WithErrorHook is called once per failed delivery.
func WithErrorHook(fn func(error)) AsyncOption {
	return func(s *AsyncSink) {
		s.onError = fn
	}
}

// NewAsyncSink starts the delivery worker. Capacity defaults to 1024.
func NewAsyncSink(inner Sink, capacity int, opts ...AsyncOption) *AsyncSink {
	if capacity <= 0 {
		capacity = 1024
	}
	s := &AsyncSink{
		inner:   inner,
		queue:   make(chan models.NotificationRequest, capacity),
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	go s.run()
	return s
}

// Notify enqueues req without blocking.
func (s *AsyncSink) Notify(ctx context.Context, req models.NotificationRequest) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	select {
	case s.queue <- req:
		return nil
	default:
		s.dropped.Add(1)
		if s.onDrop != nil {
			s.onDrop()
		}
		s.logger.WarnContext(ctx, "notification dropped",
			"match_id", req.MatchID,
			"new_status", req.NewStatus,
		)
		return ErrBufferFull
	}
}

// Dropped returns the total number of dropped requests.
func (s *AsyncSink) Dropped() int64 {
	return s.dropped.Load()
}

// Close stops accepting requests and waits for the buffer to drain or ctx to end.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for req := range s.queue {
		s.deliver(req)
	}
}

func (s *AsyncSink) deliver(req models.NotificationRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.inner.Notify(ctx, req); err != nil {
		if s.onError != nil {
			s.onError(err)
		}
		s.logger.WarnContext(ctx, "notification_failed",
			"match_id", req.MatchID,
			"new_status", req.NewStatus,
			"error", err,
		)
	}
}
