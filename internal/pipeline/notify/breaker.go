package notify

import (
	"context"
	"log/slog"

	"matchflow/internal/pipeline/models"
	"matchflow/pkg/platform/circuit"
)

// BreakerSink guards a primary transport with a circuit breaker. Failed
// deliveries are handed to the fallback sink once the circuit is open; the
// primary keeps being tried so consecutive successes can close it again.
type BreakerSink struct {
	primary  Sink
	fallback Sink
	breaker  *circuit.Breaker
	logger   *slog.Logger
	onState  func(open bool)
}

type BreakerOption func(*BreakerSink)

func WithBreakerLogger(logger *slog.Logger) BreakerOption {
	return func(s *BreakerSink) {
		s.logger = logger
	}
}

// WithStateHook is called whenever the circuit opens or closes.
func WithStateHook(fn func(open bool)) BreakerOption {
	return func(s *BreakerSink) {
		s.onState = fn
	}
}

func NewBreakerSink(primary, fallback Sink, breaker *circuit.Breaker, opts ...BreakerOption) *BreakerSink {
	s := &BreakerSink{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *BreakerSink) Notify(ctx context.Context, req models.NotificationRequest) error {
	err := s.primary.Notify(ctx, req)
	if err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.InfoContext(ctx, "notification circuit closed", "breaker", s.breaker.Name())
			s.stateChanged(false)
		}
		return nil
	}

	useFallback, change := s.breaker.RecordFailure()
	if change.Opened {
		s.logger.WarnContext(ctx, "notification circuit opened", "breaker", s.breaker.Name(), "error", err)
		s.stateChanged(true)
	}
	if useFallback && s.fallback != nil {
		return s.fallback.Notify(ctx, req)
	}
	return err
}

// Open reports whether the circuit currently routes failures to the fallback.
func (s *BreakerSink) Open() bool {
	return s.breaker.IsOpen()
}

func (s *BreakerSink) stateChanged(open bool) {
	if s.onState != nil {
		s.onState(open)
	}
}
