// Package notify hands notification requests to the messaging collaborator.
//
// Sinks sit outside the commit: the lifecycle has already persisted the
// transition when Notify is called, and a sink error is never rolled back.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"matchflow/internal/pipeline/models"
)

// Sink accepts one notification request per accepted transition.
type Sink interface {
	Notify(ctx context.Context, req models.NotificationRequest) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, req models.NotificationRequest) error

func (f SinkFunc) Notify(ctx context.Context, req models.NotificationRequest) error {
	return f(ctx, req)
}

// LogSink writes requests to the structured log. It is the default sink when
// no transport is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Notify(ctx context.Context, req models.NotificationRequest) error {
	s.logger.InfoContext(ctx, "notification_requested",
		"match_id", req.MatchID,
		"headline", req.Headline(),
		"previous_status", req.PreviousStatus,
		"new_status", req.NewStatus,
		"recipients", req.RecipientRefs,
		"correction", req.Correction,
		"notifiable", req.NewStatus.Notifiable(),
	)
	return nil
}

// MemorySink records every request. Safe for concurrent use.
type MemorySink struct {
	mu       sync.Mutex
	requests []models.NotificationRequest
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Notify(_ context.Context, req models.NotificationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return nil
}

// Requests returns a copy of everything received so far.
func (s *MemorySink) Requests() []models.NotificationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.NotificationRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func encode(req models.NotificationRequest) ([]byte, error) {
	return json.Marshal(req)
}
