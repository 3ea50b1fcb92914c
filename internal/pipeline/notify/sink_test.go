package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
	"matchflow/pkg/platform/circuit"
)

func request() models.NotificationRequest {
	matchID := id.MatchID(uuid.New())
	return models.NotificationRequest{
		MatchID:              matchID,
		CandidateDisplayName: "Yuki Sato",
		NewStatus:            status.Interview,
		PreviousStatus:       status.DocumentPassed,
		DetailLinkID:         matchID.String(),
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, sink.Notify(context.Background(), request()))
	assert.Contains(t, buf.String(), "notification_requested")
	assert.Contains(t, buf.String(), "Yuki Sato")
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	req := request()
	require.NoError(t, sink.Notify(context.Background(), req))

	got := sink.Requests()
	require.Len(t, got, 1)
	assert.Equal(t, req.MatchID, got[0].MatchID)
	got[0].Notes = "mutated"
	assert.Empty(t, sink.Requests()[0].Notes)
}

// blockingSink blocks every delivery until release is closed.
type blockingSink struct {
	started   chan struct{}
	release   chan struct{}
	delivered atomic.Int32
}

func newBlockingSink() *blockingSink {
	return &blockingSink{started: make(chan struct{}, 16), release: make(chan struct{})}
}

func (s *blockingSink) Notify(ctx context.Context, _ models.NotificationRequest) error {
	s.started <- struct{}{}
	select {
	case <-s.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.delivered.Add(1)
	return nil
}

func TestAsyncSink(t *testing.T) {
	t.Run("drops when the buffer is full and never blocks", func(t *testing.T) {
		inner := newBlockingSink()
		var drops atomic.Int32
		sink := NewAsyncSink(inner, 1, WithDropHook(func() { drops.Add(1) }))

		require.NoError(t, sink.Notify(context.Background(), request()))
		<-inner.started // worker holds the first request

		require.NoError(t, sink.Notify(context.Background(), request()))
		err := sink.Notify(context.Background(), request())
		assert.ErrorIs(t, err, ErrBufferFull)
		assert.Equal(t, int64(1), sink.Dropped())
		assert.Equal(t, int32(1), drops.Load())

		close(inner.release)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, sink.Close(ctx))
		assert.Equal(t, int32(2), inner.delivered.Load())
	})

	t.Run("reports delivery failures through the hook", func(t *testing.T) {
		failures := make(chan error, 1)
		inner := SinkFunc(func(context.Context, models.NotificationRequest) error {
			return errors.New("slack down")
		})
		sink := NewAsyncSink(inner, 4, WithErrorHook(func(err error) { failures <- err }))

		require.NoError(t, sink.Notify(context.Background(), request()))
		select {
		case err := <-failures:
			assert.EqualError(t, err, "slack down")
		case <-time.After(5 * time.Second):
			t.Fatal("expected delivery failure")
		}
		require.NoError(t, sink.Close(context.Background()))
	})

	t.Run("rejects requests after close", func(t *testing.T) {
		sink := NewAsyncSink(NewMemorySink(), 1)
		require.NoError(t, sink.Close(context.Background()))
		assert.ErrorIs(t, sink.Notify(context.Background(), request()), ErrSinkClosed)
		require.NoError(t, sink.Close(context.Background()), "close is idempotent")
	})
}

func TestBreakerSink(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	primary := SinkFunc(func(context.Context, models.NotificationRequest) error {
		if failing.Load() {
			return errors.New("transport unavailable")
		}
		return nil
	})
	fallback := NewMemorySink()
	var states []bool
	sink := NewBreakerSink(primary, fallback,
		circuit.New("notifications", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(2)),
		WithStateHook(func(open bool) { states = append(states, open) }),
	)
	ctx := context.Background()

	// First failure surfaces; circuit still closed.
	assert.Error(t, sink.Notify(ctx, request()))
	assert.Zero(t, fallback.Len())

	// Second failure opens the circuit and routes to the fallback.
	assert.NoError(t, sink.Notify(ctx, request()))
	assert.Equal(t, 1, fallback.Len())
	assert.Equal(t, []bool{true}, states)

	// While open, failures keep going to the fallback.
	assert.NoError(t, sink.Notify(ctx, request()))
	assert.Equal(t, 2, fallback.Len())

	// Recovery: two primary successes close the circuit.
	failing.Store(false)
	assert.NoError(t, sink.Notify(ctx, request()))
	assert.NoError(t, sink.Notify(ctx, request()))
	assert.Equal(t, []bool{true, false}, states)
	assert.Equal(t, 2, fallback.Len())
}
