package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchflow/internal/pipeline/models"
	"matchflow/internal/pipeline/notify"
	"matchflow/internal/pipeline/status"
	id "matchflow/pkg/domain"
	"matchflow/pkg/platform/circuit"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func notification() models.NotificationRequest {
	return models.NotificationRequest{
		MatchID:        id.MatchID(uuid.New()),
		NewStatus:      status.Offer,
		PreviousStatus: status.Interview,
	}
}

func TestCloseDrainsNotificationQueue(t *testing.T) {
	var delivered atomic.Int32
	slow := notify.SinkFunc(func(context.Context, models.NotificationRequest) error {
		time.Sleep(20 * time.Millisecond)
		delivered.Add(1)
		return nil
	})
	deps := &infra{async: notify.NewAsyncSink(slow, 8)}
	for i := 0; i < 3; i++ {
		require.NoError(t, deps.async.Notify(context.Background(), notification()))
	}

	deps.close(discardLogger(), time.Second)

	assert.Equal(t, int32(3), delivered.Load())
	assert.ErrorIs(t, deps.async.Notify(context.Background(), notification()), notify.ErrSinkClosed)
}

func TestHealthReportsNotificationState(t *testing.T) {
	failing := notify.SinkFunc(func(context.Context, models.NotificationRequest) error {
		return errors.New("broker unavailable")
	})
	deps := &infra{
		storeKind: "memory",
		breaker: notify.NewBreakerSink(failing, notify.NewLogSink(discardLogger()),
			circuit.New("notifications", circuit.WithFailureThreshold(1)),
			notify.WithBreakerLogger(discardLogger())),
	}
	deps.async = notify.NewAsyncSink(deps.breaker, 4)
	defer deps.close(discardLogger(), time.Second)

	health := func() map[string]string {
		rec := httptest.NewRecorder()
		healthHandler(deps)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		return body
	}

	body := health()
	assert.Equal(t, "closed", body["notification_circuit"])
	assert.Equal(t, "0", body["notifications_dropped"])

	require.NoError(t, deps.breaker.Notify(context.Background(), notification()))
	assert.Equal(t, "open", health()["notification_circuit"])
}
