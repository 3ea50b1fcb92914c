package notify

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"matchflow/internal/pipeline/models"
)

// KafkaSink produces requests to a topic, keyed by match id so every
// notification for one match lands on the same partition in order.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

func NewKafkaSink(client *kgo.Client, topic string) *KafkaSink {
	return &KafkaSink{client: client, topic: topic}
}

func (s *KafkaSink) Notify(ctx context.Context, req models.NotificationRequest) error {
	payload, err := encode(req)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(req.MatchID.String()),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: "new_status", Value: []byte(req.NewStatus)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}
