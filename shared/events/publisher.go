package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultMaxLen caps each stream; trimming is approximate.
const defaultMaxLen = 10000

type Publisher struct {
	client *redis.Client
	maxLen int64
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client, maxLen: defaultMaxLen}
}

func (p *Publisher) Publish(ctx context.Context, stream, eventType string, data any) error {
	eventJSON, err := encodeEvent(eventType, data, time.Now().UTC())
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"event": eventJSON,
		},
	}
	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", eventType, stream, err)
	}
	return nil
}

func encodeEvent(eventType string, data any, at time.Time) ([]byte, error) {
	eventJSON, err := json.Marshal(Event{Type: eventType, Timestamp: at, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}
	return eventJSON, nil
}
