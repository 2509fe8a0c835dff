package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

type Handler func(ctx context.Context, event Event) error

// Subscriber consumes one or more streams through a single consumer group.
// Messages whose handler fails are left pending and redelivered.
type Subscriber struct {
	client        *redis.Client
	group         string
	consumer      string
	streams       []string
	handler       Handler
	batchSize     int64
	blockDuration time.Duration
}

type SubscriberConfig struct {
	Group         string
	Consumer      string
	Streams       []string
	Handler       Handler
	BatchSize     int64
	BlockDuration time.Duration
}

func NewSubscriber(client *redis.Client, config SubscriberConfig) *Subscriber {
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}
	if config.BlockDuration == 0 {
		config.BlockDuration = 5 * time.Second
	}

	return &Subscriber{
		client:        client,
		group:         config.Group,
		consumer:      config.Consumer,
		streams:       config.Streams,
		handler:       config.Handler,
		batchSize:     config.BatchSize,
		blockDuration: config.BlockDuration,
	}
}

// Start blocks until ctx is cancelled.
func (s *Subscriber) Start(ctx context.Context) error {
	for _, stream := range s.streams {
		err := s.client.XGroupCreateMkStream(ctx, stream, s.group, "$").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return fmt.Errorf("failed to create consumer group on %s: %w", stream, err)
		}
	}

	log.Printf("Subscriber started: streams=%s, group=%s, consumer=%s", strings.Join(s.streams, ","), s.group, s.consumer)

	for {
		select {
		case <-ctx.Done():
			log.Printf("Subscriber stopping: %s", strings.Join(s.streams, ","))
			return ctx.Err()
		default:
			if err := s.readMessages(ctx); err != nil && ctx.Err() == nil {
				log.Printf("Error reading messages: %v", err)
				time.Sleep(time.Second)
			}
		}
	}
}

func (s *Subscriber) readMessages(ctx context.Context) error {
	ids := make([]string, len(s.streams))
	for i := range ids {
		ids[i] = ">"
	}
	streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  append(append([]string{}, s.streams...), ids...),
		Count:    s.batchSize,
		Block:    s.blockDuration,
	}).Result()

	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read from streams: %w", err)
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			event, err := decodeMessage(message)
			if err == nil {
				err = s.handler(ctx, event)
			}
			if err != nil {
				log.Printf("Failed to process message %s on %s: %v", message.ID, stream.Stream, err)
				continue
			}
			if err := s.client.XAck(ctx, stream.Stream, s.group, message.ID).Err(); err != nil {
				log.Printf("Failed to ACK message %s: %v", message.ID, err)
			}
		}
	}

	return nil
}

func decodeMessage(message redis.XMessage) (Event, error) {
	var event Event
	eventData, ok := message.Values["event"].(string)
	if !ok {
		return event, fmt.Errorf("invalid message format")
	}
	if err := json.Unmarshal([]byte(eventData), &event); err != nil {
		return event, fmt.Errorf("failed to unmarshal event: %w", err)
	}
	return event, nil
}
