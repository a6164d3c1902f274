package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

const (
	backendRedis         = "redis"
	projectChannelPrefix = "collab:project:" // Pub/Sub channel per project: collab:project:{project_id}
)

// RedisBroker publishes project events on Redis Pub/Sub. Every subscription
// holds its own Pub/Sub connection; Redis delivers messages on a channel in
// publish order.
type RedisBroker struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBroker(client *redis.Client, logger *zap.Logger) *RedisBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBroker{client: client, logger: logger}
}

func (b *RedisBroker) Name() string { return backendRedis }

func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Publish(ctx, channelName(projectChannelPrefix, ev.ProjectID), data).Err(); err != nil {
		publishFailures.WithLabelValues(backendRedis).Inc()
		return domain.Unavailable(fmt.Errorf("failed to publish event: %w", err))
	}

	eventsPublished.WithLabelValues(backendRedis, string(ev.Type)).Inc()
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, projectID string, h Handler) (*Subscription, error) {
	channel := channelName(projectChannelPrefix, projectID)
	pubsub := b.client.Subscribe(ctx, channel)

	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, domain.Unavailable(fmt.Errorf("failed to subscribe to %s: %w", channel, err))
	}

	sub := newSubscription(projectID)
	messages := pubsub.Channel()

	go func() {
		for msg := range messages {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				eventsDropped.WithLabelValues(backendRedis, "decode").Inc()
				b.logger.Warn("failed to decode project event",
					zap.String("channel", msg.Channel),
					zap.Error(err),
				)
				continue
			}
			sub.deliver(h, ev, backendRedis)
		}
	}()

	sub.release = func() error {
		activeSubscriptions.WithLabelValues(backendRedis).Dec()
		return pubsub.Close()
	}
	activeSubscriptions.WithLabelValues(backendRedis).Inc()
	return sub, nil
}
