package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

const (
	backendNATS          = "nats"
	projectSubjectPrefix = "collab.project."
	defaultFlushTimeout  = 2 * time.Second
)

// NATSBroker publishes project events on core NATS subjects. NATS invokes a
// subscription's callback sequentially, in the order messages arrived.
type NATSBroker struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATSBroker(conn *nats.Conn, logger *zap.Logger) *NATSBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSBroker{conn: conn, logger: logger}
}

func (b *NATSBroker) Name() string { return backendNATS }

func (b *NATSBroker) Ping(ctx context.Context) error {
	if !b.conn.IsConnected() {
		return fmt.Errorf("nats connection status %s", b.conn.Status())
	}
	return b.flush(ctx)
}

func (b *NATSBroker) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.conn.Publish(channelName(projectSubjectPrefix, ev.ProjectID), data); err != nil {
		publishFailures.WithLabelValues(backendNATS).Inc()
		return domain.Unavailable(fmt.Errorf("failed to publish event: %w", err))
	}
	// Round trip so a publish that never reached the server is reported.
	if err := b.flush(ctx); err != nil {
		publishFailures.WithLabelValues(backendNATS).Inc()
		return domain.Unavailable(fmt.Errorf("failed to flush event: %w", err))
	}

	eventsPublished.WithLabelValues(backendNATS, string(ev.Type)).Inc()
	return nil
}

func (b *NATSBroker) Subscribe(ctx context.Context, projectID string, h Handler) (*Subscription, error) {
	sub := newSubscription(projectID)
	subject := channelName(projectSubjectPrefix, projectID)

	ns, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			eventsDropped.WithLabelValues(backendNATS, "decode").Inc()
			b.logger.Warn("failed to decode project event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		sub.deliver(h, ev, backendNATS)
	})
	if err != nil {
		return nil, domain.Unavailable(fmt.Errorf("failed to subscribe to %s: %w", subject, err))
	}
	// Make sure the server registered the interest before returning.
	if err := b.flush(ctx); err != nil {
		_ = ns.Unsubscribe()
		return nil, domain.Unavailable(fmt.Errorf("failed to subscribe to %s: %w", subject, err))
	}

	sub.release = func() error {
		activeSubscriptions.WithLabelValues(backendNATS).Dec()
		return ns.Unsubscribe()
	}
	activeSubscriptions.WithLabelValues(backendNATS).Inc()
	return sub, nil
}

// flush waits for the server to process everything sent so far. The nats
// client requires a deadline, so one is added when ctx has none.
func (b *NATSBroker) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}
	return b.conn.FlushWithContext(ctx)
}
