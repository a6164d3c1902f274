package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

const (
	backendMemory        = "memory"
	defaultMemoryBacklog = 64
)

// MemoryBroker fans events out inside one process. Each subscription owns a
// bounded queue drained by its own goroutine; when the queue is full the
// event is dropped for that subscriber only.
type MemoryBroker struct {
	mu      sync.RWMutex
	subs    map[string]map[string]*memorySub
	backlog int
	logger  *zap.Logger
}

type memorySub struct {
	sub   *Subscription
	queue chan Event
}

func NewMemoryBroker(logger *zap.Logger, backlog int) *MemoryBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backlog <= 0 {
		backlog = defaultMemoryBacklog
	}
	return &MemoryBroker{
		subs:    make(map[string]map[string]*memorySub),
		backlog: backlog,
		logger:  logger,
	}
}

func (b *MemoryBroker) Name() string { return backendMemory }

func (b *MemoryBroker) Ping(context.Context) error { return nil }

func (b *MemoryBroker) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ms := range b.subs[ev.ProjectID] {
		select {
		case ms.queue <- ev:
		default:
			eventsDropped.WithLabelValues(backendMemory, "backlog_full").Inc()
			b.logger.Warn("subscriber backlog full, dropping event",
				zap.String("project_id", ev.ProjectID),
				zap.String("subscription_id", ms.sub.ID()),
			)
		}
	}
	eventsPublished.WithLabelValues(backendMemory, string(ev.Type)).Inc()
	return nil
}

func (b *MemoryBroker) Subscribe(_ context.Context, projectID string, h Handler) (*Subscription, error) {
	sub := newSubscription(projectID)
	ms := &memorySub{sub: sub, queue: make(chan Event, b.backlog)}

	b.mu.Lock()
	if b.subs[projectID] == nil {
		b.subs[projectID] = make(map[string]*memorySub)
	}
	b.subs[projectID][sub.ID()] = ms
	b.mu.Unlock()

	go func() {
		for ev := range ms.queue {
			sub.deliver(h, ev, backendMemory)
		}
	}()

	sub.release = func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		if byID := b.subs[projectID]; byID != nil {
			delete(byID, sub.ID())
			if len(byID) == 0 {
				delete(b.subs, projectID)
			}
		}
		close(ms.queue)
		activeSubscriptions.WithLabelValues(backendMemory).Dec()
		return nil
	}
	activeSubscriptions.WithLabelValues(backendMemory).Inc()
	return sub, nil
}

// Subscribers returns the number of open subscriptions for a project.
func (b *MemoryBroker) Subscribers(projectID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[projectID])
}
