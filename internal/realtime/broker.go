// Package realtime is the per-project change notification channel. Brokers
// fan project events out to every open subscription of that project,
// including the writer's own; consumers that want to ignore their own writes
// compare Project.LastModifiedBy with their user id.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/GoSim-25-26J-441/project-collab/internal/collab/domain"
)

type EventType string

const (
	EventUpdated EventType = "update"
	EventDeleted EventType = "deleted"
	// EventRevoked is never published. It is handed to a subscriber whose
	// access to the project ended while the subscription was open.
	EventRevoked EventType = "revoked"
)

// Event carries the state of a project after a mutation.
// Project is nil for EventDeleted and EventRevoked.
type Event struct {
	Type       EventType       `json:"type"`
	ProjectID  string          `json:"project_id"`
	Project    *domain.Project `json:"project,omitempty"`
	ActorID    string          `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Handler receives events for one subscription. Calls for a subscription are
// sequential and follow publish order.
type Handler func(Event)

// Broker publishes and subscribes to project event streams. Delivery is
// best-effort: a subscriber receives only events published after Subscribe
// returns and must re-fetch current state itself.
type Broker interface {
	Publish(ctx context.Context, ev Event) error
	Subscribe(ctx context.Context, projectID string, h Handler) (*Subscription, error)
	Ping(ctx context.Context) error
	Name() string
}

// Subscription is an open channel to one project's stream. Its owner must
// release it with Unsubscribe.
type Subscription struct {
	id        string
	projectID string
	stopped   atomic.Bool
	once      sync.Once
	release   func() error
	err       error
}

func newSubscription(projectID string) *Subscription {
	return &Subscription{id: uuid.NewString(), projectID: projectID}
}

func (s *Subscription) ID() string        { return s.id }
func (s *Subscription) ProjectID() string { return s.projectID }

// Active reports whether the subscription still delivers events.
func (s *Subscription) Active() bool { return !s.stopped.Load() }

// Unsubscribe releases the subscription. Once it returns the handler is not
// invoked again, apart from a call already in progress. Repeated calls
// return the first result.
func (s *Subscription) Unsubscribe() error {
	s.once.Do(func() {
		s.stopped.Store(true)
		if s.release != nil {
			s.err = s.release()
		}
	})
	return s.err
}

// deliver invokes h unless the subscription was released.
func (s *Subscription) deliver(h Handler, ev Event, backend string) {
	if s.stopped.Load() {
		return
	}
	h(ev)
	eventsDelivered.WithLabelValues(backend).Inc()
}

func channelName(prefix, projectID string) string {
	return prefix + projectID
}
