// Package push implements the per-user pub/sub hub.
//
// The hub is the in-process form of the push channel: inbound transport
// events and locally generated UI events are both published here, and
// consumers (the ingress pipeline, open UI sessions) hold revocable
// subscriptions. Unsubscribing stops delivery to that consumer immediately
// and has no effect on other subscribers of the same user.
package push

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/quizarena/progression/pkg/logger"
	"github.com/quizarena/progression/pkg/metrics"
)

// subscriptionBuffer bounds each subscriber channel. A subscriber that
// falls this far behind starts losing messages rather than blocking
// publishers.
const subscriptionBuffer = 32

// Message is one push-channel frame, scoped to a user.
type Message struct {
	UserID  string
	Kind    string // wire name, e.g. "stats:updated", "unlock:celebration"
	Payload any
}

// Subscription is a revocable handle on a user's message stream.
type Subscription struct {
	ID     string
	UserID string
	C      <-chan Message

	ch     chan Message
	cancel func()
	once   sync.Once
}

// Cancel revokes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Hub fans messages out to per-user subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[string]*Subscription // userID -> subID -> sub
	log  logger.Logger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[string]*Subscription),
		log:  logger.Get().Named("push"),
	}
}

// Subscribe registers a consumer for one user's messages.
func (h *Hub) Subscribe(userID string) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		UserID: userID,
		ch:     make(chan Message, subscriptionBuffer),
	}
	sub.C = sub.ch
	sub.cancel = func() { h.remove(userID, sub.ID) }

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[string]*Subscription)
	}
	h.subs[userID][sub.ID] = sub
	metrics.UpdatePushSubscribers(h.countLocked())
	return sub
}

// Publish delivers msg to every subscriber of msg.UserID. Delivery is
// non-blocking: a full subscriber buffer drops the message for that
// subscriber only.
func (h *Hub) Publish(ctx context.Context, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs[msg.UserID] {
		select {
		case sub.ch <- msg:
		default:
			h.log.Warn(ctx, "slow push subscriber; message dropped",
				logger.String("subID", sub.ID),
				logger.String("userID", msg.UserID),
				logger.String("kind", msg.Kind),
			)
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}

func (h *Hub) countLocked() int {
	n := 0
	for _, m := range h.subs {
		n += len(m)
	}
	return n
}

func (h *Hub) remove(userID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m := h.subs[userID]
	sub, ok := m[subID]
	if !ok {
		return
	}
	delete(m, subID)
	if len(m) == 0 {
		delete(h.subs, userID)
	}
	close(sub.ch)
	metrics.UpdatePushSubscribers(h.countLocked())
}
