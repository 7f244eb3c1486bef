package ingress

import (
	"context"
	"sync"

	"github.com/quizarena/progression/internal/domain/model"
	"github.com/quizarena/progression/pkg/logger"
)

// Transport is a persistent push connection delivering wire events.
// Connected reports liveness; while false the poller takes over.
type Transport interface {
	// Events returns the inbound frame stream. The channel is closed when
	// the transport is shut down for good.
	Events() <-chan WireEvent

	// Connected reports whether the push connection is currently live.
	Connected() bool
}

// ChannelTransport is an in-process Transport fed by Inject. It stands in
// for a socket connection: the HTTP ingest surface and tests push frames
// into it, and Disconnect/Reconnect model link failures.
type ChannelTransport struct {
	ch chan WireEvent

	mu        sync.RWMutex
	connected bool
	closed    bool
}

// NewChannelTransport creates a connected transport with the given buffer.
func NewChannelTransport(buffer int) *ChannelTransport {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelTransport{
		ch:        make(chan WireEvent, buffer),
		connected: true,
	}
}

// Events implements Transport.
func (t *ChannelTransport) Events() <-chan WireEvent { return t.ch }

// Connected implements Transport.
func (t *ChannelTransport) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

// Inject delivers a frame if the transport is connected. Returns false if
// the frame was dropped (disconnected, closed, or buffer full).
func (t *ChannelTransport) Inject(w WireEvent) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !t.connected || t.closed {
		return false
	}
	select {
	case t.ch <- w:
		return true
	default:
		return false
	}
}

// Disconnect simulates losing the push connection.
func (t *ChannelTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
}

// Reconnect restores the push connection.
func (t *ChannelTransport) Reconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.connected = true
	}
}

// Close shuts the transport down permanently.
func (t *ChannelTransport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.connected = false
	close(t.ch)
}

// Consumer drains a Transport into the ingress.
type Consumer struct {
	transport Transport
	ingress   *Ingress
	log       logger.Logger
	done      chan struct{}
}

// NewConsumer creates a consumer for transport.
func NewConsumer(transport Transport, in *Ingress) *Consumer {
	return &Consumer{
		transport: transport,
		ingress:   in,
		log:       logger.Get().Named("push-consumer"),
		done:      make(chan struct{}),
	}
}

// Run consumes frames until ctx is canceled or the transport closes.
// A late-arriving frame after a reconnect is still accepted as long as its
// sequence is newer; the store decides, not the transport.
func (c *Consumer) Run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case w, ok := <-c.transport.Events():
			if !ok {
				c.log.Info(ctx, "push transport closed")
				return
			}
			ev, err := Normalize(w, model.SourcePush)
			if err != nil {
				c.log.Warn(ctx, "malformed push frame dropped",
					logger.String("type", w.Type),
					logger.Error(err),
				)
				continue
			}
			if _, _, err := c.ingress.Accept(ctx, ev); err != nil {
				c.log.Error(ctx, "push event apply failed",
					logger.String("eventID", ev.ID),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when the consumer loop exits.
func (c *Consumer) Done() <-chan struct{} { return c.done }
