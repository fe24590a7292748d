package broker

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rmacdonaldsmith/topicbus/internal/routingtable"
)

// ErrReceiverGone is returned when delivering to a handle whose owner has exited
var ErrReceiverGone = errors.New("subscriber is gone")

// Delivery is a published payload on its way to a subscriber
type Delivery struct {
	Topic   string
	Message string
}

// Handle is the in-process endpoint through which the broker pushes
// deliveries to exactly one connection. The connection owns the handle and
// closes it when it stops reading deliveries.
type Handle struct {
	id         string
	deliveries chan Delivery
	gone       chan struct{}
	goneOnce   sync.Once
}

// NewHandle creates a handle whose delivery channel holds up to capacity
// pending deliveries
func NewHandle(capacity int) *Handle {
	if capacity < 0 {
		capacity = 0
	}
	return &Handle{
		id:         uuid.NewString(),
		deliveries: make(chan Delivery, capacity),
		gone:       make(chan struct{}),
	}
}

// ID returns the unique identifier of this handle
func (h *Handle) ID() string {
	return h.id
}

// Deliveries returns the channel the owner reads deliveries from
func (h *Handle) Deliveries() <-chan Delivery {
	return h.deliveries
}

// Close marks the receiver as gone. Pending and future deliveries fail with
// ErrReceiverGone instead of blocking. Safe to call multiple times.
func (h *Handle) Close() {
	h.goneOnce.Do(func() {
		close(h.gone)
	})
}

// deliver blocks until the delivery is queued, the receiver is gone or ctx ends
func (h *Handle) deliver(ctx context.Context, d Delivery) error {
	select {
	case <-h.gone:
		return ErrReceiverGone
	default:
	}

	select {
	case h.deliveries <- d:
		return nil
	case <-h.gone:
		return ErrReceiverGone
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Verify that Handle can be bound in the routing table at compile time
var _ routingtable.Subscriber = (*Handle)(nil)
