// Package session serves one client connection.
//
// A Handler multiplexes two sources in a single loop: messages decoded from
// the peer by a dedicated reader goroutine, and deliveries pushed by the
// broker through the session's Handle. Either source can be serviced while
// the other is idle, and neither can starve the other.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/rmacdonaldsmith/topicbus/internal/broker"
	"github.com/rmacdonaldsmith/topicbus/internal/transport"
	"github.com/rmacdonaldsmith/topicbus/pkg/protocol"
	"go.uber.org/zap"
)

// errClosed ends the loop without reporting an error to the caller
var errClosed = errors.New("session closed")

// Router is the part of the broker a session talks to
type Router interface {
	Commands() chan<- broker.Command
	Done() <-chan struct{}
}

type readResult struct {
	msg protocol.Message
	err error
}

// Handler owns one connection for its whole life
type Handler struct {
	conn    *transport.Conn
	router  Router
	handle  *broker.Handle
	inbound chan readResult
	logger  *zap.Logger

	// Topics this connection consumed, touched only by Serve
	topics map[string]struct{}
}

// New creates a handler for an accepted connection. Call Serve to run it.
func New(conn *transport.Conn, router Router, config Config, logger *zap.Logger) (*Handler, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if router == nil {
		return nil, errors.New("router cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}
	config.SetDefaults()

	if logger == nil {
		logger = zap.NewNop()
	}

	handle := broker.NewHandle(config.BufferSize)
	return &Handler{
		conn:    conn,
		router:  router,
		handle:  handle,
		inbound: make(chan readResult, config.BufferSize),
		logger: logger.With(
			zap.String("session", handle.ID()),
			zap.Stringer("remote", conn.RemoteAddr())),
		topics: make(map[string]struct{}),
	}, nil
}

// ID returns the session's subscriber ID as seen by the broker
func (h *Handler) ID() string {
	return h.handle.ID()
}

// Serve runs the session until the peer disconnects, the connection fails,
// the broker stops or ctx is cancelled. It always releases the session's
// topics and closes the connection before returning.
//
// A clean disconnect or a cancelled ctx returns nil. A stopped broker
// returns broker.ErrBrokerStopped.
func (h *Handler) Serve(ctx context.Context) error {
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go h.readLoop(stop, readerDone)

	h.logger.Debug("Session started")

	err := h.loop(ctx)

	h.handle.Close()
	h.release()
	if cerr := h.conn.Close(); cerr != nil {
		h.logger.Debug("Error closing connection", zap.Error(cerr))
	}
	close(stop)
	<-readerDone

	if errors.Is(err, errClosed) {
		err = nil
	}
	h.logger.Debug("Session ended", zap.Int("topics", len(h.topics)), zap.Error(err))
	return err
}

func (h *Handler) loop(ctx context.Context) error {
	for {
		select {
		case d := <-h.handle.Deliveries():
			if err := h.forward(d); err != nil {
				return err
			}

		case res := <-h.inbound:
			if err := h.dispatch(ctx, res); err != nil {
				return err
			}

		case <-h.router.Done():
			return broker.ErrBrokerStopped

		case <-ctx.Done():
			return errClosed
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, res readResult) error {
	if res.err != nil {
		switch {
		case errors.Is(res.err, io.EOF):
			h.logger.Debug("Peer closed connection")
			return errClosed
		case transport.IsDecodeError(res.err):
			h.logger.Warn("Dropping undecodable message", zap.Error(res.err))
			return nil
		default:
			return fmt.Errorf("failed to read from peer: %w", res.err)
		}
	}

	switch msg := res.msg.(type) {
	case protocol.Consume:
		h.topics[msg.Topic] = struct{}{}
		return h.submit(ctx, broker.Subscribe{Topic: msg.Topic, Subscriber: h.handle})

	case protocol.Publish:
		return h.submit(ctx, broker.Publish{Topic: msg.Topic, Message: msg.Message})

	default:
		h.logger.Debug("Ignoring message", zap.Stringer("kind", msg.Kind()))
		return nil
	}
}

// submit waits for room in the broker's mailbox. Deliveries keep flowing to
// the peer meanwhile, so the broker is never stuck sending to this session
// while this session is stuck sending to the broker.
func (h *Handler) submit(ctx context.Context, cmd broker.Command) error {
	for {
		select {
		case h.router.Commands() <- cmd:
			return nil

		case d := <-h.handle.Deliveries():
			if err := h.forward(d); err != nil {
				return err
			}

		case <-h.router.Done():
			return broker.ErrBrokerStopped

		case <-ctx.Done():
			return errClosed
		}
	}
}

func (h *Handler) forward(d broker.Delivery) error {
	if err := h.conn.WriteMessage(protocol.Deliver{Topic: d.Topic, Message: d.Message}); err != nil {
		return fmt.Errorf("failed to forward delivery on %q: %w", d.Topic, err)
	}
	return nil
}

// release hands every consumed topic back to the broker. The handle is
// already closed, so the broker cannot block on this session any more.
func (h *Handler) release() {
	if len(h.topics) == 0 {
		return
	}

	cmd := broker.Unsubscribe{
		Topics: slices.Sorted(maps.Keys(h.topics)),
		Owner:  h.handle,
	}

	select {
	case h.router.Commands() <- cmd:
	case <-h.router.Done():
		h.logger.Debug("Broker gone, skipping release")
	}
}

func (h *Handler) readLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		msg, err := h.conn.ReadMessage()

		select {
		case h.inbound <- readResult{msg: msg, err: err}:
		case <-stop:
			return
		}

		if err != nil && !transport.IsDecodeError(err) {
			return
		}
	}
}
