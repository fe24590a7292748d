// Package client is a Go client for a topicbus broker.
//
// A Client holds one connection. It can consume any number of topics and
// publish to any topic; deliveries for consumed topics arrive on the
// Deliveries channel.
//
//	c, err := client.Dial(ctx, client.Config{Address: "localhost:1234"})
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	c.Consume("news")
//	for d := range c.Deliveries() {
//		fmt.Println(d.Topic, d.Message)
//	}
//
// The broker never acknowledges Consume or Publish, and a Consume for a
// topic another client already holds is silently ignored.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rmacdonaldsmith/topicbus/internal/transport"
	"github.com/rmacdonaldsmith/topicbus/pkg/protocol"
	"go.uber.org/zap"
)

// ErrClosed is returned by operations on a closed client
var ErrClosed = errors.New("client closed")

// Client is a connection to a topicbus broker
type Client struct {
	conn       *transport.Conn
	logger     *zap.Logger
	deliveries chan protocol.Deliver
	closing    chan struct{}
	done       chan struct{}
	closeOnce  sync.Once

	// Set by the read loop before done is closed
	err error
}

// Dial connects to the broker and starts receiving deliveries
func Dial(ctx context.Context, config Config) (*Client, error) {
	config.SetDefaults()

	if config.BufferSize < 0 {
		return nil, fmt.Errorf("BufferSize cannot be negative")
	}

	conn, err := transport.Dial(ctx, config.Address, transport.Config{
		MaxFrameSize: config.MaxFrameSize,
		DialTimeout:  config.DialTimeout,
	})
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:       conn,
		logger:     config.Logger,
		deliveries: make(chan protocol.Deliver, config.BufferSize),
		closing:    make(chan struct{}),
		done:       make(chan struct{}),
	}
	go c.readLoop()

	return c, nil
}

// Consume asks the broker to route topic to this client
func (c *Client) Consume(topic string) error {
	return c.send(protocol.Consume{Topic: topic})
}

// Publish sends message to whichever client consumes topic, if any
func (c *Client) Publish(topic, message string) error {
	return c.send(protocol.Publish{Topic: topic, Message: message})
}

// Ping sends a keepalive. The broker does not answer it.
func (c *Client) Ping() error {
	return c.send(protocol.Ping{})
}

// Deliveries returns the channel of messages for consumed topics. It is
// closed when the connection ends.
func (c *Client) Deliveries() <-chan protocol.Deliver {
	return c.deliveries
}

// Done returns a channel that's closed when the connection has ended
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns why the connection ended. It is nil while the connection is
// open and after a clean close by either side.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Close closes the connection and waits for the receive loop to finish
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		err = c.conn.Close()
	})
	<-c.done
	return err
}

func (c *Client) send(msg protocol.Message) error {
	select {
	case <-c.closing:
		return ErrClosed
	default:
	}

	if err := c.conn.WriteMessage(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Kind(), err)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer close(c.deliveries)

	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			if transport.IsDecodeError(err) {
				c.logger.Warn("Skipping undecodable frame", zap.Error(err))
				continue
			}
			c.finish(err)
			return
		}

		deliver, ok := msg.(protocol.Deliver)
		if !ok {
			c.logger.Debug("Ignoring message", zap.Stringer("kind", msg.Kind()))
			continue
		}

		select {
		case c.deliveries <- deliver:
		case <-c.closing:
			return
		}
	}
}

func (c *Client) finish(err error) {
	select {
	case <-c.closing:
		// Our own Close
		return
	default:
	}

	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return
	}
	c.err = err
}
