package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rmacdonaldsmith/topicbus/internal/broker"
	"github.com/rmacdonaldsmith/topicbus/internal/server"
	"github.com/rmacdonaldsmith/topicbus/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const waitTimeout = 2 * time.Second

type testBroker struct {
	broker *broker.Broker
	addr   string
	stop   context.CancelFunc
}

func startBroker(t *testing.T) *testBroker {
	t.Helper()

	logger := zaptest.NewLogger(t)
	b, err := broker.New(broker.NewConfig(16), logger)
	require.NoError(t, err)
	srv, err := server.Listen(server.Config{Address: "127.0.0.1:0"}, b, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go b.Run(ctx)
	served := make(chan struct{})
	go func() {
		defer close(served)
		srv.Serve(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-served
	})
	return &testBroker{broker: b, addr: srv.Addr().String(), stop: cancel}
}

func (tb *testBroker) dial(t *testing.T) *Client {
	t.Helper()
	c, err := Dial(context.Background(), Config{Address: tb.addr, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func (tb *testBroker) waitForTopics(t *testing.T, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		s, err := tb.broker.Stats(context.Background())
		return err == nil && s.Topics == want
	}, waitTimeout, 5*time.Millisecond)
}

func receive(t *testing.T, c *Client) protocol.Deliver {
	t.Helper()
	select {
	case d, ok := <-c.Deliveries():
		require.True(t, ok, "deliveries closed")
		return d
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for delivery")
		return protocol.Deliver{}
	}
}

func TestConfig_Defaults(t *testing.T) {
	var config Config
	config.SetDefaults()

	assert.Equal(t, "localhost:1234", config.Address)
	assert.Equal(t, 10*time.Second, config.DialTimeout)
	assert.Equal(t, 100, config.BufferSize)
	assert.NotNil(t, config.Logger)
}

func TestDial_Refused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = Dial(context.Background(), Config{Address: addr, DialTimeout: time.Second})
	assert.Error(t, err)
}

func TestDial_NegativeBuffer(t *testing.T) {
	_, err := Dial(context.Background(), Config{BufferSize: -1})
	assert.Error(t, err)
}

func TestClient_ConsumeAndPublish(t *testing.T) {
	tb := startBroker(t)
	consumer := tb.dial(t)
	publisher := tb.dial(t)

	require.NoError(t, consumer.Consume("news"))
	tb.waitForTopics(t, 1)
	require.NoError(t, publisher.Publish("news", "hello"))

	assert.Equal(t, protocol.Deliver{Topic: "news", Message: "hello"}, receive(t, consumer))
}

func TestClient_PingKeepsConnection(t *testing.T) {
	tb := startBroker(t)
	c := tb.dial(t)

	require.NoError(t, c.Ping())
	require.NoError(t, c.Consume("self"))
	tb.waitForTopics(t, 1)
	require.NoError(t, c.Publish("self", "echo"))

	assert.Equal(t, protocol.Deliver{Topic: "self", Message: "echo"}, receive(t, c))
}

func TestClient_Close(t *testing.T) {
	tb := startBroker(t)
	c := tb.dial(t)

	require.NoError(t, c.Consume("t"))
	tb.waitForTopics(t, 1)

	require.NoError(t, c.Close())
	assert.NoError(t, c.Close(), "second close is a no-op")

	_, ok := <-c.Deliveries()
	assert.False(t, ok)
	assert.NoError(t, c.Err())
	assert.ErrorIs(t, c.Publish("t", "m"), ErrClosed)

	tb.waitForTopics(t, 0)
}

func TestClient_BrokerShutdown(t *testing.T) {
	tb := startBroker(t)
	c := tb.dial(t)

	require.NoError(t, c.Consume("t"))
	tb.waitForTopics(t, 1)

	tb.stop()

	select {
	case <-c.Done():
	case <-time.After(waitTimeout):
		t.Fatal("client did not notice shutdown")
	}
	_, ok := <-c.Deliveries()
	assert.False(t, ok)
	assert.NoError(t, c.Err())
}
