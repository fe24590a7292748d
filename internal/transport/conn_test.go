package transport

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/libp2p/go-msgio"
	"github.com/rmacdonaldsmith/topicbus/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPipe(t *testing.T, config Config) (*Conn, net.Conn) {
	t.Helper()
	local, remote := net.Pipe()
	conn := NewConn(local, config)
	t.Cleanup(func() {
		conn.Close()
		remote.Close()
	})
	return conn, remote
}

func TestConn_WriteAndRead(t *testing.T) {
	a, b := net.Pipe()
	left := NewConn(a, Config{})
	right := NewConn(b, Config{})
	defer left.Close()
	defer right.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- left.WriteMessage(protocol.Publish{Topic: "news", Message: "hello"})
	}()

	msg, err := right.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, <-errCh)
	assert.Equal(t, protocol.Publish{Topic: "news", Message: "hello"}, msg)
}

func TestConn_FrameLayout(t *testing.T) {
	conn, remote := newPipe(t, Config{})

	go conn.WriteMessage(protocol.Consume{Topic: "x"})

	header := make([]byte, 4)
	_, err := io.ReadFull(remote, header)
	require.NoError(t, err)

	length := binary.BigEndian.Uint32(header)
	body := make([]byte, length)
	_, err = io.ReadFull(remote, body)
	require.NoError(t, err)

	assert.JSONEq(t, `{"Consume":{"topic":"x"}}`, string(body))
}

func TestConn_ReadEOF(t *testing.T) {
	conn, remote := newPipe(t, Config{})
	remote.Close()

	_, err := conn.ReadMessage()
	assert.ErrorIs(t, err, io.EOF)
}

func TestConn_DecodeErrorKeepsStreamUsable(t *testing.T) {
	conn, remote := newPipe(t, Config{})

	go func() {
		w := msgio.NewWriter(remote)
		w.WriteMsg([]byte("not json at all"))
		w.WriteMsg([]byte(`{"Consume":{"topic":"after"}}`))
	}()

	_, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))

	msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.Consume{Topic: "after"}, msg)
}

func TestConn_FrameTooLarge(t *testing.T) {
	conn, remote := newPipe(t, Config{MaxFrameSize: 16})

	go func() {
		header := make([]byte, 4)
		binary.BigEndian.PutUint32(header, 1024)
		remote.Write(header)
	}()

	_, err := conn.ReadMessage()
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.False(t, IsDecodeError(err))
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	conn, _ := newPipe(t, Config{})

	assert.NoError(t, conn.Close())
	assert.NoError(t, conn.Close())
}

func TestDial(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan *Conn, 1)
	go func() {
		raw, err := listener.Accept()
		if err != nil {
			return
		}
		accepted <- NewConn(raw, Config{})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := Dial(ctx, listener.Addr().String(), Config{})
	require.NoError(t, err)
	defer client.Close()

	server := <-accepted
	defer server.Close()

	require.NoError(t, client.WriteMessage(protocol.Ping{}))
	msg, err := server.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, protocol.Ping{}, msg)
}

func TestDial_InvalidConfig(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1:1", Config{MaxFrameSize: -1})
	assert.Error(t, err)
}
