// Package transport carries protocol messages over a byte stream.
//
// Every message travels in its own frame: a 4-byte big-endian length
// followed by that many bytes of JSON produced by the protocol package.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/libp2p/go-msgio"
	"github.com/rmacdonaldsmith/topicbus/pkg/protocol"
)

// ErrFrameTooLarge is returned when a peer announces a frame above the limit.
// The stream is out of sync afterwards and must be closed.
var ErrFrameTooLarge = errors.New("transport: frame exceeds maximum size")

// Conn is a framed, message-oriented connection. ReadMessage must only be
// called from one goroutine at a time; WriteMessage is safe for concurrent use.
type Conn struct {
	raw    net.Conn
	reader msgio.Reader
	writer msgio.Writer

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established connection
func NewConn(raw net.Conn, config Config) *Conn {
	config.SetDefaults()

	return &Conn{
		raw:    raw,
		reader: msgio.NewReaderSize(raw, config.MaxFrameSize),
		writer: msgio.NewWriter(raw),
	}
}

// Dial connects to a broker at addr
func Dial(ctx context.Context, addr string, config Config) (*Conn, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transport config: %w", err)
	}
	config.SetDefaults()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.DialTimeout)
		defer cancel()
	}

	var dialer net.Dialer
	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}

	return NewConn(raw, config), nil
}

// ReadMessage reads and decodes the next frame.
//
// It returns io.EOF when the peer closed the stream between frames. A frame
// that was read in full but could not be decoded yields an error wrapping
// protocol.ErrDecode; the stream stays usable and the caller may keep
// reading. Any other error leaves the stream unusable.
func (c *Conn) ReadMessage() (protocol.Message, error) {
	frame, err := c.reader.ReadMsg()
	if err != nil {
		if errors.Is(err, msgio.ErrMsgTooLarge) {
			return nil, ErrFrameTooLarge
		}
		return nil, err
	}
	if len(frame) == 0 {
		return nil, fmt.Errorf("%w: empty frame", protocol.ErrDecode)
	}
	defer c.reader.ReleaseMsg(frame)

	return protocol.Decode(frame)
}

// WriteMessage encodes msg and writes it as one frame
func (c *Conn) WriteMessage(msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode %T: %w", msg, err)
	}
	if err := c.writer.WriteMsg(data); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// RemoteAddr returns the peer's network address
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// Close closes the underlying connection. Safe to call multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.raw.Close()
	})
	return c.closeErr
}

// IsDecodeError reports whether err is a recoverable per-message decode failure
func IsDecodeError(err error) bool {
	return errors.Is(err, protocol.ErrDecode)
}
