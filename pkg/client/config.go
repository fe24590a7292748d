package client

import (
	"time"

	"go.uber.org/zap"
)

// Config holds client configuration
type Config struct {
	// Address is the broker's host:port (e.g., "localhost:1234")
	Address string

	// DialTimeout bounds connection setup when the context has no deadline
	DialTimeout time.Duration

	// MaxFrameSize is the largest frame accepted from the broker
	MaxFrameSize int

	// BufferSize for the delivery channel
	BufferSize int

	// Logger receives diagnostics about skipped frames (optional)
	Logger *zap.Logger
}

// SetDefaults sets reasonable default values for the config
func (c *Config) SetDefaults() {
	if c.Address == "" {
		c.Address = "localhost:1234"
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.BufferSize == 0 {
		c.BufferSize = 100
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}
