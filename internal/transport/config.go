package transport

import (
	"errors"
	"time"
)

// DefaultMaxFrameSize bounds a single encoded message on the wire
const DefaultMaxFrameSize = 8 * 1024 * 1024 // 8MB

// Config holds configuration for framed connections
type Config struct {
	// MaxFrameSize is the largest accepted frame payload in bytes
	MaxFrameSize int

	// DialTimeout bounds Dial when the caller's context has no deadline
	DialTimeout time.Duration
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.MaxFrameSize < 0 {
		return errors.New("max frame size cannot be negative")
	}
	if c.DialTimeout < 0 {
		return errors.New("dial timeout cannot be negative")
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = DefaultMaxFrameSize
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
}
