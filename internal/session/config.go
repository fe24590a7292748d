package session

import (
	"errors"

	"github.com/rmacdonaldsmith/topicbus/internal/broker"
)

// Config holds per-session settings
type Config struct {
	// BufferSize bounds both the delivery channel and the inbound channel
	BufferSize int
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.BufferSize < 0 {
		return errors.New("buffer size cannot be negative")
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.BufferSize == 0 {
		c.BufferSize = broker.DefaultMailboxSize
	}
}
