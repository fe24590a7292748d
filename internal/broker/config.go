package broker

import "errors"

// DefaultMailboxSize is used when no mailbox size is configured
const DefaultMailboxSize = 64

// ErrInvalidMailboxSize is returned when the mailbox size is negative
var ErrInvalidMailboxSize = errors.New("mailbox size cannot be negative")

// Config represents configuration for a Broker
type Config struct {
	// MailboxSize is the capacity of the broker's command channel.
	// Senders block while it is full.
	MailboxSize int
}

// NewConfig creates a broker configuration with the given mailbox size
func NewConfig(mailboxSize int) *Config {
	return &Config{MailboxSize: mailboxSize}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.MailboxSize < 0 {
		return ErrInvalidMailboxSize
	}
	return nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.MailboxSize == 0 {
		c.MailboxSize = DefaultMailboxSize
	}
}
