// Package config loads the broker configuration from a TOML file, with
// TOPICBUS_* environment variables taking precedence over file values.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/rmacdonaldsmith/topicbus/internal/logging"
	"github.com/rmacdonaldsmith/topicbus/internal/transport"
)

// DefaultPath is used when no config path is given
const DefaultPath = "config.toml"

// EnvPrefix prefixes every environment override
const EnvPrefix = "TOPICBUS_"

var (
	// ErrMissingKey is returned when a required key is absent from the file
	ErrMissingKey = errors.New("missing required key")

	// ErrInvalidBufferSize is returned for a non-positive message buffer size
	ErrInvalidBufferSize = errors.New("message_buffer_size must be positive")
)

// Keys that must be present in the file itself
var requiredKeys = [][]string{
	{"server", "host"},
	{"server", "port"},
	{"server", "message_buffer_size"},
}

// Config is the complete broker configuration
type Config struct {
	Server  ServerConfig   `toml:"server" envPrefix:"SERVER_"`
	Admin   AdminConfig    `toml:"admin" envPrefix:"ADMIN_"`
	Logging logging.Config `toml:"logging" envPrefix:"LOG_"`
}

// ServerConfig configures the client-facing listener
type ServerConfig struct {
	Host string `toml:"host" env:"HOST"`
	Port uint16 `toml:"port" env:"PORT"`

	// MessageBufferSize bounds the broker mailbox and every per-session channel
	MessageBufferSize int `toml:"message_buffer_size" env:"MESSAGE_BUFFER_SIZE"`

	// MaxFrameSize is the largest accepted frame in bytes
	MaxFrameSize int `toml:"max_frame_size" env:"MAX_FRAME_SIZE"`
}

// AdminConfig configures operational endpoints
type AdminConfig struct {
	// HealthAddress enables the gRPC health service when set
	HealthAddress string `toml:"health_address" env:"HEALTH_ADDRESS"`
}

// Load reads, overrides, defaults and validates the configuration at path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(string(data))
}

// Parse is Load for configuration text already in memory
func Parse(text string) (*Config, error) {
	var config Config

	md, err := toml.Decode(text, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	for _, key := range requiredKeys {
		if !md.IsDefined(key...) {
			return nil, fmt.Errorf("%w: %s", ErrMissingKey, toml.Key(key))
		}
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.Server.MaxFrameSize == 0 {
		c.Server.MaxFrameSize = transport.DefaultMaxFrameSize
	}
	c.Logging.SetDefaults()
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.MessageBufferSize <= 0 {
		return ErrInvalidBufferSize
	}
	if c.Server.MaxFrameSize < 0 {
		return errors.New("max_frame_size cannot be negative")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	return nil
}

// Address returns the listener address as host:port
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(int(c.Server.Port)))
}
