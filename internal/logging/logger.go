// Package logging builds the zap loggers used across topicbus.
package logging

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI color codes
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red          = "\033[31m"
	White        = "\033[37m"
	Gray         = "\033[90m"
	BrightRed    = "\033[91m"
	BrightYellow = "\033[93m"
	BrightWhite  = "\033[97m"
)

// Output formats
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Component represents different parts of the system
type Component string

const (
	ComponentMain     Component = "MAIN"
	ComponentBroker   Component = "BROKER"
	ComponentSession  Component = "SESSION"
	ComponentListener Component = "LISTENER"
	ComponentHealth   Component = "HEALTH"
	ComponentClient   Component = "CLIENT"
)

// Config controls logger construction
type Config struct {
	// Level is one of debug, info, warn, error
	Level string `toml:"level" env:"LEVEL"`

	// Format is "console" (human readable) or "json"
	Format string `toml:"format" env:"FORMAT"`

	// NoColor disables ANSI colors in console output
	NoColor bool `toml:"no_color" env:"NO_COLOR"`
}

// SetDefaults sets sensible default values for unset configuration fields
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = FormatConsole
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	switch c.Format {
	case FormatConsole, FormatJSON:
		return nil
	default:
		return errors.New("log format must be console or json")
	}
}

// New creates a logger writing to stdout
func New(config Config) (*zap.Logger, error) {
	return NewWithSink(config, zapcore.Lock(os.Stdout))
}

// NewWithSink creates a logger writing to the given sink
func NewWithSink(config Config, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	level, _ := zapcore.ParseLevel(config.Level)

	var encoder zapcore.Encoder
	if config.Format == FormatJSON {
		encoderConfig := zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = consoleEncoder(!config.NoColor)
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller()), nil
}

// ForComponent returns a child logger tagged with the component name
func ForComponent(logger *zap.Logger, component Component) *zap.Logger {
	return logger.With(zap.String("component", string(component)))
}

func levelColor(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return Gray
	case zapcore.InfoLevel:
		return BrightWhite
	case zapcore.WarnLevel:
		return BrightYellow
	case zapcore.ErrorLevel:
		return BrightRed
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return Red
	default:
		return White
	}
}

// consoleEncoder prints HH:MM:SS, a single-letter level and the bare file name
func consoleEncoder(colors bool) zapcore.Encoder {
	config := zap.NewDevelopmentEncoderConfig()

	config.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		ts := t.Format("15:04:05")
		if colors {
			ts = Dim + ts + Reset
		}
		enc.AppendString(ts)
	}

	config.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		letter := "?"
		switch level {
		case zapcore.DebugLevel:
			letter = "D"
		case zapcore.InfoLevel:
			letter = "I"
		case zapcore.WarnLevel:
			letter = "W"
		case zapcore.ErrorLevel:
			letter = "E"
		}
		if colors {
			letter = levelColor(level) + Bold + letter + Reset
		}
		enc.AppendString(letter)
	}

	config.EncodeCaller = func(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		file := caller.File
		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			file = file[idx+1:]
		}
		file = strings.TrimSuffix(file, ".go")
		if colors {
			file = Dim + file + Reset
		}
		enc.AppendString(file)
	}

	return zapcore.NewConsoleEncoder(config)
}
