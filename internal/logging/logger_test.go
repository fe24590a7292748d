package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestConfig_Defaults(t *testing.T) {
	var config Config
	config.SetDefaults()

	assert.Equal(t, "info", config.Level)
	assert.Equal(t, FormatConsole, config.Format)
	assert.NoError(t, config.Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"debug console", Config{Level: "debug", Format: FormatConsole}, false},
		{"warn json", Config{Level: "warn", Format: FormatJSON}, false},
		{"bad level", Config{Level: "loud", Format: FormatConsole}, true},
		{"bad format", Config{Level: "info", Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewWithSink_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink(Config{Level: "info", Format: FormatJSON}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	ForComponent(logger, ComponentBroker).Info("no route", zap.String("topic", "news"))
	logger.Debug("filtered out")
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "no route", entry["msg"])
	assert.Equal(t, "BROKER", entry["component"])
	assert.Equal(t, "news", entry["topic"])
}

func TestNewWithSink_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink(Config{Level: "debug", NoColor: true}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Warn("subscribe rejected")
	require.NoError(t, logger.Sync())

	out := buf.String()
	assert.Contains(t, out, "\tW\t")
	assert.Contains(t, out, "logger_test")
	assert.Contains(t, out, "subscribe rejected")
	assert.NotContains(t, out, "\033[")
}

func TestNewWithSink_InvalidConfig(t *testing.T) {
	_, err := NewWithSink(Config{Level: "nope"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)
}
