package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WireFormat(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"ping", Ping{}, `"Ping"`},
		{"pong", Pong{}, `"Pong"`},
		{"consume", Consume{Topic: "news"}, `{"Consume":{"topic":"news"}}`},
		{"publish", Publish{Topic: "t", Message: "m"}, `{"Publish":{"topic":"t","message":"m"}}`},
		{"deliver", Deliver{Topic: "t", Message: "m"}, `{"Deliver":{"topic":"t","message":"m"}}`},
		{"empty topic", Consume{Topic: ""}, `{"Consume":{"topic":""}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Encode(tt.msg)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))
		})
	}
}

func TestEncode_Nil(t *testing.T) {
	_, err := Encode(nil)
	assert.Error(t, err)
}

func TestPublish_RoundTrip(t *testing.T) {
	data, err := Encode(Publish{Topic: "t", Message: "m"})
	require.NoError(t, err)

	msg, err := Decode(data)
	require.NoError(t, err)

	publish, ok := msg.(Publish)
	require.True(t, ok, "expected Publish, got %T", msg)
	assert.Equal(t, "t", publish.Topic)
	assert.Equal(t, "m", publish.Message)
}

func TestDecode_Variants(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Message
	}{
		{"ping", `"Ping"`, Ping{}},
		{"pong", `"Pong"`, Pong{}},
		{"consume", `{"Consume":{"topic":"news"}}`, Consume{Topic: "news"}},
		{"publish", `{"Publish":{"topic":"news","message":"hello"}}`, Publish{Topic: "news", Message: "hello"}},
		{"deliver", `{"Deliver":{"topic":"news","message":"hello"}}`, Deliver{Topic: "news", Message: "hello"}},
		{"extra fields ignored", `{"Consume":{"topic":"a","priority":3}}`, Consume{Topic: "a"}},
		{"surrounding whitespace", "  \n{\"Consume\":{\"topic\":\"a\"}}", Consume{Topic: "a"}},
		{"unicode payload", `{"Publish":{"topic":"ü","message":"été"}}`, Publish{Topic: "ü", Message: "été"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		unknown bool
	}{
		{"empty", ``, false},
		{"not json", `garbage`, false},
		{"number", `42`, false},
		{"truncated", `{"Consume":{"topic":`, false},
		{"unknown unit", `"Hello"`, true},
		{"unknown struct", `{"Subscribe":{"topic":"a"}}`, true},
		{"two variants", `{"Consume":{"topic":"a"},"Publish":{"topic":"a","message":"b"}}`, false},
		{"no variant", `{}`, false},
		{"struct kind as unit", `"Consume"`, false},
		{"missing topic", `{"Consume":{}}`, false},
		{"missing message", `{"Publish":{"topic":"a"}}`, false},
		{"wrong field type", `{"Consume":{"topic":7}}`, false},
		{"ping with fields", `{"Ping":{"x":1}}`, false},
		{"lowercase kind", `{"consume":{"topic":"a"}}`, true},
		{"uppercase field", `{"Publish":{"TOPIC":"t","message":"m"}}`, false},
		{"capitalized field", `{"Publish":{"topic":"t","Message":"m"}}`, false},
		{"duplicate field", `{"Publish":{"topic":"a","topic":"b","message":"m"}}`, false},
		{"duplicate variant", `{"Consume":{"topic":"a"},"Consume":{"topic":"b"}}`, false},
		{"null topic", `{"Consume":{"topic":null}}`, false},
		{"null body", `{"Consume":null}`, false},
		{"body not an object", `{"Consume":"a"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.input))
			require.Error(t, err)
			assert.Nil(t, msg)
			assert.True(t, errors.Is(err, ErrDecode), "expected ErrDecode, got %v", err)
			if tt.unknown {
				assert.ErrorIs(t, err, ErrUnknownKind)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "Consume", Consume{}.Kind().String())
	assert.Equal(t, "Deliver", Deliver{}.Kind().String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
