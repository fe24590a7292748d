package protocol

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.Config{
	EscapeHTML:    true,
	SortMapKeys:   true,
	CaseSensitive: true,
}.Froze()

var (
	// ErrDecode is returned (wrapped) for any message that cannot be decoded
	ErrDecode = errors.New("protocol: cannot decode message")

	// ErrUnknownKind is returned when a message names a variant that does not exist
	ErrUnknownKind = errors.New("protocol: unknown message kind")
)

type topicFields struct {
	Topic string `json:"topic"`
}

type payloadFields struct {
	Topic   string `json:"topic"`
	Message string `json:"message"`
}

// Encode serializes a message into its JSON wire form.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case Ping, Pong:
		return json.Marshal(m.Kind().String())
	case Consume:
		return json.Marshal(map[string]topicFields{
			KindConsume.String(): {Topic: m.Topic},
		})
	case Publish:
		return json.Marshal(map[string]payloadFields{
			KindPublish.String(): {Topic: m.Topic, Message: m.Message},
		})
	case Deliver:
		return json.Marshal(map[string]payloadFields{
			KindDeliver.String(): {Topic: m.Topic, Message: m.Message},
		})
	case nil:
		return nil, errors.New("protocol: cannot encode nil message")
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, msg)
	}
}

// Decode parses one JSON-encoded message. Every failure wraps ErrDecode.
func Decode(data []byte) (Message, error) {
	switch firstNonSpace(data) {
	case '"':
		return decodeUnit(data)
	case '{':
		return decodeStruct(data)
	case 0:
		return nil, fmt.Errorf("%w: empty message", ErrDecode)
	default:
		return nil, fmt.Errorf("%w: expected string or object", ErrDecode)
	}
}

func decodeUnit(data []byte) (Message, error) {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	switch name {
	case KindPing.String():
		return Ping{}, nil
	case KindPong.String():
		return Pong{}, nil
	case KindConsume.String(), KindPublish.String(), KindDeliver.String():
		return nil, fmt.Errorf("%w: %s requires fields", ErrDecode, name)
	default:
		return nil, fmt.Errorf("%w: %w %q", ErrDecode, ErrUnknownKind, name)
	}
}

func decodeStruct(data []byte) (Message, error) {
	var envelope map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(envelope) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one variant, got %d", ErrDecode, len(envelope))
	}
	// The map keeps only the last of repeated keys
	if err := readObject(data, func(it *jsoniter.Iterator, _ string) error {
		it.Skip()
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	for name, body := range envelope {
		switch name {
		case KindPing.String(), KindPong.String():
			if string(body) != "null" {
				return nil, fmt.Errorf("%w: %s takes no fields", ErrDecode, name)
			}
			if name == KindPing.String() {
				return Ping{}, nil
			}
			return Pong{}, nil

		case KindConsume.String():
			fields, err := readFields(name, body, "topic")
			if err != nil {
				return nil, err
			}
			return Consume{Topic: fields[0]}, nil

		case KindPublish.String(), KindDeliver.String():
			fields, err := readFields(name, body, "topic", "message")
			if err != nil {
				return nil, err
			}
			if name == KindPublish.String() {
				return Publish{Topic: fields[0], Message: fields[1]}, nil
			}
			return Deliver{Topic: fields[0], Message: fields[1]}, nil

		default:
			return nil, fmt.Errorf("%w: %w %q", ErrDecode, ErrUnknownKind, name)
		}
	}

	// unreachable: the envelope has exactly one entry
	return nil, ErrDecode
}

// readFields returns the string values of the wanted fields of a variant
// body, in order. Names match exactly and each may appear once. Other
// fields are skipped.
func readFields(name string, body []byte, wanted ...string) ([]string, error) {
	values := make([]*string, len(wanted))
	err := readObject(body, func(it *jsoniter.Iterator, key string) error {
		for i, field := range wanted {
			if key != field {
				continue
			}
			if it.WhatIsNext() != jsoniter.StringValue {
				return fmt.Errorf("field `%s` must be a string", key)
			}
			v := it.ReadString()
			values[i] = &v
			return nil
		}
		it.Skip()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, name, err)
	}

	fields := make([]string, len(wanted))
	for i, v := range values {
		if v == nil {
			return nil, fmt.Errorf("%w: %s: missing field `%s`", ErrDecode, name, wanted[i])
		}
		fields[i] = *v
	}
	return fields, nil
}

// readObject calls fn for each key of a well-formed JSON object and fails on
// a repeated key. fn must consume the value.
func readObject(data []byte, fn func(it *jsoniter.Iterator, key string) error) error {
	iter := json.BorrowIterator(data)
	defer json.ReturnIterator(iter)

	seen := make(map[string]struct{}, 2)
	var fnErr error
	iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		if _, ok := seen[key]; ok {
			fnErr = fmt.Errorf("duplicate field `%s`", key)
			return false
		}
		seen[key] = struct{}{}
		if err := fn(it, key); err != nil {
			fnErr = err
			return false
		}
		return it.Error == nil
	})
	if fnErr != nil {
		return fnErr
	}
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return iter.Error
	}
	return nil
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}
