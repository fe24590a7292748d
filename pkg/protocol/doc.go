// Package protocol defines the messages exchanged between topicbus clients
// and the broker, and their wire encoding.
//
// The protocol is a closed set of five message kinds:
//   - Ping: client liveness probe (accepted and ignored by the broker)
//   - Pong: reply to Ping (never emitted by the broker)
//   - Consume: subscribe the connection to a topic
//   - Publish: publish a payload to a topic
//   - Deliver: push a published payload to the subscribed connection
//
// Message is a sealed interface: only the types in this package implement it,
// so a type switch over Ping, Pong, Consume, Publish and Deliver is exhaustive.
//
// Each message is encoded as JSON in externally tagged form. Unit kinds are a
// bare string, kinds with fields are a single-key object:
//
//	"Ping"
//	{"Consume":{"topic":"news"}}
//	{"Publish":{"topic":"news","message":"hello"}}
//	{"Deliver":{"topic":"news","message":"hello"}}
//
// Framing (the length prefix in front of every encoded message) is the
// transport's job and lives in internal/transport.
//
// Example usage:
//
//	data, err := protocol.Encode(protocol.Publish{Topic: "news", Message: "hello"})
//	if err != nil {
//		return err
//	}
//
//	msg, err := protocol.Decode(data)
//	if errors.Is(err, protocol.ErrDecode) {
//		// malformed message, the stream itself is still usable
//	}
//
//	switch m := msg.(type) {
//	case protocol.Consume:
//		subscribe(m.Topic)
//	case protocol.Publish:
//		publish(m.Topic, m.Message)
//	}
package protocol
