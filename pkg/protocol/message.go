package protocol

import "fmt"

// Kind identifies a message variant
type Kind int

const (
	// KindPing is a client liveness probe
	KindPing Kind = iota

	// KindPong is the reply to a ping
	KindPong

	// KindConsume subscribes a connection to a topic
	KindConsume

	// KindPublish publishes a payload to a topic
	KindPublish

	// KindDeliver carries a published payload to a subscriber
	KindDeliver
)

var kindNames = map[Kind]string{
	KindPing:    "Ping",
	KindPong:    "Pong",
	KindConsume: "Consume",
	KindPublish: "Publish",
	KindDeliver: "Deliver",
}

// String returns the wire name of the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Message is one protocol message. It is implemented only by the types in
// this package.
type Message interface {
	// Kind returns the variant of this message
	Kind() Kind

	isMessage()
}

// Ping is a liveness probe sent by clients
type Ping struct{}

// Pong answers a Ping
type Pong struct{}

// Consume asks the broker to route a topic to this connection
type Consume struct {
	Topic string
}

// Publish hands a payload to the broker for routing
type Publish struct {
	Topic   string
	Message string
}

// Deliver pushes a previously published payload to a subscriber
type Deliver struct {
	Topic   string
	Message string
}

func (Ping) Kind() Kind    { return KindPing }
func (Pong) Kind() Kind    { return KindPong }
func (Consume) Kind() Kind { return KindConsume }
func (Publish) Kind() Kind { return KindPublish }
func (Deliver) Kind() Kind { return KindDeliver }

func (Ping) isMessage()    {}
func (Pong) isMessage()    {}
func (Consume) isMessage() {}
func (Publish) isMessage() {}
func (Deliver) isMessage() {}

// Compile-time checks that every variant implements Message
var (
	_ Message = Ping{}
	_ Message = Pong{}
	_ Message = Consume{}
	_ Message = Publish{}
	_ Message = Deliver{}
)
