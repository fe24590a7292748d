package broker

import "github.com/rmacdonaldsmith/topicbus/internal/routingtable"

// Command is a request processed by the broker goroutine. The set of
// commands is closed: Publish, Subscribe and Unsubscribe.
type Command interface {
	isCommand()
}

// Publish routes Message to the subscriber bound to Topic, if any
type Publish struct {
	Topic   string
	Message string
}

// Subscribe binds Topic to Subscriber unless the topic is already bound
type Subscribe struct {
	Topic      string
	Subscriber *Handle
}

// Unsubscribe releases the bindings of Topics. When Owner is set only
// bindings held by Owner are released; a nil Owner releases unconditionally.
type Unsubscribe struct {
	Topics []string
	Owner  *Handle
}

// statsRequest asks the broker for a snapshot of its state
type statsRequest struct {
	reply chan Stats
}

func (Publish) isCommand()      {}
func (Subscribe) isCommand()    {}
func (Unsubscribe) isCommand()  {}
func (statsRequest) isCommand() {}

// Stats is a point-in-time view of the broker
type Stats struct {
	// Topics is the number of bound topics
	Topics int

	// Subscribers is the number of distinct handles holding a binding
	Subscribers int

	// Routes lists every binding, sorted by topic
	Routes []routingtable.Route

	// Published counts Publish commands processed
	Published uint64

	// Delivered counts payloads handed to a subscriber
	Delivered uint64

	// NoRoute counts publishes to a topic with no subscriber
	NoRoute uint64

	// Dropped counts deliveries lost because the subscriber was gone
	Dropped uint64

	// Rejected counts subscribes refused because the topic was already bound
	Rejected uint64
}
