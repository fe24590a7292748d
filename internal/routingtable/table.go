// Package routingtable holds the topic-to-subscriber bindings of the broker.
//
// A topic is bound to at most one subscriber at any time. Table is a plain
// data structure with no locking: it is owned by the broker goroutine, which
// is the only code allowed to read or mutate it.
package routingtable

import (
	"errors"
	"sort"
)

// ErrTopicBound is returned when binding a topic that already has a subscriber
var ErrTopicBound = errors.New("topic already has a subscriber")

// Subscriber is anything a topic can be bound to
type Subscriber interface {
	// ID returns unique identifier for this subscriber
	ID() string
}

// Route is one topic binding, as reported by Routes
type Route struct {
	Topic        string
	SubscriberID string
}

// Table maps topics to their single subscriber.
// It is not safe for concurrent use.
type Table struct {
	routes map[string]Subscriber
}

// New creates an empty routing table
func New() *Table {
	return &Table{routes: make(map[string]Subscriber)}
}

// Bind binds topic to sub. Binding a topic that is already bound fails with
// ErrTopicBound and leaves the existing binding in place, even when sub is
// the current subscriber.
func (t *Table) Bind(topic string, sub Subscriber) error {
	if sub == nil {
		return errors.New("subscriber cannot be nil")
	}
	if _, bound := t.routes[topic]; bound {
		return ErrTopicBound
	}
	t.routes[topic] = sub
	return nil
}

// Lookup returns the subscriber bound to topic, if any
func (t *Table) Lookup(topic string) (Subscriber, bool) {
	sub, ok := t.routes[topic]
	return sub, ok
}

// Release removes the bindings of the given topics and returns how many were
// removed. With a nil owner every listed binding is removed; otherwise only
// bindings held by owner are. Topics that are not bound are skipped.
func (t *Table) Release(topics []string, owner Subscriber) int {
	removed := 0
	for _, topic := range topics {
		sub, ok := t.routes[topic]
		if !ok {
			continue
		}
		if owner != nil && sub != owner {
			continue
		}
		delete(t.routes, topic)
		removed++
	}
	return removed
}

// Len returns the number of bound topics
func (t *Table) Len() int {
	return len(t.routes)
}

// SubscriberCount returns the number of distinct subscribers holding a binding
func (t *Table) SubscriberCount() int {
	seen := make(map[Subscriber]struct{}, len(t.routes))
	for _, sub := range t.routes {
		seen[sub] = struct{}{}
	}
	return len(seen)
}

// Routes returns every binding sorted by topic
func (t *Table) Routes() []Route {
	routes := make([]Route, 0, len(t.routes))
	for topic, sub := range t.routes {
		routes = append(routes, Route{Topic: topic, SubscriberID: sub.ID()})
	}
	sort.Slice(routes, func(i, j int) bool {
		return routes[i].Topic < routes[j].Topic
	})
	return routes
}
