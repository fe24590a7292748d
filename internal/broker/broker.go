// Package broker implements the routing actor of topicbus.
//
// A single goroutine (Run) owns the routing table and processes commands
// from a bounded mailbox one at a time, in arrival order. Connections never
// touch the table: they submit Publish, Subscribe and Unsubscribe commands
// and receive deliveries through their Handle.
package broker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rmacdonaldsmith/topicbus/internal/routingtable"
	"go.uber.org/zap"
)

var (
	// ErrBrokerStopped is returned when submitting to a broker that is no longer running
	ErrBrokerStopped = errors.New("broker stopped")

	// ErrAlreadyRunning is returned when Run is called a second time
	ErrAlreadyRunning = errors.New("broker already running")
)

// Broker is the single owner of the routing table
type Broker struct {
	config   *Config
	logger   *zap.Logger
	commands chan Command
	done     chan struct{}
	running  atomic.Bool

	// Owned by the Run goroutine
	table *routingtable.Table
	stats Stats
}

// New creates a broker with the given configuration. Call Run to start it.
func New(config *Config, logger *zap.Logger) (*Broker, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	configCopy := *config
	configCopy.SetDefaults()

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Broker{
		config:   &configCopy,
		logger:   logger,
		commands: make(chan Command, configCopy.MailboxSize),
		done:     make(chan struct{}),
		table:    routingtable.New(),
	}, nil
}

// Run processes commands until ctx is cancelled. It closes Done on return.
func (b *Broker) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(b.done)

	b.logger.Info("Broker started", zap.Int("mailbox_size", b.config.MailboxSize))

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Broker stopped",
				zap.Int("topics", b.table.Len()),
				zap.Uint64("published", b.stats.Published),
				zap.Uint64("delivered", b.stats.Delivered))
			return nil

		case cmd := <-b.commands:
			b.handle(ctx, cmd)
		}
	}
}

// Commands returns the broker's mailbox. Sending blocks while it is full.
// Callers that must not block indefinitely should use Submit, or select on
// Done alongside the send.
func (b *Broker) Commands() chan<- Command {
	return b.commands
}

// Done is closed once Run has returned
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Submit queues a command. It blocks while the mailbox is full and fails with
// ErrBrokerStopped once the broker has stopped.
func (b *Broker) Submit(ctx context.Context, cmd Command) error {
	if cmd == nil {
		return errors.New("command cannot be nil")
	}

	select {
	case <-b.done:
		return ErrBrokerStopped
	default:
	}

	select {
	case b.commands <- cmd:
		return nil
	case <-b.done:
		return ErrBrokerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the routing table and counters. The snapshot
// reflects every command queued before the call.
func (b *Broker) Stats(ctx context.Context) (Stats, error) {
	req := statsRequest{reply: make(chan Stats, 1)}
	if err := b.Submit(ctx, req); err != nil {
		return Stats{}, err
	}

	select {
	case stats := <-req.reply:
		return stats, nil
	case <-b.done:
		return Stats{}, ErrBrokerStopped
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	}
}

func (b *Broker) handle(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case Publish:
		b.publish(ctx, c)
	case Subscribe:
		b.subscribe(c)
	case Unsubscribe:
		b.unsubscribe(c)
	case statsRequest:
		b.snapshot(c)
	default:
		b.logger.Error("Unknown command", zap.String("type", fmt.Sprintf("%T", cmd)))
	}
}

func (b *Broker) publish(ctx context.Context, cmd Publish) {
	b.stats.Published++

	sub, ok := b.table.Lookup(cmd.Topic)
	if !ok {
		b.stats.NoRoute++
		b.logger.Info("No route for topic, dropping message", zap.String("topic", cmd.Topic))
		return
	}

	handle := sub.(*Handle)
	err := handle.deliver(ctx, Delivery{Topic: cmd.Topic, Message: cmd.Message})
	if err != nil {
		b.stats.Dropped++
		b.logger.Warn("Failed to forward message, dropping",
			zap.String("topic", cmd.Topic),
			zap.String("subscriber", handle.ID()),
			zap.Error(err))
		return
	}

	b.stats.Delivered++
}

func (b *Broker) subscribe(cmd Subscribe) {
	if cmd.Subscriber == nil {
		b.logger.Error("Subscribe without subscriber", zap.String("topic", cmd.Topic))
		return
	}

	if err := b.table.Bind(cmd.Topic, cmd.Subscriber); err != nil {
		b.stats.Rejected++
		current, _ := b.table.Lookup(cmd.Topic)
		b.logger.Warn("Subscribe rejected",
			zap.String("topic", cmd.Topic),
			zap.String("subscriber", cmd.Subscriber.ID()),
			zap.String("bound_to", current.ID()),
			zap.Error(err))
		return
	}

	b.logger.Debug("Topic bound",
		zap.String("topic", cmd.Topic),
		zap.String("subscriber", cmd.Subscriber.ID()))
}

func (b *Broker) unsubscribe(cmd Unsubscribe) {
	// A nil *Handle must not become a non-nil interface owner
	var owner routingtable.Subscriber
	if cmd.Owner != nil {
		owner = cmd.Owner
	}

	removed := b.table.Release(cmd.Topics, owner)
	b.logger.Debug("Topics released",
		zap.Strings("topics", cmd.Topics),
		zap.Int("removed", removed))
}

func (b *Broker) snapshot(req statsRequest) {
	stats := b.stats
	stats.Topics = b.table.Len()
	stats.Subscribers = b.table.SubscriberCount()
	stats.Routes = b.table.Routes()
	req.reply <- stats
}
