package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newConsumeCommand() *cobra.Command {
	var topic string

	cmd := &cobra.Command{
		Use:   "consume",
		Short: "Consume a topic and print its messages",
		Long: `Consume a topic and print every message delivered for it.
Only one client can consume a topic at a time; if another client holds it,
nothing will arrive. Press Ctrl+C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runConsume(ctx, cmd.OutOrStdout(), topic)
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic to consume (required)")
	if err := cmd.MarkFlagRequired("topic"); err != nil {
		panic(fmt.Sprintf("Failed to mark topic as required: %v", err))
	}

	return cmd
}

// runConsume prints deliveries until ctx is cancelled or the broker closes
// the connection
func runConsume(ctx context.Context, out io.Writer, topic string) error {
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Consume(topic); err != nil {
		return fmt.Errorf("failed to consume: %w", err)
	}
	fmt.Fprintf(out, "Consuming '%s' on %s\n", topic, brokerAddr)

	for {
		select {
		case d, ok := <-c.Deliveries():
			if !ok {
				if err := c.Err(); err != nil {
					return fmt.Errorf("connection lost: %w", err)
				}
				fmt.Fprintln(out, "Broker closed the connection")
				return nil
			}
			fmt.Fprintf(out, "[%s] %s\n", d.Topic, d.Message)

		case <-ctx.Done():
			return nil
		}
	}
}
