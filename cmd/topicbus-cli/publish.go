package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newPublishCommand() *cobra.Command {
	var (
		topic   string
		message string
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a message to a topic",
		Long: `Publish a message to a topic. The broker does not acknowledge publishes:
if no client consumes the topic the message is dropped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPublish(cmd.Context(), cmd.OutOrStdout(), topic, message)
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "Topic to publish to (required)")
	cmd.Flags().StringVar(&message, "message", "", "Message content")
	if err := cmd.MarkFlagRequired("topic"); err != nil {
		panic(fmt.Sprintf("Failed to mark topic as required: %v", err))
	}

	return cmd
}

func runPublish(ctx context.Context, out io.Writer, topic, message string) error {
	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Publish(topic, message); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}

	fmt.Fprintf(out, "Published to '%s'\n", topic)
	return nil
}
