package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rmacdonaldsmith/topicbus/pkg/client"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	brokerAddr string
	timeout    time.Duration
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "topicbus-cli",
		Short: "topicbus command line client",
		Long: `topicbus-cli talks to a topicbus broker. It can publish a message to a
topic, consume a topic and print what arrives, and check broker health.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&brokerAddr, "addr", "localhost:1234", "Broker address (host:port)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Connection timeout")

	rootCmd.AddCommand(newPublishCommand())
	rootCmd.AddCommand(newConsumeCommand())
	rootCmd.AddCommand(newPingCommand())
	rootCmd.AddCommand(newHealthCommand())

	return rootCmd
}

// connect dials the broker named by the global flags
func connect(ctx context.Context) (*client.Client, error) {
	c, err := client.Dial(ctx, client.Config{
		Address:     brokerAddr,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", brokerAddr, err)
	}
	return c, nil
}
