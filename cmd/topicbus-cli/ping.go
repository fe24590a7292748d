package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

func newPingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the broker accepts connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPing(context.Background(), cmd.OutOrStdout())
		},
	}
}

func runPing(ctx context.Context, out io.Writer) error {
	start := time.Now()

	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Ping(); err != nil {
		return fmt.Errorf("failed to ping: %w", err)
	}

	fmt.Fprintf(out, "Broker at %s is reachable (%s)\n", brokerAddr, time.Since(start).Round(time.Millisecond))
	return nil
}
