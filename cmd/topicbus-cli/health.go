package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rmacdonaldsmith/topicbus/internal/health"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func newHealthCommand() *cobra.Command {
	var healthAddr string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check broker health",
		Long:  "Query the broker's gRPC health service (admin.health_address in its config)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(context.Background(), cmd.OutOrStdout(), healthAddr)
		},
	}

	cmd.Flags().StringVar(&healthAddr, "health-addr", "localhost:9090", "Health service address")

	return cmd
}

func runHealth(ctx context.Context, out io.Writer, healthAddr string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := grpc.NewClient(healthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to create health client: %w", err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: health.ServiceName})
	if err != nil {
		return fmt.Errorf("failed to check health: %w", err)
	}

	fmt.Fprintf(out, "%s: %s\n", health.ServiceName, resp.GetStatus())
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("broker is not serving")
	}
	return nil
}
