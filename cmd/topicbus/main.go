package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rmacdonaldsmith/topicbus/internal/broker"
	"github.com/rmacdonaldsmith/topicbus/internal/config"
	"github.com/rmacdonaldsmith/topicbus/internal/health"
	"github.com/rmacdonaldsmith/topicbus/internal/logging"
	"github.com/rmacdonaldsmith/topicbus/internal/server"
	"github.com/rmacdonaldsmith/topicbus/internal/session"
	"github.com/rmacdonaldsmith/topicbus/internal/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	appName    = "topicbus"
	appVersion = "0.1.0"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     appName,
		Short:   "Topic-based publish/subscribe broker",
		Long:    `topicbus routes messages published to a topic to the one client consuming it.`,
		Version: appVersion,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, configPath)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&configPath, "config-path", "c", config.DefaultPath, "Path to the TOML configuration file")

	return cmd
}

// run starts the broker, the listener and the optional health service and
// blocks until ctx is cancelled or one of them fails
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	mainLogger := logging.ForComponent(logger, logging.ComponentMain)
	mainLogger.Info("Starting "+appName, zap.String("version", appVersion), zap.String("config", configPath))

	b, err := broker.New(
		broker.NewConfig(cfg.Server.MessageBufferSize),
		logging.ForComponent(logger, logging.ComponentBroker))
	if err != nil {
		return fmt.Errorf("failed to create broker: %w", err)
	}

	srv, err := server.Listen(server.Config{
		Address:   cfg.Address(),
		Session:   session.Config{BufferSize: cfg.Server.MessageBufferSize},
		Transport: transport.Config{MaxFrameSize: cfg.Server.MaxFrameSize},
	}, b, logger)
	if err != nil {
		mainLogger.Error("Failed to start listener", zap.Error(err))
		return err
	}

	var healthSrv *health.Server
	if cfg.Admin.HealthAddress != "" {
		healthSrv, err = health.Listen(cfg.Admin.HealthAddress, b, logging.ForComponent(logger, logging.ComponentHealth))
		if err != nil {
			mainLogger.Error("Failed to start health service", zap.Error(err))
			srv.Close()
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Run(gctx)
	})
	g.Go(srv.Run(gctx))
	if healthSrv != nil {
		g.Go(healthSrv.Run(gctx))
	}

	mainLogger.Info(appName+" started", zap.Stringer("address", srv.Addr()))

	err = g.Wait()
	if err != nil {
		mainLogger.Error(appName+" stopped with error", zap.Error(err))
		return err
	}
	mainLogger.Info(appName + " stopped")
	return nil
}
