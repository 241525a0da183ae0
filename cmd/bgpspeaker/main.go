// SPDX-License-Identifier:Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/openperouter/bgpspeaker/internal/adminshell"
	"github.com/openperouter/bgpspeaker/internal/bootstrap"
	"github.com/openperouter/bgpspeaker/internal/controlchannel"
	"github.com/openperouter/bgpspeaker/internal/health"
	"github.com/openperouter/bgpspeaker/internal/launcher"
	"github.com/openperouter/bgpspeaker/internal/logging"
	"github.com/openperouter/bgpspeaker/internal/metrics"
	"github.com/openperouter/bgpspeaker/internal/orchestrator"
	"github.com/openperouter/bgpspeaker/internal/speaker"
	"github.com/openperouter/bgpspeaker/internal/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type options struct {
	configFile     string
	rpcHost        string
	rpcPort        int
	logLevel       string
	watchConfig    bool
	metricsAddress string
	healthPort     int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := options{}
	cmd := &cobra.Command{
		Use:          "bgpspeaker",
		Short:        "Runs a BGP speaker configured from a declarative file",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	addFlags(cmd.Flags(), &opts)
	return cmd
}

func addFlags(flags *pflag.FlagSet, opts *options) {
	flags.StringVar(&opts.configFile, "config-file", "", "path to the speaker configuration file")
	flags.StringVar(&opts.rpcHost, "rpc-host", controlchannel.DefaultBindIP, "IP address the control channel listens on")
	flags.IntVar(&opts.rpcPort, "rpc-port", controlchannel.DefaultBindPort, "port the control channel listens on")
	flags.StringVar(&opts.logLevel, "log-level", logging.LevelInfo, "log level, one of debug, info, warn, error")
	flags.BoolVar(&opts.watchConfig, "watch-config", false, "reapply the configuration file when it changes")
	flags.StringVar(&opts.metricsAddress, "metrics-address", ":9750", "address of the prometheus metrics endpoint, empty to disable")
	flags.IntVar(&opts.healthPort, "health-port", 0, "port of the gRPC health endpoint, 0 to disable")
}

func run(opts options) error {
	logger, err := logging.New(opts.logLevel, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	statusManager := status.NewStatusManager(logger)
	healthServer := health.New(logger)

	var orch *orchestrator.Orchestrator
	engine := func() speaker.Engine {
		return orch.Engine()
	}
	l := launcher.New(
		controlchannel.NewServer(engine, statusManager, logger),
		adminshell.New(engine, statusManager, logger),
		logger,
	)
	orch = orchestrator.New(orchestrator.Config{
		ConfigFile:  opts.configFile,
		RPCHost:     opts.rpcHost,
		RPCPort:     opts.rpcPort,
		WatchConfig: opts.watchConfig,
	}, orchestrator.Deps{
		Bootstrapper: bootstrap.New(speaker.New, statusManager, m, logger),
		Launcher:     l,
		Health:       healthServer,
		Logger:       logger,
	})

	var side []*launcher.Task
	if opts.metricsAddress != "" {
		side = append(side, l.Spawn(ctx, "metrics", func(ctx context.Context) error {
			return serveMetrics(ctx, opts.metricsAddress, registry, logger)
		}))
	}
	if opts.healthPort != 0 {
		address := net.JoinHostPort(opts.rpcHost, strconv.Itoa(opts.healthPort))
		side = append(side, l.Spawn(ctx, "health", func(ctx context.Context) error {
			return healthServer.Serve(ctx, address)
		}))
	}
	defer func() {
		for _, t := range side {
			t.Stop()
			<-t.Done()
		}
	}()

	channel, err := orch.Start(ctx)
	if err != nil {
		return err
	}
	defer orch.Shutdown()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case <-channel.Done():
		if err := channel.Err(); err != nil {
			return fmt.Errorf("control channel stopped: %w", err)
		}
	}
	return nil
}

func serveMetrics(ctx context.Context, address string, registry *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}))
	srv := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	logger.Info("metrics endpoint listening", "address", address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics endpoint failed: %w", err)
	}
	return nil
}
