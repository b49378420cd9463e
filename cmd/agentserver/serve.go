package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/rhuss/agentserver/pkg/agent"
	"github.com/rhuss/agentserver/pkg/api"
	"github.com/rhuss/agentserver/pkg/config"
	"github.com/rhuss/agentserver/pkg/debug"
	"github.com/rhuss/agentserver/pkg/dispatch"
	"github.com/rhuss/agentserver/pkg/observability"
	"github.com/rhuss/agentserver/pkg/tracing"
	"github.com/rhuss/agentserver/pkg/transport"
	transporthttp "github.com/rhuss/agentserver/pkg/transport/http"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (or set AGENTSERVER_CONFIG)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "listen port, overrides server.port")
	return cmd
}

// serve wires the configured components and blocks until SIGINT or SIGTERM.
func serve(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	agentType, err := api.ParseAgentType(cfg.Agent.Type)
	if err != nil {
		return err
	}

	sentryEnabled, err := observability.InitSentry(observability.SentryConfig{
		DSN:          cfg.Observability.Sentry.DSN,
		Environment:  cfg.Observability.Sentry.Environment,
		Release:      cfg.Observability.Sentry.Release,
		SampleRate:   cfg.Observability.Sentry.SampleRate,
		FlushTimeout: cfg.Observability.Sentry.FlushTimeout,
	})
	if err != nil {
		return err
	}
	if sentryEnabled {
		logger.Info("error reporting enabled", "environment", cfg.Observability.Sentry.Environment)
		defer observability.FlushSentry(cfg.Observability.Sentry.FlushTimeout)
	}

	registry := agent.NewRegistry()
	if err := registerDemoAgent(registry, cfg.Agent.Name); err != nil {
		return fmt.Errorf("registering agent: %w", err)
	}

	opts := []transporthttp.ServerOption{
		transporthttp.WithAddr(fmt.Sprintf(":%d", cfg.Server.Port)),
		transporthttp.WithMaxBodySize(cfg.Server.MaxBodySize),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		transporthttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		transporthttp.WithLogger(logger),
		transporthttp.WithAgentType(agentType),
		transporthttp.WithRegistry(registry),
		transporthttp.WithPanicHook(func(ctx context.Context, recovered any) {
			observability.CapturePanic(ctx, recovered, map[string]string{
				"agent_type": string(agentType),
				"request_id": transport.RequestIDFromContext(ctx),
			})
		}),
	}

	dcfg := dispatch.Config{Logger: logger}
	if cfg.Tracing.Enabled {
		provider, err := tracing.NewProvider(ctx, tracing.Config{
			ServiceName:  cfg.Tracing.ServiceName,
			OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
			Insecure:     cfg.Tracing.Insecure,
			MaxTraces:    cfg.Tracing.MaxTraces,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logger.Warn("tracing shutdown", "error", err)
			}
		}()
		otel.SetTracerProvider(provider.TracerProvider())
		dcfg.Tracer = provider
		dcfg.Traces = provider
		opts = append(opts, transporthttp.WithTracerProvider(provider.TracerProvider()))
	}

	if cfg.Observability.Metrics.Enabled {
		opts = append(opts,
			transporthttp.WithRoute("GET "+cfg.Observability.Metrics.Path, promhttp.Handler()),
			transporthttp.WithHTTPMiddleware(observability.MetricsMiddleware),
		)
	}

	authMW, err := buildAuthMiddleware(cfg.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}
	if authMW != nil {
		opts = append(opts, transporthttp.WithHTTPMiddleware(authMW))
		logger.Info("authentication enabled", "type", cfg.Auth.Type)
	}

	srv := transporthttp.NewServer(dispatch.New(agentType, registry, dcfg), opts...)
	logger.Info("single endpoint: POST /invocations",
		"agent_type", string(agentType),
		"port", cfg.Server.Port,
		"tracing", cfg.Tracing.Enabled,
	)
	return srv.Run(ctx)
}
