package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/signalsfoundry/rfcascade/core"
	"github.com/signalsfoundry/rfcascade/internal/chainfile"
	"github.com/signalsfoundry/rfcascade/internal/logging"
	"github.com/signalsfoundry/rfcascade/internal/observability"
	"github.com/signalsfoundry/rfcascade/internal/rpc"
	"github.com/signalsfoundry/rfcascade/kb"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

// serveConfig holds the serve command's settings.
type serveConfig struct {
	ListenAddress  string
	MetricsAddress string
	// Chains are chain files stored at startup.
	Chains          []string
	ShutdownTimeout time.Duration
}

func newServeCmd(root *rootOptions) *cobra.Command {
	cfg := serveConfig{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cascade engine over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := root.logger(cmd, "info")
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
			if err != nil {
				return err
			}
			defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, cfg.ShutdownTimeout, log)

			lis, err := net.Listen("tcp", cfg.ListenAddress)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
			}
			return runServer(ctx, cfg, log, lis, prometheus.DefaultRegisterer)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.ListenAddress, "grpc-addr", ":50051", "TCP address the gRPC server listens on")
	f.StringVar(&cfg.MetricsAddress, "metrics-addr", ":9090", "HTTP address for Prometheus /metrics; empty disables it")
	f.StringSliceVar(&cfg.Chains, "chain", nil, "chain file to store at startup (repeatable)")
	f.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", 5*time.Second, "grace period for in-flight requests on shutdown")
	return cmd
}

// runServer serves CascadeService on lis until ctx is done.
func runServer(ctx context.Context, cfg serveConfig, log logging.Logger, lis net.Listener, reg prometheus.Registerer) error {
	rpcMetrics, err := observability.NewRPCCollector(reg)
	if err != nil {
		return fmt.Errorf("rpc metrics: %w", err)
	}
	engineMetrics, err := observability.NewEngineCollector(reg)
	if err != nil {
		return fmt.Errorf("engine metrics: %w", err)
	}

	store := kb.NewChainStore()
	unsubscribe := store.Subscribe(func(kb.Event) { rpcMetrics.SetStoredChains(len(store.List())) })
	defer unsubscribe()
	for _, path := range cfg.Chains {
		spec, err := chainfile.Load(path)
		if err != nil {
			return err
		}
		if _, err := store.Create(spec); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		log.Info(ctx, "stored chain", logging.Chain(spec.Name), logging.String("path", path))
	}

	evaluator := core.NewEvaluator(core.WithLogger(log), core.WithRecorder(engineMetrics))
	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			rpc.RequestIDUnaryServerInterceptor(log),
			rpc.TracingUnaryServerInterceptor(),
			rpcMetrics.UnaryServerInterceptor(),
		),
	)
	rpc.RegisterCascadeServer(server, rpc.NewService(store, evaluator, log))

	var metricsSrv *http.Server
	if cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rpcMetrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddress, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting gRPC server", logging.String("addr", lis.Addr().String()))
		return server.Serve(lis)
	})
	if metricsSrv != nil {
		g.Go(func() error {
			log.Info(gctx, "serving Prometheus metrics", logging.String("addr", cfg.MetricsAddress))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down")

		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		stopped := make(chan struct{})
		go func() {
			server.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(timeout):
			server.Stop()
		}

		if metricsSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
