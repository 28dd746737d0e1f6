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
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"github.com/hugr-lab/segstore"
	"github.com/hugr-lab/segstore/auth"
	"github.com/hugr-lab/segstore/catalog"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Flight server over an in-memory library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), v)
		},
	}
	cmd.Flags().String("listen", ":8815", "gRPC listen address")
	cmd.Flags().String("address", "", "public address advertised in flight endpoints")
	cmd.Flags().String("metrics-listen", "", "serve Prometheus metrics on this address")
	cmd.Flags().Int("parallelism", 0, "segments evaluated concurrently per read (0 uses GOMAXPROCS)")
	cmd.Flags().Int("max-message-size", 16<<20, "maximum gRPC message size in bytes")
	cmd.Flags().StringSlice("token", nil, "accepted bearer token as token=identity (repeatable)")
	cmd.Flags().Bool("demo", false, "seed the demo symbol")
	return cmd
}

func serve(ctx context.Context, v *viper.Viper) error {
	level, err := logLevel(v)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	lib, err := catalog.NewMemoryLibrary(catalog.WithLogger(logger))
	if err != nil {
		return err
	}
	defer lib.Close()

	if v.GetBool("demo") {
		if err := seedDemo(ctx, lib); err != nil {
			return fmt.Errorf("failed to seed demo symbol: %w", err)
		}
		logger.Info("Seeded demo symbol", "symbol", demoSymbol)
	}

	reg := prometheus.NewRegistry()
	config := segstore.Config{
		Library:        lib,
		Logger:         logger,
		Parallelism:    v.GetInt("parallelism"),
		MaxMessageSize: v.GetInt("max-message-size"),
		Address:        v.GetString("address"),
		Metrics:        reg,
	}
	if tokens := v.GetStringSlice("token"); len(tokens) > 0 {
		static, err := parseTokens(tokens)
		if err != nil {
			return err
		}
		config.Auth = static
	}

	grpcServer := grpc.NewServer(segstore.ServerOptions(config)...)
	if err := segstore.NewServer(grpcServer, config); err != nil {
		return err
	}

	lis, err := net.Listen("tcp", v.GetString("listen"))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if addr := v.GetString("metrics-listen"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer metricsServer.Close()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down")
		grpcServer.GracefulStop()
	}()

	logger.Info("Segment store listening", "address", lis.Addr().String())
	return grpcServer.Serve(lis)
}

// parseTokens reads token=identity pairs.
func parseTokens(pairs []string) (*auth.StaticTokens, error) {
	s := &auth.StaticTokens{Tokens: make(map[string]string, len(pairs))}
	for _, p := range pairs {
		token, identity, ok := strings.Cut(p, "=")
		if !ok || token == "" || identity == "" {
			return nil, fmt.Errorf("invalid token %q: want token=identity", p)
		}
		s.Tokens[token] = identity
	}
	return s, nil
}
