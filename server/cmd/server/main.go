package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/obsidianstack/trafficpulse/server/internal/alerts"
	"github.com/obsidianstack/trafficpulse/server/internal/api"
	"github.com/obsidianstack/trafficpulse/server/internal/auth"
	"github.com/obsidianstack/trafficpulse/server/internal/config"
	"github.com/obsidianstack/trafficpulse/server/internal/metrics"
	"github.com/obsidianstack/trafficpulse/server/internal/receiver"
	"github.com/obsidianstack/trafficpulse/server/internal/store"
	"github.com/obsidianstack/trafficpulse/server/internal/ws"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	logLevel := flag.String("log-level", "info", "log level: debug | info | warn | error")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *logLevel, err)
		os.Exit(2)
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("trafficpulse-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	sc := cfg.Server

	slog.Info("config loaded",
		"grpc_port", sc.GRPCPort,
		"http_port", sc.HTTPPort,
		"auth_mode", sc.Auth.Mode,
		"report_ttl", sc.Reports.TTL,
		"cache_ttl", sc.Cache.TTL,
		"alert_rules", len(sc.Alerts.Rules),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st := store.New(sc.Reports.TTL)
	go st.Run(ctx)

	cache := store.NewCache(sc.Cache.TTL, sc.Cache.MaxEntries)
	go cache.Run(ctx)

	alertEngine := alerts.New(sc.Alerts)

	// gRPC carries the standard health service for load balancer probes.
	healthSrv := health.NewServer()
	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(auth.APIKeyInterceptor(
		sc.Auth.Mode,
		sc.Auth.EffectiveHeader(),
		sc.Auth.Key(),
	)))
	healthpb.RegisterHealthServer(grpcSrv, healthSrv)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", sc.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port", "port", sc.GRPCPort, "err", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC health service listening", "port", sc.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	hub := ws.New(st, sc.Stream.Interval)
	go hub.Run(ctx)

	apiHandler := api.New(st, cache, alertEngine, receiver.New(st, alertEngine), sc.Scoring)

	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", auth.Middleware(sc.Auth.Mode, sc.Auth.EffectiveHeader(), sc.Auth.Key(), apiHandler))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", metrics.New(st, cache))

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", sc.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", sc.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	<-ctx.Done()
	slog.Info("trafficpulse-server shutting down")
	healthSrv.Shutdown()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "err", err)
	}
	grpcSrv.GracefulStop()
}
