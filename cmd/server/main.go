package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"

	"liyu1981.xyz/mobilealerts-proxy/pkg/common"
	"liyu1981.xyz/mobilealerts-proxy/pkg/db"
	"liyu1981.xyz/mobilealerts-proxy/pkg/discovery"
	"liyu1981.xyz/mobilealerts-proxy/pkg/dispatch"
	maGrpc "liyu1981.xyz/mobilealerts-proxy/pkg/grpc"
	maHttp "liyu1981.xyz/mobilealerts-proxy/pkg/http"
	"liyu1981.xyz/mobilealerts-proxy/pkg/proxy"
	"liyu1981.xyz/mobilealerts-proxy/pkg/registry"
	"liyu1981.xyz/mobilealerts-proxy/pkg/relay"
	"liyu1981.xyz/mobilealerts-proxy/pkg/sink"
	"liyu1981.xyz/mobilealerts-proxy/pkg/websocket"
)

func main() {
	if err := common.LoadEnvFiles(".env"); err != nil {
		log.Fatalf("Error loading .env file: %v", err)
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := common.GetLogger()
	defer common.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := db.NewStore(db.GetInstance(db.UseDialector(cfg.DBType, cfg.DBPath)))
	reg := registry.New(registry.Options{StaleTimeout: cfg.StaleTimeout})
	snapshot, err := store.LoadSnapshot()
	if err != nil {
		log.Fatalf("failed to load stored sensors: %v", err)
	}
	logger.Info("Registry restored", zap.Int("sensors", reg.Restore(snapshot)))

	dispatcher := dispatch.New(dispatch.Options{
		Shards:    cfg.DispatchShards,
		QueueSize: cfg.DispatchQueueSize,
	})
	dispatcher.Subscribe("store", store, dispatch.Filter{})
	hub := websocket.NewHub()
	dispatcher.Subscribe("websocket", hub, dispatch.Filter{})

	var sinks []io.Closer
	if cfg.RedisAddr != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		redisSink, err := sink.NewRedisSink(connectCtx, cfg.RedisAddr)
		cancel()
		if err != nil {
			log.Fatalf("failed to connect redis sink: %v", err)
		}
		dispatcher.Subscribe(sink.SinkRedis, redisSink, dispatch.Filter{})
		sinks = append(sinks, redisSink)
	}
	if cfg.NatsURL != "" {
		natsSink, err := sink.NewNatsSink(cfg.NatsURL)
		if err != nil {
			log.Fatalf("failed to connect nats sink: %v", err)
		}
		dispatcher.Subscribe(sink.SinkNats, natsSink, dispatch.Filter{})
		sinks = append(sinks, natsSink)
	}

	rel := relay.New(relay.Options{
		Workers:    cfg.RelayWorkers,
		QueueSize:  cfg.RelayQueueSize,
		Timeout:    cfg.RelayTimeout,
		MaxRetries: cfg.RelayMaxRetries,
	})

	p := proxy.New(cfg, nil, reg).WithServices(proxy.ServiceOpts{
		Relay:        rel,
		Publisher:    dispatcher,
		Configurator: discovery.NewClient(cfg.DiscoveryAddress),
		Store:        store,
	})

	if cfg.GatewayID != "" || cfg.GatewayAddress != "" {
		setupCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if _, err := p.SetupGateway(setupCtx, proxy.SetupOptions{
			GatewayID: cfg.GatewayID,
			Address:   cfg.GatewayAddress,
		}); err != nil {
			logger.Warn("Gateway setup on startup failed", zap.Error(err))
		}
		cancel()
	}

	if common.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	defaultRate, defaultBurst := rate.Limit(cfg.UploadRate), cfg.UploadBurst
	limiters := []*proxy.RateLimiterStore{proxy.NewRateLimiterStore(defaultRate, defaultBurst)}
	rs := &maHttp.RestfulServer{
		Server:           gin.Default(),
		Proxy:            p,
		RateLimiterStore: limiters[0],
		Hub:              hub,
	}
	rs.Setup()
	httpServer := &http.Server{Handler: rs.Server}

	httpListener, err := net.Listen("tcp", cfg.HttpHostPort)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	logger.Info("http server created with:",
		zap.String("default_limiter",
			fmt.Sprintf("{\"default_rate\": %v, \"default_burst\": %v}", cfg.UploadRate, cfg.UploadBurst)))

	var grpcServer *grpc.Server
	var grpcListener net.Listener
	if cfg.GrpcHostPort != "" {
		limiters = append(limiters, proxy.NewRateLimiterStore(defaultRate, defaultBurst))
		grpcServer, _ = maGrpc.NewServer(&maGrpc.SensorServer{
			Proxy:            p,
			Updates:          dispatcher,
			RateLimiterStore: limiters[1],
		})
		if grpcListener, err = net.Listen("tcp", cfg.GrpcHostPort); err != nil {
			log.Fatalf("failed to listen: %v", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server on: " + cfg.HttpHostPort)
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed to serve: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			logger.Info("Starting gRPC server on: " + cfg.GrpcHostPort)
			if err := grpcServer.Serve(grpcListener); err != nil {
				return fmt.Errorf("grpc server failed to serve: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error { return p.RunGatewayMonitor(gctx, cfg.MonitorInterval) })
	g.Go(func() error { return p.RunStaleSweeper(gctx, cfg.SweepInterval) })
	for _, l := range limiters {
		g.Go(func() error { return l.RunPruner(gctx, cfg.SweepInterval) })
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()

		// uploads first, so nothing new reaches the relay or the dispatcher
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown incomplete", zap.Error(err))
		}
		if grpcServer != nil {
			stopGrpc(shutdownCtx, grpcServer)
		}
		if err := rel.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Relay shutdown incomplete", zap.Error(err))
		}
		if err := dispatcher.Close(shutdownCtx); err != nil {
			logger.Warn("Dispatcher shutdown incomplete", zap.Error(err))
		}
		hub.Close()
		for _, s := range sinks {
			if err := s.Close(); err != nil {
				logger.Warn("Sink close failed", zap.Error(err))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		common.Sync()
		os.Exit(1)
	}
	logger.Info("Server stopped")
}

// stopGrpc waits for open streams until ctx is done, then closes them.
func stopGrpc(ctx context.Context, s *grpc.Server) {
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.Stop()
		<-stopped
	}
}
