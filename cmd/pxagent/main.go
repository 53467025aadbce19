package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/pxsession/internal/adapter/httpserver"
	"github.com/pscheid92/pxsession/internal/adapter/lifecycle"
	"github.com/pscheid92/pxsession/internal/adapter/memory"
	"github.com/pscheid92/pxsession/internal/adapter/metrics"
	"github.com/pscheid92/pxsession/internal/adapter/redis"
	"github.com/pscheid92/pxsession/internal/adapter/resty"
	"github.com/pscheid92/pxsession/internal/domain"
	"github.com/pscheid92/pxsession/internal/platform/config"
	"github.com/pscheid92/pxsession/internal/platform/device"
	"github.com/pscheid92/pxsession/internal/platform/logging"
	"github.com/pscheid92/pxsession/internal/platform/version"
	"github.com/pscheid92/pxsession/internal/session"
	"github.com/sony/gobreaker"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type pingableStore interface {
	domain.Store
	Ping(ctx context.Context) error
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupStore returns the Redis-backed store when REDIS_URL is set and an
// in-memory store otherwise. The client is nil for the in-memory store.
func setupStore(ctx context.Context, cfg *config.Config, storeMetrics *metrics.StoreMetrics) (pingableStore, *goredis.Client) {
	if cfg.RedisURL == "" {
		slog.Warn("REDIS_URL not set, session record will not survive restarts")
		return memory.NewStore(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := redis.NewClient(connectCtx, cfg.RedisURL,
		redis.NewMetricsHook(storeMetrics),
		redis.NewCircuitBreakerHook(storeMetrics, 0),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return redis.NewStore(client, cfg.RedisKey), client
}

func breakerValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return metrics.BreakerHalfOpen
	case gobreaker.StateOpen:
		return metrics.BreakerOpen
	default:
		return metrics.BreakerClosed
	}
}

func setupRequester(cfg *config.Config, storeMetrics *metrics.StoreMetrics) *resty.Requester {
	return resty.NewRequester(resty.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: version.AgentName(),
		OnBreakerChange: func(_, to gobreaker.State) {
			storeMetrics.RecordBreaker("pxapi", to.String(), breakerValue(to))
		},
	})
}

func runGracefulShutdown(srv *httpserver.Server, sess *session.Session, hub *lifecycle.Hub, stopWatchers context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		// the host is going away; report it while the session can still send
		hub.Emit(domain.LifecycleClosed)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		stopWatchers()
		sess.Close()
		close(done)
	}()

	return done
}

func main() {
	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Agent starting", "version", info.Version, "commit", info.Commit, "port", cfg.Port)

	ctx := context.Background()
	reg := metrics.NewRegistry()
	storeMetrics := metrics.NewStoreMetrics(reg)

	store, redisClient := setupStore(ctx, cfg, storeMetrics)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	hub := lifecycle.NewHub()
	sess, err := session.New(ctx, session.Deps{
		Store:     store,
		Requester: setupRequester(cfg, storeMetrics),
		Lifecycle: hub,
		Clock:     clockwork.NewRealClock(),
		Device:    device.Detect(ctx, version.AgentName()),
		Metrics:   metrics.NewSessionMetrics(reg),
	}, session.Options{
		TransportType: domain.TransportType(cfg.TransportType),
		MaxTags:       cfg.MaxTags,
		EventRate:     rate.Limit(cfg.EventRate),
		EventBurst:    cfg.EventBurst,
	})
	if err != nil {
		slog.Error("Failed to load session", "error", err)
		os.Exit(1)
	}

	watchCtx, stopWatchers := context.WithCancel(ctx)
	go lifecycle.WatchSignals(watchCtx, hub)
	if redisClient != nil {
		sub := redis.NewLifecycleSubscriber(redisClient, cfg.LifecycleChannel, hub.Emit)
		go sub.Start(watchCtx)
	}

	if cfg.TransportToken != "" {
		sess.SetTransportToken(cfg.TransportToken)
	}
	if err := sess.Initialize(cfg.AppID); err != nil {
		slog.Error("Failed to initialize session", "error", err)
		os.Exit(1)
	}
	// the session reports onscreen itself once the instance is registered
	hub.Emit(domain.LifecycleOnscreen)
	if err := sess.Activate(cfg.ExtID, false); err != nil {
		slog.Error("Failed to activate session", "error", err)
		os.Exit(1)
	}

	srv := httpserver.NewServer(cfg.Port, sess, reg, []httpserver.HealthCheck{
		{Name: "store", Check: store.Ping},
	})

	done := runGracefulShutdown(srv, sess, hub, stopWatchers)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
