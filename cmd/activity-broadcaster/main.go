package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/activity-broadcaster/consumer"
	"github.com/radieske/social-wager-platform/internal/activity-broadcaster/pubsub"
	"github.com/radieske/social-wager-platform/internal/activity-broadcaster/ws"
	"github.com/radieske/social-wager-platform/internal/shared/cache"
	"github.com/radieske/social-wager-platform/internal/shared/config"
	"github.com/radieske/social-wager-platform/internal/shared/kafka"
	"github.com/radieske/social-wager-platform/internal/shared/logger"
	"github.com/radieske/social-wager-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "activity-broadcaster"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewBroadcaster(reg)

	// Kafka -> Redis pub/sub (consumer group próprio do broadcaster)
	reader := kafka.NewReader(cfg.KafkaBrokers, []string{
		cfg.TopicBetSettled, cfg.TopicBetCancelled, cfg.TopicParlayResolved, cfg.TopicLedger,
	}, "activity-broadcaster")
	defer reader.Close()

	proc := &consumer.Processor{
		Log:     log,
		Reader:  reader,
		Sink:    pubsub.NewRedisBroadcaster(rdb, cfg.RedisPubSubChannel),
		Metrics: m,
	}

	// Redis pub/sub -> clientes websocket
	hub := ws.NewHub(allowOrigin(cfg.CORSOrigins), log, m)
	ws.StartRedisSubscriber(ctx, rdb, cfg.RedisPubSubChannel, hub, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/ws", hub.HandleWS)
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	metricsSrv := metrics.StartServer(log, cfg.MetricsPort, metrics.Handler(reg,
		metrics.HealthCheck{Name: "redis", Check: cache.Ping(rdb)},
	))

	go func() {
		log.Info("ws listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("ws srv", zap.Error(err))
			stop()
		}
	}()

	log.Info("activity-broadcaster started", zap.String("channel", cfg.RedisPubSubChannel))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("activity-broadcaster stopped")
}

// allowOrigin aplica a mesma lista de origens do CORS da API
func allowOrigin(origins []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if slices.Contains(origins, "*") {
			return true
		}
		o := r.Header.Get("Origin")
		return o == "" || slices.Contains(origins, o)
	}
}
