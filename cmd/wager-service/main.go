package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/social-wager-platform/internal/shared/cache"
	"github.com/radieske/social-wager-platform/internal/shared/config"
	"github.com/radieske/social-wager-platform/internal/shared/db"
	"github.com/radieske/social-wager-platform/internal/shared/kafka"
	"github.com/radieske/social-wager-platform/internal/shared/logger"
	"github.com/radieske/social-wager-platform/internal/shared/metrics"
	"github.com/radieske/social-wager-platform/internal/wager-service/bets"
	"github.com/radieske/social-wager-platform/internal/wager-service/credits"
	whttp "github.com/radieske/social-wager-platform/internal/wager-service/http"
	"github.com/radieske/social-wager-platform/internal/wager-service/ledger"
	"github.com/radieske/social-wager-platform/internal/wager-service/membership"
	"github.com/radieske/social-wager-platform/internal/wager-service/parlays"
	"github.com/radieske/social-wager-platform/internal/wager-service/producer"
	"github.com/radieske/social-wager-platform/internal/wager-service/repo"
	"github.com/radieske/social-wager-platform/internal/wager-service/wagers"
	"github.com/radieske/social-wager-platform/pkg/contracts/topics"
)

func main() {
	cfg := config.Load()
	if cfg.ServiceName == "" {
		cfg.ServiceName = "wager-service"
	}

	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("starting service", zap.String("store", cfg.StoreBackend))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWager(reg)
	var checks []metrics.HealthCheck

	// Store: postgres (padrão) ou memória para demo local
	var store repo.Store
	switch cfg.StoreBackend {
	case "memory":
		store = repo.NewMemory()
		log.Warn("using in-memory store; data is lost on restart")
	default:
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		if cfg.ApplySchema {
			if err := db.ApplySchema(ctx, pg); err != nil {
				log.Fatal("apply schema", zap.Error(err))
			}
		}
		store = repo.NewPostgres(pg, cfg.TxMaxRetries)
	}
	checks = append(checks, metrics.HealthCheck{Name: "store", Check: store.Ping})

	// Membership: leitura via store com cache Redis quando configurado
	var members membership.Verifier = membership.NewStoreVerifier(store)
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			log.Warn("redis unavailable; membership cache disabled", zap.Error(err))
		} else {
			defer func(rdb *redis.Client) { _ = rdb.Close() }(rdb)
			members = membership.NewCached(members, rdb, cfg.MembershipCacheTTL, log)
			checks = append(checks, metrics.HealthCheck{Name: "redis", Check: cache.Ping(rdb)})
		}
	}

	// Eventos: Kafka quando há brokers, senão só log
	var pub producer.Publisher = producer.LogPublisher{Log: log}
	if len(kafka.Brokers(cfg.KafkaBrokers)) > 0 {
		w := kafka.NewWriter(cfg.KafkaBrokers)
		defer w.Close()
		pub = producer.NewKafkaPublisher(w, map[string]string{
			topics.BetSettled:      cfg.TopicBetSettled,
			topics.BetCancelled:    cfg.TopicBetCancelled,
			topics.ParlayResolved:  cfg.TopicParlayResolved,
			topics.LedgerMutations: cfg.TopicLedger,
		})
	}
	ev := producer.NewDispatcher(pub, m, log)

	led := ledger.New()
	cascade := parlays.NewResolver(led)
	api := whttp.NewServer(log,
		bets.NewService(store, led, cascade, members, ev, m, log),
		wagers.NewService(store, led, members, ev, m, log),
		parlays.NewService(store, led, members, ev, m, log),
		credits.NewService(store, led, members, ev, log),
		m, cfg.CORSOrigins,
	)

	metricsSrv := metrics.StartServer(log, cfg.MetricsPort, metrics.Handler(reg, checks...))
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api srv", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shutdownCtx)
	_ = metricsSrv.Shutdown(shutdownCtx)
}
