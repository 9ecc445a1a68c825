package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-settlement/internal/settlement"
	scache "github.com/radieske/parimutuel-settlement/internal/settlement/cache"
	shttp "github.com/radieske/parimutuel-settlement/internal/settlement/http"
	"github.com/radieske/parimutuel-settlement/internal/settlement/producer"
	"github.com/radieske/parimutuel-settlement/internal/settlement/repo"
	"github.com/radieske/parimutuel-settlement/internal/shared/cache"
	"github.com/radieske/parimutuel-settlement/internal/shared/config"
	"github.com/radieske/parimutuel-settlement/internal/shared/db"
	"github.com/radieske/parimutuel-settlement/internal/shared/kafka"
	"github.com/radieske/parimutuel-settlement/internal/shared/logger"
	"github.com/radieske/parimutuel-settlement/internal/shared/metrics"
	"github.com/radieske/parimutuel-settlement/pkg/contracts/accounts"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	programID, err := accounts.ParsePubkey(cfg.ProgramID)
	if err != nil {
		log.Fatal("program id", zap.Error(err))
	}

	// Banco: Postgres em produção, SQLite embutido em dev
	conn, err := db.Connect(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer conn.Close()
	store, err := repo.New(conn, cfg.DBDriver)
	if err != nil {
		log.Fatal("store", zap.Error(err))
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	checks := metrics.Checks{"db": store.Ping}

	// Redis é opcional: sem ele as leituras vão direto ao banco
	var marketCache settlement.MarketCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		marketCache = scache.NewRedisCache(rdb, cfg.MarketCacheTTL)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// Kafka writer (topic market_events)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketEvents)
	publ := producer.NewKafkaPublisher(writer, cfg.TopicMarketEvents)
	defer publ.Close()

	svc := settlement.NewService(log, store, accounts.NewDeriver(programID), publ, marketCache,
		settlement.NewMetrics(prometheus.DefaultRegisterer))

	// HTTP público
	api := shttp.NewServer(log, svc, shttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, checks)

	go func() {
		log.Info("settlement-service listening",
			zap.String("addr", apiSrv.Addr),
			zap.String("db", cfg.DBDriver),
			zap.String("program_id", programID.String()),
		)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("api", zap.Error(err))
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
