package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-settlement/internal/keeper"
	"github.com/radieske/parimutuel-settlement/internal/settlement"
	scache "github.com/radieske/parimutuel-settlement/internal/settlement/cache"
	"github.com/radieske/parimutuel-settlement/internal/settlement/producer"
	"github.com/radieske/parimutuel-settlement/internal/settlement/repo"
	"github.com/radieske/parimutuel-settlement/internal/shared/cache"
	"github.com/radieske/parimutuel-settlement/internal/shared/config"
	"github.com/radieske/parimutuel-settlement/internal/shared/db"
	"github.com/radieske/parimutuel-settlement/internal/shared/kafka"
	"github.com/radieske/parimutuel-settlement/internal/shared/lock"
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

	conn, err := db.Connect(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatal("db", zap.Error(err))
	}
	defer conn.Close()
	store, err := repo.New(conn, cfg.DBDriver)
	if err != nil {
		log.Fatal("store", zap.Error(err))
	}

	checks := metrics.Checks{"db": store.Ping}

	// Com Redis o lock vale entre réplicas; sem ele, só dentro do processo
	var (
		locker      lock.Locker = lock.NewLocal()
		marketCache settlement.MarketCache
	)
	if cfg.RedisAddr != "" {
		rdb, err := cache.ConnectRedis(cfg.RedisAddr)
		if err != nil {
			log.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
		marketCache = scache.NewRedisCache(rdb, cfg.MarketCacheTTL)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// transições automáticas também geram eventos
	publ := producer.NewKafkaPublisher(kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketEvents), cfg.TopicMarketEvents)
	defer publ.Close()

	svc := settlement.NewService(log, store, accounts.NewDeriver(programID), publ, marketCache,
		settlement.NewMetrics(prometheus.DefaultRegisterer))

	k := keeper.NewKeeper(log, svc, locker, keeper.Config{
		AutoClose:  cfg.KeeperAutoClose,
		AutoCancel: cfg.KeeperAutoCancel,
		Batch:      cfg.KeeperBatch,
		LockTTL:    cfg.KeeperLockTTL,
	}, prometheus.DefaultRegisterer)

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, checks)

	if err := k.Run(ctx, cfg.KeeperSchedule); err != nil {
		log.Error("keeper", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
