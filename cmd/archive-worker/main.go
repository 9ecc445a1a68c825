package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/parimutuel-settlement/internal/archive"
	"github.com/radieske/parimutuel-settlement/internal/shared/config"
	"github.com/radieske/parimutuel-settlement/internal/shared/kafka"
	"github.com/radieske/parimutuel-settlement/internal/shared/logger"
	"github.com/radieske/parimutuel-settlement/internal/shared/metrics"
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

	store, err := archive.NewS3Store(ctx, archive.S3Config{
		Bucket:    cfg.ArchiveBucket,
		Region:    cfg.ArchiveRegion,
		Endpoint:  cfg.ArchiveEndpoint,
		AccessKey: cfg.ArchiveAccessKey,
		SecretKey: cfg.ArchiveSecretKey,
		PathStyle: cfg.ArchivePathStyle,
	})
	if err != nil {
		log.Fatal("s3", zap.Error(err))
	}

	// Kafka consumer: eventos de mercado; só resolved e cancelled interessam
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMarketEvents, "archive-worker")
	defer reader.Close()

	var dlq archive.MessageWriter
	if cfg.TopicMarketEventsDLQ != "" {
		w := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketEventsDLQ)
		defer w.Close()
		dlq = w
	}

	worker := archive.NewWorker(log, reader, store, dlq, prometheus.DefaultRegisterer)
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks{"s3": store.Health})

	log.Info("archive-worker started",
		zap.String("consume", cfg.TopicMarketEvents),
		zap.String("dlq", cfg.TopicMarketEventsDLQ),
		zap.String("bucket", cfg.ArchiveBucket),
	)
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("archive worker", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
