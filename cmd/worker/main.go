package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/vidmask/vidmask-processing-service/internal/infra/config"
	"github.com/vidmask/vidmask-processing-service/internal/infra/email"
	"github.com/vidmask/vidmask-processing-service/internal/infra/ffmpeg"
	"github.com/vidmask/vidmask-processing-service/internal/infra/fsstore"
	vimaging "github.com/vidmask/vidmask-processing-service/internal/infra/imaging"
	"github.com/vidmask/vidmask-processing-service/internal/infra/metrics"
	miniostorage "github.com/vidmask/vidmask-processing-service/internal/infra/minio"
	pigodetect "github.com/vidmask/vidmask-processing-service/internal/infra/pigo"
	"github.com/vidmask/vidmask-processing-service/internal/infra/postgres"
	"github.com/vidmask/vidmask-processing-service/internal/infra/rabbitmq"
	"github.com/vidmask/vidmask-processing-service/internal/infra/tracing"
	"github.com/vidmask/vidmask-processing-service/internal/pipeline"
	"github.com/vidmask/vidmask-processing-service/internal/usecase"
	"github.com/vidmask/vidmask-processing-service/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting vidmask-processing-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.JaegerEndpoint,
		SampleRatio: cfg.TraceSampleRatio,
	})
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:        cfg.MinIOEndpoint,
		AccessKey:       cfg.MinIOAccessKey,
		SecretKey:       cfg.MinIOSecretKey,
		UseSSL:          cfg.MinIOUseSSL,
		UploadBucket:    cfg.MinIOUploadBucket,
		ProcessedBucket: cfg.MinIOProcessedBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange, log)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub, cfg.RabbitMQStatusKey)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	extractor := ffmpeg.NewExtractor(log)
	voice := ffmpeg.NewVoiceChanger(cfg.VoicePitchSemitones, log)
	artifacts := fsstore.New(cfg.TempDir)
	compositor := vimaging.NewCompositor(log)
	thumbnailer := vimaging.NewThumbnailer()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	detectors := pigodetect.NewProvider(pigodetect.Config{
		CascadeFile: cfg.CascadeFile,
		MinFaceSize: cfg.MinFaceSize,
		MaxFaceSize: cfg.MaxFaceSize,
		QThreshold:  cfg.DetectQThresh,
	}, log)

	// Pipeline core
	orchestrator := pipeline.NewOrchestrator(extractor, detectors, compositor, artifacts, log)

	// Use case
	uc := usecase.NewAnonymizeVideoUseCase(
		repo, storage, extractor, extractor,
		orchestrator, artifacts,
		voice, thumbnailer,
		statusPub, dlqPub, notifier,
		log,
		cfg.MaxRetries,
	)

	// Metrics server
	metricsSrv := metrics.NewServer(cfg.MetricsPort, log)
	metricsSrv.Start()

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:          cfg.RabbitMQURL,
		Queue:        cfg.RabbitMQAnonymizeQueue,
		Exchange:     cfg.RabbitMQExchange,
		DLQ:          cfg.RabbitMQDLQ,
		StatusQueue:  cfg.RabbitMQStatusQueue,
		AnonymizeKey: cfg.RabbitMQAnonymizeKey,
		StatusKey:    cfg.RabbitMQStatusKey,
		Prefetch:     cfg.RabbitMQPrefetch,
		WorkerCount:  cfg.WorkerCount,
		BaseDelayMs:  cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("vidmask-processing-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("vidmask-processing-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
