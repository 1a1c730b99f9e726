/**
 * OCRR Worker - Main Entry Point
 *
 * Redacts personal data from scanned identity documents.
 *
 * Architecture:
 * - Redis list or asynq consumer for the redaction task queue
 * - Tesseract default and regional passes, QR detection
 * - Per-document-type field pipelines under a strict or permissive mode
 * - XML reports, PostgreSQL job rows, MongoDB task records, MinIO archive
 * - Status webhook to the uploading client, events on Redis and Kafka
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/adverant/nexus/ocrr-worker/internal/clients"
	"github.com/adverant/nexus/ocrr-worker/internal/config"
	"github.com/adverant/nexus/ocrr-worker/internal/logging"
	"github.com/adverant/nexus/ocrr-worker/internal/processor"
	"github.com/adverant/nexus/ocrr-worker/internal/queue"
	"github.com/adverant/nexus/ocrr-worker/internal/redaction"
	"github.com/adverant/nexus/ocrr-worker/internal/server"
	"github.com/adverant/nexus/ocrr-worker/internal/storage"
)

const shutdownTimeout = 30 * time.Second

// consumer is the part of either queue backend main needs
type consumer interface {
	GetStats(ctx context.Context) (map[string]int64, error)
}

func main() {
	logger := logging.NewLogger("main")

	if err := godotenv.Load(".env.ocrr"); err != nil {
		logger.Warn(".env.ocrr not found, using system environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err.Error())
		os.Exit(1)
	}

	logging.Configure(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger = logging.NewLogger("main")

	mode, _ := cfg.Mode() // checked by Validate
	logger.Info("OCRR Worker starting",
		"queue", cfg.QueueName,
		"backend", cfg.QueueBackend,
		"workers", cfg.WorkerConcurrency,
		"mode", mode.String(),
		"webhook", cfg.WebhookEnabled)

	// Storage: PostgreSQL + MongoDB (+ MinIO)
	storageManager, err := storage.NewStorageManager(&storage.ManagerConfig{
		PostgresURL: cfg.DatabaseURL,
		Mongo: &storage.MongoConfig{
			URI:         cfg.MongoURI,
			UploadDB:    cfg.MongoUploadDB,
			WorkspaceDB: cfg.MongoWorkspaceDB,
		},
		MinIO: &storage.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		},
	})
	if err != nil {
		logger.Error("Failed to initialize storage manager", "error", err.Error())
		os.Exit(1)
	}
	defer storageManager.Close()

	// The workspace copy is only deleted when documents are staged into a
	// workspace; otherwise FilePath is the uploaded original.
	proc, err := processor.NewDocumentProcessor(&processor.ProcessorConfig{
		Engine: redaction.NewEngine(mode, logging.NewLogger("redaction")),
		OCR: processor.NewTesseractOCR(&processor.TesseractConfig{
			TessdataPrefix:   cfg.TessdataPrefix,
			Language:         cfg.OCRLanguage,
			RegionalLanguage: cfg.OCRRegionalLanguage,
		}, nil),
		Store:            storageManager,
		Notifier:         clients.NewWebhookClient(0),
		WebhookEnabled:   cfg.WebhookEnabled,
		UploadDir:        cfg.UploadDir,
		CleanupWorkspace: cfg.WorkspaceDir != "",
		MaxFileSize:      cfg.MaxFileSize,
	})
	if err != nil {
		logger.Error("Failed to initialize document processor", "error", err.Error())
		os.Exit(1)
	}

	events := newEventPublisher(cfg, logger)
	defer events.Close()

	var (
		queueConsumer consumer
		stopConsumer  func() error
	)
	switch cfg.QueueBackend {
	case "asynq":
		c, err := queue.NewConsumer(&queue.ConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			Events:            events,
			ProcessingTimeout: cfg.ProcessingTimeout,
			WorkspaceDir:      cfg.WorkspaceDir,
		})
		if err != nil {
			logger.Error("Failed to initialize asynq consumer", "error", err.Error())
			os.Exit(1)
		}
		if err := c.Start(context.Background()); err != nil {
			logger.Error("Failed to start asynq consumer", "error", err.Error())
			os.Exit(1)
		}
		queueConsumer = c
		stopConsumer = func() error { return c.Stop(context.Background()) }

	default:
		c, err := queue.NewRedisConsumer(&queue.RedisConsumerConfig{
			RedisURL:          cfg.RedisURL,
			QueueName:         cfg.QueueName,
			Concurrency:       cfg.WorkerConcurrency,
			Processor:         proc,
			Events:            events,
			ProcessingTimeout: cfg.ProcessingTimeout,
			WorkspaceDir:      cfg.WorkspaceDir,
		})
		if err != nil {
			logger.Error("Failed to initialize queue consumer", "error", err.Error())
			os.Exit(1)
		}
		if err := c.Start(); err != nil {
			logger.Error("Failed to start queue consumer", "error", err.Error())
			os.Exit(1)
		}
		queueConsumer = c
		stopConsumer = c.Stop
	}

	httpServer := server.New(&server.Config{
		Addr:   cfg.HTTPAddr,
		Stores: storageManager,
		Queue:  queueConsumer,
		Info: map[string]string{
			"mode":    mode.String(),
			"queue":   cfg.QueueName,
			"backend": cfg.QueueBackend,
		},
	})
	httpServer.Start()

	logger.Info("OCRR Worker is ready, waiting for tasks", "http", cfg.HTTPAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal, initiating graceful shutdown", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("Error stopping HTTP server", "error", err.Error())
	}

	if err := stopConsumer(); err != nil {
		logger.Warn("Error stopping queue consumer", "error", err.Error())
	}

	logger.Info("Shutdown complete")
}

// newEventPublisher publishes on Redis pub/sub and, when brokers are set, Kafka
func newEventPublisher(cfg *config.Config, logger *logging.Logger) queue.EventPublisher {
	var publishers queue.MultiPublisher

	rp, err := queue.DialRedisEventPublisher(cfg.RedisURL, cfg.QueueName)
	if err != nil {
		logger.Warn("Status events on Redis disabled", "error", err.Error())
	} else {
		publishers = append(publishers, rp)
	}

	if len(cfg.KafkaBrokers) > 0 {
		kp, err := queue.NewKafkaEventPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logger.Warn("Status events on Kafka disabled", "error", err.Error())
		} else {
			publishers = append(publishers, kp)
		}
	}

	return publishers
}
