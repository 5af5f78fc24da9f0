package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jonboulle/clockwork"

	"github.com/MarkDM/whisper-aws-serverless/internal/platform/awsutil"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/config"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/logging"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/version"
	"github.com/MarkDM/whisper-aws-serverless/internal/queue"
	"github.com/MarkDM/whisper-aws-serverless/internal/storage"
	"github.com/MarkDM/whisper-aws-serverless/internal/transcribe"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupAWS(cfg *config.Config) aws.Config {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsutil.LoadConfig(ctx, cfg.AWSRegion)
	if err != nil {
		slog.Error("Failed to load AWS configuration", "error", err)
		os.Exit(1)
	}
	return awsCfg
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Worker starting",
		"env", cfg.AppEnv,
		"model", cfg.WhisperModel,
		"version", version.Get().Version,
	)

	if err := cfg.ValidateWorker(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	engine := transcribe.NewEngine(cfg.WhisperBin, cfg.WhisperModelDir, cfg.WhisperModel)
	if _, err := os.Stat(engine.ModelPath()); err != nil {
		slog.Error("Whisper model not found", "path", engine.ModelPath(), "error", err)
		os.Exit(1)
	}

	awsCfg := setupAWS(cfg)
	s3Client := awsutil.NewS3(awsCfg, cfg.AWSEndpoint)
	sqsClient := awsutil.NewSQS(awsCfg, cfg.AWSEndpoint)

	objects := storage.NewObjectStore(s3Client)
	results := storage.NewResultStore(s3Client, cfg.S3Bucket)
	status := queue.NewPublisher(sqsClient, cfg.StatusQueueURL)

	processor := transcribe.NewProcessor(objects, results, status, engine, cfg.WorkDir, clock)

	poller := queue.NewPoller(sqsClient, processor.Handle, queue.Options{
		QueueURL:    cfg.JobQueueURL,
		BatchSize:   int32(cfg.QueueBatchSize),
		WaitTime:    cfg.QueueWaitTime,
		BackoffBase: cfg.ReceiveBackoffBase,
		BackoffMax:  cfg.ReceiveBackoffMax,
	}, clock)
	poller.Start()
	slog.Info("Worker started", "job_queue", cfg.JobQueueURL)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	slog.Info("Shutdown signal received, cleaning up...")

	// Let an in-flight transcription finish before exiting; messages not
	// yet deleted will simply be redelivered.
	poller.Stop(cfg.ShutdownGracePeriod)
	slog.Info("Worker stopped")
}
