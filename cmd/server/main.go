package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jonboulle/clockwork"

	"github.com/MarkDM/whisper-aws-serverless/internal/broadcast"
	"github.com/MarkDM/whisper-aws-serverless/internal/httpserver"
	"github.com/MarkDM/whisper-aws-serverless/internal/metrics"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/awsutil"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/config"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/logging"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/version"
	"github.com/MarkDM/whisper-aws-serverless/internal/queue"
	"github.com/MarkDM/whisper-aws-serverless/internal/relay"
	"github.com/MarkDM/whisper-aws-serverless/internal/storage"
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

func runGracefulShutdown(srv *httpserver.Server, coordinator *relay.Coordinator, grace time.Duration) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		// Shutdown closes the listener immediately but then waits for
		// active connections, and the open event streams only release
		// once the coordinator closes their sinks. Run both at once.
		srvDone := make(chan error, 1)
		go func() { srvDone <- srv.Shutdown(shutdownCtx) }()

		coordinator.Shutdown(shutdownCtx)

		if err := <-srvDone; err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version)
	metrics.BuildInfo.WithLabelValues(info.Version, info.Commit, info.BuildTime, info.GoVersion).Set(1)

	if err := cfg.ValidateServer(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	awsCfg := setupAWS(cfg)
	s3Client := awsutil.NewS3(awsCfg, cfg.AWSEndpoint)
	sqsClient := awsutil.NewSQS(awsCfg, cfg.AWSEndpoint)

	uploader := storage.NewUploader(s3Client, cfg.S3Bucket, clock)
	results := storage.NewResultStore(s3Client, cfg.S3Bucket)

	registry := broadcast.NewRegistry(cfg.MaxSubscribers)
	broadcaster := broadcast.NewBroadcaster(registry, clock)

	// The stop wait must outlast the long poll so an in-flight receive can
	// finish and dispatch before the relay drains.
	coordinator := relay.NewCoordinator(sqsClient, queue.Options{
		QueueURL:    cfg.StatusQueueURL,
		BatchSize:   int32(cfg.QueueBatchSize),
		WaitTime:    cfg.QueueWaitTime,
		BackoffBase: cfg.ReceiveBackoffBase,
		BackoffMax:  cfg.ReceiveBackoffMax,
	}, registry, broadcaster, cfg.QueueWaitTime+5*time.Second, clock)

	healthChecks := []httpserver.HealthCheck{
		{Name: "s3", Check: storage.BucketCheck(s3Client, cfg.S3Bucket)},
		{Name: "status_queue", Check: queue.Check(sqsClient, cfg.StatusQueueURL)},
	}

	srv := httpserver.NewServer(cfg, uploader, results, registry, healthChecks)

	coordinator.Run()
	done := runGracefulShutdown(srv, coordinator, cfg.ShutdownGracePeriod)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
