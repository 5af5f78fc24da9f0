package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	AWSRegion   string `env:"AWS_REGION" default:"us-east-1"`
	AWSEndpoint string `env:"AWS_ENDPOINT_URL"`

	S3Bucket       string `env:"S3_BUCKET"`
	StatusQueueURL string `env:"STATUS_QUEUE_URL"`
	JobQueueURL    string `env:"JOB_QUEUE_URL"`

	QueueBatchSize     int           `env:"QUEUE_BATCH_SIZE" default:"10"`
	QueueWaitTime      time.Duration `env:"QUEUE_WAIT_TIME" default:"20s"`
	ReceiveBackoffBase time.Duration `env:"RECEIVE_BACKOFF_BASE" default:"1s"`
	ReceiveBackoffMax  time.Duration `env:"RECEIVE_BACKOFF_MAX" default:"30s"`

	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" default:"30s"`

	MaxSubscribers int     `env:"MAX_SUBSCRIBERS" default:"512"`
	MaxUploadSize  string  `env:"MAX_UPLOAD_SIZE" default:"256M"`
	UploadRate     float64 `env:"UPLOAD_RATE" default:"5"`
	UploadBurst    int     `env:"UPLOAD_BURST" default:"10"`
	CORSOrigins    string  `env:"CORS_ORIGINS" default:"*"`

	WhisperBin      string `env:"WHISPER_BIN" default:"whisper-cli"`
	WhisperModel    string `env:"WHISPER_MODEL" default:"tiny"`
	WhisperModelDir string `env:"WHISPER_MODEL_DIR" default:"models"`
	WorkDir         string `env:"WORK_DIR" default:"/tmp"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	// SQS caps ReceiveMessage at 10 messages and 20 seconds of long polling.
	if cfg.QueueBatchSize < 1 || cfg.QueueBatchSize > 10 {
		return fmt.Errorf("QUEUE_BATCH_SIZE must be between 1 and 10, got %d", cfg.QueueBatchSize)
	}
	if cfg.QueueWaitTime < 0 || cfg.QueueWaitTime > 20*time.Second {
		return fmt.Errorf("QUEUE_WAIT_TIME must be between 0s and 20s, got %s", cfg.QueueWaitTime)
	}

	if cfg.ReceiveBackoffBase <= 0 {
		return fmt.Errorf("RECEIVE_BACKOFF_BASE must be positive, got %s", cfg.ReceiveBackoffBase)
	}
	if cfg.ReceiveBackoffMax < cfg.ReceiveBackoffBase {
		return fmt.Errorf("RECEIVE_BACKOFF_MAX (%s) must be at least RECEIVE_BACKOFF_BASE (%s)", cfg.ReceiveBackoffMax, cfg.ReceiveBackoffBase)
	}

	if cfg.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("SHUTDOWN_GRACE_PERIOD must be positive, got %s", cfg.ShutdownGracePeriod)
	}
	if cfg.MaxSubscribers <= 0 {
		return fmt.Errorf("MAX_SUBSCRIBERS must be positive, got %d", cfg.MaxSubscribers)
	}

	return nil
}

// ValidateServer checks the variables the relay server cannot run without.
func (c *Config) ValidateServer() error {
	required := map[string]string{
		"S3_BUCKET":        c.S3Bucket,
		"STATUS_QUEUE_URL": c.StatusQueueURL,
	}
	return requireAll(required)
}

// ValidateWorker checks the variables the transcription worker cannot run without.
func (c *Config) ValidateWorker() error {
	required := map[string]string{
		"S3_BUCKET":        c.S3Bucket,
		"STATUS_QUEUE_URL": c.StatusQueueURL,
		"JOB_QUEUE_URL":    c.JobQueueURL,
	}
	return requireAll(required)
}

func requireAll(required map[string]string) error {
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return nil
}
