package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Status Queue Poller Metrics
var (
	// QueueMessagesReceived tracks status messages received from SQS
	QueueMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_received_total",
			Help: "Total status messages received from the queue",
		},
	)

	// QueueMessagesDeleted tracks messages deleted after successful broadcast
	QueueMessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_deleted_total",
			Help: "Total messages deleted from the queue after broadcast",
		},
	)

	// QueueReceiveErrors tracks failed ReceiveMessage calls
	QueueReceiveErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_receive_errors_total",
			Help: "Total failed receive calls against the status queue",
		},
	)

	// QueueReceiveRetries tracks backoff retries of the receive loop
	QueueReceiveRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_receive_retries_total",
			Help: "Total receive retries performed with backoff",
		},
	)

	// QueueDeleteErrors tracks failed DeleteMessage calls
	QueueDeleteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_delete_errors_total",
			Help: "Total failed delete calls against the status queue",
		},
	)

	// QueueReceiveDuration tracks how long each receive round trip takes
	QueueReceiveDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_receive_duration_seconds",
			Help:    "Receive round trip duration in seconds (includes long polling)",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 21},
		},
	)
)

// Event Stream Metrics
var (
	// StreamSubscribersCurrent tracks currently connected SSE subscribers
	StreamSubscribersCurrent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_subscribers_current",
			Help: "Current number of connected event stream subscribers",
		},
	)

	// StreamSubscribersTotal tracks subscription attempts by result
	StreamSubscribersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_subscribers_total",
			Help: "Total subscription attempts by result (accepted/rejected)",
		},
		[]string{"result"},
	)

	// StreamCapacityPercent tracks subscriber capacity utilization as percentage
	StreamCapacityPercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_capacity_percent",
			Help: "Current subscriber capacity utilization (0-100%)",
		},
	)

	// StreamMessagesSent tracks events written to subscribers
	StreamMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_messages_sent_total",
			Help: "Total events written to subscribers",
		},
	)

	// StreamWriteFailures tracks subscribers evicted after a failed write
	StreamWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_write_failures_total",
			Help: "Total subscribers evicted after a failed write",
		},
	)

	// StreamBroadcastDuration tracks full fan-out duration per message
	StreamBroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_broadcast_duration_seconds",
			Help:    "Fan-out duration per broadcast message in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		},
	)
)

// Upload Metrics
var (
	// UploadsTotal tracks audio uploads by result
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uploads_total",
			Help: "Total audio uploads by result (success/error)",
		},
		[]string{"result"},
	)

	// UploadBytes tracks bytes accepted for upload
	UploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "upload_bytes_total",
			Help: "Total bytes accepted for upload",
		},
	)

	// UploadDuration tracks time to stream an upload into object storage
	UploadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "upload_duration_seconds",
			Help:    "Upload duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
	)
)

// Transcription Worker Metrics
var (
	// TranscriptionJobsTotal tracks processed jobs by result
	TranscriptionJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcription_jobs_total",
			Help: "Total transcription jobs by result (completed/error/skipped)",
		},
		[]string{"result"},
	)

	// TranscriptionDuration tracks whisper execution time per job
	TranscriptionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transcription_duration_seconds",
			Help:    "Whisper execution duration per job in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	// StatusEventsPublished tracks status events published to the queue
	StatusEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_events_published_total",
			Help: "Total status events published by status",
		},
		[]string{"status"},
	)
)

// Build Information Metrics
var (
	// BuildInfo is a gauge that always returns 1, with build metadata as labels
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "build_info",
			Help: "Build information with version, commit, build_time, and go_version labels (value is always 1)",
		},
		[]string{"version", "commit", "build_time", "go_version"},
	)
)
