package transcribe

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
	"github.com/MarkDM/whisper-aws-serverless/internal/metrics"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/correlation"
	"github.com/MarkDM/whisper-aws-serverless/internal/queue"
	"github.com/MarkDM/whisper-aws-serverless/internal/storage"
)

type objectStore interface {
	Download(ctx context.Context, obj storage.Object, dir string) (string, error)
	JobID(ctx context.Context, obj storage.Object) (string, error)
}

type resultStore interface {
	Save(ctx context.Context, src storage.Object, result domain.TranscriptResult) (storage.Object, error)
}

type statusPublisher interface {
	Publish(ctx context.Context, v any) error
}

type transcriptionEngine interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	Model() string
}

// Processor turns one uploaded object into a stored transcript, announcing
// progress on the status queue. It is wired as the job-queue poller handler.
type Processor struct {
	objects objectStore
	results resultStore
	status  statusPublisher
	engine  transcriptionEngine
	workDir string
	clock   clockwork.Clock
}

func NewProcessor(objects objectStore, results resultStore, status statusPublisher, engine transcriptionEngine, workDir string, clock clockwork.Clock) *Processor {
	return &Processor{
		objects: objects,
		results: results,
		status:  status,
		engine:  engine,
		workDir: workDir,
		clock:   clock,
	}
}

// Handle processes one job-queue message. Returning an error leaves the
// message on the queue for redelivery, so only retryable failures propagate;
// notifications that can never parse are dropped instead.
func (p *Processor) Handle(ctx context.Context, msg queue.Message) error {
	objects, err := ParseObjectEvents(msg.Body)
	if err != nil {
		metrics.TranscriptionJobsTotal.WithLabelValues("skipped").Inc()
		slog.WarnContext(ctx, "Dropping unparsable job message", "message_id", msg.MessageID, "error", err)
		return nil
	}
	if len(objects) == 0 {
		slog.DebugContext(ctx, "Job message carried no objects", "message_id", msg.MessageID)
		return nil
	}

	for _, obj := range objects {
		if err := p.process(ctx, obj); err != nil {
			return fmt.Errorf("process %s: %w", obj.Key, err)
		}
	}
	return nil
}

// process runs the full pipeline for one object. Redelivery after a partial
// failure repeats the pipeline from the start; subscribers may then see a
// second "Transcription started", which the at-least-once contract allows.
func (p *Processor) process(ctx context.Context, obj storage.Object) error {
	start := p.clock.Now()

	jobID, err := p.objects.JobID(ctx, obj)
	if err != nil {
		// Status events still reconcile by filename, so a missing job id
		// degrades matching rather than failing the job.
		slog.WarnContext(ctx, "Could not read job id metadata", "key", obj.Key, "error", err)
		jobID = ""
	}
	if jobID != "" {
		ctx = correlation.WithJobID(ctx, jobID)
	}

	slog.InfoContext(ctx, "Transcription job started", "bucket", obj.Bucket, "key", obj.Key)

	if err := p.publishStatus(ctx, domain.StatusEvent{
		FileName: obj.Key,
		Status:   domain.StatusTranscriptionStarted,
		JobID:    jobID,
	}); err != nil {
		return err
	}

	audioPath, err := p.objects.Download(ctx, obj, p.workDir)
	if err != nil {
		metrics.TranscriptionJobsTotal.WithLabelValues("error").Inc()
		return err
	}
	defer func() {
		if err := os.Remove(audioPath); err != nil {
			slog.WarnContext(ctx, "Could not remove work file", "path", audioPath, "error", err)
		}
	}()

	text, err := p.engine.Transcribe(ctx, audioPath)
	if err != nil {
		metrics.TranscriptionJobsTotal.WithLabelValues("error").Inc()
		return err
	}

	result := domain.TranscriptResult{
		Transcription: text,
		Model:         p.engine.Model(),
		Source:        domain.TranscriptSource{Bucket: obj.Bucket, Key: obj.Key},
		CompletedAt:   p.clock.Now().UTC(),
	}
	stored, err := p.results.Save(ctx, obj, result)
	if err != nil {
		metrics.TranscriptionJobsTotal.WithLabelValues("error").Inc()
		return err
	}

	if err := p.publishStatus(ctx, domain.StatusEvent{
		FileName:   obj.Key,
		Status:     domain.StatusTranscriptionCompleted,
		Transcript: text,
		JobID:      jobID,
	}); err != nil {
		return err
	}

	metrics.TranscriptionJobsTotal.WithLabelValues("completed").Inc()
	metrics.TranscriptionDuration.Observe(p.clock.Since(start).Seconds())
	slog.InfoContext(ctx, "Transcription job completed",
		"key", obj.Key, "result_key", stored.Key, "duration", p.clock.Since(start))
	return nil
}

func (p *Processor) publishStatus(ctx context.Context, event domain.StatusEvent) error {
	if err := p.status.Publish(ctx, event); err != nil {
		return fmt.Errorf("publish %q status: %w", event.Status, err)
	}
	metrics.StatusEventsPublished.WithLabelValues(event.Status).Inc()
	return nil
}
