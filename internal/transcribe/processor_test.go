package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
	"github.com/MarkDM/whisper-aws-serverless/internal/queue"
	"github.com/MarkDM/whisper-aws-serverless/internal/storage"
)

type fakeObjects struct {
	jobID       string
	jobIDErr    error
	downloadErr error
	downloads   []storage.Object
	paths       []string
	ops         *[]string
}

func (f *fakeObjects) JobID(_ context.Context, _ storage.Object) (string, error) {
	if f.jobIDErr != nil {
		return "", f.jobIDErr
	}
	return f.jobID, nil
}

func (f *fakeObjects) Download(_ context.Context, obj storage.Object, dir string) (string, error) {
	if f.downloadErr != nil {
		return "", f.downloadErr
	}
	f.downloads = append(f.downloads, obj)
	path := filepath.Join(dir, fmt.Sprintf("job-%d.wav", len(f.downloads)))
	if err := os.WriteFile(path, []byte("audio"), 0o600); err != nil {
		return "", err
	}
	f.paths = append(f.paths, path)
	*f.ops = append(*f.ops, "download:"+obj.Key)
	return path, nil
}

type fakeResults struct {
	saveErr error
	saved   []domain.TranscriptResult
	ops     *[]string
}

func (f *fakeResults) Save(_ context.Context, src storage.Object, result domain.TranscriptResult) (storage.Object, error) {
	if f.saveErr != nil {
		return storage.Object{}, f.saveErr
	}
	f.saved = append(f.saved, result)
	*f.ops = append(*f.ops, "save:"+src.Key)
	return storage.Object{Bucket: src.Bucket, Key: storage.ResultKey(src.Key)}, nil
}

type fakeStatusQueue struct {
	failOnStatus string
	events       []domain.StatusEvent
	ops          *[]string
}

func (f *fakeStatusQueue) Publish(_ context.Context, v any) error {
	event, ok := v.(domain.StatusEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", v)
	}
	if f.failOnStatus != "" && event.Status == f.failOnStatus {
		return errors.New("queue unavailable")
	}
	f.events = append(f.events, event)
	*f.ops = append(*f.ops, "publish:"+event.Status)
	return nil
}

type fakeWhisper struct {
	text string
	err  error
}

func (f *fakeWhisper) Transcribe(_ context.Context, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeWhisper) Model() string { return "tiny" }

type procHarness struct {
	ops     []string
	objects *fakeObjects
	results *fakeResults
	status  *fakeStatusQueue
	whisper *fakeWhisper
	clock   *clockwork.FakeClock
	proc    *Processor
}

func newProcHarness(t *testing.T) *procHarness {
	t.Helper()

	h := &procHarness{}
	h.objects = &fakeObjects{jobID: "job-123", ops: &h.ops}
	h.results = &fakeResults{ops: &h.ops}
	h.status = &fakeStatusQueue{ops: &h.ops}
	h.whisper = &fakeWhisper{text: "hello world"}
	h.clock = clockwork.NewFakeClockAt(time.Unix(1700000000, 0))
	h.proc = NewProcessor(h.objects, h.results, h.status, h.whisper, t.TempDir(), h.clock)
	return h
}

func jobMessage(keys ...string) queue.Message {
	records := make([]string, 0, len(keys))
	for _, key := range keys {
		records = append(records, fmt.Sprintf(
			`{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"audio"},"object":{"key":%q}}}`, key))
	}
	body := `{"Records":[` + strings.Join(records, ",") + `]}`
	return queue.Message{MessageID: "msg-1", ReceiptHandle: "rh-1", Body: []byte(body)}
}

func TestProcessor_CompletesJobAndAnnouncesProgress(t *testing.T) {
	h := newProcHarness(t)
	key := "uploads/1700000000-demo.mp3"

	err := h.proc.Handle(context.Background(), jobMessage(key))
	require.NoError(t, err)

	require.Len(t, h.status.events, 2)
	started := h.status.events[0]
	assert.Equal(t, domain.StatusTranscriptionStarted, started.Status)
	assert.Equal(t, key, started.FileName)
	assert.Equal(t, "job-123", started.JobID)
	assert.Empty(t, started.Transcript)

	completed := h.status.events[1]
	assert.Equal(t, domain.StatusTranscriptionCompleted, completed.Status)
	assert.Equal(t, key, completed.FileName)
	assert.Equal(t, "job-123", completed.JobID)
	assert.Equal(t, "hello world", completed.Transcript)

	require.Len(t, h.results.saved, 1)
	result := h.results.saved[0]
	assert.Equal(t, "hello world", result.Transcription)
	assert.Equal(t, "tiny", result.Model)
	assert.Equal(t, domain.TranscriptSource{Bucket: "audio", Key: key}, result.Source)
	assert.Equal(t, h.clock.Now().UTC(), result.CompletedAt)

	assert.Equal(t, []string{
		"publish:" + domain.StatusTranscriptionStarted,
		"download:" + key,
		"save:" + key,
		"publish:" + domain.StatusTranscriptionCompleted,
	}, h.ops, "completion must only be announced once the transcript is stored")
}

func TestProcessor_RemovesWorkFile(t *testing.T) {
	h := newProcHarness(t)

	err := h.proc.Handle(context.Background(), jobMessage("uploads/1-a.mp3"))
	require.NoError(t, err)

	require.Len(t, h.objects.paths, 1)
	_, err = os.Stat(h.objects.paths[0])
	assert.True(t, os.IsNotExist(err), "downloaded audio must be cleaned up")
}

func TestProcessor_MissingJobIDStillProcesses(t *testing.T) {
	h := newProcHarness(t)
	h.objects.jobID = ""

	err := h.proc.Handle(context.Background(), jobMessage("uploads/legacy.mp3"))
	require.NoError(t, err)

	require.Len(t, h.status.events, 2)
	assert.Empty(t, h.status.events[0].JobID)
	assert.Empty(t, h.status.events[1].JobID)
}

func TestProcessor_MetadataLookupFailureIsNotFatal(t *testing.T) {
	h := newProcHarness(t)
	h.objects.jobIDErr = errors.New("head object: access denied")

	err := h.proc.Handle(context.Background(), jobMessage("uploads/1-a.mp3"))
	require.NoError(t, err)

	require.Len(t, h.status.events, 2)
	assert.Empty(t, h.status.events[0].JobID)
	require.Len(t, h.results.saved, 1)
}

func TestProcessor_DownloadFailureRedelivers(t *testing.T) {
	h := newProcHarness(t)
	h.objects.downloadErr = errors.New("no such key")

	err := h.proc.Handle(context.Background(), jobMessage("uploads/gone.mp3"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "process uploads/gone.mp3")

	require.Len(t, h.status.events, 1, "only the started event goes out")
	assert.Empty(t, h.results.saved)
}

func TestProcessor_WhisperFailureRedelivers(t *testing.T) {
	h := newProcHarness(t)
	h.whisper.err = errors.New("whisper: exit status 1")

	err := h.proc.Handle(context.Background(), jobMessage("uploads/1-a.mp3"))
	require.Error(t, err)
	assert.Empty(t, h.results.saved)
}

func TestProcessor_SaveFailureRedelivers(t *testing.T) {
	h := newProcHarness(t)
	h.results.saveErr = errors.New("put object: slow down")

	err := h.proc.Handle(context.Background(), jobMessage("uploads/1-a.mp3"))
	require.Error(t, err)

	require.Len(t, h.status.events, 1)
	assert.Equal(t, domain.StatusTranscriptionStarted, h.status.events[0].Status)
}

func TestProcessor_StartedPublishFailureStopsEarly(t *testing.T) {
	h := newProcHarness(t)
	h.status.failOnStatus = domain.StatusTranscriptionStarted

	err := h.proc.Handle(context.Background(), jobMessage("uploads/1-a.mp3"))
	require.Error(t, err)
	assert.ErrorContains(t, err, "publish")

	assert.Empty(t, h.objects.downloads, "nothing is downloaded when the announcement fails")
	assert.Empty(t, h.results.saved)
}

func TestProcessor_CompletedPublishFailureRedelivers(t *testing.T) {
	h := newProcHarness(t)
	h.status.failOnStatus = domain.StatusTranscriptionCompleted

	err := h.proc.Handle(context.Background(), jobMessage("uploads/1-a.mp3"))
	require.Error(t, err)

	// The transcript made it to storage; redelivery repeats the pipeline.
	require.Len(t, h.results.saved, 1)
}

func TestProcessor_SkipsTestEvent(t *testing.T) {
	h := newProcHarness(t)
	msg := queue.Message{
		MessageID: "msg-1",
		Body:      []byte(`{"Service":"Amazon S3","Event":"s3:TestEvent","Bucket":"audio"}`),
	}

	err := h.proc.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Empty(t, h.status.events)
	assert.Empty(t, h.objects.downloads)
}

func TestProcessor_DropsUnparsableMessage(t *testing.T) {
	h := newProcHarness(t)
	msg := queue.Message{MessageID: "msg-1", Body: []byte("definitely not json")}

	err := h.proc.Handle(context.Background(), msg)
	require.NoError(t, err, "a poison message must not redeliver forever")
	assert.Empty(t, h.status.events)
}

func TestProcessor_ProcessesAllRecordsInMessage(t *testing.T) {
	h := newProcHarness(t)

	err := h.proc.Handle(context.Background(), jobMessage("uploads/1-a.mp3", "uploads/2-b.wav"))
	require.NoError(t, err)

	require.Len(t, h.status.events, 4)
	assert.Equal(t, "uploads/1-a.mp3", h.status.events[0].FileName)
	assert.Equal(t, "uploads/1-a.mp3", h.status.events[1].FileName)
	assert.Equal(t, "uploads/2-b.wav", h.status.events[2].FileName)
	assert.Equal(t, "uploads/2-b.wav", h.status.events[3].FileName)
	require.Len(t, h.results.saved, 2)
}
