package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
)

var (
	// ErrRecordNotFound is returned when no record carries the given name.
	ErrRecordNotFound = errors.New("upload record not found")
	// ErrDuplicateRecord is returned by Add for an already-tracked name.
	ErrDuplicateRecord = errors.New("upload record already exists")
	// ErrRecordInFlight is returned by Remove while a record is transient.
	ErrRecordInFlight = errors.New("upload record is still in flight")
	// ErrInvalidTransition is returned for out-of-order local transitions.
	ErrInvalidTransition = errors.New("invalid record transition")
)

// timestampPrefix is the `<unix>-` part the server prepends to object keys.
var timestampPrefix = regexp.MustCompile(`^\d+-`)

// Tracker holds upload records in creation order and reconciles status
// events against them. Safe for concurrent use: upload progress callbacks
// and the event stream consumer run on different goroutines.
type Tracker struct {
	mu      sync.Mutex
	records []*UploadRecord
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Add registers a new pending record for fileName.
func (t *Tracker) Add(fileName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.find(fileName) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateRecord, fileName)
	}
	t.records = append(t.records, &UploadRecord{
		FileName: fileName,
		Status:   StatusPending,
	})
	return nil
}

// UploadStarted transitions a pending record to uploading.
func (t *Tracker) UploadStarted(fileName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.find(fileName)
	if r == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, fileName)
	}
	if r.Status != StatusPending {
		return fmt.Errorf("%w: upload start from %s", ErrInvalidTransition, r.Status)
	}
	r.Status = StatusUploading
	return nil
}

// SetProgress records upload progress, clamped to 0-100. Progress reported
// outside the uploading state is dropped: a final reader callback can trail
// the server's response.
func (t *Tracker) SetProgress(fileName string, percent int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.find(fileName)
	if r == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, fileName)
	}
	if r.Status != StatusUploading {
		return nil
	}
	r.Progress = min(max(percent, 0), 100)
	return nil
}

// UploadSucceeded transitions an uploading record to success and stores the
// job id and object key from the server's receipt.
func (t *Tracker) UploadSucceeded(fileName, jobID, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.find(fileName)
	if r == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, fileName)
	}
	if r.Status != StatusUploading {
		return fmt.Errorf("%w: upload success from %s", ErrInvalidTransition, r.Status)
	}
	r.Status = StatusSuccess
	r.Progress = 100
	r.JobID = jobID
	r.Key = key
	return nil
}

// UploadFailed transitions a pending or uploading record to the terminal
// error state.
func (t *Tracker) UploadFailed(fileName string, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.find(fileName)
	if r == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, fileName)
	}
	if r.Status != StatusPending && r.Status != StatusUploading {
		return fmt.Errorf("%w: upload failure from %s", ErrInvalidTransition, r.Status)
	}
	r.Status = StatusError
	if cause != nil {
		r.Err = cause.Error()
	}
	return nil
}

// Remove drops a record. Refused while the record is transient, so an
// in-flight upload or transcription cannot be orphaned by accident.
func (t *Tracker) Remove(fileName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, r := range t.records {
		if r.FileName != fileName {
			continue
		}
		if r.Status.transient() {
			return fmt.Errorf("%w: %s is %s", ErrRecordInFlight, fileName, r.Status)
		}
		t.records = append(t.records[:i], t.records[i+1:]...)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrRecordNotFound, fileName)
}

// ToggleExpanded flips the collapsed/expanded detail view of a record.
func (t *Tracker) ToggleExpanded(fileName string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.find(fileName)
	if r == nil {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, fileName)
	}
	r.Expanded = !r.Expanded
	return nil
}

// Apply reconciles one raw event payload against the records and returns a
// copy of the record it updated. Malformed payloads and events matching no
// record are discarded; Apply never panics and never mutates more than one
// record.
func (t *Tracker) Apply(raw []byte) (UploadRecord, bool) {
	event, err := domain.ParseStatusEvent(raw)
	if err != nil {
		slog.Warn("Discarding malformed status event", "error", err)
		return UploadRecord{}, false
	}
	if event.Status != domain.StatusTranscriptionStarted && event.Status != domain.StatusTranscriptionCompleted {
		slog.Debug("Ignoring unknown status", "status", event.Status)
		return UploadRecord{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.match(event)
	if r == nil {
		slog.Debug("Status event matched no record", "filename", event.FileName, "job_id", event.JobID)
		return UploadRecord{}, false
	}

	switch event.Status {
	case domain.StatusTranscriptionStarted:
		r.Status = StatusProcessing
	case domain.StatusTranscriptionCompleted:
		if event.Transcript == "" {
			slog.Debug("Completed event without transcript", "filename", event.FileName)
			return UploadRecord{}, false
		}
		r.Status = StatusCompleted
		r.Transcript = event.Transcript
	}
	// A fuzzy-matched record adopts the event's job id so later events for
	// the same job match precisely.
	if r.JobID == "" && event.JobID != "" {
		r.JobID = event.JobID
	}
	return *r, true
}

// match finds the record an event addresses. Job id equality outranks every
// filename heuristic; among the heuristics the first record to match in
// creation order wins, trying on each record: raw name equality, normalized
// basename equality, then the timestamped-suffix fallback.
func (t *Tracker) match(event domain.StatusEvent) *UploadRecord {
	if event.JobID != "" {
		for _, r := range t.records {
			if !r.Status.Terminal() && r.JobID == event.JobID {
				return r
			}
		}
	}
	if event.FileName == "" {
		return nil
	}

	eventBase := baseName(event.FileName)
	eventNorm := normalizeName(event.FileName)
	for _, r := range t.records {
		if r.Status.Terminal() {
			continue
		}
		if r.FileName == event.FileName {
			return r
		}
		if eventNorm != "" && normalizeName(r.FileName) == eventNorm {
			return r
		}
		if rb := baseName(r.FileName); rb != "" && strings.HasSuffix(eventBase, "-"+rb) {
			return r
		}
	}
	return nil
}

// Records returns a copy of every record in creation order.
func (t *Tracker) Records() []UploadRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]UploadRecord, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, *r)
	}
	return out
}

// Record returns a copy of the named record.
func (t *Tracker) Record(fileName string) (UploadRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if r := t.find(fileName); r != nil {
		return *r, true
	}
	return UploadRecord{}, false
}

// AllTerminal reports whether every record reached completed or error.
// False while the tracker is empty, so callers do not exit before adding.
func (t *Tracker) AllTerminal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.records) == 0 {
		return false
	}
	for _, r := range t.records {
		if !r.Status.Terminal() {
			return false
		}
	}
	return true
}

// find locates a record by name. Caller holds the lock.
func (t *Tracker) find(fileName string) *UploadRecord {
	for _, r := range t.records {
		if r.FileName == fileName {
			return r
		}
	}
	return nil
}

// baseName strips path segments and the extension.
func baseName(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// normalizeName additionally drops the upload timestamp prefix, so the
// server's rewritten key and the client's original name compare equal.
func normalizeName(name string) string {
	return timestampPrefix.ReplaceAllString(baseName(name), "")
}
