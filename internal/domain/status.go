package domain

import (
	"encoding/json"
	"fmt"
)

// Wire statuses published by the worker. The literals are load-bearing:
// clients match on them exactly, and unknown statuses pass through the
// relay untouched so the payload can grow without breaking anyone.
const (
	StatusTranscriptionStarted   = "Transcription started"
	StatusTranscriptionCompleted = "Transcription completed"
)

// StatusEvent is the payload published to the status queue by the worker
// and relayed verbatim to event stream subscribers. FileName carries the
// object key the worker processed; JobID is the correlation id minted at
// upload time, present whenever the worker could read it from object
// metadata. Transcript is inlined on completion.
type StatusEvent struct {
	FileName   string `json:"filename,omitempty"`
	Status     string `json:"status"`
	Transcript string `json:"transcript,omitempty"`
	JobID      string `json:"jobId,omitempty"`
}

// ParseStatusEvent decodes a status payload. Unknown fields are tolerated
// so workers can evolve the payload without breaking older clients; a
// missing status field makes the payload unusable and is rejected.
func ParseStatusEvent(data []byte) (StatusEvent, error) {
	var ev StatusEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return StatusEvent{}, fmt.Errorf("failed to decode status event: %w", err)
	}
	if ev.Status == "" {
		return StatusEvent{}, fmt.Errorf("status event has no status field")
	}
	return ev, nil
}

// UploadReceipt is the server's response to a successful upload.
type UploadReceipt struct {
	FileName string `json:"fileName"`
	Key      string `json:"key"`
	JobID    string `json:"jobId"`
}
