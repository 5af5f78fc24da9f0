package domain

import "time"

// TranscriptSource names the object a transcript was produced from.
type TranscriptSource struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

// TranscriptResult is the JSON document the worker stores next to the
// audio object once transcription finishes.
type TranscriptResult struct {
	Transcription string           `json:"transcription"`
	Model         string           `json:"model"`
	Source        TranscriptSource `json:"source"`
	CompletedAt   time.Time        `json:"completed_at"`
}
