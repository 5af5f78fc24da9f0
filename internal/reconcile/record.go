package reconcile

// Status is the lifecycle state of a tracked upload.
type Status string

const (
	// StatusPending means the file is selected but not yet sent.
	StatusPending Status = "pending"
	// StatusUploading means bytes are in flight to the server.
	StatusUploading Status = "uploading"
	// StatusSuccess means the server stored the object; transcription has
	// not been observed yet.
	StatusSuccess Status = "success"
	// StatusProcessing means a matching "Transcription started" arrived.
	StatusProcessing Status = "processing"
	// StatusCompleted means the transcript arrived. Terminal.
	StatusCompleted Status = "completed"
	// StatusError means the upload failed. Terminal.
	StatusError Status = "error"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// transient states refuse removal: the upload or its transcription is still
// moving and a matching event may yet arrive.
func (s Status) transient() bool {
	return s == StatusPending || s == StatusUploading || s == StatusProcessing
}

// UploadRecord tracks one file from selection to transcript. FileName is the
// client's original name and the record's identity; Key and JobID are filled
// in from the server's upload receipt.
type UploadRecord struct {
	FileName   string
	Status     Status
	Progress   int
	Transcript string
	Err        string
	JobID      string
	Key        string
	Expanded   bool
}
