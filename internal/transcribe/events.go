package transcribe

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/MarkDM/whisper-aws-serverless/internal/storage"
)

// s3Event is the notification document S3 publishes to the job queue.
type s3Event struct {
	Event   string `json:"Event"`
	Records []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key string `json:"key"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// ParseObjectEvents extracts the created objects from an S3 event
// notification body. The handshake S3 sends when a notification is first
// configured (s3:TestEvent) yields no objects and no error.
func ParseObjectEvents(body []byte) ([]storage.Object, error) {
	var event s3Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("parse s3 event: %w", err)
	}
	if event.Event == "s3:TestEvent" {
		return nil, nil
	}

	objects := make([]storage.Object, 0, len(event.Records))
	for _, record := range event.Records {
		// Object keys arrive URL-encoded, spaces as '+'.
		key, err := url.QueryUnescape(record.S3.Object.Key)
		if err != nil {
			return nil, fmt.Errorf("decode object key %q: %w", record.S3.Object.Key, err)
		}
		if record.S3.Bucket.Name == "" || key == "" {
			continue
		}
		objects = append(objects, storage.Object{Bucket: record.S3.Bucket.Name, Key: key})
	}
	return objects, nil
}
