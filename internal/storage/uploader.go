package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"
)

const (
	// MetadataJobID is the S3 user metadata key carrying the job id minted
	// at upload time. The worker reads it back to correlate status events.
	MetadataJobID = "job-id"

	uploadPrefix = "uploads/"

	fallbackFileName    = "audio"
	fallbackContentType = "application/octet-stream"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Object identifies a stored S3 object.
type Object struct {
	Bucket string
	Key    string
}

// Uploader streams audio files into the configured bucket. Keys are
// rewritten to uploads/<unix>-<sanitized name> so repeated uploads of the
// same file never collide.
type Uploader struct {
	uploader *manager.Uploader
	bucket   string
	clock    clockwork.Clock
}

func NewUploader(client manager.UploadAPIClient, bucket string, clock clockwork.Clock) *Uploader {
	return &Uploader{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		clock:    clock,
	}
}

// Upload stores the reader's content under a timestamped key with the job
// id attached as object metadata and returns the stored object.
func (u *Uploader) Upload(ctx context.Context, fileName, contentType, jobID string, r io.Reader) (Object, error) {
	key := fmt.Sprintf("%s%d-%s", uploadPrefix, u.clock.Now().Unix(), SanitizeFileName(fileName))
	if contentType == "" {
		contentType = fallbackContentType
	}

	_, err := u.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
		Metadata:    map[string]string{MetadataJobID: jobID},
	})
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", key, err)
	}

	return Object{Bucket: u.bucket, Key: key}, nil
}

// SanitizeFileName reduces a client-supplied file name to a safe key
// segment: path components are dropped and anything outside
// [a-zA-Z0-9._-] collapses to a dash.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	name = unsafeKeyChars.ReplaceAllString(name, "-")

	switch name {
	case "", ".", "..", "-":
		return fallbackFileName
	}
	return name
}
