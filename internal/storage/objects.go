package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectsAPI is the slice of the S3 client the worker-side object store
// needs.
type ObjectsAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// ObjectStore downloads uploaded audio for the worker and reads back the
// job id stamped on it at upload time.
type ObjectStore struct {
	client ObjectsAPI
}

func NewObjectStore(client ObjectsAPI) *ObjectStore {
	return &ObjectStore{client: client}
}

// Download streams the object into a fresh temp file under dir, keeping
// the original extension so the transcriber can tell formats apart.
// The caller removes the file when done.
func (o *ObjectStore) Download(ctx context.Context, obj Object, dir string) (string, error) {
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return "", fmt.Errorf("get object %s: %w", obj.Key, err)
	}
	defer out.Body.Close()

	f, err := os.CreateTemp(dir, "job-*"+path.Ext(obj.Key))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("download %s: %w", obj.Key, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close %s: %w", f.Name(), err)
	}

	return f.Name(), nil
}

// JobID returns the job id from the object's metadata, or empty when the
// object carries none. Objects placed in the bucket outside the upload
// endpoint legitimately have no job id.
func (o *ObjectStore) JobID(ctx context.Context, obj Object) (string, error) {
	out, err := o.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return "", fmt.Errorf("head object %s: %w", obj.Key, err)
	}
	return out.Metadata[MetadataJobID], nil
}
