package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
)

const (
	processedPrefix   = "processed/"
	resultSuffix      = ".json"
	resultContentType = "application/json"
)

// ResultKey maps an audio object key to the key its transcript is stored
// under, mirroring the worker's processed/<key>.json layout.
func ResultKey(key string) string {
	return processedPrefix + key + resultSuffix
}

// ResultsAPI is the slice of the S3 client the result store needs.
type ResultsAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ResultStore reads and writes transcript documents. The worker saves into
// the bucket each job arrived from; fetches go against the configured
// bucket.
type ResultStore struct {
	client ResultsAPI
	bucket string
}

func NewResultStore(client ResultsAPI, bucket string) *ResultStore {
	return &ResultStore{
		client: client,
		bucket: bucket,
	}
}

// Save stores the transcript produced for src and returns the stored
// object.
func (s *ResultStore) Save(ctx context.Context, src Object, result domain.TranscriptResult) (Object, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return Object{}, fmt.Errorf("marshal transcript for %s: %w", src.Key, err)
	}

	key := ResultKey(src.Key)
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(src.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(resultContentType),
	}); err != nil {
		return Object{}, fmt.Errorf("store transcript %s: %w", key, err)
	}

	return Object{Bucket: src.Bucket, Key: key}, nil
}

// Fetch loads the transcript for the given audio object key. Returns
// domain.ErrTranscriptNotFound when no transcript exists yet.
func (s *ResultStore) Fetch(ctx context.Context, key string) (domain.TranscriptResult, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ResultKey(key)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return domain.TranscriptResult{}, domain.ErrTranscriptNotFound
		}
		return domain.TranscriptResult{}, fmt.Errorf("fetch transcript for %s: %w", key, err)
	}
	defer out.Body.Close()

	var result domain.TranscriptResult
	if err := json.NewDecoder(out.Body).Decode(&result); err != nil {
		return domain.TranscriptResult{}, fmt.Errorf("decode transcript for %s: %w", key, err)
	}
	return result, nil
}
