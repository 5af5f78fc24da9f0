package storage

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	"github.com/MarkDM/whisper-aws-serverless/internal/domain"
	"github.com/MarkDM/whisper-aws-serverless/internal/platform/awsutil"
)

var (
	testEndpoint string
	lsContainer  testcontainers.Container
)

func TestMain(m *testing.M) {
	// Parse flags to check for -short
	flag.Parse()

	// Skip container setup if running in short mode
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	var err error
	lsContainer, err = localstack.Run(ctx, "localstack/localstack:3.8")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start localstack container: %v\n", err)
		os.Exit(1)
	}

	endpoint, err := lsContainer.Endpoint(ctx, "http")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get localstack endpoint: %v\n", err)
		os.Exit(1)
	}
	testEndpoint = endpoint

	code := m.Run()
	if err := lsContainer.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate localstack container: %v\n", err)
	}
	os.Exit(code)
}

func setupTestClient(t *testing.T) *s3.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	return awsutil.NewS3(cfg, testEndpoint)
}

func createTestBucket(t *testing.T, client *s3.Client) string {
	t.Helper()
	bucket := fmt.Sprintf("audio-test-%d", time.Now().UnixNano())
	_, err := client.CreateBucket(context.Background(), &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)
	return bucket
}

func TestUploaderRoundTrip(t *testing.T) {
	client := setupTestClient(t)
	bucket := createTestBucket(t, client)
	ctx := context.Background()

	uploader := NewUploader(client, bucket, clockwork.NewRealClock())
	obj, err := uploader.Upload(ctx, "voice memo.wav", "audio/wav", "job-123", strings.NewReader("fake audio bytes"))
	require.NoError(t, err)

	assert.Equal(t, bucket, obj.Bucket)
	assert.True(t, strings.HasPrefix(obj.Key, "uploads/"), "key %q must land under uploads/", obj.Key)
	assert.True(t, strings.HasSuffix(obj.Key, "-voice-memo.wav"), "key %q must keep the sanitized name", obj.Key)

	store := NewObjectStore(client)
	jobID, err := store.JobID(ctx, obj)
	require.NoError(t, err)
	assert.Equal(t, "job-123", jobID)

	path, err := store.Download(ctx, obj, t.TempDir())
	require.NoError(t, err)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fake audio bytes", string(content))
	assert.Equal(t, ".wav", filepath.Ext(path))
}

func TestResultStoreRoundTrip(t *testing.T) {
	client := setupTestClient(t)
	bucket := createTestBucket(t, client)
	ctx := context.Background()

	results := NewResultStore(client, bucket)
	doc := domain.TranscriptResult{
		Transcription: "And so my fellow Americans.",
		Model:         "tiny",
		Source:        domain.TranscriptSource{Bucket: bucket, Key: "uploads/1700000000-clip.wav"},
		CompletedAt:   time.Date(2024, 5, 4, 12, 0, 0, 0, time.UTC),
	}

	saved, err := results.Save(ctx, Object{Bucket: bucket, Key: "uploads/1700000000-clip.wav"}, doc)
	require.NoError(t, err)
	assert.Equal(t, "processed/uploads/1700000000-clip.wav.json", saved.Key)

	fetched, err := results.Fetch(ctx, "uploads/1700000000-clip.wav")
	require.NoError(t, err)
	assert.Equal(t, doc, fetched)
}

func TestResultStoreFetch_NoTranscriptYet(t *testing.T) {
	client := setupTestClient(t)
	bucket := createTestBucket(t, client)

	_, err := NewResultStore(client, bucket).Fetch(context.Background(), "uploads/never-processed.wav")

	require.ErrorIs(t, err, domain.ErrTranscriptNotFound)
}

func TestBucketCheckAgainstRealBucket(t *testing.T) {
	client := setupTestClient(t)
	bucket := createTestBucket(t, client)
	ctx := context.Background()

	require.NoError(t, BucketCheck(client, bucket)(ctx))
	require.Error(t, BucketCheck(client, bucket+"-missing")(ctx))
}
