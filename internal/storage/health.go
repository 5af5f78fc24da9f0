package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BucketPingAPI is the slice of the S3 client readiness probes need.
type BucketPingAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// BucketCheck returns a readiness check that verifies the bucket exists
// and is reachable with the current credentials.
func BucketCheck(client BucketPingAPI, bucket string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
			return fmt.Errorf("bucket %s unreachable: %w", bucket, err)
		}
		return nil
	}
}
