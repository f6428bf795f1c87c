package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Backend saves snapshots as objects in a single S3 bucket, one
// object per session id under Prefix. A save destination of
// `:w s3://bucket/key` resolves to an S3Backend scoped to that bucket.
type S3Backend struct {
	client *s3.Client
	Bucket string
	Prefix string
}

// NewS3Backend loads AWS credentials and region from the environment
// (the same precedence aws-sdk-go-v2's config.LoadDefaultConfig always
// uses: env vars, shared config, then instance role) and returns a
// backend scoped to bucket.
func NewS3Backend(ctx context.Context, bucket, prefix string) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}
	return &S3Backend{client: s3.NewFromConfig(cfg), Bucket: bucket, Prefix: prefix}, nil
}

// NewS3BackendWithCredentials is NewS3Backend for deployments that pin
// an explicit access key pair (e.g. a scoped service credential) instead
// of relying on the default provider chain's environment/instance-role
// discovery.
func NewS3BackendWithCredentials(ctx context.Context, bucket, prefix, accessKeyID, secretAccessKey string) (*S3Backend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("store: load aws config: %w", err)
	}
	return &S3Backend{client: s3.NewFromConfig(cfg), Bucket: bucket, Prefix: prefix}, nil
}

func (b *S3Backend) key(id string) string {
	if b.Prefix == "" {
		return id
	}
	return b.Prefix + "/" + id
}

// Save uploads text as the object for id.
func (b *S3Backend) Save(ctx context.Context, id string, text string) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &b.Bucket,
		Key:    strPtr(b.key(id)),
		Body:   bytes.NewReader([]byte(text)),
	})
	if err != nil {
		return fmt.Errorf("store: put s3://%s/%s: %w", b.Bucket, b.key(id), err)
	}
	return nil
}

// Load downloads the object for id, if one exists.
func (b *S3Backend) Load(ctx context.Context, id string) (string, bool, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.Bucket,
		Key:    strPtr(b.key(id)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("store: get s3://%s/%s: %w", b.Bucket, b.key(id), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("store: read s3://%s/%s: %w", b.Bucket, b.key(id), err)
	}
	return string(data), true, nil
}

func strPtr(s string) *string { return &s }
