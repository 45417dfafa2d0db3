package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ObjectStoreConfig configures the time-series object-store backend.
type ObjectStoreConfig struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses the default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required object-store configuration is present.
func (c *ObjectStoreConfig) Validate() error {
	if c.Bucket == "" {
		return NewBackendError(ErrConfig, "init", "", fmt.Errorf("bucket is required"))
	}
	return nil
}

// ObjectStoreBackend persists BackendRecords as individual S3 objects keyed
// by entry and timestamp. One object per write_record call.
type ObjectStoreBackend struct {
	client *s3.Client
	cfg    ObjectStoreConfig
}

// NewObjectStoreBackend creates an S3-backed Backend using the AWS SDK's
// default credential chain (env vars, shared config, IAM role).
func NewObjectStoreBackend(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStoreBackend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, NewBackendError(ErrUnavailable, "init", cfg.Bucket, err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &ObjectStoreBackend{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		cfg:    cfg,
	}, nil
}

// Initialize ensures the bucket exists and is reachable. Idempotent: a
// bucket that already exists (including "already owned by you") is success.
func (b *ObjectStoreBackend) Initialize(ctx context.Context) error {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.cfg.Bucket)})
	if err == nil {
		return nil
	}

	_, createErr := b.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(b.cfg.Bucket)})
	if createErr == nil {
		return nil
	}
	if isBucketAlreadyOwned(createErr) {
		return nil
	}

	kind := ClassifyError(err)
	return NewBackendError(kind, "init", b.cfg.Bucket, err)
}

func isBucketAlreadyOwned(err error) bool {
	var alreadyOwned *types.BucketAlreadyOwnedByYou
	var alreadyExists *types.BucketAlreadyExists
	return errors.As(err, &alreadyOwned) || errors.As(err, &alreadyExists)
}

// WriteRecord puts a single object at {prefix}/{entry}/{timestamp_us}.blob
// with labels carried as S3 user metadata.
func (b *ObjectStoreBackend) WriteRecord(ctx context.Context, entry string, timestampUs int64, payload []byte, labels map[string]string) error {
	key := b.objectKey(entry, timestampUs)

	metadata := make(map[string]string, len(labels))
	for k, v := range labels {
		metadata[k] = v
	}

	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(b.cfg.Bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(payload),
		Metadata: metadata,
	})
	if err != nil {
		kind := ClassifyError(err)
		return NewBackendError(kind, "write", key, err)
	}
	return nil
}

// HealthCheck probes bucket reachability.
func (b *ObjectStoreBackend) HealthCheck(ctx context.Context) bool {
	_, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.cfg.Bucket)})
	return err == nil
}

// BackendType identifies this backend.
func (b *ObjectStoreBackend) BackendType() string {
	return "object-store"
}

// objectKey computes the S3 key for an entry+timestamp pair.
func (b *ObjectStoreBackend) objectKey(entry string, timestampUs int64) string {
	parts := make([]string, 0, 3)
	if b.cfg.Prefix != "" {
		parts = append(parts, strings.Trim(b.cfg.Prefix, "/"))
	}
	parts = append(parts, entry, fmt.Sprintf("%d.blob", timestampUs))
	return strings.Join(parts, "/")
}

var _ Backend = (*ObjectStoreBackend)(nil)
