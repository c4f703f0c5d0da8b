// Package object wraps S3-compatible object storage for shelfd.
//
// Each library owns one bucket. File content is written under
// version-scoped storage keys, so objects are immutable once committed
// and a key is never reused across versions. The store offers a
// single-put path for small files, a multipart path for large ones,
// streaming downloads, presigned transfer URLs, and bucket lifecycle.
package object

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/cenkalti/backoff/v4"

	"github.com/shelfd/shelfd/internal/logger"
)

// Config holds the connection and retry settings for the object store.
type Config struct {
	// Endpoint is the S3 endpoint URL (empty for AWS).
	Endpoint string

	// Region is the S3 region.
	Region string

	// AccessKeyID and SecretAccessKey are static credentials. When both
	// are empty the SDK's default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// ForcePathStyle forces path-style addressing (required for MinIO
	// and Localstack).
	ForcePathStyle bool

	// MaxRetries bounds retry attempts for transient errors (default: 3).
	MaxRetries uint

	// InitialBackoff is the first retry delay (default: 100ms).
	InitialBackoff time.Duration

	// MaxBackoff caps the retry delay (default: 2s).
	MaxBackoff time.Duration
}

// Store is an S3-backed object store adapter.
//
// Thread Safety: safe for concurrent use. Multipart state lives server
// side, keyed by upload ID; the adapter itself is stateless between
// calls.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient

	maxRetries     uint
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// New creates an object store from configuration, building the S3
// client the same way for AWS and S3-compatible endpoints.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return NewWithClient(client, cfg), nil
}

// NewWithClient creates an object store around an existing S3 client.
// Used by tests and by callers that share one client across stores.
func NewWithClient(client *s3.Client, cfg Config) *Store {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	initialBackoff := cfg.InitialBackoff
	if initialBackoff == 0 {
		initialBackoff = 100 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 2 * time.Second
	}

	return &Store{
		client:         client,
		presign:        s3.NewPresignClient(client),
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// retryTransient runs op, retrying transient failures with exponential
// backoff up to the configured attempt bound. Non-transient errors
// abort immediately and propagate unchanged.
func (s *Store) retryTransient(ctx context.Context, name string, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialBackoff
	bo.MaxInterval = s.maxBackoff
	bo.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return backoff.Permanent(err)
		}
		logger.Debug("retrying transient object store error",
			"operation", name, "attempt", attempt, "max_retries", s.maxRetries, "error", err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(s.maxRetries)), ctx))
}
