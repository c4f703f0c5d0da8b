package object

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/shelfd/shelfd/internal/logger"
)

// UploadResult describes a stored object after a successful put or
// multipart completion.
type UploadResult struct {
	Key         string
	Size        int64
	SHA256      string
	ETag        string
	ContentType string
}

// UploadFile stores the complete content in one PutObject call.
//
// The SHA-256 checksum is computed locally over the payload. If the
// bucket is missing, the store creates it and retries the put once;
// a second NoSuchBucket is fatal and propagates.
func (s *Store) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string, metadata map[string]string) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)

	var out *s3.PutObjectOutput
	put := func() error {
		var err error
		out, err = s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
			Metadata:    metadata,
		})
		return err
	}

	err := s.retryTransient(ctx, "PutObject", put)
	if err != nil && isNoSuchBucketError(err) {
		logger.Warn("bucket missing on upload, creating and retrying", "bucket", bucket, "key", key)
		if _, cerr := s.CreateBucket(ctx, bucket); cerr != nil {
			return nil, fmt.Errorf("failed to create missing bucket %q: %w", bucket, cerr)
		}
		err = s.retryTransient(ctx, "PutObject", put)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s/%s: %w", bucket, key, err)
	}

	return &UploadResult{
		Key:         key,
		Size:        int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
		ETag:        trimETag(aws.ToString(out.ETag)),
		ContentType: contentType,
	}, nil
}

// CopyObject performs a server-side copy within one bucket. The
// upload path uses it to promote a staged blob to the version key the
// metadata commit assigned.
func (s *Store) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	source := (&url.URL{Path: bucket + "/" + srcKey}).EscapedPath()
	err := s.retryTransient(ctx, "CopyObject", func() error {
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(bucket),
			Key:        aws.String(dstKey),
			CopySource: aws.String(source),
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s/%s to %s: %w", bucket, srcKey, dstKey, err)
	}
	return nil
}

// trimETag strips the quotes S3 wraps around ETag values.
func trimETag(etag string) string {
	return strings.Trim(etag, `"`)
}
