package object

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shelfd/shelfd/internal/logger"
)

// Part records one uploaded part of a multipart upload. The upload
// service accumulates these and passes them back to
// CompleteMultipartUpload.
type Part struct {
	PartNumber int32
	ETag       string
	Size       int64
}

const (
	minPartNumber = 1
	maxPartNumber = 10000
)

// StartMultipartUpload initiates a multipart upload and returns the
// server-side upload ID. If the bucket is missing it is created and
// the initiation retried once.
func (s *Store) StartMultipartUpload(ctx context.Context, bucket, key, contentType string, metadata map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var out *s3.CreateMultipartUploadOutput
	create := func() error {
		var err error
		out, err = s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket:      aws.String(bucket),
			Key:         aws.String(key),
			ContentType: aws.String(contentType),
			Metadata:    metadata,
		})
		return err
	}

	err := s.retryTransient(ctx, "CreateMultipartUpload", create)
	if err != nil && isNoSuchBucketError(err) {
		logger.Warn("bucket missing on multipart start, creating and retrying", "bucket", bucket, "key", key)
		if _, cerr := s.CreateBucket(ctx, bucket); cerr != nil {
			return "", fmt.Errorf("failed to create missing bucket %q: %w", bucket, cerr)
		}
		err = s.retryTransient(ctx, "CreateMultipartUpload", create)
	}
	if err != nil {
		return "", fmt.Errorf("failed to start multipart upload for %s/%s: %w", bucket, key, err)
	}

	return aws.ToString(out.UploadId), nil
}

// UploadPart uploads one part. Parts may be uploaded concurrently;
// part numbers must be unique within [1, 10000].
func (s *Store) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int, data []byte) (*Part, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if partNumber < minPartNumber || partNumber > maxPartNumber {
		return nil, fmt.Errorf("part %d: %w", partNumber, ErrInvalidPartNumber)
	}

	var out *s3.UploadPartOutput
	err := s.retryTransient(ctx, "UploadPart", func() error {
		var err error
		out, err = s.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(bucket),
			Key:        aws.String(key),
			UploadId:   aws.String(uploadID),
			PartNumber: aws.Int32(int32(partNumber)),
			Body:       bytes.NewReader(data),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload part %d of %s/%s: %w", partNumber, bucket, key, err)
	}

	return &Part{
		PartNumber: int32(partNumber),
		ETag:       trimETag(aws.ToString(out.ETag)),
		Size:       int64(len(data)),
	}, nil
}

// CompleteMultipartUpload assembles the uploaded parts into the final
// object. Parts are sorted by part number before completion; the
// object's final size is resolved with a HEAD request.
//
// The returned result carries the multipart ETag, not a SHA-256:
// callers that need a true content hash must compute it over the parts
// before upload.
func (s *Store) CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []Part) (*UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("cannot complete multipart upload %s with no parts", uploadID)
	}

	sorted := make([]Part, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PartNumber < sorted[j].PartNumber
	})

	completed := make([]types.CompletedPart, len(sorted))
	for i, p := range sorted {
		completed[i] = types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		}
	}

	var out *s3.CompleteMultipartUploadOutput
	err := s.retryTransient(ctx, "CompleteMultipartUpload", func() error {
		var err error
		out, err = s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
			Bucket:   aws.String(bucket),
			Key:      aws.String(key),
			UploadId: aws.String(uploadID),
			MultipartUpload: &types.CompletedMultipartUpload{
				Parts: completed,
			},
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete multipart upload for %s/%s: %w", bucket, key, err)
	}

	info, err := s.HeadObject(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve size after multipart completion for %s/%s: %w", bucket, key, err)
	}

	return &UploadResult{
		Key:         key,
		Size:        info.Size,
		ETag:        trimETag(aws.ToString(out.ETag)),
		ContentType: info.ContentType,
	}, nil
}

// AbortMultipartUpload releases server-side multipart state. The
// operation is idempotent: aborting an unknown upload succeeds.
func (s *Store) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		var noSuchUpload *types.NoSuchUpload
		if errors.As(err, &noSuchUpload) || isNoSuchBucketError(err) {
			return nil
		}
		return fmt.Errorf("failed to abort multipart upload for %s/%s: %w", bucket, key, err)
	}

	return nil
}
