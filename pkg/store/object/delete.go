package object

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shelfd/shelfd/internal/logger"
)

// deleteBatchSize is the S3 DeleteObjects limit per request.
const deleteBatchSize = 1000

// DeleteObject removes one object. Deleting a missing key succeeds.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.retryTransient(ctx, "DeleteObject", func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil {
		if isNotFoundError(err) || isNoSuchBucketError(err) {
			return nil
		}
		return fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}

	return nil
}

// DeleteObjects removes a batch of objects, splitting into requests of
// at most 1000 keys. Per-key failures are collected into one error.
func (s *Store) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	for start := 0; start < len(keys); start += deleteBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+deleteBatchSize, len(keys))
		batch := keys[start:end]

		objects := make([]types.ObjectIdentifier, len(batch))
		for i, key := range batch {
			objects[i] = types.ObjectIdentifier{Key: aws.String(key)}
		}

		var out *s3.DeleteObjectsOutput
		err := s.retryTransient(ctx, "DeleteObjects", func() error {
			var err error
			out, err = s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(bucket),
				Delete: &types.Delete{
					Objects: objects,
					Quiet:   aws.Bool(true),
				},
			})
			return err
		})
		if err != nil {
			if isNoSuchBucketError(err) {
				return nil
			}
			return fmt.Errorf("failed to delete batch in %q: %w", bucket, err)
		}

		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return fmt.Errorf("failed to delete %d objects in %q (first: %s: %s)",
				len(out.Errors), bucket, aws.ToString(first.Key), aws.ToString(first.Message))
		}
	}

	return nil
}

// DeletePrefix removes every object under the prefix and returns how
// many were deleted. Used by permanent library purge and by trash
// cleanup of whole directory subtrees.
func (s *Store) DeletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	deleted := 0
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			if isNoSuchBucketError(err) {
				return deleted, nil
			}
			return deleted, fmt.Errorf("failed to list %s/%s*: %w", bucket, prefix, err)
		}

		keys := make([]string, 0, len(page.Contents))
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if err := s.DeleteObjects(ctx, bucket, keys); err != nil {
			return deleted, err
		}
		deleted += len(keys)
	}

	if deleted > 0 {
		logger.Debug("deleted objects under prefix", "bucket", bucket, "prefix", prefix, "count", deleted)
	}
	return deleted, nil
}
