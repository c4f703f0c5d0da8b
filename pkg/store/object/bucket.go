package object

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shelfd/shelfd/internal/logger"
)

// CreateBucket creates a bucket if it does not already exist.
//
// Returns true if the bucket was created, false if we already own it.
// Any other failure propagates.
func (s *Store) CreateBucket(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var err error
	retryErr := s.retryTransient(ctx, "CreateBucket", func() error {
		_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(name),
		})
		return err
	})
	if retryErr != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(retryErr, &owned) {
			return false, nil
		}
		return false, fmt.Errorf("failed to create bucket %q: %w", name, retryErr)
	}

	logger.Info("created bucket", "bucket", name)
	return true, nil
}

// BucketExists reports whether the bucket exists and is accessible.
func (s *Store) BucketExists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) || isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %q: %w", name, err)
	}
	return true, nil
}

// DeleteBucket removes an empty bucket. Callers must delete all
// objects first (see DeletePrefix). Missing buckets are treated as
// already deleted.
func (s *Store) DeleteBucket(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		if isNoSuchBucketError(err) {
			return nil
		}
		return fmt.Errorf("failed to delete bucket %q: %w", name, err)
	}

	logger.Info("deleted bucket", "bucket", name)
	return nil
}
