package storage

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// DefaultCleanupAge is how old an image must be before CleanupOlderThan
// removes it by default.
const DefaultCleanupAge = 7 * 24 * time.Hour

// Delete removes one object.
func (u *S3Uploader) Delete(ctx context.Context, key string) error {
	_, err := u.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &u.Bucket,
		Key:    &key,
	})
	if err != nil {
		return wrapErr("delete", key, err)
	}
	return nil
}

// List returns up to max objects under prefix. A max of zero lists
// everything.
func (u *S3Uploader) List(ctx context.Context, prefix string, max int) ([]Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: &u.Bucket,
		Prefix: aws.String(prefix),
	}
	if max > 0 && max < 1000 {
		input.MaxKeys = aws.Int32(int32(max))
	}

	var objects []Object
	paginator := s3.NewListObjectsV2Paginator(u.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return objects, wrapErr("list", prefix, err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, Object{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
			if max > 0 && len(objects) >= max {
				return objects, nil
			}
		}
	}
	return objects, nil
}

// CleanupOlderThan deletes every object under prefix last modified more
// than age ago, returning the number removed. Deletion continues past
// individual failures; the first failure is returned.
func (u *S3Uploader) CleanupOlderThan(ctx context.Context, prefix string, age time.Duration) (int, error) {
	objects, err := u.List(ctx, prefix, 0)
	if err != nil {
		return 0, err
	}
	cutoff := u.now().Add(-age)

	deleted := 0
	var firstErr error
	for _, obj := range objects {
		if !obj.LastModified.Before(cutoff) {
			continue
		}
		if err := u.Delete(ctx, obj.Key); err != nil {
			log.Warn().Err(err).Str("key", obj.Key).Msg("Failed to delete old image")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		deleted++
	}

	log.Info().
		Str("prefix", prefix).
		Int("scanned", len(objects)).
		Int("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Old image cleanup complete")
	return deleted, firstErr
}
