package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	// minPartSize is the S3 minimum multipart part size (5 MB).
	minPartSize int64 = 5 * 1024 * 1024
	// defaultPartConcurrency bounds parts in flight per upload.
	defaultPartConcurrency = 4
)

func (u *S3Uploader) partSize() int64 {
	if u.PartSize < minPartSize {
		return minPartSize
	}
	return u.PartSize
}

func (u *S3Uploader) partConcurrency() int {
	if u.PartConcurrency <= 0 {
		return defaultPartConcurrency
	}
	return u.PartConcurrency
}

// splitParts cuts data into consecutive slices of at most size bytes.
func splitParts(data []byte, size int64) [][]byte {
	var parts [][]byte
	for off := int64(0); off < int64(len(data)); off += size {
		end := min(off+size, int64(len(data)))
		parts = append(parts, data[off:end])
	}
	return parts
}

// uploadMultipart creates a multipart upload, sends parts concurrently, and
// completes it. Any failure aborts the upload so no parts are left behind.
func (u *S3Uploader) uploadMultipart(ctx context.Context, key string, data []byte, originalName, mimeType string) error {
	created, err := u.Client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:               &u.Bucket,
		Key:                  &key,
		ContentType:          &mimeType,
		CacheControl:         aws.String(cacheControl),
		ContentDisposition:   aws.String(contentDisposition(originalName)),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
		Metadata:             metadata(originalName, u.now()),
		Tagging:              aws.String(projectTag),
	})
	if err != nil {
		return wrapErr("create-multipart", key, err)
	}
	uploadID := created.UploadId

	chunks := splitParts(data, u.partSize())
	completed := make([]s3types.CompletedPart, len(chunks))

	log.Debug().
		Str("key", key).
		Int("parts", len(chunks)).
		Int("bytes", len(data)).
		Msg("Starting multipart upload")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.partConcurrency())
	for i, chunk := range chunks {
		partNumber := int32(i + 1)
		g.Go(func() error {
			out, err := u.Client.UploadPart(gctx, &s3.UploadPartInput{
				Bucket:        &u.Bucket,
				Key:           &key,
				UploadId:      uploadID,
				PartNumber:    aws.Int32(partNumber),
				Body:          bytes.NewReader(chunk),
				ContentLength: aws.Int64(int64(len(chunk))),
			})
			if err != nil {
				return fmt.Errorf("part %d: %w", partNumber, err)
			}
			completed[i] = s3types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(partNumber)}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return u.abort(ctx, key, uploadID, wrapErr("upload-part", key, err))
	}

	_, err = u.Client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          &u.Bucket,
		Key:             &key,
		UploadId:        uploadID,
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return u.abort(ctx, key, uploadID, wrapErr("complete-multipart", key, err))
	}
	return nil
}

func (u *S3Uploader) abort(ctx context.Context, key string, uploadID *string, cause error) error {
	_, err := u.Client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   &u.Bucket,
		Key:      &key,
		UploadId: uploadID,
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to abort multipart upload")
		return errors.Join(cause, wrapErr("abort-multipart", key, err))
	}
	return cause
}
