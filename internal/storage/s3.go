package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/product-catalog/internal/clock"
)

// projectTag is the URL-encoded object tagging string for cost allocation.
const projectTag = "Project=product-catalog"

// S3API is the subset of *s3.Client used by S3Uploader.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	CreateMultipartUpload(ctx context.Context, in *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, in *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, in *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, in *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Uploader stores images in an S3 bucket. Bodies at or above
// PartSize go through a multipart upload.
type S3Uploader struct {
	Client S3API
	Bucket string
	Region string
	Prefix string
	Clock  clock.Clock

	// PartSize and PartConcurrency tune multipart uploads. Zero values
	// use 5 MiB parts with 4 in flight.
	PartSize        int64
	PartConcurrency int
}

var _ Uploader = (*S3Uploader)(nil)

// NewS3Uploader returns an uploader for bucket with the default tuning.
func NewS3Uploader(client S3API, bucket, region, prefix string) *S3Uploader {
	return &S3Uploader{
		Client: client,
		Bucket: bucket,
		Region: region,
		Prefix: prefix,
		Clock:  clock.Real{},
	}
}

// URL returns the permanent virtual-hosted URL for key.
func (u *S3Uploader) URL(key string) string {
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.Bucket, u.Region, key)
}

func (u *S3Uploader) now() time.Time {
	if u.Clock == nil {
		return time.Now()
	}
	return u.Clock.Now()
}

// Upload writes data under a fresh key and returns its URL.
func (u *S3Uploader) Upload(ctx context.Context, data []byte, originalName, mimeType string) (string, error) {
	key := NewKey(u.Prefix, originalName)
	start := time.Now()

	var err error
	if int64(len(data)) >= u.partSize() {
		err = u.uploadMultipart(ctx, key, data, originalName, mimeType)
	} else {
		err = u.put(ctx, key, data, originalName, mimeType)
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Int("bytes", len(data)).Msg("S3 upload failed")
		return "", err
	}

	log.Debug().
		Str("key", key).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Image uploaded to S3")
	return u.URL(key), nil
}

func (u *S3Uploader) put(ctx context.Context, key string, data []byte, originalName, mimeType string) error {
	_, err := u.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               &u.Bucket,
		Key:                  &key,
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          &mimeType,
		CacheControl:         aws.String(cacheControl),
		ContentDisposition:   aws.String(contentDisposition(originalName)),
		ServerSideEncryption: s3types.ServerSideEncryptionAes256,
		Metadata:             metadata(originalName, u.now()),
		Tagging:              aws.String(projectTag),
	})
	if err != nil {
		return wrapErr("put", key, err)
	}
	return nil
}
