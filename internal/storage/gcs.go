package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
)

// maxKeyCollisions bounds how many fresh keys are tried when the
// does-not-exist precondition fails.
const maxKeyCollisions = 3

// GCSUploader stores images in a Google Cloud Storage bucket. Writes use a
// does-not-exist precondition so an existing object is never overwritten.
type GCSUploader struct {
	Bucket *gcs.BucketHandle
	Name   string
	Prefix string
}

var _ Uploader = (*GCSUploader)(nil)

// NewGCSUploader returns an uploader for the named bucket.
func NewGCSUploader(client *gcs.Client, bucket, prefix string) *GCSUploader {
	return &GCSUploader{
		Bucket: client.Bucket(bucket),
		Name:   bucket,
		Prefix: prefix,
	}
}

// URL returns the public URL for key.
func (u *GCSUploader) URL(key string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", u.Name, key)
}

// Upload writes data under a fresh key and returns its URL.
func (u *GCSUploader) Upload(ctx context.Context, data []byte, originalName, mimeType string) (string, error) {
	var lastErr error
	for range maxKeyCollisions {
		key := NewKey(u.Prefix, originalName)
		err := u.write(ctx, key, data, originalName, mimeType)
		if err == nil {
			return u.URL(key), nil
		}
		lastErr = err
		if !isPreconditionFailed(err) {
			break
		}
		log.Warn().Str("key", key).Msg("GCS object already exists, retrying with a new key")
	}
	return "", lastErr
}

func (u *GCSUploader) write(ctx context.Context, key string, data []byte, originalName, mimeType string) error {
	w := u.Bucket.Object(key).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = mimeType
	w.CacheControl = cacheControl
	w.ContentDisposition = contentDisposition(originalName)
	w.Metadata = metadata(originalName, time.Now())

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return gcsErr("write", key, err)
	}
	if err := w.Close(); err != nil {
		return gcsErr("close", key, err)
	}
	return nil
}

func gcsErr(op, key string, err error) error {
	e := &Error{Op: op, Key: key, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		e.Code = strconv.Itoa(gerr.Code)
	}
	return e
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
