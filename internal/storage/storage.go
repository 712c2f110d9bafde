// Package storage persists product images to an object store and returns a
// permanent URL for each. Uploads are safe to retry: every call writes a
// fresh key, so a retried upload leaves a distinct copy rather than
// overwriting.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// Uploader stores one image and returns its permanent URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, originalName, mimeType string) (string, error)
}

// Object describes a stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Error wraps every failure returned by this package.
type Error struct {
	Op  string
	Key string
	// Code is the provider error code when known (e.g. "SlowDown", "412").
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// wrapErr builds an *Error, pulling the smithy API error code when the
// failure came from an AWS service.
func wrapErr(op, key string, err error) error {
	e := &Error{Op: op, Key: key, Err: err}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		e.Code = ae.ErrorCode()
	}
	return e
}

// Cache and disposition headers applied to every stored image.
const (
	cacheControl = "max-age=31536000"
	// keySuffix marks the primary image for a product.
	keySuffix = "-MAIN"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-z0-9._]+`)

// SanitizeName lowercases name and collapses anything outside [a-z0-9._]
// into single dashes. Empty results become "unnamed".
func SanitizeName(name string) string {
	s := unsafeKeyChars.ReplaceAllString(strings.ToLower(name), "-")
	s = strings.Trim(s, "-.")
	if s == "" {
		return "unnamed"
	}
	return s
}

// NewKey returns a fresh object key: <prefix>/<uuid>-<name>-MAIN.
func NewKey(prefix, originalName string) string {
	key := uuid.NewString() + "-" + SanitizeName(originalName) + keySuffix
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		return prefix + "/" + key
	}
	return key
}

func contentDisposition(name string) string {
	return fmt.Sprintf("inline; filename=%q", strings.ReplaceAll(name, `"`, ""))
}

func metadata(originalName string, now time.Time) map[string]string {
	return map[string]string{
		"original-name":    originalName,
		"upload-timestamp": fmt.Sprintf("%d", now.UnixMilli()),
	}
}
