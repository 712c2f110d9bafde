// Package validate decides whether an upload may be scheduled. It drops
// individual files that are too large or of an unsupported type, and rejects
// the whole request when the surviving set breaks the count or aggregate
// size limits.
package validate

import (
	"fmt"
	"strings"

	"github.com/fpang/product-catalog/internal/config"
)

// Reason enumerates why a request was rejected.
type Reason int

const (
	// ReasonNone means the request was accepted.
	ReasonNone Reason = iota
	// ReasonTooManyFiles means the file count exceeds MaxFiles.
	ReasonTooManyFiles
	// ReasonTotalTooLarge means the aggregate size exceeds MaxTotalSize.
	ReasonTotalTooLarge
	// ReasonNoValidFiles means nothing survived per-file filtering.
	ReasonNoValidFiles
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonTooManyFiles:
		return "too_many_files"
	case ReasonTotalTooLarge:
		return "total_too_large"
	case ReasonNoValidFiles:
		return "no_valid_files"
	default:
		return fmt.Sprintf("reason_%d", int(r))
	}
}

// acceptedImageTypes are the image MIME types processed directly.
var acceptedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// archiveTypes are expanded into their image members.
var archiveTypes = map[string]bool{
	"application/zip":              true,
	"application/x-zip-compressed": true,
}

// IsImageType reports whether mimeType is an accepted image type.
func IsImageType(mimeType string) bool {
	return acceptedImageTypes[normalize(mimeType)]
}

// IsArchiveType reports whether mimeType is an accepted archive type.
func IsArchiveType(mimeType string) bool {
	return archiveTypes[normalize(mimeType)]
}

func normalize(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Candidate is one incoming file as declared by the client.
type Candidate struct {
	Name     string
	MIMEType string
	Size     int64
}

// Totals is the already-accepted set a new batch is added to.
type Totals struct {
	Count int
	Bytes int64
}

// Decision is the outcome of Check. Kept lists the indices of candidates that
// survived per-file filtering, in input order.
type Decision struct {
	Accepted bool
	Reason   Reason
	Message  string
	Kept     []int
	// Dropped counts candidates silently excluded for size or type.
	Dropped int
}

// Err returns nil for accepted decisions and a *ValidationError otherwise.
func (d Decision) Err() error {
	if d.Accepted {
		return nil
	}
	return &ValidationError{Reason: d.Reason, Message: d.Message}
}

// Check applies the per-file filters and the aggregate limits. It performs
// no I/O.
func Check(limits config.Limits, existing Totals, candidates []Candidate) Decision {
	d := Decision{Kept: make([]int, 0, len(candidates))}
	var keptBytes int64
	for i, c := range candidates {
		if !IsImageType(c.MIMEType) && !IsArchiveType(c.MIMEType) {
			d.Dropped++
			continue
		}
		if c.Size > limits.MaxFileSize {
			d.Dropped++
			continue
		}
		d.Kept = append(d.Kept, i)
		keptBytes += c.Size
	}

	switch {
	case existing.Count+len(d.Kept) > limits.MaxFiles:
		return d.reject(ReasonTooManyFiles, TooManyFilesMessage(limits.MaxFiles))
	case existing.Bytes+keptBytes > limits.MaxTotalSize:
		return d.reject(ReasonTotalTooLarge, fmt.Sprintf("Total upload size exceeds %s limit.", config.FormatSize(limits.MaxTotalSize)))
	case existing.Count+len(d.Kept) == 0:
		return d.reject(ReasonNoValidFiles, NoValidFilesMessage)
	}
	d.Accepted = true
	return d
}

// CheckCount re-applies the file-count limits to the final work-item count,
// after archives have been expanded.
func CheckCount(limits config.Limits, n int) error {
	switch {
	case n == 0:
		return &ValidationError{Reason: ReasonNoValidFiles, Message: NoValidFilesMessage}
	case n > limits.MaxFiles:
		return &ValidationError{Reason: ReasonTooManyFiles, Message: TooManyFilesMessage(limits.MaxFiles)}
	}
	return nil
}

func (d Decision) reject(r Reason, msg string) Decision {
	d.Accepted = false
	d.Reason = r
	d.Message = msg
	return d
}

// NoValidFilesMessage is shown when an upload contains no usable images.
const NoValidFilesMessage = "No valid images found in the upload."

// TooManyFilesMessage is shown when an upload exceeds the file-count limit.
func TooManyFilesMessage(max int) string {
	return fmt.Sprintf("Too many images. Maximum %d images allowed.", max)
}
