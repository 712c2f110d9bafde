// Package archive expands uploaded zip archives into individual image work
// items. Expansion is lazy: a member is only inflated when the returned
// sequence reaches it.
package archive

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"path"
	"regexp"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"

	"github.com/fpang/product-catalog/internal/catalog"
)

// ErrArchiveCorrupt is returned when an archive cannot be opened. It only
// aborts that archive.
var ErrArchiveCorrupt = errors.New("archive corrupt")

func init() {
	// Archives produced by our own download path and by 7-Zip may use
	// Zstandard (method 93).
	zip.RegisterDecompressor(zstd.ZipMethodWinZip, zstd.ZipDecompressor())
}

// imageMemberPattern matches the member names treated as images.
var imageMemberPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)

// IsImageMember is the default member filter.
func IsImageMember(name string) bool {
	return imageMemberPattern.MatchString(name)
}

// Options control which members become work items.
type Options struct {
	// Filter selects member names. Nil means IsImageMember.
	Filter func(name string) bool
	// MaxMemberSize drops members whose uncompressed size exceeds it.
	// Zero disables the check.
	MaxMemberSize int64
}

// Expand opens data as a zip archive and returns a sequence of work items,
// one per qualifying member. Directories, resource forks, non-matching
// names, oversized members, and members that fail to inflate are skipped.
func Expand(data []byte, opts Options) (iter.Seq[catalog.WorkItem], error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveCorrupt, err)
	}
	filter := opts.Filter
	if filter == nil {
		filter = IsImageMember
	}

	return func(yield func(catalog.WorkItem) bool) {
		for _, f := range zr.File {
			if !qualifies(f, filter) {
				continue
			}
			if opts.MaxMemberSize > 0 && f.UncompressedSize64 > uint64(opts.MaxMemberSize) {
				log.Debug().Str("member", f.Name).Uint64("size", f.UncompressedSize64).Msg("Skipping oversized archive member")
				continue
			}
			body, err := readMember(f, opts.MaxMemberSize)
			if err != nil {
				log.Warn().Err(err).Str("member", f.Name).Msg("Skipping unreadable archive member")
				continue
			}
			item := catalog.WorkItem{
				Data:     body,
				FileName: path.Base(f.Name),
				MIMEType: memberMIMEType(f.Name),
			}
			if !yield(item) {
				return
			}
		}
	}, nil
}

// ExpandAll collects every work item of Expand into a slice.
func ExpandAll(data []byte, opts Options) ([]catalog.WorkItem, error) {
	seq, err := Expand(data, opts)
	if err != nil {
		return nil, err
	}
	var items []catalog.WorkItem
	for item := range seq {
		items = append(items, item)
	}
	return items, nil
}

func qualifies(f *zip.File, filter func(string) bool) bool {
	if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
		return false
	}
	if strings.HasPrefix(f.Name, "__MACOSX/") || strings.HasPrefix(path.Base(f.Name), "._") {
		return false
	}
	return filter(f.Name)
}

// readMember inflates one member. The header size is not trusted: reading
// stops one byte past the limit so a lying header is still caught.
func readMember(f *zip.File, limit int64) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open member: %w", err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read member: %w", err)
	}
	if limit > 0 && int64(len(body)) > limit {
		return nil, fmt.Errorf("member exceeds %d bytes", limit)
	}
	return body, nil
}

func memberMIMEType(name string) string {
	if strings.EqualFold(path.Ext(name), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
