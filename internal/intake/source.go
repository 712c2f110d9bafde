package intake

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultFormFields are the multipart fields that carry files.
var DefaultFormFields = []string{"images", "files"}

// FromMultipart lists the files under fields of form, in field order and
// then submission order. With no fields, DefaultFormFields is used.
func FromMultipart(form *multipart.Form, fields ...string) []Upload {
	if form == nil {
		return nil
	}
	if len(fields) == 0 {
		fields = DefaultFormFields
	}
	var out []Upload
	for _, field := range fields {
		for _, fh := range form.File[field] {
			out = append(out, Upload{
				Name:     fh.Filename,
				MIMEType: headerType(fh),
				Size:     fh.Size,
				Open: func() (io.ReadCloser, error) {
					return fh.Open()
				},
			})
		}
	}
	return out
}

func headerType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		if byExt := typeByExtension(fh.Filename); byExt != "" {
			return byExt
		}
	}
	return ct
}

// FromPaths lists local files. Directories are walked recursively and their
// files added in lexical order. Hidden files are ignored.
func FromPaths(paths []string) ([]Upload, error) {
	var out []Upload
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("path not found: %s", p)
			}
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			u, err := fileUpload(p, info.Size())
			if err != nil {
				return nil, err
			}
			out = append(out, u)
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Error accessing path, skipping")
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") && path != p {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type().IsRegular() {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", p, err)
		}
		sort.Strings(found)
		for _, path := range found {
			fi, err := os.Stat(path)
			if err != nil {
				continue
			}
			u, err := fileUpload(path, fi.Size())
			if err != nil {
				return nil, err
			}
			out = append(out, u)
		}
	}
	return out, nil
}

func fileUpload(path string, size int64) (Upload, error) {
	mimeType := typeByExtension(path)
	if mimeType == "" {
		sniffed, err := sniff(path)
		if err != nil {
			return Upload{}, err
		}
		mimeType = sniffed
	}
	return Upload{
		Name:     filepath.Base(path),
		MIMEType: mimeType,
		Size:     size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func typeByExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".zip":
		return "application/zip"
	case "":
		return ""
	}
	t := mime.TypeByExtension(ext)
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return t
}

// sniff reads the first 512 bytes of path and applies content sniffing.
func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	buf := make([]byte, 512)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	ct := http.DetectContentType(buf[:n])
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct, nil
}
