// Package intake turns raw uploads into the ordered work-item list the
// pipeline runs on: it gates the request, reads the surviving files, and
// expands archives.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/fpang/product-catalog/internal/archive"
	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/clock"
	"github.com/fpang/product-catalog/internal/config"
	"github.com/fpang/product-catalog/internal/validate"
)

// Upload is one incoming file. Open is called at most once, and only for
// files that pass the gate.
type Upload struct {
	Name     string
	MIMEType string
	Size     int64
	Open     func() (io.ReadCloser, error)
}

// Result is the outcome of Collect.
type Result struct {
	Items []catalog.WorkItem
	// Skipped counts uploads dropped for size or type, including files whose
	// actual size exceeded the limit once read.
	Skipped int
	// CorruptArchives names archives that could not be opened.
	CorruptArchives []string
	// Bytes is the total payload of Items, after archive expansion.
	Bytes int64
}

// Collect validates files and produces work items in submission order.
// Archive members are inserted where their archive was. A rejection is
// returned as a *validate.ValidationError and nothing beyond the gate is
// read in that case.
func Collect(ctx context.Context, limits config.Limits, clk clock.Clock, files []Upload) (Result, error) {
	if clk == nil {
		clk = clock.Real{}
	}
	candidates := make([]validate.Candidate, len(files))
	for i, f := range files {
		candidates[i] = validate.Candidate{Name: f.Name, MIMEType: f.MIMEType, Size: f.Size}
	}
	decision := validate.Check(limits, validate.Totals{}, candidates)
	res := Result{Skipped: decision.Dropped}
	if !decision.Accepted {
		log.Info().
			Str("reason", decision.Reason.String()).
			Int("files", len(files)).
			Msg("Upload rejected")
		return res, decision.Err()
	}

	for _, idx := range decision.Kept {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		f := files[idx]
		data, err := readLimited(f, limits.MaxFileSize)
		if errors.Is(err, errTooLarge) {
			log.Debug().Str("file", f.Name).Msg("Skipping file larger than declared")
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("read %s: %w", f.Name, err)
		}

		if validate.IsArchiveType(f.MIMEType) {
			seq, err := archive.Expand(data, archive.Options{MaxMemberSize: limits.MaxFileSize})
			if err != nil {
				log.Warn().Err(err).Str("archive", f.Name).Msg("Skipping corrupt archive")
				res.CorruptArchives = append(res.CorruptArchives, f.Name)
				continue
			}
			for item := range seq {
				res.Items = append(res.Items, item)
				// Stop inflating once the count check is bound to fail.
				if len(res.Items) > limits.MaxFiles {
					break
				}
			}
			continue
		}

		res.Items = append(res.Items, catalog.WorkItem{
			Data:     data,
			FileName: fmt.Sprintf("image-%d-%d.jpg", clk.Now().UnixMilli(), len(res.Items)),
			MIMEType: f.MIMEType,
		})
	}

	if err := validate.CheckCount(limits, len(res.Items)); err != nil {
		return res, err
	}
	for _, item := range res.Items {
		res.Bytes += item.Size()
	}

	log.Debug().
		Int("uploads", len(files)).
		Int("items", len(res.Items)).
		Int("skipped", res.Skipped).
		Int("corrupt_archives", len(res.CorruptArchives)).
		Int64("bytes", res.Bytes).
		Msg("Uploads collected")
	return res, nil
}

var errTooLarge = errors.New("file exceeds size limit")

func readLimited(f Upload, maxSize int64) ([]byte, error) {
	if f.Open == nil {
		return nil, fmt.Errorf("no content")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r := io.Reader(rc)
	if maxSize > 0 {
		r = io.LimitReader(rc, maxSize+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, errTooLarge
	}
	return data, nil
}
