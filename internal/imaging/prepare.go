// Package imaging prepares product photos before they are sent to a vision
// model: EXIF orientation is applied, large images are downscaled, and the
// result is re-encoded as JPEG. Camera metadata is extracted as a prompt hint.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoding
)

// DefaultMaxEdge is the longest edge sent to the model. Larger images cost
// more tokens without improving product descriptions.
const DefaultMaxEdge = 1536

// jpegQuality is used when re-encoding prepared images.
const jpegQuality = 85

// Prepared is an image ready for inference.
type Prepared struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
	// Metadata is a short human-readable summary of camera EXIF fields,
	// empty when none are present.
	Metadata string
}

// Prepare decodes data, applies EXIF orientation, downscales so neither
// edge exceeds maxEdge, and re-encodes as JPEG. Images that cannot be
// decoded are returned unchanged with an error so callers can still send
// the original bytes.
func Prepare(data []byte, mimeType string, maxEdge int) (Prepared, error) {
	orig := Prepared{Data: data, MIMEType: mimeType, Metadata: Metadata(data)}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return orig, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := FitWithin(bounds.Dx(), bounds.Dy(), maxEdge)
	if w != bounds.Dx() || h != bounds.Dy() {
		resized := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		img = resized
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return orig, fmt.Errorf("encode jpeg: %w", err)
	}

	log.Debug().
		Int("orig_width", bounds.Dx()).
		Int("orig_height", bounds.Dy()).
		Int("width", w).
		Int("height", h).
		Int("orig_bytes", len(data)).
		Int("bytes", buf.Len()).
		Msg("Image prepared for inference")

	return Prepared{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    w,
		Height:   h,
		Metadata: orig.Metadata,
	}, nil
}

// FitWithin scales (w, h) down so the longer edge is at most maxEdge,
// preserving aspect ratio. Sizes already within bounds, or a non-positive
// maxEdge, are returned unchanged.
func FitWithin(w, h, maxEdge int) (int, int) {
	if maxEdge <= 0 || (w <= maxEdge && h <= maxEdge) {
		return w, h
	}
	if w >= h {
		return maxEdge, max(1, h*maxEdge/w)
	}
	return max(1, w*maxEdge/h), maxEdge
}

// Metadata summarises the camera EXIF fields of data. It returns an empty
// string when the image carries no readable EXIF block.
func Metadata(data []byte) string {
	exif, err := imagemeta.Decode(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	var parts []string
	camera := strings.TrimSpace(strings.TrimSpace(exif.Make) + " " + strings.TrimSpace(exif.Model))
	if camera != "" {
		parts = append(parts, "Camera: "+camera)
	}
	if t := exif.DateTimeOriginal(); !t.IsZero() {
		parts = append(parts, "Taken: "+t.Format("2006-01-02"))
	}
	return strings.Join(parts, "\n")
}
