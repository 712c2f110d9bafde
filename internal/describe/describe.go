// Package describe turns a product photo into structured catalogue fields
// by asking a vision model and parsing its reply.
package describe

import (
	"context"
	"fmt"
	"time"

	"github.com/fpang/product-catalog/internal/assets"
	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/imaging"
	"github.com/rs/zerolog/log"
)

// Describer generates catalogue fields for one image.
type Describer interface {
	Describe(ctx context.Context, data []byte, mimeType string) (catalog.ProductFields, error)
}

// ProviderError is a failed inference call. RetryAfterHint is honoured by
// the retry policy when HasHint is set.
type ProviderError struct {
	Provider       string
	Code           int
	Message        string
	RetryAfterHint time.Duration
	HasHint        bool
	Err            error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %d %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// RetryAfter reports the provider's requested wait, if any.
func (e *ProviderError) RetryAfter() (time.Duration, bool) {
	return e.RetryAfterHint, e.HasHint
}

// request is a prepared image plus the rendered user prompt.
type request struct {
	image  imaging.Prepared
	prompt string
}

func buildRequest(data []byte, mimeType string, maxEdge int) request {
	if maxEdge == 0 {
		maxEdge = imaging.DefaultMaxEdge
	}
	p, err := imaging.Prepare(data, mimeType, maxEdge)
	if err != nil {
		log.Debug().Err(err).Str("mime_type", mimeType).Msg("Sending original image bytes")
	}
	return request{image: p, prompt: assets.RenderCatalogImagePrompt(p.Metadata)}
}

// Static returns the same fields for every image. Fn, when set, is called
// instead so tests can vary the result per call.
type Static struct {
	Fields catalog.ProductFields
	Fn     func(ctx context.Context, data []byte, mimeType string) (catalog.ProductFields, error)
}

func (s Static) Describe(ctx context.Context, data []byte, mimeType string) (catalog.ProductFields, error) {
	if s.Fn != nil {
		return s.Fn(ctx, data, mimeType)
	}
	return s.Fields, nil
}

// DryRunFields is what the dry-run describer reports.
var DryRunFields = catalog.ProductFields{
	ProductName: "Sample Product",
	Description: "Placeholder description generated without calling a model.",
	Features:    []string{"Dry run"},
	Dimensions:  "N/A",
	Materials:   "N/A",
	Categories:  []string{"Uncategorized"},
}

var (
	_ Describer = (*Gemini)(nil)
	_ Describer = (*Vertex)(nil)
	_ Describer = Static{}
)
