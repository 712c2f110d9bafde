package describe

import (
	"context"
	"errors"
	"time"

	"github.com/fpang/product-catalog/internal/assets"
	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/fpang/product-catalog/internal/parser"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-3-flash-preview"

const retryInfoType = "type.googleapis.com/google.rpc.RetryInfo"

// Gemini describes images through the Gemini API.
type Gemini struct {
	client  *genai.Client
	model   string
	maxEdge int
	sink    metrics.Sink
}

// NewGemini wraps client. An empty model selects DefaultGeminiModel and a
// nil sink discards metrics.
func NewGemini(client *genai.Client, model string, sink metrics.Sink) *Gemini {
	if model == "" {
		model = DefaultGeminiModel
	}
	if sink == nil {
		sink = metrics.Nop{}
	}
	return &Gemini{client: client, model: model, sink: sink}
}

// NewGeminiFromKey creates a Gemini API client for apiKey.
func NewGeminiFromKey(ctx context.Context, apiKey, model string, sink metrics.Sink) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return NewGemini(client, model, sink), nil
}

func (g *Gemini) Describe(ctx context.Context, data []byte, mimeType string) (catalog.ProductFields, error) {
	req := buildRequest(data, mimeType, g.maxEdge)

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.CatalogSystemPrompt}},
		},
		ResponseMIMEType: "application/json",
	}
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: req.image.MIMEType, Data: req.image.Data}},
		{Text: req.prompt},
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, []*genai.Content{{Role: "user", Parts: parts}}, config)
	elapsed := time.Since(start)
	if err != nil {
		g.sink.ProviderCall("gemini", "error", elapsed)
		return catalog.ProductFields{}, classifyGemini(err)
	}

	text := resp.Text()
	if text == "" {
		g.sink.ProviderCall("gemini", "empty", elapsed)
		return catalog.ProductFields{}, &ProviderError{Provider: "gemini", Message: "empty response"}
	}
	g.sink.ProviderCall("gemini", "ok", elapsed)

	log.Debug().
		Str("model", g.model).
		Dur("duration", elapsed).
		Int("response_length", len(text)).
		Msg("Gemini description received")

	return parser.Parse(text), nil
}

// classifyGemini converts a failed call into a ProviderError. Transport
// failures and timeouts carry the underlying error text with no code.
func classifyGemini(err error) error {
	apiErr, ok := AsGeminiError(err)
	if !ok {
		log.Warn().Err(err).Msg("Gemini call failed")
		return &ProviderError{Provider: "gemini", Message: err.Error(), Err: err}
	}
	pe := &ProviderError{
		Provider: "gemini",
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Err:      err,
	}
	if d, ok := retryDelay(apiErr.Details); ok {
		pe.RetryAfterHint, pe.HasHint = d, true
	}
	switch {
	case apiErr.Code == 429:
		log.Warn().Int("code", apiErr.Code).Dur("retry_after", pe.RetryAfterHint).Msg("Gemini rate limit exceeded")
	case apiErr.Code >= 500:
		log.Warn().Int("code", apiErr.Code).Str("message", apiErr.Message).Msg("Gemini server error")
	default:
		log.Error().Int("code", apiErr.Code).Str("message", apiErr.Message).Msg("Gemini API error")
	}
	return pe
}

// AsGeminiError finds a Gemini API error in err's chain, by value or by pointer.
func AsGeminiError(err error) (genai.APIError, bool) {
	var ptr *genai.APIError
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	var val genai.APIError
	if errors.As(err, &val) {
		return val, true
	}
	return genai.APIError{}, false
}

// retryDelay finds a google.rpc.RetryInfo entry in details and parses its
// retryDelay, which is a duration string such as "15s".
func retryDelay(details []map[string]any) (time.Duration, bool) {
	for _, d := range details {
		if t, _ := d["@type"].(string); t != retryInfoType {
			continue
		}
		s, _ := d["retryDelay"].(string)
		if s == "" {
			continue
		}
		dur, err := time.ParseDuration(s)
		if err != nil || dur < 0 {
			continue
		}
		return dur, true
	}
	return 0, false
}
