package auth

import (
	"context"
	"strings"
	"time"

	"github.com/fpang/product-catalog/internal/describe"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// KeyError represents a specific type of API key failure.
type KeyError struct {
	Type    KeyErrorType
	Message string
	Err     error
}

// KeyErrorType categorizes key failures.
type KeyErrorType int

const (
	// ErrTypeNoKey indicates no API key was found.
	ErrTypeNoKey KeyErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (t KeyErrorType) String() string {
	switch t {
	case ErrTypeNoKey:
		return "no_key"
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

func (e *KeyError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// ValidateAPIKey verifies the key behind client with a minimal call against
// model (describe.DefaultGeminiModel when empty). It returns nil if the key
// works, or a *KeyError describing the failure.
func ValidateAPIKey(ctx context.Context, client *genai.Client, model string) error {
	if model == "" {
		model = describe.DefaultGeminiModel
	}
	log.Debug().Str("model", model).Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := client.Models.GenerateContent(ctx, model, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	if err != nil {
		keyErr := classifyError(err)
		emitValidation(keyErr.Type.String(), elapsed)
		return keyErr
	}

	if resp == nil || len(resp.Candidates) == 0 {
		log.Warn().Msg("API key validation returned empty response")
		emitValidation("empty_response", elapsed)
		return &KeyError{
			Type:    ErrTypeUnknown,
			Message: "API returned empty response",
		}
	}

	emitValidation("success", elapsed)
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

func emitValidation(result string, elapsed time.Duration) {
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()
}

// messagePatterns classify errors that carry no HTTP status, checked in
// order against the lower-cased error text.
var messagePatterns = []struct {
	typ     KeyErrorType
	message string
	needles []string
}{
	{ErrTypeInvalidKey, "API key is invalid or has been revoked",
		[]string{"api key not valid", "invalid api key", "api_key_invalid", "permission denied"}},
	{ErrTypeQuotaExceeded, "API quota exceeded or rate limited",
		[]string{"quota", "resource exhausted", "rate limit"}},
	{ErrTypeNetworkError, "Network error - check your internet connection",
		[]string{"connection", "network", "timeout", "dial", "no such host", "unreachable"}},
}

// classifyError maps err onto a KeyError, preferring the HTTP status of a
// Gemini API error and falling back to message patterns.
func classifyError(err error) *KeyError {
	if err == nil {
		return nil
	}
	if apiErr, ok := describe.AsGeminiError(err); ok {
		return classifyAPIError(apiErr)
	}

	text := strings.ToLower(err.Error())
	for _, p := range messagePatterns {
		for _, needle := range p.needles {
			if strings.Contains(text, needle) {
				log.Error().Err(err).Stringer("type", p.typ).Msg("API key check failed")
				return &KeyError{Type: p.typ, Message: p.message, Err: err}
			}
		}
	}
	log.Error().Err(err).Msg("Unknown error during API validation")
	return &KeyError{Type: ErrTypeUnknown, Message: "Failed to validate API key", Err: err}
}

// classifyAPIError categorizes a Gemini API error by HTTP status.
func classifyAPIError(err genai.APIError) *KeyError {
	ke := &KeyError{Type: ErrTypeUnknown, Message: err.Message, Err: err}
	switch err.Code {
	case 400:
		ke.Type, ke.Message = ErrTypeInvalidKey, "Bad request - API key may be malformed"
	case 401, 403:
		ke.Type, ke.Message = ErrTypeInvalidKey, "API key is invalid, expired, or lacks permissions"
	case 429:
		ke.Type, ke.Message = ErrTypeQuotaExceeded, "API rate limit exceeded - try again later"
	case 500, 502, 503, 504:
		ke.Type, ke.Message = ErrTypeNetworkError, "Gemini API server error - try again later"
	}
	log.Error().
		Int("code", err.Code).
		Str("status", err.Status).
		Stringer("type", ke.Type).
		Msg("Gemini API rejected key check")
	return ke
}
