package cli

import (
	"context"

	"github.com/fpang/product-catalog/internal/auth"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// InitGeminiClient creates a Gemini client from the configured API key and
// validates it against model. Exits fatally on failure.
func InitGeminiClient(ctx context.Context, model string) *genai.Client {
	apiKey, err := auth.GetAPIKey()
	if err != nil {
		HandleKeyError(err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create Gemini client")
	}

	log.Info().Msg("connection successful - Gemini client initialized")

	if err := auth.ValidateAPIKey(ctx, client, model); err != nil {
		HandleKeyError(err)
	}

	log.Info().Msg("API key validation complete - ready for operations")

	return client
}
