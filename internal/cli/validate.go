package cli

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/fpang/product-catalog/internal/auth"
	"github.com/rs/zerolog/log"
)

// ResolvePaths checks that every path exists and returns them as absolute
// paths. Exits fatally on the first missing path.
func ResolvePaths(paths []string) []string {
	resolved := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				log.Fatal().Str("path", p).Msg("Path not found")
			}
			log.Fatal().Err(err).Str("path", p).Msg("Failed to access path")
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		resolved = append(resolved, p)
	}
	return resolved
}

// HandleKeyError processes auth.KeyError and exits with appropriate messaging.
func HandleKeyError(err error) {
	log.Fatal().Err(err).Msg(KeyErrorMessage(err))
	os.Exit(1)
}

// KeyErrorMessage returns the operator-facing hint for a key failure.
func KeyErrorMessage(err error) string {
	var keyErr *auth.KeyError
	if !errors.As(err, &keyErr) {
		return "unexpected error during API key validation"
	}
	switch keyErr.Type {
	case auth.ErrTypeNoKey:
		return "No API key configured. Set " + auth.KeyEnv + " or " + auth.KeyFileEnv
	case auth.ErrTypeInvalidKey:
		return "Invalid API key. Please check your API key and try again"
	case auth.ErrTypeNetworkError:
		return "Network error. Please check your internet connection"
	case auth.ErrTypeQuotaExceeded:
		return "API quota exceeded. Please try again later or check your usage limits"
	default:
		return "API key validation failed"
	}
}
