// Package auth resolves and validates the Gemini API key used by the
// description step.
package auth

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// KeyEnv holds the API key directly.
	KeyEnv = "GEMINI_API_KEY"
	// KeyFileEnv names a file whose trimmed contents are the API key.
	KeyFileEnv = "GEMINI_API_KEY_FILE"
)

// GetAPIKey retrieves the Gemini API key from available sources.
// Priority order:
//  1. GEMINI_API_KEY environment variable
//  2. the file named by GEMINI_API_KEY_FILE
func GetAPIKey() (string, error) {
	if key := os.Getenv(KeyEnv); key != "" {
		log.Debug().Msg("Using API key from environment variable")
		return key, nil
	}

	path := os.Getenv(KeyFileEnv)
	if path == "" {
		return "", &KeyError{
			Type:    ErrTypeNoKey,
			Message: fmt.Sprintf("API key not found. Set %s or %s", KeyEnv, KeyFileEnv),
		}
	}

	key, err := readKeyFile(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Failed to read API key file")
		return "", &KeyError{Type: ErrTypeNoKey, Message: "API key file unreadable", Err: err}
	}
	log.Debug().Str("file", path).Msg("Using API key from file")
	return key, nil
}

// readKeyFile returns the trimmed contents of path. Group or world readable
// files are accepted with a warning.
func readKeyFile(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if fi.Mode().Perm()&0o077 != 0 {
		log.Warn().
			Str("file", path).
			Str("mode", fi.Mode().Perm().String()).
			Msg("API key file is readable by other users; chmod 600 recommended")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return key, nil
}
