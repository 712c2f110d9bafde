package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/fpang/product-catalog/internal/validate"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("Failed to write JSON response")
	}
}

// httpError sends a JSON error response. The clientMsg is returned to the caller.
// Optional internalDetails are logged server-side but never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}

// respondRejection reports a request refused by the validation gate.
func respondRejection(w http.ResponseWriter, reason validate.Reason, message string) {
	log.Info().Str("reason", reason.String()).Msg("Request rejected")
	respondJSON(w, http.StatusBadRequest, map[string]string{
		"error":  message,
		"reason": reason.String(),
	})
}

type failureResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// respondFailure reports an unexpected whole-request failure.
func respondFailure(w http.ResponseWriter, err error) {
	log.Error().Err(err).Msg("Failed to process images")
	respondJSON(w, http.StatusInternalServerError, failureResponse{
		Error:   "Failed to process images",
		Details: err.Error(),
	})
}
