package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/product-catalog/internal/metrics"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter { return sr.ResponseWriter }

// withObservability logs API requests and records one request metric per
// call, keyed by the matched route pattern.
func withObservability(sink metrics.Sink, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(sr, r)
		elapsed := time.Since(start)

		// ServeMux fills in Pattern on the shared request.
		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = normalizeEndpoint(r.URL.Path)
		}
		sink.Request(endpoint, sr.statusCode, elapsed)

		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("endpoint", endpoint).
				Int("status", sr.statusCode).
				Dur("duration", elapsed).
				Msg("API request")
		}
	})
}

// normalizeEndpoint maps unrouted paths to low-cardinality names by
// collapsing ID-like segments.
func normalizeEndpoint(path string) string {
	segments := strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
	for i, seg := range segments {
		if looksLikeID(seg) {
			segments[i] = "*"
		}
	}
	return "/" + strings.Join(segments, "/")
}

// looksLikeID reports whether a path segment is a UUID or a run of at least
// eight hex digits.
func looksLikeID(s string) bool {
	if uuid.Validate(s) == nil {
		return true
	}
	return len(s) >= 8 && strings.Trim(strings.ToLower(s), "0123456789abcdef") == ""
}

// withCORS admits browser front ends served from localhost.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); localOrigin(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func localOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "http" {
		return false
	}
	host := u.Hostname()
	return host == "localhost" || host == "127.0.0.1"
}
