// Package server exposes the catalogue pipeline over HTTP.
package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/clock"
	"github.com/fpang/product-catalog/internal/config"
	"github.com/fpang/product-catalog/internal/describe"
	"github.com/fpang/product-catalog/internal/export"
	"github.com/fpang/product-catalog/internal/intake"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/fpang/product-catalog/internal/pipeline"
	"github.com/fpang/product-catalog/internal/storage"
	"github.com/fpang/product-catalog/internal/store"
	"github.com/fpang/product-catalog/internal/validate"
)

const (
	// multipartMemory is the in-memory threshold before parts spill to disk.
	multipartMemory = 32 * config.MiB
	// bodyOverhead is allowed on top of MaxTotalSize for multipart framing.
	bodyOverhead = 10 * config.MiB
)

// Server holds the dependencies shared by every request.
type Server struct {
	Limits    config.Limits
	Uploader  storage.Uploader
	Describer describe.Describer
	// Reports, when set, keeps each finished report for later download.
	Reports store.ReportStore
	Clock   clock.Clock
	Metrics metrics.Sink
	// Prometheus, when set, is served on GET /metrics.
	Prometheus *metrics.Prometheus
	Version    string
}

// Handler returns the routed, middleware-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/create-catalogue", s.handleCatalogue)
	mux.HandleFunc("POST /api/process-images", s.handleCatalogue)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)
	mux.HandleFunc("GET /api/reports/{id}/export", s.handleExport)
	if s.Prometheus != nil {
		mux.Handle("GET /metrics", s.Prometheus.Handler())
	}
	return withObservability(s.sink(), withCORS(mux))
}

func (s *Server) sink() metrics.Sink {
	if s.Metrics == nil {
		return metrics.Nop{}
	}
	return s.Metrics
}

func (s *Server) clock() clock.Clock {
	if s.Clock == nil {
		return clock.Real{}
	}
	return s.Clock
}

type catalogueResponse struct {
	Success   bool                  `json:"success"`
	Total     int                   `json:"total"`
	Completed int                   `json:"completed"`
	Failed    int                   `json:"failed"`
	Data      []catalog.ItemOutcome `json:"data"`
	ReportID  string                `json:"reportId,omitempty"`
}

func (s *Server) handleCatalogue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.Limits.MaxTotalSize+bodyOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respondRejection(w, validate.ReasonTotalTooLarge,
				fmt.Sprintf("Total upload size exceeds %s limit.", config.FormatSize(s.Limits.MaxTotalSize)))
			return
		}
		httpError(w, http.StatusBadRequest, "Invalid form data", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	ctx := r.Context()
	collected, err := intake.Collect(ctx, s.Limits, s.clock(), intake.FromMultipart(r.MultipartForm))
	s.sink().SkippedFiles(collected.Skipped)
	if err != nil {
		if ve, ok := validate.AsValidationError(err); ok {
			respondRejection(w, ve.Reason, ve.Message)
			return
		}
		respondFailure(w, err)
		return
	}

	sched := &pipeline.Scheduler{
		Uploader:  s.Uploader,
		Describer: s.Describer,
		Limits:    s.Limits,
		Clock:     s.clock(),
		Recorder:  s.sink(),
	}
	rep, err := sched.Run(ctx, collected.Items, nil)
	if err != nil {
		respondFailure(w, err)
		return
	}

	resp := catalogueResponse{
		Success:   true,
		Total:     rep.TotalCount,
		Completed: rep.CompletedCount,
		Failed:    rep.FailedCount,
		Data:      rep.Items,
	}
	if s.Reports != nil {
		id := store.NewReportID()
		if err := s.Reports.Put(ctx, id, rep); err != nil {
			log.Warn().Err(err).Str("report_id", id).Msg("Failed to store report")
		} else {
			resp.ReportID = id
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status": "ok",
		"time":   s.clock().Now().UTC().Format(time.RFC3339),
	}
	if s.Version != "" {
		body["version"] = s.Version
	}
	respondJSON(w, http.StatusOK, body)
}

// loadReport resolves the {id} path value. It writes the error response and
// returns nil when the report cannot be served.
func (s *Server) loadReport(w http.ResponseWriter, r *http.Request) *catalog.BatchReport {
	id := r.PathValue("id")
	if !store.ValidID(id) {
		httpError(w, http.StatusBadRequest, "invalid report id")
		return nil
	}
	if s.Reports == nil {
		httpError(w, http.StatusNotFound, "report not found")
		return nil
	}
	rep, err := s.Reports.Get(r.Context(), id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load report", err.Error())
		return nil
	}
	if rep == nil {
		httpError(w, http.StatusNotFound, "report not found")
		return nil
	}
	return rep
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep := s.loadReport(w, r)
	if rep == nil {
		return
	}
	respondJSON(w, http.StatusOK, catalogueResponse{
		Success:   true,
		Total:     rep.TotalCount,
		Completed: rep.CompletedCount,
		Failed:    rep.FailedCount,
		Data:      rep.Items,
		ReportID:  r.PathValue("id"),
	})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	rep := s.loadReport(w, r)
	if rep == nil {
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, *rep); err != nil {
		httpError(w, http.StatusInternalServerError, "failed to export report", err.Error())
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="catalogue-%s.%s"`, r.PathValue("id"), format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
