// Package server exposes the generation pipeline and version store over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/raphaelgruber/genvault-go/internal/hub"
	"github.com/raphaelgruber/genvault-go/internal/metrics"
	"github.com/raphaelgruber/genvault-go/internal/models"
	"github.com/raphaelgruber/genvault-go/internal/service"
	"github.com/raphaelgruber/genvault-go/internal/store"
)

// Server holds the HTTP handler set and its dependencies.
type Server struct {
	runner   *service.Runner
	registry *service.Registry
	store    *store.Store
	hub      *hub.Hub
	metrics  *metrics.Collector
	logger   *slog.Logger
	version  string
}

// New wires the HTTP surface to the pipeline. metrics may be nil.
func New(runner *service.Runner, registry *service.Registry, versions *store.Store, events *hub.Hub, collector *metrics.Collector, version string, logger *slog.Logger) *Server {
	return &Server{
		runner:   runner,
		registry: registry,
		store:    versions,
		hub:      events,
		metrics:  collector,
		logger:   logger,
		version:  version,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /generation/generate", s.handleGenerate)
	mux.HandleFunc("GET /generation/jobs", s.handleListJobs)
	mux.HandleFunc("GET /generation/jobs/{job_id}", s.handleGetJob)
	mux.HandleFunc("GET /generation/artifacts", s.handleListArtifacts)
	mux.HandleFunc("GET /generation/artifacts/{artifact_id}", s.handleGetArtifact)
	mux.HandleFunc("GET /generation/artifacts/{artifact_id}/versions", s.handleListVersions)
	mux.HandleFunc("GET /generation/artifacts/{artifact_id}/versions/{version}", s.handleGetVersion)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)

	return LoggingMiddleware(s.logger)(mux)
}

// GenerateRequest is the body of POST /generation/generate.
type GenerateRequest struct {
	ArtifactType string         `json:"artifact_type"`
	RequestText  string         `json:"request_text"`
	Options      map[string]any `json:"options,omitempty"`
}

// GenerateResponse acknowledges an accepted generation job.
type GenerateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobResponse is the polling view of a job.
type JobResponse struct {
	JobID            string         `json:"job_id"`
	ArtifactType     string         `json:"artifact_type"`
	RequestText      string         `json:"request_text"`
	Options          map[string]any `json:"options,omitempty"`
	Status           string         `json:"status"`
	ResultArtifactID string         `json:"result_artifact_id,omitempty"`
	ResultVersion    int            `json:"result_version,omitempty"`
	Error            string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func jobResponse(job service.Job) JobResponse {
	return JobResponse{
		JobID:            job.ID,
		ArtifactType:     job.ArtifactType,
		RequestText:      job.RequestText,
		Options:          job.Options,
		Status:           string(job.Status),
		ResultArtifactID: job.ResultArtifactID,
		ResultVersion:    job.ResultVersion,
		Error:            job.Error,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	jobID, err := s.runner.Submit(r.Context(), req.ArtifactType, req.RequestText, req.Options)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{JobID: jobID, Status: string(service.JobStatusQueued)})
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.registry.List(r.Context())
	out := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobResponse(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.registry.Get(r.Context(), r.PathValue("job_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

func (s *Server) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListArtifactIDs()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"artifacts": ids})
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	current, err := s.store.GetCurrent(r.PathValue("artifact_id"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	artifactID := r.PathValue("artifact_id")
	versions, err := s.store.ListVersions(artifactID)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ArtifactHistory{ArtifactID: artifactID, Versions: versions})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, "version must be a positive integer")
		return
	}

	v, err := s.store.GetVersion(r.PathValue("artifact_id"), version)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ready": true, "version": s.version})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusNotFound, "metrics not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// writeServiceError maps registry/runner errors to HTTP status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeStoreError maps version store errors to HTTP status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidArtifactID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrStoreUnavailable):
		s.logger.Error("version store unavailable", "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
