package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fedutinova/pagegen/internal/auth"
	"github.com/fedutinova/pagegen/internal/common"
	"github.com/fedutinova/pagegen/internal/config"
	"github.com/fedutinova/pagegen/internal/generate"
	"github.com/fedutinova/pagegen/internal/job"
	"github.com/fedutinova/pagegen/internal/jobstore"
	"github.com/fedutinova/pagegen/internal/llm"
	"github.com/fedutinova/pagegen/internal/storage"
	"github.com/fedutinova/pagegen/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const ServiceName = "ai-frontend-chat-service"

type Handlers struct {
	Runner  *generate.Runner
	Store   *jobstore.Store
	Model   llm.Pinger // optional, used by /ready
	Storage storage.Storage
	Config  config.Config
	Version string

	// SubmitLimit throttles POST /generate when set.
	SubmitLimit func(http.Handler) http.Handler
}

func (h *Handlers) Routers(r chi.Router) {
	// for static file serving for local storage
	if storage.IsLocalMode(h.Config) {
		r.Get("/files/*", h.serveFiles)
	}

	r.Route("/api/ai", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/ready", h.Ready)

		r.Group(func(r chi.Router) {
			if h.Config.AuthEnabled() {
				r.Use(auth.JWTMiddleware(h.Config.JWTSecret, h.Config.JWTIssuer))
			}

			submit := r.With(h.requirePerm(auth.PermGenerateSubmit))
			if h.SubmitLimit != nil {
				submit = submit.With(h.SubmitLimit)
			}
			submit.Post("/generate", h.submitGenerate)

			r.With(h.requirePerm(auth.PermJobRead)).Get("/result/{job_id}", h.getResult)
			r.With(h.requirePerm(auth.PermJobRead)).Get("/jobs", h.listJobs)
			r.With(h.requirePerm(auth.PermStatsRead)).Get("/jobs/stats", h.jobStats)
		})
	})
}

func (h *Handlers) requirePerm(perm string) func(http.Handler) http.Handler {
	if !h.Config.AuthEnabled() {
		return func(next http.Handler) http.Handler { return next }
	}
	return auth.RequirePerm(perm)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

func writeValidation(w http.ResponseWriter, errs validation.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error":   common.ErrValidation.Error(),
		"details": errs,
	})
}

type acceptedJob struct {
	JobID     uuid.UUID  `json:"job_id"`
	Status    job.Status `json:"status"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (h *Handlers) submitGenerate(w http.ResponseWriter, r *http.Request) {
	var req validation.GenerateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, validation.MaxBodyBytes)).Decode(&req); err != nil {
		writeValidation(w, validation.ValidationErrors{{Field: "body", Message: "invalid JSON body"}})
		return
	}

	if err := validation.ValidateGenerateRequest(req); err != nil {
		var verrs validation.ValidationErrors
		if errors.As(err, &verrs) {
			writeValidation(w, verrs)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	j, err := h.Runner.Submit(req.ToJobRequest())
	if err != nil {
		if errors.Is(err, generate.ErrShuttingDown) {
			http.Error(w, "service is shutting down", http.StatusServiceUnavailable)
			return
		}
		slog.Error("failed to submit generation job", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, acceptedJob{JobID: j.ID, Status: j.Status, ExpiresAt: j.ExpiresAt})
}

type jobResult struct {
	JobID  uuid.UUID   `json:"job_id"`
	Status job.Status  `json:"status"`
	Result *job.Result `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

func writeNotFound(w http.ResponseWriter, rawID string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"detail": map[string]string{"job_id": rawID, "status": "not_found"},
	})
}

func (h *Handlers) getResult(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "job_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		writeNotFound(w, raw)
		return
	}

	j, err := h.Store.Get(id)
	if err != nil {
		if common.IsNotFound(err) {
			writeNotFound(w, raw)
			return
		}
		slog.Error("failed to read job", "job_id", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := jobResult{JobID: j.ID, Status: j.Status}
	switch {
	case j.Status == job.StatusFinished && j.Error == "":
		resp.Result = j.Result
	case j.Status == job.StatusFailed:
		resp.Error = j.Error
	}
	writeJSON(w, http.StatusOK, resp)
}

type jobSummary struct {
	JobID     uuid.UUID  `json:"job_id"`
	Status    job.Status `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

type jobList struct {
	Items   []jobSummary `json:"items"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	Size    int          `json:"size"`
	HasMore bool         `json:"has_more"`
}

func queryInt(r *http.Request, key string, def int) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, true
	}
	i, err := strconv.Atoi(v)
	return i, err == nil
}

func (h *Handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	var errs validation.ValidationErrors

	filter := job.Status(r.URL.Query().Get("status"))
	if filter != "" && !filter.Valid() {
		errs = append(errs, common.ValidationError{Field: "status", Message: "unknown job status"})
	}
	page, ok := queryInt(r, "page", 1)
	if !ok {
		errs = append(errs, common.ValidationError{Field: "page", Message: "must be an integer"})
	}
	size, ok := queryInt(r, "size", jobstore.DefaultPageSize)
	if !ok {
		errs = append(errs, common.ValidationError{Field: "size", Message: "must be an integer"})
	}
	if len(errs) > 0 {
		writeValidation(w, errs)
		return
	}

	page, size = jobstore.ClampPage(page, size)
	items, total := h.Store.List(filter, page, size)

	out := jobList{
		Items:   make([]jobSummary, 0, len(items)),
		Total:   total,
		Page:    page,
		Size:    size,
		HasMore: page*size < total,
	}
	for _, j := range items {
		out.Items = append(out.Items, jobSummary{
			JobID:     j.ID,
			Status:    j.Status,
			CreatedAt: j.CreatedAt,
			ExpiresAt: j.ExpiresAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) jobStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.StatsCumulative())
}

func (h *Handlers) serveFiles(w http.ResponseWriter, r *http.Request) {
	filePath := chi.URLParam(r, "*")
	if filePath == "" {
		http.Error(w, "file path required", http.StatusBadRequest)
		return
	}

	if strings.Contains(filePath, "..") {
		http.Error(w, "invalid file path", http.StatusBadRequest)
		return
	}

	fullPath := filepath.Join(h.Config.LocalStorageDir, filepath.FromSlash(filePath))
	http.ServeFile(w, r, fullPath)
}
