package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/kalambet/cvextract/internal/docx"
	"github.com/kalambet/cvextract/internal/extract"
	"github.com/kalambet/cvextract/internal/ingest"
	"github.com/kalambet/cvextract/internal/storage"
	"github.com/kalambet/cvextract/internal/verify"
)

const (
	defaultMaxUploadSize = 20 << 20 // 20MB
	maxRequestBodySize   = 1 << 20  // 1MB
)

type AppDeps struct {
	Service       *ingest.Service
	Store         *storage.Store
	Token         string       // empty disables bearer auth
	Metrics       http.Handler // optional; served at /metrics without auth
	MaxUploadSize int64
}

// NewAppHandler returns the HTTP API. Everything except /health and /metrics
// sits behind bearer auth.
func NewAppHandler(deps AppDeps) http.Handler {
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = defaultMaxUploadSize
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		if deps.Token != "" {
			r.Use(BearerAuth(deps.Token))
		}
		r.Post("/extract", handleExtract(deps))
		r.Post("/verify", handleVerify)
		r.Post("/jobs", handleEnqueueJob(deps))
		r.Get("/jobs/{id}", handleGetJob(deps))
		r.Get("/extractions", handleListExtractions(deps))
		r.Get("/extractions/{id}", handleGetExtraction(deps))
		r.Delete("/extractions/{id}", handleDeleteExtraction(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

type extractResponse struct {
	ID       string            `json:"id,omitempty"`
	CV       any               `json:"cv"`
	Warnings []extract.Warning `json:"warnings"`
}

// handleExtract accepts either a multipart form with a "file" field or the raw
// .docx bytes as the request body. ?store=true persists the result.
func handleExtract(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadSize)
		defer r.Body.Close()

		name, data, err := readUpload(r)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "upload exceeds %d bytes", deps.MaxUploadSize)
				return
			}
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if len(data) == 0 {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "empty document")
			return
		}

		store, _ := strconv.ParseBool(r.URL.Query().Get("store"))
		var resp extractResponse
		if store {
			rec, res, err := deps.Service.ExtractAndSave(r.Context(), name, data)
			if err != nil {
				extractionError(w, err)
				return
			}
			resp = extractResponse{ID: rec.ID, CV: res.CV, Warnings: res.Warnings}
		} else {
			res, err := deps.Service.Extract(r.Context(), name, data)
			if err != nil {
				extractionError(w, err)
				return
			}
			resp = extractResponse{CV: res.CV, Warnings: res.Warnings}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func readUpload(r *http.Request) (string, []byte, error) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.docx"
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		return name, data, err
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", nil, err
		}
		return "", nil, fmt.Errorf("missing multipart field \"file\": %w", err)
	}
	defer file.Close()
	if header.Filename != "" {
		name = filepath.Base(header.Filename)
	}
	data, err := io.ReadAll(file)
	return name, data, err
}

func extractionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, extract.ErrTooLarge):
		httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "%v", err)
	case errors.Is(err, docx.ErrCorruptArchive), errors.Is(err, docx.ErrMissingRequiredPart),
		errors.Is(err, docx.ErrMalformedPart):
		httpError(w, http.StatusUnprocessableEntity, "invalid_document", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "extraction failed: %v", err)
	}
}

type verifyResponse struct {
	Valid  bool           `json:"valid"`
	Issues []verify.Issue `json:"issues"`
}

func handleVerify(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	data, err := io.ReadAll(r.Body)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "reading body: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, verifyDocument(data))
}

func verifyDocument(data []byte) verifyResponse {
	issues := verify.Check(data)
	if issues == nil {
		issues = []verify.Issue{}
	}
	return verifyResponse{Valid: !verify.HasErrors(issues), Issues: issues}
}

type jobRequest struct {
	Path string `json:"path"`
}

func handleEnqueueJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req jobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Path == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "path is required")
			return
		}
		if _, err := os.Stat(req.Path); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "cannot read %s: %v", req.Path, err)
			return
		}

		payload, err := json.Marshal(ingest.FilePayload{Path: req.Path})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to create job payload: %v", err)
			return
		}
		job := storage.Job{
			ID:          uuid.New().String(),
			Type:        storage.JobExtractFile,
			PayloadJSON: string(payload),
		}
		if err := deps.Store.EnqueueJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to enqueue job: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"id":     job.ID,
			"status": "queued",
		})
	}
}

type jobView struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"last_error,omitempty"`
	ResultID  string `json:"result_id,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func handleGetJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := deps.Store.GetJob(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get job: %v", err)
			return
		}

		writeJSON(w, http.StatusOK, jobView{
			ID:        job.ID,
			Type:      job.Type,
			Status:    job.Status,
			Attempts:  job.Attempts,
			LastError: job.LastError,
			ResultID:  job.ResultID,
			CreatedAt: job.CreatedAt.Format(time.RFC3339),
			UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
		})
	}
}

type extractionView struct {
	ID         string          `json:"id"`
	SourceName string          `json:"source_name"`
	SHA256     string          `json:"sha256"`
	CreatedAt  string          `json:"created_at"`
	CV         json.RawMessage `json:"cv,omitempty"`
	Warnings   json.RawMessage `json:"warnings,omitempty"`
}

func newExtractionView(e storage.Extraction, full bool) extractionView {
	v := extractionView{
		ID:         e.ID,
		SourceName: e.SourceName,
		SHA256:     e.SHA256,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
	if full {
		v.CV = json.RawMessage(e.CVJSON)
		v.Warnings = json.RawMessage(e.WarningsJSON)
	}
	return v
}

// handleListExtractions lists stored extractions newest first. ?sha256=
// narrows the result to the latest extraction of that document.
func handleListExtractions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sha := r.URL.Query().Get("sha256"); sha != "" {
			e, err := deps.Store.FindExtractionBySHA(sha)
			if errors.Is(err, storage.ErrNotFound) {
				writeJSON(w, http.StatusOK, []extractionView{})
				return
			}
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to find extraction: %v", err)
				return
			}
			writeJSON(w, http.StatusOK, []extractionView{newExtractionView(e, false)})
			return
		}

		limit := parseIntParam(r, "limit", 20, 100)
		list, err := deps.Store.ListExtractions(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list extractions: %v", err)
			return
		}

		views := make([]extractionView, 0, len(list))
		for _, e := range list {
			views = append(views, newExtractionView(e, false))
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetExtraction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := deps.Store.GetExtraction(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "extraction not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get extraction: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, newExtractionView(e, true))
	}
}

func handleDeleteExtraction(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := deps.Store.DeleteExtraction(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "extraction not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete extraction: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}
