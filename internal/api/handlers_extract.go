package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cpt-tools/cptgest/internal/pipeline"
	"github.com/cpt-tools/cptgest/internal/results"
)

// handleExtract accepts an EPUB upload plus page-range parameters and queues
// an extraction job.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	// Limit total request size, with 1MB slack for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".epub") {
		jsonError(w, fmt.Sprintf("unsupported file type: %s (expected .epub)", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	startPage := formInt(r, "start_page", 0)
	endPage := formInt(r, "end_page", 0)
	if startPage < 0 || (endPage > 0 && endPage < startPage) {
		jsonError(w, fmt.Sprintf("invalid page range %d-%d", startPage, endPage), http.StatusBadRequest)
		return
	}
	chunkPages := formInt(r, "chunk_pages", s.cfg.DefaultChunkPage)

	now := time.Now()
	job := &pipeline.Job{
		ID:           pipeline.NewJobID(),
		Status:       pipeline.StatusQueued,
		Phase:        "queued",
		Filename:     filename,
		StartPage:    startPage,
		EndPage:      endPage,
		ChunkPages:   chunkPages,
		ByChapter:    r.FormValue("by_chapter") == "true",
		SimpleSchema: r.FormValue("simple_schema") == "true",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	job.SetFileData(data)

	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   job.Status,
		"poll_url": fmt.Sprintf("/api/extract/%s/status", job.ID),
	})
}

func (s *Server) handleExtractStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// handleExtractRecords returns a finished job's records as JSONL, or CSV
// when format=csv is requested.
func (s *Server) handleExtractRecords(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusCompleted, pipeline.StatusPartial:
	default:
		jsonError(w, fmt.Sprintf("job is %s, records not ready", snap.Status), http.StatusConflict)
		return
	}

	recs := job.Records()
	if r.URL.Query().Get("format") == "csv" {
		var jsonl bytes.Buffer
		enc := json.NewEncoder(&jsonl)
		for _, rec := range recs {
			if err := enc.Encode(rec); err != nil {
				jsonError(w, "encode records: "+err.Error(), http.StatusInternalServerError)
				return
			}
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s_records.csv", jobID))
		if err := results.ConvertJSONLToCSV(&jsonl, w); err != nil {
			s.log.Error("csv conversion failed", "job_id", jobID, "error", err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	enc := json.NewEncoder(w)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			s.log.Error("record stream failed", "job_id", jobID, "error", err)
			return
		}
	}
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func formInt(r *http.Request, key string, fallback int) int {
	if v := r.FormValue(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
