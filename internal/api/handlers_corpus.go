package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cpt-tools/cptgest/internal/corpus"
	"github.com/cpt-tools/cptgest/internal/inspect"
)

func (s *Server) corpusStore(w http.ResponseWriter) corpus.Store {
	if s.store == nil {
		jsonError(w, "no corpus backend configured", http.StatusServiceUnavailable)
		return nil
	}
	return s.store
}

// handleCorpusUpload stores a reference document in the corpus. The file is
// inspected locally first so the stored entry carries page and word counts.
func (s *Server) handleCorpusUpload(w http.ResponseWriter, r *http.Request) {
	store := s.corpusStore(w)
	if store == nil {
		return
	}

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
	if !inspect.IsSupported(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filename), http.StatusBadRequest)
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

	up := corpus.Upload{
		Filename:    filename,
		DisplayName: strings.TrimSpace(r.FormValue("display_name")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Data:        data,
	}
	if up.DisplayName == "" {
		up.DisplayName = filename
	}

	insp, err := inspect.ForFile(filename)
	if err == nil {
		info, ierr := insp.Inspect(bytes.NewReader(data), filename)
		if ierr != nil {
			s.log.Warn("inspection failed", "filename", filename, "error", ierr)
		} else {
			up.Text = info.Text
			up.Pages = info.Pages
			up.Words = info.Words
		}
	}

	ref, err := store.Upload(r.Context(), up)
	if err != nil {
		jsonError(w, "upload failed: "+err.Error(), http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(ref)
}

func (s *Server) handleCorpusList(w http.ResponseWriter, r *http.Request) {
	store := s.corpusStore(w)
	if store == nil {
		return
	}
	files, err := store.List(r.Context())
	if err != nil {
		jsonError(w, "list failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	if files == nil {
		files = []corpus.FileRef{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"files": files})
}

func (s *Server) handleCorpusDelete(w http.ResponseWriter, r *http.Request) {
	store := s.corpusStore(w)
	if store == nil {
		return
	}
	fileID := chi.URLParam(r, "fileID")
	if err := store.Delete(r.Context(), fileID); err != nil {
		jsonError(w, "delete failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"deleted": fileID})
}

func (s *Server) handleCorpusSearch(w http.ResponseWriter, r *http.Request) {
	store := s.corpusStore(w)
	if store == nil {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		jsonError(w, "q query parameter is required", http.StatusBadRequest)
		return
	}
	topK := 5
	if v := r.URL.Query().Get("top_k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 50 {
			topK = n
		}
	}

	hits, err := store.Search(r.Context(), query, topK)
	if err != nil {
		jsonError(w, "search failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	if hits == nil {
		hits = []corpus.SearchResult{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"results": hits})
}
