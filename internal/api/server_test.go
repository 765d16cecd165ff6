package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cpt-tools/cptgest/internal/config"
	"github.com/cpt-tools/cptgest/internal/corpus"
	"github.com/cpt-tools/cptgest/internal/extract"
	"github.com/cpt-tools/cptgest/internal/pipeline"
)

const testAPIKey = "test-api-key"

// fakeStore is an in-memory corpus.Store for handler tests.
type fakeStore struct {
	files map[string]corpus.FileRef
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string]corpus.FileRef)}
}

func (f *fakeStore) Upload(ctx context.Context, up corpus.Upload) (*corpus.FileRef, error) {
	ref := corpus.FileRef{
		ID:          fmt.Sprintf("f%d", len(f.files)+1),
		DisplayName: up.DisplayName,
		Description: up.Description,
		SizeBytes:   int64(len(up.Data)),
		Pages:       up.Pages,
		Words:       up.Words,
	}
	f.files[ref.ID] = ref
	return &ref, nil
}

func (f *fakeStore) List(ctx context.Context) ([]corpus.FileRef, error) {
	var out []corpus.FileRef
	for _, ref := range f.files {
		out = append(out, ref)
	}
	return out, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	if _, ok := f.files[id]; !ok {
		return fmt.Errorf("file %s not in corpus", id)
	}
	delete(f.files, id)
	return nil
}

func (f *fakeStore) Search(ctx context.Context, query string, topK int) ([]corpus.SearchResult, error) {
	return []corpus.SearchResult{{Content: "passage about " + query, Source: "Guide", Score: 0.9}}, nil
}

func (f *fakeStore) Close() error { return nil }

func testServer(t *testing.T, store corpus.Store) (*Server, *pipeline.Orchestrator) {
	t.Helper()
	cfg := config.Config{
		APIKey:           testAPIKey,
		MaxUploadBytes:   1 << 20,
		MaxQueueSize:     10,
		DefaultChunkPage: 5,
		JobTTL:           time.Hour,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	// No workers are started; jobs stay queued unless mutated by the test.
	orch := pipeline.NewOrchestrator(cfg, nil, log)
	return NewServer(orch, nil, store, log, cfg), orch
}

func doRequest(s *Server, req *http.Request, authed bool) *httptest.ResponseRecorder {
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, filename string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	fw.Write(content)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestHealth_Public(t *testing.T) {
	s, _ := testServer(t, nil)
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil), false)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestAuth_Required(t *testing.T) {
	s, _ := testServer(t, nil)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil), false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without key, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong key, got %d", rec.Code)
	}
}

func TestExtract_Accepted(t *testing.T) {
	s, orch := testServer(t, nil)

	body, contentType := multipartBody(t, "book.epub", []byte("fake epub bytes"), map[string]string{
		"start_page": "10",
		"end_page":   "20",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(s, req, true)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		PollURL string `json:"poll_url"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != string(pipeline.StatusQueued) {
		t.Errorf("expected queued status, got %q", resp.Status)
	}
	if !strings.Contains(resp.PollURL, resp.JobID) {
		t.Errorf("expected poll url with job id, got %q", resp.PollURL)
	}

	job := orch.GetJob(resp.JobID)
	if job == nil {
		t.Fatal("expected job registered")
	}
	snap := job.Snapshot()
	if snap.StartPage != 10 || snap.EndPage != 20 {
		t.Errorf("expected page range 10-20, got %d-%d", snap.StartPage, snap.EndPage)
	}
	if snap.ChunkPages != 5 {
		t.Errorf("expected default chunk pages, got %d", snap.ChunkPages)
	}
}

func TestExtract_RejectsNonEPUB(t *testing.T) {
	s, _ := testServer(t, nil)

	body, contentType := multipartBody(t, "book.pdf", []byte("pdf bytes"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(s, req, true)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestExtractStatus_NotFound(t *testing.T) {
	s, _ := testServer(t, nil)
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/extract/nope/status", nil), true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func submitFinishedJob(t *testing.T, orch *pipeline.Orchestrator) *pipeline.Job {
	t.Helper()
	now := time.Now()
	job := &pipeline.Job{
		ID:        pipeline.NewJobID(),
		Status:    pipeline.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := orch.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	job.AddRecords([]extract.Record{
		{Code: "27130", CodeDescription: "Arthroplasty, acetabular and proximal femoral", CodeType: "CPT", Section: "Surgery", CodeVersion: "CPT 2024 AMA"},
	})
	job.SetStatus(pipeline.StatusCompleted, "done")
	return job
}

func TestExtractRecords_NotReady(t *testing.T) {
	s, orch := testServer(t, nil)
	now := time.Now()
	job := &pipeline.Job{ID: pipeline.NewJobID(), Status: pipeline.StatusQueued, CreatedAt: now, UpdatedAt: now}
	if err := orch.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/extract/"+job.ID+"/records", nil), true)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for queued job, got %d", rec.Code)
	}
}

func TestExtractRecords_JSONL(t *testing.T) {
	s, orch := testServer(t, nil)
	job := submitFinishedJob(t, orch)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/extract/"+job.ID+"/records", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("expected ndjson content type, got %q", ct)
	}
	var r extract.Record
	if err := json.Unmarshal([]byte(strings.TrimSpace(rec.Body.String())), &r); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if r.Code != "27130" {
		t.Errorf("unexpected record %+v", r)
	}
}

func TestExtractRecords_CSV(t *testing.T) {
	s, orch := testServer(t, nil)
	job := submitFinishedJob(t, orch)

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/extract/"+job.ID+"/records?format=csv", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("expected csv content type, got %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "code,code_description") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.Contains(lines[1], "27130") {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func TestCorpus_NoBackend(t *testing.T) {
	s, _ := testServer(t, nil)
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/corpus/files", nil), true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without backend, got %d", rec.Code)
	}
}

func TestCorpus_UploadListDelete(t *testing.T) {
	store := newFakeStore()
	s, _ := testServer(t, store)

	body, contentType := multipartBody(t, "guide.txt", []byte("procedure reference text"), map[string]string{
		"display_name": "Coding Guide",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/corpus/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(s, req, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var ref corpus.FileRef
	if err := json.Unmarshal(rec.Body.Bytes(), &ref); err != nil {
		t.Fatalf("decode ref: %v", err)
	}
	if ref.DisplayName != "Coding Guide" {
		t.Errorf("unexpected ref %+v", ref)
	}
	if ref.Words == 0 {
		t.Error("expected word count from local inspection")
	}

	rec = doRequest(s, httptest.NewRequest(http.MethodGet, "/api/corpus/files", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), ref.ID) {
		t.Errorf("expected uploaded file in listing, got %q", rec.Body.String())
	}

	rec = doRequest(s, httptest.NewRequest(http.MethodDelete, "/api/corpus/files/"+ref.ID, nil), true)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 on delete, got %d", rec.Code)
	}
}

func TestCorpus_UploadRejectsUnsupported(t *testing.T) {
	s, _ := testServer(t, newFakeStore())

	body, contentType := multipartBody(t, "image.png", []byte{0x89, 0x50}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/corpus/files", body)
	req.Header.Set("Content-Type", contentType)
	rec := doRequest(s, req, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestCorpus_Search(t *testing.T) {
	s, _ := testServer(t, newFakeStore())

	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/corpus/search?q=arthroplasty", nil), true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "arthroplasty") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	rec = doRequest(s, httptest.NewRequest(http.MethodGet, "/api/corpus/search", nil), true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without query, got %d", rec.Code)
	}
}

func TestLLMStats_Unavailable(t *testing.T) {
	s, _ := testServer(t, nil)
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/api/stats/llm", nil), true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without client, got %d", rec.Code)
	}
}
