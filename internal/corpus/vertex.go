package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// VertexClient talks to the Vertex AI RAG corpus REST API.
type VertexClient struct {
	project     string
	location    string
	accessToken string
	corpusName  string // full resource name: projects/.../ragCorpora/{id}
	httpClient  *http.Client

	// endpoint overrides the API host when set; tests use it.
	endpoint string
}

func NewVertexClient(project, location, accessToken, corpusName string) *VertexClient {
	return &VertexClient{
		project:     project,
		location:    location,
		accessToken: accessToken,
		corpusName:  corpusName,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (c *VertexClient) baseURL() string {
	if c.endpoint != "" {
		return c.endpoint + "/v1"
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/v1", c.location)
}

func (c *VertexClient) uploadBaseURL() string {
	if c.endpoint != "" {
		return c.endpoint + "/upload/v1"
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com/upload/v1", c.location)
}

func (c *VertexClient) parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", c.project, c.location)
}

// CorpusName returns the resource name of the corpus in use.
func (c *VertexClient) CorpusName() string { return c.corpusName }

// EnsureCorpus creates the RAG corpus when none is configured, storing the
// returned resource name for subsequent calls.
func (c *VertexClient) EnsureCorpus(ctx context.Context, displayName, description string) error {
	if c.corpusName != "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{
		"displayName": displayName,
		"description": description,
	})
	if err != nil {
		return fmt.Errorf("marshal corpus: %w", err)
	}

	u := fmt.Sprintf("%s/%s/ragCorpora", c.baseURL(), c.parent())
	respBody, err := c.do(ctx, http.MethodPost, u, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create corpus: %w", err)
	}

	var result struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("decode corpus response: %w", err)
	}
	// Creation returns a long-running operation named under the corpus.
	name := result.Name
	if i := strings.Index(name, "/operations/"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return fmt.Errorf("create corpus: response carries no resource name")
	}
	c.corpusName = name
	return nil
}

// Upload sends a reference document to the corpus via the multipart upload
// endpoint.
func (c *VertexClient) Upload(ctx context.Context, up Upload) (*FileRef, error) {
	if c.corpusName == "" {
		return nil, fmt.Errorf("no corpus configured; call EnsureCorpus first")
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	meta, err := json.Marshal(map[string]any{
		"rag_file": map[string]string{
			"display_name": up.DisplayName,
			"description":  up.Description,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := mw.WriteField("metadata", string(meta)); err != nil {
		return nil, fmt.Errorf("write metadata part: %w", err)
	}
	fw, err := mw.CreateFormFile("file", up.Filename)
	if err != nil {
		return nil, fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(up.Data); err != nil {
		return nil, fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	u := fmt.Sprintf("%s/%s/ragFiles:upload", c.uploadBaseURL(), c.corpusName)
	respBody, err := c.do(ctx, http.MethodPost, u, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", up.Filename, err)
	}

	var result struct {
		RagFile struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
			Description string `json:"description"`
		} `json:"ragFile"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}

	return &FileRef{
		ID:          result.RagFile.Name,
		DisplayName: result.RagFile.DisplayName,
		Description: result.RagFile.Description,
		SizeBytes:   int64(len(up.Data)),
		Pages:       up.Pages,
		Words:       up.Words,
	}, nil
}

// List returns the files currently in the corpus.
func (c *VertexClient) List(ctx context.Context) ([]FileRef, error) {
	if c.corpusName == "" {
		return nil, fmt.Errorf("no corpus configured")
	}
	u := fmt.Sprintf("%s/%s/ragFiles", c.baseURL(), c.corpusName)
	respBody, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	var result struct {
		RagFiles []struct {
			Name        string `json:"name"`
			DisplayName string `json:"displayName"`
			Description string `json:"description"`
		} `json:"ragFiles"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode file list: %w", err)
	}

	refs := make([]FileRef, 0, len(result.RagFiles))
	for _, f := range result.RagFiles {
		refs = append(refs, FileRef{
			ID:          f.Name,
			DisplayName: f.DisplayName,
			Description: f.Description,
		})
	}
	return refs, nil
}

// Delete removes a file from the corpus. id is the full ragFile resource
// name.
func (c *VertexClient) Delete(ctx context.Context, id string) error {
	u := fmt.Sprintf("%s/%s", c.baseURL(), strings.TrimPrefix(id, "/"))
	if _, err := c.do(ctx, http.MethodDelete, u, "", nil); err != nil {
		return fmt.Errorf("delete file %s: %w", id, err)
	}
	return nil
}

// Search queries the corpus through the retrieveContexts endpoint.
func (c *VertexClient) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if c.corpusName == "" {
		return nil, fmt.Errorf("no corpus configured")
	}
	if topK <= 0 {
		topK = 10
	}

	body, err := json.Marshal(map[string]any{
		"vertex_rag_store": map[string]any{
			"rag_resources": []map[string]string{
				{"rag_corpus": c.corpusName},
			},
		},
		"query": map[string]any{
			"text":             query,
			"similarity_top_k": topK,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	u := fmt.Sprintf("%s/%s:retrieveContexts", c.baseURL(), c.parent())
	respBody, err := c.do(ctx, http.MethodPost, u, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("retrieve contexts: %w", err)
	}

	var result struct {
		Contexts struct {
			Contexts []struct {
				SourceURI string  `json:"sourceUri"`
				Text      string  `json:"text"`
				Distance  float32 `json:"distance"`
			} `json:"contexts"`
		} `json:"contexts"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode contexts: %w", err)
	}

	results := make([]SearchResult, 0, len(result.Contexts.Contexts))
	for _, rc := range result.Contexts.Contexts {
		results = append(results, SearchResult{
			Content: rc.Text,
			Source:  rc.SourceURI,
			Score:   1 - rc.Distance,
		})
	}
	return results, nil
}

func (c *VertexClient) do(ctx context.Context, method, url, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}
	return respBody, nil
}

// Close releases idle connections.
func (c *VertexClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
