// Package corpus manages the retrieval corpus that reference documents are
// uploaded into. Two backends exist: the hosted Vertex AI RAG corpus API,
// and a local embedded vector index for development without a cloud
// project.
package corpus

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// FileRef describes one document stored in the corpus.
type FileRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
	Pages       int    `json:"pages,omitempty"`
	Words       int    `json:"words,omitempty"`
}

// Upload is a reference document ready for storage: raw bytes for hosted
// upload, flattened text for local indexing.
type Upload struct {
	Filename    string
	DisplayName string
	Description string
	Data        []byte
	Text        string
	Pages       int
	Words       int
}

// SearchResult is one retrieved passage.
type SearchResult struct {
	Content string  `json:"content"`
	Source  string  `json:"source"`
	Score   float32 `json:"score"`
}

// Store is the corpus backend contract.
type Store interface {
	Upload(ctx context.Context, up Upload) (*FileRef, error)
	List(ctx context.Context) ([]FileRef, error)
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, query string, topK int) ([]SearchResult, error)
	Close() error
}

func hashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
