package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/philippgille/chromem-go"
)

const localCollection = "corpus"

// chunkChars is the target size of one indexed passage in the local store.
const chunkChars = 2000

// Local is an embedded vector corpus backed by chromem-go, persisted to a
// single DB file plus a JSON manifest sidecar. It stands in for the hosted
// corpus when no cloud project is configured.
type Local struct {
	mu       sync.Mutex
	db       *chromem.DB
	coll     *chromem.Collection
	path     string
	manifest map[string]FileRef
}

// NewLocal opens (or creates) the local corpus at path. embed computes
// passage embeddings.
func NewLocal(path string, embed chromem.EmbeddingFunc) (*Local, error) {
	l := &Local{
		db:       chromem.NewDB(),
		path:     path,
		manifest: make(map[string]FileRef),
	}

	if _, err := os.Stat(path); err == nil {
		if err := l.db.ImportFromFile(path, ""); err != nil {
			return nil, fmt.Errorf("import corpus db: %w", err)
		}
	}

	l.coll = l.db.GetCollection(localCollection, embed)
	if l.coll == nil {
		coll, err := l.db.CreateCollection(localCollection, nil, embed)
		if err != nil {
			return nil, fmt.Errorf("create collection: %w", err)
		}
		l.coll = coll
	}

	l.loadManifest()
	return l, nil
}

// Upload indexes the document's text in chunked passages and records it in
// the manifest.
func (l *Local) Upload(ctx context.Context, up Upload) (*FileRef, error) {
	if strings.TrimSpace(up.Text) == "" {
		return nil, fmt.Errorf("no indexable text in %s", up.Filename)
	}

	id := hashHex(up.Data)[:16]

	chunks := chunkText(up.Text, chunkChars)
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s#%d", id, i),
			Content: chunk,
			Metadata: map[string]string{
				"file":         id,
				"display_name": up.DisplayName,
			},
		})
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.coll.AddDocuments(ctx, docs, 2); err != nil {
		return nil, fmt.Errorf("index %s: %w", up.Filename, err)
	}

	ref := FileRef{
		ID:          id,
		DisplayName: up.DisplayName,
		Description: up.Description,
		SizeBytes:   int64(len(up.Data)),
		Pages:       up.Pages,
		Words:       up.Words,
	}
	l.manifest[id] = ref
	if err := l.persist(); err != nil {
		return nil, err
	}
	return &ref, nil
}

// List returns manifest entries ordered by display name.
func (l *Local) List(ctx context.Context) ([]FileRef, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	refs := make([]FileRef, 0, len(l.manifest))
	for _, ref := range l.manifest {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].DisplayName < refs[j].DisplayName })
	return refs, nil
}

// Delete removes a document's passages and manifest entry.
func (l *Local) Delete(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.manifest[id]; !ok {
		return fmt.Errorf("file %s not in corpus", id)
	}
	if err := l.coll.Delete(ctx, map[string]string{"file": id}, nil); err != nil {
		return fmt.Errorf("delete passages for %s: %w", id, err)
	}
	delete(l.manifest, id)
	return l.persist()
}

// Search queries the local index.
func (l *Local) Search(ctx context.Context, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	if n := l.coll.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	results, err := l.coll.Query(ctx, query, topK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query corpus: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, SearchResult{
			Content: r.Content,
			Source:  r.Metadata["display_name"],
			Score:   r.Similarity,
		})
	}
	return out, nil
}

// Close persists the index a final time.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.persist()
}

func (l *Local) manifestPath() string {
	return l.path + ".manifest.json"
}

func (l *Local) loadManifest() {
	data, err := os.ReadFile(l.manifestPath())
	if err != nil {
		return
	}
	_ = json.Unmarshal(data, &l.manifest)
}

func (l *Local) persist() error {
	if err := l.db.ExportToFile(l.path, true, "", localCollection); err != nil {
		return fmt.Errorf("export corpus db: %w", err)
	}
	data, err := json.Marshal(l.manifest)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(l.manifestPath(), data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// chunkText splits text into passages of roughly max characters, breaking
// on paragraph boundaries where possible.
func chunkText(text string, max int) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder
	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para) > max {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		for len(para) > max {
			// Oversized paragraph; hard split.
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, para[:max])
			para = para[max:]
		}
		if para == "" {
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
