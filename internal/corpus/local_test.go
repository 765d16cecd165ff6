package corpus

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/philippgille/chromem-go"
)

// stubEmbed returns a deterministic unit vector derived from the text, so
// identical text always lands on the same point and different texts differ.
func stubEmbed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, 8)
	for i, r := range text {
		vec[i%8] += float32(r % 31)
	}
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		vec[0] = 1
		norm = 1
	}
	for i := range vec {
		vec[i] /= sqrt32(norm)
	}
	return vec, nil
}

func sqrt32(x float32) float32 {
	// Newton iterations are plenty for test vectors.
	z := x
	for i := 0; i < 16; i++ {
		z = (z + x/z) / 2
	}
	return z
}

func newTestLocal(t *testing.T) (*Local, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.db")
	l, err := NewLocal(path, chromem.EmbeddingFunc(stubEmbed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return l, path
}

func TestLocal_UploadListDelete(t *testing.T) {
	l, _ := newTestLocal(t)
	ctx := context.Background()

	ref, err := l.Upload(ctx, Upload{
		Filename:    "guide.md",
		DisplayName: "Coding Guide",
		Description: "reference",
		Data:        []byte("# guide"),
		Text:        "Arthroplasty of the hip joint.\n\nConversion procedures.",
		Pages:       2,
		Words:       8,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.ID == "" || ref.DisplayName != "Coding Guide" {
		t.Errorf("unexpected ref %+v", ref)
	}
	if ref.Pages != 2 || ref.Words != 8 {
		t.Errorf("expected inspection counts carried, got %+v", ref)
	}

	files, err := l.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 || files[0].ID != ref.ID {
		t.Fatalf("expected uploaded file listed, got %+v", files)
	}

	if err := l.Delete(ctx, ref.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files, _ = l.List(ctx)
	if len(files) != 0 {
		t.Errorf("expected empty corpus after delete, got %+v", files)
	}
}

func TestLocal_DeleteMissing(t *testing.T) {
	l, _ := newTestLocal(t)
	if err := l.Delete(context.Background(), "nope"); err == nil {
		t.Error("expected error deleting unknown file")
	}
}

func TestLocal_UploadNoText(t *testing.T) {
	l, _ := newTestLocal(t)
	_, err := l.Upload(context.Background(), Upload{Filename: "x.pdf", Data: []byte("data")})
	if err == nil {
		t.Error("expected error for upload without text")
	}
}

func TestLocal_Search(t *testing.T) {
	l, _ := newTestLocal(t)
	ctx := context.Background()

	_, err := l.Upload(ctx, Upload{
		Filename:    "hips.txt",
		DisplayName: "Hips",
		Data:        []byte("a"),
		Text:        "Total hip arthroplasty procedures and revisions.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hits, err := l.Search(ctx, "Total hip arthroplasty procedures and revisions.", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Source != "Hips" {
		t.Errorf("expected source display name, got %q", hits[0].Source)
	}
	if hits[0].Score < 0.99 {
		t.Errorf("expected near-exact similarity for identical text, got %f", hits[0].Score)
	}
}

func TestLocal_SearchEmpty(t *testing.T) {
	l, _ := newTestLocal(t)
	hits, err := l.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits on empty corpus, got %d", len(hits))
	}
}

func TestLocal_PersistsAcrossReopen(t *testing.T) {
	l, path := newTestLocal(t)
	ctx := context.Background()

	ref, err := l.Upload(ctx, Upload{
		Filename:    "guide.txt",
		DisplayName: "Guide",
		Data:        []byte("contents"),
		Text:        "Some reference text about procedures.",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewLocal(path, chromem.EmbeddingFunc(stubEmbed))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	files, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(files) != 1 || files[0].ID != ref.ID {
		t.Fatalf("expected manifest to survive reopen, got %+v", files)
	}

	hits, err := reopened.Search(ctx, "Some reference text about procedures.", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) == 0 {
		t.Error("expected index to survive reopen")
	}
}

func TestChunkText(t *testing.T) {
	text := strings.Repeat("word ", 100) + "\n\n" + strings.Repeat("more ", 100)
	chunks := chunkText(text, 300)
	if len(chunks) < 2 {
		t.Fatalf("expected paragraph split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 300 {
			t.Errorf("chunk %d exceeds max: %d chars", i, len(c))
		}
	}
}

func TestChunkText_OversizedParagraph(t *testing.T) {
	text := strings.Repeat("x", 950)
	chunks := chunkText(text, 300)
	if len(chunks) != 4 {
		t.Fatalf("expected 4 chunks from hard split, got %d", len(chunks))
	}
	if chunks[3] != strings.Repeat("x", 50) {
		t.Errorf("unexpected tail chunk %q", chunks[3])
	}
}

func TestChunkText_Empty(t *testing.T) {
	if got := chunkText("   \n\n  ", 100); len(got) != 0 {
		t.Errorf("expected no chunks for blank text, got %v", got)
	}
}
