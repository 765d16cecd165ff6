package epub

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
)

// pageMapFile is the sidecar cache written next to an opened EPUB so that
// repeated runs skip the full marker/heading scan. A sha-256 of the merged
// content acts as the validity check; any mismatch forces a rebuild.
type pageMapFile struct {
	ContentHash string         `json:"content_hash"`
	Pages       []PageMarker   `json:"pages"`
	Headings    []HeadingEvent `json:"headings"`
}

func sidecarPath(epubPath string) string {
	return epubPath + ".pagemap.json"
}

func contentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

func loadPageMap(path, hash string) (*pageMapFile, bool) {
	if path == "" {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var pm pageMapFile
	if err := json.Unmarshal(data, &pm); err != nil {
		return nil, false
	}
	if pm.ContentHash != hash || len(pm.Pages) == 0 {
		return nil, false
	}
	return &pm, true
}

// savePageMap writes the sidecar. Failures are ignored; the cache is an
// optimization, not state.
func savePageMap(path, hash string, pages []PageMarker, headings []HeadingEvent) {
	if path == "" {
		return
	}
	data, err := json.Marshal(pageMapFile{
		ContentHash: hash,
		Pages:       pages,
		Headings:    headings,
	})
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}
