// Package results writes extraction output: per-chunk and combined JSONL
// files, raw-response dumps for failed parses, and CSV conversion.
package results

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cpt-tools/cptgest/internal/extract"
)

// WriteJSONL writes records to path, one JSON object per line, creating
// parent directories as needed.
func WriteJSONL(path string, records []extract.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("encode record %s: %w", r.Code, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

// ReadJSONL reads records from a JSONL stream, skipping blank lines.
func ReadJSONL(r io.Reader) ([]extract.Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var records []extract.Record
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var rec extract.Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// WriteRaw dumps a raw model response that failed to parse, for manual
// inspection and recovery.
func WriteRaw(path, raw string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return os.WriteFile(path, []byte(raw), 0o644)
}

// ChunkPath names the per-chunk JSONL file for a page range.
func ChunkPath(dir string, runID string, startPage, endPage int) string {
	return filepath.Join(dir, runID, fmt.Sprintf("cpt_%d_%d.jsonl", startPage, endPage))
}

// RawErrorPath names the debug dump file for a page range whose response
// could not be parsed.
func RawErrorPath(dir string, runID string, startPage, endPage int) string {
	return filepath.Join(dir, runID, fmt.Sprintf("cpt_%d_%d_raw_error.txt", startPage, endPage))
}

// CombinedPath names the combined JSONL file for a full run.
func CombinedPath(dir string, runID string, startPage, endPage int) string {
	return filepath.Join(dir, runID, fmt.Sprintf("cpt_%d_%d_combined.jsonl", startPage, endPage))
}
