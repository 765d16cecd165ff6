package results

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cpt-tools/cptgest/internal/extract"
)

func TestWriteAndReadJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "cpt_1_5.jsonl")
	in := []extract.Record{
		{Code: "27130", CodeDescription: "Arthroplasty", Section: "Surgery"},
		{Code: "0075T", CodeDescription: "Stent placement"},
	}
	if err := WriteJSONL(path, in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	got, err := ReadJSONL(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].Code != "27130" || got[0].Section != "Surgery" {
		t.Errorf("unexpected first record %+v", got[0])
	}
}

func TestReadJSONL_SkipsBlankLines(t *testing.T) {
	in := strings.NewReader(`{"code":"27130","code_description":"a"}

{"code":"27132","code_description":"b"}
`)
	got, err := ReadJSONL(in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 records, got %d", len(got))
	}
}

func TestReadJSONL_BadLine(t *testing.T) {
	in := strings.NewReader(`{"code":"27130","code_description":"a"}
not json`)
	if _, err := ReadJSONL(in); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestPathHelpers(t *testing.T) {
	if got := ChunkPath("out", "job1", 10, 14); got != filepath.Join("out", "job1", "cpt_10_14.jsonl") {
		t.Errorf("unexpected chunk path %q", got)
	}
	if got := RawErrorPath("out", "job1", 10, 14); got != filepath.Join("out", "job1", "cpt_10_14_raw_error.txt") {
		t.Errorf("unexpected raw error path %q", got)
	}
	if got := CombinedPath("out", "job1", 1, 100); got != filepath.Join("out", "job1", "cpt_1_100_combined.jsonl") {
		t.Errorf("unexpected combined path %q", got)
	}
}

func TestConvertJSONLToCSV_ColumnOrder(t *testing.T) {
	in := strings.NewReader(`{"code":"27130","code_description":"Arthroplasty","section":"Surgery","code_version":"CPT 2024 AMA"}
{"code":"27132","code_description":"Conversion","section":"Surgery","extra_field":"x"}`)

	var out bytes.Buffer
	if err := ConvertJSONLToCSV(in, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	// Known fields keep their fixed order; unknown fields trail.
	if lines[0] != "code,code_description,section,code_version,extra_field" {
		t.Errorf("unexpected header %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "27130,Arthroplasty,Surgery,CPT 2024 AMA,") {
		t.Errorf("unexpected first row %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",x") {
		t.Errorf("expected extra field value at row end, got %q", lines[2])
	}
}

func TestConvertJSONLToCSV_QuotedValues(t *testing.T) {
	in := strings.NewReader(`{"code":"27130","code_description":"Arthroplasty, acetabular and proximal femoral"}`)
	var out bytes.Buffer
	if err := ConvertJSONLToCSV(in, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), `"Arthroplasty, acetabular and proximal femoral"`) {
		t.Errorf("expected comma-bearing value quoted, got %q", out.String())
	}
}

func TestConvertJSONLToCSV_Empty(t *testing.T) {
	var out bytes.Buffer
	if err := ConvertJSONLToCSV(strings.NewReader(""), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out.String()) != "" {
		t.Errorf("expected empty output for empty input, got %q", out.String())
	}
}

func TestWriteRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dumps", "cpt_1_5_raw_error.txt")
	if err := WriteRaw(path, "raw model output"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "raw model output" {
		t.Errorf("unexpected contents %q", data)
	}
}
