package inspect

import (
	"strings"
	"testing"
)

func TestTextInspector(t *testing.T) {
	input := "first line\nsecond line\n\nthird line"
	p := &TextInspector{}
	info, err := p.Inspect(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", info.Title)
	}
	if info.Words != 6 {
		t.Errorf("expected 6 words, got %d", info.Words)
	}
	if !strings.Contains(info.Text, "second line") {
		t.Errorf("expected all lines kept, got %q", info.Text)
	}
}

func TestTextInspector_Empty(t *testing.T) {
	p := &TextInspector{}
	info, err := p.Inspect(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Text != "" || info.Words != 0 {
		t.Errorf("expected empty result, got %+v", info)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		ok       bool
	}{
		{"doc.pdf", true},
		{"doc.md", true},
		{"doc.markdown", true},
		{"doc.txt", true},
		{"doc.docx", true},
		{"DOC.PDF", true},
		{"doc.epub", false},
		{"doc", false},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename)
		if (err == nil) != tt.ok {
			t.Errorf("ForFile(%q): expected ok=%v, got err=%v", tt.filename, tt.ok, err)
		}
		if got := IsSupported(tt.filename); got != tt.ok {
			t.Errorf("IsSupported(%q): expected %v, got %v", tt.filename, tt.ok, got)
		}
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"guide.pdf", "guide"},
		{"dir/sub/notes.txt", "notes"},
		{"no-extension", "no-extension"},
	}
	for _, tt := range tests {
		if got := titleFromFilename(tt.in); got != tt.want {
			t.Errorf("titleFromFilename(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
