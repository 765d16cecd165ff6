package extract

import (
	"strings"
	"testing"
)

func TestBuildExtractionPrompt_Context(t *testing.T) {
	prompt := BuildExtractionPrompt(PromptInput{
		Text:        "27130 Arthroplasty",
		Section:     "Surgery",
		Subsection:  "Musculoskeletal System",
		CodeVersion: "CPT 2024 AMA",
	})

	if !strings.Contains(prompt, "Current Section: Surgery") {
		t.Error("expected section in context block")
	}
	if !strings.Contains(prompt, "Current Subsection: Musculoskeletal System") {
		t.Error("expected subsection in context block")
	}
	if !strings.Contains(prompt, "Current Subheading: Unknown") {
		t.Error("expected empty levels rendered as Unknown")
	}
	if !strings.Contains(prompt, `"code_version": "CPT 2024 AMA"`) {
		t.Error("expected code version in schema")
	}
	if !strings.Contains(prompt, "Semicolon Rule") {
		t.Error("expected semicolon rule in prompt")
	}
	if !strings.Contains(prompt, "27130 Arthroplasty") {
		t.Error("expected input text in prompt")
	}

	// Rule 2 says "use the **Context** provided above", so the context
	// block must come before the rules.
	ctxAt := strings.Index(prompt, "**Context (Hierarchy from previous pages)**")
	rulesAt := strings.Index(prompt, "**Rules**")
	if ctxAt < 0 || rulesAt < 0 || ctxAt > rulesAt {
		t.Errorf("expected context block before rules, got context at %d, rules at %d", ctxAt, rulesAt)
	}
}

func TestBuildExtractionPrompt_PreviousRecord(t *testing.T) {
	prev := &Record{Code: "27130", CodeDescription: "Arthroplasty, acetabular and proximal femoral;"}
	prompt := BuildExtractionPrompt(PromptInput{Text: "; surgical", PreviousRecord: prev})

	if !strings.Contains(prompt, "Previous Code Context") {
		t.Error("expected previous code block")
	}
	if !strings.Contains(prompt, `"code": "27130"`) {
		t.Error("expected previous record JSON in prompt")
	}

	without := BuildExtractionPrompt(PromptInput{Text: "first chunk"})
	if strings.Contains(without, "Previous Code Context") {
		t.Error("expected no previous code block on the first chunk")
	}
}

func TestBuildExtractionPrompt_SimpleSchema(t *testing.T) {
	prompt := BuildExtractionPrompt(PromptInput{Text: "x", SimpleSchema: true, CodeVersion: "CPT 2024 AMA"})
	if strings.Contains(prompt, "section_text") {
		t.Error("expected simple schema to omit hierarchy fields")
	}
	if !strings.Contains(prompt, "Do NOT include any other fields") {
		t.Error("expected simple schema instruction")
	}
}

func TestBuildExtractionPrompt_Truncation(t *testing.T) {
	long := strings.Repeat("a", 500)
	prompt := BuildExtractionPrompt(PromptInput{Text: long, MaxBytes: 100})
	if !strings.Contains(prompt, "Text truncated to fit context window") {
		t.Error("expected truncation note")
	}
	if strings.Contains(prompt, strings.Repeat("a", 101)) {
		t.Error("expected text capped at MaxBytes")
	}

	short := BuildExtractionPrompt(PromptInput{Text: "short", MaxBytes: 100})
	if strings.Contains(short, "truncated") {
		t.Error("expected no truncation note for short text")
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0 for empty text, got %d", got)
	}
	if got := EstimateTokens("one"); got < 1 {
		t.Errorf("expected at least 1 token, got %d", got)
	}
	hundred := strings.Repeat("word ", 100)
	if got := EstimateTokens(hundred); got < 100 || got > 200 {
		t.Errorf("expected rough estimate near 133 for 100 words, got %d", got)
	}
}
