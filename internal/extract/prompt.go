package extract

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PromptInput carries everything the extraction prompt needs for one page
// range: the flattened text, the heading hierarchy at the range start, and
// the last record of the previous range so child codes at a chunk boundary
// can resolve their parent description.
type PromptInput struct {
	Text           string
	Section        string
	Subsection     string
	Subheading     string
	Topic          string
	PreviousRecord *Record
	SimpleSchema   bool
	CodeVersion    string
	MaxBytes       int // cap on the text portion; 0 means no cap
}

const promptRole = `You are an expert Medical Coder and Data Analyst.
Your task is to extract CPT codes from the provided text and format them into structured JSON.`

const promptRules = `**Rules**:
1. **Semicolon Rule**: This is CRITICAL. CPT codes often use a parent-child relationship.
   - If a code description starts with a semicolon (e.g., "; surgical") or is indented and lowercase, it is a CHILD code.
   - Find the immediately preceding PARENT code (which usually ends with a semicolon).
   - The full description for the child is: [Parent Description up to semicolon] + [Child Description].
2. **Hierarchy Inheritance**:
   - For every code extracted, fill in the "section", "subsection", "subheading", and "topic" fields.
   - If the text explicitly introduces a new header, update the context for subsequent codes.
   - If no new header is found, use the **Context** provided above.
3. **Text Extraction**:
   - "section_text", "subsection_text", etc. should contain the introductory paragraphs that appear under those headers.
   - If that text is not present in this chunk, leave the field empty. Do not hallucinate.`

const fullSchemaInstruction = `4. **Output Format**:
   Return the data as **JSON Lines** (ndjson).
   - Each line must be a valid, independent JSON object.
   - Do NOT wrap the output in a list.
   - Do NOT use commas between lines.
   - Schema for each object:
   {
    "code": "string",
    "code_description": "string (resolved full description)",
    "code_type": "CPT",
    "section": "string",
    "section_text": "string",
    "subsection": "string",
    "subsection_text": "string",
    "subheading": "string",
    "subheading_text": "string",
    "topic": "string",
    "topic_text": "string",
    "code_version": "%s"
   }`

const simpleSchemaInstruction = `4. **Output Format**:
   Return the data as **JSON Lines** (ndjson).
   - Each line must be a valid, independent JSON object.
   - Do NOT wrap the output in a list.
   - Do NOT use commas between lines.
   - Schema for each object:
   {
    "code": "string",
    "code_description": "string (resolved full description)"
   }
   Do NOT include any other fields like section, subsection, etc.`

// BuildExtractionPrompt assembles the full prompt for one page range.
func BuildExtractionPrompt(in PromptInput) string {
	var sb strings.Builder
	sb.WriteString(promptRole)

	// The context precedes the rules; rule 2 refers back to it.
	sb.WriteString("\n\n**Context (Hierarchy from previous pages)**:\n")
	sb.WriteString("- Current Section: " + orUnknown(in.Section) + "\n")
	sb.WriteString("- Current Subsection: " + orUnknown(in.Subsection) + "\n")
	sb.WriteString("- Current Subheading: " + orUnknown(in.Subheading) + "\n")
	sb.WriteString("- Current Topic: " + orUnknown(in.Topic) + "\n")

	sb.WriteString("\n")
	sb.WriteString(promptRules)
	sb.WriteString("\n")
	if in.SimpleSchema {
		sb.WriteString(simpleSchemaInstruction)
	} else {
		sb.WriteString(fmt.Sprintf(fullSchemaInstruction, in.CodeVersion))
	}

	if in.PreviousRecord != nil {
		prev, err := json.MarshalIndent(in.PreviousRecord, "", "  ")
		if err == nil {
			sb.WriteString("\n**Previous Code Context**:\n")
			sb.WriteString("The last CPT code extracted from the previous page range was:\n")
			sb.Write(prev)
			sb.WriteString("\nIf the FIRST code in the current text is a child code (starts with a semicolon or is indented), use the description from this previous code as the PARENT.\n")
		}
	}

	text := in.Text
	truncated := false
	if in.MaxBytes > 0 && len(text) > in.MaxBytes {
		text = text[:in.MaxBytes]
		truncated = true
	}
	sb.WriteString("\n**Input Text**:\n")
	sb.WriteString(text)
	if truncated {
		sb.WriteString("\n(Note: Text truncated to fit context window)")
	}
	return sb.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// EstimateTokens gives a rough token count for logging prompt sizes.
// Exact tokenization is not required; ~1.33 tokens per word is close
// enough for English prose.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	tokens := int(float64(len(strings.Fields(text))) * 1.33)
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
