package extract

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Record is one extracted CPT code with its resolved description and the
// heading hierarchy active at its position. This is the full output schema;
// the simplified prompt variant fills only Code and CodeDescription.
type Record struct {
	Code            string `json:"code"`
	CodeDescription string `json:"code_description"`
	CodeType        string `json:"code_type"`
	Section         string `json:"section"`
	SectionText     string `json:"section_text"`
	Subsection      string `json:"subsection"`
	SubsectionText  string `json:"subsection_text"`
	Subheading      string `json:"subheading"`
	SubheadingText  string `json:"subheading_text"`
	Topic           string `json:"topic"`
	TopicText       string `json:"topic_text"`
	CodeVersion     string `json:"code_version"`
}

var codeFenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```$")

// StripCodeFences removes a surrounding markdown code block, if present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	return s
}

// ParseRecords decodes model output. The prompt asks for JSON Lines, so
// each line is tried as an independent object first; if no line parses,
// the whole text is retried as a JSON array (or single object), since
// models occasionally ignore the ndjson instruction.
func ParseRecords(raw string) ([]Record, error) {
	raw = StripCodeFences(raw)

	var records []Record
	var lastErr error
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "," {
			continue
		}
		line = strings.TrimSuffix(line, ",")
		var r Record
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			lastErr = err
			continue
		}
		records = append(records, r)
	}
	if len(records) > 0 {
		return records, nil
	}

	// Whole-text fallback.
	var arr []Record
	if err := json.Unmarshal([]byte(raw), &arr); err == nil {
		return arr, nil
	}
	var one Record
	if err := json.Unmarshal([]byte(raw), &one); err == nil && one.Code != "" {
		return []Record{one}, nil
	}

	if lastErr == nil {
		lastErr = json.Unmarshal([]byte(raw), &arr)
	}
	return nil, lastErr
}

// Category I codes are five digits; Category II end in F, Category III in T,
// and proprietary lab analyses in U.
var cptCodeRe = regexp.MustCompile(`^\d{5}$|^\d{4}[FTU]$`)

// ValidateRecord normalizes a record in place and reports whether it is
// usable. Codes are trimmed and upper-cased; missing code_type and
// code_version fall back to defaults.
func ValidateRecord(r *Record, defaultVersion string) bool {
	if r == nil {
		return false
	}
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	r.CodeDescription = strings.TrimSpace(r.CodeDescription)

	if !cptCodeRe.MatchString(r.Code) {
		return false
	}
	if r.CodeDescription == "" || len(r.CodeDescription) > 2000 {
		return false
	}
	if r.CodeType == "" {
		r.CodeType = "CPT"
	}
	if r.CodeVersion == "" {
		r.CodeVersion = defaultVersion
	}
	return true
}
