package results

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// preferredColumns fixes the order of known fields in CSV output. Any
// extra fields found in the input follow, sorted by name.
var preferredColumns = []string{
	"code",
	"code_description",
	"code_type",
	"section",
	"section_text",
	"subsection",
	"subsection_text",
	"subheading",
	"subheading_text",
	"topic",
	"topic_text",
	"code_version",
}

// ConvertJSONLToCSV reads JSONL records from r and writes them as CSV to w.
// The header is the union of all fields seen across the input.
func ConvertJSONLToCSV(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var rows []map[string]any
	seen := make(map[string]bool)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(text, &row); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		for k := range row {
			seen[k] = true
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	if len(rows) == 0 {
		return nil
	}

	header := columnOrder(seen)
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		out := make([]string, len(header))
		for i, col := range header {
			out[i] = fieldString(row[col])
		}
		if err := cw.Write(out); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func columnOrder(seen map[string]bool) []string {
	var header []string
	for _, col := range preferredColumns {
		if seen[col] {
			header = append(header, col)
			delete(seen, col)
		}
	}
	var extra []string
	for col := range seen {
		extra = append(extra, col)
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func fieldString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return fmt.Sprintf("%g", t)
	case bool:
		return fmt.Sprintf("%t", t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
