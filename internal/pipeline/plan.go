package pipeline

import "github.com/cpt-tools/cptgest/internal/epub"

// ChunkRange is one page window submitted to the model as a single prompt.
type ChunkRange struct {
	StartPage int
	EndPage   int
}

// PlanFixed splits pages start..end inclusive into windows of stride pages.
// The last window may be shorter.
func PlanFixed(start, end, stride int) []ChunkRange {
	if start <= 0 || end < start {
		return nil
	}
	if stride <= 0 {
		stride = 1
	}
	var out []ChunkRange
	for s := start; s <= end; s += stride {
		e := s + stride - 1
		if e > end {
			e = end
		}
		out = append(out, ChunkRange{StartPage: s, EndPage: e})
	}
	return out
}

// PlanChapters turns chapter boundaries into chunk ranges clipped to
// start..end. Chapters entirely outside the requested range are skipped.
func PlanChapters(bounds []epub.ChapterRange, start, end int) []ChunkRange {
	var out []ChunkRange
	for _, b := range bounds {
		s, e := b.StartPage, b.EndPage
		if s < start {
			s = start
		}
		if e > end {
			e = end
		}
		if s > e {
			continue
		}
		out = append(out, ChunkRange{StartPage: s, EndPage: e})
	}
	return out
}
