// Package epub locates page ranges and heading context inside an EPUB's
// reading-order content.
//
// A Navigator parses the archive fully into memory at open time: the OPF
// spine is resolved, all content files are concatenated into one merged
// reading-order buffer, and a single scan over that buffer indexes page
// markers (id="page_N" anchors) and heading events. Queries afterwards are
// pure lookups over the immutable indexes.
//
// A Navigator is not safe for concurrent use; open one per goroutine.
package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"sort"
	"strings"
)

// Navigator answers page-range and hierarchy-context queries over a single
// opened EPUB. Create one with Open or NewReader and Close it when done.
type Navigator struct {
	closer io.Closer

	opfPath string
	spine   []spineItem

	content []byte // merged reading-order markup
	units   []unit

	pages     []PageMarker // ordered by offset
	pageByNum map[int]int  // page number -> index into pages
	headings  []HeadingEvent
}

// unit is one spine file's slice of the merged content buffer.
type unit struct {
	Href  string
	Start int
	End   int
}

// HierarchyContext is the set of headings active at a position. Levels with
// no preceding heading are empty strings.
type HierarchyContext struct {
	Section    string `json:"section"`
	Subsection string `json:"subsection"`
	Subheading string `json:"subheading"`
	Topic      string `json:"topic"`
}

// ChapterRange is the page span covered by one spine file.
type ChapterRange struct {
	SpineIndex int    `json:"spine_index"`
	Href       string `json:"href"`
	StartPage  int    `json:"start_page"`
	EndPage    int    `json:"end_page"`
}

// Open opens the EPUB at path. The caller must Close the Navigator.
// A page-map sidecar next to the file is used when valid, and written
// after a fresh scan (best effort).
func Open(path string) (*Navigator, error) {
	zrc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("epub: open %s: %v: %w", path, err, ErrMalformedDocument)
	}
	nav, err := build(&zrc.Reader, zrc, sidecarPath(path))
	if err != nil {
		zrc.Close()
		return nil, err
	}
	return nav, nil
}

// NewReader creates a Navigator from in-memory or otherwise random-access
// EPUB bytes. The caller owns the lifetime of r.
func NewReader(r io.ReaderAt, size int64) (*Navigator, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("epub: open zip: %v: %w", err, ErrMalformedDocument)
	}
	return build(zr, nil, "")
}

func build(zr *zip.Reader, closer io.Closer, sidecar string) (*Navigator, error) {
	opfPath, err := parseContainer(zr)
	if err != nil {
		return nil, err
	}

	opfFile := findFile(zr, opfPath)
	if opfFile == nil {
		return nil, fmt.Errorf("epub: OPF %s not in archive: %w", opfPath, ErrMalformedDocument)
	}
	opfData, err := readZipFile(opfFile)
	if err != nil {
		return nil, err
	}
	spine, err := parseOPF(opfData, opfPath)
	if err != nil {
		return nil, err
	}

	nav := &Navigator{
		closer:  closer,
		opfPath: opfPath,
		spine:   spine,
	}

	// Merge spine files into one reading-order buffer so that range
	// capture never has to special-case file boundaries.
	var buf []byte
	for _, si := range spine {
		if !isContentMediaType(si.MediaType) {
			continue
		}
		f := findFile(zr, si.Href)
		if f == nil {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, err
		}
		data = stripBOM(data)
		start := len(buf)
		buf = append(buf, data...)
		nav.units = append(nav.units, unit{Href: si.Href, Start: start, End: len(buf)})
	}
	if len(nav.units) == 0 {
		return nil, fmt.Errorf("epub: no readable content files in spine: %w", ErrMalformedDocument)
	}
	nav.content = buf

	hash := contentHash(buf)
	if pm, ok := loadPageMap(sidecar, hash); ok {
		nav.pages = pm.Pages
		nav.headings = pm.Headings
	} else {
		nav.pages, nav.headings = scanContent(buf)
		savePageMap(sidecar, hash, nav.pages, nav.headings)
	}

	nav.pageByNum = make(map[int]int, len(nav.pages))
	for i, p := range nav.pages {
		if _, dup := nav.pageByNum[p.Page]; !dup {
			nav.pageByNum[p.Page] = i
		}
	}
	return nav, nil
}

// Close releases the underlying archive handle, if this Navigator owns one.
func (n *Navigator) Close() error {
	if n.closer != nil {
		return n.closer.Close()
	}
	return nil
}

// PageCount reports how many page markers the document carries.
func (n *Navigator) PageCount() int { return len(n.pages) }

// MaxPage reports the highest page number seen, or 0 when the document has
// no page markers.
func (n *Navigator) MaxPage() int {
	max := 0
	for _, p := range n.pages {
		if p.Page > max {
			max = p.Page
		}
	}
	return max
}

// GetContentByPageRange returns the raw markup spanning pages start..end
// inclusive, in reading order. Capture begins at the start page's marker
// and stops at the marker of page end+1, or at document end when that
// marker is absent. The start marker must exist or ErrPageNotFound is
// returned; unit boundaries inside the range are plain concatenation.
func (n *Navigator) GetContentByPageRange(start, end int) (string, error) {
	if start <= 0 || end < start {
		return "", fmt.Errorf("epub: invalid page range %d-%d", start, end)
	}
	si, ok := n.pageByNum[start]
	if !ok {
		return "", fmt.Errorf("epub: page_%d: %w", start, ErrPageNotFound)
	}
	startOff := n.pages[si].Offset

	endOff := len(n.content)
	if ei, ok := n.pageByNum[end+1]; ok {
		endOff = n.pages[ei].Offset
	}
	if endOff < startOff {
		return "", fmt.Errorf("epub: page markers out of order (page_%d after page_%d): %w", start, end+1, ErrMalformedDocument)
	}
	return string(n.content[startOff:endOff]), nil
}

// GetHierarchyContext resolves the section/subsection/subheading/topic
// headings active at the given page's marker by scanning the heading index
// backwards, taking the first event found at each level. Pure query; the
// page marker must exist.
func (n *Navigator) GetHierarchyContext(page int) (HierarchyContext, error) {
	var ctx HierarchyContext
	pi, ok := n.pageByNum[page]
	if !ok {
		return ctx, fmt.Errorf("epub: page_%d: %w", page, ErrPageNotFound)
	}
	target := n.pages[pi].Offset

	// First heading index at or past the marker.
	i := sort.Search(len(n.headings), func(i int) bool {
		return n.headings[i].Offset >= target
	})

	var levels [5]string // 1..4 used
	resolved := 0
	for i--; i >= 0 && resolved < 4; i-- {
		ev := n.headings[i]
		if ev.Level < 1 || ev.Level > 4 {
			continue
		}
		if levels[ev.Level] == "" {
			levels[ev.Level] = ev.Text
			resolved++
		}
	}

	ctx.Section = levels[1]
	ctx.Subsection = levels[2]
	ctx.Subheading = levels[3]
	ctx.Topic = levels[4]
	return ctx, nil
}

// ChapterBoundaries returns, per spine file that carries page markers, the
// first and last page number inside it, in reading order.
func (n *Navigator) ChapterBoundaries() []ChapterRange {
	var out []ChapterRange
	for i, u := range n.units {
		first, last := 0, 0
		for _, p := range n.pages {
			if p.Offset < u.Start || p.Offset >= u.End {
				continue
			}
			if first == 0 || p.Page < first {
				first = p.Page
			}
			if p.Page > last {
				last = p.Page
			}
		}
		if first > 0 {
			out = append(out, ChapterRange{
				SpineIndex: i,
				Href:       u.Href,
				StartPage:  first,
				EndPage:    last,
			})
		}
	}
	return out
}

func isContentMediaType(mt string) bool {
	switch strings.ToLower(strings.TrimSpace(mt)) {
	case "", "application/xhtml+xml", "text/html", "application/html", "text/x-oeb1-document":
		return true
	}
	return false
}
