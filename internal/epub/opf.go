package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"strings"
)

const containerPath = "META-INF/container.xml"

// containerXML models META-INF/container.xml, used to locate the OPF.
type containerXML struct {
	XMLName   xml.Name `xml:"container"`
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

// opfPackage is the root <package> element of an OPF file. Only the pieces
// the navigator needs are modelled: the manifest and the spine.
type opfPackage struct {
	XMLName  xml.Name `xml:"package"`
	Version  string   `xml:"version,attr"`
	Manifest struct {
		Items []opfManifestItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []opfSpineItemRef `xml:"itemref"`
	} `xml:"spine"`
}

type opfManifestItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

type opfSpineItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// spineItem is a resolved reading-order entry: the manifest item a spine
// itemref points at, with its href resolved relative to the OPF directory.
type spineItem struct {
	IDRef     string
	Href      string
	MediaType string
}

// parseContainer locates the OPF path inside the archive. It reads
// META-INF/container.xml first and falls back to scanning for a ".opf"
// entry, wrapping ErrMalformedDocument when neither yields a path.
func parseContainer(zr *zip.Reader) (string, error) {
	f := findFile(zr, containerPath)
	if f == nil {
		for _, zf := range zr.File {
			if strings.HasSuffix(strings.ToLower(zf.Name), ".opf") {
				return zf.Name, nil
			}
		}
		return "", fmt.Errorf("epub: no container.xml and no OPF entry: %w", ErrMalformedDocument)
	}

	data, err := readZipFile(f)
	if err != nil {
		return "", fmt.Errorf("epub: read container.xml: %w", err)
	}

	var c containerXML
	if err := xml.Unmarshal(stripBOM(data), &c); err != nil {
		return "", fmt.Errorf("epub: parse container.xml: %v: %w", err, ErrMalformedDocument)
	}

	for _, rf := range c.RootFiles {
		fullPath := strings.TrimSpace(rf.FullPath)
		if fullPath == "" {
			continue
		}
		if rf.MediaType == "" || strings.EqualFold(strings.TrimSpace(rf.MediaType), "application/oebps-package+xml") {
			return fullPath, nil
		}
	}
	return "", fmt.Errorf("epub: container.xml has no usable rootfile: %w", ErrMalformedDocument)
}

// parseOPF decodes an OPF file and resolves the spine into reading-order
// items with archive-relative hrefs.
func parseOPF(data []byte, opfPath string) ([]spineItem, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(stripBOM(data), &pkg); err != nil {
		return nil, fmt.Errorf("epub: parse OPF: %v: %w", err, ErrMalformedDocument)
	}

	byID := make(map[string]opfManifestItem, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		byID[item.ID] = item
	}

	var spine []spineItem
	for _, ref := range pkg.Spine.ItemRefs {
		mi, ok := byID[ref.IDRef]
		if !ok {
			continue
		}
		href := resolveRelativePath(opfPath, mi.Href)
		if href == "" {
			continue
		}
		spine = append(spine, spineItem{
			IDRef:     ref.IDRef,
			Href:      href,
			MediaType: mi.MediaType,
		})
	}

	if len(spine) == 0 {
		return nil, fmt.Errorf("epub: OPF spine resolves to no content files: %w", ErrMalformedDocument)
	}
	return spine, nil
}
