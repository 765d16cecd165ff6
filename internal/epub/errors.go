package epub

import "errors"

// Sentinel errors returned by the epub package.
var (
	// ErrPageNotFound indicates a requested page marker (id="page_N")
	// does not exist anywhere in the document.
	ErrPageNotFound = errors.New("epub: page marker not found")

	// ErrMalformedDocument indicates the archive cannot be read as a
	// valid EPUB (missing container, OPF, or an empty spine).
	ErrMalformedDocument = errors.New("epub: malformed document")
)
