package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// ============================================================
// Source documents
// ============================================================

// Document is the raw body of a fetched resource.
type Document struct {
	Location    string
	ContentType string
	Body        []byte
}

// Fetcher retrieves item documents and description resources by location.
// Locations are slash-separated and may be relative to the fetcher's root.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (*Document, error)
}

// FetchError reports a resource that could not be retrieved.
type FetchError struct {
	Location string
	Status   int // HTTP status, 0 when the request never completed
	Err      error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.Location, e.Status)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Resolve interprets ref relative to the document at base, the way a
// browser resolves a link found in that document.
func Resolve(base, ref string) string {
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	resolved := baseURL.ResolveReference(refURL)

	// ResolveReference roots merged paths; keep relative bases relative.
	if resolved.Scheme == "" && resolved.Host == "" && !strings.HasPrefix(base, "/") && !strings.HasPrefix(ref, "/") {
		resolved.Path = strings.TrimPrefix(resolved.Path, "/")
		resolved.RawPath = ""
	}
	return resolved.String()
}
