package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ============================================================
// Filesystem Fetcher
// ============================================================

// FSFetcher serves locations out of a filesystem, usually os.DirFS of the
// data root.
type FSFetcher struct {
	fsys fs.FS
}

func NewFSFetcher(fsys fs.FS) *FSFetcher {
	return &FSFetcher{fsys: fsys}
}

func (f *FSFetcher) Fetch(ctx context.Context, location string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}

	name, err := fsName(location)
	if err != nil {
		return nil, &FetchError{Location: location, Status: http.StatusBadRequest, Err: err}
	}

	data, err := fs.ReadFile(f.fsys, name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fs.ErrNotExist) {
			status = http.StatusNotFound
		}
		return nil, &FetchError{Location: location, Status: status, Err: err}
	}

	return &Document{
		Location:    name,
		ContentType: contentType(name, data),
		Body:        data,
	}, nil
}

// fsName strips URL decoration so "doc/saw%20table.html?x" reads
// "doc/saw table.html".
func fsName(location string) (string, error) {
	u, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	if u.Scheme != "" && u.Scheme != "file" {
		return "", fmt.Errorf("scheme %q not served from disk", u.Scheme)
	}
	name := path.Clean(strings.TrimPrefix(u.Path, "/"))
	if !fs.ValidPath(name) {
		return "", fmt.Errorf("invalid path %q", location)
	}
	return name, nil
}

func contentType(name string, data []byte) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	switch strings.ToLower(path.Ext(name)) {
	case ".md", ".markdown":
		return "text/markdown; charset=utf-8"
	}
	return http.DetectContentType(data)
}

// ============================================================
// Source discovery
// ============================================================

// Expand turns glob patterns ("furnashings/**/*.json") into the sorted list
// of matching files. Patterns without meta characters are kept as given,
// even when missing, so the failure is reported by the fetch.
func Expand(fsys fs.FS, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	for _, pattern := range patterns {
		if !strings.ContainsAny(pattern, "*?[{") {
			if !seen[pattern] {
				seen[pattern] = true
				out = append(out, pattern)
			}
			continue
		}

		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}

	return out, nil
}
