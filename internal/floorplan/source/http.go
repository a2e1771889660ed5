package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ============================================================
// HTTP Fetcher
// ============================================================

type HTTPFetcher struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPFetcher resolves relative locations against baseURL.
func NewHTTPFetcher(baseURL string, client *http.Client) (*HTTPFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{base: base, client: client}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, location string) (*Document, error) {
	ref, err := url.Parse(location)
	if err != nil {
		return nil, &FetchError{Location: location, Err: err}
	}
	target := f.base.ResolveReference(ref).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Location: target, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Location: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Location: target, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Location: target, Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Document{
		Location:    resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}
