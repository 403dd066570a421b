package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxSourceSize caps a single downloaded track source
const maxSourceSize = 512 << 20

// FetchError reports a track source that could not be retrieved
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPFetcher downloads track sources over http(s)
type HTTPFetcher struct {
	httpClient *http.Client
}

// NewHTTPFetcher creates a fetcher whose requests time out after timeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Fetch downloads the bytes at rawURL
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("unsupported url scheme")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceSize))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	return data, nil
}

// FileFetcher reads track sources from local paths and file:// URLs.
// Relative paths resolve against BaseDir.
type FileFetcher struct {
	BaseDir string
}

// Fetch reads the file behind location
func (f FileFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := strings.TrimPrefix(location, "file://")
	if !filepath.IsAbs(path) && f.BaseDir != "" {
		path = filepath.Join(f.BaseDir, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{URL: location, Err: err}
	}
	return data, nil
}

// SourceFetcher routes http(s) URLs to the HTTP fetcher and everything else
// to the file fetcher
type SourceFetcher struct {
	HTTP  *HTTPFetcher
	Files FileFetcher
}

// Fetch retrieves location from the web or the local disk
func (f SourceFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		if f.HTTP == nil {
			return nil, &FetchError{URL: location, Err: fmt.Errorf("remote sources disabled")}
		}
		return f.HTTP.Fetch(ctx, location)
	}
	return f.Files.Fetch(ctx, location)
}
