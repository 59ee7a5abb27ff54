// Package members loads the member activity snapshot the report is compiled from.
package members

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	userAgent = "statusreport/1.0 (+https://github.com/brensch/statusreport)"
	// maxDocumentSize bounds how much of a remote response is read.
	maxDocumentSize = 16 << 20
)

// Source returns the raw JSON snapshot.
type Source interface {
	Load(ctx context.Context) ([]byte, error)
}

// FileSource reads the snapshot from disk on every load, so an external job
// can replace the file between runs.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read member file %s: %w", s.Path, err)
	}
	return data, nil
}

// HTTPSource fetches the snapshot with a GET request.
type HTTPSource struct {
	URL        string
	httpClient *http.Client
}

// NewHTTPSource creates a source with a 30 second request timeout.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		URL: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (s *HTTPSource) Load(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create member request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("member request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("member request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read member response: %w", err)
	}

	slog.Debug("fetched member snapshot", "url", s.URL, "bytes", len(body))
	return body, nil
}

// NewSource prefers the URL when both are configured.
func NewSource(path, url string) Source {
	if url != "" {
		return NewHTTPSource(url)
	}
	return FileSource{Path: path}
}
