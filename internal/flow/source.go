// ABOUTME: Flow sources: HTTP pull from the authoring service and a static file source.
// ABOUTME: Both decode the same JSON flow payload.

package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// HTTPSource pulls flow definitions from the authoring service over HTTP.
// The endpoint returns a JSON array of flows.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates an HTTPSource for the given endpoint URL.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Flow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("building flow request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching flows: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("flow source returned status %d", resp.StatusCode)
	}

	return decodeFlows(resp.Body)
}

// FileSource reads flow definitions from a local JSON file. Used in dev
// setups without an authoring service.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context) ([]Flow, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening flow file: %w", err)
	}
	defer f.Close()

	return decodeFlows(f)
}

func decodeFlows(r io.Reader) ([]Flow, error) {
	var flows []Flow
	if err := json.NewDecoder(r).Decode(&flows); err != nil {
		return nil, fmt.Errorf("decoding flows: %w", err)
	}
	return flows, nil
}
