// Package giphy is a narrow client for the GIF search provider: look up the
// top result for a keyword and download it to a local file.
package giphy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const defaultBaseURL = "https://api.giphy.com"

// ErrNoResults is returned when the provider has no GIF for a keyword.
var ErrNoResults = fmt.Errorf("no results for keyword")

// SearchError represents a non-2xx response from the provider.
type SearchError struct {
	StatusCode int
	Body       string
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("gif search failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// GIF is the top search result for a keyword.
type GIF struct {
	ID     string
	Title  string
	URL    string
	Width  int
	Height int
}

type Client interface {
	Search(ctx context.Context, keyword string) (*GIF, error)
	Download(ctx context.Context, gifURL, dst string) error
}

type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL, apiKey string, logger *slog.Logger) *HTTPClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type searchResponse struct {
	Data []struct {
		ID     string `json:"id"`
		Title  string `json:"title"`
		Images struct {
			Original struct {
				URL    string `json:"url"`
				Width  string `json:"width"`
				Height string `json:"height"`
			} `json:"original"`
		} `json:"images"`
	} `json:"data"`
}

func (c *HTTPClient) Search(ctx context.Context, keyword string) (*GIF, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("q", keyword)
	q.Set("limit", "1")
	q.Set("rating", "g")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/v1/gifs/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &SearchError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoResults, keyword)
	}

	hit := result.Data[0]
	width, _ := strconv.Atoi(hit.Images.Original.Width)
	height, _ := strconv.Atoi(hit.Images.Original.Height)

	if c.logger != nil {
		c.logger.Debug("gif search hit", "keyword", keyword, "id", hit.ID)
	}
	return &GIF{
		ID:     hit.ID,
		Title:  hit.Title,
		URL:    hit.Images.Original.URL,
		Width:  width,
		Height: height,
	}, nil
}

// Download fetches the GIF bytes to dst. The write goes through a temp file
// and a rename so a failed download never leaves a partial file at dst.
func (c *HTTPClient) Download(ctx context.Context, gifURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, gifURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &SearchError{StatusCode: resp.StatusCode, Body: "download failed"}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".gif-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write gif: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close gif: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("finalize gif: %w", err)
	}
	return nil
}
