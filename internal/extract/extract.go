// Package extract talks to the headless-browser sidecar that renders a
// page and returns its visible text, used to enrich items whose feeds
// carry no useful excerpt.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultMaxChars = 2000
	requestTimeout  = 25 * time.Second
)

type Client struct {
	baseURL  string
	client   *http.Client
	maxChars int
}

// NewClient returns nil when baseURL is empty; callers treat a nil
// client as "enrichment disabled".
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL:  baseURL,
		client:   &http.Client{Timeout: requestTimeout},
		maxChars: defaultMaxChars,
	}
}

type extractRequest struct {
	URL      string `json:"url"`
	MaxChars int    `json:"maxChars"`
}

type extractResponse struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Text fetches the rendered body text of url. A nil client or any
// failure yields an empty string with the error; enrichment is always
// best-effort.
func (c *Client) Text(ctx context.Context, url string) (string, error) {
	if c == nil {
		return "", nil
	}
	body, err := json.Marshal(extractRequest{URL: url, MaxChars: c.maxChars})
	if err != nil {
		return "", fmt.Errorf("extract: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("extract: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("extract: %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("extract: %s: status %d", url, resp.StatusCode)
	}

	var out extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("extract: decode response for %s: %w", url, err)
	}
	if !out.OK {
		return "", fmt.Errorf("extract: %s: %s", url, out.Error)
	}
	return out.Text, nil
}
