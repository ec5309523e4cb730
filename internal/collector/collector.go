package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Kind enumerates the source variants. Dispatch is by this value, there
// is no collector base type.
type Kind string

const (
	KindRSS    Kind = "rss"
	KindStory  Kind = "story"
	KindCode   Kind = "code"
	KindLaunch Kind = "launch"
	KindSocial Kind = "social"
	KindPress  Kind = "press"
)

// Item is one normalized news item as produced by a collector. Items are
// write-once: nothing downstream mutates them.
type Item struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Excerpt     string    `json:"excerpt"`
	SourceName  string    `json:"source_name"`
	SourceKind  Kind      `json:"source_kind"`

	// Social-only decoration.
	AuthorHandle  string `json:"author_handle,omitempty"`
	AuthorDisplay string `json:"author_display,omitempty"`

	// Source-local popularity signals, zero when the source has none.
	Rank  int `json:"rank,omitempty"`
	Votes int `json:"votes,omitempty"`
}

// Collector fetches one external source. "No results" is an empty slice,
// not an error.
type Collector interface {
	Name() string
	Kind() Kind
	Fetch(ctx context.Context) ([]Item, error)
}

// CollectorError wraps a network or parse failure for one source. The
// orchestrator records it and carries on with the other sources.
type CollectorError struct {
	Source string
	Err    error
}

func (e *CollectorError) Error() string {
	return fmt.Sprintf("collector %s: %v", e.Source, e.Err)
}

func (e *CollectorError) Unwrap() error { return e.Err }

const (
	maxResponseBytes = 1 << 20 // 1MB
	clientTimeout    = 10 * time.Second
	maxFetchTries    = 3
)

func newClient() *http.Client {
	return &http.Client{Timeout: clientTimeout}
}

// getJSON performs a GET with bounded retry and decodes the JSON body.
// 4xx responses are permanent; 429/5xx and transport errors are retried
// with exponential backoff.
func getJSON(ctx context.Context, client *http.Client, url string, header http.Header, out any) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		resp, err := client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return struct{}{}, fmt.Errorf("status %d", resp.StatusCode)
		default:
			return struct{}{}, backoff.Permanent(fmt.Errorf("status %d", resp.StatusCode))
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return struct{}{}, err
		}
		if err := json.Unmarshal(body, out); err != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, nil
	}, backoff.WithMaxTries(maxFetchTries), backoff.WithBackOff(backoff.NewExponentialBackOff()))
	return err
}
