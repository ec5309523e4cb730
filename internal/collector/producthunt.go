package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	phGraphQLURL = "https://api.producthunt.com/v2/api/graphql"
	phMaxPosts   = 20
)

// 200 requests/day free tier; one burst per run is fine but keep a
// limiter so scheduled runs cannot drain the budget.
var phRequestInterval = 30 * time.Second

const phPostsQuery = `query GetPosts($first: Int!, $postedAfter: DateTime) {
  posts(first: $first, postedAfter: $postedAfter, order: VOTES) {
    edges {
      node {
        name
        tagline
        url
        website
        votesCount
        createdAt
      }
    }
  }
}`

// ProductHuntCollector pulls yesterday's top launches over GraphQL.
// Without a PH_TOKEN the collector reports no results.
type ProductHuntCollector struct {
	Token   string
	BaseURL string

	limiter *rate.Limiter
}

func NewProductHunt(token string) *ProductHuntCollector {
	return &ProductHuntCollector{
		Token:   token,
		limiter: rate.NewLimiter(rate.Every(phRequestInterval), 1),
	}
}

func (p *ProductHuntCollector) Name() string { return "producthunt" }

func (p *ProductHuntCollector) Kind() Kind { return KindLaunch }

type phResponse struct {
	Data struct {
		Posts struct {
			Edges []struct {
				Node struct {
					Name       string `json:"name"`
					Tagline    string `json:"tagline"`
					URL        string `json:"url"`
					Website    string `json:"website"`
					VotesCount int    `json:"votesCount"`
					CreatedAt  string `json:"createdAt"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"posts"`
	} `json:"data"`
}

func (p *ProductHuntCollector) Fetch(ctx context.Context) ([]Item, error) {
	if p.Token == "" {
		// Degrade to empty rather than error, per contract.
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, &CollectorError{Source: p.Name(), Err: err}
	}

	postedAfter := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	payload, err := json.Marshal(map[string]any{
		"query": phPostsQuery,
		"variables": map[string]any{
			"first":       phMaxPosts,
			"postedAfter": postedAfter.Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, &CollectorError{Source: p.Name(), Err: err}
	}

	endpoint := p.BaseURL
	if endpoint == "" {
		endpoint = phGraphQLURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &CollectorError{Source: p.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := newClient().Do(req)
	if err != nil {
		return nil, &CollectorError{Source: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &CollectorError{Source: p.Name(), Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &CollectorError{Source: p.Name(), Err: err}
	}
	var out phResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &CollectorError{Source: p.Name(), Err: fmt.Errorf("decode graphql: %w", err)}
	}

	items := make([]Item, 0, len(out.Data.Posts.Edges))
	for rank, edge := range out.Data.Posts.Edges {
		n := edge.Node
		if n.Name == "" {
			continue
		}
		link := n.Website
		if link == "" {
			link = n.URL
		}
		if link == "" {
			continue
		}
		pub := time.Now()
		if t, err := time.Parse(time.RFC3339, n.CreatedAt); err == nil {
			pub = t
		}
		items = append(items, Item{
			Title:       n.Name,
			URL:         link,
			PublishedAt: pub,
			Excerpt:     TruncateRunes(n.Tagline, excerptMaxRunes),
			SourceName:  "producthunt",
			SourceKind:  KindLaunch,
			Rank:        rank + 1,
			Votes:       n.VotesCount,
		})
	}
	return items, nil
}
