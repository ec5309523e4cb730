package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	ghSearchURL   = "https://api.github.com/search/repositories"
	ghMaxResults  = 30
	ghMinStars    = 10
	ghSearchScope = "power-electronics OR semiconductor OR sic OR gan OR igbt"
)

// GitHubCollector searches recently created repositories via the REST
// search API. The documented budget is 10 req/min unauthenticated and
// 30 req/min with a token; the limiter enforces whichever applies.
type GitHubCollector struct {
	Token   string
	BaseURL string

	limiter *rate.Limiter
}

func NewGitHub(token string) *GitHubCollector {
	interval := 6 * time.Second
	if token != "" {
		interval = 2 * time.Second
	}
	return &GitHubCollector{
		Token:   token,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

func (g *GitHubCollector) Name() string { return "github" }

func (g *GitHubCollector) Kind() Kind { return KindCode }

type ghSearchResponse struct {
	Items []struct {
		Name            string   `json:"name"`
		FullName        string   `json:"full_name"`
		Description     string   `json:"description"`
		HTMLURL         string   `json:"html_url"`
		StargazersCount int      `json:"stargazers_count"`
		Topics          []string `json:"topics"`
		CreatedAt       string   `json:"created_at"`
	} `json:"items"`
}

func (g *GitHubCollector) Fetch(ctx context.Context) ([]Item, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &CollectorError{Source: g.Name(), Err: err}
	}

	since := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
	q := fmt.Sprintf("(%s) created:>=%s stars:>=%d", ghSearchScope, since, ghMinStars)

	endpoint := g.BaseURL
	if endpoint == "" {
		endpoint = ghSearchURL
	}
	u := fmt.Sprintf("%s?q=%s&sort=stars&order=desc&per_page=%d", endpoint, url.QueryEscape(q), ghMaxResults)

	header := http.Header{"Accept": []string{"application/vnd.github.v3+json"}}
	if g.Token != "" {
		header.Set("Authorization", "token "+g.Token)
	}

	var resp ghSearchResponse
	if err := getJSON(ctx, newClient(), u, header, &resp); err != nil {
		return nil, &CollectorError{Source: g.Name(), Err: fmt.Errorf("search repositories: %w", err)}
	}

	items := make([]Item, 0, len(resp.Items))
	for rank, repo := range resp.Items {
		if repo.FullName == "" || repo.HTMLURL == "" {
			continue
		}
		pub := time.Now()
		if t, err := time.Parse(time.RFC3339, repo.CreatedAt); err == nil {
			pub = t
		}
		items = append(items, Item{
			Title:       repo.FullName,
			URL:         repo.HTMLURL,
			PublishedAt: pub,
			Excerpt:     TruncateRunes(repo.Description, excerptMaxRunes),
			SourceName:  "github",
			SourceKind:  KindCode,
			Rank:        rank + 1,
			Votes:       repo.StargazersCount,
		})
	}
	return items, nil
}
