package collector

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	xAPIBase      = "https://api.x.com/2"
	xTweetsPerAcc = 10
	xTitleMax     = 90
)

// XAPICollector reads recent posts for the configured accounts through
// the official v2 API. Without a bearer token it reports no results.
type XAPICollector struct {
	Accounts []string
	Token    string
	BaseURL  string
}

func NewXAPI(accounts []string, token string) *XAPICollector {
	return &XAPICollector{Accounts: accounts, Token: token}
}

func (x *XAPICollector) Name() string { return "x_api" }

func (x *XAPICollector) Kind() Kind { return KindSocial }

func (x *XAPICollector) base() string {
	if x.BaseURL != "" {
		return x.BaseURL
	}
	return xAPIBase
}

type xUserResponse struct {
	Data struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"data"`
}

type xTweetsResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
}

func (x *XAPICollector) Fetch(ctx context.Context) ([]Item, error) {
	if x.Token == "" || len(x.Accounts) == 0 {
		return nil, nil
	}

	client := newClient()
	header := http.Header{"Authorization": []string{"Bearer " + x.Token}}

	var items []Item
	var lastErr error
	for _, name := range x.Accounts {
		var user xUserResponse
		if err := getJSON(ctx, client, fmt.Sprintf("%s/users/by/username/%s", x.base(), name), header, &user); err != nil {
			log.Printf("x_api: lookup %s: %v", name, err)
			lastErr = err
			continue
		}
		if user.Data.ID == "" {
			continue
		}

		var tweets xTweetsResponse
		u := fmt.Sprintf("%s/users/%s/tweets?max_results=%d&tweet.fields=created_at", x.base(), user.Data.ID, xTweetsPerAcc)
		if err := getJSON(ctx, client, u, header, &tweets); err != nil {
			log.Printf("x_api: tweets %s: %v", name, err)
			lastErr = err
			continue
		}

		for _, tw := range tweets.Data {
			if strings.TrimSpace(tw.Text) == "" {
				continue
			}
			pub := time.Now()
			if t, err := time.Parse(time.RFC3339, tw.CreatedAt); err == nil {
				pub = t
			}
			items = append(items, Item{
				Title:         TruncateRunes(firstLine(tw.Text), xTitleMax),
				URL:           fmt.Sprintf("https://x.com/%s/status/%s", name, tw.ID),
				PublishedAt:   pub,
				Excerpt:       TruncateRunes(tw.Text, excerptMaxRunes),
				SourceName:    "x.com",
				SourceKind:    KindSocial,
				AuthorHandle:  name,
				AuthorDisplay: user.Data.Name,
			})
		}
	}

	if len(items) == 0 && lastErr != nil {
		return nil, &CollectorError{Source: x.Name(), Err: lastErr}
	}
	return items, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var xStatusRe = regexp.MustCompile(`^https?://[^/]+/([^/]+)/status/(\d+)`)

// XMirrorCollector reads an account timeline through a mirror RSS base
// (nitter-style: <base>/<account>/rss), normalizing links back to x.com.
type XMirrorCollector struct {
	Base     string
	Accounts []string
	parser   *gofeed.Parser
}

func NewXMirror(base string, accounts []string) *XMirrorCollector {
	return &XMirrorCollector{Base: base, Accounts: accounts, parser: gofeed.NewParser()}
}

func (x *XMirrorCollector) Name() string { return "x_rss" }

func (x *XMirrorCollector) Kind() Kind { return KindSocial }

func (x *XMirrorCollector) Fetch(ctx context.Context) ([]Item, error) {
	if x.Base == "" || len(x.Accounts) == 0 {
		return nil, nil
	}

	var items []Item
	var lastErr error
	for _, name := range x.Accounts {
		feedURL := strings.TrimRight(x.Base, "/") + "/" + name + "/rss"
		feed, err := x.parser.ParseURLWithContext(feedURL, ctx)
		if err != nil {
			log.Printf("x_rss: fetch %s: %v", name, err)
			lastErr = err
			continue
		}
		for _, e := range feed.Items {
			title := strings.TrimSpace(StripHTML(e.Title))
			if title == "" || e.Link == "" {
				continue
			}
			link := e.Link
			if m := xStatusRe.FindStringSubmatch(link); m != nil {
				link = fmt.Sprintf("https://x.com/%s/status/%s", m[1], m[2])
			}
			pub := time.Now()
			if e.PublishedParsed != nil {
				pub = *e.PublishedParsed
			}
			items = append(items, Item{
				Title:        TruncateRunes(title, xTitleMax),
				URL:          link,
				PublishedAt:  pub,
				Excerpt:      TruncateRunes(StripHTML(e.Description), excerptMaxRunes),
				SourceName:   "x.com",
				SourceKind:   KindSocial,
				AuthorHandle: name,
			})
		}
	}

	if len(items) == 0 && lastErr != nil {
		return nil, &CollectorError{Source: x.Name(), Err: lastErr}
	}
	return items, nil
}
