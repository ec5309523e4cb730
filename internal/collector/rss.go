package collector

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

const excerptMaxRunes = 300

// RSSCollector fetches one feed URL. The pipeline registers one instance
// per configured feed so each fetch runs as its own orchestrator job.
type RSSCollector struct {
	FeedURL string
	parser  *gofeed.Parser
}

func NewRSS(feedURL string) *RSSCollector {
	return &RSSCollector{FeedURL: feedURL, parser: gofeed.NewParser()}
}

func (r *RSSCollector) Name() string {
	if u, err := url.Parse(r.FeedURL); err == nil && u.Host != "" {
		return "rss:" + strings.TrimPrefix(u.Host, "www.")
	}
	return "rss:" + r.FeedURL
}

func (r *RSSCollector) Kind() Kind { return KindRSS }

func (r *RSSCollector) Fetch(ctx context.Context) ([]Item, error) {
	feed, err := r.parser.ParseURLWithContext(r.FeedURL, ctx)
	if err != nil {
		return nil, &CollectorError{Source: r.Name(), Err: fmt.Errorf("parse feed: %w", err)}
	}

	sourceName := feed.Title
	if sourceName == "" {
		sourceName = r.Name()
	}

	items := make([]Item, 0, len(feed.Items))
	for _, e := range feed.Items {
		title := strings.TrimSpace(e.Title)
		link := e.Link
		if link == "" {
			link = e.GUID
		}
		if title == "" || link == "" {
			log.Printf("%s: skipping entry without title or link", r.Name())
			continue
		}

		pub := time.Now()
		if e.PublishedParsed != nil {
			pub = *e.PublishedParsed
		} else if e.UpdatedParsed != nil {
			pub = *e.UpdatedParsed
		}

		summary := e.Description
		if summary == "" {
			summary = e.Content
		}

		items = append(items, Item{
			Title:       title,
			URL:         link,
			PublishedAt: pub,
			Excerpt:     TruncateRunes(StripHTML(summary), excerptMaxRunes),
			SourceName:  sourceName,
			SourceKind:  KindRSS,
		})
	}
	return items, nil
}

// StripHTML flattens an HTML fragment to whitespace-normalized text.
func StripHTML(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.Join(strings.Fields(s), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// TruncateRunes caps s at limit runes, appending an ellipsis when cut.
func TruncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
