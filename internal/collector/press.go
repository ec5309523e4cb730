package collector

import (
	"context"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// PressPage describes one vendor newsroom listing page and the CSS
// selectors that locate release entries on it.
type PressPage struct {
	Vendor       string
	URL          string
	ItemSelector string // container of one release entry
	TitleSel     string // optional, defaults to the entry link text
	LinkSel      string // optional, defaults to the first "a" in the entry
}

// PressCollector scrapes vendor press-release pages. Releases carry no
// reliable timestamp in the listing, so PublishedAt is the crawl time
// and the freshness filter relies on the page only listing recent items.
type PressCollector struct {
	Pages []PressPage
}

func NewPress(pages []PressPage) *PressCollector {
	return &PressCollector{Pages: pages}
}

func (p *PressCollector) Name() string { return "press" }

func (p *PressCollector) Kind() Kind { return KindPress }

func (p *PressCollector) Fetch(ctx context.Context) ([]Item, error) {
	var items []Item
	var lastErr error

	for _, page := range p.Pages {
		if err := ctx.Err(); err != nil {
			// Keep what was scraped so far; a non-nil error would make
			// the orchestrator discard it.
			if len(items) > 0 {
				log.Printf("press: stopping after %d items: %v", len(items), err)
				return items, nil
			}
			return nil, &CollectorError{Source: p.Name(), Err: err}
		}
		host := hostOf(page.URL)
		if host == "" {
			log.Printf("press: skipping page with bad url %q", page.URL)
			continue
		}

		c := colly.NewCollector(
			colly.AllowedDomains(host, "www."+host),
			colly.UserAgent("newshub-bot/1.0"),
		)
		c.SetRequestTimeout(clientTimeout)

		linkSel := page.LinkSel
		if linkSel == "" {
			linkSel = "a"
		}

		pageItems := make([]Item, 0, 20)
		c.OnHTML(page.ItemSelector, func(e *colly.HTMLElement) {
			link := e.ChildAttr(linkSel, "href")
			if link == "" {
				return
			}
			link = e.Request.AbsoluteURL(link)

			title := strings.TrimSpace(e.ChildText(linkSel))
			if page.TitleSel != "" {
				title = strings.TrimSpace(e.ChildText(page.TitleSel))
			}
			if title == "" || link == "" {
				return
			}

			pageItems = append(pageItems, Item{
				Title:       title,
				URL:         link,
				PublishedAt: time.Now(),
				Excerpt:     title,
				SourceName:  page.Vendor,
				SourceKind:  KindPress,
			})
		})

		if err := c.Visit(page.URL); err != nil {
			log.Printf("press: visit %s: %v", page.URL, err)
			lastErr = err
			continue
		}
		items = append(items, pageItems...)
	}

	if len(items) == 0 && lastErr != nil {
		return nil, &CollectorError{Source: p.Name(), Err: lastErr}
	}
	return items, nil
}

// hostOf returns the bare hostname, which is what colly matches its
// domain allow-list against.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
