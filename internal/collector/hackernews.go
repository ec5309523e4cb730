package collector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"
)

const (
	hnBaseURL     = "https://hacker-news.firebaseio.com/v0"
	hnMaxItems    = 30
	hnMinScore    = 10
	hnConcurrency = 10
)

// HackerNewsCollector pulls top stories from the official Firebase API.
// Story bodies are fetched with bounded concurrency; the returned slice
// keeps the ranking order of the top-stories list.
type HackerNewsCollector struct {
	// BaseURL overrides the Firebase endpoint in tests.
	BaseURL string
}

func NewHackerNews() *HackerNewsCollector { return &HackerNewsCollector{} }

func (h *HackerNewsCollector) Name() string { return "hackernews" }

func (h *HackerNewsCollector) Kind() Kind { return KindStory }

type hnItem struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Type        string `json:"type"`
}

func (h *HackerNewsCollector) base() string {
	if h.BaseURL != "" {
		return h.BaseURL
	}
	return hnBaseURL
}

func (h *HackerNewsCollector) Fetch(ctx context.Context) ([]Item, error) {
	client := newClient()

	var ids []int
	if err := getJSON(ctx, client, h.base()+"/topstories.json", nil, &ids); err != nil {
		return nil, &CollectorError{Source: h.Name(), Err: fmt.Errorf("top stories: %w", err)}
	}
	if len(ids) > hnMaxItems {
		ids = ids[:hnMaxItems]
	}

	type indexed struct {
		idx  int
		item hnItem
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		sem   = make(chan struct{}, hnConcurrency)
		found = make([]indexed, 0, len(ids))
	)

	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx, id int) {
			defer wg.Done()
			defer func() { <-sem }()

			var it hnItem
			url := fmt.Sprintf("%s/item/%d.json", h.base(), id)
			if err := getJSON(ctx, client, url, nil, &it); err != nil {
				log.Printf("hackernews: fetch item %d: %v", id, err)
				return
			}
			if it.Title == "" || it.Type != "story" || it.Score < hnMinScore {
				return
			}

			mu.Lock()
			found = append(found, indexed{idx: idx, item: it})
			mu.Unlock()
		}(i, id)
	}
	wg.Wait()

	// Completion order is arbitrary; restore list order for stable rank.
	sort.Slice(found, func(a, b int) bool { return found[a].idx < found[b].idx })

	items := make([]Item, 0, len(found))
	for rank, f := range found {
		it := f.item
		itemURL := it.URL
		if itemURL == "" {
			itemURL = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", it.ID)
		}
		items = append(items, Item{
			Title:       it.Title,
			URL:         itemURL,
			PublishedAt: time.Unix(it.Time, 0),
			Excerpt:     it.Title,
			SourceName:  "hackernews",
			SourceKind:  KindStory,
			Rank:        rank + 1,
			Votes:       it.Score,
		})
	}

	if len(items) == 0 {
		log.Println("hackernews: no items fetched")
	}
	return items, nil
}
