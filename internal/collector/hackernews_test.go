package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHackerNewsFetchFiltersAndKeepsRankOrder(t *testing.T) {
	now := time.Now().Unix()

	mux := http.NewServeMux()
	mux.HandleFunc("/topstories.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[1, 2, 3, 4]`)
	})
	mux.HandleFunc("/item/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/item/1.json":
			fmt.Fprintf(w, `{"id":1,"title":"First story","url":"https://example.com/1","score":120,"type":"story","time":%d}`, now)
		case "/item/2.json":
			// Below the score floor, must be dropped.
			fmt.Fprintf(w, `{"id":2,"title":"Low score","url":"https://example.com/2","score":3,"type":"story","time":%d}`, now)
		case "/item/3.json":
			// Not a story, must be dropped.
			fmt.Fprintf(w, `{"id":3,"title":"A job ad","score":50,"type":"job","time":%d}`, now)
		case "/item/4.json":
			// No URL: falls back to the comments page.
			fmt.Fprintf(w, `{"id":4,"title":"Ask thread","score":40,"type":"story","time":%d}`, now)
		default:
			http.NotFound(w, r)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	h := &HackerNewsCollector{BaseURL: srv.URL}
	items, err := h.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("got %d items, want 2: %+v", len(items), items)
	}
	if items[0].Title != "First story" || items[1].Title != "Ask thread" {
		t.Fatalf("rank order lost: %q, %q", items[0].Title, items[1].Title)
	}
	if items[0].Rank != 1 || items[1].Rank != 2 {
		t.Fatalf("ranks = %d, %d, want 1, 2", items[0].Rank, items[1].Rank)
	}
	if items[1].URL != "https://news.ycombinator.com/item?id=4" {
		t.Fatalf("missing-url fallback = %q", items[1].URL)
	}
	if items[0].SourceKind != KindStory {
		t.Fatalf("SourceKind = %q, want %q", items[0].SourceKind, KindStory)
	}
}

func TestHackerNewsFetchErrorsWhenListUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	h := &HackerNewsCollector{BaseURL: srv.URL}
	_, err := h.Fetch(context.Background())
	if err == nil {
		t.Fatalf("want an error when the top-stories list cannot be fetched")
	}
	var ce *CollectorError
	if !errors.As(err, &ce) || ce.Source != "hackernews" {
		t.Fatalf("err = %v, want CollectorError from hackernews", err)
	}
}
