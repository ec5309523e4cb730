package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestXAPIFetchBuildsStatusURLs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/by/username/acmesemi", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"99","name":"ACME Semi"}}`)
	})
	mux.HandleFunc("/users/99/tweets", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":[
			{"id":"1001","text":"New GaN driver sampling now\nDetails in thread","created_at":"2026-08-29T08:00:00Z"},
			{"id":"1002","text":"   "}
		]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	x := NewXAPI([]string{"acmesemi"}, "bearer-token")
	x.BaseURL = srv.URL

	items, err := x.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (blank post dropped)", len(items))
	}

	it := items[0]
	if it.URL != "https://x.com/acmesemi/status/1001" {
		t.Fatalf("URL = %q", it.URL)
	}
	if it.Title != "New GaN driver sampling now" {
		t.Fatalf("Title should be the first line: %q", it.Title)
	}
	if it.AuthorDisplay != "ACME Semi" || it.AuthorHandle != "acmesemi" {
		t.Fatalf("author = %q / %q", it.AuthorDisplay, it.AuthorHandle)
	}
	if it.SourceKind != KindSocial {
		t.Fatalf("SourceKind = %q, want %q", it.SourceKind, KindSocial)
	}
}

func TestXAPIFetchWithoutTokenYieldsNothing(t *testing.T) {
	x := NewXAPI([]string{"acmesemi"}, "")
	items, err := x.Fetch(context.Background())
	if err != nil || items != nil {
		t.Fatalf("tokenless fetch = (%v, %v), want (nil, nil)", items, err)
	}
}

func TestXMirrorRewritesLinksToX(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>acmesemi</title>
  <item>
    <title>GaN adapter teardown</title>
    <link>https://mirror.example/acmesemi/status/4242#m</link>
    <pubDate>Sat, 29 Aug 2026 12:00:00 GMT</pubDate>
  </item>
</channel></rss>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/acmesemi/rss") {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, feed)
	}))
	defer srv.Close()

	x := NewXMirror(srv.URL, []string{"acmesemi"})
	items, err := x.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].URL != "https://x.com/acmesemi/status/4242" {
		t.Fatalf("URL = %q, want rewritten x.com link", items[0].URL)
	}
}
