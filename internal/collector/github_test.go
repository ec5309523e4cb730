package collector

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGitHubFetchMapsSearchResults(t *testing.T) {
	created := time.Now().UTC().Add(-6 * time.Hour).Format(time.RFC3339)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "token test-token" {
			t.Errorf("Authorization = %q, want token test-token", got)
		}
		if q := r.URL.Query().Get("q"); q == "" {
			t.Errorf("missing q parameter")
		}
		fmt.Fprintf(w, `{"items":[
			{"full_name":"acme/sic-tools","description":"SiC device characterization","html_url":"https://github.com/acme/sic-tools","stargazers_count":42,"created_at":%q},
			{"full_name":"","html_url":""}
		]}`, created)
	}))
	defer srv.Close()

	g := NewGitHub("test-token")
	g.BaseURL = srv.URL

	items, err := g.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1 (nameless repo dropped)", len(items))
	}

	it := items[0]
	if it.Title != "acme/sic-tools" {
		t.Fatalf("Title = %q", it.Title)
	}
	if it.Votes != 42 {
		t.Fatalf("Votes = %d, want 42", it.Votes)
	}
	if it.SourceKind != KindCode {
		t.Fatalf("SourceKind = %q, want %q", it.SourceKind, KindCode)
	}
	if it.PublishedAt.IsZero() || time.Since(it.PublishedAt) > 12*time.Hour {
		t.Fatalf("PublishedAt not taken from created_at: %s", it.PublishedAt)
	}
}
