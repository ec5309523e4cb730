package publish

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/psemi/newshub/internal/aggregate"
	"github.com/psemi/newshub/internal/classify"
	"github.com/psemi/newshub/internal/collector"
)

func TestWriteLatestProducesLatestAndDatedSnapshot(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}

	now := time.Date(2026, 8, 30, 7, 0, 0, 0, time.UTC)
	doc := &aggregate.NewsDocument{
		GeneratedAt: now,
		Sections: map[string][]aggregate.ScoredItem{
			"tech": {{Item: collector.Item{Title: "a", URL: "https://a.example/1"}, Stars: 4}},
		},
	}
	if err := w.WriteLatest(doc, now); err != nil {
		t.Fatalf("WriteLatest error: %v", err)
	}

	for _, name := range []string{"latest.json", "2026-08-30.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var got aggregate.NewsDocument
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("%s is not valid JSON: %v", name, err)
		}
		if len(got.Sections["tech"]) != 1 {
			t.Fatalf("%s round-trip lost items: %+v", name, got)
		}
	}

	// No leftover temp files from the atomic write.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("directory has %d entries, want 2: %v", len(entries), entries)
	}
}

func TestWriteFieldDocsOneFilePerKey(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}

	now := time.Now()
	docs := map[string]*aggregate.FieldDocument{
		"power":   {GeneratedAt: now, Field: "power", Items: []aggregate.ScoredItem{}},
		"general": {GeneratedAt: now, Field: "general", Items: []aggregate.ScoredItem{}},
	}
	if err := w.WriteFieldDocs(docs); err != nil {
		t.Fatalf("WriteFieldDocs error: %v", err)
	}
	for _, name := range []string{"power.json", "general.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestWriteTrendsNilDocWritesNothing(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}
	if err := w.WriteTrends(nil); err != nil {
		t.Fatalf("WriteTrends(nil) error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "trends.json")); !os.IsNotExist(err) {
		t.Fatalf("trends.json should not exist for a nil document")
	}
}

func TestBuildIndexCountsAndKeepsZeroFields(t *testing.T) {
	now := time.Now()
	items := []aggregate.ScoredItem{
		{
			Item:    collector.Item{Title: "a", URL: "https://a.example/1", SourceName: "hackernews"},
			Stars:   4,
			Section: "tech",
			Field:   classify.FieldAssignment{Primary: "power", Device: "power", Market: "automotive"},
		},
		{
			Item:    collector.Item{Title: "b", URL: "https://a.example/2", SourceName: "hackernews"},
			Stars:   2,
			Section: "general",
			Field:   classify.FieldAssignment{Primary: "general"},
		},
	}

	idx := BuildIndex(items, []string{"power", "automotive", "memory", "general"}, now)

	if idx.TotalCount != 2 {
		t.Fatalf("TotalCount = %d, want 2", idx.TotalCount)
	}
	if idx.Fields["power"] != 1 || idx.Fields["automotive"] != 1 || idx.Fields["general"] != 1 {
		t.Fatalf("Fields = %v", idx.Fields)
	}
	if got, ok := idx.Fields["memory"]; !ok || got != 0 {
		t.Fatalf("unused field key should be present at zero: %v", idx.Fields)
	}
	if idx.Sources["hackernews"] != 2 {
		t.Fatalf("Sources = %v", idx.Sources)
	}
	if idx.LatestDate != now.Format("2006-01-02") {
		t.Fatalf("LatestDate = %q", idx.LatestDate)
	}
}

func TestValidateDropsBrokenItems(t *testing.T) {
	items := []aggregate.ScoredItem{
		{Item: collector.Item{Title: "ok", URL: "https://a.example/1"}, Stars: 3},
		{Item: collector.Item{Title: "", URL: "https://a.example/2"}, Stars: 3},
		{Item: collector.Item{Title: "bad url", URL: "ftp://a.example/3"}, Stars: 3},
		{Item: collector.Item{Title: "bad stars", URL: "https://a.example/4"}, Stars: 9},
	}

	got := Validate(items)
	if len(got) != 1 || got[0].Title != "ok" {
		t.Fatalf("Validate kept %+v, want only the valid item", got)
	}
}
