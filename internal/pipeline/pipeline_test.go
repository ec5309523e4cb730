package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/psemi/newshub/internal/aggregate"
	"github.com/psemi/newshub/internal/cache"
	"github.com/psemi/newshub/internal/classify"
	"github.com/psemi/newshub/internal/collector"
	"github.com/psemi/newshub/internal/config"
	"github.com/psemi/newshub/internal/extract"
	"github.com/psemi/newshub/internal/publish"
	"github.com/psemi/newshub/internal/scoring"
	"github.com/psemi/newshub/internal/trends"
)

type stubCollector struct {
	name  string
	kind  collector.Kind
	items []collector.Item
	err   error
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Kind() collector.Kind { return s.kind }

func (s *stubCollector) Fetch(ctx context.Context) ([]collector.Item, error) {
	return s.items, s.err
}

func testPipeline(t *testing.T, collectors []collector.Collector) (*Pipeline, string) {
	t.Helper()

	outDir := t.TempDir()
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	writer, err := publish.NewWriter(outDir)
	if err != nil {
		t.Fatalf("NewWriter error: %v", err)
	}
	src, err := config.LoadSources(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadSources error: %v", err)
	}

	cfg := &config.Config{
		// Fast mode keeps the run offline: no link probes, no sidecar.
		FastMode:       true,
		GlobalTimeout:  10 * time.Second,
		RecencyWindow:  96 * time.Hour,
		MaxAge:         24 * time.Hour,
		FallbackMaxAge: 48 * time.Hour,
		MaxPerSection:  30,
		FetchWorkers:   4,
	}

	return &Pipeline{
		cfg:        cfg,
		sources:    src,
		collectors: collectors,
		cache:      cache.New(store),
		engine:     scoring.NewEngine(src.Scoring, cfg.RecencyWindow),
		classifier: classify.New(src.Taxonomy, src.Sections),
		agg:        aggregate.New(cfg.MaxPerSection, cfg.MaxAge, cfg.FallbackMaxAge),
		writer:     writer,
		now:        time.Now,
	}, outDir
}

func readFieldDoc(t *testing.T, dir, name string) aggregate.FieldDocument {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	var doc aggregate.FieldDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode %s: %v", name, err)
	}
	return doc
}

func TestRunEndToEndPublishesDocumentSet(t *testing.T) {
	now := time.Now()
	collectors := []collector.Collector{
		&stubCollector{name: "feed-a", kind: collector.KindRSS, items: []collector.Item{
			{Title: "Infineon expands SiC fab capacity", URL: "https://a.example/sic-fab", PublishedAt: now.Add(-2 * time.Hour), SourceName: "feed-a", SourceKind: collector.KindRSS},
			{Title: "New DRAM pricing report", URL: "https://a.example/dram", PublishedAt: now.Add(-3 * time.Hour), SourceName: "feed-a", SourceKind: collector.KindRSS},
			// Duplicate of the first story via a tracking-parameter URL.
			{Title: "Infineon expands SiC fab capacity", URL: "https://a.example/sic-fab?utm_source=mirror", PublishedAt: now.Add(-2 * time.Hour), SourceName: "feed-a", SourceKind: collector.KindRSS},
		}},
		&stubCollector{name: "feed-b", kind: collector.KindRSS, items: []collector.Item{
			{Title: "EV onboard charger design notes", URL: "https://b.example/obc", PublishedAt: now.Add(-5 * time.Hour), SourceName: "feed-b", SourceKind: collector.KindRSS},
			{Title: "Annual community meetup recap", URL: "https://b.example/meetup", PublishedAt: now.Add(-6 * time.Hour), SourceName: "feed-b", SourceKind: collector.KindRSS},
		}},
		&stubCollector{name: "social", kind: collector.KindSocial, items: []collector.Item{
			{Title: "GaN sample kits shipping", URL: "https://x.com/acme/status/1", PublishedAt: now.Add(-1 * time.Hour), SourceName: "x.com", SourceKind: collector.KindSocial},
		}},
	}

	p, outDir := testPipeline(t, collectors)
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if report.Collected != 6 {
		t.Fatalf("Collected = %d, want 6", report.Collected)
	}
	if report.Published != 5 {
		t.Fatalf("Published = %d, want 5 after dedup", report.Published)
	}
	if len(report.Errors) != 0 {
		t.Fatalf("Errors = %v, want none", report.Errors)
	}

	// latest.json: highlight is the top non-sns item.
	data, err := os.ReadFile(filepath.Join(outDir, "latest.json"))
	if err != nil {
		t.Fatalf("read latest.json: %v", err)
	}
	var latest aggregate.NewsDocument
	if err := json.Unmarshal(data, &latest); err != nil {
		t.Fatalf("decode latest.json: %v", err)
	}
	if latest.Highlight == nil {
		t.Fatalf("latest.json has no highlight")
	}
	if got := len(latest.Sections[classify.SectionSNS]); got != 1 {
		t.Fatalf("sns section has %d items, want 1", got)
	}

	// Per-field documents: SiC story lands in power, charger story in
	// automotive, the meetup recap falls back to general.
	power := readFieldDoc(t, outDir, "power.json")
	if len(power.Items) == 0 {
		t.Fatalf("power.json is empty")
	}
	automotive := readFieldDoc(t, outDir, "automotive.json")
	found := false
	for _, it := range automotive.Items {
		if it.URL == "https://b.example/obc" {
			found = true
		}
	}
	if !found {
		t.Fatalf("charger story missing from automotive.json: %+v", automotive.Items)
	}
	general := readFieldDoc(t, outDir, "general.json")
	found = false
	for _, it := range general.Items {
		if it.URL == "https://b.example/meetup" {
			found = true
		}
	}
	if !found {
		t.Fatalf("unclassifiable story missing from general.json: %+v", general.Items)
	}

	// index.json reflects the published pool.
	data, err = os.ReadFile(filepath.Join(outDir, "index.json"))
	if err != nil {
		t.Fatalf("read index.json: %v", err)
	}
	var idx publish.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		t.Fatalf("decode index.json: %v", err)
	}
	if idx.TotalCount != 5 {
		t.Fatalf("index TotalCount = %d, want 5", idx.TotalCount)
	}

	// No trends provider attached: trends.json must not appear.
	if _, err := os.Stat(filepath.Join(outDir, "trends.json")); !os.IsNotExist(err) {
		t.Fatalf("trends.json should not be written without a provider")
	}
}

func TestHandleFromStatusURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://x.com/acmesemi/status/1001", "acmesemi"},
		{"https://www.x.com/acmesemi/status/1001", "acmesemi"},
		{"https://example.com/article", ""},
		{"https://x.com/acmesemi", ""},
	}
	for _, c := range cases {
		if got := handleFromStatusURL(c.in); got != c.want {
			t.Fatalf("handleFromStatusURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestRunToleratesPartialSourceFailure(t *testing.T) {
	now := time.Now()
	collectors := []collector.Collector{
		&stubCollector{name: "ok", kind: collector.KindRSS, items: []collector.Item{
			{Title: "IGBT module recall notice", URL: "https://a.example/recall", PublishedAt: now.Add(-time.Hour), SourceName: "ok", SourceKind: collector.KindRSS},
		}},
		&stubCollector{name: "down", kind: collector.KindRSS, err: &collector.CollectorError{Source: "down", Err: context.DeadlineExceeded}},
	}

	p, outDir := testPipeline(t, collectors)
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run should degrade, not fail: %v", err)
	}
	if report.Published != 1 {
		t.Fatalf("Published = %d, want 1", report.Published)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("Errors = %v, want the failed source recorded", report.Errors)
	}
	if _, err := os.Stat(filepath.Join(outDir, "latest.json")); err != nil {
		t.Fatalf("latest.json missing after partial run: %v", err)
	}
}

func TestRunDropsDeadLinksFromEveryDocument(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	now := time.Now()
	collectors := []collector.Collector{
		&stubCollector{name: "feed", kind: collector.KindRSS, items: []collector.Item{
			{Title: "Infineon expands SiC fab capacity", URL: ts.URL + "/sic", PublishedAt: now.Add(-2 * time.Hour), SourceName: "feed", SourceKind: collector.KindRSS},
			{Title: "EV onboard charger design notes", URL: ts.URL + "/gone", PublishedAt: now.Add(-3 * time.Hour), SourceName: "feed", SourceKind: collector.KindRSS},
			{Title: "Annual community meetup recap", URL: ts.URL + "/meetup", PublishedAt: now.Add(-4 * time.Hour), SourceName: "feed", SourceKind: collector.KindRSS},
		}},
	}

	p, outDir := testPipeline(t, collectors)
	p.cfg.FastMode = false

	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if report.Published != 2 {
		t.Fatalf("Published = %d, want 2 after the dead link drop", report.Published)
	}

	// The dead link is gone from every emitted document, not just the
	// latest sections.
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(outDir, e.Name()))
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		if bytes.Contains(data, []byte("/gone")) {
			t.Fatalf("dead link survived in %s", e.Name())
		}
	}
}

func TestEnrichCountsExcerptRunesNotBytes(t *testing.T) {
	const body = "The vendor confirmed volume production of the new silicon carbide module family, with automotive qualification expected before the end of the year."
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "text": body})
	}))
	defer ts.Close()

	p, _ := testPipeline(t, nil)
	p.cfg.FastMode = false
	p.extractor = extract.NewClient(ts.URL)

	// 33 runes but well past 80 bytes: still a thin excerpt.
	short := "新型SiCパワー半導体モジュールの量産が開始、車載向け出荷は今秋から"
	long := strings.Repeat("a", 100)
	now := time.Now()
	items := []aggregate.ScoredItem{
		{Item: collector.Item{Title: "SiC module production", URL: "https://a.example/1", Excerpt: short, PublishedAt: now}, Stars: 3},
		{Item: collector.Item{Title: "Другое", URL: "https://a.example/2", Excerpt: long, PublishedAt: now}, Stars: 3},
	}

	p.enrich(context.Background(), items, now)

	if items[0].Excerpt == short {
		t.Fatalf("multibyte excerpt of 33 runes was not treated as thin")
	}
	if !strings.Contains(items[0].Excerpt, "silicon carbide") {
		t.Fatalf("Excerpt = %q, want extracted body text", items[0].Excerpt)
	}
	if items[1].Excerpt != long {
		t.Fatalf("100-rune excerpt should not be re-extracted")
	}
}

type stubLLM struct{ reply string }

func (s *stubLLM) Model() string { return "stub-model" }

func (s *stubLLM) Complete(ctx context.Context, system, prompt string) (string, error) {
	return s.reply, nil
}

func TestRunAppliesItemSummariesToTopItems(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	now := time.Now()
	collectors := []collector.Collector{
		&stubCollector{name: "feed", kind: collector.KindRSS, items: []collector.Item{
			{Title: "Infineon expands SiC fab capacity", URL: ts.URL + "/sic", PublishedAt: now.Add(-2 * time.Hour), SourceName: "feed", SourceKind: collector.KindRSS},
		}},
	}

	p, outDir := testPipeline(t, collectors)
	p.cfg.FastMode = false
	p.synth = trends.New(&stubLLM{reply: `{"blurb": "Kulim fab doubles SiC output.", "section": "vendor", "stars": 5}`}, p.cache)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outDir, "latest.json"))
	if err != nil {
		t.Fatalf("read latest.json: %v", err)
	}
	var latest aggregate.NewsDocument
	if err := json.Unmarshal(data, &latest); err != nil {
		t.Fatalf("decode latest.json: %v", err)
	}
	if latest.Highlight == nil {
		t.Fatalf("latest.json has no highlight")
	}
	if latest.Highlight.Summary != "Kulim fab doubles SiC output." {
		t.Fatalf("highlight Summary = %q, want the item blurb", latest.Highlight.Summary)
	}
	if latest.Highlight.Stars != 5 {
		t.Fatalf("highlight Stars = %d, want the summary override of 5", latest.Highlight.Stars)
	}
}

func TestRunFailsOnlyWhenNothingPublishable(t *testing.T) {
	collectors := []collector.Collector{
		&stubCollector{name: "empty", kind: collector.KindRSS},
	}

	p, _ := testPipeline(t, collectors)
	if _, err := p.Run(context.Background()); err == nil {
		t.Fatalf("Run with zero items should return an error")
	}
}
