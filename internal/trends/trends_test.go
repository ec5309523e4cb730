package trends

import (
	"context"
	"testing"
	"time"

	"github.com/psemi/newshub/internal/aggregate"
	"github.com/psemi/newshub/internal/cache"
	"github.com/psemi/newshub/internal/classify"
	"github.com/psemi/newshub/internal/collector"
)

type stubProvider struct {
	reply string
	calls int
}

func (s *stubProvider) Model() string { return "stub-model" }

func (s *stubProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	s.calls++
	return s.reply, nil
}

const stubReply = "```json\n" + `{
  "meta_trends": [
    {
      "name": "SiC capacity race",
      "confidence": 1.7,
      "momentum": "sideways",
      "related_fields": ["power", "foundry"],
      "summary": "Multiple vendors announced fab expansions.",
      "analysis": {"short_term": "a", "mid_term": "b", "investment_implications": "c"},
      "keywords": ["sic", "fab"],
      "companies_mentioned": ["Infineon"]
    }
  ],
  "market_signals": {"bullish": ["capacity"], "bearish": [], "neutral": ["pricing"]}
}` + "\n```"

func testItems() []aggregate.ScoredItem {
	now := time.Now()
	return []aggregate.ScoredItem{
		{
			Item:  collector.Item{Title: "Infineon expands SiC fab", URL: "https://a.example/1", PublishedAt: now},
			Stars: 5,
			Field: classify.FieldAssignment{Primary: "power", Device: "power", Industry: "foundry"},
		},
		{
			Item:  collector.Item{Title: "GaN charger teardown", URL: "https://a.example/2", PublishedAt: now},
			Stars: 3,
			Field: classify.FieldAssignment{Primary: "power", Device: "power"},
		},
	}
}

func newTestSynthesizer(t *testing.T, p Provider) *Synthesizer {
	t.Helper()
	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore error: %v", err)
	}
	return New(p, cache.New(store))
}

func TestSynthesizeParsesAndNormalizesReply(t *testing.T) {
	p := &stubProvider{reply: stubReply}
	s := newTestSynthesizer(t, p)
	now := time.Now()

	doc, err := s.Synthesize(context.Background(), testItems(), now)
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if doc == nil || len(doc.MetaTrends) != 1 {
		t.Fatalf("doc = %+v, want one meta trend", doc)
	}

	tr := doc.MetaTrends[0]
	if tr.Name != "SiC capacity race" {
		t.Fatalf("Name = %q", tr.Name)
	}
	if tr.Confidence != 1 {
		t.Fatalf("Confidence = %f, want clamped to 1", tr.Confidence)
	}
	if tr.Momentum != "stable" {
		t.Fatalf("Momentum = %q, want invalid value normalized to stable", tr.Momentum)
	}
	if len(doc.MarketSignals.Bullish) != 1 || len(doc.MarketSignals.Neutral) != 1 {
		t.Fatalf("signals = %+v", doc.MarketSignals)
	}
	if doc.SourceCount != 2 {
		t.Fatalf("SourceCount = %d, want 2", doc.SourceCount)
	}
	if doc.Date != now.Format("2006-01-02") {
		t.Fatalf("Date = %q", doc.Date)
	}
}

func TestSynthesizeReusesCachedReply(t *testing.T) {
	p := &stubProvider{reply: stubReply}
	s := newTestSynthesizer(t, p)
	items := testItems()

	if _, err := s.Synthesize(context.Background(), items, time.Now()); err != nil {
		t.Fatalf("first Synthesize: %v", err)
	}
	if _, err := s.Synthesize(context.Background(), items, time.Now()); err != nil {
		t.Fatalf("second Synthesize: %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("provider called %d times for the same pool, want 1", p.calls)
	}

	// A different pool misses the cache.
	other := items[:1]
	if _, err := s.Synthesize(context.Background(), other, time.Now()); err != nil {
		t.Fatalf("third Synthesize: %v", err)
	}
	if p.calls != 2 {
		t.Fatalf("provider called %d times after a new pool, want 2", p.calls)
	}
}

func TestSynthesizeNilReceiverAndEmptyPool(t *testing.T) {
	var s *Synthesizer
	doc, err := s.Synthesize(context.Background(), testItems(), time.Now())
	if doc != nil || err != nil {
		t.Fatalf("nil synthesizer = (%v, %v), want (nil, nil)", doc, err)
	}

	s2 := newTestSynthesizer(t, &stubProvider{reply: stubReply})
	doc, err = s2.Synthesize(context.Background(), nil, time.Now())
	if doc != nil || err != nil {
		t.Fatalf("empty pool = (%v, %v), want (nil, nil)", doc, err)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  {\"a\":1}  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := stripFences(c.in); got != c.want {
			t.Fatalf("stripFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
