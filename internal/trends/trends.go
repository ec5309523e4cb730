// Package trends derives cross-item meta-trends and market-sentiment
// signals from a run's scored pool, via a cached LLM call.
package trends

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/psemi/newshub/internal/aggregate"
	"github.com/psemi/newshub/internal/cache"
)

// promptVersion is part of the cache fingerprint: bump it whenever the
// prompt changes so stale analyses are not replayed.
const promptVersion = "v2"

// Responses are cached for a week; repeated runs over the same item set
// must not pay for the same completion twice.
const responseTTL = 168 * time.Hour

const maxPromptItems = 40

// Analysis holds the per-horizon commentary of one meta-trend.
type Analysis struct {
	ShortTerm              string `json:"short_term"`
	MidTerm                string `json:"mid_term"`
	InvestmentImplications string `json:"investment_implications"`
}

type MetaTrend struct {
	Name               string   `json:"name"`
	Confidence         float64  `json:"confidence"`
	Momentum           string   `json:"momentum"`
	RelatedFields      []string `json:"related_fields"`
	Summary            string   `json:"summary"`
	Analysis           Analysis `json:"analysis"`
	Keywords           []string `json:"keywords"`
	CompaniesMentioned []string `json:"companies_mentioned"`
}

type MarketSignals struct {
	Bullish []string `json:"bullish"`
	Bearish []string `json:"bearish"`
	Neutral []string `json:"neutral"`
}

type TrendsDocument struct {
	GeneratedAt   time.Time     `json:"generated_at"`
	Date          string        `json:"date"`
	MetaTrends    []MetaTrend   `json:"meta_trends"`
	MarketSignals MarketSignals `json:"market_signals"`
	SourceCount   int           `json:"source_count"`
}

const systemPrompt = "You are a market analyst specializing in the power semiconductor industry. Respond with JSON only, no prose around it."

const promptTemplate = `From the scored news items below, derive up to 5 cross-item meta-trends and overall market sentiment signals.

Respond with exactly this JSON shape:
{
  "meta_trends": [
    {
      "name": "...",
      "confidence": 0.0,
      "momentum": "rising|stable|declining",
      "related_fields": ["..."],
      "summary": "...",
      "analysis": {"short_term": "...", "mid_term": "...", "investment_implications": "..."},
      "keywords": ["..."],
      "companies_mentioned": ["..."]
    }
  ],
  "market_signals": {"bullish": ["..."], "bearish": ["..."], "neutral": ["..."]}
}

Items (stars 1-5, fields, title):
%s`

// Synthesizer runs the trend analysis. A nil Synthesizer is valid and
// produces no document, which is the "no trends yet" state.
type Synthesizer struct {
	provider Provider
	cache    *cache.Cache
}

func New(provider Provider, c *cache.Cache) *Synthesizer {
	return &Synthesizer{provider: provider, cache: c}
}

// Synthesize derives the trends document for the given pool. Results
// are cached by (item set, model, prompt version).
func (s *Synthesizer) Synthesize(ctx context.Context, items []aggregate.ScoredItem, now time.Time) (*TrendsDocument, error) {
	if s == nil || s.provider == nil {
		return nil, nil
	}
	if len(items) == 0 {
		return nil, nil
	}

	prompt := fmt.Sprintf(promptTemplate, itemLines(items))

	fp := cache.Fingerprint("llm:trends", map[string]string{
		"items": itemsDigest(items),
		"model": s.provider.Model(),
	}, promptVersion)

	payload, err := s.cache.GetOrFetch(ctx, fp, cache.Options{TTL: responseTTL}, func(ctx context.Context) ([]byte, error) {
		text, err := s.provider.Complete(ctx, systemPrompt, prompt)
		if err != nil {
			return nil, err
		}
		return []byte(stripFences(text)), nil
	})
	if err != nil {
		return nil, fmt.Errorf("trends: synthesize: %w", err)
	}

	var parsed struct {
		MetaTrends    []MetaTrend   `json:"meta_trends"`
		MarketSignals MarketSignals `json:"market_signals"`
	}
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("trends: decode analysis: %w", err)
	}

	for i := range parsed.MetaTrends {
		normalizeTrend(&parsed.MetaTrends[i])
	}

	return &TrendsDocument{
		GeneratedAt:   now,
		Date:          now.Format("2006-01-02"),
		MetaTrends:    parsed.MetaTrends,
		MarketSignals: parsed.MarketSignals,
		SourceCount:   len(items),
	}, nil
}

func normalizeTrend(t *MetaTrend) {
	switch t.Momentum {
	case "rising", "stable", "declining":
	default:
		t.Momentum = "stable"
	}
	if t.Confidence < 0 {
		t.Confidence = 0
	}
	if t.Confidence > 1 {
		t.Confidence = 1
	}
}

func itemLines(items []aggregate.ScoredItem) string {
	n := len(items)
	if n > maxPromptItems {
		n = maxPromptItems
	}
	var b strings.Builder
	for _, it := range items[:n] {
		fmt.Fprintf(&b, "- [%d] (%s) %s\n", it.Stars, strings.Join(it.Field.Fields(), ","), it.Title)
	}
	return b.String()
}

// itemsDigest fingerprints the item set so identical pools hit the same
// cache entry regardless of call time.
func itemsDigest(items []aggregate.ScoredItem) string {
	h := sha256.New()
	for _, it := range items {
		fmt.Fprintf(h, "%s|%d\n", it.URL, it.Stars)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// stripFences removes a markdown code fence around a JSON reply, which
// some models add despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
