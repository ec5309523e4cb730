package trends

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/psemi/newshub/internal/cache"
	"github.com/psemi/newshub/internal/classify"
	"github.com/psemi/newshub/internal/collector"
)

// ItemSummary is the per-item editorial pass: a one-line blurb, a
// section suggestion and a star override.
type ItemSummary struct {
	Blurb   string `json:"blurb"`
	Section string `json:"section"`
	Stars   int    `json:"stars"`
}

const itemPromptVersion = "v1"

const itemSystemPrompt = "You are an editor for a power semiconductor news digest. Respond with JSON only, no prose around it."

const itemPromptTemplate = `Summarize the news item below for the digest.

Respond with exactly this JSON shape:
{"blurb": "one sentence, at most 80 characters", "section": "tech|application|vendor|general", "stars": 1}

stars is importance to the power semiconductor industry, 1 (minor) to 5 (major).

Title: %s
Source: %s
Body: %s`

const itemBodyMaxRunes = 1200

// SummarizeItem produces the cached per-item summary. A nil synthesizer
// or provider summarizes nothing, mirroring Synthesize.
func (s *Synthesizer) SummarizeItem(ctx context.Context, it collector.Item) (*ItemSummary, error) {
	if s == nil || s.provider == nil {
		return nil, nil
	}

	prompt := fmt.Sprintf(itemPromptTemplate, it.Title, it.SourceName,
		collector.TruncateRunes(it.Excerpt, itemBodyMaxRunes))

	fp := cache.Fingerprint("llm:item", map[string]string{
		"url":     it.URL,
		"content": itemDigest(it),
		"model":   s.provider.Model(),
	}, itemPromptVersion)

	payload, err := s.cache.GetOrFetch(ctx, fp, cache.Options{TTL: responseTTL}, func(ctx context.Context) ([]byte, error) {
		text, err := s.provider.Complete(ctx, itemSystemPrompt, prompt)
		if err != nil {
			return nil, err
		}
		return []byte(stripFences(text)), nil
	})
	if err != nil {
		return nil, fmt.Errorf("trends: summarize item: %w", err)
	}

	var sum ItemSummary
	if err := json.Unmarshal(payload, &sum); err != nil {
		return nil, fmt.Errorf("trends: decode summary: %w", err)
	}
	normalizeSummary(&sum)
	return &sum, nil
}

func normalizeSummary(sum *ItemSummary) {
	valid := false
	for _, name := range classify.SectionNames() {
		if sum.Section == name {
			valid = true
			break
		}
	}
	if !valid {
		sum.Section = ""
	}
	if sum.Stars < 1 {
		sum.Stars = 1
	}
	if sum.Stars > 5 {
		sum.Stars = 5
	}
}

func itemDigest(it collector.Item) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%s\n", it.Title, it.Excerpt)
	return hex.EncodeToString(h.Sum(nil))
}
