// Package aggregate merges collector outputs, removes duplicates, ranks
// by score and assembles the output document set.
package aggregate

import (
	"sort"
	"strings"
	"time"

	"github.com/psemi/newshub/internal/classify"
	"github.com/psemi/newshub/internal/collector"
)

// ScoredItem is a collector item plus its derived score and
// classification. Never persisted outside the final documents.
type ScoredItem struct {
	collector.Item

	Stars   int                      `json:"stars"`
	Section string                   `json:"section"`
	Field   classify.FieldAssignment `json:"field"`

	// Base keeps the pre-bucketing weighted sum for diagnostics.
	Base float64 `json:"-"`
}

// Date is the item's display date, YYYY-MM-DD.
func (s ScoredItem) Date() string {
	return s.PublishedAt.Format("2006-01-02")
}

// SourceRef names where an item came from.
type SourceRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Highlight is the single top-ranked non-sns item, surfaced separately
// from the section lists.
type Highlight struct {
	Title   string    `json:"title"`
	Summary string    `json:"summary"`
	Stars   int       `json:"stars"`
	Date    string    `json:"date"`
	Source  SourceRef `json:"source"`
}

// NewsDocument is the global latest document: fully regenerated each
// run, never incrementally mutated.
type NewsDocument struct {
	GeneratedAt time.Time               `json:"generated_at"`
	Highlight   *Highlight              `json:"highlight"`
	Sections    map[string][]ScoredItem `json:"sections"`
}

// FieldDocument is one per-field document; an item appears at most once
// in it but may appear in several field documents.
type FieldDocument struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Field       string       `json:"field"`
	Items       []ScoredItem `json:"items"`
}

type Aggregator struct {
	MaxPerSection  int
	MaxAge         time.Duration
	FallbackMaxAge time.Duration
}

func New(maxPerSection int, maxAge, fallbackMaxAge time.Duration) *Aggregator {
	if maxPerSection <= 0 {
		maxPerSection = 30
	}
	return &Aggregator{MaxPerSection: maxPerSection, MaxAge: maxAge, FallbackMaxAge: fallbackMaxAge}
}

// Dedup drops later duplicates, keeping the first-seen item in input
// order. Two items are duplicates when their normalized URLs collide or
// their same-day titles are near-identical.
func (a *Aggregator) Dedup(items []collector.Item) []collector.Item {
	seenURL := make(map[string]struct{}, len(items))
	kept := make([]collector.Item, 0, len(items))

	for _, it := range items {
		key := DedupKey(it.URL)
		if _, ok := seenURL[key]; ok {
			continue
		}
		if a.hasSimilarTitle(kept, it) {
			continue
		}
		seenURL[key] = struct{}{}
		kept = append(kept, it)
	}
	return kept
}

func (a *Aggregator) hasSimilarTitle(kept []collector.Item, it collector.Item) bool {
	day := it.PublishedAt.Format("2006-01-02")
	title := strings.TrimSpace(it.Title)
	for _, k := range kept {
		if k.PublishedAt.Format("2006-01-02") != day {
			continue
		}
		if similarity(title, strings.TrimSpace(k.Title)) >= titleSimilarityThreshold {
			return true
		}
	}
	return false
}

// Rank orders items by stars descending, recency descending, original
// order preserved among full ties.
func Rank(items []ScoredItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Stars != items[j].Stars {
			return items[i].Stars > items[j].Stars
		}
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}

// Fresh filters to items within MaxAge of now; when that leaves
// nothing it widens to FallbackMaxAge, and as a last resort keeps
// everything rather than emitting an empty run.
func (a *Aggregator) Fresh(items []ScoredItem, now time.Time) []ScoredItem {
	within := func(maxAge time.Duration) []ScoredItem {
		out := make([]ScoredItem, 0, len(items))
		for _, it := range items {
			if now.Sub(it.PublishedAt) <= maxAge {
				out = append(out, it)
			}
		}
		return out
	}

	if a.MaxAge > 0 {
		if fresh := within(a.MaxAge); len(fresh) > 0 {
			return fresh
		}
		if a.FallbackMaxAge > a.MaxAge {
			if fresh := within(a.FallbackMaxAge); len(fresh) > 0 {
				return fresh
			}
		}
	}
	return items
}

// BuildLatest assembles the global document from already scored,
// classified, deduped items.
func (a *Aggregator) BuildLatest(items []ScoredItem, now time.Time) *NewsDocument {
	ranked := make([]ScoredItem, len(items))
	copy(ranked, items)
	Rank(ranked)

	sections := make(map[string][]ScoredItem, 5)
	for _, name := range classify.SectionNames() {
		sections[name] = []ScoredItem{}
	}
	for _, it := range ranked {
		sec := it.Section
		if _, ok := sections[sec]; !ok {
			sec = classify.SectionGeneral
		}
		if len(sections[sec]) >= a.MaxPerSection {
			continue
		}
		sections[sec] = append(sections[sec], it)
	}

	return &NewsDocument{
		GeneratedAt: now,
		Highlight:   pickHighlight(ranked),
		Sections:    sections,
	}
}

// pickHighlight takes the first non-sns item of the ranked pool; the
// ranking order already encodes the (stars desc, recency desc) rule.
func pickHighlight(ranked []ScoredItem) *Highlight {
	for _, it := range ranked {
		if it.Section == classify.SectionSNS {
			continue
		}
		return &Highlight{
			Title:   it.Title,
			Summary: it.Excerpt,
			Stars:   it.Stars,
			Date:    it.Date(),
			Source:  SourceRef{Name: it.SourceName, URL: it.URL},
		}
	}
	return nil
}

// BuildFieldDocs filters the same pool into one document per taxonomy
// field. Fields with no members still get an (empty) document so the
// consumer sees the full fixed key set.
func (a *Aggregator) BuildFieldDocs(items []ScoredItem, fieldKeys []string, now time.Time) map[string]*FieldDocument {
	ranked := make([]ScoredItem, len(items))
	copy(ranked, items)
	Rank(ranked)

	docs := make(map[string]*FieldDocument, len(fieldKeys))
	for _, key := range fieldKeys {
		docs[key] = &FieldDocument{GeneratedAt: now, Field: key, Items: []ScoredItem{}}
	}

	for _, it := range ranked {
		for _, key := range it.Field.Fields() {
			doc, ok := docs[key]
			if !ok {
				doc = docs[classify.SectionGeneral]
				if doc == nil {
					continue
				}
			}
			if len(doc.Items) >= a.MaxPerSection {
				continue
			}
			doc.Items = append(doc.Items, it)
		}
	}
	return docs
}
