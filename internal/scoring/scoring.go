// Package scoring ranks items on a weighted multi-factor formula and
// buckets the result into 1..5 stars.
package scoring

import (
	"strings"
	"time"

	"github.com/psemi/newshub/internal/collector"
	"github.com/psemi/newshub/internal/config"
)

// Engine is a pure scorer: Score depends only on the item, now, and the
// configured table.
type Engine struct {
	table  config.ScoringTable
	window time.Duration
}

func NewEngine(table config.ScoringTable, recencyWindow time.Duration) *Engine {
	if recencyWindow <= 0 {
		recencyWindow = 96 * time.Hour
	}
	return &Engine{table: table, window: recencyWindow}
}

// Breakdown shows each normalized factor and the final result.
type Breakdown struct {
	Recency   float64
	Surprise  float64
	Vendor    float64
	Technical float64
	Business  float64

	Base  float64
	Stars int
}

// Score returns the star level for item at now.
func (e *Engine) Score(item collector.Item, now time.Time) int {
	return e.ScoreWithBreakdown(item, now).Stars
}

// Base returns the weighted sum in [0,1], used for fine-grained
// tie-breaking before bucketing.
func (e *Engine) Base(item collector.Item, now time.Time) float64 {
	return e.ScoreWithBreakdown(item, now).Base
}

func (e *Engine) ScoreWithBreakdown(item collector.Item, now time.Time) Breakdown {
	text := strings.ToLower(item.Title + " " + item.Excerpt)

	b := Breakdown{
		Recency:   e.recency(item.PublishedAt, now),
		Surprise:  matchAny(text, e.table.Surprise),
		Vendor:    matchAny(text, e.table.Vendors),
		Technical: matchAny(text, e.table.Technical),
		Business:  matchAny(text, e.table.Business),
	}

	w := e.table.Weights
	b.Base = w.Recency*b.Recency +
		w.Surprise*b.Surprise +
		w.Vendor*b.Vendor +
		w.Technical*b.Technical +
		w.Business*b.Business
	b.Stars = e.bucket(b.Base)
	return b
}

// recency decays linearly from 1 at publication to 0 at the window
// edge, monotonic in age.
func (e *Engine) recency(published, now time.Time) float64 {
	if published.IsZero() {
		return 0
	}
	age := now.Sub(published)
	if age < 0 {
		age = 0
	}
	frac := float64(age) / float64(e.window)
	if frac > 1 {
		frac = 1
	}
	return 1 - frac
}

// bucket maps base in [0,1] onto stars via the configured ascending
// thresholds.
func (e *Engine) bucket(base float64) int {
	stars := 1
	for _, th := range e.table.StarThresholds {
		if base >= th {
			stars++
		}
	}
	if stars > 5 {
		stars = 5
	}
	return stars
}

func matchAny(text string, keywords []string) float64 {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return 1
		}
	}
	return 0
}
