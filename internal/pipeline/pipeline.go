// Package pipeline wires a full run: collect, dedup, score, classify,
// filter for freshness, synthesize trends and publish the documents.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"time"
	"unicode/utf8"

	"github.com/psemi/newshub/internal/aggregate"
	"github.com/psemi/newshub/internal/cache"
	"github.com/psemi/newshub/internal/classify"
	"github.com/psemi/newshub/internal/collector"
	"github.com/psemi/newshub/internal/config"
	"github.com/psemi/newshub/internal/extract"
	"github.com/psemi/newshub/internal/orchestrator"
	"github.com/psemi/newshub/internal/publish"
	"github.com/psemi/newshub/internal/scoring"
	"github.com/psemi/newshub/internal/trends"
)

const (
	// Token-gated APIs are rate limited hard enough that their raw
	// responses are reused across runs for a day.
	apiCacheTTL = 24 * time.Hour

	// Body extraction is only worth the sidecar round-trips for the
	// items that can change the top of the document.
	enrichTopN = 10

	// Link probes are similarly budgeted per run.
	verifyTopN = 20

	// Excerpts shorter than this are considered thin enough to be worth
	// a body extraction. Counted in runes, not bytes.
	thinExcerptRunes = 80

	fastModePerSource = 10
)

// Pipeline holds the assembled stages. Build once, run per tick.
type Pipeline struct {
	cfg        *config.Config
	sources    *config.Sources
	collectors []collector.Collector
	cache      *cache.Cache
	engine     *scoring.Engine
	classifier *classify.Classifier
	agg        *aggregate.Aggregator
	extractor  *extract.Client
	synth      *trends.Synthesizer
	writer     *publish.Writer

	now func() time.Time
}

// Report summarizes one run for logs and the trigger endpoint.
type Report struct {
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Collected int            `json:"collected"`
	Published int            `json:"published"`
	PerSource map[string]int `json:"per_source"`
	Errors    []string       `json:"errors,omitempty"`
}

// New assembles a pipeline from config. Collectors whose credentials
// are absent are skipped, not failed.
func New(cfg *config.Config) (*Pipeline, error) {
	src, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	var store cache.Store
	if cfg.RedisAddr != "" {
		store = cache.NewRedisStore(cfg.RedisAddr)
		log.Printf("pipeline: using redis cache at %s", cfg.RedisAddr)
	} else {
		store, err = cache.NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, err
		}
	}
	c := cache.New(store)

	writer, err := publish.NewWriter(cfg.OutDir)
	if err != nil {
		return nil, err
	}

	var synth *trends.Synthesizer
	if cfg.LLMAPIKey != "" && !cfg.FastMode {
		provider, err := trends.NewProvider(cfg.LLMProvider, cfg.LLMAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, err
		}
		synth = trends.New(provider, c)
	} else {
		log.Printf("pipeline: trend synthesis disabled")
	}

	p := &Pipeline{
		cfg:        cfg,
		sources:    src,
		collectors: buildCollectors(cfg, src, c),
		cache:      c,
		engine:     scoring.NewEngine(src.Scoring, cfg.RecencyWindow),
		classifier: classify.New(src.Taxonomy, src.Sections),
		agg:        aggregate.New(cfg.MaxPerSection, cfg.MaxAge, cfg.FallbackMaxAge),
		extractor:  extract.NewClient(cfg.ExtractorURL),
		synth:      synth,
		writer:     writer,
		now:        time.Now,
	}
	log.Printf("pipeline: %d collectors configured", len(p.collectors))
	return p, nil
}

func buildCollectors(cfg *config.Config, src *config.Sources, c *cache.Cache) []collector.Collector {
	var out []collector.Collector
	for _, feed := range src.Feeds {
		out = append(out, collector.NewRSS(feed))
	}
	out = append(out, collector.NewHackerNews())
	out = append(out, collector.NewGitHub(cfg.GitHubToken))
	if cfg.ProductHuntToken != "" {
		out = append(out, withCache(collector.NewProductHunt(cfg.ProductHuntToken), c))
	} else {
		log.Printf("pipeline: PH_TOKEN unset, skipping producthunt")
	}
	if cfg.XBearerToken != "" && len(src.XAccounts) > 0 {
		out = append(out, withCache(collector.NewXAPI(src.XAccounts, cfg.XBearerToken), c))
	} else if src.XRSSBase != "" && len(src.XRSSAccounts) > 0 {
		out = append(out, collector.NewXMirror(src.XRSSBase, src.XRSSAccounts))
	} else {
		log.Printf("pipeline: no social source configured")
	}
	if src.SheetID != "" {
		out = append(out, withCache(collector.NewSheet(src.SheetID, src.SheetGID), c))
	}
	if len(src.PressPages) > 0 {
		pages := make([]collector.PressPage, 0, len(src.PressPages))
		for _, pg := range src.PressPages {
			pages = append(pages, collector.PressPage{
				Vendor:       pg.Vendor,
				URL:          pg.URL,
				ItemSelector: pg.ItemSelector,
				TitleSel:     pg.TitleSel,
				LinkSel:      pg.LinkSel,
			})
		}
		out = append(out, collector.NewPress(pages))
	}
	return out
}

// cachedCollector reuses a collector's full response across runs via
// the fingerprint cache, serving a stale copy when the live fetch
// fails.
type cachedCollector struct {
	collector.Collector
	cache *cache.Cache
}

func withCache(c collector.Collector, cc *cache.Cache) collector.Collector {
	return &cachedCollector{Collector: c, cache: cc}
}

func (c *cachedCollector) Fetch(ctx context.Context) ([]collector.Item, error) {
	day := time.Now().UTC().Format("2006-01-02")
	fp := cache.Fingerprint("fetch", map[string]string{"source": c.Name(), "day": day}, "v1")

	payload, err := c.cache.GetOrFetch(ctx, fp, cache.Options{TTL: apiCacheTTL, StaleIfError: true},
		func(ctx context.Context) ([]byte, error) {
			items, err := c.Collector.Fetch(ctx)
			if err != nil {
				return nil, err
			}
			return json.Marshal(items)
		})
	if err != nil {
		return nil, err
	}
	var items []collector.Item
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, &collector.CollectorError{Source: c.Name(), Err: fmt.Errorf("decode cached items: %w", err)}
	}
	return items, nil
}

// Run executes one full build. It fails only when nothing at all could
// be published; individual source failures degrade to partial output.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	started := p.now()
	report := &Report{StartedAt: started, PerSource: make(map[string]int)}

	res := orchestrator.Run(ctx, p.collectors, orchestrator.Options{
		Workers: p.cfg.FetchWorkers,
		Timeout: p.cfg.GlobalTimeout,
	})
	for _, err := range res.Errors {
		report.Errors = append(report.Errors, err.Error())
	}

	// Flatten in configured collector order so dedup's first-seen rule
	// favors the earlier-listed source.
	var raw []collector.Item
	seen := make(map[string]struct{})
	for _, c := range p.collectors {
		name := c.Name()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		items := res.Items[name]
		if p.cfg.FastMode && len(items) > fastModePerSource {
			items = items[:fastModePerSource]
		}
		report.PerSource[name] = len(items)
		raw = append(raw, items...)
	}
	report.Collected = len(raw)
	log.Printf("pipeline: collected %d items from %d sources (%d errors)", len(raw), len(res.Items), len(res.Errors))

	deduped := p.agg.Dedup(raw)

	now := p.now()
	var pool []aggregate.ScoredItem
	for _, it := range deduped {
		field, err := p.classifier.Fields(it)
		if err != nil {
			log.Printf("pipeline: skipping item: %v", err)
			continue
		}
		if it.AuthorHandle == "" {
			it.AuthorHandle = handleFromStatusURL(it.URL)
		}
		b := p.engine.ScoreWithBreakdown(it, now)
		pool = append(pool, aggregate.ScoredItem{
			Item:    it,
			Stars:   b.Stars,
			Section: p.classifier.Section(it),
			Field:   field,
			Base:    b.Base,
		})
	}
	pool = publish.Validate(pool)

	fresh := p.agg.Fresh(pool, now)
	if len(fresh) == 0 {
		return report, errors.New("pipeline: no publishable items")
	}

	// Verification and enrichment run on the ranked pool so their
	// effects reach every document built from it, and the probe budget
	// spends itself on the items most likely to be published.
	aggregate.Rank(fresh)
	fresh = p.verifyLinks(ctx, fresh)
	if len(fresh) == 0 {
		return report, errors.New("pipeline: no publishable items")
	}
	p.enrich(ctx, fresh, now)

	doc := p.agg.BuildLatest(fresh, now)
	fieldDocs := p.agg.BuildFieldDocs(fresh, p.sources.Taxonomy.FieldKeys(), now)

	if err := p.writer.WriteLatest(doc, now); err != nil {
		return report, err
	}
	if err := p.writer.WriteFieldDocs(fieldDocs); err != nil {
		return report, err
	}
	if err := p.writer.WriteIndex(publish.BuildIndex(fresh, p.sources.Taxonomy.FieldKeys(), now)); err != nil {
		return report, err
	}

	if p.synth != nil {
		trendsDoc, err := p.synth.Synthesize(ctx, fresh, now)
		if err != nil {
			// Trends are additive; a failed synthesis never fails the run.
			log.Printf("pipeline: trend synthesis failed: %v", err)
			report.Errors = append(report.Errors, err.Error())
		} else if err := p.writer.WriteTrends(trendsDoc); err != nil {
			return report, err
		}
	}

	report.Published = len(fresh)
	report.Duration = p.now().Sub(started)
	log.Printf("pipeline: published %d items in %s", report.Published, report.Duration)
	return report, nil
}

var xStatusURLRe = regexp.MustCompile(`^https?://(?:www\.)?x\.com/([^/]+)/status/`)

// handleFromStatusURL recovers the author handle from an x.com status
// link when the collector did not supply one.
func handleFromStatusURL(url string) string {
	if m := xStatusURLRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	return ""
}

// verifyLinks probes the pool's top links in rank order and drops
// entries whose target is definitely gone. Network errors and server
// hiccups keep the item; only a hard 404/410 removes it. Skipped in
// fast mode.
func (p *Pipeline) verifyLinks(ctx context.Context, items []aggregate.ScoredItem) []aggregate.ScoredItem {
	if p.cfg.FastMode {
		return items
	}
	client := &http.Client{Timeout: 5 * time.Second}
	budget := verifyTopN
	kept := items[:0]
	for _, it := range items {
		if budget > 0 {
			budget--
			if linkGone(ctx, client, it.URL) {
				log.Printf("pipeline: dropping dead link %s", it.URL)
				continue
			}
		}
		kept = append(kept, it)
	}
	return kept
}

func linkGone(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone
}

// enrich works the top of the ranked pool: thin excerpts get replaced
// with sidecar-extracted body text, then each item gets its cached LLM
// summary, whose blurb becomes the excerpt and whose stars can raise
// the item's. Stars only ever go up from enrichment: more evidence can
// reveal keywords, never remove the evidence already seen.
func (p *Pipeline) enrich(ctx context.Context, items []aggregate.ScoredItem, now time.Time) {
	if p.cfg.FastMode {
		return
	}
	if p.extractor == nil && p.synth == nil {
		return
	}
	n := enrichTopN
	if n > len(items) {
		n = len(items)
	}
	for i := 0; i < n; i++ {
		it := &items[i]
		if p.extractor != nil && utf8.RuneCountInString(it.Excerpt) < thinExcerptRunes {
			text, err := p.cachedExtract(ctx, it.URL)
			if err != nil {
				log.Printf("pipeline: extract %s: %v", it.URL, err)
			} else if text != "" {
				it.Excerpt = collector.TruncateRunes(collector.StripHTML(text), 300)
				rescored := p.engine.Score(it.Item, now)
				if rescored > it.Stars {
					it.Stars = rescored
				}
			}
		}
		p.summarize(ctx, it)
	}
}

// summarize applies the per-item LLM pass: the blurb replaces the
// excerpt and the returned stars raise the item's, never lower them.
func (p *Pipeline) summarize(ctx context.Context, it *aggregate.ScoredItem) {
	if p.synth == nil {
		return
	}
	sum, err := p.synth.SummarizeItem(ctx, it.Item)
	if err != nil {
		log.Printf("pipeline: summarize %s: %v", it.URL, err)
		return
	}
	if sum == nil {
		return
	}
	if sum.Blurb != "" {
		it.Excerpt = sum.Blurb
	}
	if sum.Stars > it.Stars {
		it.Stars = sum.Stars
	}
}

func (p *Pipeline) cachedExtract(ctx context.Context, url string) (string, error) {
	fp := cache.Fingerprint("extract", map[string]string{"url": url}, "v1")
	payload, err := p.cache.GetOrFetch(ctx, fp, cache.Options{TTL: apiCacheTTL},
		func(ctx context.Context) ([]byte, error) {
			text, err := p.extractor.Text(ctx, url)
			if err != nil {
				return nil, err
			}
			return json.Marshal(text)
		})
	if err != nil {
		return "", err
	}
	var text string
	if err := json.Unmarshal(payload, &text); err != nil {
		return "", err
	}
	return text, nil
}
