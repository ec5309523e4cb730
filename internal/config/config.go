package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything read from the environment at process start.
// Source lists and keyword tables live in sources.yaml, see Sources.
type Config struct {
	AppPort  string
	CronSpec string

	OutDir      string
	CacheDir    string
	SourcesFile string

	// Optional redis-backed cache store; empty means file cache only.
	RedisAddr string

	// Optional body-text extraction sidecar (cmd/extractor).
	ExtractorURL string

	// Per-source API credentials. A missing credential disables that
	// collector instead of failing the run.
	GitHubToken      string
	ProductHuntToken string
	XBearerToken     string

	// LLM backend for trend synthesis. Empty key skips trends.json.
	LLMProvider string
	LLMAPIKey   string
	LLMModel    string

	// FastMode skips link verification and body extraction and caps
	// item counts, for CI runs.
	FastMode bool

	GlobalTimeout  time.Duration
	RecencyWindow  time.Duration
	MaxAge         time.Duration
	FallbackMaxAge time.Duration
	MaxPerSection  int
	FetchWorkers   int
}

func Load() *Config {
	cfg := &Config{
		AppPort:          getEnv("APP_PORT", "9000"),
		CronSpec:         getEnv("CRON_SPEC", "*/30 * * * *"),
		OutDir:           getEnv("NEWS_OUT_DIR", "news"),
		CacheDir:         getEnv("NEWS_CACHE_DIR", "cache"),
		SourcesFile:      getEnv("NEWS_SOURCES_FILE", "sources.yaml"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		ExtractorURL:     os.Getenv("EXTRACTOR_URL"),
		GitHubToken:      os.Getenv("GITHUB_TOKEN"),
		ProductHuntToken: os.Getenv("PH_TOKEN"),
		XBearerToken:     os.Getenv("X_BEARER_TOKEN"),
		LLMProvider:      getEnv("LLM_PROVIDER", "openai"),
		LLMAPIKey:        os.Getenv("LLM_API_KEY"),
		LLMModel:         os.Getenv("LLM_MODEL"),
		FastMode:         os.Getenv("NEWS_FAST_MODE") == "1",
		GlobalTimeout:    getEnvDuration("NEWS_GLOBAL_TIMEOUT_SEC", 60) * time.Second,
		RecencyWindow:    getEnvDuration("NEWS_RECENCY_WINDOW_HOURS", 96) * time.Hour,
		MaxAge:           getEnvDuration("NEWS_MAX_AGE_HOURS", 24) * time.Hour,
		FallbackMaxAge:   getEnvDuration("NEWS_FALLBACK_AGE_HOURS", 48) * time.Hour,
		MaxPerSection:    getEnvInt("NEWS_MAX_PER_SECTION", 30),
		FetchWorkers:     getEnvInt("NEWS_FETCH_WORKERS", 8),
	}

	log.Printf("config loaded: port=%s cron=%s out=%s workers=%d", cfg.AppPort, cfg.CronSpec, cfg.OutDir, cfg.FetchWorkers)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func getEnvDuration(key string, def int64) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def)
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return time.Duration(def)
	}
	return time.Duration(n)
}

// PressPage points the press-release scraper at one vendor newsroom.
type PressPage struct {
	Vendor       string `yaml:"vendor"`
	URL          string `yaml:"url"`
	ItemSelector string `yaml:"item_selector"`
	TitleSel     string `yaml:"title_selector"`
	LinkSel      string `yaml:"link_selector"`
}

// Sources is the sources.yaml document. Any omitted table falls back to
// the built-in defaults (see tables.go).
type Sources struct {
	Feeds        []string    `yaml:"feeds"`
	XAccounts    []string    `yaml:"x_accounts"`
	XRSSBase     string      `yaml:"x_rss_base"`
	XRSSAccounts []string    `yaml:"x_rss_accounts"`
	PressPages   []PressPage `yaml:"press_pages"`

	// Published Google Sheet with hand-picked SNS posts; empty disables
	// the sheet collector.
	SheetID  string `yaml:"sheet_id"`
	SheetGID string `yaml:"sheet_gid"`

	Scoring  ScoringTable `yaml:"scoring"`
	Taxonomy Taxonomy     `yaml:"taxonomy"`
	Sections SectionTable `yaml:"sections"`
}

// LoadSources reads sources.yaml and fills defaulted tables.
func LoadSources(path string) (*Sources, error) {
	s := &Sources{}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("config: %s not found, using built-in defaults", path)
			s.applyDefaults()
			return s, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	s.applyDefaults()
	return s, nil
}

func (s *Sources) applyDefaults() {
	if s.Scoring.isZero() {
		s.Scoring = DefaultScoring()
	}
	if len(s.Taxonomy.Axes) == 0 {
		s.Taxonomy = DefaultTaxonomy()
	}
	if s.Sections.isZero() {
		s.Sections = DefaultSections()
	}
}
