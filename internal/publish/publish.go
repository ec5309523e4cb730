// Package publish writes the run's JSON artifacts: the latest and dated
// news documents, per-field documents, the optional trends document and
// the index statistics.
package publish

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/psemi/newshub/internal/aggregate"
	"github.com/psemi/newshub/internal/trends"
)

type Writer struct {
	dir string
}

func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("publish: create dir %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) Dir() string { return w.dir }

// WriteLatest writes latest.json and the dated snapshot for now's date.
func (w *Writer) WriteLatest(doc *aggregate.NewsDocument, now time.Time) error {
	if err := w.writeJSON("latest.json", doc); err != nil {
		return err
	}
	return w.writeJSON(now.Format("2006-01-02")+".json", doc)
}

// WriteFieldDocs writes one <field>.json per taxonomy key.
func (w *Writer) WriteFieldDocs(docs map[string]*aggregate.FieldDocument) error {
	for key, doc := range docs {
		if err := w.writeJSON(key+".json", doc); err != nil {
			return err
		}
	}
	return nil
}

// WriteTrends writes trends.json. A nil document is the valid "no
// trends yet" state and writes nothing.
func (w *Writer) WriteTrends(doc *trends.TrendsDocument) error {
	if doc == nil {
		return nil
	}
	return w.writeJSON("trends.json", doc)
}

// Index summarizes a run for the consuming site.
type Index struct {
	LatestDate string         `json:"latest_date"`
	TotalCount int            `json:"total_count"`
	Fields     map[string]int `json:"fields"`
	Sections   map[string]int `json:"sections"`
	Sources    map[string]int `json:"sources"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// BuildIndex counts the pool per field, section and source. Every fixed
// field key appears even at zero.
func BuildIndex(items []aggregate.ScoredItem, fieldKeys []string, now time.Time) *Index {
	idx := &Index{
		LatestDate: now.Format("2006-01-02"),
		TotalCount: len(items),
		Fields:     make(map[string]int, len(fieldKeys)),
		Sections:   make(map[string]int),
		Sources:    make(map[string]int),
		UpdatedAt:  now,
	}
	for _, key := range fieldKeys {
		idx.Fields[key] = 0
	}
	for _, it := range items {
		for _, key := range it.Field.Fields() {
			idx.Fields[key]++
		}
		idx.Sections[it.Section]++
		idx.Sources[it.SourceName]++
	}
	return idx
}

func (w *Writer) WriteIndex(idx *Index) error {
	return w.writeJSON("index.json", idx)
}

// writeJSON replaces the target atomically so the serving side never
// reads a half-written document.
func (w *Writer) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("publish: marshal %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(w.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("publish: temp file for %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("publish: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish: close %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("publish: rename %s: %w", name, err)
	}
	return nil
}

// Validate drops items that would produce broken documents: missing
// title, or a URL that is not absolute http(s). Dropped items are
// logged, never fatal.
func Validate(items []aggregate.ScoredItem) []aggregate.ScoredItem {
	out := make([]aggregate.ScoredItem, 0, len(items))
	for _, it := range items {
		switch {
		case strings.TrimSpace(it.Title) == "":
			log.Printf("publish: dropping item without title: %s", it.URL)
		case !strings.HasPrefix(it.URL, "http://") && !strings.HasPrefix(it.URL, "https://"):
			log.Printf("publish: dropping item with bad url: %q (%s)", it.URL, it.Title)
		case it.Stars < 1 || it.Stars > 5:
			log.Printf("publish: dropping item with out-of-range stars %d: %s", it.Stars, it.URL)
		default:
			out = append(out, it)
		}
	}
	return out
}
