package collector

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// sheetColumns maps the curated sheet's fixed layout: date, author
// handle, post text and post URL.
var sheetColumns = struct {
	date, handle, text, url int
}{date: 0, handle: 1, text: 3, url: 5}

// SheetCollector ingests manually curated SNS posts from a published
// Google Sheet, exported as CSV. The sheet is the editorial escape
// hatch: posts the API collectors miss get pasted there by hand.
type SheetCollector struct {
	SheetID string
	GID     string

	// BaseURL overrides the docs.google.com export endpoints in tests.
	BaseURL string
}

func NewSheet(sheetID, gid string) *SheetCollector {
	if gid == "" {
		gid = "0"
	}
	return &SheetCollector{SheetID: sheetID, GID: gid}
}

func (s *SheetCollector) Name() string { return "sheet" }

func (s *SheetCollector) Kind() Kind { return KindSocial }

// candidateURLs lists the export endpoints in preference order; Google
// serves different ones depending on the sheet's sharing mode.
func (s *SheetCollector) candidateURLs() []string {
	if s.BaseURL != "" {
		return []string{s.BaseURL}
	}
	base := "https://docs.google.com/spreadsheets/d/" + s.SheetID
	return []string{
		fmt.Sprintf("%s/export?format=csv&gid=%s", base, s.GID),
		fmt.Sprintf("%s/export?gid=%s&single=true&output=csv", base, s.GID),
		fmt.Sprintf("%s/gviz/tq?tqx=out:csv&gid=%s", base, s.GID),
	}
}

func (s *SheetCollector) Fetch(ctx context.Context) ([]Item, error) {
	if s.SheetID == "" && s.BaseURL == "" {
		return nil, nil
	}

	rows, err := s.fetchRows(ctx)
	if err != nil {
		return nil, &CollectorError{Source: s.Name(), Err: err}
	}
	return s.rowsToItems(rows), nil
}

func (s *SheetCollector) fetchRows(ctx context.Context) ([][]string, error) {
	client := newClient()
	var lastErr error
	for _, u := range s.candidateURLs() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		rows, err := decodeCSVRows(resp)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		// A consent or sign-in page parses as CSV too; a real sheet
		// carries at least one link.
		if !rowsContainLink(rows) {
			lastErr = fmt.Errorf("export %s returned no post links", u)
			continue
		}
		return rows, nil
	}
	return nil, fmt.Errorf("fetch sheet: %w", lastErr)
}

func decodeCSVRows(resp *http.Response) ([][]string, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ctype, "text/html") && !strings.Contains(ctype, "csv") {
		return nil, fmt.Errorf("got html instead of csv")
	}

	r := csv.NewReader(io.LimitReader(resp.Body, maxResponseBytes))
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func rowsContainLink(rows [][]string) bool {
	for _, row := range rows {
		for _, cell := range row {
			if strings.Contains(cell, "http://") || strings.Contains(cell, "https://") {
				return true
			}
		}
	}
	return false
}

func (s *SheetCollector) rowsToItems(rows [][]string) []Item {
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		text := strings.TrimSpace(cellAt(row, sheetColumns.text))
		postURL := strings.TrimSpace(cellAt(row, sheetColumns.url))
		if text == "" || !strings.HasPrefix(postURL, "http") {
			continue
		}

		pub := time.Now()
		if raw := strings.TrimSpace(cellAt(row, sheetColumns.date)); raw != "" {
			if t, ok := parseSheetDate(raw); ok {
				pub = t
			}
		}

		handle := strings.TrimSpace(strings.TrimPrefix(cellAt(row, sheetColumns.handle), "@"))
		items = append(items, Item{
			Title:        TruncateRunes(firstLine(text), xTitleMax),
			URL:          postURL,
			PublishedAt:  pub,
			Excerpt:      TruncateRunes(text, excerptMaxRunes),
			SourceName:   sheetSourceName(postURL),
			SourceKind:   KindSocial,
			AuthorHandle: handle,
		})
	}
	if len(items) == 0 {
		log.Println("sheet: no usable rows")
	}
	return items
}

func cellAt(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

var sheetDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04",
	"2006/01/02",
}

func parseSheetDate(raw string) (time.Time, bool) {
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sheetSourceName labels X posts as x.com and anything else by its
// host, so the section classifier routes them like API-sourced posts.
func sheetSourceName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "sheet"
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "x.com" || host == "twitter.com" {
		return "x.com"
	}
	return host
}
