// Command extractor is the headless-browser sidecar behind the
// pipeline's body enrichment. It keeps one Chrome instance alive and
// serves POST /extract, returning the readable text of a page.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	defaultMaxChars = 2000
	hardMaxChars    = 8000
	navigateTimeout = 20 * time.Second
)

type extractRequest struct {
	URL      string `json:"url"`
	MaxChars int    `json:"maxChars"`
}

type extractResponse struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

// server wraps the shared browser context. Requests each get their own
// timeout but reuse the one headless instance.
type server struct {
	browserCtx context.Context
}

func main() {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	// Warm up so the first real request does not pay browser startup.
	if err := chromedp.Run(browserCtx); err != nil {
		log.Printf("warn: warmup chromedp failed: %v", err)
	}

	s := &server{browserCtx: browserCtx}
	mux := http.NewServeMux()
	mux.HandleFunc("/extract", s.handleExtract)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := ":" + getEnv("PORT", "4000")
	log.Printf("extractor listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}

func (s *server) handleExtract(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := decodeRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, extractResponse{Error: err.Error()})
		return
	}

	text, err := s.extract(r.Context(), req.URL)
	if err != nil {
		log.Printf("extract error: %v (url=%s)", err, req.URL)
		writeJSON(w, http.StatusOK, extractResponse{Error: err.Error()})
		return
	}
	if text == "" {
		writeJSON(w, http.StatusOK, extractResponse{Error: "empty content"})
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{OK: true, Text: clipRunes(text, req.MaxChars)})
}

func decodeRequest(r *http.Request) (*extractRequest, error) {
	var req extractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid json")
	}
	if req.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		return nil, fmt.Errorf("url must be http(s)")
	}
	if req.MaxChars <= 0 {
		req.MaxChars = defaultMaxChars
	}
	if req.MaxChars > hardMaxChars {
		req.MaxChars = hardMaxChars
	}
	return &req, nil
}

// extract navigates the shared browser to the page and runs the
// in-page readability script. The caller's context bounds the whole
// round-trip so a hung page cannot pin the browser.
func (s *server) extract(reqCtx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(s.browserCtx, navigateTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		select {
		case <-reqCtx.Done():
			cancel()
		case <-done:
		}
	}()
	defer close(done)

	var text string
	err := chromedp.Run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(readabilityJS, &text),
	)
	if err != nil {
		return "", err
	}
	return collapseBlankLines(text), nil
}

// readabilityJS pulls the main text out of a page in three passes:
// semantic article containers first, then the vendor-newsroom div
// classes the press sources use, then a whole-page paragraph harvest.
// A page with no body text at all still yields its meta description.
const readabilityJS = `(function () {
  function textOf(el) {
    return el ? (el.innerText || "").trim() : "";
  }

  var containers = [
    "article",
    "main article",
    "main",
    "div.press-release",
    "div.news-detail",
    "div.newsroom-content",
    "div.article-content",
    "div#content",
    "div.content"
  ];
  for (var i = 0; i < containers.length; i++) {
    var t = textOf(document.querySelector(containers[i]));
    if (t.length > 200) return t;
  }

  var seen = {};
  var pieces = [];
  var total = 0;
  var paras = document.querySelectorAll("p, li");
  for (var j = 0; j < paras.length && total < 6000; j++) {
    var p = textOf(paras[j]);
    if (p.length < 40 || seen[p]) continue;
    seen[p] = true;
    pieces.push(p);
    total += p.length;
  }
  if (pieces.length) return pieces.join("\n\n");

  var meta = document.querySelector('meta[name="description"], meta[property="og:description"]');
  return meta ? (meta.getAttribute("content") || "") : "";
})();`

// clipRunes cuts at a rune boundary so multibyte text is never split
// mid-character.
func clipRunes(s string, max int) string {
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max]) + "…"
}

func collapseBlankLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
