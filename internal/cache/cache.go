// Package cache is a content-addressed response cache keyed by request
// fingerprint, used to cut redundant external API and LLM calls.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by Store.Get when no live entry exists.
var ErrMiss = errors.New("cache miss")

// CacheError marks a corrupt or unreadable entry. Callers treat it as a
// miss; it is never fatal.
type CacheError struct {
	Fingerprint string
	Err         error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache entry %s: %v", e.Fingerprint, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// Fingerprint builds the deterministic hash for one cacheable request:
// collector kind, normalized query parameters, and an optional version
// tag (model/prompt version for LLM calls).
func Fingerprint(kind string, params map[string]string, version string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(kind)
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	if version != "" {
		b.WriteString("\nversion=")
		b.WriteString(version)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Entry is one cached payload. Entries are replaced wholesale, never
// mutated in place.
type Entry struct {
	Fingerprint string          `json:"fingerprint"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	TTLSeconds  int64           `json:"ttl_seconds"`
}

// Expired reports whether the entry is past its TTL at now. A TTL of
// zero or less means the entry is born expired.
func (e Entry) Expired(now time.Time) bool {
	if e.TTLSeconds <= 0 {
		return true
	}
	return now.Sub(e.CreatedAt) >= time.Duration(e.TTLSeconds)*time.Second
}

// Store is the persistence capability behind the cache. Get returns
// ErrMiss for absent keys and *CacheError for unreadable entries; it
// does not apply TTL, which is the Cache's job.
type Store interface {
	Get(ctx context.Context, fingerprint string) (Entry, error)
	Put(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, fingerprint string) error
}

// Options control one GetOrFetch call.
type Options struct {
	TTL time.Duration
	// StaleIfError serves an expired entry when the refetch fails,
	// as a degraded fallback. Off by default.
	StaleIfError bool
}

// Cache wraps a Store with TTL handling and per-fingerprint fetch
// coalescing: concurrent GetOrFetch calls on the same fingerprint
// collapse to a single origin request.
type Cache struct {
	store Store
	group singleflight.Group
	now   func() time.Time
}

func New(store Store) *Cache {
	return &Cache{store: store, now: time.Now}
}

// Get returns the live payload for fingerprint, or ErrMiss. Expired and
// corrupt entries both read as misses.
func (c *Cache) Get(ctx context.Context, fingerprint string) ([]byte, error) {
	entry, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		var ce *CacheError
		if errors.As(err, &ce) {
			log.Printf("cache: unreadable entry %.8s treated as miss: %v", fingerprint, ce.Err)
			return nil, ErrMiss
		}
		return nil, err
	}
	if entry.Expired(c.now()) {
		return nil, ErrMiss
	}
	return entry.Payload, nil
}

// Put stores payload under fingerprint, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, fingerprint string, payload []byte, ttl time.Duration) error {
	return c.store.Put(ctx, Entry{
		Fingerprint: fingerprint,
		Payload:     payload,
		CreatedAt:   c.now(),
		TTLSeconds:  int64(ttl / time.Second),
	})
}

// GetOrFetch returns the cached payload or invokes fetch exactly once
// across concurrent callers of the same fingerprint. A failed cache
// write only skips caching; the fetched payload is still returned.
func (c *Cache) GetOrFetch(ctx context.Context, fingerprint string, opts Options, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	v, err, _ := c.group.Do(fingerprint, func() (any, error) {
		var stale []byte
		entry, getErr := c.store.Get(ctx, fingerprint)
		switch {
		case getErr == nil:
			if !entry.Expired(c.now()) {
				return []byte(entry.Payload), nil
			}
			stale = entry.Payload
		case errors.Is(getErr, ErrMiss):
		default:
			var ce *CacheError
			if errors.As(getErr, &ce) {
				log.Printf("cache: unreadable entry %.8s treated as miss: %v", fingerprint, ce.Err)
			} else {
				return nil, getErr
			}
		}

		payload, fetchErr := fetch(ctx)
		if fetchErr != nil {
			if opts.StaleIfError && stale != nil {
				log.Printf("cache: serving stale entry %.8s after refetch error: %v", fingerprint, fetchErr)
				return stale, nil
			}
			return nil, fetchErr
		}

		if putErr := c.Put(ctx, fingerprint, payload, opts.TTL); putErr != nil {
			log.Printf("cache: write %.8s failed, skipping: %v", fingerprint, putErr)
		}
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
