// Package orchestrator runs the configured collectors concurrently
// under a bounded worker pool, so a run's wall-clock cost approaches the
// slowest collector rather than the sum of all of them.
package orchestrator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/psemi/newshub/internal/collector"
)

// TimeoutError records a collector that had not finished when the
// global run deadline expired.
type TimeoutError struct {
	Source string
}

func (e *TimeoutError) Error() string {
	return "collector " + e.Source + ": timed out"
}

// Result carries whatever completed before the deadline. Items holds
// each successful collector's output in its natural order; Errors holds
// one record per failed or timed-out collector.
type Result struct {
	Items  map[string][]collector.Item
	Errors []error
}

// Total counts items across all sources.
func (r Result) Total() int {
	n := 0
	for _, items := range r.Items {
		n += len(items)
	}
	return n
}

type Options struct {
	// Workers bounds concurrent fetches; <=0 means one worker per
	// collector.
	Workers int
	// Timeout is the global run deadline; <=0 means no extra deadline
	// beyond the parent context.
	Timeout time.Duration
}

// Run fetches all collectors. A single collector's failure or timeout
// never cancels the others; partial results are always returned.
func Run(parent context.Context, collectors []collector.Collector, opts Options) Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = len(collectors)
	}

	ctx := parent
	cancel := func() {}
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, opts.Timeout)
	}
	defer cancel()

	type outcome struct {
		idx   int
		name  string
		items []collector.Item
		err   error
	}

	outcomes := make(chan outcome, len(collectors))
	sem := make(chan struct{}, workers)

	for i, c := range collectors {
		go func(idx int, c collector.Collector) {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				outcomes <- outcome{idx: idx, name: c.Name(), err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			items, err := c.Fetch(ctx)
			outcomes <- outcome{idx: idx, name: c.Name(), items: items, err: err}
		}(i, c)
	}

	res := Result{Items: make(map[string][]collector.Item, len(collectors))}
	// Pending is tracked per collector, not per name: names are not
	// guaranteed unique (two feeds on one host share an rss name).
	pending := make(map[int]string, len(collectors))
	for i, c := range collectors {
		pending[i] = c.Name()
	}

	for range collectors {
		select {
		case o := <-outcomes:
			delete(pending, o.idx)
			switch {
			case o.err == nil:
				res.Items[o.name] = append(res.Items[o.name], o.items...)
			case errors.Is(o.err, context.DeadlineExceeded) || errors.Is(o.err, context.Canceled):
				log.Printf("orchestrator: %s timed out", o.name)
				res.Errors = append(res.Errors, &TimeoutError{Source: o.name})
			default:
				log.Printf("orchestrator: %s failed: %v", o.name, o.err)
				var ce *collector.CollectorError
				if errors.As(o.err, &ce) {
					res.Errors = append(res.Errors, ce)
				} else {
					res.Errors = append(res.Errors, &collector.CollectorError{Source: o.name, Err: o.err})
				}
			}
		case <-ctx.Done():
			// Deadline hit with fetches still in flight: keep what
			// completed and record the rest.
			for _, name := range pending {
				res.Errors = append(res.Errors, &TimeoutError{Source: name})
			}
			return res
		}
	}
	return res
}
