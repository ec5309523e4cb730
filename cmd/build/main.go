package main

import (
	"context"
	"log"

	"github.com/psemi/newshub/internal/config"
	"github.com/psemi/newshub/internal/pipeline"
)

// One-shot build entry: run the full collect-and-publish pipeline once
// and exit. Suited to CI and manual rebuilds.
func main() {
	cfg := config.Load()

	p, err := pipeline.New(cfg)
	if err != nil {
		log.Fatalf("init pipeline failed: %v", err)
	}

	report, err := p.Run(context.Background())
	if err != nil {
		log.Fatalf("build failed: %v", err)
	}
	log.Printf("build done: collected=%d published=%d errors=%d in %s",
		report.Collected, report.Published, len(report.Errors), report.Duration)
}
