package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/psemi/newshub/internal/pipeline"
	"github.com/robfig/cron/v3"
)

type Scheduler struct {
	cron     *cron.Cron
	pipeline *pipeline.Pipeline
}

func New(spec string, p *pipeline.Pipeline) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:     c,
		pipeline: p,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// Delay the first build so the HTTP server is serving before the
	// collectors start competing for bandwidth.
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce is the manual-trigger entry used by the API.
func (s *Scheduler) RunOnce() (*pipeline.Report, error) {
	return s.run()
}

func (s *Scheduler) runOnce() {
	if _, err := s.run(); err != nil {
		log.Printf("scheduler: build failed: %v", err)
	}
}

func (s *Scheduler) run() (*pipeline.Report, error) {
	log.Println("start news build...")
	report, err := s.pipeline.Run(context.Background())
	if err != nil {
		return report, err
	}
	log.Printf("news build done: %d items published", report.Published)
	return report, nil
}
