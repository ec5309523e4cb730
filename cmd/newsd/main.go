package main

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/psemi/newshub/internal/api"
	"github.com/psemi/newshub/internal/config"
	"github.com/psemi/newshub/internal/pipeline"
	"github.com/psemi/newshub/internal/scheduler"
)

// Long-running daemon: rebuilds the documents on the cron schedule and
// serves them over HTTP.
func main() {
	cfg := config.Load()

	p, err := pipeline.New(cfg)
	if err != nil {
		log.Fatalf("init pipeline failed: %v", err)
	}

	sched, err := scheduler.New(cfg.CronSpec, p)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	sched.Start()
	defer sched.Stop()

	r := gin.Default()
	api.NewServer(cfg.OutDir, sched).RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("newsd listening on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}
