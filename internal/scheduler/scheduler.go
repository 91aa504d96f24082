package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gidiconnect/gidi-ingest/internal/pipeline"
)

// Runner is the ingestion job the scheduler drives.
type Runner interface {
	Run(ctx context.Context, category string, limit int) (*pipeline.Report, error)
}

// A full pass across all sources is sequential and throttled, so give it
// generous headroom before the context cuts it off.
const runTimeout = 10 * time.Minute

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
}

func New(spec string, runner Runner) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{cron: c, runner: runner}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// Delay the first pass so startup traffic (first page loads) is not
	// competing with a scrape run.
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// RunOnce exposes a single pass for manual triggering.
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	log.Println("start sync job...")

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if _, err := s.runner.Run(ctx, "", 0); err != nil {
		log.Printf("sync job error: %v", err)
		return
	}

	log.Println("sync job done")
}
