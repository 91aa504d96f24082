package main

import (
	"context"
	"flag"
	"log"

	"github.com/gidiconnect/gidi-ingest/internal/config"
	"github.com/gidiconnect/gidi-ingest/internal/extract"
	"github.com/gidiconnect/gidi-ingest/internal/pipeline"
	"github.com/gidiconnect/gidi-ingest/internal/sources"
	"github.com/gidiconnect/gidi-ingest/internal/storage"
)

// One-shot ingestion run for manual or scheduled (external cron) triggering.
func main() {
	category := flag.String("category", "", "restrict the run to one category (news, entertainment)")
	limit := flag.Int("limit", 0, "total candidate cap for this run (0 = configured default)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	registry := sources.DefaultRegistry()
	for _, src := range registry {
		if _, err := store.EnsureSource(src.Code, src.Name, src.BaseURL); err != nil {
			log.Fatalf("ensure source %s failed: %v", src.Code, err)
		}
	}

	fetcher := sources.NewClient(registry, sources.Options{
		UserAgent:    cfg.UserAgent,
		PerSourceCap: cfg.PerSourceCap,
		TotalCap:     cfg.MaxCandidates,
		Delay:        cfg.SourceDelay,
		Timeout:      cfg.FetchTimeout,
	})
	extractor := extract.New(cfg.FetchTimeout, cfg.UserAgent)
	pipe := pipeline.New(fetcher, extractor, store, cfg.FreshnessDays)

	rep, err := pipe.Run(context.Background(), *category, *limit)
	if err != nil {
		log.Fatalf("sync run failed: %v", err)
	}

	log.Printf("run report: fetched=%d extracted=%d accepted=%d replaced=%d duplicates=%d inserted=%d updated=%d failed=%d",
		rep.Fetched, rep.Extracted, rep.Accepted, rep.Replaced, rep.Duplicates, rep.Inserted, rep.Updated, rep.Failed)
	for reason, n := range rep.Rejected {
		log.Printf("rejected %s: %d", reason, n)
	}
}
