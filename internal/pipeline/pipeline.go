package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gidiconnect/gidi-ingest/internal/dedup"
	"github.com/gidiconnect/gidi-ingest/internal/extract"
	"github.com/gidiconnect/gidi-ingest/internal/sources"
	"github.com/gidiconnect/gidi-ingest/internal/storage"
	"github.com/gidiconnect/gidi-ingest/internal/validate"
)

// Fetcher pulls candidate links off the registered listing pages.
type Fetcher interface {
	Fetch(ctx context.Context, category string, limit int) []sources.Candidate
}

// Extractor resolves structured detail for one candidate URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (extract.Detail, error)
}

// Sink is the persistence boundary the pipeline writes through.
type Sink interface {
	ExistingURLs(ctx context.Context) (map[string]struct{}, error)
	UpsertArticles(ctx context.Context, items []dedup.Item) []storage.UpsertResult
}

// Report counts what happened to every candidate in a run. Rejections are
// keyed by reason so a run that quietly drops everything is diagnosable.
type Report struct {
	Category   string         `json:"category"`
	Fetched    int            `json:"fetched"`
	Extracted  int            `json:"extracted"`
	Rejected   map[string]int `json:"rejected"`
	Accepted   int            `json:"accepted"`
	Replaced   int            `json:"replaced"`
	Duplicates int            `json:"duplicates"`
	Inserted   int            `json:"inserted"`
	Updated    int            `json:"updated"`
	Failed     int            `json:"failed"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
}

// Pipeline is the sequential ingestion job: fetch listings, extract detail
// per candidate, filter, dedup, persist. No internal worker pool; candidate
// fetches run one at a time so third-party sites are never hammered.
type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	sink      Sink
	window    time.Duration
	now       func() time.Time
}

func New(f Fetcher, e Extractor, s Sink, freshnessDays int) *Pipeline {
	if freshnessDays <= 0 {
		freshnessDays = 60
	}
	return &Pipeline{
		fetcher:   f,
		extractor: e,
		sink:      s,
		window:    time.Duration(freshnessDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Run executes one ingestion pass. Source and candidate failures are local:
// they are counted and skipped. Only an unreachable store fails the run,
// since without the identity set every candidate would look new.
func (p *Pipeline) Run(ctx context.Context, category string, limit int) (*Report, error) {
	rep := &Report{
		Category:  category,
		Rejected:  map[string]int{},
		StartedAt: p.now().UTC(),
	}

	existing, err := p.sink.ExistingURLs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load identity set: %w", err)
	}

	candidates := p.fetcher.Fetch(ctx, category, limit)
	rep.Fetched = len(candidates)

	state := dedup.NewState(existing)
	for _, cand := range candidates {
		if ctx.Err() != nil {
			break
		}

		// Cheap gate before the expensive detail fetch.
		if !validate.ValidURL(cand.URL) {
			rep.Rejected["invalid_url"]++
			continue
		}

		detail, err := p.extractor.Extract(ctx, cand.URL)
		if err != nil {
			log.Printf("extract %s error: %v", cand.URL, err)
			rep.Rejected["extract_failed"]++
			continue
		}
		rep.Extracted++

		switch validate.CheckDate(detail.PublishedAt, p.now(), p.window) {
		case validate.DateFuture:
			rep.Rejected["future_date"]++
			continue
		case validate.DateTooOld:
			rep.Rejected["too_old"]++
			continue
		case validate.DateStale:
			rep.Rejected["stale"]++
			continue
		}

		// An article without an image is not presentable in the feed.
		if detail.ImageURL == "" {
			rep.Rejected["no_image"]++
			continue
		}

		// Final URL gate before the item can reach the sink.
		if !validate.ValidURL(cand.URL) {
			rep.Rejected["invalid_url"]++
			continue
		}

		switch state.Add(dedup.Item{
			Title:       cand.Title,
			URL:         cand.URL,
			ImageURL:    detail.ImageURL,
			Summary:     detail.Summary,
			Category:    cand.Category,
			Source:      cand.SourceName,
			PublishedAt: detail.PublishedAt,
		}) {
		case dedup.Accepted:
			rep.Accepted++
		case dedup.Replaced:
			rep.Replaced++
		default:
			rep.Duplicates++
		}
	}

	batch := state.Items()
	results := p.sink.UpsertArticles(ctx, batch)
	for _, r := range results {
		switch r.Action {
		case storage.ActionInsert:
			rep.Inserted++
		case storage.ActionUpdate:
			rep.Updated++
		default:
			rep.Failed++
		}
	}

	rep.FinishedAt = p.now().UTC()
	log.Printf("sync %q done: fetched=%d extracted=%d accepted=%d inserted=%d updated=%d failed=%d",
		category, rep.Fetched, rep.Extracted, len(batch), rep.Inserted, rep.Updated, rep.Failed)

	return rep, nil
}
