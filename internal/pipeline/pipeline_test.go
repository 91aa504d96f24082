package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gidiconnect/gidi-ingest/internal/dedup"
	"github.com/gidiconnect/gidi-ingest/internal/extract"
	"github.com/gidiconnect/gidi-ingest/internal/sources"
	"github.com/gidiconnect/gidi-ingest/internal/storage"
)

type fakeFetcher struct {
	candidates []sources.Candidate
}

func (f *fakeFetcher) Fetch(ctx context.Context, category string, limit int) []sources.Candidate {
	return f.candidates
}

type fakeExtractor struct {
	details map[string]extract.Detail
	errs    map[string]error
	calls   []string
}

func (f *fakeExtractor) Extract(ctx context.Context, url string) (extract.Detail, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return extract.Detail{}, err
	}
	return f.details[url], nil
}

type fakeSink struct {
	existing    map[string]struct{}
	existingErr error
	saved       []dedup.Item
	failURL     string
}

func (f *fakeSink) ExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	if f.existingErr != nil {
		return nil, f.existingErr
	}
	if f.existing == nil {
		return map[string]struct{}{}, nil
	}
	return f.existing, nil
}

func (f *fakeSink) UpsertArticles(ctx context.Context, items []dedup.Item) []storage.UpsertResult {
	f.saved = items
	out := make([]storage.UpsertResult, 0, len(items))
	for _, it := range items {
		res := storage.UpsertResult{URL: it.URL, Action: storage.ActionInsert}
		if _, ok := f.existing[it.URL]; ok {
			res.Action = storage.ActionUpdate
		}
		if it.URL == f.failURL {
			res.Action, res.Err = storage.ActionError, errors.New("write failed")
		}
		out = append(out, res)
	}
	return out
}

func fresh(daysAgo int) time.Time {
	return time.Now().UTC().Add(-time.Duration(daysAgo) * 24 * time.Hour)
}

func TestRunPersistsDistinctFreshCandidates(t *testing.T) {
	urls := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3", "https://a.test/4", "https://a.test/5"}
	titles := []string{
		"Lagos Marathon Draws Thousands",
		"Tech Meetup Lagos Pitch Night",
		"New Ferry Route Opens Across Lagos Lagoon",
		"Eko Atlantic Hosts Art Fair This Weekend",
		"Island Food Festival Returns To Victoria Island",
	}

	fetcher := &fakeFetcher{}
	extractor := &fakeExtractor{details: map[string]extract.Detail{}}
	for i, u := range urls {
		fetcher.candidates = append(fetcher.candidates, sources.Candidate{
			SourceName: "Test", URL: u, Title: titles[i], Category: "news",
		})
		extractor.details[u] = extract.Detail{
			ImageURL:    "https://cdn.test/img.jpg",
			Summary:     "summary",
			PublishedAt: fresh(2),
		}
	}
	sink := &fakeSink{}

	rep, err := New(fetcher, extractor, sink, 60).Run(context.Background(), "news", 15)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Accepted != 5 || rep.Inserted != 5 {
		t.Fatalf("accepted=%d inserted=%d, want 5/5", rep.Accepted, rep.Inserted)
	}
	if len(sink.saved) != 5 {
		t.Fatalf("sink received %d items, want 5", len(sink.saved))
	}
	if sink.saved[0].Source != "Test" || sink.saved[0].Category != "news" {
		t.Fatalf("provenance not threaded through: %+v", sink.saved[0])
	}
}

func TestRunIsIdempotentAgainstExistingStore(t *testing.T) {
	fetcher := &fakeFetcher{candidates: []sources.Candidate{
		{SourceName: "Test", URL: "https://a.test/1", Title: "Lagos Marathon Draws Thousands", Category: "news"},
	}}
	extractor := &fakeExtractor{details: map[string]extract.Detail{
		"https://a.test/1": {ImageURL: "https://cdn.test/1.jpg", PublishedAt: fresh(1)},
	}}
	sink := &fakeSink{existing: map[string]struct{}{"https://a.test/1": {}}}

	rep, err := New(fetcher, extractor, sink, 60).Run(context.Background(), "news", 15)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Duplicates != 1 || rep.Accepted != 0 {
		t.Fatalf("duplicates=%d accepted=%d, want 1/0", rep.Duplicates, rep.Accepted)
	}
	if len(sink.saved) != 0 {
		t.Fatalf("second run must not re-save existing URLs: %+v", sink.saved)
	}
}

func TestRunSkipsInvalidURLsBeforeFetching(t *testing.T) {
	fetcher := &fakeFetcher{candidates: []sources.Candidate{
		{URL: "https://example.com/fake", Title: "Placeholder Story About Lagos"},
		{URL: "#", Title: "Broken Anchor Link Headline"},
	}}
	extractor := &fakeExtractor{}
	sink := &fakeSink{}

	rep, err := New(fetcher, extractor, sink, 60).Run(context.Background(), "", 15)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if len(extractor.calls) != 0 {
		t.Fatalf("invalid URLs must be rejected before any detail fetch: %v", extractor.calls)
	}
	if rep.Rejected["invalid_url"] != 2 {
		t.Fatalf("rejected[invalid_url] = %d, want 2", rep.Rejected["invalid_url"])
	}
}

func TestRunAppliesDatePolicyAndImageGate(t *testing.T) {
	fetcher := &fakeFetcher{candidates: []sources.Candidate{
		{URL: "https://a.test/stale", Title: "Old Lagos Festival Coverage Piece"},
		{URL: "https://a.test/future", Title: "Future Dated Lagos Announcement Item"},
		{URL: "https://a.test/noimg", Title: "Perfectly Fresh Lagos Story Without Art"},
		{URL: "https://a.test/broken", Title: "Unreachable Lagos Article Page Here"},
		{URL: "https://a.test/good", Title: "Fresh Lagos Story With Everything"},
	}}
	extractor := &fakeExtractor{
		details: map[string]extract.Detail{
			"https://a.test/stale":  {ImageURL: "https://cdn.test/x.jpg", PublishedAt: fresh(61)},
			"https://a.test/future": {ImageURL: "https://cdn.test/x.jpg", PublishedAt: time.Now().Add(time.Hour)},
			"https://a.test/noimg":  {PublishedAt: fresh(1)},
			"https://a.test/good":   {ImageURL: "https://cdn.test/x.jpg", PublishedAt: fresh(59)},
		},
		errs: map[string]error{
			"https://a.test/broken": errors.New("connection reset"),
		},
	}
	sink := &fakeSink{}

	rep, err := New(fetcher, extractor, sink, 60).Run(context.Background(), "", 15)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if rep.Rejected["stale"] != 1 || rep.Rejected["future_date"] != 1 ||
		rep.Rejected["no_image"] != 1 || rep.Rejected["extract_failed"] != 1 {
		t.Fatalf("unexpected rejection tally: %+v", rep.Rejected)
	}
	if len(sink.saved) != 1 || sink.saved[0].URL != "https://a.test/good" {
		t.Fatalf("only the 59-day-old item should survive: %+v", sink.saved)
	}
}

func TestRunCountsPartialSinkFailures(t *testing.T) {
	fetcher := &fakeFetcher{candidates: []sources.Candidate{
		{URL: "https://a.test/1", Title: "Lagos Marathon Draws Thousands"},
		{URL: "https://a.test/2", Title: "Tech Meetup Lagos Pitch Night"},
	}}
	extractor := &fakeExtractor{details: map[string]extract.Detail{
		"https://a.test/1": {ImageURL: "https://cdn.test/1.jpg", PublishedAt: fresh(1)},
		"https://a.test/2": {ImageURL: "https://cdn.test/2.jpg", PublishedAt: fresh(1)},
	}}
	sink := &fakeSink{failURL: "https://a.test/1"}

	rep, err := New(fetcher, extractor, sink, 60).Run(context.Background(), "", 15)
	if err != nil {
		t.Fatalf("a single write failure must not abort the run: %v", err)
	}
	if rep.Failed != 1 || rep.Inserted != 1 {
		t.Fatalf("failed=%d inserted=%d, want 1/1", rep.Failed, rep.Inserted)
	}
}

func TestRunFailsWhenStoreUnreachable(t *testing.T) {
	sink := &fakeSink{existingErr: errors.New("dial tcp: connection refused")}
	p := New(&fakeFetcher{}, &fakeExtractor{}, sink, 60)
	if _, err := p.Run(context.Background(), "", 15); err == nil {
		t.Fatalf("expected error when identity set cannot be loaded")
	}
}
