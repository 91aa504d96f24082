package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Detail is the structured metadata recovered from a single article page.
// PublishedAt is always set: a page whose date cannot be resolved fails
// extraction instead, because freshness cannot be verified for it.
type Detail struct {
	ImageURL    string
	Summary     string
	PublishedAt time.Time
}

// ErrNoDate marks a page where none of the date strategies resolved.
var ErrNoDate = errors.New("no publish date found")

const summaryMaxRunes = 150

// Extractor fetches article pages and runs the strategy chains over them.
type Extractor struct {
	client    *http.Client
	userAgent string
}

func New(timeout time.Duration, userAgent string) *Extractor {
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	return &Extractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Extract fetches rawURL and resolves image, publish date and summary.
// Failures are per-candidate: callers drop the candidate and move on.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (Detail, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return Detail{}, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Detail{}, fmt.Errorf("build request: %w", err)
	}
	// Many outlets reject default client identifiers outright.
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return Detail{}, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Detail{}, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Detail{}, fmt.Errorf("parse page: %w", err)
	}

	return fromDocument(doc, pageURL)
}

// fromDocument runs the chains over an already-parsed page.
func fromDocument(doc *goquery.Document, pageURL *url.URL) (Detail, error) {
	p := &page{doc: doc, url: pageURL}

	published, ok := resolveDate(p)
	if !ok {
		return Detail{}, ErrNoDate
	}

	d := Detail{PublishedAt: published}

	if img, ok := firstMatch(p, imageStrategies); ok {
		d.ImageURL = absolutize(pageURL, img)
	}

	if summary, ok := firstMatch(p, summaryStrategies); ok {
		d.Summary = truncateRunes(collapseSpace(summary), summaryMaxRunes)
	}

	return d, nil
}

// absolutize rewrites a relative asset path against the page's own
// scheme/host. Absolute URLs pass through untouched.
func absolutize(base *url.URL, raw string) string {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}
	if ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most limit runes, appending an ellipsis when
// anything was dropped. Rune-safe so multi-byte titles never split mid-char.
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
