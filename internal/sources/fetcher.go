package sources

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// headlineSelectors are generic structural selectors that match headline links
// across the registered outlets. Page layouts shift; this is best-effort.
const headlineSelectors = "article h2 a, article h3 a, h2 a, h3 a, .headline a, a.article-link"

// Client scrapes listing pages from the registry and emits candidates.
type Client struct {
	registry     []Source
	userAgent    string
	perSourceCap int
	totalCap     int
	delay        time.Duration
	timeout      time.Duration
}

// Options tunes the fetch pass. Zero values fall back to the service defaults.
type Options struct {
	UserAgent    string
	PerSourceCap int
	TotalCap     int
	Delay        time.Duration
	Timeout      time.Duration
}

func NewClient(registry []Source, opts Options) *Client {
	c := &Client{
		registry:     registry,
		userAgent:    opts.UserAgent,
		perSourceCap: opts.PerSourceCap,
		totalCap:     opts.TotalCap,
		delay:        opts.Delay,
		timeout:      opts.Timeout,
	}
	if c.perSourceCap <= 0 {
		c.perSourceCap = 3
	}
	if c.totalCap <= 0 {
		c.totalCap = 15
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	return c
}

// Fetch walks the registry in order and returns up to limit candidates.
// A failing source is logged and skipped; it never aborts the pass. A fixed
// delay separates sources so scrape targets are not hammered back to back.
func (c *Client) Fetch(ctx context.Context, category string, limit int) []Candidate {
	if limit <= 0 || limit > c.totalCap {
		limit = c.totalCap
	}

	out := make([]Candidate, 0, limit)
	first := true
	for _, src := range c.registry {
		if ctx.Err() != nil {
			break
		}
		if len(out) >= limit {
			break
		}
		if category != "" && src.Category != category {
			continue
		}

		if !first {
			select {
			case <-ctx.Done():
				return out
			case <-time.After(c.delay):
			}
		}
		first = false

		want := c.perSourceCap
		if rest := limit - len(out); rest < want {
			want = rest
		}
		got, err := c.fetchSource(src, want)
		if err != nil {
			log.Printf("fetch %s error: %v", src.Code, err)
			continue
		}
		log.Printf("fetch %s got %d candidates", src.Code, len(got))
		out = append(out, got...)
	}

	return out
}

func (c *Client) fetchSource(src Source, want int) ([]Candidate, error) {
	col := colly.NewCollector(colly.UserAgent(c.userAgent))
	col.SetRequestTimeout(c.timeout)

	var (
		found []Candidate
		seen  = map[string]struct{}{}
	)

	col.OnHTML(headlineSelectors, func(e *colly.HTMLElement) {
		if len(found) >= want {
			return
		}
		title := collapseSpace(e.Text)
		link := e.Request.AbsoluteURL(strings.TrimSpace(e.Attr("href")))
		if title == "" || link == "" {
			return
		}
		if _, ok := seen[link]; ok {
			return
		}
		if !relevantTitle(src.Tag, title) {
			return
		}
		seen[link] = struct{}{}
		found = append(found, Candidate{
			SourceName: src.Name,
			URL:        link,
			Title:      title,
			Category:   src.Category,
		})
	})

	if err := col.Visit(src.BaseURL); err != nil {
		return nil, err
	}

	return found, nil
}

// relevantTitle applies the per-tag relevance filter: general outlets must
// mention the city by name, entertainment outlets only need a headline long
// enough to be a real article title rather than a nav link.
func relevantTitle(tag Tag, title string) bool {
	switch tag {
	case TagEntertainment:
		return len([]rune(title)) > 20
	default:
		return strings.Contains(strings.ToLower(title), "lagos")
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
