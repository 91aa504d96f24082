package extract

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// page bundles a parsed document with its own URL so strategies can resolve
// relative paths and read date hints embedded in the link itself.
type page struct {
	doc *goquery.Document
	url *url.URL
}

// strategy is one pure extraction attempt. Chains are ordered slices applied
// first-success-wins, so the priority order is data, not nested conditionals.
type strategy struct {
	name string
	fn   func(*page) (string, bool)
}

var imageStrategies = []strategy{
	{"og:image", metaContent(`meta[property="og:image"]`)},
	{"twitter:image", metaContent(`meta[name="twitter:image"]`)},
	{"article-img", attrOf("article img, .post-content img, .entry-content img", "src")},
}

var dateStrategies = []strategy{
	{"article:published_time", metaContent(`meta[property="article:published_time"]`)},
	{"publishdate", metaContent(`meta[name="publishdate"]`)},
	{"date", metaContent(`meta[name="date"]`)},
	{"time-datetime", attrOf("time[datetime]", "datetime")},
	{"url-path", dateFromPath},
}

var summaryStrategies = []strategy{
	{"og:description", metaContent(`meta[property="og:description"]`)},
	{"description", metaContent(`meta[name="description"]`)},
	{"article-p", textOf("article p")},
	{"content-p", textOf(".content p, main p")},
}

func firstMatch(p *page, chain []strategy) (string, bool) {
	for _, s := range chain {
		if v, ok := s.fn(p); ok {
			return v, true
		}
	}
	return "", false
}

// resolveDate walks the date chain; a strategy only wins if its raw value
// actually parses, so a malformed meta tag falls through to the next hint.
func resolveDate(p *page) (time.Time, bool) {
	for _, s := range dateStrategies {
		raw, ok := s.fn(p)
		if !ok {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func metaContent(selector string) func(*page) (string, bool) {
	return func(p *page) (string, bool) {
		v, _ := p.doc.Find(selector).First().Attr("content")
		v = strings.TrimSpace(v)
		return v, v != ""
	}
}

func attrOf(selector, attr string) func(*page) (string, bool) {
	return func(p *page) (string, bool) {
		v, _ := p.doc.Find(selector).First().Attr(attr)
		v = strings.TrimSpace(v)
		return v, v != ""
	}
}

func textOf(selector string) func(*page) (string, bool) {
	return func(p *page) (string, bool) {
		v := strings.TrimSpace(p.doc.Find(selector).First().Text())
		return v, v != ""
	}
}

var pathDateExpr = regexp.MustCompile(`/(\d{4})/(\d{2})/(\d{2})(?:/|$)`)

// dateFromPath reads a /YYYY/MM/DD/ segment out of the article URL itself,
// the last resort when the page carries no usable date markup.
func dateFromPath(p *page) (string, bool) {
	m := pathDateExpr.FindStringSubmatch(p.url.Path)
	if m == nil {
		return "", false
	}
	return m[1] + "-" + m[2] + "-" + m[3], true
}
