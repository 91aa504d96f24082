package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func detailFrom(t *testing.T, html, pageURL string) (Detail, error) {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse test html: %v", err)
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		t.Fatalf("parse test url: %v", err)
	}
	return fromDocument(doc, u)
}

func TestImageChainPrefersOpenGraph(t *testing.T) {
	html := `<html><head>
		<meta property="og:image" content="https://cdn.test/og.jpg">
		<meta name="twitter:image" content="https://cdn.test/tw.jpg">
		<meta property="article:published_time" content="2025-03-10T08:00:00Z">
	</head><body><article><img src="/inline.jpg"></article></body></html>`

	d, err := detailFrom(t, html, "https://news.test/2025/03/10/story")
	if err != nil {
		t.Fatalf("fromDocument error: %v", err)
	}
	if d.ImageURL != "https://cdn.test/og.jpg" {
		t.Fatalf("ImageURL = %q, want og:image value", d.ImageURL)
	}
}

func TestImageChainFallsThroughAndResolvesRelative(t *testing.T) {
	html := `<html><head>
		<meta property="article:published_time" content="2025-03-10T08:00:00Z">
	</head><body><article><img src="/img/cover.jpg"></article></body></html>`

	d, err := detailFrom(t, html, "https://news.test/story")
	if err != nil {
		t.Fatalf("fromDocument error: %v", err)
	}
	if d.ImageURL != "https://news.test/img/cover.jpg" {
		t.Fatalf("ImageURL = %q, want relative src resolved against page host", d.ImageURL)
	}
}

func TestDateChainOrder(t *testing.T) {
	// time[datetime] present but meta tag should win.
	html := `<html><head>
		<meta property="article:published_time" content="2025-03-09T10:00:00Z">
	</head><body><time datetime="2025-01-01T00:00:00Z">old</time></body></html>`

	d, err := detailFrom(t, html, "https://news.test/story")
	if err != nil {
		t.Fatalf("fromDocument error: %v", err)
	}
	want := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	if !d.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", d.PublishedAt, want)
	}

	// Without any meta tag the time element is used.
	html = `<html><body><time datetime="2025-01-01T00:00:00Z">x</time></body></html>`
	d, err = detailFrom(t, html, "https://news.test/story")
	if err != nil {
		t.Fatalf("fromDocument error: %v", err)
	}
	if d.PublishedAt.Year() != 2025 || d.PublishedAt.Month() != time.January {
		t.Fatalf("PublishedAt = %v, want the time element value", d.PublishedAt)
	}
}

func TestMalformedDateFallsThroughChain(t *testing.T) {
	html := `<html><head>
		<meta property="article:published_time" content="not a date">
	</head><body><time datetime="2025-02-02T12:00:00Z">x</time></body></html>`

	d, err := detailFrom(t, html, "https://news.test/story")
	if err != nil {
		t.Fatalf("fromDocument error: %v", err)
	}
	if d.PublishedAt.Month() != time.February {
		t.Fatalf("PublishedAt = %v, want fallback to time element", d.PublishedAt)
	}
}

func TestDateFromURLPath(t *testing.T) {
	html := `<html><body><p>no date markup at all</p></body></html>`

	d, err := detailFrom(t, html, "https://news.test/2025/03/10/lagos-story/")
	if err != nil {
		t.Fatalf("fromDocument error: %v", err)
	}
	if d.PublishedAt.Year() != 2025 || d.PublishedAt.Month() != time.March || d.PublishedAt.Day() != 10 {
		t.Fatalf("PublishedAt = %v, want 2025-03-10 from URL path", d.PublishedAt)
	}
}

func TestMissingDateIsFatalForCandidate(t *testing.T) {
	html := `<html><head><meta property="og:image" content="https://cdn.test/x.jpg"></head>
		<body><p>rich content, zero date hints</p></body></html>`

	_, err := detailFrom(t, html, "https://news.test/story-without-date")
	if !errors.Is(err, ErrNoDate) {
		t.Fatalf("expected ErrNoDate, got %v", err)
	}
}

func TestSummaryNormalizedAndTruncated(t *testing.T) {
	long := strings.Repeat("lagos nightlife ", 20) // well over 150 runes
	html := `<html><head>
		<meta property="article:published_time" content="2025-03-10T08:00:00Z">
		<meta property="og:description" content="  ` + long + `  ">
	</head><body></body></html>`

	d, err := detailFrom(t, html, "https://news.test/story")
	if err != nil {
		t.Fatalf("fromDocument error: %v", err)
	}
	rs := []rune(d.Summary)
	if len(rs) != summaryMaxRunes+1 { // 150 + ellipsis
		t.Fatalf("summary length = %d runes, want %d", len(rs), summaryMaxRunes+1)
	}
	if rs[len(rs)-1] != '…' {
		t.Fatalf("summary should end with ellipsis: %q", d.Summary)
	}
	if strings.Contains(d.Summary, "  ") {
		t.Fatalf("summary whitespace not collapsed: %q", d.Summary)
	}
}

func TestSummaryFallsBackToArticleParagraph(t *testing.T) {
	html := `<html><head>
		<meta property="article:published_time" content="2025-03-10T08:00:00Z">
	</head><body><article><p>  First   paragraph
	of the piece.  </p></article></body></html>`

	d, err := detailFrom(t, html, "https://news.test/story")
	if err != nil {
		t.Fatalf("fromDocument error: %v", err)
	}
	if d.Summary != "First paragraph of the piece." {
		t.Fatalf("Summary = %q", d.Summary)
	}
}

func TestExtractSendsSpoofedUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`<html><head>
			<meta property="article:published_time" content="2025-03-10T08:00:00Z">
			<meta property="og:image" content="/cover.jpg">
		</head></html>`))
	}))
	defer srv.Close()

	e := New(5*time.Second, "Mozilla/5.0 (test)")
	d, err := e.Extract(context.Background(), srv.URL+"/story")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if gotUA != "Mozilla/5.0 (test)" {
		t.Fatalf("User-Agent = %q, want spoofed value", gotUA)
	}
	if d.ImageURL != srv.URL+"/cover.jpg" {
		t.Fatalf("ImageURL = %q, want resolved against server origin", d.ImageURL)
	}
}

func TestExtractRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	e := New(5*time.Second, "Mozilla/5.0 (test)")
	if _, err := e.Extract(context.Background(), srv.URL+"/gone"); err == nil {
		t.Fatalf("expected error for 404 page")
	}
}
