package validate

import (
	"strings"
	"time"
)

// placeholderTokens mark sandbox/stub links that scrapers pick up from page
// templates. Any URL containing one is never worth a network call.
var placeholderTokens = []string{
	"example.com",
	"localhost",
	"test.com",
	"placeholder",
}

// ValidURL reports whether a candidate link is worth following. It runs twice
// per candidate: once before the detail fetch to save the network call, and
// again right before persistence as a final gate.
func ValidURL(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" || s == "#" || s == "about:blank" {
		return false
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "javascript:") {
		return false
	}
	for _, token := range placeholderTokens {
		if strings.Contains(lower, token) {
			return false
		}
	}
	return true
}

// DateStatus classifies a resolved publish date against the freshness policy.
type DateStatus int

const (
	DateOK DateStatus = iota
	// DateFuture: clock skew or a bad parse; the item is invalid.
	DateFuture
	// DateTooOld: beyond the long-horizon bound; treated as a parse failure
	// rather than a legitimately ancient article.
	DateTooOld
	// DateStale: parsed fine but older than the freshness window; the item is
	// skipped because only recent content is shown.
	DateStale
)

func (s DateStatus) String() string {
	switch s {
	case DateOK:
		return "ok"
	case DateFuture:
		return "future"
	case DateTooOld:
		return "too_old"
	case DateStale:
		return "stale"
	}
	return "unknown"
}

// saneAge is the long-horizon bound: anything older almost certainly came out
// of a misparsed date string.
const saneAge = 365 * 24 * time.Hour

// CheckDate applies the freshness policy to an already-extracted date.
// Extraction and policy are deliberately separate stages so the window can
// change without touching parser code.
func CheckDate(published, now time.Time, window time.Duration) DateStatus {
	if published.After(now) {
		return DateFuture
	}
	age := now.Sub(published)
	if age > saneAge {
		return DateTooOld
	}
	if age > window {
		return DateStale
	}
	return DateOK
}
