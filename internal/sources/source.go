package sources

// Tag describes how a source is scoped, which decides the relevance filter
// applied to its headlines.
type Tag string

const (
	// TagGeneral marks nationwide outlets; headlines must mention Lagos to be
	// relevant to the feed.
	TagGeneral Tag = "general"
	// TagEntertainment marks outlets already scoped to the Lagos scene; any
	// reasonably long headline is admitted.
	TagEntertainment Tag = "entertainment"
)

// Source is one scrape target in the registry.
type Source struct {
	Code     string
	Name     string
	BaseURL  string
	Category string
	Tag      Tag
}

// Candidate is a single (url, title) pair pulled off a listing page. It lives
// only for the duration of an ingestion run.
type Candidate struct {
	SourceName string
	URL        string
	Title      string
	Category   string
}

// DefaultRegistry lists the outlets the feed is built from. Order matters:
// sources are scraped top to bottom and the total candidate cap is shared,
// so earlier entries get first claim on the batch.
func DefaultRegistry() []Source {
	return []Source{
		{Code: "guardian", Name: "The Guardian Nigeria", BaseURL: "https://guardian.ng/category/news/", Category: "news", Tag: TagGeneral},
		{Code: "punch", Name: "Punch Newspapers", BaseURL: "https://punchng.com/topics/metro-plus/", Category: "news", Tag: TagGeneral},
		{Code: "vanguard", Name: "Vanguard News", BaseURL: "https://www.vanguardngr.com/category/national-news/", Category: "news", Tag: TagGeneral},
		{Code: "pulse", Name: "Pulse Nigeria", BaseURL: "https://www.pulse.ng/entertainment", Category: "entertainment", Tag: TagEntertainment},
		{Code: "bellanaija", Name: "BellaNaija", BaseURL: "https://www.bellanaija.com/category/scoop/", Category: "entertainment", Tag: TagEntertainment},
		{Code: "notjustok", Name: "NotJustOk", BaseURL: "https://notjustok.com/news/", Category: "entertainment", Tag: TagEntertainment},
	}
}
