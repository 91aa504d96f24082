package dedup

import (
	"strings"
	"time"
	"unicode"
)

// Item is one validated candidate flowing through the dedup engine.
type Item struct {
	Title       string
	URL         string
	ImageURL    string
	Summary     string
	Category    string
	Source      string
	PublishedAt time.Time
}

// Outcome reports what Add decided for an item.
type Outcome int

const (
	// Accepted: the item is new and was appended to the batch.
	Accepted Outcome = iota
	// Replaced: the item duplicates an earlier accept but carries an image the
	// earlier one lacks, so it took over that slot.
	Replaced
	// DuplicateURL: exact URL already seen this run or already persisted.
	DuplicateURL
	// DuplicateTitle: fuzzy title match against an accepted item.
	DuplicateTitle
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Replaced:
		return "replaced"
	case DuplicateURL:
		return "duplicate_url"
	case DuplicateTitle:
		return "duplicate_title"
	}
	return "unknown"
}

// Two titles are the same logical article when their shared significant words
// cover at least this fraction of the smaller word set. Containment rather
// than Jaccard, so a short exact subtitle still matches its elaborated form.
const similarityThreshold = 0.70

type accepted struct {
	item  Item
	words map[string]struct{}
}

// State is the explicit per-run dedup state: no hidden globals, so the engine
// is rerunnable in-process and trivially testable. Not safe for concurrent
// use; the pipeline is single-threaded by design.
type State struct {
	existing map[string]struct{}
	seenURLs map[string]struct{}
	accepted []accepted
}

// NewState seeds the engine with the URLs already persisted in the store.
// The map is read, never written; run-local accepts go to a separate set.
func NewState(existing map[string]struct{}) *State {
	if existing == nil {
		existing = map[string]struct{}{}
	}
	return &State{
		existing: existing,
		seenURLs: map[string]struct{}{},
	}
}

// Add runs the checks in cost order: exact URL first, fuzzy title second.
// Accepted URLs and word sets are recorded immediately so later items in the
// same batch are judged against the updated state.
func (s *State) Add(it Item) Outcome {
	if _, ok := s.existing[it.URL]; ok {
		return DuplicateURL
	}
	if _, ok := s.seenURLs[it.URL]; ok {
		return DuplicateURL
	}

	words := significantWords(it.Title)
	// A title with no significant words is never considered similar to
	// anything; collapsing on noise would merge unrelated items.
	if len(words) > 0 {
		for i := range s.accepted {
			prev := &s.accepted[i]
			if len(prev.words) == 0 {
				continue
			}
			if similarity(words, prev.words) < similarityThreshold {
				continue
			}
			if it.ImageURL != "" && prev.item.ImageURL == "" {
				// Richer metadata wins; the slot keeps its position so
				// first-seen order is preserved.
				prev.item = it
				prev.words = words
				s.seenURLs[it.URL] = struct{}{}
				return Replaced
			}
			return DuplicateTitle
		}
	}

	s.seenURLs[it.URL] = struct{}{}
	s.accepted = append(s.accepted, accepted{item: it, words: words})
	return Accepted
}

// Items returns the deduplicated batch in first-seen order.
func (s *State) Items() []Item {
	out := make([]Item, len(s.accepted))
	for i, a := range s.accepted {
		out[i] = a.item
	}
	return out
}

// significantWords normalizes a title (lowercase, punctuation to spaces,
// collapsed whitespace) and keeps only words longer than 3 characters,
// suppressing stopword and connector noise.
func significantWords(title string) map[string]struct{} {
	normalized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, title)

	words := map[string]struct{}{}
	for _, w := range strings.Fields(normalized) {
		if len([]rune(w)) > 3 {
			words[w] = struct{}{}
		}
	}
	return words
}

// similarity is shared-word count over the size of the smaller set.
func similarity(a, b map[string]struct{}) float64 {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	if len(small) == 0 {
		return 0
	}
	shared := 0
	for w := range small {
		if _, ok := large[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(small))
}
