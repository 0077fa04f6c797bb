// Package intent defines the coarse monitoring goals a watch can have and
// classifies free-text descriptions into them.
package intent

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
)

// Intent is one of the six monitoring goals.
type Intent string

const (
	Release Intent = "release"
	Price   Intent = "price"
	Stock   Intent = "stock"
	Jobs    Intent = "jobs"
	News    Intent = "news"
	Generic Intent = "generic"
)

// All lists every intent in classification priority order, with Generic
// last.
var All = []Intent{Release, Price, Stock, Jobs, News, Generic}

// keywords maps each intent to the words that select it. Entries containing
// a space are matched as phrases; everything else must match a whole word,
// allowing one of the inflection suffixes. The order of classification is
// fixed by All, not by this map.
var keywords = map[Intent][]string{
	Release: {
		"release", "releases", "version", "versions", "changelog", "tag",
		"tags", "update", "updates", "new version", "semver",
	},
	Price: {
		"price", "prices", "pricing", "cost", "costs", "cheaper", "discount",
		"sale", "deal", "deals", "msrp", "price drop",
	},
	Stock: {
		"stock", "restock", "restocked", "availability", "available",
		"inventory", "sold out", "back in stock", "in stock",
	},
	Jobs: {
		"job", "jobs", "career", "careers", "hire", "hiring", "opening", "openings",
		"position", "positions", "vacancy", "vacancies", "role", "roles",
	},
	News: {
		"news", "blog", "article", "articles", "post", "posts", "headline",
		"headlines", "press", "announcement", "announcements",
	},
}

// inflections are the suffixes a word may add to a keyword and still
// match it ("released", "stocks", "priced", "updated").
var inflections = []string{"s", "es", "d", "ed", "ing", "er", "ers"}

// matchesWord reports whether word is kw or kw plus an inflection.
func matchesWord(word, kw string) bool {
	rest, ok := strings.CutPrefix(word, kw)
	if !ok {
		return false
	}
	return rest == "" || slices.Contains(inflections, rest)
}

// Classify maps a free-text description onto an intent. Matching is
// case-insensitive; the first intent in priority order with any keyword hit
// wins, and text matching nothing is Generic.
func Classify(text string) Intent {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	for _, in := range All {
		for _, kw := range keywords[in] {
			if strings.Contains(kw, " ") {
				if strings.Contains(lower, kw) {
					return in
				}
				continue
			}
			for _, w := range words {
				if matchesWord(w, kw) {
					return in
				}
			}
		}
	}

	return Generic
}

// Parse converts a canonical intent name into an Intent.
func Parse(s string) (Intent, error) {
	in := Intent(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All {
		if in == known {
			return in, nil
		}
	}
	return "", fmt.Errorf("unknown intent: %q", s)
}

// intervals are the default check intervals per intent.
var intervals = map[Intent]time.Duration{
	Release: 6 * time.Hour,
	Price:   4 * time.Hour,
	Stock:   30 * time.Minute,
	Jobs:    12 * time.Hour,
	News:    time.Hour,
	Generic: 24 * time.Hour,
}

// DefaultInterval returns the preset check interval for an intent.
func DefaultInterval(in Intent) time.Duration {
	if d, ok := intervals[in]; ok {
		return d
	}
	return intervals[Generic]
}
