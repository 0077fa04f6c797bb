package strategy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

var (
	ErrInvalidSelector = errors.New("invalid CSS selector")
	ErrEmptyMetaTags   = errors.New("meta extraction requires at least one tag")
)

// Extraction selects how content is pulled out of fetched markup. The set
// is closed; switch over Auto, Selector, Full, Meta, FeedItems and
// StructuredData.
type Extraction interface {
	isExtraction()
}

// Auto detects the main content of the page.
type Auto struct{}

// Selector extracts the text of the elements matching a CSS selector.
type Selector struct {
	CSS string
}

// Full extracts the whole visible body text.
type Full struct{}

// Meta extracts the content of the named meta tags.
type Meta struct {
	Tags []string
}

// FeedItems formats the entries of a syndication feed.
type FeedItems struct{}

// StructuredData extracts JSON-LD objects, optionally only those of Type.
type StructuredData struct {
	Type string
}

func (Auto) isExtraction()           {}
func (Selector) isExtraction()       {}
func (Full) isExtraction()           {}
func (Meta) isExtraction()           {}
func (FeedItems) isExtraction()      {}
func (StructuredData) isExtraction() {}

// ParseExtraction converts the configuration form of an extraction method
// into an Extraction. Unknown keywords fall back to Auto; a malformed
// selector or empty tag list is an error.
func ParseExtraction(s string) (Extraction, error) {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)

	for _, prefix := range []string{"selector:", "css:"} {
		if strings.HasPrefix(lower, prefix) {
			css := strings.TrimSpace(trimmed[len(prefix):])
			if _, err := cascadia.Compile(css); err != nil {
				return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, css, err)
			}
			return Selector{CSS: css}, nil
		}
	}

	if strings.HasPrefix(lower, "meta:") {
		var tags []string
		for tag := range strings.SplitSeq(trimmed[len("meta:"):], ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		if len(tags) == 0 {
			return nil, ErrEmptyMetaTags
		}
		return Meta{Tags: tags}, nil
	}

	for _, prefix := range []string{"jsonld:", "structured:"} {
		if strings.HasPrefix(lower, prefix) {
			return StructuredData{Type: strings.TrimSpace(trimmed[len(prefix):])}, nil
		}
	}

	switch lower {
	case "full", "body", "full_body":
		return Full{}, nil
	case "meta":
		return Meta{Tags: append([]string(nil), defaultTags...)}, nil
	case "rss", "feed", "feed_items", "items":
		return FeedItems{}, nil
	case "jsonld", "json-ld", "structured", "structured_data", "schema":
		return StructuredData{}, nil
	}

	return Auto{}, nil
}

// FormatExtraction renders an extraction in the form ParseExtraction
// accepts.
func FormatExtraction(x Extraction) string {
	switch x := x.(type) {
	case Auto:
		return "auto"
	case Selector:
		return "selector:" + x.CSS
	case Full:
		return "full"
	case Meta:
		return "meta:" + strings.Join(x.Tags, ",")
	case FeedItems:
		return "feed"
	case StructuredData:
		if x.Type == "" {
			return "jsonld"
		}
		return "jsonld:" + x.Type
	}
	return ""
}
