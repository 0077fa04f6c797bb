// Package extract pulls text out of fetched markup according to a
// strategy's extraction method.
package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/pevans/pagewatch/facts"
	"github.com/pevans/pagewatch/strategy"
)

// DefaultMaxItems bounds how many feed entries are formatted.
const DefaultMaxItems = 20

var ErrNoContent = errors.New("no content found")

// Extractor implements every extraction method. The zero value is ready to
// use.
type Extractor struct {
	// MaxItems bounds the number of feed entries; 0 means DefaultMaxItems.
	MaxItems int
}

// New returns an Extractor with default settings.
func New() *Extractor {
	return &Extractor{MaxItems: DefaultMaxItems}
}

// Extract applies method to markup. A selector that matches nothing yields
// empty text rather than an error, so that quality scoring can judge it.
func (x *Extractor) Extract(markup string, method strategy.Extraction, pageURL string) (string, error) {
	switch m := method.(type) {
	case strategy.Auto:
		return extractAuto(markup, pageURL)
	case strategy.Selector:
		return extractSelector(markup, m.CSS)
	case strategy.Full:
		return facts.VisibleText(markup), nil
	case strategy.Meta:
		return extractMeta(markup, m.Tags)
	case strategy.FeedItems:
		return x.extractFeed(markup)
	case strategy.StructuredData:
		return extractStructuredData(markup, m.Type), nil
	case nil:
		return "", errors.New("no extraction method")
	}
	return "", fmt.Errorf("unsupported extraction method %T", method)
}

// extractAuto finds the main content with readability, falling back to the
// whole body when readability cannot decide.
func extractAuto(markup, pageURL string) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil || parsedURL == nil {
		parsedURL = &url.URL{}
	}

	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(markup), parsedURL)
	if err == nil {
		if text := facts.VisibleText(article.Content); text != "" {
			return text, nil
		}
	}

	if text := facts.VisibleText(markup); text != "" {
		return text, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to detect main content: %w", err)
	}
	return "", ErrNoContent
}

// extractSelector joins the text of every matching element, one per line.
func extractSelector(markup, css string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	var parts []string
	doc.Find(css).Each(func(_ int, s *goquery.Selection) {
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n"), nil
}

// extractMeta renders "tag: content" for each requested tag that is
// present, matching name or property case-insensitively.
func extractMeta(markup string, tags []string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", fmt.Errorf("failed to parse markup: %w", err)
	}

	values := make(map[string]string)
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		content := strings.TrimSpace(s.AttrOr("content", ""))
		for _, attr := range []string{"name", "property", "itemprop"} {
			if key := s.AttrOr(attr, ""); key != "" {
				values[strings.ToLower(strings.TrimSpace(key))] = content
			}
		}
	})

	var lines []string
	for _, tag := range tags {
		if v, ok := values[strings.ToLower(tag)]; ok && v != "" {
			lines = append(lines, tag+": "+v)
		}
	}
	return strings.Join(lines, "\n"), nil
}

// extractFeed formats the newest entries of an RSS, Atom or JSON feed.
func (x *Extractor) extractFeed(markup string) (string, error) {
	feed, err := gofeed.NewParser().ParseString(markup)
	if err != nil {
		return "", fmt.Errorf("failed to parse feed: %w", err)
	}

	limit := x.MaxItems
	if limit <= 0 {
		limit = DefaultMaxItems
	}

	var b strings.Builder
	if feed.Title != "" {
		b.WriteString(feed.Title)
		b.WriteString("\n")
	}
	for i, item := range feed.Items {
		if i >= limit {
			break
		}

		title := strings.TrimSpace(item.Title)
		if title == "" {
			title = "(No title)"
		}
		b.WriteString("- ")
		b.WriteString(title)

		if item.PublishedParsed != nil {
			b.WriteString(" (" + item.PublishedParsed.Format("2006-01-02") + ")")
		} else if item.UpdatedParsed != nil {
			b.WriteString(" (" + item.UpdatedParsed.Format("2006-01-02") + ")")
		}
		b.WriteString("\n")

		if item.Link != "" {
			b.WriteString("  " + item.Link + "\n")
		}
	}

	return strings.TrimSpace(b.String()), nil
}
