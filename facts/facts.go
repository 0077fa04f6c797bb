// Package facts derives a structured feature record from fetched page
// markup. Nothing here performs I/O: every value is computed from the
// strings handed in.
package facts

import (
	"encoding/json"
	"net/url"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/titanous/json5"
	"golang.org/x/net/html"
)

// Input carries everything known about one fetch.
type Input struct {
	URL      string
	FinalURL string
	Markup   string
	Headers  map[string]string

	// JSMarkup and JSText come from an optional script-executing fetch.
	// When only JSMarkup is given, JSText is derived from it.
	JSMarkup string
	JSText   string
}

// LinkTag is one <link> element.
type LinkTag struct {
	Rel   string `json:"rel"`
	Href  string `json:"href"`
	Type  string `json:"type,omitempty"`
	Title string `json:"title,omitempty"`
}

// Feed is a discovered syndication feed.
type Feed struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Kind   string `json:"kind"`   // "rss", "atom" or "json"
	Method string `json:"method"` // "link-alternate" or "anchor"
}

// PageFacts is the feature record of one fetched page.
type PageFacts struct {
	URL                 string            `json:"url"`
	FinalURL            string            `json:"final_url"`
	Markup              string            `json:"-"`
	Headers             map[string]string `json:"headers,omitempty"`
	Scripts             []string          `json:"scripts,omitempty"`
	Stylesheets         []string          `json:"stylesheets,omitempty"`
	Links               []LinkTag         `json:"links,omitempty"`
	Meta                map[string]string `json:"meta,omitempty"`
	StructuredData      []any             `json:"structured_data,omitempty"`
	StructuredDataTypes []string          `json:"structured_data_types,omitempty"`
	Feeds               []Feed            `json:"feeds,omitempty"`
	Frameworks          []string          `json:"frameworks,omitempty"`
	JSMarkup            string            `json:"-"`
	JSText              string            `json:"-"`
	IsSPA               bool              `json:"is_spa"`
	HasBotProtection    bool              `json:"has_bot_protection"`
	ContentLength       int               `json:"content_length"`
	Title               string            `json:"title,omitempty"`
	Generator           string            `json:"generator,omitempty"`
}

// Host returns the lowercased hostname of the final URL, falling back to the
// source URL.
func (f *PageFacts) Host() string {
	for _, raw := range []string{f.FinalURL, f.URL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
			return strings.ToLower(u.Hostname())
		}
	}
	return ""
}

// AllMarkup returns the HTTP markup followed by the JS-rendered markup, if
// any.
func (f *PageFacts) AllMarkup() string {
	if f.JSMarkup == "" {
		return f.Markup
	}
	return f.Markup + "\n" + f.JSMarkup
}

// Extract builds PageFacts from one fetch. Malformed markup yields empty
// collections rather than an error.
func Extract(in Input) *PageFacts {
	f := &PageFacts{
		URL:      in.URL,
		FinalURL: in.FinalURL,
		Markup:   in.Markup,
		JSMarkup: in.JSMarkup,
		JSText:   in.JSText,
		Meta:     make(map[string]string),
	}
	if f.FinalURL == "" {
		f.FinalURL = in.URL
	}
	if len(in.Headers) > 0 {
		f.Headers = make(map[string]string, len(in.Headers))
		for k, v := range in.Headers {
			f.Headers[k] = v
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in.Markup))
	if err == nil {
		collectTags(f, doc)
		collectStructuredData(f, doc)
		collectFeeds(f, doc)
	}

	f.Frameworks = findFrameworks(in.Markup, f.Scripts)
	f.HasBotProtection = detectBotProtection(in.Markup, in.Headers)

	httpText := ""
	if doc != nil {
		httpText = visibleText(doc)
	}
	f.ContentLength = utf8.RuneCountInString(httpText)

	if f.JSText == "" && in.JSMarkup != "" {
		if jsDoc, err := goquery.NewDocumentFromReader(strings.NewReader(in.JSMarkup)); err == nil {
			f.JSText = visibleText(jsDoc)
		}
	}

	f.IsSPA = detectSPA(f.Frameworks, f.ContentLength, utf8.RuneCountInString(collapse(f.JSText)))

	return f
}

// collectTags records scripts, stylesheets, links, meta tags and the title.
func collectTags(f *PageFacts, doc *goquery.Document) {
	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src := strings.TrimSpace(s.AttrOr("src", "")); src != "" {
			f.Scripts = append(f.Scripts, src)
		}
	})

	doc.Find("link").Each(func(_ int, s *goquery.Selection) {
		link := LinkTag{
			Rel:   strings.TrimSpace(s.AttrOr("rel", "")),
			Href:  strings.TrimSpace(s.AttrOr("href", "")),
			Type:  strings.TrimSpace(s.AttrOr("type", "")),
			Title: strings.TrimSpace(s.AttrOr("title", "")),
		}
		f.Links = append(f.Links, link)

		if hasRel(link.Rel, "stylesheet") && link.Href != "" {
			f.Stylesheets = append(f.Stylesheets, link.Href)
		}
	})

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := s.AttrOr("name", "")
		if key == "" {
			key = s.AttrOr("property", "")
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return
		}

		content := strings.TrimSpace(s.AttrOr("content", ""))
		f.Meta[key] = content
		if strings.EqualFold(key, "generator") {
			f.Generator = content
		}
	})

	f.Title = collapse(doc.Find("title").First().Text())
}

// collectStructuredData parses every JSON-LD block. Blocks that are not
// valid JSON are retried as JSON5 and skipped if that fails too.
func collectStructuredData(f *PageFacts, doc *goquery.Document) {
	types := make(map[string]bool)

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if !IsJSONLD(s.AttrOr("type", "")) {
			return
		}

		payload, ok := ParseJSONLD(s.Text())
		if !ok {
			return
		}

		f.StructuredData = append(f.StructuredData, payload)
		collectTypes(payload, types)
	})

	for t := range types {
		f.StructuredDataTypes = append(f.StructuredDataTypes, t)
	}
	slices.Sort(f.StructuredDataTypes)
}

// IsJSONLD reports whether a script type attribute denotes JSON-LD.
func IsJSONLD(scriptType string) bool {
	mime, _, _ := strings.Cut(scriptType, ";")
	return strings.EqualFold(strings.TrimSpace(mime), "application/ld+json")
}

// ParseJSONLD decodes one JSON-LD payload, tolerating the JSON5 relaxations
// (comments, trailing commas) that hand-written pages tend to contain.
func ParseJSONLD(text string) (any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}

	var payload any
	if err := json.Unmarshal([]byte(text), &payload); err == nil {
		return payload, true
	}
	if err := json5.Unmarshal([]byte(text), &payload); err == nil {
		return payload, true
	}
	return nil, false
}

// collectTypes gathers every @type value, descending into @graph and any
// nested object.
func collectTypes(v any, types map[string]bool) {
	switch v := v.(type) {
	case map[string]any:
		for _, t := range TypeNames(v) {
			types[t] = true
		}
		for _, child := range v {
			collectTypes(child, types)
		}
	case []any:
		for _, child := range v {
			collectTypes(child, types)
		}
	}
}

// TypeNames returns the @type values declared directly on a JSON-LD object.
func TypeNames(obj map[string]any) []string {
	var names []string
	switch t := obj["@type"].(type) {
	case string:
		names = append(names, t)
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	}
	return names
}

// collectFeeds discovers feeds from <link rel="alternate"> first and then
// from anchors that look like feed URLs.
func collectFeeds(f *PageFacts, doc *goquery.Document) {
	seen := make(map[string]bool)

	for _, link := range f.Links {
		if !hasRel(link.Rel, "alternate") || link.Href == "" {
			continue
		}
		mime, _, _ := strings.Cut(strings.ToLower(link.Type), ";")
		kind, ok := feedTypes[strings.TrimSpace(mime)]
		if !ok {
			continue
		}

		abs := resolve(f.FinalURL, link.Href)
		if seen[abs] {
			continue
		}
		seen[abs] = true
		f.Feeds = append(f.Feeds, Feed{
			URL:    abs,
			Title:  link.Title,
			Kind:   kind,
			Method: "link-alternate",
		})
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		kind, ok := anchorFeedKind(href)
		if !ok {
			return
		}

		abs := resolve(f.FinalURL, href)
		if seen[abs] {
			return
		}
		seen[abs] = true
		f.Feeds = append(f.Feeds, Feed{
			URL:    abs,
			Title:  collapse(s.Text()),
			Kind:   kind,
			Method: "anchor",
		})
	})
}

// anchorFeedKind guesses whether an anchor href is a feed, and which kind.
func anchorFeedKind(href string) (string, bool) {
	u, err := url.Parse(href)
	if err != nil || href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	path := strings.ToLower(u.Path)

	for _, suffix := range feedSuffixes {
		if strings.HasSuffix(path, suffix) {
			if strings.Contains(path, "atom") {
				return "atom", true
			}
			return "rss", true
		}
	}
	return "", false
}

// resolve joins href onto base. Unparseable input is returned unchanged.
func resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(ref).String()
}

// hasRel reports whether a space-separated rel attribute contains want.
func hasRel(rel, want string) bool {
	for _, r := range strings.Fields(rel) {
		if strings.EqualFold(r, want) {
			return true
		}
	}
	return false
}

// findFrameworks returns the framework markers present in the markup or in
// any script URL, in marker-list order.
func findFrameworks(markup string, scripts []string) []string {
	var found []string
	for _, marker := range frameworkMarkers {
		if strings.Contains(markup, marker) {
			found = append(found, marker)
			continue
		}
		for _, src := range scripts {
			if strings.Contains(src, marker) {
				found = append(found, marker)
				break
			}
		}
	}
	return found
}

// detectBotProtection looks for challenge-page markers in the markup and for
// the Cloudflare mitigation header.
func detectBotProtection(markup string, headers map[string]string) bool {
	lower := strings.ToLower(markup)
	for _, marker := range botProtectionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	for k := range headers {
		if strings.EqualFold(k, "cf-mitigated") {
			return true
		}
	}
	return false
}

// detectSPA decides whether the page depends on scripts for its content.
func detectSPA(frameworks []string, httpLen, jsLen int) bool {
	if len(frameworks) > 0 {
		return true
	}
	if jsLen > 2*httpLen && jsLen >= spaMinJSText {
		return true
	}
	return httpLen < spaTinyHTTPText && jsLen >= spaSubstantialJSText
}

// visibleText returns the body text with hidden elements skipped and
// whitespace collapsed.
func visibleText(doc *goquery.Document) string {
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	for _, n := range root.Nodes {
		writeText(&b, n)
	}
	return collapse(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	case html.ElementNode:
		if hiddenElements[n.Data] {
			return
		}
	case html.CommentNode:
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
}

// collapse trims s and folds every whitespace run into one space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// VisibleText parses markup and returns its visible body text.
func VisibleText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return visibleText(doc)
}
