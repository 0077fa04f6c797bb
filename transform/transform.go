// Package transform rewrites URLs of well-known sites into the endpoint
// that is best to watch, such as a repository's release feed.
package transform

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/strategy"
)

// OpKind is the kind of URL rewrite a rule performs.
type OpKind int

const (
	// AppendPath adds Value as a new trailing path segment.
	AppendPath OpKind = iota
	// ReplacePath replaces the whole path with Value. {n} in Value is
	// replaced with the n-th segment of the original path.
	ReplacePath
	// AppendSuffix appends Value directly to the existing path.
	AppendSuffix
)

// Op is a URL rewrite. A "?query" part in Value becomes the query string of
// the result; otherwise the original query is dropped.
type Op struct {
	Kind  OpKind
	Value string
}

// Rule rewrites URLs for one host, path shape and intent.
type Rule struct {
	Host string

	// Path is matched segment by segment; "*" matches any segment and the
	// number of segments must be equal. A nil Path matches every path.
	Path []string

	Intent      intent.Intent
	Op          Op
	Engine      strategy.Engine
	Confidence  float64
	Description string
}

// Result is the outcome of a successful match.
type Result struct {
	URL         *url.URL
	Intent      intent.Intent
	Engine      strategy.Engine
	Confidence  float64
	Description string
}

// Match classifies text into an intent and applies the first matching rule.
func Match(text string, u *url.URL) (*Result, bool) {
	return MatchIntent(intent.Classify(text), u)
}

// MatchIntent applies the first rule in Rules that matches the URL and
// intent.
func MatchIntent(in intent.Intent, u *url.URL) (*Result, bool) {
	return MatchRules(Rules, in, u)
}

// MatchRules applies the first rule in rules that matches the URL and
// intent. Only http and https URLs are considered.
func MatchRules(rules []Rule, in intent.Intent, u *url.URL) (*Result, bool) {
	if u == nil {
		return nil, false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}

	host := strings.ToLower(u.Host)
	segments := pathSegments(u.Path)

	for _, rule := range rules {
		if !rule.matches(host, in, segments) {
			continue
		}
		return &Result{
			URL:         rule.Op.apply(u, segments),
			Intent:      in,
			Engine:      rule.Engine,
			Confidence:  rule.Confidence,
			Description: rule.Description,
		}, true
	}

	return nil, false
}

func (r Rule) matches(host string, in intent.Intent, segments []string) bool {
	if r.Host != host || r.Intent != in {
		return false
	}
	if r.Path == nil {
		return true
	}
	if len(r.Path) != len(segments) {
		return false
	}
	for i, want := range r.Path {
		if want != "*" && want != segments[i] {
			return false
		}
	}
	return true
}

// apply returns a rewritten copy of u.
func (op Op) apply(u *url.URL, segments []string) *url.URL {
	out := *u
	out.User = nil
	out.Fragment = ""
	out.RawFragment = ""
	out.RawQuery = ""
	out.RawPath = ""

	value, query, _ := strings.Cut(op.Value, "?")
	value = expand(value, segments)
	out.RawQuery = expand(query, segments)

	base := "/" + strings.Join(segments, "/")
	switch op.Kind {
	case AppendPath:
		out.Path = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(value, "/")
	case ReplacePath:
		out.Path = "/" + strings.TrimPrefix(value, "/")
	case AppendSuffix:
		out.Path = base + value
	}

	return &out
}

// expand replaces {n} placeholders with path segments. Placeholders without
// a matching segment are left as is.
func expand(s string, segments []string) string {
	if !strings.Contains(s, "{") {
		return s
	}
	for i, seg := range segments {
		s = strings.ReplaceAll(s, "{"+strconv.Itoa(i)+"}", seg)
	}
	return s
}

// pathSegments splits a path into its non-empty segments.
func pathSegments(path string) []string {
	var segments []string
	for seg := range strings.SplitSeq(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
