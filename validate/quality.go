package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/strategy"
)

// Quality thresholds.
const (
	MinContentLength  = 100
	MinSelectorLength = 10

	// shortTextLength bounds "loading" text that counts as a placeholder.
	shortTextLength = 50

	// placeholderTextLength bounds content in which a zero price or a
	// tba/tbd marker counts as a placeholder.
	placeholderTextLength = 200

	// LowStability is the stability hint below which a warning is given.
	LowStability = 0.6
)

// DataQuality is the heuristic breakdown of one extraction attempt.
type DataQuality struct {
	NotEmpty        bool    `json:"not_empty"`
	HasExpectedType bool    `json:"has_expected_type"`
	NotTemplate     bool    `json:"not_template"`
	SelectorFound   bool    `json:"selector_found"`
	StabilityHint   float64 `json:"stability_hint"`
}

// Score combines the signals with fixed weights into [0,1].
func (q DataQuality) Score() float64 {
	return 0.4*b2f(q.NotEmpty) +
		0.2*b2f(q.HasExpectedType) +
		0.2*b2f(q.NotTemplate) +
		0.1*b2f(q.SelectorFound) +
		0.1*q.StabilityHint
}

// Acceptable reports whether the content may be used at all.
func (q DataQuality) Acceptable() bool {
	return q.NotEmpty && q.NotTemplate
}

// Summary renders the breakdown for an operator.
func (q DataQuality) Summary() string {
	return fmt.Sprintf("score %.2f: not_empty=%s expected_type=%s not_template=%s selector_found=%s stability=%.2f",
		q.Score(),
		yesNo(q.NotEmpty), yesNo(q.HasExpectedType), yesNo(q.NotTemplate),
		yesNo(q.SelectorFound), q.StabilityHint)
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Assess computes the quality of content extracted with method for the
// given intent.
func Assess(content string, in intent.Intent, method strategy.Extraction) DataQuality {
	trimmed := strings.TrimSpace(content)
	length := utf8.RuneCountInString(trimmed)

	q := DataQuality{
		NotEmpty:      length >= MinContentLength,
		NotTemplate:   !LooksLikeTemplate(trimmed),
		SelectorFound: true,
		StabilityHint: Stability(method),
	}
	q.HasExpectedType = HasExpectedType(trimmed, in, q.NotEmpty)

	if _, ok := method.(strategy.Selector); ok && length < MinSelectorLength {
		q.SelectorFound = false
	}

	return q
}

var (
	currencyPattern = regexp.MustCompile(`[$€£¥₹]\s?\d`)
	moneyPattern    = regexp.MustCompile(`\d+[.,]\d{2}\b`)
	priceWords      = regexp.MustCompile(`(?i)\b(price|cost)\b`)

	releasePattern = regexp.MustCompile(`(?i)\b(v?\d+\.\d+|release|released|version|changelog|tag)\b`)
	jobsPattern    = regexp.MustCompile(`(?i)\b(jobs?|positions?|roles?|careers?|hiring|apply|openings?|salary|full[- ]time|part[- ]time|remote|engineer|manager)\b`)

	templateMarkers = regexp.MustCompile(`\{\{.*?\}\}|\$\{.*?\}`)
	zeroPrice       = regexp.MustCompile(`[$€£¥]\s?0+(?:[.,]0+)?(?:[^\d.,]|$)`)
	shortCodes      = regexp.MustCompile(`(?i)\b(tba|tbd)\b`)
)

// availabilityPhrases satisfy the stock heuristic.
var availabilityPhrases = []string{
	"in stock",
	"out of stock",
	"sold out",
	"available",
	"unavailable",
	"add to cart",
	"add to bag",
	"add to basket",
	"pre-order",
	"preorder",
	"backorder",
	"notify me",
	"instock",
	"outofstock",
}

// placeholderPhrases mark content that is not real data yet.
var placeholderPhrases = []string{
	"lorem ipsum",
	"coming soon",
	"placeholder",
	"[object object]",
}

// HasExpectedType applies the intent-specific content heuristic. News is
// satisfied by length alone, passed in as long.
func HasExpectedType(content string, in intent.Intent, long bool) bool {
	switch in {
	case intent.Price:
		return currencyPattern.MatchString(content) ||
			moneyPattern.MatchString(content) ||
			priceWords.MatchString(content)
	case intent.Stock:
		lower := strings.ToLower(content)
		for _, phrase := range availabilityPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
		return false
	case intent.Release:
		return releasePattern.MatchString(content) || strings.Contains(content, ".")
	case intent.Jobs:
		return jobsPattern.MatchString(content)
	case intent.News:
		return long
	}
	return true
}

// LooksLikeTemplate reports whether content is an unrendered template or a
// placeholder rather than real data.
func LooksLikeTemplate(content string) bool {
	if templateMarkers.MatchString(content) {
		return true
	}

	lower := strings.ToLower(strings.TrimSpace(content))
	length := utf8.RuneCountInString(lower)
	if length < shortTextLength &&
		(strings.Contains(lower, "loading") || strings.Contains(lower, "please wait")) {
		return true
	}
	if length < placeholderTextLength && (zeroPrice.MatchString(lower) || shortCodes.MatchString(lower)) {
		return true
	}

	for _, phrase := range placeholderPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// Stability estimates how resilient an extraction method is to page
// changes.
func Stability(method strategy.Extraction) float64 {
	switch m := method.(type) {
	case strategy.FeedItems:
		return 0.95
	case strategy.StructuredData:
		return 0.90
	case strategy.Meta:
		return 0.85
	case strategy.Auto:
		return 0.70
	case strategy.Full:
		return 0.50
	case strategy.Selector:
		return selectorStability(m.CSS)
	}
	return 0.5
}

var bareTag = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

func selectorStability(css string) float64 {
	css = strings.TrimSpace(css)
	score := 0.7

	if strings.Contains(css, "#") {
		score += 0.15
	}
	if strings.Contains(css, "[data-") {
		score += 0.10
	}
	if strings.Contains(css, ".") {
		score += 0.05
	}
	if len(css) > 50 {
		score -= 0.10
	}
	if bareTag.MatchString(css) {
		score -= 0.20
	}

	return min(max(score, 0), 1)
}
