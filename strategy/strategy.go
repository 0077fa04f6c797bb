// Package strategy models candidate monitoring plans: which fetch engine to
// use and how to extract content from what it returns.
package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/pevans/pagewatch/intent"
)

// Strategy is a candidate execution plan for one watch.
type Strategy struct {
	Engine     Engine
	Extraction Extraction
	Reason     string
	Confidence float64
	Note       string
}

// String renders the strategy as "engine/extraction".
func (s Strategy) String() string {
	return fmt.Sprintf("%s/%s", FormatEngine(s.Engine), FormatExtraction(s.Extraction))
}

// MarshalJSON encodes the engine and extraction in their string forms.
func (s Strategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Engine     string  `json:"engine"`
		Extraction string  `json:"extraction"`
		Reason     string  `json:"reason"`
		Confidence float64 `json:"confidence"`
		Note       string  `json:"note,omitempty"`
	}{
		Engine:     FormatEngine(s.Engine),
		Extraction: FormatExtraction(s.Extraction),
		Reason:     s.Reason,
		Confidence: s.Confidence,
		Note:       s.Note,
	})
}

// Fallback is the strategy used when no candidate list is available at all.
func Fallback() Strategy {
	return Strategy{
		Engine:     HTTP{},
		Extraction: Auto{},
		Reason:     "Generic HTTP fetch with automatic content detection",
		Confidence: 0.5,
	}
}

// defaultTags are the meta tags read for price-like pages when the
// configuration only says "meta".
var defaultTags = []string{
	"og:title",
	"og:price:amount",
	"og:price:currency",
	"product:price:amount",
	"product:price:currency",
	"product:availability",
}

// Defaults returns the built-in candidate list for an intent. The list is
// never empty.
func Defaults(in intent.Intent) []Strategy {
	switch in {
	case intent.Release:
		return []Strategy{
			{Engine: Feed{}, Extraction: FeedItems{}, Reason: "Release feeds are the most stable source of version history", Confidence: 0.9},
			{Engine: HTTP{}, Extraction: Auto{}, Reason: "Fall back to the release page content", Confidence: 0.6},
		}
	case intent.Price:
		return []Strategy{
			{Engine: HTTP{}, Extraction: StructuredData{Type: "Product"}, Reason: "Product structured data usually carries the current price", Confidence: 0.85},
			{Engine: HTTP{}, Extraction: Meta{Tags: append([]string(nil), defaultTags...)}, Reason: "Open Graph product tags often expose the price", Confidence: 0.75},
			{Engine: Browser{}, Extraction: Auto{}, Reason: "Render the page when prices are injected by scripts", Confidence: 0.6, Note: "Slower and more resource intensive"},
		}
	case intent.Stock:
		return []Strategy{
			{Engine: Browser{}, Extraction: Auto{}, Reason: "Availability is commonly rendered client-side", Confidence: 0.75, Note: "Slower and more resource intensive"},
			{Engine: HTTP{}, Extraction: StructuredData{Type: "Product"}, Reason: "Product structured data may include availability", Confidence: 0.7},
		}
	case intent.Jobs:
		return []Strategy{
			{Engine: HTTP{}, Extraction: StructuredData{Type: "JobPosting"}, Reason: "Job boards often publish JobPosting structured data", Confidence: 0.8},
			{Engine: Browser{}, Extraction: Auto{}, Reason: "Render listings that load with scripts", Confidence: 0.65},
		}
	case intent.News:
		return []Strategy{
			{Engine: Feed{}, Extraction: FeedItems{}, Reason: "News sites usually publish a feed", Confidence: 0.85},
			{Engine: HTTP{}, Extraction: Auto{}, Reason: "Extract the main article listing from the page", Confidence: 0.7},
		}
	default:
		return []Strategy{
			{Engine: HTTP{}, Extraction: Auto{}, Reason: "Generic HTTP fetch with automatic content detection", Confidence: 0.7},
			{Engine: Browser{}, Extraction: Auto{}, Reason: "Render the page in case content is script-driven", Confidence: 0.6},
			{Engine: HTTP{}, Extraction: Full{}, Reason: "Track the whole page body", Confidence: 0.4, Note: "Noisy; any change to the page will register"},
		}
	}
}
