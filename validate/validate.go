// Package validate tries candidate strategies against fetched content and
// scores what they extract.
package validate

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pevans/pagewatch/facts"
	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/strategy"
	"github.com/sirupsen/logrus"
)

// GoodEnough ends a fallback search as soon as a result scores this high.
const GoodEnough = 0.85

// NoStrategiesMessage is the error of the result returned for an empty
// candidate list.
const NoStrategiesMessage = "no strategies available"

// Extractor pulls text out of markup. It must not perform I/O.
type Extractor interface {
	Extract(markup string, method strategy.Extraction, pageURL string) (string, error)
}

// Result is the outcome of trying one strategy.
type Result struct {
	Success  bool          `json:"success"`
	Content  string        `json:"content,omitempty"`
	Quality  DataQuality   `json:"quality"`
	Error    string        `json:"error,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Summary renders the result for an operator.
func (r Result) Summary() string {
	if !r.Success {
		if r.Error == "" {
			return "failed"
		}
		return "failed: " + r.Error
	}
	return "ok, " + r.Quality.Summary()
}

// Validator runs extraction and quality scoring.
type Validator struct {
	extractor Extractor
	log       logrus.FieldLogger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the logger used for per-attempt debug output.
func WithLogger(log logrus.FieldLogger) Option {
	return func(v *Validator) {
		v.log = log
	}
}

// New returns a Validator that extracts with x.
func New(x Extractor, opts ...Option) *Validator {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	v := &Validator{extractor: x, log: discard}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// markupFor picks the markup a strategy operates on: JS-rendered markup for
// script-executing engines when available, otherwise the HTTP markup.
func markupFor(s strategy.Strategy, f *facts.PageFacts) string {
	if f == nil {
		return ""
	}
	if strategy.ExecutesScripts(s.Engine) && f.JSMarkup != "" {
		return f.JSMarkup
	}
	return f.Markup
}

// Validate extracts content with s and scores it. Extraction errors and
// poor content are reported in the Result, never as a Go error.
func (v *Validator) Validate(pageURL string, s strategy.Strategy, in intent.Intent, f *facts.PageFacts) Result {
	start := time.Now()

	content, err := v.extractor.Extract(markupFor(s, f), s.Extraction, pageURL)
	if err != nil {
		return Result{
			Error:   fmt.Sprintf("extraction failed: %v", err),
			Elapsed: time.Since(start),
		}
	}

	q := Assess(content, in, s.Extraction)
	res := Result{
		Success: q.Acceptable(),
		Quality: q,
		Elapsed: time.Since(start),
	}

	switch {
	case !q.NotEmpty:
		res.Error = fmt.Sprintf("extracted content too short (%d characters, need %d)",
			utf8.RuneCountInString(strings.TrimSpace(content)), MinContentLength)
	case !q.NotTemplate:
		res.Error = "extracted content looks like a template or placeholder"
	}
	if res.Success {
		res.Content = content
	}

	if !q.HasExpectedType {
		res.Warnings = append(res.Warnings, fmt.Sprintf("content does not look like %s data", in))
	}
	if !q.SelectorFound {
		res.Warnings = append(res.Warnings, "selector matched little or no content")
	}
	if q.StabilityHint < LowStability {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("extraction method may be fragile (stability %.2f)", q.StabilityHint))
	}

	return res
}

// TryStrategiesWithFallback validates each strategy in order, keeping the
// best successful result and stopping early at GoodEnough. When nothing
// succeeds, the first strategy is returned with its failure. An empty list
// yields the generic fallback strategy with a "no strategies available"
// failure.
func (v *Validator) TryStrategiesWithFallback(
	pageURL string,
	list []strategy.Strategy,
	in intent.Intent,
	f *facts.PageFacts,
) (strategy.Strategy, Result) {
	if len(list) == 0 {
		return strategy.Fallback(), Result{Error: NoStrategiesMessage}
	}

	var (
		best       strategy.Strategy
		bestResult Result
		found      bool
		firstFail  Result
	)

	for i, s := range list {
		res := v.Validate(pageURL, s, in, f)
		score := res.Quality.Score()

		v.log.WithFields(logrus.Fields{
			"url":      pageURL,
			"attempt":  i + 1,
			"strategy": s.String(),
			"success":  res.Success,
			"score":    fmt.Sprintf("%.2f", score),
		}).Debug("validated strategy")

		if i == 0 {
			firstFail = res
		}
		if !res.Success {
			continue
		}
		if !found || score > bestResult.Quality.Score() {
			best, bestResult, found = s, res, true
		}
		if score >= GoodEnough {
			break
		}
	}

	if !found {
		return list[0], firstFail
	}
	return best, bestResult
}
