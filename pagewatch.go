// Package pagewatch decides how to monitor a web page: it classifies what
// the user wants to track, recognizes the platform behind the page and
// picks the fetch and extraction strategy that yields usable content.
package pagewatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/pevans/pagewatch/extract"
	"github.com/pevans/pagewatch/facts"
	"github.com/pevans/pagewatch/fetch"
	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/platforms"
	"github.com/pevans/pagewatch/resolver"
	"github.com/pevans/pagewatch/strategy"
	"github.com/pevans/pagewatch/transform"
	"github.com/pevans/pagewatch/validate"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidURL = errors.New("URL must be absolute http or https")
	ErrNoFetcher  = errors.New("no fetcher configured")
)

// thinPageLength is the visible-text length below which a page is worth
// rendering in a browser before analysis.
const thinPageLength = 200

// Engine ties the knowledge base, validator and fetcher together.
type Engine struct {
	kb        *platforms.KnowledgeBase
	fetcher   fetch.Fetcher
	validator *validate.Validator
	extractor validate.Extractor
	render    bool
	log       logrus.FieldLogger
}

// Option configures an Engine.
type Option func(*Engine)

// WithFetcher sets the fetcher used by Preview.
func WithFetcher(f fetch.Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithExtractor replaces the content extractor used during validation.
func WithExtractor(x validate.Extractor) Option {
	return func(e *Engine) {
		e.extractor = x
	}
}

// WithRendering allows Preview to make a second, script-executing fetch.
// The fetcher must then handle the browser engine.
func WithRendering(enabled bool) Option {
	return func(e *Engine) {
		e.render = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an Engine over kb. A nil kb behaves as an empty knowledge
// base.
func New(kb *platforms.KnowledgeBase, opts ...Option) *Engine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	e := &Engine{
		kb:        kb,
		extractor: extract.New(),
		log:       discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.validator = validate.New(e.extractor, validate.WithLogger(e.log))
	return e
}

// KnowledgeBase returns the engine's knowledge base.
func (e *Engine) KnowledgeBase() *platforms.KnowledgeBase {
	return e.kb
}

// Plan is what to fetch for a monitoring request before anything is
// fetched.
type Plan struct {
	SourceURL string
	URL       string
	Intent    intent.Intent
	Engine    strategy.Engine
	Transform *transform.Result
}

// Strategy returns the strategy the plan suggests without looking at the
// page: the transform's engine when one matched, otherwise the intent's
// first default.
func (p *Plan) Strategy() strategy.Strategy {
	if p.Transform != nil {
		var x strategy.Extraction = strategy.Auto{}
		if _, ok := p.Transform.Engine.(strategy.Feed); ok {
			x = strategy.FeedItems{}
		}
		return strategy.Strategy{
			Engine:     p.Transform.Engine,
			Extraction: x,
			Reason:     p.Transform.Description,
			Confidence: p.Transform.Confidence,
		}
	}
	return strategy.Defaults(p.Intent)[0]
}

// MarshalJSON renders the engine by name.
func (p Plan) MarshalJSON() ([]byte, error) {
	type transformJSON struct {
		URL         string  `json:"url"`
		Confidence  float64 `json:"confidence"`
		Description string  `json:"description"`
	}
	out := struct {
		SourceURL string         `json:"source_url"`
		URL       string         `json:"url"`
		Intent    intent.Intent  `json:"intent"`
		Engine    string         `json:"engine"`
		Transform *transformJSON `json:"transform,omitempty"`
	}{
		SourceURL: p.SourceURL,
		URL:       p.URL,
		Intent:    p.Intent,
		Engine:    strategy.FormatEngine(p.Engine),
	}
	if p.Transform != nil {
		out.Transform = &transformJSON{
			URL:         p.Transform.URL.String(),
			Confidence:  p.Transform.Confidence,
			Description: p.Transform.Description,
		}
	}
	return json.Marshal(out)
}

// ParseURL parses an absolute http or https URL. A bare host such as
// "example.com/page" is read as https.
func ParseURL(rawURL string) (*url.URL, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL != "" && !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if (scheme != "http" && scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

// Plan classifies text into an intent and applies the first matching URL
// transform.
func (e *Engine) Plan(rawURL, text string) (*Plan, error) {
	return e.PlanIntent(rawURL, intent.Classify(text))
}

// PlanIntent is Plan with an already-known intent.
func (e *Engine) PlanIntent(rawURL string, in intent.Intent) (*Plan, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		SourceURL: u.String(),
		URL:       u.String(),
		Intent:    in,
		Engine:    strategy.HTTP{},
	}

	if tr, ok := transform.MatchIntent(in, u); ok {
		p.URL = tr.URL.String()
		p.Engine = tr.Engine
		p.Transform = tr
		e.log.WithFields(logrus.Fields{
			"url":       p.SourceURL,
			"target":    p.URL,
			"transform": tr.Description,
		}).Debug("applied URL transform")
	}

	return p, nil
}

// Analysis is the full outcome of analyzing one page.
type Analysis struct {
	URL          string                  `json:"url"`
	Target       string                  `json:"target"`
	Intent       intent.Intent           `json:"intent"`
	Plan         *Plan                   `json:"plan,omitempty"`
	Facts        *facts.PageFacts        `json:"facts"`
	Matches      []platforms.Match       `json:"matches"`
	Platform     string                  `json:"platform,omitempty"`
	FromPlatform bool                    `json:"from_platform"`
	Strategies   []strategy.Strategy     `json:"strategies"`
	Chosen       strategy.Strategy       `json:"chosen"`
	Result       validate.Result         `json:"result"`
	AntiPatterns []platforms.AntiPattern `json:"anti_patterns,omitempty"`
	Warnings     []string                `json:"warnings,omitempty"`
}

// Analyze scores the page against the knowledge base, resolves candidate
// strategies for the top platform and validates them against the page. It
// performs no I/O.
func (e *Engine) Analyze(pageURL string, in intent.Intent, f *facts.PageFacts) *Analysis {
	return e.analyze(pageURL, in, f, nil)
}

// analyze is Analyze with extra candidates tried ahead of the resolved
// list.
func (e *Engine) analyze(pageURL string, in intent.Intent, f *facts.PageFacts, lead []strategy.Strategy) *Analysis {
	if f == nil {
		f = facts.Extract(facts.Input{URL: pageURL, FinalURL: pageURL})
	}

	a := &Analysis{
		URL:     pageURL,
		Target:  pageURL,
		Intent:  in,
		Facts:   f,
		Matches: platforms.Score(f, e.kb),
	}

	if len(a.Matches) > 0 {
		a.Platform = a.Matches[0].PlatformID
	}
	a.FromPlatform = resolver.FromPlatform(e.kb, a.Platform, in)
	a.Strategies = append(append([]strategy.Strategy(nil), lead...), resolver.Resolve(e.kb, a.Platform, in)...)

	if def, ok := e.kb.Get(a.Platform); ok {
		a.AntiPatterns = def.CheckAntiPatterns(f.AllMarkup())
		for _, ap := range a.AntiPatterns {
			a.Warnings = append(a.Warnings, fmt.Sprintf("%s: %s", ap.Result, ap.Message))
		}
		if cfg, ok := def.Intents[in]; ok && cfg.MustHaveVariant {
			msg := fmt.Sprintf("%s pages need a specific variant for %s monitoring", def.Name, in)
			if cfg.VariantPattern != "" {
				msg += fmt.Sprintf(" (URL should match %s)", cfg.VariantPattern)
			}
			a.Warnings = append(a.Warnings, msg)
		}
	}

	if f.HasBotProtection {
		a.Warnings = append(a.Warnings, "page shows bot protection markers; content may be a challenge page")
	}
	if f.IsSPA && f.JSMarkup == "" {
		a.Warnings = append(a.Warnings, "page looks like a single-page app but no rendered markup was captured")
	}
	if len(f.Feeds) > 0 && (in == intent.Release || in == intent.News) {
		a.Warnings = append(a.Warnings, fmt.Sprintf("page advertises a %s feed at %s", f.Feeds[0].Kind, f.Feeds[0].URL))
	}

	a.Chosen, a.Result = e.validator.TryStrategiesWithFallback(pageURL, a.Strategies, in, f)

	e.log.WithFields(logrus.Fields{
		"url":      pageURL,
		"intent":   in,
		"platform": a.Platform,
		"strategy": a.Chosen.String(),
		"success":  a.Result.Success,
	}).Info("analyzed page")

	return a
}

// Preview plans, fetches and analyzes a page. The page is fetched once over
// HTTP; a second browser fetch is made when rendering is enabled and the
// plan asks for a browser or the page looks script-driven. A feed the page
// advertises is fetched too when a feed strategy is among the candidates.
func (e *Engine) Preview(ctx context.Context, rawURL, text string) (*Analysis, error) {
	p, err := e.Plan(rawURL, text)
	if err != nil {
		return nil, err
	}
	return e.PreviewPlan(ctx, p)
}

// PreviewPlan is Preview for an existing plan.
func (e *Engine) PreviewPlan(ctx context.Context, p *Plan) (*Analysis, error) {
	if e.fetcher == nil {
		return nil, ErrNoFetcher
	}

	first := p.Engine
	if strategy.ExecutesScripts(first) {
		first = strategy.HTTP{}
	}

	page, err := e.fetcher.Fetch(ctx, p.URL, first)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", p.URL, err)
	}

	in := facts.Input{
		URL:      p.URL,
		FinalURL: page.FinalURL,
		Markup:   page.Markup,
		Headers:  page.Headers,
	}
	f := facts.Extract(in)

	_, isFeed := p.Engine.(strategy.Feed)

	var renderErr error
	if e.render && !isFeed && (strategy.ExecutesScripts(p.Engine) || f.IsSPA || f.ContentLength < thinPageLength) {
		rendered, err := e.fetcher.Fetch(ctx, p.URL, strategy.Browser{})
		if err != nil {
			renderErr = err
			e.log.WithError(err).WithField("url", p.URL).Warn("browser fetch failed")
		} else {
			in.JSMarkup = rendered.Markup
			in.JSText = rendered.Text
			f = facts.Extract(in)
		}
	}

	var lead []strategy.Strategy
	if p.Transform != nil {
		lead = append(lead, p.Strategy())
	}

	a := e.analyze(p.URL, p.Intent, f, lead)
	a.Plan = p
	if renderErr != nil {
		a.Warnings = append(a.Warnings, fmt.Sprintf("browser fetch failed: %v", renderErr))
	}
	if p.Transform == nil && len(f.Feeds) > 0 && hasFeedCandidate(a.Strategies) {
		e.tryAdvertisedFeed(ctx, a, f.Feeds[0])
	}
	return a, nil
}

func hasFeedCandidate(list []strategy.Strategy) bool {
	for _, s := range list {
		if _, ok := s.Engine.(strategy.Feed); ok {
			return true
		}
	}
	return false
}

// tryAdvertisedFeed fetches a feed the page links to and validates it. A
// successful feed replaces the chosen strategy unless the page itself
// scored higher, and becomes the analysis target.
func (e *Engine) tryAdvertisedFeed(ctx context.Context, a *Analysis, feed facts.Feed) {
	st := strategy.Strategy{
		Engine:     strategy.Feed{},
		Extraction: strategy.FeedItems{},
		Reason:     fmt.Sprintf("Page advertises a %s feed", feed.Kind),
		Confidence: 0.9,
		Note:       feed.URL,
	}
	a.Strategies = append([]strategy.Strategy{st}, a.Strategies...)

	page, err := e.fetcher.Fetch(ctx, feed.URL, strategy.Feed{})
	if err != nil {
		e.log.WithError(err).WithField("feed", feed.URL).Warn("feed fetch failed")
		a.Warnings = append(a.Warnings, fmt.Sprintf("feed fetch failed: %v", err))
		return
	}

	ff := facts.Extract(facts.Input{
		URL:      feed.URL,
		FinalURL: page.FinalURL,
		Markup:   page.Markup,
		Headers:  page.Headers,
	})
	res := e.validator.Validate(feed.URL, st, a.Intent, ff)
	if !res.Success {
		a.Warnings = append(a.Warnings, fmt.Sprintf("advertised feed %s: %s", feed.URL, res.Summary()))
		return
	}
	if a.Result.Success && a.Result.Quality.Score() > res.Quality.Score() {
		return
	}

	e.log.WithFields(logrus.Fields{
		"url":  a.URL,
		"feed": feed.URL,
	}).Info("using advertised feed")

	a.Chosen = st
	a.Result = res
	a.Target = feed.URL
}

// Check fetches rawURL with the engine of s and validates the content, as
// a scheduled check of a saved watch would. Fetch failures are errors;
// poor content is reported in the Result.
func (e *Engine) Check(ctx context.Context, rawURL string, in intent.Intent, s strategy.Strategy) (validate.Result, error) {
	if e.fetcher == nil {
		return validate.Result{}, ErrNoFetcher
	}

	page, err := e.fetcher.Fetch(ctx, rawURL, s.Engine)
	if err != nil {
		return validate.Result{}, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	input := facts.Input{
		URL:      rawURL,
		FinalURL: page.FinalURL,
		Markup:   page.Markup,
		Headers:  page.Headers,
	}
	if strategy.ExecutesScripts(s.Engine) {
		input.JSMarkup = page.Markup
		input.JSText = page.Text
	}

	res := e.validator.Validate(rawURL, s, in, facts.Extract(input))
	e.log.WithFields(logrus.Fields{
		"url":      rawURL,
		"strategy": s.String(),
		"success":  res.Success,
	}).Info("checked page")
	return res, nil
}
