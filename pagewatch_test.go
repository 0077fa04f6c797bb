package pagewatch

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/pevans/pagewatch/facts"
	"github.com/pevans/pagewatch/fetch"
	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/platforms"
	"github.com/pevans/pagewatch/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubFetcher serves canned pages keyed by engine name and URL.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]*fetch.Page
	errs  map[string]error
	calls []string
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages: make(map[string]*fetch.Page),
		errs:  make(map[string]error),
	}
}

func (s *stubFetcher) set(engine strategy.Engine, url, markup string) {
	s.pages[strategy.FormatEngine(engine)+" "+url] = &fetch.Page{
		URL:        url,
		FinalURL:   url,
		StatusCode: 200,
		Markup:     markup,
		Text:       facts.VisibleText(markup),
		Headers:    map[string]string{},
	}
}

func (s *stubFetcher) Fetch(_ context.Context, url string, engine strategy.Engine) (*fetch.Page, error) {
	key := strategy.FormatEngine(engine) + " " + url

	s.mu.Lock()
	s.calls = append(s.calls, key)
	s.mu.Unlock()

	if err, ok := s.errs[key]; ok {
		return nil, err
	}
	if page, ok := s.pages[key]; ok {
		return page, nil
	}
	return nil, errors.New("no stub for " + key)
}

func defaultKB(t *testing.T) *platforms.KnowledgeBase {
	t.Helper()
	kb, err := platforms.Default()
	require.NoError(t, err)
	return kb
}

const shopifyProduct = `<!doctype html>
<html><head>
<title>Trail Runner</title>
<script src="https://cdn.shopify.com/s/files/theme.js"></script>
<script>Shopify.theme = {"name": "Dawn"};</script>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Product",
  "name": "Trail Runner Shoe",
  "description": "A lightweight trail running shoe with a grippy outsole and a breathable mesh upper for long days out.",
  "offers": {"@type": "Offer", "price": "89.00", "priceCurrency": "USD", "availability": "https://schema.org/InStock"}
}
</script>
</head>
<body><div class="shopify-section"><h1>Trail Runner Shoe</h1></div></body></html>`

const releasesAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Release notes from widget</title>
  <entry>
    <title>v1.4.0</title>
    <link rel="alternate" href="https://github.com/acme/widget/releases/tag/v1.4.0"/>
    <updated>2026-09-01T10:00:00Z</updated>
  </entry>
  <entry>
    <title>v1.3.2</title>
    <link rel="alternate" href="https://github.com/acme/widget/releases/tag/v1.3.2"/>
    <updated>2026-08-12T10:00:00Z</updated>
  </entry>
  <entry>
    <title>v1.3.1</title>
    <link rel="alternate" href="https://github.com/acme/widget/releases/tag/v1.3.1"/>
    <updated>2026-07-30T10:00:00Z</updated>
  </entry>
</feed>`

// TestPlan_GitHubReleases verifies release requests for a repository are
// redirected to its Atom feed
func TestPlan_GitHubReleases(t *testing.T) {
	e := New(defaultKB(t))

	p, err := e.Plan("https://github.com/acme/widget", "tell me about new releases")
	require.NoError(t, err)

	assert.Equal(t, intent.Release, p.Intent)
	assert.Equal(t, "https://github.com/acme/widget", p.SourceURL)
	assert.Equal(t, "https://github.com/acme/widget/releases.atom", p.URL)
	assert.Equal(t, strategy.Feed{}, p.Engine)
	require.NotNil(t, p.Transform)

	st := p.Strategy()
	assert.Equal(t, strategy.Feed{}, st.Engine)
	assert.Equal(t, strategy.FeedItems{}, st.Extraction)
	assert.InDelta(t, 0.95, st.Confidence, 1e-9)
}

// TestPlan_NoTransform verifies plain pages keep their URL and use HTTP
func TestPlan_NoTransform(t *testing.T) {
	e := New(defaultKB(t))

	p, err := e.Plan("example.com/pricing", "track the price")
	require.NoError(t, err)

	assert.Equal(t, intent.Price, p.Intent)
	assert.Equal(t, "https://example.com/pricing", p.URL)
	assert.Equal(t, strategy.HTTP{}, p.Engine)
	assert.Nil(t, p.Transform)
	assert.Equal(t, strategy.Defaults(intent.Price)[0].Extraction, p.Strategy().Extraction)
}

// TestPlan_InvalidURL verifies non-web URLs are rejected
func TestPlan_InvalidURL(t *testing.T) {
	e := New(nil)

	for _, raw := range []string{"", "ftp://example.com/file", "https://", "http://%zz"} {
		_, err := e.Plan(raw, "anything")
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

// TestPlan_MarshalJSON verifies the engine is rendered by name
func TestPlan_MarshalJSON(t *testing.T) {
	e := New(defaultKB(t))

	p, err := e.Plan("https://github.com/acme/widget", "new releases")
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "feed", out["engine"])
	assert.Equal(t, "release", out["intent"])
	transform, ok := out["transform"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://github.com/acme/widget/releases.atom", transform["url"])
}

// TestAnalyze_ShopifyProduct verifies platform detection, strategy choice
// and variant warnings for a product page
func TestAnalyze_ShopifyProduct(t *testing.T) {
	e := New(defaultKB(t))
	url := "https://shop.example.com/products/trail-runner"
	f := facts.Extract(facts.Input{URL: url, FinalURL: url, Markup: shopifyProduct})

	a := e.Analyze(url, intent.Price, f)

	require.NotEmpty(t, a.Matches)
	assert.Equal(t, "shopify", a.Platform)
	assert.True(t, a.FromPlatform)
	assert.Equal(t, strategy.StructuredData{Type: "Product"}, a.Chosen.Extraction)
	assert.True(t, a.Result.Success, a.Result.Summary())
	assert.Contains(t, a.Result.Content, "89.00")

	var variantWarning bool
	for _, w := range a.Warnings {
		if assert.NotEmpty(t, w) && strings.Contains(w, "variant") {
			variantWarning = true
		}
	}
	assert.True(t, variantWarning, "expected a variant warning in %v", a.Warnings)
}

// TestAnalyze_NoKnowledgeBase verifies intent defaults are used when no
// platform matches
func TestAnalyze_NoKnowledgeBase(t *testing.T) {
	e := New(nil)
	url := "https://shop.example.com/products/trail-runner"
	f := facts.Extract(facts.Input{URL: url, FinalURL: url, Markup: shopifyProduct})

	a := e.Analyze(url, intent.Price, f)

	assert.Empty(t, a.Matches)
	assert.Empty(t, a.Platform)
	assert.False(t, a.FromPlatform)
	assert.Equal(t, strategy.Defaults(intent.Price), a.Strategies)
	assert.Equal(t, strategy.StructuredData{Type: "Product"}, a.Chosen.Extraction)
}

// TestAnalyze_AntiPatterns verifies known block pages are flagged
func TestAnalyze_AntiPatterns(t *testing.T) {
	e := New(defaultKB(t))
	url := "https://www.amazon.com/dp/B000000000"
	markup := `<html><body><form action="/errors/validateCaptcha">Type the characters you see</form></body></html>`
	f := facts.Extract(facts.Input{URL: url, FinalURL: url, Markup: markup})

	a := e.Analyze(url, intent.Price, f)

	assert.Equal(t, "amazon", a.Platform)
	require.Len(t, a.AntiPatterns, 1)
	assert.Equal(t, "bot_blocked", a.AntiPatterns[0].Result)
	assert.Contains(t, a.Warnings, "bot_blocked: Amazon requires a CAPTCHA")
	assert.False(t, a.Result.Success)
}

// TestAnalyze_NilFacts verifies analysis degrades to the fallback failure
func TestAnalyze_NilFacts(t *testing.T) {
	e := New(defaultKB(t))

	a := e.Analyze("https://example.com", intent.Generic, nil)

	require.NotNil(t, a.Facts)
	assert.False(t, a.Result.Success)
	assert.Equal(t, a.Strategies[0].String(), a.Chosen.String())
}

// TestPreview_GitHubReleaseFeed verifies the transformed feed is fetched and
// chosen
func TestPreview_GitHubReleaseFeed(t *testing.T) {
	stub := newStubFetcher()
	stub.set(strategy.Feed{}, "https://github.com/acme/widget/releases.atom", releasesAtom)

	e := New(defaultKB(t), WithFetcher(stub))

	a, err := e.Preview(context.Background(), "https://github.com/acme/widget", "notify me of new versions")
	require.NoError(t, err)

	require.NotNil(t, a.Plan)
	assert.Equal(t, intent.Release, a.Intent)
	assert.Equal(t, "github", a.Platform)
	assert.Equal(t, strategy.Feed{}, a.Chosen.Engine)
	assert.Equal(t, strategy.FeedItems{}, a.Chosen.Extraction)
	assert.True(t, a.Result.Success, a.Result.Summary())
	assert.Contains(t, a.Result.Content, "v1.4.0")
	assert.Equal(t, []string{"feed https://github.com/acme/widget/releases.atom"}, stub.calls)
}

// TestPreview_RendersThinPages verifies a browser fetch is added for pages
// with little server-rendered text
func TestPreview_RendersThinPages(t *testing.T) {
	url := "https://app.example.com/status"
	stub := newStubFetcher()
	stub.set(strategy.HTTP{}, url, `<html><body><div id="root"></div><script src="/static/js/main.js"></script></body></html>`)
	stub.set(strategy.Browser{}, url, `<html><body><div id="root"><main>
<h1>Service status</h1>
<p>All systems are operational. The API, dashboard and background workers have been healthy for the last ninety days without any incidents reported.</p>
</main></div></body></html>`)

	e := New(defaultKB(t), WithFetcher(stub), WithRendering(true))

	a, err := e.Preview(context.Background(), url, "keep an eye on this page")
	require.NoError(t, err)

	assert.Equal(t, []string{"http " + url, "browser " + url}, stub.calls)
	assert.NotEmpty(t, a.Facts.JSMarkup)
	assert.Contains(t, a.Facts.JSText, "All systems are operational")
}

// TestPreview_RenderFailureIsWarning verifies a failed browser fetch does
// not abort the preview
func TestPreview_RenderFailureIsWarning(t *testing.T) {
	url := "https://app.example.com/status"
	stub := newStubFetcher()
	stub.set(strategy.HTTP{}, url, `<html><body><div id="root"></div></body></html>`)
	stub.errs["browser "+url] = fetch.ErrBrowserDisabled

	e := New(defaultKB(t), WithFetcher(stub), WithRendering(true))

	a, err := e.Preview(context.Background(), url, "watch this")
	require.NoError(t, err)
	assert.Contains(t, a.Warnings, "browser fetch failed: "+fetch.ErrBrowserDisabled.Error())
	assert.Empty(t, a.Facts.JSMarkup)
}

// TestPreview_Errors verifies missing fetchers and failed fetches surface
func TestPreview_Errors(t *testing.T) {
	_, err := New(nil).Preview(context.Background(), "https://example.com", "x")
	assert.ErrorIs(t, err, ErrNoFetcher)

	stub := newStubFetcher()
	stub.errs["http https://example.com"] = fetch.ErrHTTPStatus
	_, err = New(nil, WithFetcher(stub)).Preview(context.Background(), "https://example.com", "x")
	assert.ErrorIs(t, err, fetch.ErrHTTPStatus)

	_, err = New(nil, WithFetcher(stub)).Preview(context.Background(), "ftp://example.com/file", "x")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

const blogWithFeed = `<!doctype html>
<html><head>
<title>Widget blog</title>
<link rel="alternate" type="application/atom+xml" title="Releases" href="/releases.atom">
</head>
<body><main><h1>Widget blog</h1><p>Notes from the widget team.</p></main></body></html>`

// TestPreview_AdvertisedFeed verifies a feed linked from the page is
// fetched, validated and chosen as the target to watch
func TestPreview_AdvertisedFeed(t *testing.T) {
	stub := newStubFetcher()
	stub.set(strategy.HTTP{}, "https://blog.example.org/", blogWithFeed)
	stub.set(strategy.Feed{}, "https://blog.example.org/releases.atom", releasesAtom)

	e := New(defaultKB(t), WithFetcher(stub))

	a, err := e.Preview(context.Background(), "https://blog.example.org/", "tell me about new releases")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"http https://blog.example.org/",
		"feed https://blog.example.org/releases.atom",
	}, stub.calls)
	assert.Equal(t, "https://blog.example.org/", a.URL)
	assert.Equal(t, "https://blog.example.org/releases.atom", a.Target)
	assert.Equal(t, strategy.Feed{}, a.Chosen.Engine)
	assert.Equal(t, strategy.FeedItems{}, a.Chosen.Extraction)
	assert.Equal(t, "https://blog.example.org/releases.atom", a.Chosen.Note)
	assert.True(t, a.Result.Success, a.Result.Summary())
	assert.Contains(t, a.Result.Content, "v1.4.0")
	assert.Equal(t, a.Chosen, a.Strategies[0])
}

// TestPreview_AdvertisedFeedFailure verifies an unreachable feed leaves the
// page as the target and is reported as a warning
func TestPreview_AdvertisedFeedFailure(t *testing.T) {
	stub := newStubFetcher()
	stub.set(strategy.HTTP{}, "https://blog.example.org/", blogWithFeed)
	stub.errs["feed https://blog.example.org/releases.atom"] = fetch.ErrHTTPStatus

	e := New(defaultKB(t), WithFetcher(stub))

	a, err := e.Preview(context.Background(), "https://blog.example.org/", "tell me about new releases")
	require.NoError(t, err)

	assert.Equal(t, "https://blog.example.org/", a.Target)
	assert.Contains(t, a.Warnings, "feed fetch failed: "+fetch.ErrHTTPStatus.Error())
}

// TestPreview_IgnoresFeedsForOtherIntents verifies feeds are only fetched
// when a feed strategy is a candidate
func TestPreview_IgnoresFeedsForOtherIntents(t *testing.T) {
	stub := newStubFetcher()
	stub.set(strategy.HTTP{}, "https://blog.example.org/", blogWithFeed)

	e := New(defaultKB(t), WithFetcher(stub))

	a, err := e.Preview(context.Background(), "https://blog.example.org/", "price drop alerts")
	require.NoError(t, err)

	assert.Equal(t, []string{"http https://blog.example.org/"}, stub.calls)
	assert.Equal(t, "https://blog.example.org/", a.Target)
}

// TestPreview_FeedPlanIsNotRendered verifies a transformed feed is never
// opened in a browser even when its text is short
func TestPreview_FeedPlanIsNotRendered(t *testing.T) {
	stub := newStubFetcher()
	stub.set(strategy.Feed{}, "https://github.com/acme/widget/releases.atom", releasesAtom)

	e := New(defaultKB(t), WithFetcher(stub), WithRendering(true))

	a, err := e.Preview(context.Background(), "https://github.com/acme/widget", "new releases")
	require.NoError(t, err)

	assert.Equal(t, []string{"feed https://github.com/acme/widget/releases.atom"}, stub.calls)
	assert.Empty(t, a.Facts.JSMarkup)
}

// TestCheck verifies a saved strategy is fetched with its own engine and
// validated
func TestCheck(t *testing.T) {
	cmd := strategy.Shell{Command: "widget-cli releases"}
	stub := newStubFetcher()
	stub.set(cmd, "https://github.com/acme/widget", "<p>"+strings.Repeat("Release v1.4.0 fixes the widget loader. ", 5)+"</p>")

	e := New(nil, WithFetcher(stub))

	res, err := e.Check(context.Background(), "https://github.com/acme/widget", intent.Release,
		strategy.Strategy{Engine: cmd, Extraction: strategy.Full{}})
	require.NoError(t, err)
	assert.True(t, res.Success, res.Summary())
	assert.Equal(t, []string{"shell:widget-cli releases https://github.com/acme/widget"}, stub.calls)

	_, err = e.Check(context.Background(), "https://example.com", intent.Generic, strategy.Fallback())
	assert.Error(t, err)

	_, err = New(nil).Check(context.Background(), "https://example.com", intent.Generic, strategy.Fallback())
	assert.ErrorIs(t, err, ErrNoFetcher)
}
