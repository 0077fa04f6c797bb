package facts

// frameworkMarkers are substrings whose presence in markup or a script URL
// indicates a client-rendered JavaScript framework.
var frameworkMarkers = []string{
	"__NEXT_DATA__",
	"/_next/static/",
	"__NUXT__",
	"/_nuxt/",
	"data-reactroot",
	"_reactRootContainer",
	"react-dom",
	"ng-version",
	"ng-app",
	"data-v-app",
	"__VUE__",
	"__sveltekit",
	"___gatsby",
	"__remixContext",
	"ember-application",
	"data-server-rendered",
}

// botProtectionMarkers are matched case-insensitively against the markup.
var botProtectionMarkers = []string{
	"captcha",
	"checking your browser",
	"cf-browser-verification",
	"cf-challenge",
	"__cf_chl",
	"attention required! | cloudflare",
	"just a moment...",
	"ddos-guard",
	"are you a robot",
	"px-captcha",
	"datadome",
	"perimeterx",
}

// feedTypes maps syndication MIME types to feed kinds.
var feedTypes = map[string]string{
	"application/rss+xml":   "rss",
	"application/atom+xml":  "atom",
	"application/feed+json": "json",
	"application/rdf+xml":   "rss",
}

// feedSuffixes identify anchors that probably point at a feed.
var feedSuffixes = []string{
	".rss",
	".atom",
	"/feed",
	"/feed/",
	"/rss",
	"/rss/",
	"feed.xml",
	"rss.xml",
	"atom.xml",
	"index.xml",
}

// hiddenElements never contribute to visible text.
var hiddenElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"svg":      true,
	"iframe":   true,
}

const (
	// spaMinJSText is the least JS-rendered text that counts as a
	// substantial rendering gain.
	spaMinJSText = 500

	// spaTinyHTTPText and spaSubstantialJSText describe a page that is
	// nearly empty without scripts but full with them.
	spaTinyHTTPText      = 200
	spaSubstantialJSText = 1000
)
