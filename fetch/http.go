package fetch

import (
	"context"
	"fmt"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/pevans/pagewatch/strategy"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultUserAgent identifies pagewatch to servers.
const DefaultUserAgent = "pagewatch/1.0 (+https://github.com/pevans/pagewatch)"

const feedAccept = "application/rss+xml, application/atom+xml, application/feed+json, application/xml;q=0.9, */*;q=0.8"

// HTTPOptions configures an HTTPFetcher.
type HTTPOptions struct {
	UserAgent        string
	Timeout          time.Duration
	RatePerSecond    float64
	Burst            int
	MaxRedirects     int
	CloudflareBypass bool
}

// HTTPFetcher fetches pages and feeds with plain HTTP GETs, rate limited
// across all requests.
type HTTPFetcher struct {
	client *resty.Client
	log    logrus.FieldLogger
}

// NewHTTPFetcher builds a fetcher from opts. Zero values get defaults.
func NewHTTPFetcher(opts HTTPOptions, log logrus.FieldLogger) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 3
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst)

	client := resty.New()
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetTimeout(opts.Timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(opts.MaxRedirects))
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return limiter.Wait(req.Context())
	})
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	return &HTTPFetcher{client: client, log: log}
}

// Fetch implements Fetcher. Responses with a status of 400 or above are
// errors.
func (h *HTTPFetcher) Fetch(ctx context.Context, rawURL string, engine strategy.Engine) (*Page, error) {
	req := h.client.R().SetContext(ctx)
	if _, ok := engine.(strategy.Feed); ok {
		req.SetHeader("Accept", feedAccept)
	}

	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}

	h.log.WithFields(logrus.Fields{
		"url":     rawURL,
		"status":  resp.StatusCode(),
		"bytes":   len(resp.Body()),
		"elapsed": resp.Time().String(),
	}).Debug("fetched page")

	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("%w %d from %s", ErrHTTPStatus, resp.StatusCode(), rawURL)
	}

	finalURL := rawURL
	if raw := resp.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		finalURL = raw.Request.URL.String()
	}

	headers := make(map[string]string, len(resp.Header()))
	for key, values := range resp.Header() {
		headers[key] = strings.Join(values, ", ")
	}

	return &Page{
		URL:        rawURL,
		FinalURL:   finalURL,
		StatusCode: resp.StatusCode(),
		Markup:     resp.String(),
		Headers:    headers,
	}, nil
}
