package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pevans/pagewatch/strategy"
	"github.com/sirupsen/logrus"
)

// BrowserOptions configures a BrowserFetcher.
type BrowserOptions struct {
	UserAgent string
	Timeout   time.Duration

	// Settle is how long to wait after the body is ready for scripts to
	// render.
	Settle time.Duration
}

// BrowserFetcher renders pages in headless Chrome.
type BrowserFetcher struct {
	opts BrowserOptions
	log  logrus.FieldLogger
}

// NewBrowserFetcher returns a fetcher that starts a browser per fetch.
func NewBrowserFetcher(opts BrowserOptions, log logrus.FieldLogger) *BrowserFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.Settle <= 0 {
		opts.Settle = 2 * time.Second
	}
	return &BrowserFetcher{opts: opts, log: log}
}

// Fetch implements Fetcher.
func (b *BrowserFetcher) Fetch(ctx context.Context, rawURL string, _ strategy.Engine) (*Page, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.UserAgent(b.opts.UserAgent))
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, b.opts.Timeout)
	defer cancelTimeout()

	var markup, text, title, finalURL string
	start := time.Now()
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.opts.Settle),
		chromedp.Title(&title),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
		chromedp.Text("body", &text, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", rawURL, err)
	}

	b.log.WithFields(logrus.Fields{
		"url":     rawURL,
		"final":   finalURL,
		"bytes":   len(markup),
		"elapsed": time.Since(start).String(),
	}).Debug("rendered page")

	return &Page{
		URL:      rawURL,
		FinalURL: finalURL,
		Title:    title,
		Markup:   markup,
		Text:     text,
	}, nil
}
