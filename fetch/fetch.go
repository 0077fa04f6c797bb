// Package fetch retrieves pages for the engine a strategy selects. None of
// this runs inside the analysis core; callers fetch first and hand the
// results to facts.Extract.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/pevans/pagewatch/strategy"
)

var (
	ErrBrowserDisabled = errors.New("browser engine is not enabled")
	ErrShellDisabled   = errors.New("shell engine is not enabled")
	ErrHTTPStatus      = errors.New("unexpected HTTP status")
)

// Page is the result of one fetch.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Title      string
	Markup     string
	Text       string
	Headers    map[string]string
}

// Fetcher retrieves a URL with the given engine.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, engine strategy.Engine) (*Page, error)
}

// Router dispatches to a fetcher per engine. Feed fetches use the HTTP
// fetcher. A nil Browser or Shell disables that engine.
type Router struct {
	HTTP    Fetcher
	Browser Fetcher
	Shell   Fetcher
}

// Fetch implements Fetcher.
func (r *Router) Fetch(ctx context.Context, rawURL string, engine strategy.Engine) (*Page, error) {
	switch engine.(type) {
	case strategy.HTTP, strategy.Feed:
		return r.HTTP.Fetch(ctx, rawURL, engine)
	case strategy.Browser:
		if r.Browser == nil {
			return nil, ErrBrowserDisabled
		}
		return r.Browser.Fetch(ctx, rawURL, engine)
	case strategy.Shell:
		if r.Shell == nil {
			return nil, ErrShellDisabled
		}
		return r.Shell.Fetch(ctx, rawURL, engine)
	}
	return nil, fmt.Errorf("%w: %T", strategy.ErrUnknownEngine, engine)
}
