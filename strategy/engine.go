package strategy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownEngine = errors.New("unknown engine")
	ErrEmptyCommand  = errors.New("shell engine requires a command")
)

// Engine selects how a page is fetched. The set of engines is closed; switch
// over HTTP, Browser, Feed and Shell.
type Engine interface {
	isEngine()
}

// HTTP is a plain HTTP GET.
type HTTP struct{}

// Browser fetches the page in a script-executing browser.
type Browser struct{}

// Feed fetches a syndication feed.
type Feed struct{}

// Shell runs a user-supplied shell command whose stdout is the content.
type Shell struct {
	Command string
}

func (HTTP) isEngine()    {}
func (Browser) isEngine() {}
func (Feed) isEngine()    {}
func (Shell) isEngine()   {}

// ParseEngine converts the configuration form of an engine into an Engine.
func ParseEngine(s string) (Engine, error) {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)

	if strings.HasPrefix(lower, "shell:") {
		cmd := strings.TrimSpace(trimmed[len("shell:"):])
		if cmd == "" {
			return nil, ErrEmptyCommand
		}
		return Shell{Command: cmd}, nil
	}

	switch lower {
	case "http", "https", "requests":
		return HTTP{}, nil
	case "playwright", "browser", "js", "javascript", "chrome":
		return Browser{}, nil
	case "rss", "feed", "atom":
		return Feed{}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, s)
}

// FormatEngine renders an engine in the form ParseEngine accepts.
func FormatEngine(e Engine) string {
	switch e := e.(type) {
	case HTTP:
		return "http"
	case Browser:
		return "browser"
	case Feed:
		return "feed"
	case Shell:
		return "shell:" + e.Command
	}
	return ""
}

// ExecutesScripts reports whether the engine renders JavaScript.
func ExecutesScripts(e Engine) bool {
	_, ok := e.(Browser)
	return ok
}
