package pagewatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pevans/pagewatch/config"
	"github.com/pevans/pagewatch/fetch"
	"github.com/pevans/pagewatch/platforms"
	"github.com/pevans/pagewatch/watches"
	"github.com/sirupsen/logrus"
)

// NewLogger builds a logrus logger writing to stderr.
func NewLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	if cfg.Level != "" {
		level, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		log.SetLevel(level)
	}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", cfg.Format)
	}

	return log, nil
}

// NewFetcher builds the fetcher stack described by cfg: rate-limited HTTP,
// an optional browser, an optional shell runner and a TTL cache in front.
func NewFetcher(cfg config.FetchConfig, allowShell bool, log logrus.FieldLogger) fetch.Fetcher {
	router := &fetch.Router{
		HTTP: fetch.NewHTTPFetcher(fetch.HTTPOptions{
			UserAgent:        cfg.UserAgent,
			Timeout:          cfg.Timeout,
			RatePerSecond:    cfg.RatePerSecond,
			Burst:            cfg.Burst,
			CloudflareBypass: cfg.CloudflareBypass,
		}, log),
	}
	if cfg.Browser.Enabled {
		router.Browser = fetch.NewBrowserFetcher(fetch.BrowserOptions{
			UserAgent: cfg.UserAgent,
			Settle:    cfg.Browser.Settle,
		}, log)
	}
	if allowShell {
		router.Shell = fetch.ShellFetcher{}
	}

	if cfg.CacheTTL <= 0 {
		return router
	}
	return fetch.NewCached(router, cfg.CacheTTL)
}

// LoadKnowledgeBase loads the platform file at path, creating it from the
// embedded defaults when missing. Skipped definitions are logged.
func LoadKnowledgeBase(path string, log logrus.FieldLogger) (*platforms.KnowledgeBase, error) {
	kb, err := platforms.Load(path)
	if err != nil {
		return nil, err
	}
	for _, loadErr := range kb.Errors() {
		log.WithField("platform", loadErr.Platform).WithError(loadErr.Err).Warn("skipped platform definition")
	}
	return kb, nil
}

// NewFromConfig wires an Engine from the effective configuration.
func NewFromConfig(cfg config.FileConfig, allowShell bool, log logrus.FieldLogger) (*Engine, error) {
	kb, err := LoadKnowledgeBase(cfg.Platforms.Path, log)
	if err != nil {
		return nil, err
	}

	return New(kb,
		WithFetcher(NewFetcher(cfg.Fetch, allowShell, log)),
		WithRendering(cfg.Fetch.Browser.Enabled),
		WithLogger(log),
	), nil
}

// OpenWatchStore opens the watch database, creating its directory first.
func OpenWatchStore(dsn string) (*watches.WatchStore, error) {
	if dir := filepath.Dir(dsn); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	return watches.NewWatchStore(dsn)
}
