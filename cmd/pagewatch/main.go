package main

import (
	"fmt"
	"os"

	"github.com/pevans/pagewatch"
	"github.com/pevans/pagewatch/config"
	"github.com/pevans/pagewatch/watches"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "pagewatch",
		Usage: "Work out how to monitor a web page",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print JSON instead of tables"},
			&cli.StringFlag{Name: "log-level", Usage: "override the configured log level"},
			&cli.StringFlag{Name: "log-format", Usage: "override the configured log format (text or json)"},
			&cli.BoolFlag{Name: "browser", Usage: "allow headless Chrome fetches"},
			&cli.BoolFlag{Name: "allow-shell", Usage: "allow shell:<command> engines to run"},
		},
		Commands: []*cli.Command{
			classifyCommand(),
			planCommand(),
			analyzeCommand(),
			platformsCommand(),
			watchCommand(),
			initCommand(),
		},
	}
}

// env is the resolved configuration shared by every command.
type env struct {
	cfg  config.FileConfig
	log  *logrus.Logger
	json bool
}

// setup resolves configuration with precedence flags, environment, config
// file, defaults.
func setup(c *cli.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		fmt.Fprintf(os.Stderr, "Continuing with defaults and environment variables...\n\n")
	}

	if v := c.String("log-level"); v != "" {
		cfg.Log.Level = v
	}
	if v := c.String("log-format"); v != "" {
		cfg.Log.Format = v
	}
	if c.Bool("browser") {
		cfg.Fetch.Browser.Enabled = true
	}

	log, err := pagewatch.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}

	return &env{cfg: cfg, log: log, json: c.Bool("json")}, nil
}

func (e *env) engine(c *cli.Context) (*pagewatch.Engine, error) {
	return pagewatch.NewFromConfig(e.cfg, c.Bool("allow-shell"), e.log)
}

func (e *env) store() (*watches.WatchStore, error) {
	store, err := pagewatch.OpenWatchStore(e.cfg.Storage.Watches.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open watch store: %w", err)
	}
	return store, nil
}
