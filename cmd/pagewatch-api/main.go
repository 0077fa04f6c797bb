package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pevans/pagewatch"
	"github.com/pevans/pagewatch/config"
)

// EnvAddr overrides the listen address.
const EnvAddr = "PAGEWATCH_API_ADDR"

func main() {
	addr := flag.String("addr", "", "listen address (default localhost:8080)")
	allowShell := flag.Bool("allow-shell", false, "allow shell:<command> engines to run")
	flag.Parse()

	if *addr == "" {
		*addr = os.Getenv(EnvAddr)
	}
	if *addr == "" {
		*addr = "localhost:8080"
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
	}

	log, err := pagewatch.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	engine, err := pagewatch.NewFromConfig(cfg, *allowShell, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create engine")
	}

	store, err := pagewatch.OpenWatchStore(cfg.Storage.Watches.DSN)
	if err != nil {
		log.WithError(err).Fatal("Failed to open watch store")
	}
	defer store.Close()

	router := pagewatch.NewAPIServer(engine, store).SetupRouter()

	log.Infof("Starting pagewatch API server on http://%s/api/v1", *addr)
	if err := router.Run(*addr); err != nil {
		log.WithError(err).Fatal("Server failed")
	}
}
