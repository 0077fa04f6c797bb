package main

import (
	"fmt"
	"os"

	"github.com/pevans/pagewatch"
	"github.com/pevans/pagewatch/config"
	"github.com/urfave/cli/v2"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the config file, watch database and platforms file",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "overwrite the config file even if it already exists"},
		},
		Action: handleInit,
	}
}

func handleInit(c *cli.Context) error {
	fmt.Println("Initializing pagewatch...")
	fmt.Println()

	initSucceeded := true
	force := c.Bool("force")

	// Config file first, so the paths below come from it
	configPath, _ := config.ConfigFilePath()
	created, err := config.WriteDefaultConfigFile(force)
	switch {
	case err != nil:
		fmt.Fprintf(os.Stderr, "  ✗ Failed to create config file: %v\n", err)
		initSucceeded = false
	case created:
		fmt.Printf("  ✓ Config file: %s\n", configPath)
	default:
		fmt.Printf("  Config file: %s (already exists)\n", configPath)
	}

	e, err := setup(c)
	if err != nil {
		return err
	}

	dsn := e.cfg.Storage.Watches.DSN
	store, err := pagewatch.OpenWatchStore(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ Failed to initialize watch database: %v\n", err)
		initSucceeded = false
	} else {
		store.Close()
		fmt.Printf("  ✓ Watch database: %s\n", dsn)
	}

	kb, err := pagewatch.LoadKnowledgeBase(e.cfg.Platforms.Path, e.log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  ✗ Failed to load platforms file: %v\n", err)
		initSucceeded = false
	} else {
		fmt.Printf("  ✓ Platforms file: %s (%d platforms)\n", e.cfg.Platforms.Path, kb.Len())
		for _, loadErr := range kb.Errors() {
			fmt.Fprintf(os.Stderr, "    ! %v\n", loadErr)
		}
	}

	fmt.Println()

	if !initSucceeded {
		return cli.Exit("✗ Initialization failed", 1)
	}

	fmt.Println("✓ pagewatch initialized")
	fmt.Println()
	fmt.Println("You can now:")
	fmt.Println("  - Preview a page with 'pagewatch analyze <url> <description>'")
	fmt.Println("  - Save a watch with 'pagewatch watch add --analyze <url> <description>'")
	return nil
}
