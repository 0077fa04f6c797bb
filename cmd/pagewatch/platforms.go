package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pevans/pagewatch"
	"github.com/pevans/pagewatch/platforms"
	"github.com/pevans/pagewatch/strategy"
	"github.com/urfave/cli/v2"
)

func platformsCommand() *cli.Command {
	return &cli.Command{
		Name:  "platforms",
		Usage: "Inspect the platform knowledge base",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List known platforms",
				Action: handlePlatformsList,
			},
			{
				Name:      "show",
				Usage:     "Show one platform definition",
				ArgsUsage: "<id-or-alias>",
				Action:    handlePlatformsShow,
			},
			{
				Name:   "path",
				Usage:  "Print the path of the platforms file",
				Action: handlePlatformsPath,
			},
		},
	}
}

func loadKnowledgeBase(c *cli.Context) (*env, *platforms.KnowledgeBase, error) {
	e, err := setup(c)
	if err != nil {
		return nil, nil, err
	}
	kb, err := pagewatch.LoadKnowledgeBase(e.cfg.Platforms.Path, e.log)
	if err != nil {
		return nil, nil, err
	}
	return e, kb, nil
}

func handlePlatformsList(c *cli.Context) error {
	e, kb, err := loadKnowledgeBase(c)
	if err != nil {
		return err
	}

	var defs []*platforms.Definition
	for _, id := range kb.IDs() {
		def, _ := kb.Get(id)
		defs = append(defs, def)
	}

	if e.json {
		return printJSON(map[string]any{"platforms": defs, "total": len(defs)})
	}

	t := newTable()
	t.AppendHeader(table.Row{"ID", "Name", "Aliases", "Intents", "Threshold"})
	for _, def := range defs {
		var intents []string
		for in := range def.Intents {
			intents = append(intents, string(in))
		}
		t.AppendRow(table.Row{
			def.ID,
			def.Name,
			strings.Join(def.Aliases, ", "),
			strings.Join(sorted(intents), ", "),
			fmt.Sprintf("%.2f", def.Detection.WeightThreshold),
		})
	}
	t.Render()

	for _, loadErr := range kb.Errors() {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", loadErr)
	}
	return nil
}

func handlePlatformsShow(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("a platform id is required", 1)
	}

	e, kb, err := loadKnowledgeBase(c)
	if err != nil {
		return err
	}

	def, ok := kb.Get(c.Args().First())
	if !ok {
		return fmt.Errorf("%w: %s", platforms.ErrPlatformNotFound, c.Args().First())
	}

	if e.json {
		return printJSON(def)
	}

	printRule()
	fmt.Printf("%s (%s)\n", def.Name, def.ID)
	printRule()
	fmt.Println()

	if len(def.Aliases) > 0 {
		fmt.Printf("Aliases:     %s\n", strings.Join(def.Aliases, ", "))
	}
	fmt.Printf("Threshold:   %.2f\n", def.Detection.WeightThreshold)
	if len(def.Detection.Domains) > 0 {
		fmt.Printf("Domains:     %s\n", strings.Join(def.Detection.Domains, ", "))
	}
	fmt.Println()

	for _, in := range sortedIntents(def) {
		cfg := def.Intents[in]
		fmt.Printf("%s:\n", in)
		t := newTable()
		t.AppendHeader(table.Row{"#", "Strategy", "Confidence", "Reason"})
		t.AppendRows(strategyRows(cfg.Strategies))
		t.Render()
		if cfg.MustHaveVariant {
			fmt.Printf("  Requires a variant (pattern %s)\n", cfg.VariantPattern)
		}
		fmt.Println()
	}

	if len(def.AntiPatterns) > 0 {
		fmt.Println("Anti-patterns:")
		for _, ap := range def.AntiPatterns {
			fmt.Printf("  %-20s %s (%q)\n", ap.Result, ap.Message, ap.Pattern)
		}
	}
	return nil
}

func handlePlatformsPath(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	fmt.Println(e.cfg.Platforms.Path)
	return nil
}

// strategyRows renders a strategy list for a table.
func strategyRows(list []strategy.Strategy) []table.Row {
	rows := make([]table.Row, 0, len(list))
	for i, s := range list {
		rows = append(rows, table.Row{i + 1, s.String(), fmt.Sprintf("%.2f", s.Confidence), s.Reason})
	}
	return rows
}
