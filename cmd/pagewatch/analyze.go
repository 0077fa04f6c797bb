package main

import (
	"fmt"
	"strings"

	"github.com/pevans/pagewatch"
	"github.com/pevans/pagewatch/intent"
	"github.com/urfave/cli/v2"
)

var intentFlag = &cli.StringFlag{
	Name:    "intent",
	Aliases: []string{"i"},
	Usage:   "skip classification and use this intent (release, price, stock, jobs, news, generic)",
}

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Classify a description into an intent",
		ArgsUsage: "<description...>",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("a description is required", 1)
			}
			e, err := setup(c)
			if err != nil {
				return err
			}

			in := intent.Classify(strings.Join(c.Args().Slice(), " "))
			if e.json {
				return printJSON(map[string]any{
					"intent":           in,
					"default_interval": intent.DefaultInterval(in).String(),
				})
			}
			fmt.Printf("Intent:    %s\n", in)
			fmt.Printf("Interval:  %s\n", intent.DefaultInterval(in))
			return nil
		},
	}
}

func planCommand() *cli.Command {
	return &cli.Command{
		Name:      "plan",
		Usage:     "Show what would be fetched for a URL without fetching it",
		ArgsUsage: "<url> <description...>",
		Flags:     []cli.Flag{intentFlag},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			engine, err := e.engine(c)
			if err != nil {
				return err
			}

			p, err := makePlan(c, engine)
			if err != nil {
				return err
			}

			if e.json {
				return printJSON(map[string]any{"plan": p, "strategy": p.Strategy()})
			}
			printPlan(p)
			return nil
		},
	}
}

func analyzeCommand() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Fetch a page, detect its platform and pick a monitoring strategy",
		ArgsUsage: "<url> <description...>",
		Flags: []cli.Flag{
			intentFlag,
			&cli.BoolFlag{Name: "content", Usage: "print the extracted content"},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			engine, err := e.engine(c)
			if err != nil {
				return err
			}

			p, err := makePlan(c, engine)
			if err != nil {
				return err
			}

			a, err := engine.PreviewPlan(c.Context, p)
			if err != nil {
				return err
			}

			if e.json {
				return printJSON(a)
			}
			printAnalysis(a, c.Bool("content"))
			return nil
		},
	}
}

// makePlan plans the <url> <description...> arguments of c.
func makePlan(c *cli.Context, engine *pagewatch.Engine) (*pagewatch.Plan, error) {
	if c.NArg() == 0 {
		return nil, cli.Exit("a URL is required", 1)
	}
	rawURL := c.Args().First()
	description := strings.Join(c.Args().Tail(), " ")

	if name := c.String("intent"); name != "" {
		in, err := intent.Parse(name)
		if err != nil {
			return nil, err
		}
		return engine.PlanIntent(rawURL, in)
	}
	return engine.Plan(rawURL, description)
}
