package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/strategy"
	"github.com/pevans/pagewatch/watches"
	"github.com/urfave/cli/v2"
)

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Manage saved watches",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Save a watch for a URL",
				ArgsUsage: "<url> <description...>",
				Flags: []cli.Flag{
					intentFlag,
					&cli.StringFlag{Name: "engine", Usage: "fetch engine (http, browser, feed, shell:<cmd>)"},
					&cli.StringFlag{Name: "extraction", Usage: "extraction method (auto, full, feed, selector:<css>, meta:<tags>, jsonld[:Type])"},
					&cli.StringFlag{Name: "interval", Usage: "check interval such as 30m, 6h, 2d or 1w"},
					&cli.BoolFlag{Name: "analyze", Usage: "fetch the page and save the strategy that validates best"},
					&cli.BoolFlag{Name: "disabled", Usage: "save the watch disabled"},
				},
				Action: handleWatchAdd,
			},
			{
				Name:  "list",
				Usage: "List watches",
				Flags: []cli.Flag{
					intentFlag,
					&cli.BoolFlag{Name: "enabled", Usage: "only enabled watches"},
					&cli.BoolFlag{Name: "disabled", Usage: "only disabled watches"},
					&cli.IntFlag{Name: "limit", Usage: "maximum number of watches"},
				},
				Action: handleWatchList,
			},
			{
				Name:      "show",
				Usage:     "Show one watch",
				ArgsUsage: "<id>",
				Action:    handleWatchShow,
			},
			{
				Name:      "check",
				Usage:     "Fetch a watch with its saved strategy and record the outcome",
				ArgsUsage: "<id>",
				Action:    handleWatchCheck,
			},
			{
				Name:      "enable",
				Usage:     "Enable a watch",
				ArgsUsage: "<id>",
				Action:    func(c *cli.Context) error { return setEnabled(c, true) },
			},
			{
				Name:      "disable",
				Usage:     "Disable a watch",
				ArgsUsage: "<id>",
				Action:    func(c *cli.Context) error { return setEnabled(c, false) },
			},
			{
				Name:      "delete",
				Usage:     "Delete a watch",
				ArgsUsage: "<id>",
				Action:    handleWatchDelete,
			},
		},
	}
}

func handleWatchAdd(c *cli.Context) error {
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

	st := p.Strategy()
	target := p.URL
	var platform *string
	if c.Bool("analyze") {
		a, err := engine.PreviewPlan(c.Context, p)
		if err != nil {
			return err
		}
		st = a.Chosen
		target = a.Target
		if a.Platform != "" {
			platform = &a.Platform
		}
		if !a.Result.Success {
			e.log.WithField("strategy", st.String()).Warn(a.Result.Summary())
		}
	}

	if v := c.String("engine"); v != "" {
		if st.Engine, err = strategy.ParseEngine(v); err != nil {
			return err
		}
	}
	if v := c.String("extraction"); v != "" {
		if st.Extraction, err = strategy.ParseExtraction(v); err != nil {
			return err
		}
	}

	var enabledAt *time.Time
	if !c.Bool("disabled") {
		now := time.Now()
		enabledAt = &now
	}

	var interval *string
	if v := c.String("interval"); v != "" {
		interval = &v
	}

	description := strings.Join(c.Args().Tail(), " ")
	if description == "" {
		description = string(p.Intent)
	}

	store, err := e.store()
	if err != nil {
		return err
	}
	defer store.Close()

	w, err := store.CreateWatch(watches.NewWatch{
		URL:         target,
		Description: description,
		Intent:      p.Intent,
		Platform:    platform,
		Strategy:    st,
		Interval:    interval,
		EnabledAt:   enabledAt,
	})
	if err != nil {
		return err
	}

	if e.json {
		return printJSON(w)
	}
	fmt.Printf("Created watch %s (%s, %s/%s)\n", w.ID, w.Intent, w.Engine, w.Extraction)
	return nil
}

func handleWatchList(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	store, err := e.store()
	if err != nil {
		return err
	}
	defer store.Close()

	filter := watches.WatchFilter{Limit: c.Int("limit")}
	if name := c.String("intent"); name != "" {
		in, err := intent.Parse(name)
		if err != nil {
			return err
		}
		filter.Intent = &in
	}
	switch {
	case c.Bool("enabled") && c.Bool("disabled"):
		return cli.Exit("--enabled and --disabled are mutually exclusive", 1)
	case c.Bool("enabled"):
		enabled := true
		filter.Enabled = &enabled
	case c.Bool("disabled"):
		enabled := false
		filter.Enabled = &enabled
	}

	list, err := store.ListWatches(filter)
	if err != nil {
		return err
	}

	if e.json {
		if list == nil {
			list = []watches.Watch{}
		}
		return printJSON(map[string]any{"watches": list, "total": len(list)})
	}
	printWatchTable(list)
	return nil
}

// watchID parses the first argument of c as a watch ID
func watchID(c *cli.Context) (uuid.UUID, error) {
	if c.NArg() == 0 {
		return uuid.Nil, cli.Exit("a watch ID is required", 1)
	}
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid watch ID: %w", err)
	}
	return id, nil
}

func handleWatchShow(c *cli.Context) error {
	id, err := watchID(c)
	if err != nil {
		return err
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	store, err := e.store()
	if err != nil {
		return err
	}
	defer store.Close()

	w, err := store.GetWatch(id)
	if err != nil {
		return err
	}

	if e.json {
		return printJSON(w)
	}
	printWatch(w)
	return nil
}

func handleWatchCheck(c *cli.Context) error {
	id, err := watchID(c)
	if err != nil {
		return err
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	engine, err := e.engine(c)
	if err != nil {
		return err
	}
	store, err := e.store()
	if err != nil {
		return err
	}
	defer store.Close()

	w, err := store.GetWatch(id)
	if err != nil {
		return err
	}
	st, err := w.Strategy()
	if err != nil {
		return err
	}

	res, checkErr := engine.Check(c.Context, w.URL, w.Intent, st)

	now := time.Now()
	lastError := ""
	switch {
	case checkErr != nil:
		lastError = checkErr.Error()
	case !res.Success:
		lastError = res.Error
	}
	if err := store.UpdateWatch(id, watches.WatchUpdate{LastCheckedAt: &now, LastError: &lastError}); err != nil {
		return err
	}
	if checkErr != nil {
		return checkErr
	}

	if e.json {
		return printJSON(res)
	}
	fmt.Printf("Checked %s with %s: %s\n", w.URL, st, res.Summary())
	for _, warning := range res.Warnings {
		fmt.Printf("  ! %s\n", warning)
	}
	return nil
}

func setEnabled(c *cli.Context, enabled bool) error {
	id, err := watchID(c)
	if err != nil {
		return err
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	store, err := e.store()
	if err != nil {
		return err
	}
	defer store.Close()

	update := watches.WatchUpdate{ClearEnabledAt: !enabled}
	if enabled {
		now := time.Now()
		update.EnabledAt = &now
	}
	if err := store.UpdateWatch(id, update); err != nil {
		return err
	}

	state := "Disabled"
	if enabled {
		state = "Enabled"
	}
	fmt.Printf("%s watch %s\n", state, id)
	return nil
}

func handleWatchDelete(c *cli.Context) error {
	id, err := watchID(c)
	if err != nil {
		return err
	}
	e, err := setup(c)
	if err != nil {
		return err
	}
	store, err := e.store()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteWatch(id); err != nil {
		return err
	}
	fmt.Printf("Deleted watch %s\n", id)
	return nil
}
