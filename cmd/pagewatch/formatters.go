package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pevans/pagewatch"
	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/platforms"
	"github.com/pevans/pagewatch/watches"
)

// printJSON prints v as indented JSON
func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

func printRule() {
	fmt.Println(strings.Repeat("━", 78))
}

func sorted(items []string) []string {
	out := slices.Clone(items)
	slices.Sort(out)
	return out
}

// sortedIntents returns the intents a platform configures in priority order
func sortedIntents(def *platforms.Definition) []intent.Intent {
	var out []intent.Intent
	for _, in := range intent.All {
		if _, ok := def.Intents[in]; ok {
			out = append(out, in)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printPlan(p *pagewatch.Plan) {
	fmt.Printf("Intent:      %s\n", p.Intent)
	fmt.Printf("URL:         %s\n", p.SourceURL)
	if p.Transform != nil {
		fmt.Printf("Fetch:       %s\n", p.URL)
		fmt.Printf("Transform:   %s (confidence %.2f)\n", p.Transform.Description, p.Transform.Confidence)
	}
	fmt.Printf("Strategy:    %s\n", p.Strategy())
	fmt.Printf("Interval:    %s\n", intent.DefaultInterval(p.Intent))
}

func printAnalysis(a *pagewatch.Analysis, showContent bool) {
	printRule()
	fmt.Println(a.URL)
	printRule()
	fmt.Println()

	if a.Plan != nil {
		printPlan(a.Plan)
	} else {
		fmt.Printf("Intent:      %s\n", a.Intent)
	}
	if a.Facts.Title != "" {
		fmt.Printf("Title:       %s\n", a.Facts.Title)
	}
	fmt.Printf("SPA:         %t\n", a.Facts.IsSPA)
	fmt.Printf("Bot wall:    %t\n", a.Facts.HasBotProtection)
	fmt.Println()

	if len(a.Matches) > 0 {
		fmt.Println("Platforms:")
		t := newTable()
		t.AppendHeader(table.Row{"Platform", "Score", "Evidence"})
		for _, m := range a.Matches {
			t.AppendRow(table.Row{m.Name, fmt.Sprintf("%.2f", m.Score), truncate(strings.Join(m.Evidence, "; "), 60)})
		}
		t.Render()
	} else {
		fmt.Println("Platforms:   none recognized")
	}
	fmt.Println()

	source := "intent defaults"
	if a.FromPlatform {
		source = a.Platform
	}
	fmt.Printf("Candidates (%s):\n", source)
	t := newTable()
	t.AppendHeader(table.Row{"#", "Strategy", "Confidence", "Reason"})
	t.AppendRows(strategyRows(a.Strategies))
	t.Render()
	fmt.Println()

	fmt.Printf("Chosen:      %s\n", a.Chosen)
	if a.Target != a.URL {
		fmt.Printf("Watch:       %s\n", a.Target)
	}
	fmt.Printf("Result:      %s\n", a.Result.Summary())
	for _, w := range append(slices.Clone(a.Result.Warnings), a.Warnings...) {
		fmt.Printf("  ! %s\n", w)
	}

	if showContent && a.Result.Content != "" {
		fmt.Println()
		fmt.Println(a.Result.Content)
	}
}

func printWatchTable(list []watches.Watch) {
	if len(list) == 0 {
		fmt.Println("No watches configured.")
		return
	}

	t := newTable()
	t.AppendHeader(table.Row{"ID", "Intent", "Strategy", "Every", "Enabled", "URL"})
	for _, w := range list {
		enabled := "no"
		if w.IsEnabled() {
			enabled = "yes"
		}
		t.AppendRow(table.Row{
			w.ID.String(),
			w.Intent,
			w.Engine + "/" + w.Extraction,
			w.EffectiveInterval().String(),
			enabled,
			truncate(w.URL, 50),
		})
	}
	t.Render()
}

func printWatch(w *watches.Watch) {
	printRule()
	fmt.Println(w.Description)
	printRule()
	fmt.Println()

	fmt.Printf("ID:          %s\n", w.ID)
	fmt.Printf("URL:         %s\n", w.URL)
	fmt.Printf("Intent:      %s\n", w.Intent)
	if w.Platform != nil {
		fmt.Printf("Platform:    %s\n", *w.Platform)
	}
	fmt.Printf("Strategy:    %s/%s (confidence %.2f)\n", w.Engine, w.Extraction, w.Confidence)
	if w.Interval != nil {
		fmt.Printf("Interval:    %s\n", *w.Interval)
	} else {
		fmt.Printf("Interval:    %s (default)\n", w.EffectiveInterval())
	}
	fmt.Println()

	if w.EnabledAt != nil {
		fmt.Printf("Status:      ✓ Enabled (since %s)\n", w.EnabledAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Status:      ✗ Disabled")
	}
	if w.LastCheckedAt != nil {
		fmt.Printf("Last Check:  %s\n", w.LastCheckedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Println("Last Check:  Never")
	}
	if w.LastError != nil {
		fmt.Printf("Last Error:  %s\n", *w.LastError)
	}
}
