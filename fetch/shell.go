package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/pevans/pagewatch/strategy"
)

// ShellFetcher runs the command of a shell engine. The URL is passed in the
// PAGEWATCH_URL environment variable and stdout becomes the page.
type ShellFetcher struct{}

// Fetch implements Fetcher.
func (ShellFetcher) Fetch(ctx context.Context, rawURL string, engine strategy.Engine) (*Page, error) {
	shell, ok := engine.(strategy.Shell)
	if !ok {
		return nil, fmt.Errorf("shell fetcher cannot run %s engine", strategy.FormatEngine(engine))
	}
	if strings.TrimSpace(shell.Command) == "" {
		return nil, strategy.ErrEmptyCommand
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", shell.Command)
	cmd.Env = append(os.Environ(), "PAGEWATCH_URL="+rawURL)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && msg != "" {
			return nil, fmt.Errorf("command failed: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("command failed: %w", err)
	}

	return &Page{
		URL:      rawURL,
		FinalURL: rawURL,
		Markup:   stdout.String(),
		Text:     stdout.String(),
	}, nil
}
