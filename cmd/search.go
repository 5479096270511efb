package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/mithril/pkg/realtime"
	"github.com/rubiojr/mithril/pkg/session"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Run a single query against the search API",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "query",
				Usage: "Search query (alternative to positional arguments)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Give up waiting for results and snippets after this long",
				Value: 30 * time.Second,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			query := c.String("query")
			if query == "" {
				query = strings.Join(c.Args().Slice(), " ")
			}
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("a query is required")
			}
			return searchOnce(ctx, c.String("config"), query, c.Duration("timeout"))
		},
	}
}

// searchOnce dispatches query without debounce and prints the outcome once
// the snippet stream is done.
func searchOnce(ctx context.Context, configPath, query string, timeout time.Duration) error {
	sess, cleanup, err := loadSession(configPath)
	if err != nil {
		return err
	}
	defer cleanup()

	return runQuery(ctx, sess, query, timeout, os.Stdout)
}

func runQuery(ctx context.Context, sess *session.Session, query string, timeout time.Duration, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, events := sess.Subscribe()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = sess.Run(ctx)
	}()
	defer func() {
		cancel()
		<-runDone
	}()

	sess.SubmitNow(query)

	p := newPresenter(w)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				p.flush()
				return ctx.Err()
			}
			if p.handle(ev) {
				if ev.Type == realtime.TypeError {
					return fmt.Errorf("search failed: %s", ev.Message)
				}
				return nil
			}
		case <-ctx.Done():
			// Results without their snippet pass are still worth printing.
			p.flush()
			return fmt.Errorf("timed out waiting for %q: %w", query, ctx.Err())
		}
	}
}
