package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/mithril/pkg/cache"
	"github.com/rubiojr/mithril/pkg/config"
)

// CacheCommand groups the cache management subcommands
func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and manage the local result cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached queries",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withCache(c.String("config"), func(rc *cache.ResultCache) error {
						listCache(os.Stdout, rc, time.Now())
						return nil
					})
				},
			},
			{
				Name:  "clear",
				Usage: "Drop every cached query",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withCache(c.String("config"), func(rc *cache.ResultCache) error {
						n := rc.Len()
						rc.Clear()
						fmt.Printf("Removed %d cached queries\n", n)
						return nil
					})
				},
			},
			{
				Name:  "disable",
				Usage: "Stop serving results from the cache on this device",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withCache(c.String("config"), func(rc *cache.ResultCache) error {
						rc.Disable()
						fmt.Println("Cache disabled")
						return nil
					})
				},
			},
			{
				Name:  "enable",
				Usage: "Serve results from the cache again",
				Action: func(ctx context.Context, c *cli.Command) error {
					return withCache(c.String("config"), func(rc *cache.ResultCache) error {
						rc.Enable()
						fmt.Println("Cache enabled")
						return nil
					})
				},
			},
		},
	}
}

func withCache(configPath string, fn func(*cache.ResultCache) error) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: failed to close cache store: %v\n", err)
		}
	}()

	rc := cache.New(store, cfg.SessionOptions().Cache)
	rc.LoadFromStorage()
	return fn(rc)
}

func listCache(w io.Writer, rc *cache.ResultCache, now time.Time) {
	if rc.Disabled() {
		fmt.Fprintln(w, badgeStyle.Render("Cache disabled"))
	}
	entries := rc.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(w, noDataStyle.Render("No cached queries"))
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d cached queries", len(entries))))
	for _, e := range entries {
		count := 0
		if e.Results != nil {
			count = len(e.Results.Results)
		}
		line := fmt.Sprintf("%-30s %3d results  %s", e.Query, count, metaStyle.Render(formatAge(e.StoredAt, now)))
		if rc.Expired(e.StoredAt) {
			line += " " + metaStyle.Render("(expired)")
		}
		fmt.Fprintln(w, line)
	}
}
