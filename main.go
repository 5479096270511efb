package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/mithril/cmd"
	"github.com/rubiojr/mithril/pkg/config"
	mlog "github.com/rubiojr/mithril/pkg/log"
)

func main() {
	app := &cli.Command{
		Name:  "mithril",
		Usage: "A search client with local caching and streamed snippets",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if c.Bool("debug") {
				mlog.SetGlobalDebug(true)
			}
			mlog.EnableDebugFromList(os.Getenv("MITHRIL_DEBUG"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			cmd.InitCommand(),
			cmd.SearchCommand(),
			cmd.ShellCommand(),
			cmd.ServeCommand(),
			cmd.CacheCommand(),
			cmd.VersionCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
