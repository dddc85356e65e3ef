package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "kgctl",
		Usage: "Operate the knowledge graph: ingestion failures, bulk import and search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:  "failures",
				Usage: "Inspect and replay dead-lettered ingestion events",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List recorded failures, newest first",
						Action: listFailuresCommand,
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "limit",
								Usage: "Maximum number of failures to list",
								Value: 50,
							},
							&cli.BoolFlag{
								Name:  "all",
								Usage: "Include failures that were already replayed",
							},
						},
					},
					{
						Name:      "replay",
						Usage:     "Republish failures onto the event exchange",
						ArgsUsage: "<failure-id>...",
						Action:    replayFailuresCommand,
					},
				},
			},
			{
				Name:   "import",
				Usage:  "Publish a note.created event for every markdown file under a directory",
				Action: importCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Directory of markdown notes",
						Required: true,
					},
					&cli.Int64Flag{
						Name:     "user-id",
						Aliases:  []string{"u"},
						Usage:    "Owner of the imported notes",
						Required: true,
					},
					&cli.Int64Flag{
						Name:     "start-id",
						Usage:    "Note id of the first file; later files count up from it",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Print what would be published without connecting to the broker",
					},
				},
			},
			{
				Name:   "search",
				Usage:  "Run the search pipeline for one query and print the result as JSON",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "user-id",
						Aliases:  []string{"u"},
						Usage:    "User whose notes are searched",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Natural-language query",
						Required: true,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.String("log-level"))); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}
