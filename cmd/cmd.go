// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

func renderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "render-mode",
			Usage: "Render mode override (automatic, hardware or software)",
		},
		&cli.IntFlag{
			Name:  "api-level",
			Usage: "Platform API level used by automatic render mode selection",
		},
	}
}

// setupCommand writes a default config and runs database migrations.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file, cache directory and fetch index",
		Flags:  []cli.Flag{configFlag()},
		Action: r.Setup,
	}
}

// fetchCommand downloads a remote composition into the local cache.
func fetchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download a remote composition unless a local copy exists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "url",
				Aliases:  []string{"u"},
				Usage:    "Remote composition URL (http, https or s3)",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Local path (default: derived from the URL inside the cache directory)",
			},
		},
		Action: r.Fetch,
	}
}

// inspectCommand prints a report about one composition.
func inspectCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Load a composition and report its timing, markers, layers and render mode",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "source",
			},
		},
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (text, markdown, csv or json)",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the report to a file instead of stdout",
			},
		}, renderFlags()...),
		Action: r.Inspect,
	}
}

// playCommand returns the interactive player.
func playCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "play",
		Aliases: []string{"ui"},
		Usage:   "Play a composition in the terminal",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "source",
			},
		},
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Reload file sources when they change on disk",
				Value: true,
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Log file used while the player owns the terminal",
				Value: "./tmp/lottiekit-play.log",
			},
		}, renderFlags()...),
		Action: r.Play,
	}
}

// cacheCommand handles the downloaded composition cache
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage downloaded compositions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List downloaded compositions, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "prefix",
						Usage: "Only list entries whose URL starts with this prefix",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of entries to list",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.CacheList,
			},
			{
				Name:  "prune",
				Usage: "Delete downloaded compositions and their index rows",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:  "older-than",
						Usage: "Only prune entries fetched longer ago than this",
						Value: 30 * 24 * time.Hour,
					},
					&cli.BoolFlag{
						Name:  "all",
						Usage: "Prune every entry regardless of age",
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "List what would be pruned without deleting anything",
					},
				},
				Action: r.CachePrune,
			},
		},
	}
}
