// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the configuration file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config.toml template",
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand handles Skyeng authentication
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Skyeng session",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Log in with the configured credentials and store the token",
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the stored token state",
				Action: r.AuthStatus,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored token",
				Action: r.AuthLogout,
			},
		},
	}
}

func wordSetsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "wordsets",
		Aliases: []string{"sets"},
		Usage:   "List the student's word-sets",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.WordSets,
	}
}

func wordsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "words",
		Usage: "List or export the student's words",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format (text, json, csv, markdown)",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Write to skyeng_words.{ext}",
			},
			&cli.BoolFlag{
				Name:  "new",
				Usage: "Only words created after the last sync",
			},
		},
		Action: r.Words,
	}
}

func meaningsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "meanings",
		Usage: "Fetch dictionary meanings by id",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ids",
				Usage:    "Comma-separated meaning ids",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Meanings,
	}
}

// syncCommand handles the Skyeng to Anki sync
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Add new Skyeng words to Anki",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one incremental sync pass",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Build the notes without touching Anki or the watermark",
					},
					&cli.BoolFlag{
						Name:  "no-anki-sync",
						Usage: "Skip the AnkiWeb sync after adding notes",
					},
					&cli.StringFlag{
						Name:  "deck",
						Usage: "Override the configured deck",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:  "status",
				Usage: "Show the watermark and recent passes",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of passes to show",
						Value: 10,
					},
				},
				Action: r.SyncStatus,
			},
		},
	}
}

// apiCommand handles direct, authenticated API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the Skyeng APIs",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Authenticated GET, prints the response",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
		},
	}
}
