package main

// EcoGarden - main entry point
// Swagger general info lives in src/swagger/annotations.go

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/apimgr/ecogarden/src/config"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "ecogarden",
		Usage:   "gardening advice and local weather API",
		Version: GetVersionString(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to server.yml",
				EnvVars: []string{"ECOGARDEN_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: "database URL, overrides the configuration",
			},
		},
		// Running without a command starts the server
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "start the HTTP server",
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "create or upgrade the database schema",
				Action: runMigrate,
			},
			{
				Name:  "fixtures",
				Usage: "load the demo users and advices",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "purge existing users and advices first",
					},
				},
				Action: runFixtures,
			},
			{
				Name:  "user",
				Usage: "manage accounts",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "create an account, prompting for the password",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "email", Required: true},
							&cli.StringFlag{Name: "postal-code"},
							&cli.BoolFlag{Name: "admin", Usage: "grant ROLE_ADMIN"},
						},
						Action: runUserCreate,
					},
				},
			},
			{
				Name:  "version",
				Usage: "print version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintf(c.App.Writer, "ecogarden %s\n", GetVersionString())
					return nil
				},
			},
		},
	}
}

// loadConfig reads the configuration selected by the global flags
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if url := c.String("database"); url != "" {
		cfg.Database.URL = url
	}
	return cfg, nil
}
