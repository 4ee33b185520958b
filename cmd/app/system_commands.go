package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/piivault/cmd/app/commands"
	"github.com/allisson/piivault/internal/app"
	"github.com/allisson/piivault/internal/config"
)

func getSystemCommands(version string) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the HTTP server",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return commands.RunServer(ctx, version)
			},
		},
		{
			Name:  "migrate",
			Usage: "Run database schema migrations",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "dir",
					Value: "migrations",
					Usage: "Directory holding the mysql and postgresql migration folders",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				return commands.RunMigrations(
					container.Logger(),
					cfg.DBDriver,
					cfg.DBConnectionString,
					cmd.String("dir"),
				)
			},
		},
	}
}
