package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"jobaudit-engine/internal/logger"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Init()

	globalFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "env",
			Usage: "path to a .env file",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Usage:   "directory holding config.yml, the database and the lock file",
			Sources: cli.EnvVars("JOBAUDIT_DATA_DIR"),
			Value:   ".",
		},
	}

	app := &cli.Command{
		Name:    "engine",
		Usage:   "asynchronous job-board audit service",
		Version: version,
		Flags: append(globalFlags,
			&cli.IntFlag{
				Name:  "port",
				Usage: "listen port (overrides config and PORT)",
			},
		),
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API (default)",
				Action: serveAction,
			},
			{
				Name:   "sources",
				Usage:  "list the supported audit sources",
				Action: sourcesAction,
			},
			{
				Name:      "check-open",
				Usage:     "check whether an application URL is still open",
				ArgsUsage: "<url>",
				Action:    checkOpenAction,
			},
			{
				Name:  "secret",
				Usage: "manage API keys in the OS keychain",
				Commands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "store a secret (value read from --value or stdin)",
						ArgsUsage: "<openai|scraper|store>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "value", Usage: "secret value"},
						},
						Action: secretSetAction,
					},
					{
						Name:      "delete",
						Usage:     "remove a secret",
						ArgsUsage: "<openai|scraper|store>",
						Action:    secretDeleteAction,
					},
				},
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatalf("[engine] %v", err)
	}
}
