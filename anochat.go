package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/anochat/cmd"
	"github.com/anochat/internal/logging"
)

const (
	version = "0.1.0"
)

func main() {
	logging.Setup()

	app := &cli.App{
		Name:    "anochat",
		Usage:   "Anonymous group chat backend with an AI participant",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE`",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.MigrateCommand(),
			cmd.ConfigCommand(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
