package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/anochat/internal/config"
)

// ConfigCommand returns the config command
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a starter configuration file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
						Value:   "anochat.toml",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: func(c *cli.Context) error {
					outputPath := c.String("output")
					if c.Bool("force") {
						if err := os.Remove(outputPath); err != nil && !os.IsNotExist(err) {
							return err
						}
					}
					if err := config.InitConfig(outputPath); err != nil {
						return fmt.Errorf("failed to initialize config: %w", err)
					}
					fmt.Printf("Created configuration file at %s\n", outputPath)
					fmt.Println("Set ai.api_key and server.auth_secret before starting the server.")
					return nil
				},
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration and show the effective settings",
				Action: runConfigValidate,
			},
		},
	}
}

func runConfigValidate(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The prompt assets are loaded lazily on the first AI reply, so a
	// missing directory would otherwise surface hours after startup.
	if _, err := os.Stat(cfg.AI.PromptDir); err != nil {
		fmt.Printf("Warning: prompt directory %s is not readable: %v\n", cfg.AI.PromptDir, err)
	}

	fmt.Println("Configuration is valid")
	fmt.Printf("  server port:   %d\n", cfg.Server.Port)
	fmt.Printf("  ai endpoint:   %s\n", cfg.AI.APIURL)
	fmt.Printf("  tts endpoint:  %s (%s, voice %s)\n", cfg.AI.TTSURL, cfg.AI.Model, cfg.AI.Voice)
	fmt.Printf("  prompt dir:    %s\n", cfg.AI.PromptDir)
	fmt.Printf("  files dir:     %s\n", cfg.Files.Dir)
	return nil
}
