package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/anochat/internal/ai"
	"github.com/anochat/internal/api"
	"github.com/anochat/internal/chat"
	"github.com/anochat/internal/config"
	"github.com/anochat/internal/database"
	"github.com/anochat/internal/files"
	"github.com/anochat/internal/jobqueue"
)

// ServeCommand returns the CLI command for starting the chat server.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the anochat API server and AI workers",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Schema and the seeded AI identity must exist before the listener or
	// any worker touches the database.
	if err := database.Migrate(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	store := chat.NewStore(db)
	client := ai.NewClient(cfg.AI.APIURL, cfg.AI.TTSURL, cfg.AI.APIKey, store)
	orchestrator := &ai.Orchestrator{
		Store:     store,
		Client:    client,
		Tools:     ai.NewToolRegistry(),
		PromptDir: cfg.AI.PromptDir,
	}

	databaseURL, err := database.LoadDatabaseURL()
	if err != nil {
		return fmt.Errorf("failed to get database URL: %w", err)
	}

	queue, err := jobqueue.NewJobQueue(ctx, databaseURL, orchestrator)
	if err != nil {
		return fmt.Errorf("failed to create job queue: %w", err)
	}
	if err := queue.Start(ctx); err != nil {
		return fmt.Errorf("failed to start job queue: %w", err)
	}
	defer queue.Stop(ctx)

	storage, err := files.NewStorage(cfg.Files.Dir)
	if err != nil {
		return fmt.Errorf("failed to create file storage: %w", err)
	}

	fmt.Printf("Starting anochat server on port %d...\n", cfg.Server.Port)

	server := api.NewServer(cfg, store, queue, client, storage)
	return server.Start()
}
