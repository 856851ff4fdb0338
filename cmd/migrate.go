package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/anochat/internal/database"
)

// MigrateCommand returns the CLI command for applying the database schema
// without starting the server.
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the database schema and seed the AI participant",
		Action: func(c *cli.Context) error {
			db, err := database.NewDB()
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(context.Background(), db); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			fmt.Println("Migrations applied")
			return nil
		},
	}
}
