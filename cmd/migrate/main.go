package main

// Run database migrations:
//   go run ./cmd/migrate up
//   go run ./cmd/migrate status

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"docvault-backend/internal/shared/config"
	"docvault-backend/internal/shared/storage/db"
)

func main() {
	app := &cli.App{
		Name:  "migrate",
		Usage: "Manage the docvault database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Postgres connection string (defaults to DATABASE_URL)",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		DefaultCommand: "up",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply all pending migrations",
				Action: withDB(db.RunMigrations),
			},
			{
				Name:   "down",
				Usage:  "Roll back the most recent migration",
				Action: withDB(db.RollbackMigration),
			},
			{
				Name:   "status",
				Usage:  "Print the state of every migration",
				Action: withDB(db.MigrationStatus),
			},
			{
				Name:  "version",
				Usage: "Print the current schema version",
				Action: withDB(func(ctx context.Context, sqlDB *sql.DB) error {
					version, err := db.MigrationVersion(ctx, sqlDB)
					if err != nil {
						return err
					}
					fmt.Println(version)
					return nil
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Printf("migrate: %v", err)
		os.Exit(1)
	}
}

func withDB(fn func(context.Context, *sql.DB) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		url := c.String("database-url")
		if url == "" {
			url = config.Load().DatabaseURL
		}
		ctx := c.Context

		sqlDB, err := db.Connect(ctx, url, db.OptionsFromEnv(db.DefaultMigrateOptions()))
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer sqlDB.Close()
		return fn(ctx, sqlDB)
	}
}
