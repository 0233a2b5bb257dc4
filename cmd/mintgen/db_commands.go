package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/brojonat/mintgen/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func dbCommands() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Run ledger database commands",
		Subcommands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Manage ledger schema migrations",
				Subcommands: []*cli.Command{
					migrateCommand("up", "Apply all pending migrations", db.MigrateUp),
					migrateCommand("down", "Roll back the most recent migration", db.MigrateDown),
					migrateCommand("status", "Show the state of every migration", db.MigrateStatus),
					migrateVersionCommand(),
				},
			},
		},
	}
}

type migrateFunc func(ctx context.Context, log *slog.Logger, pool *pgxpool.Pool) error

func migrateCommand(name, usage string, fn migrateFunc) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(c *cli.Context) error {
			pool, err := connectLedger(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := newLogger(c.String("log-level"), c.String("log-format"))
			return fn(c.Context, logger.With("component", "migrate"), pool)
		},
	}
}

func migrateVersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print the current schema version",
		Action: func(c *cli.Context) error {
			pool, err := connectLedger(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			version, err := db.MigrationVersion(c.Context, pool)
			if err != nil {
				return err
			}
			if wantJSON(c) {
				return outputJSON(c, map[string]int64{"version": version})
			}
			fmt.Fprintln(c.App.Writer, version)
			return nil
		},
	}
}

// connectLedger opens a pool without applying migrations.
func connectLedger(c *cli.Context) (*pgxpool.Pool, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	pool, err := pgxpool.New(c.Context, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(c.Context); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
