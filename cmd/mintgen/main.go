package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalEnv maps global flags onto the environment variables config.Load reads.
var globalEnv = map[string]string{
	"rpc-url":      "SOLANA_RPC_URL",
	"wallet":       "WALLET",
	"program-id":   "PROGRAM_ID",
	"log-level":    "LOG_LEVEL",
	"log-format":   "LOG_FORMAT",
	"database-url": "DATABASE_URL",
	"nats-url":     "NATS_URL",
	"metrics-addr": "METRICS_ADDR",
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mintgen",
		Usage: "Operator CLI for the mint generator program",
		Description: `A command-line tool for configuring mint configs and running batched
operations against the mint generator program.

Batch commands fetch on-chain state once, skip work that is already done,
and submit the rest as parallel transactions. Each chunk outcome is logged
and, when configured, published to NATS and recorded in Postgres.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Before: func(c *cli.Context) error {
			// A missing .env file is fine.
			_ = godotenv.Load()
			for name, key := range globalEnv {
				if c.IsSet(name) {
					if err := os.Setenv(key, c.String(name)); err != nil {
						return err
					}
				}
			}
			return nil
		},
		Commands: []*cli.Command{
			configCommands(),
			entriesCommands(),
			authCommands(),
			mintCommand(),
			mintToUsersCommand(),
			releaseCommand(),
			metadataCommands(),
			runsCommands(),
			outcomesCommands(),
			dbCommands(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC endpoint",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Path to the signing keypair file",
				EnvVars: []string{"WALLET"},
			},
			&cli.StringFlag{
				Name:    "program-id",
				Usage:   "Mint generator program address (default deployment when empty)",
				EnvVars: []string{"PROGRAM_ID"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				EnvVars: []string{"LOG_FORMAT"},
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL for the run ledger",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL for outcome events",
				EnvVars: []string{"NATS_URL"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address while a command runs",
				EnvVars: []string{"METRICS_ADDR"},
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringFlag{
				Name:  "jq",
				Usage: "jq filter applied to JSON output (implies --json)",
			},
		},
	}
}

// newLogger writes to stderr so stdout stays clean for command output.
func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      lvl,
		TimeFormat: time.Kitchen,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}
