package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/mintgen/service/db"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

func runsCommands() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Batch run ledger commands",
		Subcommands: []*cli.Command{
			runsListCommand(),
			runsGetCommand(),
		},
	}
}

func runsListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List recorded batch runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Only list runs of this config name",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Maximum number of runs",
				Value:   50,
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of runs to skip",
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			runs, err := store.ListRuns(c.Context, db.ListRunsParams{
				Config: c.String("config"),
				Limit:  int32(c.Int("limit")),
				Offset: int32(c.Int("offset")),
			})
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, runs)
			}

			tw := newTable(c)
			fmt.Fprintln(tw, "ID\tOPERATION\tCONFIG\tSTATUS\tOPS\tSKIPPED\tOK\tFAILED\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					r.ID,
					r.Operation,
					r.Config,
					r.Status,
					r.TotalOps,
					r.Skipped,
					r.Succeeded,
					r.Failed+r.BuildFailed,
					r.StartedAt.Format(time.RFC3339),
				)
			}
			tw.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d runs\n", len(runs))
			return nil
		},
	}
}

func runsGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a batch run and its chunk outcomes",
		ArgsUsage: "<run-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: run id")
			}
			id, err := uuid.Parse(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid run id: %w", err)
			}

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			run, err := store.GetRun(c.Context, id)
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("run %s not found", id)
			}
			if err != nil {
				return fmt.Errorf("failed to get run: %w", err)
			}
			outcomes, err := store.ListOutcomes(c.Context, id)
			if err != nil {
				return fmt.Errorf("failed to list outcomes: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, struct {
					*db.Run
					Outcomes []*db.ChunkOutcome `json:"outcomes"`
				}{run, outcomes})
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Run:       %s\n", run.ID)
			fmt.Fprintf(w, "Operation: %s\n", run.Operation)
			fmt.Fprintf(w, "Config:    %s\n", run.Config)
			fmt.Fprintf(w, "Status:    %s\n", run.Status)
			fmt.Fprintf(w, "Dry Run:   %t\n", run.DryRun)
			fmt.Fprintf(w, "Ops:       %d (%d skipped)\n", run.TotalOps, run.Skipped)
			fmt.Fprintf(w, "Outcomes:  %d ok, %d failed, %d build failed\n", run.Succeeded, run.Failed, run.BuildFailed)
			fmt.Fprintf(w, "Started:   %s\n", run.StartedAt.Format(time.RFC3339))
			if run.FinishedAt != nil {
				fmt.Fprintf(w, "Finished:  %s\n", run.FinishedAt.Format(time.RFC3339))
			}
			fmt.Fprintln(w)

			tw := newTable(c)
			fmt.Fprintln(tw, "CHUNK\tOPS\tSIZE\tSTATUS\tSIGNATURE\tERROR")
			for _, o := range outcomes {
				fmt.Fprintf(tw, "%d/%d\t%d\t%d\t%s\t%s\t%s\n",
					o.ChunkIndex+1,
					o.ChunkTotal,
					o.OpOffset,
					o.Size,
					o.Status,
					optional(o.Signature),
					optional(o.Error),
				)
			}
			return tw.Flush()
		},
	}
}
