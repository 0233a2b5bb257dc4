package main

import (
	"context"
	"fmt"
	"os"

	"github.com/brojonat/mintgen/service/assembler"
	"github.com/brojonat/mintgen/service/batch"
	"github.com/brojonat/mintgen/service/protocol"
	solanasvc "github.com/brojonat/mintgen/service/solana"
	"github.com/urfave/cli/v2"
)

func entriesCommands() *cli.Command {
	return &cli.Command{
		Name:  "entries",
		Usage: "Mint entry commands",
		Subcommands: []*cli.Command{
			entriesSetCommand(),
		},
	}
}

// batchFlags are shared by every batch command.
func batchFlags(batchSize, parallel int) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Operations per transaction",
			Value: batchSize,
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Transactions in flight at once",
			Value: parallel,
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Build every transaction without sending",
		},
	}
}

func entriesSetCommand() *cli.Command {
	return &cli.Command{
		Name:  "set",
		Usage: "Write mint entries from a CSV file",
		Description: `Write the output token entries of a mint config.

The CSV has a header line followed by name,symbol,uri rows. The row position
is the entry index. Entries whose slot already holds the same name are
skipped, so an interrupted upload can be run again.

Example:
  mintgen entries set --name bodoggos --file entries.csv --start 0 --end 1000`,
		Flags: append([]cli.Flag{
			configNameFlag(),
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the entries CSV",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "start",
				Usage: "First entry index to write",
			},
			&cli.IntFlag{
				Name:  "end",
				Usage: "Stop before this entry index (-1 for all)",
				Value: -1,
			},
		}, batchFlags(6, 6)...),
		Action: func(c *cli.Context) error {
			f, err := os.Open(c.String("file"))
			if err != nil {
				return fmt.Errorf("failed to open entries file: %w", err)
			}
			entries, err := assembler.ReadEntriesCSV(f, c.Int("start"), c.Int("end"))
			f.Close()
			if err != nil {
				return err
			}

			e, err := newEnv(c, true)
			if err != nil {
				return err
			}
			defer e.Close()

			name := c.String("name")
			id, cfg, data, err := e.mintConfig(c.Context, name)
			if err != nil {
				return err
			}

			capacity, parallelism := e.batchSizes(c)
			report, err := runBatch(c.Context, e.sinks(), batchRun[protocol.MintEntry]{
				Operation:   "set_mint_entries",
				Config:      name,
				Ops:         entries,
				Skipped:     len(entries) - len(assembler.PendingEntries(cfg, data, entries)),
				DryRun:      c.Bool("dry-run"),
				Capacity:    capacity,
				Parallelism: parallelism,
				Build: func(ctx context.Context, chunk []protocol.MintEntry) (*solanasvc.Tx, error) {
					pending := assembler.PendingEntries(cfg, data, chunk)
					if len(pending) == 0 {
						return nil, batch.ErrEmptyChunk
					}
					parts := make([]assembler.Part, 0, len(pending))
					for _, entry := range pending {
						part, err := e.assembler.BuildSetMintEntry(id, e.walletKey(), e.walletKey(), entry)
						if err != nil {
							return nil, err
						}
						parts = append(parts, part)
					}
					return e.assembler.Transaction(parts...)
				},
			}, e.submit)
			if err != nil {
				return err
			}
			return printReport(c, report)
		},
	}
}
