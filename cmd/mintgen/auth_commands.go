package main

import (
	"context"
	"fmt"
	"os"

	"github.com/brojonat/mintgen/service/assembler"
	"github.com/brojonat/mintgen/service/batch"
	"github.com/brojonat/mintgen/service/protocol"
	solanasvc "github.com/brojonat/mintgen/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func authCommands() *cli.Command {
	return &cli.Command{
		Name:    "auth",
		Aliases: []string{"authorizations"},
		Usage:   "Mint phase authorization commands",
		Subcommands: []*cli.Command{
			authSetCommand(),
			authListCommand(),
			authCloseCommand(),
			authConsolidateCommand(),
		},
	}
}

func authSetCommand() *cli.Command {
	return &cli.Command{
		Name:  "set",
		Usage: "Set user allowances from a CSV file",
		Description: `Create or overwrite the authorization records of a mint config.

The CSV has a header line followed by user,phase,remaining rows. A row is
skipped when the existing record's used count plus remaining already equals
the requested remaining.

Example:
  mintgen auth set --name bodoggos --file allowlist.csv`,
		Flags: append([]cli.Flag{
			configNameFlag(),
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the authorizations CSV",
				Required: true,
			},
		}, batchFlags(10, 10)...),
		Action: func(c *cli.Context) error {
			rows, err := readAuthorizationsFile(c.String("file"))
			if err != nil {
				return err
			}

			e, err := newEnv(c, true)
			if err != nil {
				return err
			}
			defer e.Close()

			name := c.String("name")
			id, _, _, err := e.mintConfig(c.Context, name)
			if err != nil {
				return err
			}

			records, err := e.client.ListMintPhaseAuthorizations(c.Context, id, nil)
			if err != nil {
				return fmt.Errorf("failed to list authorizations: %w", err)
			}
			existing := make(map[solana.PublicKey]*protocol.MintPhaseAuthorization, len(records))
			for _, r := range records {
				existing[r.Address] = r.Account
			}

			capacity, parallelism := e.batchSizes(c)
			report, err := runBatch(c.Context, e.sinks(), batchRun[assembler.AuthorizationRow]{
				Operation:   "set_mint_phase_authorizations",
				Config:      name,
				Ops:         rows,
				Skipped:     len(rows) - len(e.assembler.PendingAuthorizations(id, existing, rows)),
				DryRun:      c.Bool("dry-run"),
				Capacity:    capacity,
				Parallelism: parallelism,
				Build: func(ctx context.Context, chunk []assembler.AuthorizationRow) (*solanasvc.Tx, error) {
					pending := e.assembler.PendingAuthorizations(id, existing, chunk)
					if len(pending) == 0 {
						return nil, batch.ErrEmptyChunk
					}
					parts := make([]assembler.Part, 0, len(pending))
					for _, row := range pending {
						part, err := e.assembler.BuildSetAuthorization(id, e.walletKey(), e.walletKey(), row)
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

func readAuthorizationsFile(path string) ([]assembler.AuthorizationRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open authorizations file: %w", err)
	}
	defer f.Close()
	return assembler.ReadAuthorizationsCSV(f)
}

func authListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List the authorization records of a mint config",
		Flags: []cli.Flag{
			configNameFlag(),
			&cli.IntFlag{
				Name:  "phase",
				Usage: "Only list records of this phase",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			var phase *uint8
			if c.IsSet("phase") {
				p, err := phaseFlag(c)
				if err != nil {
					return err
				}
				phase = &p
			}

			id := e.program.PDA().MintConfigID(c.String("name"))
			records, err := e.client.ListMintPhaseAuthorizations(c.Context, id, phase)
			if err != nil {
				return fmt.Errorf("failed to list authorizations: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, records)
			}

			tw := newTable(c)
			fmt.Fprintln(tw, "USER\tPHASE\tCOUNT\tREMAINING\tADDRESS")
			for _, r := range records {
				remaining := "unlimited"
				if r.Account.Remaining != nil {
					remaining = fmt.Sprintf("%d", *r.Account.Remaining)
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
					r.Account.User,
					r.Account.MintPhaseIndex,
					r.Account.Count,
					remaining,
					r.Address,
				)
			}
			tw.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d authorizations\n", len(records))
			return nil
		},
	}
}

func authCloseCommand() *cli.Command {
	return &cli.Command{
		Name:  "close",
		Usage: "Close the authorization record of one user",
		Flags: []cli.Flag{
			configNameFlag(),
			&cli.StringFlag{
				Name:     "user",
				Aliases:  []string{"u"},
				Usage:    "User address",
				Required: true,
			},
			&cli.IntFlag{
				Name:     "phase",
				Usage:    "Mint phase index",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			user, err := solana.PublicKeyFromBase58(c.String("user"))
			if err != nil {
				return fmt.Errorf("invalid user: %w", err)
			}
			phase, err := phaseFlag(c)
			if err != nil {
				return err
			}

			e, err := newEnv(c, true)
			if err != nil {
				return err
			}
			defer e.Close()

			name := c.String("name")
			id := e.program.PDA().MintConfigID(name)
			part, err := e.assembler.BuildCloseAuthorization(id, e.walletKey(), user, phase)
			if err != nil {
				return err
			}
			return sendSingle(c, e, "close_mint_phase_authorization", name, part)
		},
	}
}

func authConsolidateCommand() *cli.Command {
	return &cli.Command{
		Name:  "consolidate",
		Usage: "Merge duplicate users of an authorizations CSV",
		Description: `Sum the remaining allowance of users listed more than once. A user
listed under two phases is an error. Runs offline.

Example:
  mintgen auth consolidate --file raw.csv --out allowlist.csv`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the input CSV",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output path (stdout when empty)",
			},
		},
		Action: func(c *cli.Context) error {
			rows, err := readAuthorizationsFile(c.String("file"))
			if err != nil {
				return err
			}
			merged, err := assembler.ConsolidateAuthorizations(rows)
			if err != nil {
				return err
			}

			out := c.App.Writer
			if path := c.String("out"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			if err := assembler.WriteAuthorizationsCSV(out, merged); err != nil {
				return err
			}
			fmt.Fprintf(c.App.ErrWriter, "Consolidated %d rows into %d users\n", len(rows), len(merged))
			return nil
		},
	}
}

// phaseFlag reads --phase as a phase index.
func phaseFlag(c *cli.Context) (uint8, error) {
	p := c.Int("phase")
	if p < 0 || p > 255 {
		return 0, fmt.Errorf("invalid phase %d", p)
	}
	return uint8(p), nil
}
