package main

import (
	"context"
	"fmt"

	"github.com/brojonat/mintgen/service/assembler"
	"github.com/brojonat/mintgen/service/protocol"
	solanasvc "github.com/brojonat/mintgen/service/solana"
	"github.com/urfave/cli/v2"
)

func releaseCommand() *cli.Command {
	return &cli.Command{
		Name:  "release",
		Usage: "Release every output mint held pending release",
		Description: `Clear the release authority of a mint config so new mints are no longer
held, then release every pending output mint to its holder. The wallet must
be the config authority and the release authority.

Example:
  mintgen release --name bodoggos --batch-size 10`,
		Flags: append([]cli.Flag{
			configNameFlag(),
		}, batchFlags(10, 10)...),
		Action: func(c *cli.Context) error {
			e, err := newEnv(c, true)
			if err != nil {
				return err
			}
			defer e.Close()

			name := c.String("name")
			id, cfg, _, err := e.mintConfig(c.Context, name)
			if err != nil {
				return err
			}

			pending, err := e.client.ListPendingReleases(c.Context, id)
			if err != nil {
				return fmt.Errorf("failed to list pending releases: %w", err)
			}
			releases := make([]*protocol.OutputMintPendingRelease, 0, len(pending))
			for _, p := range pending {
				releases = append(releases, p.Account)
			}

			dryRun := c.Bool("dry-run")
			if cfg.OutputMintConfig.ReleaseAuthority != nil {
				part, err := e.assembler.BuildRemoveReleaseAuthority(id, cfg, e.walletKey())
				if err != nil {
					return err
				}
				if dryRun {
					e.logger.InfoContext(c.Context, "would remove release authority", "release_authority", cfg.OutputMintConfig.ReleaseAuthority)
				} else {
					tx, err := e.assembler.Transaction(part)
					if err != nil {
						return err
					}
					sig, err := e.submit(c.Context, tx)
					if err != nil {
						return fmt.Errorf("failed to remove release authority: %w", err)
					}
					e.logger.InfoContext(c.Context, "removed release authority", "signature", sig)
				}
			}

			capacity, parallelism := e.batchSizes(c)
			report, err := runBatch(c.Context, e.sinks(), batchRun[*protocol.OutputMintPendingRelease]{
				Operation:   "release_output_mints",
				Config:      name,
				Ops:         releases,
				DryRun:      dryRun,
				Capacity:    capacity,
				Parallelism: parallelism,
				Build: func(ctx context.Context, chunk []*protocol.OutputMintPendingRelease) (*solanasvc.Tx, error) {
					parts := make([]assembler.Part, 0, len(chunk))
					for _, p := range chunk {
						part, err := e.assembler.BuildRelease(id, cfg, p, e.walletKey())
						if err != nil {
							return nil, fmt.Errorf("release %s: %w", p.Mint, err)
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
