package main

import (
	"context"
	"fmt"

	"github.com/brojonat/mintgen/service/assembler"
	"github.com/brojonat/mintgen/service/protocol"
	"github.com/brojonat/mintgen/service/resolver"
	solanasvc "github.com/brojonat/mintgen/service/solana"
	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func mintPhaseFlag() *cli.IntFlag {
	return &cli.IntFlag{
		Name:     "phase",
		Aliases:  []string{"p"},
		Usage:    "Mint phase index",
		Required: true,
	}
}

// holderSnapshot fetches what the payer holds. Metadata is only fetched
// when a check of the phase matches by collection or creator.
func (e *env) holderSnapshot(ctx context.Context, cfg *protocol.MintConfig, phaseIndex uint8, holder solana.PublicKey) (*resolver.HolderSnapshot, error) {
	phase, ok := cfg.Phase(phaseIndex)
	if !ok {
		return nil, fmt.Errorf("%w: %d of %d", assembler.ErrInvalidPhase, phaseIndex, len(cfg.MintPhases))
	}
	if len(phase.TokenChecks) == 0 {
		return &resolver.HolderSnapshot{Holder: holder}, nil
	}
	snapshot, err := e.client.FetchHolderSnapshot(ctx, holder, resolver.NeedsMetadata(phase.TokenChecks))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch holdings of %s: %w", holder, err)
	}
	return snapshot, nil
}

func mintCommand() *cli.Command {
	return &cli.Command{
		Name:  "mint",
		Usage: "Mint one token to the wallet",
		Flags: []cli.Flag{
			configNameFlag(),
			mintPhaseFlag(),
		},
		Action: func(c *cli.Context) error {
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
			id, cfg, _, err := e.mintConfig(c.Context, name)
			if err != nil {
				return err
			}
			snapshot, err := e.holderSnapshot(c.Context, cfg, phase, e.walletKey())
			if err != nil {
				return err
			}

			part, err := e.assembler.BuildMint(assembler.MintParams{
				ConfigID:   id,
				Config:     cfg,
				PhaseIndex: phase,
				User:       e.walletKey(),
				Payer:      e.walletKey(),
				Snapshot:   snapshot,
			})
			if err != nil {
				return fmt.Errorf("failed to build mint: %w", err)
			}
			if len(part.Signers) > 0 {
				e.logger.InfoContext(c.Context, "minting output mint", "mint", part.Signers[0].PublicKey())
			}
			return sendSingle(c, e, "mint", name, part)
		},
	}
}

func mintToUsersCommand() *cli.Command {
	return &cli.Command{
		Name:  "mint-to-users",
		Usage: "Mint the remaining allowance of every authorized user, paid by the wallet",
		Description: `Mint one token per remaining allowance of every authorization record of
a phase. Users receive the tokens; the wallet pays and satisfies the token
checks of the phase. Users are processed in address order.

Example:
  mintgen mint-to-users --name bodoggos --phase 0 --parallel 20`,
		Flags: append([]cli.Flag{
			configNameFlag(),
			mintPhaseFlag(),
		}, batchFlags(1, 20)...),
		Action: func(c *cli.Context) error {
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
			id, cfg, _, err := e.mintConfig(c.Context, name)
			if err != nil {
				return err
			}

			records, err := e.client.ListMintPhaseAuthorizations(c.Context, id, &phase)
			if err != nil {
				return fmt.Errorf("failed to list authorizations: %w", err)
			}
			auths := make([]*protocol.MintPhaseAuthorization, 0, len(records))
			for _, r := range records {
				auths = append(auths, r.Account)
			}
			targets := assembler.MintTargets(auths)

			payer := e.walletKey()
			snapshot, err := e.holderSnapshot(c.Context, cfg, phase, payer)
			if err != nil {
				return err
			}

			capacity, parallelism := e.batchSizes(c)
			report, err := runBatch(c.Context, e.sinks(), batchRun[solana.PublicKey]{
				Operation:   "mint_to_users",
				Config:      name,
				Ops:         targets,
				DryRun:      c.Bool("dry-run"),
				Capacity:    capacity,
				Parallelism: parallelism,
				Build: func(ctx context.Context, users []solana.PublicKey) (*solanasvc.Tx, error) {
					parts := make([]assembler.Part, 0, len(users))
					for _, user := range users {
						part, err := e.assembler.BuildMint(assembler.MintParams{
							ConfigID:   id,
							Config:     cfg,
							PhaseIndex: phase,
							User:       user,
							Payer:      payer,
							Snapshot:   snapshot,
						})
						if err != nil {
							return nil, fmt.Errorf("mint to %s: %w", user, err)
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
