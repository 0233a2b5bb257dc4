package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/brojonat/mintgen/service/assembler"
	"github.com/brojonat/mintgen/service/protocol"
	"github.com/brojonat/mintgen/service/resolver"
	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func configCommands() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Mint config management commands",
		Subcommands: []*cli.Command{
			configGetCommand(),
			configListCommand(),
			configInitCommand(),
			configUpdateCommand(),
			configSetMetadataCommand(),
			configCloseCommand(),
		},
	}
}

func configNameFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "name",
		Aliases:  []string{"n"},
		Usage:    "Mint config name",
		EnvVars:  []string{"MINT_CONFIG_NAME"},
		Required: true,
	}
}

// mintConfigFile is the JSON document init and update read.
type mintConfigFile struct {
	Name             string                    `json:"name"`
	Authority        *solana.PublicKey         `json:"authority,omitempty"`
	OutputMintConfig protocol.OutputMintConfig `json:"output_mint_config"`
	MintPhases       []protocol.MintPhase      `json:"mint_phases"`
	Metadata         string                    `json:"metadata"`
}

func readMintConfigFile(path string) (*mintConfigFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	var file mintConfigFile
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := file.validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return &file, nil
}

func (f *mintConfigFile) validate() error {
	var errs []error
	if len(f.MintPhases) == 0 {
		errs = append(errs, errors.New("at least one mint phase is required"))
	}
	if len(f.MintPhases) > 255 {
		errs = append(errs, fmt.Errorf("too many mint phases: %d", len(f.MintPhases)))
	}
	for i, phase := range f.MintPhases {
		if err := resolver.ValidateChecks(phase.TokenChecks); err != nil {
			errs = append(errs, fmt.Errorf("phase %d: %w", i, err))
		}
	}
	var shares int
	for _, c := range f.OutputMintConfig.Creators {
		shares += int(c.Share)
	}
	if len(f.OutputMintConfig.Creators) > 0 && shares != 100 {
		errs = append(errs, fmt.Errorf("creator shares add up to %d, not 100", shares))
	}
	return errors.Join(errs...)
}

func configGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show a mint config",
		ArgsUsage: "<name>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: config name")
			}
			e, err := newEnv(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			id, cfg, _, err := e.mintConfig(c.Context, c.Args().First())
			if err != nil {
				return err
			}

			if wantJSON(c) {
				return outputJSON(c, struct {
					Address solana.PublicKey     `json:"address"`
					Config  *protocol.MintConfig `json:"config"`
				}{id, cfg})
			}
			printMintConfig(c, id, cfg)
			return nil
		},
	}
}

func printMintConfig(c *cli.Context, id solana.PublicKey, cfg *protocol.MintConfig) {
	w := c.App.Writer
	out := cfg.OutputMintConfig
	fmt.Fprintf(w, "Address:        %s\n", id)
	fmt.Fprintf(w, "Name:           %s\n", cfg.Name)
	fmt.Fprintf(w, "Authority:      %s\n", cfg.Authority)
	fmt.Fprintf(w, "Minted:         %d/%d\n", cfg.Count, cfg.Supply)
	fmt.Fprintf(w, "Token Standard: %s\n", out.TokenStandard)
	fmt.Fprintf(w, "Seller Fee:     %d bps\n", out.SellerFeeBasisPoints)
	fmt.Fprintf(w, "Collection:     %s\n", optionalKey(out.Collection))
	fmt.Fprintf(w, "Ruleset:        %s\n", optionalKey(out.Ruleset))
	fmt.Fprintf(w, "Merkle Tree:    %s\n", optionalKey(out.MerkleTree))
	fmt.Fprintf(w, "Release Auth:   %s\n", optionalKey(out.ReleaseAuthority))
	for _, creator := range out.Creators {
		fmt.Fprintf(w, "Creator:        %s (%d%%)\n", creator.Address, creator.Share)
	}

	tw := newTable(c)
	fmt.Fprintln(tw, "\nPHASE\tSTART\tEND\tTOKEN CHECKS\tAUTHORIZATION")
	for i, phase := range cfg.MintPhases {
		auth := "-"
		if phase.Authorization != nil {
			auth = phase.Authorization.Mode.String()
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n",
			i,
			formatCondition(phase.StartCondition),
			formatCondition(phase.EndCondition),
			len(phase.TokenChecks),
			auth,
		)
	}
	tw.Flush()
}

func optionalKey(k *solana.PublicKey) string {
	if k == nil {
		return "-"
	}
	return k.String()
}

func formatCondition(cond *protocol.PhaseCondition) string {
	if cond == nil {
		return "-"
	}
	switch {
	case cond.TimeSeconds != nil && cond.Count != nil:
		return fmt.Sprintf("t=%d|count=%d", *cond.TimeSeconds, *cond.Count)
	case cond.TimeSeconds != nil:
		return fmt.Sprintf("t=%d", *cond.TimeSeconds)
	case cond.Count != nil:
		return fmt.Sprintf("count=%d", *cond.Count)
	default:
		return "-"
	}
}

func configListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List the mint configs of an authority",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "authority",
				Usage: "Authority address (defaults to the wallet)",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c, !c.IsSet("authority"))
			if err != nil {
				return err
			}
			defer e.Close()

			var authority solana.PublicKey
			if c.IsSet("authority") {
				if authority, err = solana.PublicKeyFromBase58(c.String("authority")); err != nil {
					return fmt.Errorf("invalid authority: %w", err)
				}
			} else {
				authority = e.walletKey()
			}

			configs, err := e.client.ListMintConfigsByAuthority(c.Context, authority)
			if err != nil {
				return fmt.Errorf("failed to list mint configs: %w", err)
			}

			if wantJSON(c) {
				return outputJSON(c, configs)
			}

			tw := newTable(c)
			fmt.Fprintln(tw, "ADDRESS\tNAME\tMINTED\tPHASES\tSTANDARD")
			for _, cfg := range configs {
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%s\n",
					cfg.Address,
					cfg.Account.Name,
					cfg.Account.Count,
					cfg.Account.Supply,
					len(cfg.Account.MintPhases),
					cfg.Account.OutputMintConfig.TokenStandard,
				)
			}
			tw.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d configs\n", len(configs))
			return nil
		},
	}
}

func configInitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create a mint config from a JSON file",
		Description: `Create a mint config owned by the wallet.

The file holds name, output_mint_config, mint_phases and metadata. Enum fields
use snake case names, for example "programmable_non_fungible" or "transfer".`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the config JSON file",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "Config name (overrides the file)",
			},
		},
		Action: func(c *cli.Context) error {
			file, err := readMintConfigFile(c.String("file"))
			if err != nil {
				return err
			}
			if c.IsSet("name") {
				file.Name = c.String("name")
			}
			if file.Name == "" {
				return errors.New("config name is required (set it in the file or use --name)")
			}

			e, err := newEnv(c, true)
			if err != nil {
				return err
			}
			defer e.Close()

			part, err := e.assembler.BuildInitMintConfig(e.walletKey(), e.walletKey(), protocol.InitMintConfigArgs{
				Authority:        e.walletKey(),
				Name:             file.Name,
				OutputMintConfig: file.OutputMintConfig,
				MintPhases:       file.MintPhases,
				Metadata:         file.Metadata,
			})
			if err != nil {
				return err
			}
			return sendSingle(c, e, "init_mint_config", file.Name, part)
		},
	}
}

func configUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Replace the phases, output config and metadata of a mint config",
		Flags: []cli.Flag{
			configNameFlag(),
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path to the config JSON file",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			file, err := readMintConfigFile(c.String("file"))
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

			authority := cfg.Authority
			if file.Authority != nil {
				authority = *file.Authority
			}
			part, err := e.assembler.BuildUpdateMintConfig(id, e.walletKey(), e.walletKey(), protocol.UpdateMintConfigArgs{
				Authority:        authority,
				OutputMintConfig: file.OutputMintConfig,
				MintPhases:       file.MintPhases,
				Metadata:         file.Metadata,
			})
			if err != nil {
				return err
			}
			return sendSingle(c, e, "update_mint_config", name, part)
		},
	}
}

func configSetMetadataCommand() *cli.Command {
	return &cli.Command{
		Name:  "set-metadata",
		Usage: "Replace the metadata string of a mint config",
		Flags: []cli.Flag{
			configNameFlag(),
			&cli.StringFlag{
				Name:     "metadata",
				Aliases:  []string{"m"},
				Usage:    "Metadata string, usually JSON",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c, true)
			if err != nil {
				return err
			}
			defer e.Close()

			name := c.String("name")
			id := e.program.PDA().MintConfigID(name)
			part, err := e.assembler.BuildSetMintConfigMetadata(id, e.walletKey(), e.walletKey(), c.String("metadata"))
			if err != nil {
				return err
			}
			return sendSingle(c, e, "set_mint_config_metadata", name, part)
		},
	}
}

func configCloseCommand() *cli.Command {
	return &cli.Command{
		Name:  "close",
		Usage: "Close a mint config and reclaim its rent",
		Flags: []cli.Flag{configNameFlag()},
		Action: func(c *cli.Context) error {
			e, err := newEnv(c, true)
			if err != nil {
				return err
			}
			defer e.Close()

			name := c.String("name")
			id := e.program.PDA().MintConfigID(name)
			part, err := e.assembler.BuildCloseMintConfig(id, e.walletKey())
			if err != nil {
				return err
			}
			return sendSingle(c, e, "close_mint_config", name, part)
		},
	}
}

// sendSingle submits parts as one transaction outside the batch pipeline.
func sendSingle(c *cli.Context, e *env, operation, config string, parts ...assembler.Part) error {
	tx, err := e.assembler.Transaction(parts...)
	if err != nil {
		return err
	}
	sig, err := e.submit(c.Context, tx)
	if err != nil {
		return fmt.Errorf("%s failed: %w", operation, err)
	}
	e.logger.InfoContext(c.Context, "transaction confirmed",
		"operation", operation,
		"config", config,
		"signature", sig,
	)

	if wantJSON(c) {
		return outputJSON(c, map[string]string{
			"operation": operation,
			"config":    config,
			"signature": sig,
		})
	}
	fmt.Fprintf(c.App.Writer, "%s %s: %s\n", operation, config, sig)
	return nil
}
