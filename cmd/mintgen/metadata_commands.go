package main

import (
	"fmt"

	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"
)

func metadataCommands() *cli.Command {
	return &cli.Command{
		Name:  "metadata",
		Usage: "Token metadata inspection commands",
		Subcommands: []*cli.Command{
			metadataGetCommand(),
			holdingsCommand(),
		},
	}
}

func metadataGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show the Metaplex metadata of a mint",
		ArgsUsage: "<mint>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: mint address")
			}
			mint, err := solana.PublicKeyFromBase58(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid mint: %w", err)
			}

			e, err := newEnv(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			address := protocol.FindMetadataID(mint)
			data, err := e.client.FetchAccountData(c.Context, address)
			if err != nil {
				return err
			}
			md, err := protocol.DecodeMetadata(data)
			if err != nil {
				return fmt.Errorf("metadata %s: %w", address, err)
			}

			if wantJSON(c) {
				return outputJSON(c, md)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Address:          %s\n", address)
			fmt.Fprintf(w, "Mint:             %s\n", md.Mint)
			fmt.Fprintf(w, "Update Authority: %s\n", md.UpdateAuthority)
			fmt.Fprintf(w, "Name:             %s\n", md.Data.Name)
			fmt.Fprintf(w, "Symbol:           %s\n", md.Data.Symbol)
			fmt.Fprintf(w, "URI:              %s\n", md.Data.URI)
			fmt.Fprintf(w, "Seller Fee:       %d bps\n", md.Data.SellerFeeBasisPoints)
			fmt.Fprintf(w, "Mutable:          %t\n", md.IsMutable)
			if md.Collection != nil {
				fmt.Fprintf(w, "Collection:       %s (verified: %t)\n", md.Collection.Key, md.Collection.Verified)
			}
			for _, creator := range md.CreatorList() {
				fmt.Fprintf(w, "Creator:          %s %d%% (verified: %t)\n", creator.Address, creator.Share, creator.Verified)
			}
			return nil
		},
	}
}

func holdingsCommand() *cli.Command {
	return &cli.Command{
		Name:      "holdings",
		Usage:     "Show the funded token accounts token checks are resolved against",
		ArgsUsage: "<owner>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "with-metadata",
				Usage: "Also fetch the collection and creators of every held mint",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: owner address")
			}
			owner, err := solana.PublicKeyFromBase58(c.Args().First())
			if err != nil {
				return fmt.Errorf("invalid owner: %w", err)
			}

			e, err := newEnv(c, false)
			if err != nil {
				return err
			}
			defer e.Close()

			snapshot, err := e.client.FetchHolderSnapshot(c.Context, owner, c.Bool("with-metadata"))
			if err != nil {
				return err
			}

			if wantJSON(c) {
				return outputJSON(c, snapshot)
			}

			tw := newTable(c)
			fmt.Fprintln(tw, "MINT\tAMOUNT\tTOKEN ACCOUNT\tCOLLECTION")
			for _, ta := range snapshot.TokenAccounts {
				collection := "-"
				if md, ok := snapshot.Metadata[ta.Mint]; ok && md.Collection != nil {
					collection = md.Collection.Key.String()
					if !md.Collection.Verified {
						collection += " (unverified)"
					}
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", ta.Mint, ta.Amount, ta.Address, collection)
			}
			tw.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d token accounts\n", len(snapshot.TokenAccounts))
			return nil
		},
	}
}
