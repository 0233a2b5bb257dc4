package solana

import (
	"context"
	"fmt"

	"github.com/brojonat/mintgen/service/batch"
	"github.com/brojonat/mintgen/service/protocol"
	"github.com/brojonat/mintgen/service/resolver"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

// maxAccountsPerRequest is the getMultipleAccounts limit.
const maxAccountsPerRequest = 100

// FetchHolderSnapshot loads the funded token accounts of holder and, when
// withMetadata is set, the metadata of every held mint. Token accounts keep
// the order the node returned them in.
func (c *Client) FetchHolderSnapshot(ctx context.Context, holder solana.PublicKey, withMetadata bool) (*resolver.HolderSnapshot, error) {
	res, err := withRetry(ctx, c, "GetTokenAccountsByOwner", func(ctx context.Context) (*rpc.GetTokenAccountsResult, error) {
		return c.rpc.GetTokenAccountsByOwner(ctx, holder,
			&rpc.GetTokenAccountsConfig{ProgramId: protocol.TokenProgramID.ToPointer()},
			&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingBase64},
		)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get token accounts of %s: %w", holder, err)
	}

	snapshot := &resolver.HolderSnapshot{Holder: holder}
	if res != nil {
		for _, keyed := range res.Value {
			if keyed == nil || keyed.Account.Data == nil {
				continue
			}
			var acc token.Account
			if err := bin.NewBinDecoder(keyed.Account.Data.GetBinary()).Decode(&acc); err != nil {
				c.logger.WarnContext(ctx, "skipping undecodable token account",
					"token_account", keyed.Pubkey.String(),
					"error", err,
				)
				continue
			}
			if acc.Amount == 0 {
				continue
			}
			snapshot.TokenAccounts = append(snapshot.TokenAccounts, resolver.TokenAccount{
				Address: keyed.Pubkey,
				Mint:    acc.Mint,
				Amount:  acc.Amount,
			})
		}
	}

	c.logger.DebugContext(ctx, "fetched holder token accounts",
		"holder", holder.String(),
		"funded", len(snapshot.TokenAccounts),
	)

	if !withMetadata || len(snapshot.TokenAccounts) == 0 {
		return snapshot, nil
	}

	metadata, err := c.fetchMintMetadata(ctx, snapshot.TokenAccounts)
	if err != nil {
		return nil, err
	}
	snapshot.Metadata = metadata
	return snapshot, nil
}

func (c *Client) fetchMintMetadata(ctx context.Context, accounts []resolver.TokenAccount) (map[solana.PublicKey]resolver.MintMetadata, error) {
	ids := make([]solana.PublicKey, 0, len(accounts))
	seen := make(map[solana.PublicKey]struct{}, len(accounts))
	for _, acc := range accounts {
		if _, ok := seen[acc.Mint]; ok {
			continue
		}
		seen[acc.Mint] = struct{}{}
		ids = append(ids, protocol.FindMetadataID(acc.Mint))
	}

	chunks, err := batch.Partition(ids, maxAccountsPerRequest)
	if err != nil {
		return nil, err
	}

	out := make(map[solana.PublicKey]resolver.MintMetadata, len(ids))
	for _, chunk := range chunks {
		res, err := withRetry(ctx, c, "GetMultipleAccounts", func(ctx context.Context) (*rpc.GetMultipleAccountsResult, error) {
			return c.rpc.GetMultipleAccounts(ctx, chunk...)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get metadata accounts: %w", err)
		}
		if res == nil {
			continue
		}
		for i, account := range res.Value {
			if account == nil || account.Data == nil {
				continue
			}
			md, err := protocol.DecodeMetadata(account.Data.GetBinary())
			if err != nil {
				c.logger.WarnContext(ctx, "skipping undecodable metadata",
					"metadata", chunk[i].String(),
					"error", err,
				)
				continue
			}
			out[md.Mint] = toMintMetadata(md)
		}
	}
	return out, nil
}

func toMintMetadata(md *protocol.Metadata) resolver.MintMetadata {
	out := resolver.MintMetadata{Mint: md.Mint}
	if md.Collection != nil {
		out.Collection = &resolver.Collection{Key: md.Collection.Key, Verified: md.Collection.Verified}
	}
	for _, creator := range md.CreatorList() {
		out.Creators = append(out.Creators, resolver.Creator{Address: creator.Address, Verified: creator.Verified})
	}
	return out
}
