package solana

import (
	"context"
	"errors"
	"fmt"

	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// ProgramAccount is a decoded program account and its address.
type ProgramAccount[T any] struct {
	Address solana.PublicKey `json:"address"`
	Account *T               `json:"account"`
}

// FetchAccountData returns the raw data of an account.
func (c *Client) FetchAccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	res, err := withRetry(ctx, c, "GetAccountInfo", func(ctx context.Context) (*rpc.GetAccountInfoResult, error) {
		return c.rpc.GetAccountInfo(ctx, address)
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	if res == nil || res.Value == nil || res.Value.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	return res.Value.Data.GetBinary(), nil
}

// FetchMintConfig returns the decoded config and its raw data. The raw data
// carries the entry slots used for idempotent entry updates.
func (c *Client) FetchMintConfig(ctx context.Context, id solana.PublicKey) (*protocol.MintConfig, []byte, error) {
	data, err := c.FetchAccountData(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := protocol.DecodeMintConfig(data)
	if err != nil {
		return nil, nil, fmt.Errorf("mint config %s: %w", id, err)
	}
	return cfg, data, nil
}

// ListMintPhaseAuthorizations returns the authorization records of a config,
// restricted to one phase when phase is set.
func (c *Client) ListMintPhaseAuthorizations(ctx context.Context, mintConfig solana.PublicKey, phase *uint8) ([]ProgramAccount[protocol.MintPhaseAuthorization], error) {
	return listProgramAccounts(ctx, c, protocol.AccountMintPhaseAuthorization,
		protocol.MintPhaseAuthorizationFilters(mintConfig, phase),
		protocol.DecodeMintPhaseAuthorization,
	)
}

// ListPendingReleases returns the tokens of a config still waiting for release.
func (c *Client) ListPendingReleases(ctx context.Context, mintConfig solana.PublicKey) ([]ProgramAccount[protocol.OutputMintPendingRelease], error) {
	return listProgramAccounts(ctx, c, protocol.AccountOutputMintPendingRelease,
		protocol.PendingReleaseFilters(mintConfig),
		protocol.DecodeOutputMintPendingRelease,
	)
}

// ListMintConfigsByAuthority returns every config administered by authority.
func (c *Client) ListMintConfigsByAuthority(ctx context.Context, authority solana.PublicKey) ([]ProgramAccount[protocol.MintConfig], error) {
	return listProgramAccounts(ctx, c, protocol.AccountMintConfig,
		protocol.MintConfigsByAuthorityFilters(authority),
		protocol.DecodeMintConfig,
	)
}

func listProgramAccounts[T any](
	ctx context.Context,
	c *Client,
	name string,
	filters []rpc.RPCFilter,
	decode func([]byte) (*T, error),
) ([]ProgramAccount[T], error) {
	res, err := withRetry(ctx, c, "GetProgramAccounts", func(ctx context.Context) (rpc.GetProgramAccountsResult, error) {
		return c.rpc.GetProgramAccountsWithOpts(ctx, c.program.ID(), &rpc.GetProgramAccountsOpts{
			Encoding: solana.EncodingBase64,
			Filters:  filters,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s accounts: %w", name, err)
	}

	out := make([]ProgramAccount[T], 0, len(res))
	for _, keyed := range res {
		if keyed == nil || keyed.Account == nil || keyed.Account.Data == nil {
			continue
		}
		decoded, err := decode(keyed.Account.Data.GetBinary())
		if err != nil {
			c.logger.WarnContext(ctx, "skipping undecodable account",
				"type", name,
				"address", keyed.Pubkey.String(),
				"error", err,
			)
			continue
		}
		out = append(out, ProgramAccount[T]{Address: keyed.Pubkey, Account: decoded})
	}

	c.logger.DebugContext(ctx, "listed program accounts",
		"type", name,
		"count", len(out),
	)
	return out, nil
}
