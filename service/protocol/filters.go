package protocol

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// discriminatorFilter matches accounts of the named type.
func discriminatorFilter(name string) rpc.RPCFilter {
	disc := AccountDiscriminator(name)
	return rpc.RPCFilter{
		Memcmp: &rpc.RPCFilterMemcmp{
			Offset: 0,
			Bytes:  solana.Base58(disc[:]),
		},
	}
}

func memcmp(offset uint64, b []byte) rpc.RPCFilter {
	return rpc.RPCFilter{
		Memcmp: &rpc.RPCFilterMemcmp{
			Offset: offset,
			Bytes:  solana.Base58(b),
		},
	}
}

// MintConfigsByAuthorityFilters selects mint configs administered by authority.
func MintConfigsByAuthorityFilters(authority solana.PublicKey) []rpc.RPCFilter {
	return []rpc.RPCFilter{
		discriminatorFilter(AccountMintConfig),
		memcmp(OffsetMintConfigAuthority, authority.Bytes()),
	}
}

// MintPhaseAuthorizationFilters selects authorization records of a config,
// optionally restricted to one phase.
func MintPhaseAuthorizationFilters(mintConfig solana.PublicKey, phase *uint8) []rpc.RPCFilter {
	filters := []rpc.RPCFilter{
		discriminatorFilter(AccountMintPhaseAuthorization),
		memcmp(OffsetAuthorizationMintConfig, mintConfig.Bytes()),
	}
	if phase != nil {
		filters = append(filters, memcmp(OffsetAuthorizationPhase, []byte{*phase}))
	}
	return filters
}

// PendingReleaseFilters selects pending releases of a config.
func PendingReleaseFilters(mintConfig solana.PublicKey) []rpc.RPCFilter {
	return []rpc.RPCFilter{
		discriminatorFilter(AccountOutputMintPendingRelease),
		memcmp(OffsetPendingReleaseMintConfig, mintConfig.Bytes()),
	}
}
