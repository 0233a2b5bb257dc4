package assembler

import (
	"errors"

	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
)

// ErrNoReleaseAuthority is returned when releasing from a config without a release authority.
var ErrNoReleaseAuthority = errors.New("mint config has no release authority")

// BuildRelease releases one pending output mint to its holder.
// releaseAuthority signs and pays.
func (a *Assembler) BuildRelease(configID solana.PublicKey, cfg *protocol.MintConfig, pending *protocol.OutputMintPendingRelease, releaseAuthority solana.PublicKey) (Part, error) {
	ix, err := a.program.ReleaseOutputMint(protocol.ReleaseAccounts{
		MintConfig:       configID,
		Mint:             pending.Mint,
		Holder:           pending.Holder,
		Payer:            releaseAuthority,
		ReleaseAuthority: releaseAuthority,
		Ruleset:          cfg.OutputMintConfig.Ruleset,
	})
	if err != nil {
		return Part{}, err
	}
	return Part{Instructions: []solana.Instruction{ix}}, nil
}

// BuildRemoveReleaseAuthority clears the release authority of cfg so new
// mints are no longer held. Everything else is kept as it is.
func (a *Assembler) BuildRemoveReleaseAuthority(configID solana.PublicKey, cfg *protocol.MintConfig, authority solana.PublicKey) (Part, error) {
	if cfg.OutputMintConfig.ReleaseAuthority == nil {
		return Part{}, ErrNoReleaseAuthority
	}
	args := protocol.UpdateArgsFromConfig(cfg)
	args.OutputMintConfig.ReleaseAuthority = nil
	return single(a.program.UpdateMintConfig(configID, authority, authority, args))
}
