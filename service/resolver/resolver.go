// Package resolver computes the ordered remaining accounts the mint
// instruction reads for a phase's token checks and authorization.
//
// The program reads remaining accounts positionally, so the output order is
// part of the contract: token program and associated token program first,
// then one block per token check, then the authorization block.
package resolver

import (
	"errors"
	"fmt"

	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrAssetNotFound means the holder has no funded token account qualifying for a check.
	ErrAssetNotFound = errors.New("no qualifying token account found")

	// ErrMissingQualifyingAsset means a transfer or burn check resolved no mint to act on.
	ErrMissingQualifyingAsset = errors.New("no qualifying asset to transfer or burn")

	// ErrInvalidCheckConfiguration means a check is malformed, e.g. transfer without a target.
	ErrInvalidCheckConfiguration = errors.New("invalid token check configuration")

	// ErrMissingHolder means token checks or an authorization need a signing
	// holder but the snapshot names none.
	ErrMissingHolder = errors.New("snapshot has no holder")
)

// CheckError reports which token check failed to resolve.
type CheckError struct {
	Index int
	Check protocol.TokenCheck
	Err   error
}

func (e *CheckError) Error() string {
	return fmt.Sprintf("token check %d (%s %s %s): %v",
		e.Index, e.Check.AddressKind, e.Check.Mode, e.Check.Address, e.Err)
}

func (e *CheckError) Unwrap() error { return e.Err }

// IDs identify the config, phase and user the accounts are resolved for.
type IDs struct {
	Config     solana.PublicKey
	PhaseIndex uint8
	User       solana.PublicKey
}

// Resolver derives authorization records for one program deployment.
type Resolver struct {
	pda protocol.PDA
}

// New returns a resolver for the deployment pda derives addresses for.
func New(pda protocol.PDA) *Resolver {
	return &Resolver{pda: pda}
}

// Resolve resolves against the default program deployment.
func Resolve(
	checks []protocol.TokenCheck,
	auth *protocol.AuthorizationCheck,
	snapshot *HolderSnapshot,
	ids IDs,
) ([]*solana.AccountMeta, error) {
	return New(protocol.DefaultPDA).Resolve(checks, auth, snapshot, ids)
}

// Resolve returns the remaining accounts for the token checks and optional
// authorization of a phase. The snapshot is only read. Configuration errors
// are reported before any snapshot lookup.
func (r *Resolver) Resolve(
	checks []protocol.TokenCheck,
	auth *protocol.AuthorizationCheck,
	snapshot *HolderSnapshot,
	ids IDs,
) ([]*solana.AccountMeta, error) {
	if err := ValidateChecks(checks); err != nil {
		return nil, err
	}

	if len(checks) == 0 && auth == nil {
		return nil, nil
	}
	if snapshot == nil || snapshot.Holder.IsZero() {
		return nil, ErrMissingHolder
	}
	holder := snapshot.Holder

	var metas []*solana.AccountMeta
	if len(checks) > 0 {
		metas = append(metas,
			solana.Meta(protocol.TokenProgramID),
			solana.Meta(protocol.AssociatedTokenProgramID),
		)
	}

	for i, check := range checks {
		checkMetas, err := resolveCheck(check, holder, snapshot)
		if err != nil {
			return nil, &CheckError{Index: i, Check: check, Err: err}
		}
		metas = append(metas, checkMetas...)
	}

	if auth != nil {
		metas = append(metas, r.AuthorizationAccounts(ids, holder)...)
	}
	return metas, nil
}

// ValidateChecks reports the first malformed check.
func ValidateChecks(checks []protocol.TokenCheck) error {
	for i, check := range checks {
		if check.Mode == protocol.CheckModeTransfer && check.TransferTarget == nil {
			return &CheckError{Index: i, Check: check, Err: ErrInvalidCheckConfiguration}
		}
	}
	return nil
}

// AuthorizationAccounts returns the user, the holder as signer and the
// authorization record of (config, phase, user).
func (r *Resolver) AuthorizationAccounts(ids IDs, holder solana.PublicKey) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.Meta(ids.User),
		solana.Meta(holder).SIGNER(),
		solana.Meta(r.pda.MintPhaseAuthorizationID(ids.Config, ids.PhaseIndex, ids.User)).WRITE(),
	}
}

func resolveCheck(check protocol.TokenCheck, holder solana.PublicKey, snapshot *HolderSnapshot) ([]*solana.AccountMeta, error) {
	metas := []*solana.AccountMeta{solana.Meta(holder).SIGNER()}

	var mint *solana.PublicKey
	switch check.AddressKind {
	case protocol.AddressKindMint:
		if !check.IsNative() {
			acc, ok := snapshot.findByMint(check.Address)
			if !ok {
				return nil, ErrAssetNotFound
			}
			metas = append(metas, solana.Meta(acc.Address).WRITE())
			mint = &acc.Mint
		}
	case protocol.AddressKindCollection:
		acc, ok := snapshot.findByCollection(check.Address)
		if !ok {
			return nil, ErrAssetNotFound
		}
		metas = append(metas,
			solana.Meta(acc.Address).WRITE(),
			solana.Meta(protocol.FindMetadataID(acc.Mint)).WRITE(),
		)
		mint = &acc.Mint
	case protocol.AddressKindCreator:
		acc, ok := snapshot.findByCreator(check.Address)
		if !ok {
			return nil, ErrAssetNotFound
		}
		// The program expects the creator's metadata account here, not the held mint's.
		metas = append(metas,
			solana.Meta(acc.Address).WRITE(),
			solana.Meta(protocol.FindMetadataID(check.Address)).WRITE(),
		)
		mint = &acc.Mint
	default:
		return nil, fmt.Errorf("%w: unknown address kind %d", ErrInvalidCheckConfiguration, check.AddressKind)
	}

	switch check.Mode {
	case protocol.CheckModeCheck:
	case protocol.CheckModeTransfer:
		target := *check.TransferTarget
		if check.IsNative() {
			metas = append(metas, solana.Meta(target).WRITE())
			break
		}
		if mint == nil {
			return nil, ErrMissingQualifyingAsset
		}
		metas = append(metas,
			solana.Meta(target),
			solana.Meta(protocol.FindAssociatedTokenAddress(target, *mint)).WRITE(),
			solana.Meta(*mint).WRITE(),
		)
	case protocol.CheckModeBurn:
		if mint == nil {
			return nil, ErrMissingQualifyingAsset
		}
		metas = append(metas, solana.Meta(*mint).WRITE())
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidCheckConfiguration, check.Mode)
	}
	return metas, nil
}

// NeedsMetadata reports whether any check requires mint metadata in the snapshot.
func NeedsMetadata(checks []protocol.TokenCheck) bool {
	for _, check := range checks {
		if check.AddressKind != protocol.AddressKindMint {
			return true
		}
	}
	return false
}
