// Package assembler turns resolved accounts and protocol state into the
// instructions each batch operation submits.
package assembler

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/brojonat/mintgen/service/batch"
	"github.com/brojonat/mintgen/service/protocol"
	"github.com/brojonat/mintgen/service/resolver"
	solanasvc "github.com/brojonat/mintgen/service/solana"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// DefaultComputeUnits is the compute unit limit requested per transaction.
const DefaultComputeUnits uint32 = 2_000_000

// ErrInvalidPhase is returned when a phase index does not exist in the config.
var ErrInvalidPhase = errors.New("invalid mint phase")

// Part is the contribution of one operation to a transaction.
type Part struct {
	Instructions []solana.Instruction
	Signers      []solana.PrivateKey
}

// Assembler builds operations for one program deployment.
type Assembler struct {
	program      *protocol.Program
	resolver     *resolver.Resolver
	computeUnits uint32
}

// New returns an assembler for program. Zero computeUnits selects DefaultComputeUnits.
func New(program *protocol.Program, computeUnits uint32) *Assembler {
	if computeUnits == 0 {
		computeUnits = DefaultComputeUnits
	}
	return &Assembler{
		program:      program,
		resolver:     resolver.New(program.PDA()),
		computeUnits: computeUnits,
	}
}

// Program is the deployment instructions are built for.
func (a *Assembler) Program() *protocol.Program {
	return a.program
}

// Transaction joins parts into one transaction behind a single compute
// budget instruction. Parts without instructions contribute nothing; when no
// part has any, batch.ErrEmptyChunk is returned so the pipeline drops it.
func (a *Assembler) Transaction(parts ...Part) (*solanasvc.Tx, error) {
	tx := &solanasvc.Tx{}
	for _, p := range parts {
		tx.Instructions = append(tx.Instructions, p.Instructions...)
		tx.Signers = append(tx.Signers, p.Signers...)
	}
	if len(tx.Instructions) == 0 {
		return nil, batch.ErrEmptyChunk
	}
	budget, err := ComputeBudget(a.computeUnits)
	if err != nil {
		return nil, err
	}
	tx.Instructions = append([]solana.Instruction{budget}, tx.Instructions...)
	return tx, nil
}

type setComputeUnitLimit struct {
	Discriminator uint8
	Units         uint32
}

// ComputeBudget builds a SetComputeUnitLimit instruction.
func ComputeBudget(units uint32) (solana.Instruction, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(setComputeUnitLimit{Discriminator: 2, Units: units}); err != nil {
		return nil, fmt.Errorf("failed to encode compute budget: %w", err)
	}
	return solana.NewInstruction(protocol.ComputeBudgetProgramID, solana.AccountMetaSlice{}, buf.Bytes()), nil
}

// MintParams describe one mint.
type MintParams struct {
	ConfigID   solana.PublicKey
	Config     *protocol.MintConfig
	PhaseIndex uint8

	// User receives the output token; Payer pays, signs and is the holder
	// whose assets satisfy token checks and authorization.
	User  solana.PublicKey
	Payer solana.PublicKey

	// Snapshot of Payer's holdings. Nil means Payer holds nothing.
	Snapshot *resolver.HolderSnapshot

	// OutputMint is used for uncompressed outputs; a fresh keypair is
	// generated when it is nil.
	OutputMint solana.PrivateKey
}

// BuildMint assembles the mint instruction for params. Uncompressed outputs
// return the output mint keypair as an extra signer.
func (a *Assembler) BuildMint(params MintParams) (Part, error) {
	cfg := params.Config
	if cfg == nil {
		return Part{}, errors.New("mint config is required")
	}
	phase, ok := cfg.Phase(params.PhaseIndex)
	if !ok {
		return Part{}, fmt.Errorf("%w: %d of %d", ErrInvalidPhase, params.PhaseIndex, len(cfg.MintPhases))
	}

	snapshot := params.Snapshot
	if snapshot == nil || snapshot.Holder.IsZero() {
		s := resolver.HolderSnapshot{}
		if snapshot != nil {
			s = *snapshot
		}
		s.Holder = params.Payer
		snapshot = &s
	}

	remaining, err := a.resolver.Resolve(phase.TokenChecks, phase.Authorization, snapshot, resolver.IDs{
		Config:     params.ConfigID,
		PhaseIndex: params.PhaseIndex,
		User:       params.User,
	})
	if err != nil {
		return Part{}, err
	}

	var part Part
	out := cfg.OutputMintConfig
	if out.MerkleTree != nil {
		remaining = append(remaining, resolver.CompressedAccounts(*out.MerkleTree)...)
	} else {
		outputMint := params.OutputMint
		if len(outputMint) == 0 {
			outputMint, err = solana.NewRandomPrivateKey()
			if err != nil {
				return Part{}, fmt.Errorf("failed to generate output mint: %w", err)
			}
		}
		part.Signers = append(part.Signers, outputMint)
		remaining = append(remaining, resolver.NFTAccounts(outputMint.PublicKey(), params.User, out.Ruleset)...)
		if out.Collection != nil {
			remaining = append(remaining, resolver.CollectionAccounts(params.ConfigID, cfg.Authority, *out.Collection)...)
		}
		if out.ReleaseAuthority != nil {
			remaining = append(remaining, a.resolver.ReleaseAccounts(params.ConfigID, outputMint.PublicKey())...)
		}
	}

	ix, err := a.program.Mint(protocol.MintAccounts{
		MintConfig: params.ConfigID,
		User:       params.User,
		Payer:      params.Payer,
		Collector:  cfg.Authority,
	}, params.PhaseIndex, remaining)
	if err != nil {
		return Part{}, err
	}
	part.Instructions = append(part.Instructions, ix)
	return part, nil
}

// MintTargets expands authorization records into one mint per remaining
// allowance, ordered by user address. Unlimited records contribute nothing.
func MintTargets(auths []*protocol.MintPhaseAuthorization) []solana.PublicKey {
	sorted := make([]*protocol.MintPhaseAuthorization, 0, len(auths))
	for _, a := range auths {
		if a != nil {
			sorted = append(sorted, a)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].User.String() < sorted[j].User.String()
	})

	var targets []solana.PublicKey
	for _, a := range sorted {
		for range a.RemainingOrZero() {
			targets = append(targets, a.User)
		}
	}
	return targets
}
