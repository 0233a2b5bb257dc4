package protocol

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// InitMintConfigArgs are the arguments of init_mint_config.
type InitMintConfigArgs struct {
	Authority        solana.PublicKey `json:"authority"`
	Name             string           `json:"name"`
	OutputMintConfig OutputMintConfig `json:"output_mint_config"`
	MintPhases       []MintPhase      `json:"mint_phases"`
	Metadata         string           `json:"metadata"`
}

// UpdateMintConfigArgs are the arguments of update_mint_config.
type UpdateMintConfigArgs struct {
	Authority        solana.PublicKey `json:"authority"`
	OutputMintConfig OutputMintConfig `json:"output_mint_config"`
	MintPhases       []MintPhase      `json:"mint_phases"`
	Metadata         string           `json:"metadata"`
}

// UpdateArgsFromConfig returns update arguments that keep cfg as it is.
func UpdateArgsFromConfig(cfg *MintConfig) UpdateMintConfigArgs {
	return UpdateMintConfigArgs{
		Authority:        cfg.Authority,
		OutputMintConfig: cfg.OutputMintConfig,
		MintPhases:       cfg.MintPhases,
		Metadata:         cfg.Metadata,
	}
}

type setMintConfigMetadataArgs struct {
	Metadata string
}

type setMintPhaseAuthorizationArgs struct {
	Remaining   *uint64 `bin:"optional"`
	User        solana.PublicKey
	MintPhaseIx uint8
}

type setMintEntryArgs struct {
	Index  uint64
	Name   string
	Symbol string
	URI    string
}

type mintArgs struct {
	MintPhaseIx uint8
}

// Program builds instructions for one deployment of the mint generator program.
type Program struct {
	id  solana.PublicKey
	pda PDA
}

// NewProgram returns an instruction builder for the program deployed at id.
func NewProgram(id solana.PublicKey) *Program {
	return &Program{id: id, pda: NewPDA(id)}
}

// ID is the program address.
func (p *Program) ID() solana.PublicKey { return p.id }

// PDA derives addresses owned by this deployment.
func (p *Program) PDA() PDA { return p.pda }

// InitMintConfig creates the config PDA for args.Name.
func (p *Program) InitMintConfig(authority, payer solana.PublicKey, args InitMintConfigArgs) (solana.Instruction, error) {
	return p.build(InstructionInitMintConfig, args, solana.AccountMetaSlice{
		solana.Meta(p.pda.MintConfigID(args.Name)).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(SystemProgramID),
	})
}

// UpdateMintConfig replaces the authority, output config, phases and metadata of a config.
func (p *Program) UpdateMintConfig(mintConfig, authority, payer solana.PublicKey, args UpdateMintConfigArgs) (solana.Instruction, error) {
	return p.build(InstructionUpdateMintConfig, args, solana.AccountMetaSlice{
		solana.Meta(mintConfig).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(SystemProgramID),
	})
}

// SetMintConfigMetadata replaces the JSON metadata string of a config.
func (p *Program) SetMintConfigMetadata(mintConfig, authority, payer solana.PublicKey, metadata string) (solana.Instruction, error) {
	return p.build(InstructionSetMintConfigMetadata, setMintConfigMetadataArgs{Metadata: metadata}, solana.AccountMetaSlice{
		solana.Meta(mintConfig).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(SystemProgramID),
	})
}

// CloseMintConfig closes a config and returns its rent to authority.
func (p *Program) CloseMintConfig(mintConfig, authority solana.PublicKey) (solana.Instruction, error) {
	return p.build(InstructionCloseMintConfig, nil, solana.AccountMetaSlice{
		solana.Meta(mintConfig).WRITE(),
		solana.Meta(authority).SIGNER(),
	})
}

// SetMintPhaseAuthorization creates or overwrites the authorization record of
// (mintConfig, phase, user). A nil remaining means unlimited.
func (p *Program) SetMintPhaseAuthorization(mintConfig, authority, payer, user solana.PublicKey, phase uint8, remaining *uint64) (solana.Instruction, error) {
	args := setMintPhaseAuthorizationArgs{Remaining: remaining, User: user, MintPhaseIx: phase}
	return p.build(InstructionSetMintPhaseAuthorization, args, solana.AccountMetaSlice{
		solana.Meta(p.pda.MintPhaseAuthorizationID(mintConfig, phase, user)).WRITE(),
		solana.Meta(mintConfig),
		solana.Meta(authority).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(SystemProgramID),
	})
}

// CloseMintPhaseAuthorization closes an authorization record.
func (p *Program) CloseMintPhaseAuthorization(mintConfig, authority, user solana.PublicKey, phase uint8) (solana.Instruction, error) {
	return p.build(InstructionCloseMintPhaseAuthorization, nil, solana.AccountMetaSlice{
		solana.Meta(p.pda.MintPhaseAuthorizationID(mintConfig, phase, user)).WRITE(),
		solana.Meta(mintConfig),
		solana.Meta(authority).SIGNER(),
	})
}

// SetMintEntry writes one entry slot. Only allowed before minting starts.
func (p *Program) SetMintEntry(mintConfig, authority, payer solana.PublicKey, entry MintEntry) (solana.Instruction, error) {
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	args := setMintEntryArgs{Index: entry.Index, Name: entry.Name, Symbol: entry.Symbol, URI: entry.URI}
	return p.build(InstructionSetMintEntry, args, solana.AccountMetaSlice{
		solana.Meta(mintConfig).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(SystemProgramID),
	})
}

// MintAccounts are the fixed accounts of the mint instruction.
type MintAccounts struct {
	MintConfig solana.PublicKey
	User       solana.PublicKey
	Payer      solana.PublicKey
	Collector  solana.PublicKey
}

// Mint builds the mint instruction; remaining carries the positional tail the
// program reads for token checks, authorization and output accounts.
func (p *Program) Mint(accounts MintAccounts, phase uint8, remaining []*solana.AccountMeta) (solana.Instruction, error) {
	metas := solana.AccountMetaSlice{
		solana.Meta(accounts.MintConfig).WRITE(),
		solana.Meta(accounts.User),
		solana.Meta(accounts.Payer).WRITE().SIGNER(),
		solana.Meta(accounts.Collector).WRITE(),
		solana.Meta(SysVarSlotHashesID),
		solana.Meta(SystemProgramID),
	}
	metas = append(metas, remaining...)
	return p.build(InstructionMint, mintArgs{MintPhaseIx: phase}, metas)
}

// ReleaseAccounts identify a pending release.
type ReleaseAccounts struct {
	MintConfig       solana.PublicKey
	Mint             solana.PublicKey
	Holder           solana.PublicKey
	Payer            solana.PublicKey
	ReleaseAuthority solana.PublicKey
	Ruleset          *solana.PublicKey
}

// ReleaseOutputMint unlocks a token held pending release and closes the record.
func (p *Program) ReleaseOutputMint(accounts ReleaseAccounts) (solana.Instruction, error) {
	userTokenAccount := FindAssociatedTokenAddress(accounts.Holder, accounts.Mint)
	rules := TokenMetadataProgramID
	if accounts.Ruleset != nil {
		rules = *accounts.Ruleset
	}
	return p.build(InstructionReleaseOutputMint, nil, solana.AccountMetaSlice{
		solana.Meta(accounts.MintConfig).WRITE(),
		solana.Meta(p.pda.OutputMintPendingReleaseID(accounts.MintConfig, accounts.Mint)).WRITE(),
		solana.Meta(accounts.Holder).WRITE(),
		solana.Meta(userTokenAccount).WRITE(),
		solana.Meta(accounts.Mint),
		solana.Meta(FindMetadataID(accounts.Mint)).WRITE(),
		solana.Meta(FindEditionID(accounts.Mint)),
		solana.Meta(FindTokenRecordID(accounts.Mint, userTokenAccount)).WRITE(),
		solana.Meta(rules),
		solana.Meta(accounts.Payer).WRITE().SIGNER(),
		solana.Meta(accounts.ReleaseAuthority).WRITE().SIGNER(),
		solana.Meta(accounts.Holder).WRITE(),
		solana.Meta(SystemProgramID),
		solana.Meta(SysVarInstructionsID),
		solana.Meta(TokenProgramID),
		solana.Meta(TokenAuthRulesProgramID),
		solana.Meta(TokenMetadataProgramID),
	})
}

func (p *Program) build(name string, args interface{}, metas solana.AccountMetaSlice) (solana.Instruction, error) {
	data, err := EncodeInstructionData(name, args)
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(p.id, metas, data), nil
}

// EncodeInstructionData prefixes the borsh encoding of args with the instruction discriminator.
// A nil args encodes the discriminator alone.
func EncodeInstructionData(name string, args interface{}) ([]byte, error) {
	disc := InstructionDiscriminator(name)
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if args != nil {
		if err := bin.NewBorshEncoder(buf).Encode(args); err != nil {
			return nil, fmt.Errorf("failed to encode %s args: %w", name, err)
		}
	}
	return buf.Bytes(), nil
}
