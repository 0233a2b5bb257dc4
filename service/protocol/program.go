package protocol

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

// Well-known program IDs the mint generator interacts with.
var (
	// ProgramID is the default deployment of the mint generator program.
	ProgramID = solana.MustPublicKeyFromBase58("mintjBhypUqvbKvCePPsQN55AYBY3DwFWpuR5PDURdH")

	// SystemProgramID is the native SOL program
	SystemProgramID = solana.SystemProgramID

	// TokenProgramID is the SPL Token program
	TokenProgramID = solana.TokenProgramID

	// AssociatedTokenProgramID is the SPL Associated Token Account program
	AssociatedTokenProgramID = solana.SPLAssociatedTokenAccountProgramID

	// TokenMetadataProgramID is the Metaplex Token Metadata program
	TokenMetadataProgramID = solana.TokenMetadataProgramID

	// TokenAuthRulesProgramID is the Metaplex Token Auth Rules program (pNFT rulesets)
	TokenAuthRulesProgramID = solana.MustPublicKeyFromBase58("auth9SigNpDKz4sJJ1DfCTuZrZNSAgh9sFD3rboVmgg")

	// BubblegumProgramID is the Metaplex compressed NFT program
	BubblegumProgramID = solana.MustPublicKeyFromBase58("BGUMAp9Gq7iTEuizy4pqaxsTyUCBK68MDfK752saRPUY")

	// AccountCompressionProgramID is the SPL Account Compression program
	AccountCompressionProgramID = solana.MustPublicKeyFromBase58("cmtDvXumGCrqC1Age74AVPhSRVXJMd8PJS91L8KbNCK")

	// NoopProgramID is the SPL Noop program used as the compression log wrapper
	NoopProgramID = solana.MustPublicKeyFromBase58("noopb9bkMVfRPU8AsbpTUg8AETHYsQ7zHAXhY5V3XdG")

	// SysVarSlotHashesID is the slot hashes sysvar used for pseudo random entry selection
	SysVarSlotHashesID = solana.MustPublicKeyFromBase58("SysvarS1otHashes111111111111111111111111111")

	// SysVarInstructionsID is the instructions sysvar required by pNFT operations
	SysVarInstructionsID = solana.MustPublicKeyFromBase58("Sysvar1nstructions1111111111111111111111111")

	// ComputeBudgetProgramID sets per transaction compute limits
	ComputeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")
)

// Mint entry layout. Entries are stored as a packed array at the tail of the
// mint config account, each slot holding three borsh strings padded with NULs.
const (
	StringPrefixLength = 4
	MaxNameLength      = 32
	MaxSymbolLength    = 10
	MaxURILength       = 200
	MintEntrySize      = MaxNameLength + MaxSymbolLength + MaxURILength
)

// Byte offsets used by getProgramAccounts filters.
// Every account starts with an 8 byte discriminator followed by a bump byte.
const (
	offsetAfterBump = 8 + 1

	// OffsetMintConfigAuthority is where MintConfig.authority starts.
	OffsetMintConfigAuthority = offsetAfterBump

	// OffsetAuthorizationMintConfig is where MintPhaseAuthorization.mint_config starts.
	OffsetAuthorizationMintConfig = offsetAfterBump

	// OffsetAuthorizationPhase is where MintPhaseAuthorization.mint_phase_index starts.
	OffsetAuthorizationPhase = offsetAfterBump + 32

	// OffsetPendingReleaseMintConfig is where OutputMintPendingRelease.mint_config starts.
	OffsetPendingReleaseMintConfig = offsetAfterBump
)

// Account names as declared by the program; they seed the account discriminators.
const (
	AccountMintConfig               = "MintConfig"
	AccountMintPhaseAuthorization   = "MintPhaseAuthorization"
	AccountOutputMintPendingRelease = "OutputMintPendingRelease"
)

// Instruction names as declared by the program; they seed the instruction discriminators.
const (
	InstructionInitMintConfig              = "init_mint_config"
	InstructionUpdateMintConfig            = "update_mint_config"
	InstructionSetMintConfigMetadata       = "set_mint_config_metadata"
	InstructionCloseMintConfig             = "close_mint_config"
	InstructionSetMintPhaseAuthorization   = "set_mint_phase_authorization"
	InstructionCloseMintPhaseAuthorization = "close_mint_phase_authorization"
	InstructionSetMintEntry                = "set_mint_entry"
	InstructionMint                        = "mint"
	InstructionReleaseOutputMint           = "release_output_mint"
)

// AccountDiscriminator returns the 8 byte prefix Anchor writes at the start of an account.
func AccountDiscriminator(name string) [8]byte {
	return sighash("account", name)
}

// InstructionDiscriminator returns the 8 byte prefix Anchor expects at the start of instruction data.
func InstructionDiscriminator(name string) [8]byte {
	return sighash("global", name)
}

func sighash(namespace, name string) [8]byte {
	sum := sha256.Sum256([]byte(namespace + ":" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}
