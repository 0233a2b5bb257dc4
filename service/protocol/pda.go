package protocol

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// PDA seed prefixes.
const (
	MintConfigPrefix               = "mint-config"
	MintPhaseAuthorizationPrefix   = "authorization"
	OutputMintPendingReleasePrefix = "output-mint-release"

	metadataPrefix         = "metadata"
	editionSeed            = "edition"
	tokenRecordSeed        = "token_record"
	collectionDelegateSeed = "collection_delegate"
)

// PDA derives program addresses for a specific deployment of the program.
// The zero value is not usable; use NewPDA or DefaultPDA.
type PDA struct {
	programID solana.PublicKey
}

// NewPDA returns a PDA deriver for the given program deployment.
func NewPDA(programID solana.PublicKey) PDA {
	return PDA{programID: programID}
}

// DefaultPDA derives addresses for the default program deployment.
var DefaultPDA = NewPDA(ProgramID)

// ProgramID returns the program the addresses are derived for.
func (p PDA) ProgramID() solana.PublicKey {
	return p.programID
}

// MintConfigID derives the mint config address for a config name.
func (p PDA) MintConfigID(name string) solana.PublicKey {
	return mustFind([][]byte{[]byte(MintConfigPrefix), []byte(name)}, p.programID)
}

// MintPhaseAuthorizationID derives the authorization record for (config, phase, user).
func (p PDA) MintPhaseAuthorizationID(mintConfig solana.PublicKey, phase uint8, user solana.PublicKey) solana.PublicKey {
	return mustFind([][]byte{
		[]byte(MintPhaseAuthorizationPrefix),
		mintConfig.Bytes(),
		{phase},
		user.Bytes(),
	}, p.programID)
}

// OutputMintPendingReleaseID derives the pending release record for a minted token.
func (p PDA) OutputMintPendingReleaseID(mintConfig, mint solana.PublicKey) solana.PublicKey {
	return mustFind([][]byte{
		[]byte(OutputMintPendingReleasePrefix),
		mintConfig.Bytes(),
		mint.Bytes(),
	}, p.programID)
}

// FindMetadataID derives the Metaplex metadata account of a mint.
func FindMetadataID(mint solana.PublicKey) solana.PublicKey {
	return must(solana.FindTokenMetadataAddress(mint))
}

// FindEditionID derives the Metaplex master edition account of a mint.
func FindEditionID(mint solana.PublicKey) solana.PublicKey {
	return mustFind([][]byte{
		[]byte(metadataPrefix),
		TokenMetadataProgramID.Bytes(),
		mint.Bytes(),
		[]byte(editionSeed),
	}, TokenMetadataProgramID)
}

// FindTokenRecordID derives the pNFT token record of a token account.
func FindTokenRecordID(mint, tokenAccount solana.PublicKey) solana.PublicKey {
	return mustFind([][]byte{
		[]byte(metadataPrefix),
		TokenMetadataProgramID.Bytes(),
		mint.Bytes(),
		[]byte(tokenRecordSeed),
		tokenAccount.Bytes(),
	}, TokenMetadataProgramID)
}

// FindCollectionDelegateID derives the collection authority record that lets
// delegate verify items of a collection.
func FindCollectionDelegateID(collectionMint, updateAuthority, delegate solana.PublicKey) solana.PublicKey {
	return mustFind([][]byte{
		[]byte(metadataPrefix),
		TokenMetadataProgramID.Bytes(),
		collectionMint.Bytes(),
		[]byte(collectionDelegateSeed),
		updateAuthority.Bytes(),
		delegate.Bytes(),
	}, TokenMetadataProgramID)
}

// FindMerkleTreeAuthorityID derives the bubblegum tree config of a merkle tree.
func FindMerkleTreeAuthorityID(merkleTree solana.PublicKey) solana.PublicKey {
	return mustFind([][]byte{merkleTree.Bytes()}, BubblegumProgramID)
}

// FindAssociatedTokenAddress derives the associated token account of owner
// for mint under the SPL Token program. Off-curve owners (PDAs) are allowed.
func FindAssociatedTokenAddress(owner, mint solana.PublicKey) solana.PublicKey {
	return must(solana.FindAssociatedTokenAddress(owner, mint))
}

// mustFind panics only if no bump in [0, 255] yields an off-curve address,
// which cannot happen for the seeds used here.
func mustFind(seeds [][]byte, programID solana.PublicKey) solana.PublicKey {
	return must(solana.FindProgramAddress(seeds, programID))
}

func must(addr solana.PublicKey, _ uint8, err error) solana.PublicKey {
	if err != nil {
		panic(fmt.Sprintf("failed to derive program address: %v", err))
	}
	return addr
}
