package resolver

import (
	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
)

// CollectionAccounts are appended when output tokens join a collection.
// The config must be a collection delegate of the collection authority.
func CollectionAccounts(config, collectionAuthority, collection solana.PublicKey) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.Meta(collection),
		solana.Meta(protocol.FindMetadataID(collection)).WRITE(),
		solana.Meta(protocol.FindEditionID(collection)),
		solana.Meta(protocol.FindCollectionDelegateID(collection, collectionAuthority, config)),
	}
}

// ReleaseAccounts holds the pending release record when the config has a release authority.
func (r *Resolver) ReleaseAccounts(config, outputMint solana.PublicKey) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.Meta(r.pda.OutputMintPendingReleaseID(config, outputMint)).WRITE(),
	}
}

// NFTAccounts are the accounts needed to create outputMint for user.
// Without a ruleset the metadata program stands in for it.
func NFTAccounts(outputMint, user solana.PublicKey, ruleset *solana.PublicKey) []*solana.AccountMeta {
	userTokenAccount := protocol.FindAssociatedTokenAddress(user, outputMint)
	rules := protocol.TokenMetadataProgramID
	if ruleset != nil {
		rules = *ruleset
	}
	return []*solana.AccountMeta{
		solana.Meta(outputMint).WRITE().SIGNER(),
		solana.Meta(protocol.FindMetadataID(outputMint)).WRITE(),
		solana.Meta(protocol.FindEditionID(outputMint)).WRITE(),
		solana.Meta(userTokenAccount).WRITE(),
		solana.Meta(protocol.FindTokenRecordID(outputMint, userTokenAccount)).WRITE(),
		solana.Meta(rules),
		solana.Meta(protocol.SysVarInstructionsID),
		solana.Meta(protocol.TokenMetadataProgramID),
		solana.Meta(protocol.TokenAuthRulesProgramID),
		solana.Meta(protocol.TokenProgramID),
		solana.Meta(protocol.AssociatedTokenProgramID),
	}
}

// CompressedAccounts are the accounts needed to mint into a merkle tree.
func CompressedAccounts(merkleTree solana.PublicKey) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		solana.Meta(merkleTree).WRITE(),
		solana.Meta(protocol.FindMerkleTreeAuthorityID(merkleTree)).WRITE(),
		solana.Meta(protocol.BubblegumProgramID),
		solana.Meta(protocol.AccountCompressionProgramID),
		solana.Meta(protocol.NoopProgramID),
	}
}
