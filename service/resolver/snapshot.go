package resolver

import (
	"github.com/gagliardetto/solana-go"
)

// TokenAccount is one token balance of the holder.
type TokenAccount struct {
	Address solana.PublicKey `json:"address"`
	Mint    solana.PublicKey `json:"mint"`
	Amount  uint64           `json:"amount"`
}

// Collection is the collection membership declared in a mint's metadata.
type Collection struct {
	Key      solana.PublicKey `json:"key"`
	Verified bool             `json:"verified"`
}

// Creator is a creator entry declared in a mint's metadata.
type Creator struct {
	Address  solana.PublicKey `json:"address"`
	Verified bool             `json:"verified"`
}

// MintMetadata is the part of a mint's metadata the resolver looks at.
type MintMetadata struct {
	Mint       solana.PublicKey `json:"mint"`
	Collection *Collection      `json:"collection,omitempty"`
	Creators   []Creator        `json:"creators,omitempty"`
}

// HolderSnapshot is a read-only view of a holder's token accounts and the
// metadata of the mints they hold. It is fetched once and never mutated.
type HolderSnapshot struct {
	Holder        solana.PublicKey                  `json:"holder"`
	TokenAccounts []TokenAccount                    `json:"token_accounts"`
	Metadata      map[solana.PublicKey]MintMetadata `json:"metadata,omitempty"`
}

// findByMint returns the first funded token account of mint.
func (s *HolderSnapshot) findByMint(mint solana.PublicKey) (TokenAccount, bool) {
	return s.find(func(acc TokenAccount) bool {
		return acc.Mint.Equals(mint)
	})
}

// findByCollection returns the first funded token account whose mint is a
// verified member of collection.
func (s *HolderSnapshot) findByCollection(collection solana.PublicKey) (TokenAccount, bool) {
	return s.find(func(acc TokenAccount) bool {
		md, ok := s.Metadata[acc.Mint]
		return ok && md.Collection != nil && md.Collection.Verified && md.Collection.Key.Equals(collection)
	})
}

// findByCreator returns the first funded token account whose mint lists
// creator as a verified creator.
func (s *HolderSnapshot) findByCreator(creator solana.PublicKey) (TokenAccount, bool) {
	return s.find(func(acc TokenAccount) bool {
		md, ok := s.Metadata[acc.Mint]
		if !ok {
			return false
		}
		for _, c := range md.Creators {
			if c.Verified && c.Address.Equals(creator) {
				return true
			}
		}
		return false
	})
}

func (s *HolderSnapshot) find(match func(TokenAccount) bool) (TokenAccount, bool) {
	if s == nil {
		return TokenAccount{}, false
	}
	for _, acc := range s.TokenAccounts {
		if acc.Amount > 0 && match(acc) {
			return acc, true
		}
	}
	return TokenAccount{}, false
}
