package protocol

import (
	"bytes"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// metadataKeyV1 is the Key byte of a Metaplex MetadataV1 account.
const metadataKeyV1 = 4

// MetadataCreator is a creator entry of a Metaplex metadata account.
type MetadataCreator struct {
	Address  solana.PublicKey `json:"address"`
	Verified bool             `json:"verified"`
	Share    uint8            `json:"share"`
}

// MetadataCollection is the collection field of a Metaplex metadata account.
type MetadataCollection struct {
	Verified bool             `json:"verified"`
	Key      solana.PublicKey `json:"key"`
}

// MetadataData is the user facing part of a Metaplex metadata account.
type MetadataData struct {
	Name                 string             `json:"name"`
	Symbol               string             `json:"symbol"`
	URI                  string             `json:"uri"`
	SellerFeeBasisPoints uint16             `json:"seller_fee_basis_points"`
	Creators             *[]MetadataCreator `json:"creators,omitempty" bin:"optional"`
}

// Metadata is the leading part of a Metaplex metadata account, up to and
// including the collection. Later fields are not needed and not decoded.
type Metadata struct {
	Key                 uint8               `json:"key"`
	UpdateAuthority     solana.PublicKey    `json:"update_authority"`
	Mint                solana.PublicKey    `json:"mint"`
	Data                MetadataData        `json:"data"`
	PrimarySaleHappened bool                `json:"primary_sale_happened"`
	IsMutable           bool                `json:"is_mutable"`
	EditionNonce        *uint8              `json:"edition_nonce,omitempty" bin:"optional"`
	TokenStandard       *uint8              `json:"token_standard,omitempty" bin:"optional"`
	Collection          *MetadataCollection `json:"collection,omitempty" bin:"optional"`
}

// CreatorList returns the creators or nil when the field is unset.
func (m *Metadata) CreatorList() []MetadataCreator {
	if m.Data.Creators == nil {
		return nil
	}
	return *m.Data.Creators
}

// DecodeMetadata decodes a Metaplex metadata account.
func DecodeMetadata(data []byte) (*Metadata, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("metadata: %w", ErrAccountTooShort)
	}
	if data[0] != metadataKeyV1 {
		return nil, fmt.Errorf("metadata: unexpected key %d", data[0])
	}
	var md Metadata
	if err := bin.NewBorshDecoder(data).Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	md.Data.Name = strings.TrimRight(md.Data.Name, "\x00")
	md.Data.Symbol = strings.TrimRight(md.Data.Symbol, "\x00")
	md.Data.URI = strings.TrimRight(md.Data.URI, "\x00")
	return &md, nil
}

// EncodeMetadata serializes md in the Metaplex layout. Used for fixtures.
func EncodeMetadata(md *Metadata) ([]byte, error) {
	md.Key = metadataKeyV1
	buf := new(bytes.Buffer)
	if err := bin.NewBorshEncoder(buf).Encode(md); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}
