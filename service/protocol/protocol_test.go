package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, [8]byte{51, 57, 225, 47, 182, 146, 137, 166}, InstructionDiscriminator(InstructionMint))
	assert.Equal(t, [8]byte{98, 54, 28, 2, 64, 227, 206, 6}, InstructionDiscriminator(InstructionSetMintEntry))
	assert.Equal(t, [8]byte{168, 252, 88, 182, 219, 205, 39, 53}, AccountDiscriminator(AccountMintConfig))
}

func TestPDA_Deterministic(t *testing.T) {
	config := DefaultPDA.MintConfigID("drop")
	assert.Equal(t, config, DefaultPDA.MintConfigID("drop"))
	assert.NotEqual(t, config, DefaultPDA.MintConfigID("other"))

	user := solana.NewWallet().PublicKey()
	a0 := DefaultPDA.MintPhaseAuthorizationID(config, 0, user)
	a1 := DefaultPDA.MintPhaseAuthorizationID(config, 1, user)
	assert.NotEqual(t, a0, a1, "phase is part of the seed")

	other := NewPDA(solana.NewWallet().PublicKey())
	assert.NotEqual(t, config, other.MintConfigID("drop"), "program id is part of the derivation")
}

func TestTokenAddresses(t *testing.T) {
	owner, mint := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()

	ata, _, err := solana.FindProgramAddress([][]byte{owner.Bytes(), TokenProgramID.Bytes(), mint.Bytes()}, AssociatedTokenProgramID)
	require.NoError(t, err)
	assert.Equal(t, ata, FindAssociatedTokenAddress(owner, mint))

	// Off-curve owners such as PDAs have token accounts too.
	pdaOwner := DefaultPDA.MintConfigID("drop")
	assert.False(t, pdaOwner.IsOnCurve())
	assert.NotEqual(t, solana.PublicKey{}, FindAssociatedTokenAddress(pdaOwner, mint))

	md, _, err := solana.FindProgramAddress([][]byte{[]byte("metadata"), TokenMetadataProgramID.Bytes(), mint.Bytes()}, TokenMetadataProgramID)
	require.NoError(t, err)
	assert.Equal(t, md, FindMetadataID(mint))
	assert.NotEqual(t, md, FindEditionID(mint))
}

func TestDecodeMintConfig(t *testing.T) {
	collection := solana.NewWallet().PublicKey()
	target := solana.NewWallet().PublicKey()
	limit := uint64(100)
	cfg := MintConfig{
		Bump:      254,
		Authority: solana.NewWallet().PublicKey(),
		Name:      "drop",
		Supply:    10,
		Count:     4,
		OutputMintConfig: OutputMintConfig{
			SellerFeeBasisPoints: 500,
			TokenStandard:        TokenStandardProgrammableNonFungible,
			Collection:           &collection,
			Creators:             []Creator{{Address: solana.NewWallet().PublicKey(), Share: 100}},
		},
		MintPhases: []MintPhase{
			{
				EndCondition: &PhaseCondition{Count: &limit},
				TokenChecks: []TokenCheck{
					{AddressKind: AddressKindMint, Amount: 1_000_000, TransferTarget: &target, Mode: CheckModeTransfer},
				},
				Authorization: &AuthorizationCheck{Mode: AuthorizationModeDefaultAllowed},
				Metadata:      "{}",
			},
		},
		Metadata: `{"name":"drop"}`,
	}

	data, err := EncodeAccount(AccountMintConfig, cfg)
	require.NoError(t, err)

	t.Run("decodes with trailing entries", func(t *testing.T) {
		withEntries := append(append([]byte{}, data...), make([]byte, 6*MintEntrySize)...)
		got, err := DecodeMintConfig(withEntries)
		require.NoError(t, err)
		assert.Equal(t, cfg, *got)
		assert.Equal(t, uint64(6), got.RemainingTokens())
	})

	t.Run("wrong discriminator", func(t *testing.T) {
		_, err := DecodeMintPhaseAuthorization(data)
		assert.True(t, errors.Is(err, ErrDiscriminatorMismatch))
	})

	t.Run("too short", func(t *testing.T) {
		_, err := DecodeMintConfig(data[:4])
		assert.True(t, errors.Is(err, ErrAccountTooShort))
	})

	t.Run("authority at filter offset", func(t *testing.T) {
		assert.Equal(t, cfg.Authority.Bytes(), data[OffsetMintConfigAuthority:OffsetMintConfigAuthority+32])
	})
}

func TestMintPhaseAuthorization_Offsets(t *testing.T) {
	auth := MintPhaseAuthorization{
		Bump:           1,
		MintConfig:     solana.NewWallet().PublicKey(),
		MintPhaseIndex: 3,
		User:           solana.NewWallet().PublicKey(),
	}
	data, err := EncodeAccount(AccountMintPhaseAuthorization, auth)
	require.NoError(t, err)

	assert.Equal(t, auth.MintConfig.Bytes(), data[OffsetAuthorizationMintConfig:OffsetAuthorizationMintConfig+32])
	assert.Equal(t, byte(3), data[OffsetAuthorizationPhase])
}

func TestMintPhaseAuthorization_IsSet(t *testing.T) {
	five := uint64(5)
	tests := []struct {
		name    string
		auth    *MintPhaseAuthorization
		desired uint64
		want    bool
	}{
		{"missing record, nothing desired", nil, 0, true},
		{"missing record", nil, 3, false},
		{"remaining plus count matches", &MintPhaseAuthorization{Count: 2, Remaining: &five}, 7, true},
		{"remaining plus count differs", &MintPhaseAuthorization{Count: 2, Remaining: &five}, 5, false},
		{"unlimited counts as zero", &MintPhaseAuthorization{Count: 2}, 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.auth.IsSet(tt.desired))
		})
	}
}

func entrySlot(name string) []byte {
	slot := make([]byte, MintEntrySize)
	binary.LittleEndian.PutUint32(slot, uint32(len(name)))
	copy(slot[StringPrefixLength:], name)
	return slot
}

func TestMintEntryIsSet(t *testing.T) {
	cfg := &MintConfig{Supply: 5, Count: 3}
	header := []byte("header bytes of any length")
	data := append(append(append([]byte{}, header...), entrySlot("First #0")...), entrySlot("")...)

	assert.True(t, MintEntryIsSet(cfg, data, MintEntry{Index: 0, Name: "First #0"}))
	assert.False(t, MintEntryIsSet(cfg, data, MintEntry{Index: 0, Name: "First #1"}))
	assert.False(t, MintEntryIsSet(cfg, data, MintEntry{Index: 1, Name: "Second"}))
	assert.False(t, MintEntryIsSet(cfg, data, MintEntry{Index: 2, Name: "Out of range"}))
}

func TestMintEntry_Validate(t *testing.T) {
	assert.NoError(t, MintEntry{Name: "Token #1", Symbol: "TKN", URI: "https://example.com/1.json"}.Validate())

	err := MintEntry{Name: "a name that is definitely longer than allowed", Symbol: "TOOLONG"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name longer than 28 bytes")
	assert.Contains(t, err.Error(), "symbol longer than 6 bytes")
}

func TestSetMintPhaseAuthorization_Data(t *testing.T) {
	program := NewProgram(ProgramID)
	config := program.PDA().MintConfigID("drop")
	authority := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()
	remaining := uint64(5)

	ix, err := program.SetMintPhaseAuthorization(config, authority, authority, user, 2, &remaining)
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	require.Len(t, data, 8+1+8+32+1)
	assert.Equal(t, []byte{197, 57, 71, 2, 122, 167, 128, 11}, data[:8])
	assert.Equal(t, byte(1), data[8], "option tag")
	assert.Equal(t, remaining, binary.LittleEndian.Uint64(data[9:17]))
	assert.Equal(t, user.Bytes(), data[17:49])
	assert.Equal(t, byte(2), data[49])

	accounts := ix.Accounts()
	require.Len(t, accounts, 5)
	assert.Equal(t, program.PDA().MintPhaseAuthorizationID(config, 2, user), accounts[0].PublicKey)
	assert.True(t, accounts[0].IsWritable)
	assert.True(t, accounts[2].IsSigner)
	assert.Equal(t, SystemProgramID, accounts[4].PublicKey)
}

func TestMint_AppendsRemainingAccounts(t *testing.T) {
	program := NewProgram(ProgramID)
	accounts := MintAccounts{
		MintConfig: solana.NewWallet().PublicKey(),
		User:       solana.NewWallet().PublicKey(),
		Payer:      solana.NewWallet().PublicKey(),
		Collector:  solana.NewWallet().PublicKey(),
	}
	extra := solana.Meta(solana.NewWallet().PublicKey()).WRITE()

	ix, err := program.Mint(accounts, 1, []*solana.AccountMeta{extra})
	require.NoError(t, err)

	metas := ix.Accounts()
	require.Len(t, metas, 7)
	assert.Equal(t, SysVarSlotHashesID, metas[4].PublicKey)
	assert.Equal(t, extra, metas[6])

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{51, 57, 225, 47, 182, 146, 137, 166, 1}, data)
}

func TestSetMintEntry_RejectsOversizedEntry(t *testing.T) {
	program := NewProgram(ProgramID)
	key := solana.NewWallet().PublicKey()
	_, err := program.SetMintEntry(key, key, key, MintEntry{Symbol: "SYMBOLS"})
	assert.Error(t, err)
}

func TestDecodeTransactionError(t *testing.T) {
	var raw interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"InstructionError":[2,{"Custom":6022}]}`), &raw))

	err := DecodeTransactionError(raw)
	var perr *ProgramError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "PhaseNotActive", perr.Name)
	assert.Equal(t, uint32(6022), perr.Code)

	t.Run("unknown custom code", func(t *testing.T) {
		require.NoError(t, json.Unmarshal([]byte(`{"InstructionError":[0,{"Custom":1}]}`), &raw))
		assert.EqualError(t, DecodeTransactionError(raw), "custom program error 1")
	})

	t.Run("non custom error", func(t *testing.T) {
		err := DecodeTransactionError("AccountNotFound")
		assert.EqualError(t, err, `transaction failed: "AccountNotFound"`)
	})

	assert.NoError(t, DecodeTransactionError(nil))
}

func TestDecodeMetadata(t *testing.T) {
	creators := []MetadataCreator{{Address: solana.NewWallet().PublicKey(), Verified: true, Share: 100}}
	md := &Metadata{
		UpdateAuthority: solana.NewWallet().PublicKey(),
		Mint:            solana.NewWallet().PublicKey(),
		Data: MetadataData{
			Name:     "Token #1\x00\x00\x00",
			Symbol:   "TKN",
			URI:      "https://example.com/1.json",
			Creators: &creators,
		},
		Collection: &MetadataCollection{Verified: true, Key: solana.NewWallet().PublicKey()},
	}
	data, err := EncodeMetadata(md)
	require.NoError(t, err)
	// Real accounts carry fields past the collection.
	data = append(data, make([]byte, 64)...)

	got, err := DecodeMetadata(data)
	require.NoError(t, err)
	assert.Equal(t, "Token #1", got.Data.Name)
	assert.Equal(t, creators, got.CreatorList())
	assert.Equal(t, md.Collection, got.Collection)

	_, err = DecodeMetadata([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestEnumText(t *testing.T) {
	var mode CheckMode
	require.NoError(t, mode.UnmarshalText([]byte("Transfer")))
	assert.Equal(t, CheckModeTransfer, mode)

	var std TokenStandard
	require.NoError(t, std.UnmarshalText([]byte("programmableNonFungible")))
	assert.Equal(t, TokenStandardProgrammableNonFungible, std)

	var kind AddressKind
	assert.Error(t, kind.UnmarshalText([]byte("wallet")))
	assert.Equal(t, "creator", AddressKindCreator.String())
}

func TestFilters(t *testing.T) {
	config := solana.NewWallet().PublicKey()
	phase := uint8(4)

	filters := MintPhaseAuthorizationFilters(config, &phase)
	require.Len(t, filters, 3)
	disc := AccountDiscriminator(AccountMintPhaseAuthorization)
	assert.Equal(t, solana.Base58(disc[:]), filters[0].Memcmp.Bytes)
	assert.Equal(t, uint64(OffsetAuthorizationPhase), filters[2].Memcmp.Offset)
	assert.Equal(t, solana.Base58([]byte{4}), filters[2].Memcmp.Bytes)

	assert.Len(t, MintPhaseAuthorizationFilters(config, nil), 2)
	assert.Len(t, PendingReleaseFilters(config), 2)
	assert.Len(t, MintConfigsByAuthorityFilters(config), 2)
}
