package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
)

var (
	// ErrDiscriminatorMismatch is returned when account data belongs to a different account type.
	ErrDiscriminatorMismatch = errors.New("account discriminator mismatch")

	// ErrAccountTooShort is returned when account data cannot hold a discriminator.
	ErrAccountTooShort = errors.New("account data too short")
)

// DecodeMintConfig decodes a mint config account. Trailing mint entries are ignored.
func DecodeMintConfig(data []byte) (*MintConfig, error) {
	var cfg MintConfig
	if err := decodeAccount(AccountMintConfig, data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DecodeMintPhaseAuthorization decodes an authorization record account.
func DecodeMintPhaseAuthorization(data []byte) (*MintPhaseAuthorization, error) {
	var auth MintPhaseAuthorization
	if err := decodeAccount(AccountMintPhaseAuthorization, data, &auth); err != nil {
		return nil, err
	}
	return &auth, nil
}

// DecodeOutputMintPendingRelease decodes a pending release account.
func DecodeOutputMintPendingRelease(data []byte) (*OutputMintPendingRelease, error) {
	var rel OutputMintPendingRelease
	if err := decodeAccount(AccountOutputMintPendingRelease, data, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// EncodeAccount serializes v the way the program stores it, discriminator included.
// Used to build fixtures and to size accounts.
func EncodeAccount(name string, v interface{}) ([]byte, error) {
	disc := AccountDiscriminator(name)
	buf := new(bytes.Buffer)
	buf.Write(disc[:])
	if err := bin.NewBorshEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func decodeAccount(name string, data []byte, v interface{}) error {
	if len(data) < 8 {
		return fmt.Errorf("%s: %w", name, ErrAccountTooShort)
	}
	disc := AccountDiscriminator(name)
	if !bytes.Equal(data[:8], disc[:]) {
		return fmt.Errorf("%s: %w", name, ErrDiscriminatorMismatch)
	}
	if err := bin.NewBorshDecoder(data[8:]).Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return nil
}

// EntrySlot returns the raw bytes of the entry slot at index, or nil when the
// slot lies outside the account data. data is the full mint config account.
func EntrySlot(cfg *MintConfig, data []byte, index uint64) []byte {
	remaining := cfg.RemainingTokens()
	entriesLen := remaining * MintEntrySize
	if entriesLen > uint64(len(data)) {
		return nil
	}
	entries := data[uint64(len(data))-entriesLen:]
	start := index * MintEntrySize
	end := start + MintEntrySize
	if index >= remaining || end > uint64(len(entries)) {
		return nil
	}
	return entries[start:end]
}

// MintEntryIsSet reports whether the slot at entry.Index already holds entry.Name.
// Only the name is compared; setting an entry rewrites the whole slot.
func MintEntryIsSet(cfg *MintConfig, data []byte, entry MintEntry) bool {
	slot := EntrySlot(cfg, data, entry.Index)
	if slot == nil {
		return false
	}
	stored := strings.ReplaceAll(string(slot[StringPrefixLength:MaxNameLength]), "\x00", "")
	return stored == entry.Name
}
