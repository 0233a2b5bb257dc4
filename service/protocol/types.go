package protocol

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// AddressKind identifies how TokenCheck.Address is interpreted.
type AddressKind uint8

const (
	AddressKindMint AddressKind = iota
	AddressKindCollection
	AddressKindCreator
)

// CheckMode is what happens to the qualifying asset of a token check.
type CheckMode uint8

const (
	CheckModeCheck CheckMode = iota
	CheckModeTransfer
	CheckModeBurn
)

// AuthorizationMode controls how a phase treats users without an authorization record.
type AuthorizationMode uint8

const (
	AuthorizationModeDefaultDisallowed AuthorizationMode = iota
	AuthorizationModeDefaultAllowed
)

// TokenStandard of the tokens minted from a config.
type TokenStandard uint8

const (
	TokenStandardNonFungible TokenStandard = iota
	TokenStandardFungibleAsset
	TokenStandardFungible
	TokenStandardNonFungibleEdition
	TokenStandardProgrammableNonFungible
)

var (
	addressKindNames       = []string{"mint", "collection", "creator"}
	checkModeNames         = []string{"check", "transfer", "burn"}
	authorizationModeNames = []string{"default_disallowed", "default_allowed"}
	tokenStandardNames     = []string{
		"non_fungible",
		"fungible_asset",
		"fungible",
		"non_fungible_edition",
		"programmable_non_fungible",
	}
)

func (k AddressKind) String() string       { return enumName(addressKindNames, uint8(k)) }
func (m CheckMode) String() string         { return enumName(checkModeNames, uint8(m)) }
func (m AuthorizationMode) String() string { return enumName(authorizationModeNames, uint8(m)) }
func (s TokenStandard) String() string     { return enumName(tokenStandardNames, uint8(s)) }

func (k AddressKind) MarshalText() ([]byte, error)       { return []byte(k.String()), nil }
func (m CheckMode) MarshalText() ([]byte, error)         { return []byte(m.String()), nil }
func (m AuthorizationMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }
func (s TokenStandard) MarshalText() ([]byte, error)     { return []byte(s.String()), nil }

func (k *AddressKind) UnmarshalText(b []byte) error {
	v, err := enumValue(addressKindNames, "address kind", string(b))
	*k = AddressKind(v)
	return err
}

func (m *CheckMode) UnmarshalText(b []byte) error {
	v, err := enumValue(checkModeNames, "check mode", string(b))
	*m = CheckMode(v)
	return err
}

func (m *AuthorizationMode) UnmarshalText(b []byte) error {
	v, err := enumValue(authorizationModeNames, "authorization mode", string(b))
	*m = AuthorizationMode(v)
	return err
}

func (s *TokenStandard) UnmarshalText(b []byte) error {
	v, err := enumValue(tokenStandardNames, "token standard", string(b))
	*s = TokenStandard(v)
	return err
}

func enumName(names []string, v uint8) string {
	if int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("unknown(%d)", v)
}

func enumValue(names []string, what, s string) (uint8, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == norm || strings.ReplaceAll(n, "_", "") == norm {
			return uint8(i), nil
		}
	}
	return 0, fmt.Errorf("invalid %s %q", what, s)
}

// TokenCheck is one eligibility rule within a mint phase.
// A zero Address means native SOL.
type TokenCheck struct {
	AddressKind    AddressKind       `json:"address_kind"`
	Address        solana.PublicKey  `json:"address"`
	Amount         uint64            `json:"amount"`
	TransferTarget *solana.PublicKey `json:"transfer_target,omitempty" bin:"optional"`
	Mode           CheckMode         `json:"mode"`
}

// IsNative reports whether the check refers to native SOL rather than a token.
func (c TokenCheck) IsNative() bool {
	return c.Address.IsZero()
}

// AuthorizationCheck gates a phase behind per-user authorization records.
type AuthorizationCheck struct {
	Mode AuthorizationMode `json:"mode"`
}

// PhaseCondition is a start or end condition for a phase; either field may trigger it.
type PhaseCondition struct {
	TimeSeconds *int64  `json:"time_seconds,omitempty" bin:"optional"`
	Count       *uint64 `json:"count,omitempty" bin:"optional"`
}

// MintPhase is a window with its own eligibility rules.
type MintPhase struct {
	StartCondition *PhaseCondition     `json:"start_condition,omitempty" bin:"optional"`
	EndCondition   *PhaseCondition     `json:"end_condition,omitempty" bin:"optional"`
	TokenChecks    []TokenCheck        `json:"token_checks"`
	Authorization  *AuthorizationCheck `json:"authorization,omitempty" bin:"optional"`
	Metadata       string              `json:"metadata"`
}

// Creator of output tokens with its royalty share.
type Creator struct {
	Address solana.PublicKey `json:"address"`
	Share   uint8            `json:"share"`
}

// OutputMintConfig describes the tokens produced by a config.
type OutputMintConfig struct {
	SellerFeeBasisPoints uint16            `json:"seller_fee_basis_points"`
	TokenStandard        TokenStandard     `json:"token_standard"`
	Collection           *solana.PublicKey `json:"collection,omitempty" bin:"optional"`
	Ruleset              *solana.PublicKey `json:"ruleset,omitempty" bin:"optional"`
	Creators             []Creator         `json:"creators"`
	MerkleTree           *solana.PublicKey `json:"merkle_tree,omitempty" bin:"optional"`
	ReleaseAuthority     *solana.PublicKey `json:"release_authority,omitempty" bin:"optional"`
}

// MintConfig is the on-chain mint configuration account (without the trailing entries).
type MintConfig struct {
	Bump             uint8            `json:"bump"`
	Authority        solana.PublicKey `json:"authority"`
	Name             string           `json:"name"`
	Supply           uint64           `json:"supply"`
	Count            uint64           `json:"count"`
	OutputMintConfig OutputMintConfig `json:"output_mint_config"`
	MintPhases       []MintPhase      `json:"mint_phases"`
	Metadata         string           `json:"metadata"`
}

// RemainingTokens is the number of entries that can still be minted.
func (c *MintConfig) RemainingTokens() uint64 {
	if c.Count > c.Supply {
		return 0
	}
	return c.Supply - c.Count
}

// Phase returns the phase at index or false when it does not exist.
func (c *MintConfig) Phase(index uint8) (*MintPhase, bool) {
	if int(index) >= len(c.MintPhases) {
		return nil, false
	}
	return &c.MintPhases[index], true
}

// IsCompressed reports whether outputs are minted into a merkle tree.
func (c *MintConfig) IsCompressed() bool {
	return c.OutputMintConfig.MerkleTree != nil
}

// MintPhaseAuthorization is the per-user, per-phase allowance record.
type MintPhaseAuthorization struct {
	Bump           uint8            `json:"bump"`
	MintConfig     solana.PublicKey `json:"mint_config"`
	MintPhaseIndex uint8            `json:"mint_phase_index"`
	User           solana.PublicKey `json:"user"`
	Count          uint64           `json:"count"`
	Remaining      *uint64          `json:"remaining,omitempty" bin:"optional"`
}

// RemainingOrZero returns the remaining allowance, treating unlimited as zero.
func (a *MintPhaseAuthorization) RemainingOrZero() uint64 {
	if a == nil || a.Remaining == nil {
		return 0
	}
	return *a.Remaining
}

// IsSet reports whether the record already grants the desired total allowance.
// A record counts its used mints plus what remains.
func (a *MintPhaseAuthorization) IsSet(desired uint64) bool {
	if a == nil {
		return desired == 0
	}
	return a.RemainingOrZero()+a.Count == desired
}

// OutputMintPendingRelease marks a minted token held until the release authority releases it.
type OutputMintPendingRelease struct {
	Bump       uint8            `json:"bump"`
	MintConfig solana.PublicKey `json:"mint_config"`
	Mint       solana.PublicKey `json:"mint"`
	Holder     solana.PublicKey `json:"holder"`
}

// MintEntry is one slot of output token metadata.
type MintEntry struct {
	Index  uint64 `json:"index"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	URI    string `json:"uri"`
}

// Validate checks that the entry fits its fixed-size slot.
func (e MintEntry) Validate() error {
	var errs []string
	if len(e.Name) > MaxNameLength-StringPrefixLength {
		errs = append(errs, fmt.Sprintf("name longer than %d bytes", MaxNameLength-StringPrefixLength))
	}
	if len(e.Symbol) > MaxSymbolLength-StringPrefixLength {
		errs = append(errs, fmt.Sprintf("symbol longer than %d bytes", MaxSymbolLength-StringPrefixLength))
	}
	if len(e.URI) > MaxURILength-StringPrefixLength {
		errs = append(errs, fmt.Sprintf("uri longer than %d bytes", MaxURILength-StringPrefixLength))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid mint entry %d: %s", e.Index, strings.Join(errs, ", "))
	}
	return nil
}
