package protocol

import (
	"encoding/json"
	"fmt"
)

// ProgramError is a custom error raised by the mint generator program.
type ProgramError struct {
	Code    uint32 `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("program error %d (%s): %s", e.Code, e.Name, e.Message)
}

// programErrorOffset is where Anchor starts numbering user defined errors.
const programErrorOffset = 6000

var programErrors = map[uint32]ProgramError{
	0:  {Name: "InvalidAuthority", Message: "invalid authority"},
	1:  {Name: "InvalidMintPhaseAuthorization", Message: "invalid mint phase authorization"},
	2:  {Name: "InvalidIndex", Message: "invalid index"},
	3:  {Name: "InvalidProgramId", Message: "invalid program id"},
	10: {Name: "TooManyCreators", Message: "too many creators"},
	11: {Name: "InvalidMintConfigId", Message: "invalid mint config id"},
	12: {Name: "InvalidTokenStandard", Message: "invalid token standard"},
	13: {Name: "ProgrammableAndMerkleTree", Message: "programmable tokens cannot be minted into a merkle tree"},
	20: {Name: "MintingAlreadyStarted", Message: "minting already started"},
	21: {Name: "InvalidPhase", Message: "invalid phase"},
	22: {Name: "PhaseNotActive", Message: "phase not active"},
	23: {Name: "NotTokensRemaining", Message: "no tokens remaining"},
	30: {Name: "HolderNotSigner", Message: "holder not signer"},
	31: {Name: "InvalidTokenCheckHolderTokenAccount", Message: "invalid token check holder token account"},
	32: {Name: "InvalidTokenCheckTransferTarget", Message: "invalid token check transfer target"},
	33: {Name: "InvalidTokenCheck", Message: "invalid token check"},
	34: {Name: "InvalidMintMetadata", Message: "invalid mint metadata"},
	35: {Name: "InvalidMintMetadataOwner", Message: "invalid mint metadata owner"},
	40: {Name: "MintPhaseAuthorizationsUsed", Message: "mint phase authorizations used"},
	41: {Name: "IncorrectAuthorizationHolder", Message: "incorrect authorization holder"},
	50: {Name: "ReleaseTimeInvalid", Message: "release time invalid"},
	51: {Name: "InvalidOutputMintsPendingRelease", Message: "invalid output mints pending release"},
}

// LookupProgramError returns the program error for a custom error code.
func LookupProgramError(code uint32) (*ProgramError, bool) {
	if code < programErrorOffset {
		return nil, false
	}
	e, ok := programErrors[code-programErrorOffset]
	if !ok {
		return nil, false
	}
	e.Code = code
	return &e, true
}

// DecodeTransactionError maps a transaction error as returned by the RPC
// (for example {"InstructionError":[2,{"Custom":6022}]}) to a program error.
// The raw value is returned as an error when it carries no known custom code.
func DecodeTransactionError(raw interface{}) error {
	if raw == nil {
		return nil
	}
	if code, ok := customCode(raw); ok {
		if perr, ok := LookupProgramError(code); ok {
			return perr
		}
		return fmt.Errorf("custom program error %d", code)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("transaction failed: %v", raw)
	}
	return fmt.Errorf("transaction failed: %s", b)
}

// customCode walks a decoded JSON value looking for a {"Custom": n} entry.
func customCode(v interface{}) (uint32, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		if c, ok := t["Custom"]; ok {
			switch n := c.(type) {
			case float64:
				return uint32(n), true
			case json.Number:
				i, err := n.Int64()
				if err == nil {
					return uint32(i), true
				}
			}
		}
		for _, child := range t {
			if code, ok := customCode(child); ok {
				return code, true
			}
		}
	case []interface{}:
		for _, child := range t {
			if code, ok := customCode(child); ok {
				return code, true
			}
		}
	}
	return 0, false
}
