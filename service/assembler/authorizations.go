package assembler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"strconv"

	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
)

var (
	// ErrMismatchedPhase is returned when one user appears under two phases.
	ErrMismatchedPhase = errors.New("mismatched phase for user")

	// ErrAllowanceOverflow is returned when a user's summed allowance does
	// not fit in a uint64.
	ErrAllowanceOverflow = errors.New("allowance overflows uint64")
)

// AuthorizationRow is the desired allowance of one user in one phase.
type AuthorizationRow struct {
	User      solana.PublicKey `json:"user"`
	Phase     uint8            `json:"phase"`
	Remaining uint64           `json:"remaining"`
}

// BuildSetAuthorization sets the allowance of row.User to row.Remaining.
func (a *Assembler) BuildSetAuthorization(configID, authority, payer solana.PublicKey, row AuthorizationRow) (Part, error) {
	remaining := row.Remaining
	return single(a.program.SetMintPhaseAuthorization(configID, authority, payer, row.User, row.Phase, &remaining))
}

// BuildCloseAuthorization closes the record of (config, phase, user).
func (a *Assembler) BuildCloseAuthorization(configID, authority, user solana.PublicKey, phase uint8) (Part, error) {
	return single(a.program.CloseMintPhaseAuthorization(configID, authority, user, phase))
}

// AuthorizationSet reports whether existing, keyed by record address, already
// grants row its allowance.
func (a *Assembler) AuthorizationSet(configID solana.PublicKey, existing map[solana.PublicKey]*protocol.MintPhaseAuthorization, row AuthorizationRow) bool {
	id := a.program.PDA().MintPhaseAuthorizationID(configID, row.Phase, row.User)
	auth, ok := existing[id]
	if !ok {
		return false
	}
	return auth.IsSet(row.Remaining)
}

// PendingAuthorizations drops the rows existing already satisfies.
func (a *Assembler) PendingAuthorizations(configID solana.PublicKey, existing map[solana.PublicKey]*protocol.MintPhaseAuthorization, rows []AuthorizationRow) []AuthorizationRow {
	var pending []AuthorizationRow
	for _, row := range rows {
		if !a.AuthorizationSet(configID, existing, row) {
			pending = append(pending, row)
		}
	}
	return pending
}

// ConsolidateAuthorizations merges rows of the same user by summing their
// allowance. Users keep the position of their first row.
func ConsolidateAuthorizations(rows []AuthorizationRow) ([]AuthorizationRow, error) {
	index := make(map[solana.PublicKey]int, len(rows))
	var out []AuthorizationRow
	for _, row := range rows {
		i, ok := index[row.User]
		if !ok {
			index[row.User] = len(out)
			out = append(out, row)
			continue
		}
		if out[i].Phase != row.Phase {
			return nil, fmt.Errorf("%w %s: %d and %d", ErrMismatchedPhase, row.User, out[i].Phase, row.Phase)
		}
		sum, carry := bits.Add64(out[i].Remaining, row.Remaining, 0)
		if carry != 0 {
			return nil, fmt.Errorf("%w for %s", ErrAllowanceOverflow, row.User)
		}
		out[i].Remaining = sum
	}
	return out, nil
}

// ReadAuthorizationsCSV reads user,phase,remaining rows after a header line.
func ReadAuthorizationsCSV(r io.Reader) ([]AuthorizationRow, error) {
	rows, err := readCSV(r, 3)
	if err != nil {
		return nil, err
	}
	out := make([]AuthorizationRow, 0, len(rows))
	for i, row := range rows {
		user, err := solana.PublicKeyFromBase58(row[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid user %q: %w", i+1, row[0], err)
		}
		phase, err := strconv.ParseUint(row[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid phase %q: %w", i+1, row[1], err)
		}
		remaining, err := strconv.ParseUint(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid remaining %q: %w", i+1, row[2], err)
		}
		out = append(out, AuthorizationRow{User: user, Phase: uint8(phase), Remaining: remaining})
	}
	return out, nil
}

// WriteAuthorizationsCSV writes rows in the format ReadAuthorizationsCSV reads.
func WriteAuthorizationsCSV(w io.Writer, rows []AuthorizationRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"user", "phase", "remaining"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write([]string{
			row.User.String(),
			strconv.FormatUint(uint64(row.Phase), 10),
			strconv.FormatUint(row.Remaining, 10),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
