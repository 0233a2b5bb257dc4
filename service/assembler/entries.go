package assembler

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/brojonat/mintgen/service/protocol"
	"github.com/gagliardetto/solana-go"
)

// BuildSetMintEntry writes entry into its slot of the config.
func (a *Assembler) BuildSetMintEntry(configID, authority, payer solana.PublicKey, entry protocol.MintEntry) (Part, error) {
	return single(a.program.SetMintEntry(configID, authority, payer, entry))
}

// PendingEntries drops the entries whose slot already holds the same name,
// so an interrupted upload can be re-run. data is the raw config account.
func PendingEntries(cfg *protocol.MintConfig, data []byte, entries []protocol.MintEntry) []protocol.MintEntry {
	var pending []protocol.MintEntry
	for _, e := range entries {
		if !protocol.MintEntryIsSet(cfg, data, e) {
			pending = append(pending, e)
		}
	}
	return pending
}

// ReadEntriesCSV reads name,symbol,uri rows after a header line. Each entry's
// index is its row position; rows outside [start, end) are dropped afterwards.
// A negative end keeps everything from start.
func ReadEntriesCSV(r io.Reader, start, end int) ([]protocol.MintEntry, error) {
	rows, err := readCSV(r, 3)
	if err != nil {
		return nil, err
	}
	entries := make([]protocol.MintEntry, 0, len(rows))
	for i, row := range rows {
		if row[0] == "" || row[1] == "" || row[2] == "" {
			return nil, fmt.Errorf("row %d: name, symbol and uri are required", i+1)
		}
		entries = append(entries, protocol.MintEntry{
			Index:  uint64(i),
			Name:   row[0],
			Symbol: row[1],
			URI:    row[2],
		})
	}

	start = max(start, 0)
	if end < 0 || end > len(entries) {
		end = len(entries)
	}
	if start >= end {
		return nil, nil
	}
	return entries[start:end], nil
}

// readCSV returns the data rows with surrounding whitespace trimmed. Blank
// lines are skipped.
func readCSV(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields
	cr.TrimLeadingSpace = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv input: %w", err)
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		rows = append(rows, row)
	}
}
