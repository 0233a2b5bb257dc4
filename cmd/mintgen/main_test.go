package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brojonat/mintgen/service/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userA = "11111111111111111111111111111111"
	userB = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = io.Discard
	err := app.RunContext(context.Background(), append([]string{"mintgen"}, args...))
	return out.String(), err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestAuthConsolidateCommand(t *testing.T) {
	in := writeTemp(t, "raw.csv", strings.Join([]string{
		"user,phase,remaining",
		userA + ",1,2",
		userB + ",1,1",
		userA + ",1,3",
	}, "\n"))

	t.Run("stdout", func(t *testing.T) {
		out, err := runApp(t, "auth", "consolidate", "--file", in)
		require.NoError(t, err)
		assert.Equal(t, "user,phase,remaining\n"+userA+",1,5\n"+userB+",1,1\n", out)
	})

	t.Run("file", func(t *testing.T) {
		outPath := filepath.Join(t.TempDir(), "merged.csv")
		_, err := runApp(t, "auth", "consolidate", "--file", in, "--out", outPath)
		require.NoError(t, err)
		data, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), userA+",1,5")
	})

	t.Run("mismatched phase", func(t *testing.T) {
		bad := writeTemp(t, "bad.csv", "user,phase,remaining\n"+userA+",0,1\n"+userA+",1,1\n")
		_, err := runApp(t, "auth", "consolidate", "--file", bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mismatched phase")
	})
}

func TestReadMintConfigFile(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeTemp(t, "config.json", `{
  "name": "bodoggos",
  "output_mint_config": {
    "seller_fee_basis_points": 420,
    "token_standard": "programmable_non_fungible",
    "creators": [{"address": "`+userA+`", "share": 100}],
    "release_authority": "`+userB+`"
  },
  "mint_phases": [
    {
      "start_condition": {"time_seconds": 1687874400},
      "token_checks": [
        {"address_kind": "mint", "address": "`+userA+`", "amount": 4950000000, "transfer_target": "`+userB+`", "mode": "transfer"}
      ],
      "authorization": {"mode": "default_disallowed"},
      "metadata": "{\"title\":\"Phase 0\"}"
    }
  ],
  "metadata": ""
}`)
		file, err := readMintConfigFile(path)
		require.NoError(t, err)

		assert.Equal(t, "bodoggos", file.Name)
		assert.Equal(t, protocol.TokenStandardProgrammableNonFungible, file.OutputMintConfig.TokenStandard)
		require.NotNil(t, file.OutputMintConfig.ReleaseAuthority)
		assert.Equal(t, userB, file.OutputMintConfig.ReleaseAuthority.String())
		require.Len(t, file.MintPhases, 1)
		phase := file.MintPhases[0]
		require.NotNil(t, phase.StartCondition)
		assert.Equal(t, int64(1687874400), *phase.StartCondition.TimeSeconds)
		assert.Nil(t, phase.EndCondition)
		require.Len(t, phase.TokenChecks, 1)
		assert.Equal(t, protocol.CheckModeTransfer, phase.TokenChecks[0].Mode)
		assert.True(t, phase.TokenChecks[0].IsNative())
		assert.Equal(t, protocol.AuthorizationModeDefaultDisallowed, phase.Authorization.Mode)
	})

	t.Run("transfer without target", func(t *testing.T) {
		path := writeTemp(t, "config.json", `{
  "name": "bodoggos",
  "output_mint_config": {"token_standard": "non_fungible", "creators": []},
  "mint_phases": [{"token_checks": [{"address_kind": "mint", "address": "`+userA+`", "amount": 1, "mode": "transfer"}], "metadata": ""}]
}`)
		_, err := readMintConfigFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "phase 0")
	})

	t.Run("creator shares", func(t *testing.T) {
		path := writeTemp(t, "config.json", `{
  "output_mint_config": {"token_standard": "non_fungible", "creators": [{"address": "`+userA+`", "share": 60}]},
  "mint_phases": [{"token_checks": [], "metadata": ""}]
}`)
		_, err := readMintConfigFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "add up to 60")
	})

	t.Run("unknown enum", func(t *testing.T) {
		path := writeTemp(t, "config.json", `{
  "output_mint_config": {"token_standard": "semi_fungible", "creators": []},
  "mint_phases": [{"token_checks": [], "metadata": ""}]
}`)
		_, err := readMintConfigFile(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid token standard")
	})

	t.Run("unknown field", func(t *testing.T) {
		path := writeTemp(t, "config.json", `{"supply": 10, "mint_phases": [{"token_checks": []}]}`)
		_, err := readMintConfigFile(path)
		require.Error(t, err)
	})
}

func TestEndpointLabel(t *testing.T) {
	assert.Equal(t, "api.mainnet-beta.solana.com", endpointLabel("https://api.mainnet-beta.solana.com"))
	assert.Equal(t, "rpc.example.com", endpointLabel("https://rpc.example.com/?api-key=secret"))
	assert.Equal(t, "unknown", endpointLabel("not a url"))
}

func TestFormatCondition(t *testing.T) {
	ts := int64(100)
	count := uint64(5)
	assert.Equal(t, "-", formatCondition(nil))
	assert.Equal(t, "t=100", formatCondition(&protocol.PhaseCondition{TimeSeconds: &ts}))
	assert.Equal(t, "count=5", formatCondition(&protocol.PhaseCondition{Count: &count}))
	assert.Equal(t, "t=100|count=5", formatCondition(&protocol.PhaseCondition{TimeSeconds: &ts, Count: &count}))
}
