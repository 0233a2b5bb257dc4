package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	runs := []map[string]interface{}{
		{"operation": "mint_to_users", "failed": 0},
		{"operation": "set_mint_entries", "failed": 2},
	}

	t.Run("no filter", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeJSON(&buf, "", map[string]int{"count": 1}))
		assert.Equal(t, "{\n  \"count\": 1\n}\n", buf.String())
	})

	t.Run("filter emits each result", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeJSON(&buf, ".[] | .operation", runs))
		assert.Equal(t, "\"mint_to_users\"\n\"set_mint_entries\"\n", buf.String())
	})

	t.Run("select", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeJSON(&buf, "[.[] | select(.failed > 0) | .operation]", runs))
		assert.Equal(t, "[\n  \"set_mint_entries\"\n]\n", buf.String())
	})

	t.Run("invalid filter", func(t *testing.T) {
		var buf bytes.Buffer
		err := writeJSON(&buf, ".[", runs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse jq filter")
	})

	t.Run("runtime error", func(t *testing.T) {
		var buf bytes.Buffer
		err := writeJSON(&buf, ".operation", runs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jq filter")
	})
}
