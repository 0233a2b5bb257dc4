package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestRunLifecycle(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()

	run, err := store.CreateRun(ctx, CreateRunParams{
		Operation: "entries",
		Config:    "cfg1",
		TotalOps:  7,
		Skipped:   2,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, run.ID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)
	assert.WithinDuration(t, time.Now(), run.StartedAt, 5*time.Second)

	t.Run("record outcomes", func(t *testing.T) {
		require.NoError(t, store.RecordOutcome(ctx, RecordOutcomeParams{
			RunID: run.ID, ChunkIndex: 0, ChunkTotal: 3, Size: 3, Status: "success", Signature: strPtr("sig0"),
		}))
		require.NoError(t, store.RecordOutcome(ctx, RecordOutcomeParams{
			RunID: run.ID, ChunkIndex: 1, ChunkTotal: 3, OpOffset: 3, Size: 3, Status: "failure", Error: strPtr("boom"),
		}))

		outcomes, err := store.ListOutcomes(ctx, run.ID)
		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		assert.Equal(t, "sig0", *outcomes[0].Signature)
		assert.Nil(t, outcomes[0].Error)
		assert.Nil(t, outcomes[1].Signature)
		assert.Equal(t, "boom", *outcomes[1].Error)
		assert.Equal(t, 3, outcomes[1].OpOffset)
	})

	t.Run("finish run", func(t *testing.T) {
		finished, err := store.FinishRun(ctx, FinishRunParams{
			ID: run.ID, Status: RunStatus(2, 1, 0), Succeeded: 2, Failed: 1,
		})
		require.NoError(t, err)
		assert.Equal(t, RunStatusPartial, finished.Status)
		require.NotNil(t, finished.FinishedAt)

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Succeeded)
		assert.Equal(t, 1, got.Failed)
	})

	t.Run("unknown run", func(t *testing.T) {
		_, err := store.GetRun(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListRuns(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	for _, cfg := range []string{"a", "b", "a"} {
		_, err := store.CreateRun(ctx, CreateRunParams{Operation: "mint", Config: cfg})
		require.NoError(t, err)
	}

	all, err := store.ListRuns(ctx, ListRunsParams{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	onlyA, err := store.ListRuns(ctx, ListRunsParams{Config: "a"})
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)

	limited, err := store.ListRuns(ctx, ListRunsParams{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRunStatus(t *testing.T) {
	tests := []struct {
		name                           string
		succeeded, failed, buildFailed int
		want                           string
	}{
		{"all succeeded", 3, 0, 0, RunStatusSucceeded},
		{"nothing to do", 0, 0, 0, RunStatusSucceeded},
		{"some failed", 2, 1, 0, RunStatusPartial},
		{"build failures count", 2, 0, 1, RunStatusPartial},
		{"all failed", 0, 2, 1, RunStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RunStatus(tt.succeeded, tt.failed, tt.buildFailed))
		})
	}
}
