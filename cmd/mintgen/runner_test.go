package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/brojonat/mintgen/service/batch"
	"github.com/brojonat/mintgen/service/db"
	"github.com/brojonat/mintgen/service/metrics"
	natspkg "github.com/brojonat/mintgen/service/nats"
	"github.com/brojonat/mintgen/service/resolver"
	solanasvc "github.com/brojonat/mintgen/service/solana"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSinks(t *testing.T) (sinks, *natspkg.MockPublisher, *prometheus.Registry) {
	t.Helper()
	registry := prometheus.NewRegistry()
	publisher := natspkg.NewMockPublisher()
	return sinks{
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics:   metrics.NewMetrics(registry),
		publisher: publisher,
	}, publisher, registry
}

// countingSubmit confirms every chunk with a fresh signature.
type countingSubmit struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSubmit) submit(ctx context.Context, tx *solanasvc.Tx) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return fmt.Sprintf("sig-%d", s.calls), nil
}

func buildInts(ctx context.Context, chunk []int) (*solanasvc.Tx, error) {
	return &solanasvc.Tx{}, nil
}

func TestRunBatch_AllSucceed(t *testing.T) {
	s, publisher, registry := testSinks(t)
	sub := &countingSubmit{}

	report, err := runBatch(context.Background(), s, batchRun[int]{
		Operation:   "set_mint_entries",
		Config:      "bodoggos",
		Ops:         []int{1, 2, 3, 4, 5},
		Skipped:     2,
		Capacity:    2,
		Parallelism: 2,
		Build:       buildInts,
	}, sub.submit)
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 5, report.TotalOps)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 3, report.Chunks)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, db.RunStatusSucceeded, report.Status)
	assert.NoError(t, report.Err())
	assert.Equal(t, 3, sub.calls)

	events := publisher.GetPublishedEventsForRun(report.RunID)
	require.Len(t, events, 3)
	sizes := 0
	for _, ev := range events {
		assert.Equal(t, "set_mint_entries", ev.Operation)
		assert.Equal(t, "bodoggos", ev.Config)
		assert.Equal(t, "success", ev.Status)
		assert.Equal(t, 3, ev.ChunkTotal)
		assert.NotEmpty(t, ev.Signature)
		sizes += ev.Size
	}
	assert.Equal(t, 5, sizes)

	count, err := testutil.GatherAndCount(registry, "mintgen_operations_skipped_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunBatch_FailuresAreCounted(t *testing.T) {
	s, publisher, _ := testSinks(t)
	submitErr := errors.New("blockhash not found")

	report, err := runBatch(context.Background(), s, batchRun[int]{
		Operation:   "mint_to_users",
		Config:      "bodoggos",
		Ops:         []int{1, 2, 3},
		Capacity:    1,
		Parallelism: 1,
		Build: func(ctx context.Context, chunk []int) (*solanasvc.Tx, error) {
			switch chunk[0] {
			case 1:
				return nil, batch.ErrEmptyChunk
			case 2:
				return nil, &resolver.CheckError{Index: 0, Err: resolver.ErrAssetNotFound}
			}
			return &solanasvc.Tx{}, nil
		},
	}, func(ctx context.Context, tx *solanasvc.Tx) (string, error) {
		return "", submitErr
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.BuildFailed)
	assert.Equal(t, db.RunStatusFailed, report.Status)
	require.Error(t, report.Err())
	assert.Contains(t, report.Err().Error(), "2 of 2 chunks failed")

	events := publisher.GetPublishedEvents()
	require.Len(t, events, 2)
	byStatus := map[string]*natspkg.OutcomeEvent{}
	for _, ev := range events {
		byStatus[ev.Status] = ev
	}
	require.Contains(t, byStatus, "failure")
	require.Contains(t, byStatus, "build_failure")

	// The dropped first chunk keeps its slot in the numbering.
	failed := byStatus["failure"]
	assert.Contains(t, failed.Error, "blockhash not found")
	assert.Equal(t, 2, failed.ChunkIndex)
	assert.Equal(t, 3, failed.ChunkTotal)
	assert.Equal(t, 2, failed.OpOffset)

	buildFailed := byStatus["build_failure"]
	assert.Contains(t, buildFailed.Error, "no qualifying token account found")
	assert.Equal(t, 1, buildFailed.ChunkIndex)
	assert.Equal(t, 1, buildFailed.OpOffset)
}

func TestRunBatch_DryRunDoesNotSubmit(t *testing.T) {
	s, publisher, _ := testSinks(t)
	sub := &countingSubmit{}

	report, err := runBatch(context.Background(), s, batchRun[int]{
		Operation:   "release_output_mints",
		Config:      "bodoggos",
		Ops:         []int{1, 2, 3, 4},
		DryRun:      true,
		Capacity:    3,
		Parallelism: 4,
		Build:       buildInts,
	}, sub.submit)
	require.NoError(t, err)

	assert.Equal(t, 0, sub.calls)
	assert.Empty(t, publisher.GetPublishedEvents())
	assert.True(t, report.DryRun)
	assert.Equal(t, db.RunStatusDryRun, report.Status)
	assert.Equal(t, 2, report.Chunks)
	assert.Equal(t, 2, report.Succeeded)
	assert.NoError(t, report.Err())
}

func TestRunBatch_InvalidCapacity(t *testing.T) {
	s, _, _ := testSinks(t)

	_, err := runBatch(context.Background(), s, batchRun[int]{
		Operation: "set_mint_entries",
		Ops:       []int{1},
		Capacity:  0,
		Build:     buildInts,
	}, (&countingSubmit{}).submit)
	assert.ErrorIs(t, err, batch.ErrInvalidCapacity)
}

func TestRunBatch_PublishErrorDoesNotFailRun(t *testing.T) {
	s, publisher, _ := testSinks(t)
	publisher.SetPublishError(errors.New("nats down"))

	report, err := runBatch(context.Background(), s, batchRun[int]{
		Operation:   "set_mint_entries",
		Config:      "bodoggos",
		Ops:         []int{1, 2},
		Capacity:    1,
		Parallelism: 2,
		Build:       buildInts,
	}, (&countingSubmit{}).submit)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.NoError(t, report.Err())
}

func TestResolutionReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&resolver.CheckError{Err: resolver.ErrAssetNotFound}, "asset_not_found"},
		{fmt.Errorf("mint to x: %w", resolver.ErrMissingQualifyingAsset), "missing_qualifying_asset"},
		{resolver.ErrInvalidCheckConfiguration, "invalid_check"},
		{resolver.ErrMissingHolder, "missing_holder"},
		{errors.New("boom"), "other"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, resolutionReason(tt.err))
		})
	}
}
