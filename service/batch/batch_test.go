package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestPartition(t *testing.T) {
	tests := []struct {
		n, capacity int
		wantSizes   []int
	}{
		{0, 1, nil},
		{0, 5, nil},
		{1, 1, []int{1}},
		{7, 3, []int{3, 3, 1}},
		{6, 3, []int{3, 3}},
		{2, 10, []int{2}},
		{5, 1, []int{1, 1, 1, 1, 1}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d items capacity %d", tt.n, tt.capacity), func(t *testing.T) {
			items := seq(tt.n)
			chunks, err := Partition(items, tt.capacity)
			require.NoError(t, err)
			assert.Len(t, chunks, (tt.n+tt.capacity-1)/tt.capacity)

			var sizes []int
			var flat []int
			for _, c := range chunks {
				sizes = append(sizes, len(c))
				flat = append(flat, c...)
			}
			assert.Equal(t, tt.wantSizes, sizes)
			if tt.n > 0 {
				assert.Equal(t, items, flat, "order and content preserved")
			}
		})
	}
}

func TestPartition_InvalidCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		_, err := Partition(seq(3), capacity)
		assert.True(t, errors.Is(err, ErrInvalidCapacity))
	}
}

func TestPartition_ChunksDoNotAlias(t *testing.T) {
	chunks, err := Partition(seq(4), 2)
	require.NoError(t, err)
	_ = append(chunks[0], 99)
	assert.Equal(t, []int{2, 3}, chunks[1])
}

// recorder collects callback invocations; Execute serializes callbacks, and
// the mutex lets the race detector confirm it.
type recorder struct {
	mu        sync.Mutex
	successes map[int]int
	failures  map[int]int
	totals    []int
	errs      map[int]error
}

func newRecorder() *recorder {
	return &recorder{successes: map[int]int{}, failures: map[int]int{}, errs: map[int]error{}}
}

func (r *recorder) onSuccess(txID string, pos Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes[pos.Index]++
	r.totals = append(r.totals, pos.Total)
}

func (r *recorder) onFailure(err error, pos Position) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[pos.Index]++
	r.errs[pos.Index] = err
	r.totals = append(r.totals, pos.Total)
}

func TestExecute_FailureDoesNotStopSiblings(t *testing.T) {
	chunks, err := Partition(seq(7), 3)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	rejected := errors.New("transport rejected transaction")
	submit := func(ctx context.Context, chunk []int) (string, error) {
		if chunk[0] == 3 {
			return "", rejected
		}
		// Finish out of order: the first chunk completes last.
		if chunk[0] == 0 {
			time.Sleep(20 * time.Millisecond)
		}
		return fmt.Sprintf("tx-%d", chunk[0]), nil
	}

	rec := newRecorder()
	Execute(context.Background(), chunks, 2, submit, rec.onSuccess, rec.onFailure)

	assert.Equal(t, map[int]int{0: 1, 2: 1}, rec.successes)
	assert.Equal(t, map[int]int{1: 1}, rec.failures)
	assert.ErrorIs(t, rec.errs[1], rejected)
	assert.Equal(t, []int{3, 3, 3}, rec.totals)
}

func TestExecute_RespectsParallelism(t *testing.T) {
	const parallelism = 3
	var inFlight, peak atomic.Int32

	submit := func(ctx context.Context, chunk int) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	}

	rec := newRecorder()
	Execute(context.Background(), seq(20), parallelism, submit, rec.onSuccess, rec.onFailure)

	assert.Len(t, rec.successes, 20)
	assert.LessOrEqual(t, peak.Load(), int32(parallelism))
	assert.Greater(t, peak.Load(), int32(1), "chunks should overlap")
}

func TestExecute_CallbacksNotConcurrent(t *testing.T) {
	var active atomic.Int32
	var overlapped atomic.Bool
	cb := func() {
		if active.Add(1) > 1 {
			overlapped.Store(true)
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
	}
	submit := func(ctx context.Context, chunk int) (string, error) {
		if chunk%2 == 0 {
			return "", errors.New("even")
		}
		return "odd", nil
	}

	Execute(context.Background(), seq(16), 8, submit,
		func(string, Position) { cb() },
		func(error, Position) { cb() },
	)
	assert.False(t, overlapped.Load())
}

func TestExecute_RecoversPanics(t *testing.T) {
	submit := func(ctx context.Context, chunk int) (string, error) {
		if chunk == 1 {
			panic("boom")
		}
		return "ok", nil
	}
	rec := newRecorder()
	Execute(context.Background(), seq(3), 2, submit, rec.onSuccess, rec.onFailure)

	assert.Equal(t, map[int]int{0: 1, 2: 1}, rec.successes)
	require.Contains(t, rec.errs, 1)
	assert.Contains(t, rec.errs[1].Error(), "boom")
}

func TestExecute_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var submitted atomic.Int32
	submit := func(ctx context.Context, chunk int) (string, error) {
		submitted.Add(1)
		return "ok", nil
	}
	rec := newRecorder()
	Execute(ctx, seq(4), 2, submit, rec.onSuccess, rec.onFailure)

	assert.Zero(t, submitted.Load())
	assert.Len(t, rec.failures, 4, "every chunk still reports once")
	for _, err := range rec.errs {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestExecute_ZeroParallelismRunsSerially(t *testing.T) {
	var order []int
	var mu sync.Mutex
	submit := func(ctx context.Context, chunk int) (string, error) {
		mu.Lock()
		order = append(order, chunk)
		mu.Unlock()
		return "ok", nil
	}
	Execute(context.Background(), seq(5), 0, submit, nil, nil)
	assert.Equal(t, seq(5), order)
}

func TestPipeline_Run(t *testing.T) {
	buildErr := errors.New("holder does not qualify")
	p := &Pipeline[int, []int]{
		Capacity:    2,
		Parallelism: 2,
		Build: func(ctx context.Context, chunk []int) ([]int, error) {
			switch chunk[0] {
			case 2:
				return nil, ErrEmptyChunk
			case 4:
				return nil, buildErr
			}
			return chunk, nil
		},
		Submit: func(ctx context.Context, chunk []int) (string, error) {
			if chunk[0] == 6 {
				return "", errors.New("rejected")
			}
			return fmt.Sprintf("tx-%d", chunk[0]), nil
		},
	}

	// Chunks: [0 1] [2 3] [4 5] [6 7] [8]
	events, err := p.Run(context.Background(), seq(9))
	require.NoError(t, err)

	var got []Event
	summary := Drain(events, func(ev Event) { got = append(got, ev) })

	assert.Equal(t, Summary{Succeeded: 2, Failed: 1, BuildFailed: 1}, summary)
	assert.Equal(t, 4, summary.Done())

	sort.Slice(got, func(i, j int) bool {
		if got[i].Kind != got[j].Kind {
			return got[i].Kind < got[j].Kind
		}
		return got[i].Position.Index < got[j].Position.Index
	})
	require.Len(t, got, 4)

	// Every event is numbered against the five partitioned chunks.
	assert.Equal(t, KindSucceeded, got[0].Kind)
	assert.Equal(t, Position{Index: 0, Total: 5}, got[0].Position)
	assert.Equal(t, "tx-0", got[0].TxID)
	assert.Equal(t, []int{0, 1}, Ops(seq(9), got[0]))

	assert.Equal(t, KindSucceeded, got[1].Kind)
	assert.Equal(t, Position{Index: 4, Total: 5}, got[1].Position)
	assert.Equal(t, 8, got[1].Offset)
	assert.Equal(t, 1, got[1].Size)

	assert.Equal(t, KindFailed, got[2].Kind)
	assert.Equal(t, Position{Index: 3, Total: 5}, got[2].Position)
	assert.Equal(t, []int{6, 7}, Ops(seq(9), got[2]))

	assert.Equal(t, KindBuildFailed, got[3].Kind)
	assert.Equal(t, Position{Index: 2, Total: 5}, got[3].Position)
	assert.Equal(t, []int{4, 5}, Ops(seq(9), got[3]))
	assert.ErrorIs(t, got[3].Err, buildErr)
}

func TestPipeline_Run_PositionsSurviveDroppedChunks(t *testing.T) {
	p := &Pipeline[int, []int]{
		Capacity:    2,
		Parallelism: 1,
		Build: func(ctx context.Context, chunk []int) ([]int, error) {
			switch chunk[0] {
			case 0:
				return nil, ErrEmptyChunk
			case 2:
				return nil, errors.New("missing qualifying asset")
			}
			return chunk, nil
		},
		Submit: func(ctx context.Context, chunk []int) (string, error) {
			return "", errors.New("rejected")
		},
	}

	events, err := p.Run(context.Background(), seq(6))
	require.NoError(t, err)

	byIndex := map[int]Event{}
	Drain(events, func(ev Event) {
		_, dup := byIndex[ev.Position.Index]
		assert.False(t, dup, "chunk %s reported twice", ev.Position)
		byIndex[ev.Position.Index] = ev
	})

	require.Len(t, byIndex, 2)
	assert.Equal(t, KindBuildFailed, byIndex[1].Kind)
	assert.Equal(t, KindFailed, byIndex[2].Kind)
	assert.Equal(t, Position{Index: 2, Total: 3}, byIndex[2].Position)
	assert.Equal(t, []int{4, 5}, Ops(seq(6), byIndex[2]))
}

func TestOps(t *testing.T) {
	ops := seq(5)
	assert.Equal(t, []int{2, 3}, Ops(ops, Event{Offset: 2, Size: 2}))
	assert.Nil(t, Ops(ops, Event{Offset: 4, Size: 2}))
}

func TestPipeline_Run_InvalidCapacity(t *testing.T) {
	p := &Pipeline[int, int]{
		Build:  func(ctx context.Context, chunk []int) (int, error) { return 0, nil },
		Submit: func(ctx context.Context, v int) (string, error) { return "", nil },
	}
	_, err := p.Run(context.Background(), seq(3))
	assert.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestPipeline_Run_Empty(t *testing.T) {
	p := &Pipeline[int, int]{
		Capacity: 3,
		Build:    func(ctx context.Context, chunk []int) (int, error) { return 0, nil },
		Submit:   func(ctx context.Context, v int) (string, error) { return "", nil },
	}
	events, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{}, Drain(events, nil))
}

func TestPosition_String(t *testing.T) {
	assert.Equal(t, "2/3", Position{Index: 1, Total: 3}.String())
}
