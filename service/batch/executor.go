package batch

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Position tags an outcome with its chunk. Index is zero based.
type Position struct {
	Index int `json:"index"`
	Total int `json:"total"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d/%d", p.Index+1, p.Total)
}

// SubmitFunc submits one chunk and returns its transaction id.
type SubmitFunc[C any] func(ctx context.Context, chunk C) (string, error)

// SuccessFunc is called once for every chunk that was confirmed.
type SuccessFunc func(txID string, pos Position)

// FailureFunc is called once for every chunk that failed.
type FailureFunc func(err error, pos Position)

// Execute submits every chunk with at most parallelism submissions in flight
// and reports each chunk exactly once through onSuccess or onFailure. A failed
// chunk never stops the others and is not retried. Callbacks are never
// invoked concurrently.
//
// Chunks that have not started when ctx is cancelled are reported as
// failures carrying the context error.
func Execute[C any](
	ctx context.Context,
	chunks []C,
	parallelism int,
	submit SubmitFunc[C],
	onSuccess SuccessFunc,
	onFailure FailureFunc,
) {
	if parallelism < 1 {
		parallelism = 1
	}
	total := len(chunks)

	var mu sync.Mutex
	report := func(txID string, err error, pos Position) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			if onFailure != nil {
				onFailure(err, pos)
			}
			return
		}
		if onSuccess != nil {
			onSuccess(txID, pos)
		}
	}

	// A plain group: errors are reported per chunk and must not cancel siblings.
	var g errgroup.Group
	g.SetLimit(parallelism)

	for i, chunk := range chunks {
		pos := Position{Index: i, Total: total}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report("", err, pos)
				return nil
			}
			txID, err := submitSafely(ctx, submit, chunk)
			report(txID, err, pos)
			return nil
		})
	}
	_ = g.Wait()
}

func submitSafely[C any](ctx context.Context, submit SubmitFunc[C], chunk C) (txID string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("submit panicked: %v", r)
		}
	}()
	return submit(ctx, chunk)
}
