package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/mintgen/service/batch"
	"github.com/brojonat/mintgen/service/db"
	"github.com/brojonat/mintgen/service/metrics"
	natspkg "github.com/brojonat/mintgen/service/nats"
	"github.com/brojonat/mintgen/service/resolver"
	solanasvc "github.com/brojonat/mintgen/service/solana"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
)

// batchRun is one pipeline run of a batch command.
type batchRun[T any] struct {
	Operation   string
	Config      string
	Ops         []T
	Skipped     int // operations dropped before the run because they are already done
	DryRun      bool
	Capacity    int
	Parallelism int
	Build       func(ctx context.Context, chunk []T) (*solanasvc.Tx, error)
}

// submitFunc sends one transaction and returns its signature.
type submitFunc func(ctx context.Context, tx *solanasvc.Tx) (string, error)

// sinks receive the outcome of every chunk. Any of them may be nil.
type sinks struct {
	logger    *slog.Logger
	metrics   *metrics.Metrics
	store     *db.Store
	publisher natspkg.Publisher
}

func (e *env) sinks() sinks {
	return sinks{logger: e.logger, metrics: e.metrics, store: e.store, publisher: e.publisher}
}

// submit adapts the env's submitter to the pipeline.
func (e *env) submit(ctx context.Context, tx *solanasvc.Tx) (string, error) {
	sig, err := e.submitter.Submit(ctx, tx)
	if err != nil {
		if !sig.IsZero() {
			return "", fmt.Errorf("%s: %w", sig, err)
		}
		return "", err
	}
	return sig.String(), nil
}

// runReport summarizes a finished run.
type runReport struct {
	RunID     string `json:"run_id"`
	Operation string `json:"operation"`
	Config    string `json:"config"`
	TotalOps  int    `json:"total_ops"`
	Skipped   int    `json:"skipped"`
	DryRun    bool   `json:"dry_run"`
	Chunks    int    `json:"chunks"`
	Status    string `json:"status"`
	batch.Summary
	Duration time.Duration `json:"-"`
}

// Err reports failed chunks as a single error.
func (r *runReport) Err() error {
	if failed := r.Failed + r.BuildFailed; failed > 0 {
		return fmt.Errorf("%d of %d chunks failed", failed, r.Done())
	}
	return nil
}

// runBatch executes run and reports every chunk to s. The returned error
// covers only setup problems; failed chunks are counted in the report.
func runBatch[T any](ctx context.Context, s sinks, run batchRun[T], submit submitFunc) (*runReport, error) {
	start := time.Now()
	logger := s.logger.With("operation", run.Operation, "config", run.Config)
	// Outcomes are recorded even when the run is interrupted.
	sinkCtx := context.WithoutCancel(ctx)

	report := &runReport{
		RunID:     uuid.NewString(),
		Operation: run.Operation,
		Config:    run.Config,
		TotalOps:  len(run.Ops),
		Skipped:   run.Skipped,
		DryRun:    run.DryRun,
	}

	if s.metrics != nil && run.Skipped > 0 {
		s.metrics.RecordOperationsSkipped(run.Operation, "already_set", run.Skipped)
	}

	if s.store != nil {
		created, err := s.store.CreateRun(sinkCtx, db.CreateRunParams{
			Operation: run.Operation,
			Config:    run.Config,
			TotalOps:  len(run.Ops),
			Skipped:   run.Skipped,
			DryRun:    run.DryRun,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
		report.RunID = created.ID.String()
	}
	logger = logger.With("run_id", report.RunID)

	logger.InfoContext(ctx, "starting batch run",
		"operations", len(run.Ops),
		"skipped", run.Skipped,
		"batch_size", run.Capacity,
		"parallel", run.Parallelism,
		"dry_run", run.DryRun,
	)

	handle := func(ev batch.Event) {
		report.Chunks++
		s.record(sinkCtx, logger, report, ev)
	}

	if run.DryRun {
		summary, err := dryRun(ctx, run, handle)
		if err != nil {
			return nil, err
		}
		report.Summary = summary
		report.Status = db.RunStatusDryRun
	} else {
		pipeline := &batch.Pipeline[T, *solanasvc.Tx]{
			Capacity:    run.Capacity,
			Parallelism: run.Parallelism,
			Build:       run.Build,
			Submit:      submit,
		}
		events, err := pipeline.Run(ctx, run.Ops)
		if err != nil {
			return nil, err
		}
		report.Summary = batch.Drain(events, handle)
		report.Status = db.RunStatus(report.Succeeded, report.Failed, report.BuildFailed)
	}
	report.Duration = time.Since(start)

	if s.metrics != nil {
		s.metrics.RecordBatchRun(run.Operation, report.Status, report.Duration.Seconds())
	}
	if s.store != nil {
		id, _ := uuid.Parse(report.RunID)
		if _, err := s.store.FinishRun(sinkCtx, db.FinishRunParams{
			ID:          id,
			Status:      report.Status,
			Succeeded:   report.Succeeded,
			Failed:      report.Failed,
			BuildFailed: report.BuildFailed,
		}); err != nil {
			logger.WarnContext(ctx, "failed to finish run", "error", err)
		}
	}

	logger.InfoContext(ctx, "batch run finished",
		"status", report.Status,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"build_failed", report.BuildFailed,
		"duration", report.Duration,
	)
	return report, nil
}

// dryRun builds every chunk without submitting. Built chunks count as
// succeeded.
func dryRun[T any](ctx context.Context, run batchRun[T], handle func(batch.Event)) (batch.Summary, error) {
	chunks, err := batch.Partition(run.Ops, run.Capacity)
	if err != nil {
		return batch.Summary{}, err
	}
	events := make(chan batch.Event, len(chunks))
	offset := 0
	for i, chunk := range chunks {
		ev := batch.Event{Position: batch.Position{Index: i, Total: len(chunks)}, Offset: offset, Size: len(chunk)}
		offset += len(chunk)

		_, err := run.Build(ctx, chunk)
		switch {
		case errors.Is(err, batch.ErrEmptyChunk):
			continue
		case err != nil:
			ev.Kind, ev.Err = batch.KindBuildFailed, err
		default:
			ev.Kind = batch.KindSucceeded
		}
		events <- ev
	}
	close(events)
	return batch.Drain(events, handle), nil
}

func (s sinks) record(ctx context.Context, logger *slog.Logger, r *runReport, ev batch.Event) {
	attrs := []any{"chunk", ev.Position.String(), "ops", fmt.Sprintf("%d-%d", ev.Offset, ev.Offset+ev.Size-1), "size", ev.Size}
	switch {
	case ev.Kind == batch.KindSucceeded && r.DryRun:
		logger.InfoContext(ctx, "chunk built", attrs...)
	case ev.Kind == batch.KindSucceeded:
		logger.InfoContext(ctx, "chunk confirmed", append(attrs, "signature", ev.TxID)...)
	default:
		logger.ErrorContext(ctx, "chunk failed", append(attrs, "kind", ev.Kind.String(), "error", ev.Err)...)
	}

	if s.metrics != nil {
		s.metrics.RecordChunk(r.Operation, ev.Kind.String(), ev.Size)
		if ev.Kind == batch.KindBuildFailed {
			s.metrics.RecordResolutionFailure(resolutionReason(ev.Err))
		}
	}

	if s.publisher != nil && !r.DryRun {
		if err := s.publisher.PublishOutcome(ctx, natspkg.FromBatchEvent(r.RunID, r.Operation, r.Config, ev)); err != nil {
			logger.WarnContext(ctx, "failed to publish outcome", "chunk", ev.Position.String(), "error", err)
		}
	}

	if s.store != nil {
		params := db.RecordOutcomeParams{
			ChunkIndex: ev.Position.Index,
			ChunkTotal: ev.Position.Total,
			OpOffset:   ev.Offset,
			Size:       ev.Size,
			Status:     ev.Kind.String(),
		}
		params.RunID, _ = uuid.Parse(r.RunID)
		if ev.TxID != "" {
			params.Signature = &ev.TxID
		}
		if ev.Err != nil {
			msg := ev.Err.Error()
			params.Error = &msg
		}
		if err := s.store.RecordOutcome(ctx, params); err != nil {
			logger.WarnContext(ctx, "failed to record outcome", "chunk", ev.Position.String(), "error", err)
		}
	}
}

// resolutionReason labels why a chunk could not be built.
func resolutionReason(err error) string {
	switch {
	case errors.Is(err, resolver.ErrAssetNotFound):
		return "asset_not_found"
	case errors.Is(err, resolver.ErrMissingQualifyingAsset):
		return "missing_qualifying_asset"
	case errors.Is(err, resolver.ErrInvalidCheckConfiguration):
		return "invalid_check"
	case errors.Is(err, resolver.ErrMissingHolder):
		return "missing_holder"
	default:
		return "other"
	}
}

// printReport writes the run summary and returns the report's error, so
// a run with failed chunks exits non-zero.
func printReport(c *cli.Context, r *runReport) error {
	if wantJSON(c) {
		if err := outputJSON(c, r); err != nil {
			return err
		}
		return r.Err()
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Run:          %s\n", r.RunID)
	fmt.Fprintf(w, "Operation:    %s\n", r.Operation)
	fmt.Fprintf(w, "Config:       %s\n", r.Config)
	fmt.Fprintf(w, "Status:       %s\n", r.Status)
	fmt.Fprintf(w, "Operations:   %d (%d already done)\n", r.TotalOps, r.Skipped)
	fmt.Fprintf(w, "Chunks:       %d\n", r.Chunks)
	fmt.Fprintf(w, "Succeeded:    %d\n", r.Succeeded)
	fmt.Fprintf(w, "Failed:       %d\n", r.Failed)
	fmt.Fprintf(w, "Build failed: %d\n", r.BuildFailed)
	fmt.Fprintf(w, "Duration:     %s\n", r.Duration.Round(time.Millisecond))
	return r.Err()
}
