package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brojonat/mintgen/service/metrics"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusPartial   = "partial"
	RunStatusFailed    = "failed"
	RunStatusDryRun    = "dry_run"
)

// Store is the ledger of batch runs and their chunk outcomes.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no query metrics are recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Open connects to databaseURL and applies pending migrations.
func Open(ctx context.Context, databaseURL string, m *metrics.Metrics) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	store := NewStore(pool, m)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Pool is the underlying connection pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// EnsureSchema applies pending migrations quietly.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return MigrateUp(ctx, nil, s.pool)
}

// Run is one execution of a batch command.
type Run struct {
	ID          uuid.UUID  `json:"id"`
	Operation   string     `json:"operation"`
	Config      string     `json:"config"`
	TotalOps    int        `json:"total_ops"`
	Skipped     int        `json:"skipped"`
	DryRun      bool       `json:"dry_run"`
	Status      string     `json:"status"`
	Succeeded   int        `json:"succeeded"`
	Failed      int        `json:"failed"`
	BuildFailed int        `json:"build_failed"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// ChunkOutcome is the reported outcome of one chunk of a run.
type ChunkOutcome struct {
	RunID      uuid.UUID `json:"run_id"`
	ChunkIndex int       `json:"chunk_index"`
	ChunkTotal int       `json:"chunk_total"`
	OpOffset   int       `json:"op_offset"`
	Size       int       `json:"size"`
	Status     string    `json:"status"`
	Signature  *string   `json:"signature,omitempty"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateRunParams contains the parameters for starting a run.
type CreateRunParams struct {
	Operation string
	Config    string
	TotalOps  int
	Skipped   int
	DryRun    bool
}

// RecordOutcomeParams contains the parameters for recording a chunk outcome.
type RecordOutcomeParams struct {
	RunID      uuid.UUID
	ChunkIndex int
	ChunkTotal int
	OpOffset   int
	Size       int
	Status     string
	Signature  *string
	Error      *string
}

// FinishRunParams contains the final counts of a run.
type FinishRunParams struct {
	ID          uuid.UUID
	Status      string
	Succeeded   int
	Failed      int
	BuildFailed int
}

// ListRunsParams contains filter and pagination parameters.
type ListRunsParams struct {
	Config string // empty lists every config
	Limit  int32
	Offset int32
}

const runColumns = `id, operation, config, total_ops, skipped, dry_run, status,
	succeeded, failed, build_failed, started_at, finished_at`

// CreateRun inserts a new run in the running state.
func (s *Store) CreateRun(ctx context.Context, params CreateRunParams) (run *Run, err error) {
	defer func(start time.Time) { s.observe("create_run", "runs", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		INSERT INTO runs (id, operation, config, total_ops, skipped, dry_run, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+runColumns,
		uuid.New(), params.Operation, params.Config, params.TotalOps, params.Skipped, params.DryRun, RunStatusRunning,
	)
	return scanRun(row)
}

// RecordOutcome appends a chunk outcome to a run.
func (s *Store) RecordOutcome(ctx context.Context, params RecordOutcomeParams) (err error) {
	defer func(start time.Time) { s.observe("record_outcome", "chunk_outcomes", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		INSERT INTO chunk_outcomes (run_id, chunk_index, chunk_total, op_offset, size, status, signature, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		params.RunID, params.ChunkIndex, params.ChunkTotal, params.OpOffset, params.Size, params.Status,
		pgtextFromStringPtr(params.Signature), pgtextFromStringPtr(params.Error),
	)
	return err
}

// FinishRun stores the final counts and status of a run.
func (s *Store) FinishRun(ctx context.Context, params FinishRunParams) (run *Run, err error) {
	defer func(start time.Time) { s.observe("finish_run", "runs", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		UPDATE runs
		SET status = $2, succeeded = $3, failed = $4, build_failed = $5, finished_at = NOW()
		WHERE id = $1
		RETURNING `+runColumns,
		params.ID, params.Status, params.Succeeded, params.Failed, params.BuildFailed,
	)
	return scanRun(row)
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (run *Run, err error) {
	defer func(start time.Time) { s.observe("get_run", "runs", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, id)
	return scanRun(row)
}

// ListRuns lists runs, most recent first.
func (s *Store) ListRuns(ctx context.Context, params ListRunsParams) (runs []*Run, err error) {
	defer func(start time.Time) { s.observe("list_runs", "runs", start, err) }(time.Now())

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM runs
		WHERE $1::text = '' OR config = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3`,
		params.Config, limit, params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListOutcomes lists the chunk outcomes of a run in the order they were reported.
func (s *Store) ListOutcomes(ctx context.Context, runID uuid.UUID) (outcomes []*ChunkOutcome, err error) {
	defer func(start time.Time) { s.observe("list_outcomes", "chunk_outcomes", start, err) }(time.Now())

	rows, err := s.pool.Query(ctx, `
		SELECT run_id, chunk_index, chunk_total, op_offset, size, status, signature, error, created_at
		FROM chunk_outcomes
		WHERE run_id = $1
		ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o         ChunkOutcome
			signature pgtype.Text
			errText   pgtype.Text
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&o.RunID, &o.ChunkIndex, &o.ChunkTotal, &o.OpOffset, &o.Size, &o.Status, &signature, &errText, &createdAt); err != nil {
			return nil, err
		}
		o.Signature = stringPtrFromPgtext(signature)
		o.Error = stringPtrFromPgtext(errText)
		o.CreatedAt = createdAt.Time
		outcomes = append(outcomes, &o)
	}
	return outcomes, rows.Err()
}

// observe records query latency and status. A missing row is a successful
// query.
func (s *Store) observe(operation, table string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.RecordDBQuery(operation, table, time.Since(start).Seconds(), err)
}

func scanRun(row pgx.Row) (*Run, error) {
	var (
		r          Run
		startedAt  pgtype.Timestamptz
		finishedAt pgtype.Timestamptz
	)
	err := row.Scan(
		&r.ID, &r.Operation, &r.Config, &r.TotalOps, &r.Skipped, &r.DryRun, &r.Status,
		&r.Succeeded, &r.Failed, &r.BuildFailed, &startedAt, &finishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	r.StartedAt = startedAt.Time
	r.FinishedAt = timePtrFromPgTimestamptz(finishedAt)
	return &r, nil
}

// RunStatus derives the final status of a run from its counts.
func RunStatus(succeeded, failed, buildFailed int) string {
	switch {
	case failed == 0 && buildFailed == 0:
		return RunStatusSucceeded
	case succeeded == 0:
		return RunStatusFailed
	default:
		return RunStatusPartial
	}
}

func pgtextFromStringPtr(s *string) pgtype.Text {
	if s == nil {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func stringPtrFromPgtext(t pgtype.Text) *string {
	if !t.Valid {
		return nil
	}
	return &t.String
}

func timePtrFromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
