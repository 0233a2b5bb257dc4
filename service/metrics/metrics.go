package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for mintgen.
// It is passed explicitly to every component that records metrics; a nil
// *Metrics disables recording.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	solanaRPCRetries       *prometheus.CounterVec

	// Transaction Metrics
	confirmationDuration *prometheus.HistogramVec

	// Batch Metrics
	chunksTotal        *prometheus.CounterVec
	chunkSize          *prometheus.HistogramVec
	operationsSkipped  *prometheus.CounterVec
	resolutionFailures *prometheus.CounterVec
	batchRunsTotal     *prometheus.CounterVec
	batchRunDuration   *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"method", "reason"},
		),

		// Transaction Metrics
		confirmationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_confirmation_duration_seconds",
				Help:    "Time from send to confirmation or failure of a transaction",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90},
			},
			[]string{"status"},
		),

		// Batch Metrics
		chunksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mintgen_chunks_total",
				Help: "Total number of chunk outcomes by operation and status",
			},
			[]string{"operation", "status"},
		),
		chunkSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mintgen_chunk_operations",
				Help:    "Number of operations per reported chunk",
				Buckets: []float64{1, 2, 4, 6, 8, 10, 15, 20},
			},
			[]string{"operation"},
		),
		operationsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mintgen_operations_skipped_total",
				Help: "Total number of operations skipped because the chain already matches",
			},
			[]string{"operation", "reason"},
		),
		resolutionFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mintgen_resolution_failures_total",
				Help: "Total number of remaining account resolution failures",
			},
			[]string{"reason"},
		),
		batchRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mintgen_batch_runs_total",
				Help: "Total number of batch runs by operation",
			},
			[]string{"operation", "status"},
		),
		batchRunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mintgen_batch_run_duration_seconds",
				Help:    "Duration of batch runs in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 900},
			},
			[]string{"operation"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(method, reason string) {
	m.solanaRPCRetries.WithLabelValues(method, reason).Inc()
}

// RecordConfirmation records how long a sent transaction took to settle.
func (m *Metrics) RecordConfirmation(status string, duration float64) {
	m.confirmationDuration.WithLabelValues(status).Observe(duration)
}

// Batch metric helpers

// RecordChunk records the outcome of one chunk.
func (m *Metrics) RecordChunk(operation, status string, size int) {
	m.chunksTotal.WithLabelValues(operation, status).Inc()
	m.chunkSize.WithLabelValues(operation).Observe(float64(size))
}

// RecordOperationsSkipped records operations dropped before submission.
func (m *Metrics) RecordOperationsSkipped(operation, reason string, count int) {
	m.operationsSkipped.WithLabelValues(operation, reason).Add(float64(count))
}

// RecordResolutionFailure records a resolver error by reason.
func (m *Metrics) RecordResolutionFailure(reason string) {
	m.resolutionFailures.WithLabelValues(reason).Inc()
}

// RecordBatchRun records a finished batch run.
func (m *Metrics) RecordBatchRun(operation, status string, duration float64) {
	m.batchRunsTotal.WithLabelValues(operation, status).Inc()
	m.batchRunDuration.WithLabelValues(operation).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}
