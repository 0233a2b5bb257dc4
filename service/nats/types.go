package nats

import (
	"time"

	"github.com/brojonat/mintgen/service/batch"
)

// OutcomeEvent is the outcome of one chunk of a batch run.
// It is published to the subject "mintgen.outcomes.{config}" in JetStream.
type OutcomeEvent struct {
	// Run identifiers
	RunID     string `json:"run_id"`
	Operation string `json:"operation"`
	Config    string `json:"config"`

	// Chunk position within the run (0-based index). The chunk covers the
	// operations [OpOffset, OpOffset+Size) of the run's input.
	ChunkIndex int `json:"chunk_index"`
	ChunkTotal int `json:"chunk_total"`
	OpOffset   int `json:"op_offset"`
	Size       int `json:"size"`

	// Outcome
	Status    string `json:"status"`
	Signature string `json:"signature,omitempty"`
	Error     string `json:"error,omitempty"`

	// Metadata
	PublishedAt time.Time `json:"published_at"`
}

// FromBatchEvent converts a pipeline event into an OutcomeEvent for publishing.
func FromBatchEvent(runID, operation, config string, ev batch.Event) *OutcomeEvent {
	event := &OutcomeEvent{
		RunID:       runID,
		Operation:   operation,
		Config:      config,
		ChunkIndex:  ev.Position.Index,
		ChunkTotal:  ev.Position.Total,
		OpOffset:    ev.Offset,
		Size:        ev.Size,
		Status:      ev.Kind.String(),
		Signature:   ev.TxID,
		PublishedAt: time.Now().UTC(),
	}
	if ev.Err != nil {
		event.Error = ev.Err.Error()
	}
	return event
}
