package batch

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyChunk is returned by a builder whose chunk has nothing left to do.
// Such chunks are dropped without an event.
var ErrEmptyChunk = errors.New("chunk contributes no instructions")

// Kind is the outcome of one chunk.
type Kind int

const (
	KindSucceeded Kind = iota
	KindFailed
	KindBuildFailed
)

func (k Kind) String() string {
	switch k {
	case KindSucceeded:
		return "success"
	case KindFailed:
		return "failure"
	case KindBuildFailed:
		return "build_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is the outcome of one chunk of a pipeline run.
//
// Position always counts partitioned chunks, dropped ones included, so an
// event maps back to ops[Offset:Offset+Size] of the run's input.
type Event struct {
	Kind     Kind     `json:"kind"`
	Position Position `json:"position"`
	TxID     string   `json:"tx_id,omitempty"`
	Err      error    `json:"-"`
	Offset   int      `json:"offset"`
	Size     int      `json:"size"`
}

// Ops returns the operations of ops that ev reported on.
func Ops[T any](ops []T, ev Event) []T {
	if ev.Offset < 0 || ev.Size < 0 || ev.Offset+ev.Size > len(ops) {
		return nil
	}
	return ops[ev.Offset : ev.Offset+ev.Size]
}

// Pipeline partitions operations, builds one transaction per chunk and
// submits the transactions concurrently.
type Pipeline[T, B any] struct {
	Capacity    int
	Parallelism int

	// Build turns a chunk of operations into something Submit can send.
	// Returning ErrEmptyChunk drops the chunk.
	Build func(ctx context.Context, chunk []T) (B, error)

	Submit func(ctx context.Context, built B) (string, error)
}

type built[B any] struct {
	value  B
	pos    Position
	offset int
	size   int
}

// Run builds every chunk up front and then submits the built chunks. The
// returned channel yields one event per non-dropped chunk and is closed when
// every chunk has reported.
func (p *Pipeline[T, B]) Run(ctx context.Context, ops []T) (<-chan Event, error) {
	if p.Build == nil || p.Submit == nil {
		return nil, errors.New("pipeline requires Build and Submit")
	}
	chunks, err := Partition(ops, p.Capacity)
	if err != nil {
		return nil, err
	}

	// Every chunk yields at most one event, so sends never block.
	events := make(chan Event, len(chunks))

	var ready []built[B]
	offset := 0
	for i, chunk := range chunks {
		b := built[B]{pos: Position{Index: i, Total: len(chunks)}, offset: offset, size: len(chunk)}
		offset += len(chunk)

		value, err := p.Build(ctx, chunk)
		if errors.Is(err, ErrEmptyChunk) {
			continue
		}
		if err != nil {
			events <- Event{Kind: KindBuildFailed, Position: b.pos, Err: err, Offset: b.offset, Size: b.size}
			continue
		}
		b.value = value
		ready = append(ready, b)
	}

	// Execute numbers the submitted chunks; events carry the partition position.
	go func() {
		defer close(events)
		Execute(ctx, ready, p.Parallelism,
			func(ctx context.Context, b built[B]) (string, error) {
				return p.Submit(ctx, b.value)
			},
			func(txID string, pos Position) {
				b := ready[pos.Index]
				events <- Event{Kind: KindSucceeded, Position: b.pos, TxID: txID, Offset: b.offset, Size: b.size}
			},
			func(err error, pos Position) {
				b := ready[pos.Index]
				events <- Event{Kind: KindFailed, Position: b.pos, Err: err, Offset: b.offset, Size: b.size}
			},
		)
	}()
	return events, nil
}

// Summary counts the outcomes of a run.
type Summary struct {
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	BuildFailed int `json:"build_failed"`
}

// Done is the number of chunks that reported.
func (s Summary) Done() int {
	return s.Succeeded + s.Failed + s.BuildFailed
}

// Drain consumes events until the channel closes, passing each to handle
// when it is not nil.
func Drain(events <-chan Event, handle func(Event)) Summary {
	var s Summary
	for ev := range events {
		switch ev.Kind {
		case KindSucceeded:
			s.Succeeded++
		case KindFailed:
			s.Failed++
		case KindBuildFailed:
			s.BuildFailed++
		}
		if handle != nil {
			handle(ev)
		}
	}
	return s
}
