// Package batch groups independent operations into size-bounded chunks and
// submits the chunks concurrently, reporting one outcome per chunk.
package batch

import (
	"errors"
	"fmt"
)

// ErrInvalidCapacity is returned when a chunk capacity below 1 is requested.
var ErrInvalidCapacity = errors.New("chunk capacity must be at least 1")

// Partition splits items into contiguous chunks of at most capacity items,
// preserving order. Only the last chunk may be smaller. Empty input yields
// no chunks.
func Partition[T any](items []T, capacity int) ([][]T, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if len(items) == 0 {
		return nil, nil
	}

	chunks := make([][]T, 0, (len(items)+capacity-1)/capacity)
	for start := 0; start < len(items); start += capacity {
		end := min(start+capacity, len(items))
		// Cap each chunk so appending to it cannot overwrite the next one.
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}
