// Package pool provides the chunk-partitioning and bounded-concurrency
// fan-out shared by the Bucket K-Best Engine (C4) and the Hex Aggregator
// (C6): split a range of items into contiguous chunks, run one task per
// chunk concurrently, and join. No task observes another's intermediate
// state — merges happen single-threaded, after the join.
package pool

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Chunk is a contiguous half-open range [Lo, Hi) of item indices.
type Chunk struct {
	Lo, Hi int
}

// Partition splits n items into numParts contiguous, near-equal chunks.
// Mirrors the ceil-division partitioning used throughout this compute
// core's parallel sections (bucket engine anchor chunks, hex aggregator
// node ranges).
func Partition(n, numParts int) []Chunk {
	if numParts < 1 {
		numParts = 1
	}
	if numParts > n {
		numParts = n
	}
	if numParts < 1 {
		return nil
	}
	chunks := make([]Chunk, 0, numParts)
	start := 0
	for i := 0; i < numParts; i++ {
		remain := n - start
		partsLeft := numParts - i
		chunkLen := (remain + partsLeft - 1) / partsLeft
		chunks = append(chunks, Chunk{Lo: start, Hi: start + chunkLen})
		start += chunkLen
	}
	return chunks
}

// ProgressFunc is invoked at chunk boundaries with (done, total). Callers
// may route it through their own synchronization primitive; Run always
// calls it from a single goroutine at a time.
type ProgressFunc func(done, total int)

// Run executes one task per chunk with bounded concurrency and reports
// progress as each completes. Callers partition their own chunks (via
// Partition) since the natural chunk count — e.g. the K-Best Engine's
// anchor chunks, oversubscribed relative to threads for load balancing —
// doesn't always equal threads. Run returns the first error encountered,
// cancelling outstanding tasks via the group's context.
func Run(ctx context.Context, chunks []Chunk, threads int, task func(ctx context.Context, c Chunk) error, progress ProgressFunc) error {
	if threads < 1 {
		threads = 1
	}
	if len(chunks) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)

	var mu sync.Mutex
	done := 0
	for _, c := range chunks {
		c := c
		g.Go(func() error {
			if err := task(gctx, c); err != nil {
				return err
			}
			if progress != nil {
				mu.Lock()
				done++
				progress(done, len(chunks))
				mu.Unlock()
			}
			return nil
		})
	}
	return g.Wait()
}
