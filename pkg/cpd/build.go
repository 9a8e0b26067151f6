package cpd

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"cpdrouter/pkg/graphmodel"
	"cpdrouter/pkg/order"
)

// BuildOptions configures the parallel build orchestrator.
type BuildOptions struct {
	// Threads is the worker count. Defaults to 1 if <= 0.
	Threads int
	// OnProgress, if set, is called (under a mutex, at coarse ~10%
	// granularity) with the fraction of sources completed across all
	// workers so far.
	OnProgress func(fraction float64)
}

// workerResult is one worker's local, self-contained CPD fragment: its
// slice of sources' compressed runs, and the run-offset of each source's
// row relative to the start of runs.
type workerResult struct {
	rangeStart uint32
	rangeEnd   uint32
	runs       []Run
	rowBegins  []uint64 // len (rangeEnd-rangeStart)+1, offsets into runs
}

// Build partitions vertex ids into contiguous per-worker ranges, computes
// each source's Dijkstra-with-allowed-set and RLE row independently, and
// merges the results in source-id order so the merged CPD is identical
// regardless of thread count.
//
// Any worker returning an error aborts the whole build: no partial CPD is
// produced.
func Build(ctx context.Context, g *graphmodel.Graph, ord *order.Ordering, opts BuildOptions) (*CPD, error) {
	threads := opts.Threads
	if threads <= 0 {
		threads = 1
	}
	n := g.NumVertices
	if n == 0 {
		return &CPD{Order: ord, RowBegin: []uint64{0}}, nil
	}
	if uint32(threads) > n {
		threads = int(n)
	}

	rangeLen := (n + uint32(threads) - 1) / uint32(threads)
	results := make([]workerResult, threads)

	var completed int64
	var progressMu sync.Mutex
	lastReportedDecile := -1
	reportProgress := func() {
		done := atomic.AddInt64(&completed, 1)
		if opts.OnProgress == nil {
			return
		}
		frac := float64(done) / float64(n)
		decile := int(frac * 10)
		progressMu.Lock()
		if decile > lastReportedDecile {
			lastReportedDecile = decile
			opts.OnProgress(frac)
		}
		progressMu.Unlock()
	}

	group, gctx := errgroup.WithContext(ctx)
	for worker := 0; worker < threads; worker++ {
		worker := worker
		rangeStart := uint32(worker) * rangeLen
		rangeEnd := min(rangeStart+rangeLen, n)
		if rangeStart >= rangeEnd {
			results[worker] = workerResult{rangeStart: rangeStart, rangeEnd: rangeStart, rowBegins: []uint64{0}}
			continue
		}
		group.Go(func() error {
			ws := NewWorkspace(g)
			colsByOrder := make([]AllowedSet, n)
			var runs []Run
			rowBegins := make([]uint64, 0, rangeEnd-rangeStart+1)

			for s := rangeStart; s < rangeEnd; s++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				ws.Run(g, s)
				for c := uint32(0); c < n; c++ {
					colsByOrder[c] = ws.Allowed(ord.ToOld[c])
				}
				rowBegins = append(rowBegins, uint64(len(runs)))
				runs = append(runs, CompressRow(colsByOrder)...)
				reportProgress()
			}
			rowBegins = append(rowBegins, uint64(len(runs)))

			results[worker] = workerResult{rangeStart: rangeStart, rangeEnd: rangeEnd, runs: runs, rowBegins: rowBegins}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	return mergeResults(ord, n, results), nil
}

// mergeResults concatenates each worker's runs in source-id order (workers
// were assigned contiguous, ordered ranges, so iterating results in
// worker-index order already yields source-id order) and shifts each
// worker's row_begin offsets by the total run count contributed by
// preceding workers.
func mergeResults(ord *order.Ordering, n uint32, results []workerResult) *CPD {
	totalRuns := uint64(0)
	for _, r := range results {
		totalRuns += uint64(len(r.runs))
	}

	runs := make([]Run, 0, totalRuns)
	rowBegin := make([]uint64, 0, n+1)

	var offset uint64
	for _, r := range results {
		numSources := r.rangeEnd - r.rangeStart
		for i := uint32(0); i < numSources; i++ {
			rowBegin = append(rowBegin, offset+r.rowBegins[i])
		}
		runs = append(runs, r.runs...)
		offset += uint64(len(r.runs))
	}
	rowBegin = append(rowBegin, offset)

	return &CPD{Order: ord, RowBegin: rowBegin, Runs: runs}
}
