package pool

import (
	"context"
	"fmt"
	"sync"

	"github.com/hydroline-data/swathproc/internal/chunk"
)

// ChunkFunc processes one index range of the batch. It must be a pure
// function of its inputs so a retry can re-run it unchanged.
type ChunkFunc func(ctx context.Context, r chunk.Range) (any, error)

// Map runs fn over every range on the pool's workers and returns the
// results in range order. Execution order is unspecified; collection is by
// index, so callers never depend on completion order. A chunk that fails is
// re-dispatched up to the pool's retry budget; when a chunk is out of
// retries the whole run fails with that chunk's error.
func (p *Pool) Map(ctx context.Context, ranges []chunk.Range, fn ChunkFunc) ([]any, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	type job struct {
		idx     int
		r       chunk.Range
		attempt int
	}

	results := make([]any, len(ranges))
	jobs := make(chan job, len(ranges))
	for i, r := range ranges {
		jobs <- job{idx: i, r: r}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		firstErr error
		pending  = len(ranges)
		wg       sync.WaitGroup
	)

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	done := func() {
		mu.Lock()
		pending--
		if pending == 0 {
			close(jobs)
		}
		mu.Unlock()
	}

	workers := p.workers
	if workers > len(ranges) {
		workers = len(ranges)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					done()
					continue
				}
				p.checkMemory()
				v, err := fn(ctx, j.r)
				if err != nil {
					if j.attempt < p.retries {
						// Pure chunk function: re-dispatch is the whole
						// retry story.
						j.attempt++
						jobs <- j
						continue
					}
					fail(fmt.Errorf("chunk [%d, %d) failed after %d attempts: %w",
						j.r.Start, j.r.End, j.attempt+1, err))
					done()
					continue
				}
				results[j.idx] = v
				done()
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
