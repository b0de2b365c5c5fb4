// Package chunk plans how a batch of pings is divided across workers and
// guards shared on-disk resources with cross-process file locks. Planning
// is analytic: only index ranges move between processes, never array data.
package chunk

import "fmt"

// Range is a half-open [Start, End) index range into the time dimension of
// a batch.
type Range struct {
	Start int
	End   int
}

// Len returns the number of elements covered.
func (r Range) Len() int { return r.End - r.Start }

// SplitByWorkers divides total elements into at most workers contiguous
// pieces: the first total%workers pieces get one extra element, the rest
// get total/workers. Empty pieces are dropped, so fewer ranges than workers
// come back when total < workers. When maxLen > 0 and the plan would give
// any piece more than maxLen elements, the plan is redone with
// ceil(total/maxLen) pieces instead, keeping every piece under the cap.
func SplitByWorkers(total, workers, maxLen int) ([]Range, error) {
	if total < 0 {
		return nil, fmt.Errorf("cannot split %d elements", total)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("cannot split across %d workers", workers)
	}
	if total == 0 {
		return nil, nil
	}

	pieces := workers
	if maxLen > 0 {
		largest := total / pieces
		if total%pieces != 0 {
			largest++
		}
		if largest > maxLen {
			pieces = (total + maxLen - 1) / maxLen
		}
	}

	base := total / pieces
	rem := total % pieces
	var out []Range
	start := 0
	for i := 0; i < pieces; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			continue
		}
		out = append(out, Range{Start: start, End: start + size})
		start += size
	}
	return out, nil
}

// Geometry is a planned chunk layout for a run.
type Geometry struct {
	PingsPerChunk int
	TotalChunks   int
}

// EstimateChunkGeometry sizes chunks from machine capacity: the usable
// share of total memory is divided across workers and then across the
// chunks each worker holds in flight, and that per-chunk budget is
// converted to pings through the per-beam working-set cost.
func EstimateChunkGeometry(totalMemGB float64, workers, beamsPerPing, chunksPerWorker int,
	bytesPerBeam float64, safetyMargin float64) (Geometry, error) {

	if totalMemGB <= 0 || workers <= 0 || beamsPerPing <= 0 || chunksPerWorker <= 0 || bytesPerBeam <= 0 {
		return Geometry{}, fmt.Errorf("chunk geometry requires positive capacity inputs")
	}
	if safetyMargin <= 0 || safetyMargin > 1 {
		return Geometry{}, fmt.Errorf("safety margin %v out of (0, 1]", safetyMargin)
	}

	usable := totalMemGB * 1e9 * safetyMargin
	perChunk := usable / float64(workers) / float64(chunksPerWorker)
	pings := int(perChunk / (float64(beamsPerPing) * bytesPerBeam))
	if pings < 1 {
		pings = 1
	}
	return Geometry{
		PingsPerChunk: pings,
		TotalChunks:   workers * chunksPerWorker,
	}, nil
}
