package backscatter

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/hydroline-data/swathproc/internal/swath"
)

// AngleGainTable is the empirical angle-varying-gain corrector: a mean
// residual response per beam-angle bin, expressed relative to a reference
// angle so the corrected intensity keeps the level of the reference regime.
type AngleGainTable struct {
	// BinSize is the bin width in degrees.
	BinSize float64
	// Angles holds the left edge of each bin, from -90 upward. A sample
	// belongs to bin k when Angles[k] < angle <= Angles[k]+BinSize.
	Angles []float64
	// Offsets is the mean corrected intensity per bin minus the reference
	// bin mean. Bins that received no samples carry 0 so applying the
	// table never invents a correction where nothing was observed.
	Offsets []float64
}

// binEdges builds the right-closed bin edges covering [-90, 90].
func binEdges(binSize float64) []float64 {
	var edges []float64
	for e := -90.0; e <= 90+binSize/2; e += binSize {
		edges = append(edges, e)
	}
	return edges
}

// GenerateAVGCorrector builds an AngleGainTable from corrected intensity
// and beam angles over a representative block of pings. refAngle picks the
// bin whose mean becomes the zero level, typically 45 degrees where the
// angular response is flat.
func GenerateAVGCorrector(corrected, beamAngle swath.Grid, binSize, refAngle float64) (*AngleGainTable, error) {
	if binSize <= 0 {
		return nil, fmt.Errorf("avg corrector bin size must be positive, got %v", binSize)
	}
	if err := beamAngle.CheckShape(corrected.Shape()); err != nil {
		return nil, fmt.Errorf("avg corrector inputs: %w", err)
	}

	edges := binEdges(binSize)
	nbins := len(edges) - 1
	if nbins < 2 {
		return nil, fmt.Errorf("avg corrector bin size %v yields fewer than two bins", binSize)
	}

	samples := make([][]float64, nbins)
	for i := range corrected {
		for j, v := range corrected[i] {
			a := beamAngle[i][j]
			if math.IsNaN(v) || math.IsNaN(a) {
				continue
			}
			k := digitize(a, edges)
			if k < 0 {
				continue // outside [-90, 90]
			}
			samples[k] = append(samples[k], v)
		}
	}

	means := make([]float64, nbins)
	for k := range samples {
		if len(samples[k]) == 0 {
			means[k] = math.NaN()
			continue
		}
		means[k] = stat.Mean(samples[k], nil)
	}

	// Reference bin: nearest edge to refAngle, clamped off the lowest edge
	// so the bin below it always exists.
	refIdx := 0
	best := math.Inf(1)
	for k, e := range edges {
		if d := math.Abs(e - refAngle); d < best {
			best = d
			refIdx = k
		}
	}
	if refIdx < 1 {
		refIdx = 1
	}
	ref := means[refIdx-1]
	if math.IsNaN(ref) {
		ref = 0
	}

	table := &AngleGainTable{
		BinSize: binSize,
		Angles:  make([]float64, nbins),
		Offsets: make([]float64, nbins),
	}
	for k := 0; k < nbins; k++ {
		table.Angles[k] = edges[k]
		if math.IsNaN(means[k]) {
			table.Offsets[k] = 0
		} else {
			table.Offsets[k] = means[k] - ref
		}
	}
	return table, nil
}

// digitize returns the right-closed bin index for a in edges, i.e. k such
// that edges[k] < a <= edges[k+1], with a == edges[0] folded into bin 0.
// Returns -1 outside the edge range.
func digitize(a float64, edges []float64) int {
	if a < edges[0] || a > edges[len(edges)-1] {
		return -1
	}
	// First edge >= a; sample a belongs to the bin left of that edge.
	k := sort.SearchFloat64s(edges, a)
	if k == 0 {
		return 0
	}
	return k - 1
}

// ApplyAVGCorrector subtracts the table's bin offset from each sample
// according to its beam angle. The beams of a ping are not necessarily
// angle-ordered, so the flattened angles are sorted, looked up and the
// corrections restored to the original order before applying.
func ApplyAVGCorrector(corrected, beamAngle swath.Grid, table *AngleGainTable) (swath.Grid, error) {
	if table == nil || len(table.Angles) == 0 {
		return nil, fmt.Errorf("avg corrector table is empty")
	}
	if err := beamAngle.CheckShape(corrected.Shape()); err != nil {
		return nil, fmt.Errorf("avg corrector inputs: %w", err)
	}

	edges := make([]float64, len(table.Angles)+1)
	copy(edges, table.Angles)
	edges[len(table.Angles)] = table.Angles[len(table.Angles)-1] + table.BinSize

	times, beams := corrected.Shape()
	type entry struct {
		idx   int
		angle float64
	}
	flat := make([]entry, 0, times*beams)
	for i := range beamAngle {
		for j, a := range beamAngle[i] {
			flat = append(flat, entry{idx: i*beams + j, angle: a})
		}
	}
	sort.SliceStable(flat, func(x, y int) bool {
		ax, ay := flat[x].angle, flat[y].angle
		if math.IsNaN(ax) {
			return false
		}
		if math.IsNaN(ay) {
			return true
		}
		return ax < ay
	})

	gain := make([]float64, times*beams)
	for _, e := range flat {
		if math.IsNaN(e.angle) {
			gain[e.idx] = 0
			continue
		}
		k := digitize(e.angle, edges)
		if k < 0 {
			// Clamp off-range angles into the nearest bin.
			if e.angle < edges[0] {
				k = 0
			} else {
				k = len(table.Offsets) - 1
			}
		}
		gain[e.idx] = table.Offsets[k]
	}

	out := corrected.Clone()
	for i := range out {
		for j := range out[i] {
			out[i][j] -= gain[i*beams+j]
		}
	}
	return out, nil
}
