// Package georef turns vessel-frame beam offsets into georeferenced
// soundings: beam azimuth/radius from the offsets and heading, a geodesic
// forward solve from the platform position, optional reprojection to the
// output system, vertical datum transformation, and geohash tagging.
package georef

import (
	"math"

	"github.com/hydroline-data/swathproc/internal/swath"
)

// StackValid flattens a time×beam grid to the valid (non-NaN) entries,
// keeping the index map back to the full grid. Beam slots that do not
// exist in a ping are NaN in the input and are dropped here.
func StackValid(g swath.Grid) (timeIdx, beamIdx []int, vals []float64) {
	for i, row := range g {
		for j, v := range row {
			if math.IsNaN(v) {
				continue
			}
			timeIdx = append(timeIdx, i)
			beamIdx = append(beamIdx, j)
			vals = append(vals, v)
		}
	}
	return
}

// StackValidPair flattens two grids on their joint validity: an entry is
// kept only when both grids hold a value there. The pipelines stack
// alongtrack and acrosstrack together so both share one index map.
func StackValidPair(a, b swath.Grid) (timeIdx, beamIdx []int, av, bv []float64) {
	for i := range a {
		for j := range a[i] {
			if math.IsNaN(a[i][j]) || math.IsNaN(b[i][j]) {
				continue
			}
			timeIdx = append(timeIdx, i)
			beamIdx = append(beamIdx, j)
			av = append(av, a[i][j])
			bv = append(bv, b[i][j])
		}
	}
	return
}

// Reform scatters stacked values back into a full time×beam grid, filling
// missing slots with NaN. Shape is always preserved; a dropped beam stays
// a NaN slot, it is never removed from the array.
func Reform(vals []float64, timeIdx, beamIdx []int, times, beams int) swath.Grid {
	out := swath.NewGrid(times, beams, math.NaN())
	for k, v := range vals {
		out[timeIdx[k]][beamIdx[k]] = v
	}
	return out
}

// ReformStrings scatters stacked string codes back into a full grid,
// filling missing slots with the blank code.
func ReformStrings(vals []string, timeIdx, beamIdx []int, times, beams int, blank string) [][]string {
	out := make([][]string, times)
	for i := range out {
		row := make([]string, beams)
		for j := range row {
			row[j] = blank
		}
		out[i] = row
	}
	for k, v := range vals {
		out[timeIdx[k]][beamIdx[k]] = v
	}
	return out
}
