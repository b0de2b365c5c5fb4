// Package swath defines the shared data model for multibeam processing:
// time×beam grids with an explicit missing-value convention, ping time
// series, and the batch container consumed by the georeferencing and
// backscatter pipelines.
package swath

import (
	"fmt"
	"math"
)

// Processing status levels for soundings, recorded per beam as the
// pipelines advance. Georeferenced soundings are at StatusGeoreferenced.
const (
	StatusRaw           uint8 = 0
	StatusConverted     uint8 = 1
	StatusOrientation   uint8 = 2
	StatusSoundVelocity uint8 = 3
	StatusGeoreferenced uint8 = 4
	StatusTPU           uint8 = 5
	StatusBackscatter   uint8 = 6
)

// Grid is a dense time×beam array. Unused beam slots are NaN, never zero:
// a zero is a valid measurement, a NaN is an absent beam.
type Grid [][]float64

// NewGrid allocates a times×beams grid filled with the given value.
func NewGrid(times, beams int, fill float64) Grid {
	g := make(Grid, times)
	for i := range g {
		row := make([]float64, beams)
		for j := range row {
			row[j] = fill
		}
		g[i] = row
	}
	return g
}

// ZerosLike returns a zero-filled grid with the same shape as g.
func ZerosLike(g Grid) Grid {
	out := make(Grid, len(g))
	for i := range g {
		out[i] = make([]float64, len(g[i]))
	}
	return out
}

// Clone returns a deep copy of g. Pipelines never mutate their inputs;
// every correction stage works on a copy.
func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	for i := range g {
		out[i] = append([]float64(nil), g[i]...)
	}
	return out
}

// Shape returns the time and beam dimensions of the grid. Ragged rows are
// not permitted; Shape reports the first row's beam count.
func (g Grid) Shape() (times, beams int) {
	if len(g) == 0 {
		return 0, 0
	}
	return len(g), len(g[0])
}

// CheckShape verifies that g is rectangular with the given dimensions.
func (g Grid) CheckShape(times, beams int) error {
	if len(g) != times {
		return fmt.Errorf("grid has %d time rows, expected %d", len(g), times)
	}
	for i, row := range g {
		if len(row) != beams {
			return fmt.Errorf("grid row %d has %d beams, expected %d", i, len(row), beams)
		}
	}
	return nil
}

// RoundMM rounds a depth in meters to millimeter precision. Depths are
// always rounded before leaving a pipeline to bound floating-point noise
// in downstream spatial joins.
func RoundMM(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*1000) / 1000
}

// RoundGridMM applies RoundMM to every element, returning a new grid.
func RoundGridMM(g Grid) Grid {
	out := make(Grid, len(g))
	for i, row := range g {
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = RoundMM(v)
		}
		out[i] = r
	}
	return out
}

// SoundingBatch carries one contiguous run of pings: per-beam vessel-frame
// offsets (time×beam) and per-ping navigation/attitude series (time). The
// batch is produced upstream and consumed read-only; corrections always
// produce new arrays.
type SoundingBatch struct {
	// Vessel-frame beam offsets in meters: forward, starboard, down.
	AlongTrack  Grid
	AcrossTrack Grid
	DepthOffset Grid

	// Per-ping (time-indexed) navigation and attitude.
	Times     []float64 // UTC seconds
	Longitude []float64 // degrees
	Latitude  []float64 // degrees
	Heading   []float64 // degrees true
	Heave     []float64 // meters, positive down
	Altitude  []float64 // meters above the ellipsoid
}

// Validate checks the (time × beam) shape invariant across all arrays.
func (b *SoundingBatch) Validate() error {
	times, beams := b.DepthOffset.Shape()
	if err := b.AlongTrack.CheckShape(times, beams); err != nil {
		return fmt.Errorf("alongtrack: %w", err)
	}
	if err := b.AcrossTrack.CheckShape(times, beams); err != nil {
		return fmt.Errorf("acrosstrack: %w", err)
	}
	for name, series := range map[string][]float64{
		"times": b.Times, "longitude": b.Longitude, "latitude": b.Latitude,
		"heading": b.Heading, "heave": b.Heave, "altitude": b.Altitude,
	} {
		if len(series) != times {
			return fmt.Errorf("%s has %d entries, expected %d pings", name, len(series), times)
		}
	}
	return nil
}

// PingCount returns the number of pings in the batch.
func (b *SoundingBatch) PingCount() int {
	return len(b.DepthOffset)
}

// Slice returns a view of the batch restricted to pings [start, end).
// The underlying arrays are shared; the batch contract is read-only so
// sharing is safe across chunk workers.
func (b *SoundingBatch) Slice(start, end int) *SoundingBatch {
	return &SoundingBatch{
		AlongTrack:  b.AlongTrack[start:end],
		AcrossTrack: b.AcrossTrack[start:end],
		DepthOffset: b.DepthOffset[start:end],
		Times:       b.Times[start:end],
		Longitude:   b.Longitude[start:end],
		Latitude:    b.Latitude[start:end],
		Heading:     b.Heading[start:end],
		Heave:       b.Heave[start:end],
		Altitude:    b.Altitude[start:end],
	}
}
