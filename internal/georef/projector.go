package georef

import (
	"fmt"
	"math"

	"github.com/hydroline-data/swathproc/internal/datum"
	"github.com/hydroline-data/swathproc/internal/geodesy"
	"github.com/hydroline-data/swathproc/internal/geohash"
	"github.com/hydroline-data/swathproc/internal/swath"
	"github.com/hydroline-data/swathproc/internal/vertref"
)

// Projector georeferences one chunk of soundings. It is a pure function of
// its inputs: no state survives between calls, so a failed chunk can be
// re-dispatched without cleanup.
type Projector struct {
	Input  *geodesy.CRS
	Output *geodesy.CRS
	// GeohashPrecision is the spatial tag code length, fixed per run.
	GeohashPrecision int
	// Store supplies the vertical datum separation grids; required by the
	// tidal-datum modes and unused otherwise.
	Store *datum.GridStore
}

// Result carries the georeferenced chunk, all arrays in the original
// time×beam shape with missing slots NaN (or blank geohash codes).
type Result struct {
	// X and Y are easting/northing when the output system is projected,
	// otherwise longitude/latitude, rounded to 3 decimals.
	X swath.Grid
	Y swath.Grid
	// Depth in the resolved vertical reference, millimetre rounded.
	Depth swath.Grid
	// Uncertainty of the vertical datum transform; zero when no datum
	// model was applied.
	Uncertainty swath.Grid
	// Geohash spatial tag per sounding; blank when the position could not
	// be resolved.
	Geohash [][]string
	// Corrected heave and altitude from the vertical reference resolver.
	Heave    []float64
	Altitude []float64
	// Status is the per-beam processing level, StatusGeoreferenced for
	// every beam touched by this pass.
	Status [][]uint8
}

// Georeference projects the batch's valid beams to absolute positions in
// the output system under the given vertical reference. vr must be the
// resolved vertical reference for the same batch.
func (p *Projector) Georeference(b *swath.SoundingBatch, mode vertref.Mode, vr *vertref.Result) (*Result, error) {
	if p.Input == nil || p.Output == nil {
		return nil, fmt.Errorf("georeference requires input and output horizontal systems")
	}
	if p.GeohashPrecision <= 0 {
		return nil, fmt.Errorf("geohash precision must be positive, got %d", p.GeohashPrecision)
	}
	times, beams := b.DepthOffset.Shape()

	// Destack: drop missing beams, keep the map back to the full grid.
	ti, bi, along, across := StackValidPair(b.AlongTrack, b.AcrossTrack)

	// Beam-wise azimuth and radius. The heading sum is deliberately left
	// unnormalized; the geodesic solver reduces angles itself.
	n := len(along)
	lat2 := make([]float64, n)
	lon2 := make([]float64, n)
	for k := 0; k < n; k++ {
		azimuth := math.Atan2(across[k], along[k])*180/math.Pi + b.Heading[ti[k]]
		radius := math.Hypot(across[k], along[k])
		lat2[k], lon2[k] = geodesy.Forward(b.Latitude[ti[k]], b.Longitude[ti[k]], azimuth, radius)
	}

	z := swath.RoundGridMM(vr.Depth)
	var unc swath.Grid

	if target, ok := mode.TidalDatum(); ok {
		if p.Store == nil {
			return nil, fmt.Errorf("vertical reference %q requires the vertical datum grid store, which is not configured", mode)
		}
		zStck := make([]float64, n)
		for k := 0; k < n; k++ {
			zStck[k] = z[ti[k]][bi[k]]
		}
		zTrans, uncStck, err := p.Store.TidalTransform(lon2, lat2, zStck, p.Input, target)
		if err != nil {
			return nil, err
		}
		z = Reform(zTrans, ti, bi, times, beams)
		unc = Reform(uncStck, ti, bi, times, beams)
	} else {
		unc = swath.ZerosLike(z)
	}

	// Spatial tag before reprojection: geohash cells are geographic.
	codes := make([]string, n)
	for k := 0; k < n; k++ {
		codes[k] = geohash.Encode(lat2[k], lon2[k], p.GeohashPrecision)
	}

	// Reproject to the output horizontal reference when it differs from
	// geographic, and mark navigation failures.
	x := make([]float64, n)
	y := make([]float64, n)
	for k := 0; k < n; k++ {
		if p.Output.Projected {
			e, nn, err := geodesy.ProjectUTM(lon2[k], lat2[k], p.Output)
			if err != nil {
				return nil, err
			}
			x[k], y[k] = e, nn
		} else {
			x[k], y[k] = lon2[k], lat2[k]
		}
	}

	blank := geohash.Blank(p.GeohashPrecision)
	badNav := false
	for k := 0; k < n; k++ {
		if math.IsInf(x[k], 0) || math.IsInf(y[k], 0) || math.IsNaN(x[k]) || math.IsNaN(y[k]) {
			// Navigation failure: the sounding is marked missing across
			// every derived output, never dropped from the array.
			x[k], y[k] = math.NaN(), math.NaN()
			codes[k] = blank
			badNav = true
		}
		x[k] = swath.RoundMM(x[k])
		y[k] = swath.RoundMM(y[k])
	}

	res := &Result{
		X:           Reform(x, ti, bi, times, beams),
		Y:           Reform(y, ti, bi, times, beams),
		Depth:       z,
		Uncertainty: unc,
		Geohash:     ReformStrings(codes, ti, bi, times, beams, blank),
		Heave:       vr.Heave,
		Altitude:    vr.Altitude,
	}

	if badNav {
		for i := range res.X {
			for j := range res.X[i] {
				if math.IsNaN(res.X[i][j]) {
					res.Depth[i][j] = math.NaN()
					res.Uncertainty[i][j] = math.NaN()
					res.Geohash[i][j] = blank
				}
			}
		}
	}

	res.Status = make([][]uint8, times)
	for i := range res.Status {
		row := make([]uint8, beams)
		for j := range row {
			row[j] = swath.StatusGeoreferenced
		}
		res.Status[i] = row
	}
	return res, nil
}

// Completeness reports the fraction of beam slots carrying a resolved
// position. Per-sounding failures are silent in the arrays; this is the
// downstream statistic that makes them visible.
func (r *Result) Completeness() float64 {
	total, good := 0, 0
	for i := range r.X {
		for j := range r.X[i] {
			total++
			if !math.IsNaN(r.X[i][j]) {
				good++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(good) / float64(total)
}
