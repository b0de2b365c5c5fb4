// Package vertref resolves the vertical reference convention for a batch:
// given the raw down offsets, altitude and heave, it produces the corrected
// heave, corrected altitude and corrected depth for the selected reference
// mode. The mode is selected once per batch and immutable for the run.
package vertref

import (
	"fmt"

	"github.com/hydroline-data/swathproc/internal/datum"
	"github.com/hydroline-data/swathproc/internal/geodesy"
	"github.com/hydroline-data/swathproc/internal/swath"
)

// Mode is the vertical reference convention for output depths.
type Mode string

const (
	// Ellipsoid references depths to the output ellipsoid; depths are
	// negative down relative to the ellipsoid surface.
	Ellipsoid Mode = "ellipse"
	// Vessel references depths to the vessel reference point.
	Vessel Mode = "vessel"
	// Waterline references depths to the vessel waterline.
	Waterline Mode = "waterline"
	// TideModel is waterline additionally corrected by a regional tide
	// model separation, yielding tidal-datum depths without VDatum grids.
	TideModel Mode = "tidemodel"
	// DatumMLLW references depths to mean lower low water through the
	// vertical datum grid store.
	DatumMLLW Mode = "mllw"
	// DatumMHW references depths to mean high water through the vertical
	// datum grid store.
	DatumMHW Mode = "mhw"
)

// Valid reports whether m is one of the closed set of modes.
func (m Mode) Valid() bool {
	switch m {
	case Ellipsoid, Vessel, Waterline, TideModel, DatumMLLW, DatumMHW:
		return true
	}
	return false
}

// EllipsoidBased reports whether the mode brings depths to the ellipsoid
// first (the tidal-datum modes transform from the ellipsoid afterwards).
func (m Mode) EllipsoidBased() bool {
	return m == Ellipsoid || m == DatumMLLW || m == DatumMHW
}

// TidalDatum returns the target tidal datum for the datum modes.
func (m Mode) TidalDatum() (datum.TidalDatum, bool) {
	switch m {
	case DatumMLLW:
		return datum.MLLW, true
	case DatumMHW:
		return datum.MHW, true
	}
	return "", false
}

// Result carries the resolved vertical reference for a batch. Heave and
// altitude are time-indexed; depth is time×beam and rounded to millimetres.
type Result struct {
	Heave    []float64
	Altitude []float64
	Depth    swath.Grid
}

// Resolver applies the vertical reference policy. Input and Output are the
// horizontal systems of the run; the ellipsoid mode transforms altitude
// between their frames when they differ.
type Resolver struct {
	Input     *geodesy.CRS
	Output    *geodesy.CRS
	Waterline float64 // waterline offset from the reference point, meters
	ZOffset   float64 // lever arm from reference point to transmitter, meters
}

// Resolve computes corrected heave, corrected altitude and corrected depth
// for the mode. tideCorrector is required by the TideModel mode and must
// match the batch time dimension; other modes ignore it.
func (r *Resolver) Resolve(mode Mode, b *swath.SoundingBatch, tideCorrector []float64) (*Result, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unrecognized vertical reference mode %q", mode)
	}
	times := b.PingCount()

	// Lever-arm corrected down offsets.
	offset := b.DepthOffset.Clone()
	for i := range offset {
		for j := range offset[i] {
			offset[i][j] += r.ZOffset
		}
	}

	res := &Result{}
	switch {
	case mode.EllipsoidBased():
		if mode == Ellipsoid {
			alt, err := datum.EllipsoidTransform(b.Longitude, b.Latitude, b.Altitude, r.Input, r.Output)
			if err != nil {
				return nil, err
			}
			res.Altitude = alt
		} else {
			res.Altitude = append([]float64(nil), b.Altitude...)
		}
		res.Heave = make([]float64, times)
		res.Depth = make(swath.Grid, times)
		for i := range offset {
			row := make([]float64, len(offset[i]))
			for j, v := range offset[i] {
				row[j] = -(v - res.Altitude[i])
			}
			res.Depth[i] = row
		}

	case mode == Vessel:
		res.Heave = append([]float64(nil), b.Heave...)
		res.Altitude = make([]float64, times)
		res.Depth = applyPerPing(offset, b.Heave, 0, nil)

	case mode == Waterline:
		res.Heave = append([]float64(nil), b.Heave...)
		res.Altitude = make([]float64, times)
		res.Depth = applyPerPing(offset, b.Heave, r.Waterline, nil)

	case mode == TideModel:
		if len(tideCorrector) != times {
			return nil, fmt.Errorf("tide corrector has %d entries, expected %d pings", len(tideCorrector), times)
		}
		res.Heave = append([]float64(nil), b.Heave...)
		res.Altitude = make([]float64, times)
		res.Depth = applyPerPing(offset, b.Heave, r.Waterline, tideCorrector)
	}

	res.Depth = swath.RoundGridMM(res.Depth)
	return res, nil
}

// applyPerPing computes offset + heave − waterline − tide for every beam,
// broadcasting the time-indexed terms across the beam dimension.
func applyPerPing(offset swath.Grid, heave []float64, waterline float64, tide []float64) swath.Grid {
	out := make(swath.Grid, len(offset))
	for i := range offset {
		row := make([]float64, len(offset[i]))
		t := 0.0
		if tide != nil {
			t = tide[i]
		}
		for j, v := range offset[i] {
			row[j] = v + heave[i] - waterline - t
		}
		out[i] = row
	}
	return out
}
