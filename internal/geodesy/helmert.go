package geodesy

import (
	"fmt"
	"math"
)

// helmert holds a 7-parameter similarity transform from a frame to
// ITRF2014: translations in metres, rotations in arc-seconds, scale in
// parts per billion. ITRF2014 is the hub frame; a transform between any
// two recognized frames goes through it.
type helmert struct {
	tx, ty, tz float64 // m
	rx, ry, rz float64 // arc-seconds
	scale      float64 // ppb
}

// frameToITRF2014 carries the fixed, hardcoded transforms for each
// recognized frame at epoch 2010.0. The millimetre-level ITRF-to-ITRF
// terms matter only for repeatability; the NAD83 terms carry the
// metre-level plate-fixed offset.
var frameToITRF2014 = map[int]helmert{
	FrameITRF2014: {},
	FrameITRF2008: {tx: 0.0016, ty: 0.0019, tz: 0.0024, scale: -0.02},
	FrameITRF2020: {tx: -0.0014, ty: -0.0009, tz: 0.0014, scale: 0.42},
	FrameNAD83:    {tx: 1.0053, ty: -1.9092, tz: -0.5416, rx: 0.0267814, ry: -0.0004203, rz: 0.0109321, scale: 0.36891},
}

const arcsecToRad = math.Pi / 180 / 3600

// apply transforms an ECEF coordinate by the helmert parameters.
func (h helmert) apply(x, y, z float64) (float64, float64, float64) {
	s := 1 + h.scale*1e-9
	rx := h.rx * arcsecToRad
	ry := h.ry * arcsecToRad
	rz := h.rz * arcsecToRad
	x2 := h.tx + s*(x-rz*y+ry*z)
	y2 := h.ty + s*(rz*x+y-rx*z)
	z2 := h.tz + s*(-ry*x+rx*y+z)
	return x2, y2, z2
}

// inverse applies the reverse transform. The parameters are small enough
// that the strict inverse and the sign-flipped forward agree to well below
// the millimetre level.
func (h helmert) inverse(x, y, z float64) (float64, float64, float64) {
	s := 1 + h.scale*1e-9
	rx := h.rx * arcsecToRad
	ry := h.ry * arcsecToRad
	rz := h.rz * arcsecToRad
	dx, dy, dz := (x-h.tx)/s, (y-h.ty)/s, (z-h.tz)/s
	x2 := dx + rz*dy - ry*dz
	y2 := -rz*dx + dy + rx*dz
	z2 := ry*dx - rx*dy + dz
	return x2, y2, z2
}

// geodeticToECEF converts lon/lat (degrees) and ellipsoid height (metres)
// to earth-centred cartesian coordinates on the given figure.
func geodeticToECEF(lon, lat, h float64, ell Ellipsoid) (x, y, z float64) {
	a := ell.SemiMajorM
	f := ell.Flattening
	e2 := f * (2 - f)
	sinLat := math.Sin(lat * math.Pi / 180)
	cosLat := math.Cos(lat * math.Pi / 180)
	sinLon := math.Sin(lon * math.Pi / 180)
	cosLon := math.Cos(lon * math.Pi / 180)
	n := a / math.Sqrt(1-e2*sinLat*sinLat)
	x = (n + h) * cosLat * cosLon
	y = (n + h) * cosLat * sinLon
	z = (n*(1-e2) + h) * sinLat
	return
}

// ecefToGeodetic converts cartesian coordinates back to lon/lat/height on
// the given figure using Bowring's method with a few fixed-point passes.
func ecefToGeodetic(x, y, z float64, ell Ellipsoid) (lon, lat, h float64) {
	a := ell.SemiMajorM
	f := ell.Flattening
	e2 := f * (2 - f)
	lon = math.Atan2(y, x) * 180 / math.Pi
	p := math.Hypot(x, y)
	lat = math.Atan2(z, p*(1-e2))
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n := a / math.Sqrt(1-e2*sinLat*sinLat)
		h = p/math.Cos(lat) - n
		lat = math.Atan2(z, p*(1-e2*n/(n+h)))
	}
	sinLat := math.Sin(lat)
	n := a / math.Sqrt(1-e2*sinLat*sinLat)
	h = p/math.Cos(lat) - n
	lat = lat * 180 / math.Pi
	return
}

// FrameShiftHeight transforms an ellipsoid height between two recognized
// reference frames, holding the horizontal position. This is the vertical
// component of the ellipsoid-to-ellipsoid altitude transform: geodetic to
// ECEF in the source frame, Helmert through ITRF2014, back to geodetic on
// the destination figure.
func FrameShiftHeight(lon, lat, height float64, source, dest *CRS) (float64, error) {
	if source.Frame == dest.Frame {
		return height, nil
	}
	hsrc, ok := frameToITRF2014[source.Frame]
	if !ok {
		return 0, fmt.Errorf("no frame transform registered for code %d (%s)", source.Frame, source.Name)
	}
	hdst, ok := frameToITRF2014[dest.Frame]
	if !ok {
		return 0, fmt.Errorf("no frame transform registered for code %d (%s)", dest.Frame, dest.Name)
	}
	x, y, z := geodeticToECEF(lon, lat, height, source.Ellipsoid)
	x, y, z = hsrc.apply(x, y, z)
	x, y, z = hdst.inverse(x, y, z)
	_, _, h := ecefToGeodetic(x, y, z, dest.Ellipsoid)
	return h, nil
}
