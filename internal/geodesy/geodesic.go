package geodesy

import (
	"github.com/pymaxion/geographiclib-go/geodesic"
)

// solver is the shared geodesic solver. Both recognized figures (WGS84 and
// GRS80) differ only in the eighth decimal of the inverse flattening; over
// swath radii of a few kilometres the positional difference is below a
// tenth of a millimetre, so one WGS84 solver serves all frames.
var solver = geodesic.WGS84

// Forward solves the direct geodesic problem: from a start position, an
// azimuth in degrees and a distance in metres, compute the end position.
// Azimuth is accepted unnormalized; the solver reduces angles internally,
// so heading + beam-azimuth sums outside [0, 360) are fine as-is.
func Forward(lat, lon, azimuthDeg, distanceM float64) (lat2, lon2 float64) {
	r := solver.Direct(lat, lon, azimuthDeg, distanceM)
	return r.Lat2, r.Lon2
}

// Distance solves the inverse geodesic problem, returning the distance in
// metres between the two positions.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	r := solver.Inverse(lat1, lon1, lat2, lon2)
	return r.S12
}
