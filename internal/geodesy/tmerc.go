package geodesy

import (
	"fmt"
	"math"
)

const (
	utmScaleFactor    = 0.9996
	utmFalseEasting   = 500000.0
	utmFalseNorthing  = 10000000.0
	utmZoneWidthDeg   = 6.0
)

// ProjectUTM forward-projects a geographic position to UTM easting and
// northing on the CRS's zone and figure (Snyder series, sub-millimetre
// within a zone). Non-finite input propagates to non-finite output so the
// caller's bad-navigation masking sees it.
func ProjectUTM(lon, lat float64, crs *CRS) (easting, northing float64, err error) {
	if !crs.Projected {
		return 0, 0, fmt.Errorf("CRS %s is not a projected system", crs.Name)
	}
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return math.Inf(1), math.Inf(1), nil
	}

	a := crs.Ellipsoid.SemiMajorM
	f := crs.Ellipsoid.Flattening
	e2 := f * (2 - f)
	ep2 := e2 / (1 - e2)
	lon0 := float64(crs.UTMZone)*utmZoneWidthDeg - 183.0

	phi := lat * math.Pi / 180
	dlam := (lon - lon0) * math.Pi / 180

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)
	tanPhi := math.Tan(phi)

	n := a / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := tanPhi * tanPhi
	c := ep2 * cosPhi * cosPhi
	bigA := cosPhi * dlam

	m := a * ((1-e2/4-3*e2*e2/64-5*e2*e2*e2/256)*phi -
		(3*e2/8+3*e2*e2/32+45*e2*e2*e2/1024)*math.Sin(2*phi) +
		(15*e2*e2/256+45*e2*e2*e2/1024)*math.Sin(4*phi) -
		(35*e2*e2*e2/3072)*math.Sin(6*phi))

	easting = utmScaleFactor*n*(bigA+(1-t+c)*bigA*bigA*bigA/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(bigA, 5)/120) + utmFalseEasting

	northing = utmScaleFactor * (m + n*tanPhi*(bigA*bigA/2+
		(5-t+9*c+4*c*c)*math.Pow(bigA, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(bigA, 6)/720))
	if crs.Southern {
		northing += utmFalseNorthing
	}
	return easting, northing, nil
}
