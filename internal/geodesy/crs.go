// Package geodesy provides the horizontal reference plumbing for the
// georeferencing pipeline: reference-frame resolution from CRS names,
// geodesic forward/inverse solves, ECEF Helmert shifts between frames, and
// the transverse-mercator projection used for projected output systems.
package geodesy

import (
	"fmt"
	"strings"
)

// Ellipsoid is a reference ellipsoid figure.
type Ellipsoid struct {
	Name       string
	SemiMajorM float64
	Flattening float64
}

var (
	WGS84Ellipsoid = Ellipsoid{Name: "WGS84", SemiMajorM: 6378137.0, Flattening: 1 / 298.257223563}
	GRS80Ellipsoid = Ellipsoid{Name: "GRS80", SemiMajorM: 6378137.0, Flattening: 1 / 298.257222101}
)

// Frame codes for the fixed set of recognized reference frames. ITRF2014
// is carried as the WGS84 equivalent, matching common hydrographic
// processing practice.
const (
	FrameITRF2008 = 7911
	FrameITRF2014 = 7912
	FrameITRF2020 = 9989
	FrameNAD83    = 6319
)

// frameNames are the recognized identifiers, searched as substrings of a
// CRS name in this order. An unrecognized name is a configuration error,
// never a silent fallback.
var frameNames = []struct {
	match string
	code  int
}{
	{"ITRF2008", FrameITRF2008},
	{"ITRF2014", FrameITRF2014},
	{"ITRF2020", FrameITRF2020},
	{"WGS 84", FrameITRF2014},
	{"WGS84", FrameITRF2014},
	{"NAD83", FrameNAD83},
}

// ResolveFrame maps a CRS name to its canonical reference-frame code.
func ResolveFrame(crsName string) (int, error) {
	for _, fn := range frameNames {
		if strings.Contains(crsName, fn.match) {
			return fn.code, nil
		}
	}
	return 0, fmt.Errorf("unable to determine the associated ellipsoid for datum %q", crsName)
}

// CRS describes a horizontal coordinate reference system: either a
// geographic system on a recognized frame, or a UTM projection of one.
type CRS struct {
	Name      string
	EPSG      int
	Frame     int       // canonical frame code, see ResolveFrame
	Ellipsoid Ellipsoid // figure used for geodesic solves and projection
	Projected bool
	UTMZone   int // 1..60, valid when Projected
	Southern  bool
}

// FromEPSG builds a CRS descriptor from the supported EPSG codes:
// geographic NAD83(2011), WGS 84 and ITRF realizations, plus WGS84 UTM
// (326xx/327xx) and NAD83 UTM (269xx) projected systems.
func FromEPSG(code int) (*CRS, error) {
	switch {
	case code == 6318 || code == 6319:
		return &CRS{Name: "NAD83(2011)", EPSG: code, Frame: FrameNAD83, Ellipsoid: GRS80Ellipsoid}, nil
	case code == 4326:
		return &CRS{Name: "WGS 84", EPSG: code, Frame: FrameITRF2014, Ellipsoid: WGS84Ellipsoid}, nil
	case code == FrameITRF2008:
		return &CRS{Name: "ITRF2008", EPSG: code, Frame: FrameITRF2008, Ellipsoid: GRS80Ellipsoid}, nil
	case code == FrameITRF2014:
		return &CRS{Name: "ITRF2014", EPSG: code, Frame: FrameITRF2014, Ellipsoid: GRS80Ellipsoid}, nil
	case code == FrameITRF2020:
		return &CRS{Name: "ITRF2020", EPSG: code, Frame: FrameITRF2020, Ellipsoid: GRS80Ellipsoid}, nil
	case code >= 32601 && code <= 32660:
		zone := code - 32600
		return &CRS{Name: fmt.Sprintf("WGS 84 / UTM zone %dN", zone), EPSG: code, Frame: FrameITRF2014,
			Ellipsoid: WGS84Ellipsoid, Projected: true, UTMZone: zone}, nil
	case code >= 32701 && code <= 32760:
		zone := code - 32700
		return &CRS{Name: fmt.Sprintf("WGS 84 / UTM zone %dS", zone), EPSG: code, Frame: FrameITRF2014,
			Ellipsoid: WGS84Ellipsoid, Projected: true, UTMZone: zone, Southern: true}, nil
	case code >= 26901 && code <= 26923:
		zone := code - 26900
		return &CRS{Name: fmt.Sprintf("NAD83 / UTM zone %dN", zone), EPSG: code, Frame: FrameNAD83,
			Ellipsoid: GRS80Ellipsoid, Projected: true, UTMZone: zone}, nil
	}
	return nil, fmt.Errorf("unsupported horizontal CRS EPSG:%d", code)
}

// SameFrame reports whether two systems resolve to the same canonical
// reference frame, in which case the ellipsoid altitude transform between
// them is the identity.
func SameFrame(a, b *CRS) bool {
	return a.Frame == b.Frame
}
