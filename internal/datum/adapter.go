package datum

import (
	"fmt"

	"github.com/hydroline-data/swathproc/internal/geodesy"
)

// EllipsoidTransform transforms altitudes between the ellipsoids of two
// horizontal systems. When the source and destination names resolve to the
// same recognized frame the input is returned unchanged (the transform is
// the identity for all finite z); otherwise each altitude is shifted
// through the fixed frame transforms. Unrecognized frame names surface as
// configuration errors from the resolver.
func EllipsoidTransform(lon, lat, z []float64, source, dest *geodesy.CRS) ([]float64, error) {
	if len(lon) != len(lat) || len(lon) != len(z) {
		return nil, fmt.Errorf("ellipsoid transform given mismatched array lengths %d/%d/%d", len(lon), len(lat), len(z))
	}
	if _, err := geodesy.ResolveFrame(source.Name); err != nil {
		return nil, err
	}
	if _, err := geodesy.ResolveFrame(dest.Name); err != nil {
		return nil, err
	}
	if geodesy.SameFrame(source, dest) {
		return append([]float64(nil), z...), nil
	}
	out := make([]float64, len(z))
	for i := range z {
		h, err := geodesy.FrameShiftHeight(lon[i], lat[i], z[i], source, dest)
		if err != nil {
			return nil, err
		}
		out[i] = h
	}
	return out, nil
}
