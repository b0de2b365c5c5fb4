// Package datum adapts the georeferencing pipeline to its external vertical
// references: ellipsoid-to-ellipsoid altitude transforms, tidal-datum
// separation grids with uncertainty, and regional tide-model corrections
// with an explicit process-wide model cache.
//
// The grid and model file internals are deliberately simple (gzipped JSON);
// this package specifies the contract the pipeline needs from them, not a
// full gridded-datum implementation.
package datum

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// grid is a regular lon/lat raster sampled by bilinear interpolation.
type grid struct {
	MinLon float64   `json:"min_lon"`
	MinLat float64   `json:"min_lat"`
	DLon   float64   `json:"dlon"`
	DLat   float64   `json:"dlat"`
	NLon   int       `json:"nlon"`
	NLat   int       `json:"nlat"`
	Values []float64 `json:"values"` // row-major, lat rows of lon columns
}

func (g *grid) validate() error {
	if g.NLon < 2 || g.NLat < 2 {
		return fmt.Errorf("grid must be at least 2x2, got %dx%d", g.NLat, g.NLon)
	}
	if len(g.Values) != g.NLon*g.NLat {
		return fmt.Errorf("grid has %d values, expected %d", len(g.Values), g.NLon*g.NLat)
	}
	if g.DLon <= 0 || g.DLat <= 0 {
		return fmt.Errorf("grid spacing must be positive, got dlon=%v dlat=%v", g.DLon, g.DLat)
	}
	return nil
}

func (g *grid) at(row, col int) float64 {
	return g.Values[row*g.NLon+col]
}

// sample bilinearly interpolates the grid at the given position. Positions
// outside the grid extent return NaN: the sounding is marked missing rather
// than extrapolated.
func (g *grid) sample(lon, lat float64) float64 {
	fx := (lon - g.MinLon) / g.DLon
	fy := (lat - g.MinLat) / g.DLat
	if fx < 0 || fy < 0 || fx > float64(g.NLon-1) || fy > float64(g.NLat-1) {
		return math.NaN()
	}
	x0 := int(fx)
	y0 := int(fy)
	if x0 == g.NLon-1 {
		x0--
	}
	if y0 == g.NLat-1 {
		y0--
	}
	tx := fx - float64(x0)
	ty := fy - float64(y0)
	v00 := g.at(y0, x0)
	v01 := g.at(y0, x0+1)
	v10 := g.at(y0+1, x0)
	v11 := g.at(y0+1, x0+1)
	return v00*(1-tx)*(1-ty) + v01*tx*(1-ty) + v10*(1-tx)*ty + v11*tx*ty
}

// readGzipJSON loads a gzipped JSON file into out.
func readGzipJSON(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("failed to read gzip header of %s: %w", path, err)
	}
	defer zr.Close()
	if err := json.NewDecoder(zr).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// writeGzipJSON stores v as a gzipped JSON file. Used by tooling and tests
// to produce grid fixtures.
func writeGzipJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if err := json.NewEncoder(zw).Encode(v); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return zw.Close()
}
