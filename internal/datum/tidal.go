package datum

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hydroline-data/swathproc/internal/geodesy"
	"github.com/hydroline-data/swathproc/internal/swath"
)

// TidalDatum is one of the two named tidal datums the pipeline can
// reference depths to.
type TidalDatum string

const (
	// MLLW is mean lower low water. Depths referenced to MLLW are
	// positive down; the EPSG code carries that sign convention.
	MLLW TidalDatum = "mllw"
	// MHW is mean high water.
	MHW TidalDatum = "mhw"
)

// EPSGMLLW is the positive-down MLLW vertical CRS code handed to the
// separation model so the output keeps the positive-down convention.
const EPSGMLLW = 5866

// separationFile is the on-disk layout of one tidal-datum region: a
// separation surface from the reference ellipsoid to each datum plus the
// modelled uncertainty of that surface.
type separationFile struct {
	Region      string          `json:"region"`
	Separations map[string]grid `json:"separations"` // keyed by TidalDatum
	Uncertainty grid            `json:"uncertainty"`
}

// GridStore is the vertical-datum grid directory, configured once. Absence
// or an invalid path is a hard environment error at construction, not
// deferred to first sounding.
type GridStore struct {
	dir     string
	regions []string
}

// OpenGridStore validates the grid directory and enumerates the region
// files present (<region>.sep.json.gz).
func OpenGridStore(dir string) (*GridStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to find path to vertical datum grid folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("vertical datum grid path %s is not a directory", dir)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.sep.json.gz"))
	if err != nil {
		return nil, err
	}
	regions := make([]string, 0, len(matches))
	for _, m := range matches {
		base := filepath.Base(m)
		regions = append(regions, base[:len(base)-len(".sep.json.gz")])
	}
	return &GridStore{dir: dir, regions: regions}, nil
}

// Regions returns the region names available in the store.
func (s *GridStore) Regions() []string {
	return append([]string(nil), s.regions...)
}

func (s *GridStore) load(region string) (*separationFile, error) {
	var sf separationFile
	path := filepath.Join(s.dir, region+".sep.json.gz")
	if err := readGzipJSON(path, &sf); err != nil {
		return nil, err
	}
	for name, g := range sf.Separations {
		if err := g.validate(); err != nil {
			return nil, fmt.Errorf("region %s separation %s: %w", region, name, err)
		}
	}
	if err := sf.Uncertainty.validate(); err != nil {
		return nil, fmt.Errorf("region %s uncertainty: %w", region, err)
	}
	return &sf, nil
}

// TidalTransform transforms positive-down depths from the source frame's
// ellipsoid to the target tidal datum, returning the transformed depths and
// the transform uncertainty, both rounded to millimetres and shaped like
// the input. Points outside every region grid come back NaN (missing), not
// extrapolated. The depths stay positive down throughout.
func (s *GridStore) TidalTransform(lon, lat, depth []float64, source *geodesy.CRS, target TidalDatum) (z, unc []float64, err error) {
	if len(lon) != len(lat) || len(lon) != len(depth) {
		return nil, nil, fmt.Errorf("tidal transform given mismatched array lengths %d/%d/%d", len(lon), len(lat), len(depth))
	}
	if target != MLLW && target != MHW {
		return nil, nil, fmt.Errorf("unsupported tidal datum %q", target)
	}
	if _, err := geodesy.ResolveFrame(source.Name); err != nil {
		return nil, nil, err
	}

	files := make([]*separationFile, 0, len(s.regions))
	for _, r := range s.regions {
		sf, lerr := s.load(r)
		if lerr != nil {
			return nil, nil, lerr
		}
		files = append(files, sf)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("vertical datum grid folder %s contains no region files", s.dir)
	}

	z = make([]float64, len(depth))
	unc = make([]float64, len(depth))
	for i := range depth {
		sep, u := sampleRegions(files, string(target), lon[i], lat[i])
		// Separation is ellipsoid-to-datum, positive up; depths are
		// positive down, so the datum depth is depth + separation.
		z[i] = swath.RoundMM(depth[i] + sep)
		unc[i] = swath.RoundMM(u)
	}
	return z, unc, nil
}

// sampleRegions returns the first region hit for the position. Regions are
// disjoint by construction; the first grid containing the point wins.
func sampleRegions(files []*separationFile, datum string, lon, lat float64) (sep, unc float64) {
	for _, sf := range files {
		g, ok := sf.Separations[datum]
		if !ok {
			continue
		}
		v := g.sample(lon, lat)
		if !isNaN(v) {
			return v, sf.Uncertainty.sample(lon, lat)
		}
	}
	return nan(), nan()
}
