package datum

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
)

func nan() float64          { return math.NaN() }
func isNaN(v float64) bool  { return math.IsNaN(v) }

// Regional tide models. Each region is backed by one grid file on the
// local filesystem; the set of regions is fixed and the longitude bands are
// hardcoded. A longitude outside every band is a configuration error, with
// no nearest-match fallback.
const (
	RegionAlaskaEEZ    = "alaska_eez"
	RegionNBSNortheast = "nbs_northeast"
)

var regionBands = []struct {
	name         string
	minLon, maxLon float64
}{
	{RegionAlaskaEEZ, -179.9937741, -127.8790600},
	{RegionNBSNortheast, -77.3833313, -62.3833313},
}

// DetermineRegion selects the tide-model region whose longitude band
// contains the given longitude (expects -180..180).
func DetermineRegion(longitude float64) (string, error) {
	for _, b := range regionBands {
		if longitude >= b.minLon && longitude <= b.maxLon {
			return b.name, nil
		}
	}
	return "", fmt.Errorf("unable to determine tide model region for longitude=%v: tried %s (%v to %v) and %s (%v to %v)",
		longitude, regionBands[0].name, regionBands[0].minLon, regionBands[0].maxLon,
		regionBands[1].name, regionBands[1].minLon, regionBands[1].maxLon)
}

// AvailableRegions checks at startup which region model files are present
// under dir; absent regions are excluded from the available set.
func AvailableRegions(dir string) []string {
	var out []string
	for _, b := range regionBands {
		if _, err := os.Stat(tideModelPath(dir, b.name)); err == nil {
			out = append(out, b.name)
		}
	}
	return out
}

func tideModelPath(dir, region string) string {
	return filepath.Join(dir, region+".tide.json.gz")
}

// constituent is one harmonic tide constituent sampled on amplitude and
// phase grids.
type constituent struct {
	Name         string  `json:"name"`
	SpeedDegHour float64 `json:"speed_deg_per_hour"`
	Amplitude    grid    `json:"amplitude"` // meters
	PhaseDeg     grid    `json:"phase_deg"`
}

// TideModel predicts the water level relative to a named datum for a
// region. Loading is expensive (the grids are large); instances are cached
// process-wide in a ModelCache.
type TideModel struct {
	Region       string             `json:"region"`
	DatumOffsets map[string]float64 `json:"datum_offsets"` // datum name -> meters
	Constituents []constituent      `json:"constituents"`
}

// LoadTideModel reads a region model file from the model directory.
func LoadTideModel(dir, region string) (*TideModel, error) {
	var m TideModel
	if err := readGzipJSON(tideModelPath(dir, region), &m); err != nil {
		return nil, err
	}
	for _, c := range m.Constituents {
		if err := c.Amplitude.validate(); err != nil {
			return nil, fmt.Errorf("region %s constituent %s amplitude: %w", region, c.Name, err)
		}
		if err := c.PhaseDeg.validate(); err != nil {
			return nil, fmt.Errorf("region %s constituent %s phase: %w", region, c.Name, err)
		}
	}
	return &m, nil
}

// Correct computes tide corrections for the given positions and UTC times
// (seconds) relative to the named datum. Subtract the result from
// positive-down depths to tide correct them. Array lengths must agree.
func (m *TideModel) Correct(lats, lons, times []float64, datumName string) ([]float64, error) {
	if len(lats) != len(lons) || len(lats) != len(times) {
		return nil, fmt.Errorf("tide correct given different length arrays %d/%d/%d, longitudes/latitudes/times must all be the same length",
			len(lons), len(lats), len(times))
	}
	offset, ok := m.DatumOffsets[datumName]
	if !ok {
		return nil, fmt.Errorf("tide model %s has no datum %q", m.Region, datumName)
	}
	out := make([]float64, len(lats))
	for i := range lats {
		wl := offset
		for _, c := range m.Constituents {
			amp := c.Amplitude.sample(lons[i], lats[i])
			phase := c.PhaseDeg.sample(lons[i], lats[i])
			if isNaN(amp) || isNaN(phase) {
				wl = nan()
				break
			}
			omega := c.SpeedDegHour * math.Pi / 180 / 3600 // rad per second
			wl += amp * math.Cos(omega*times[i]-phase*math.Pi/180)
		}
		out[i] = wl
	}
	return out, nil
}

// ModelCache holds the loaded tide model for the current region. The cache
// is process-wide by design: every worker process loads and caches its own
// instance. Entries are replaced when a different region is requested and
// invalidated only by an explicit Clear, never evicted implicitly.
type ModelCache struct {
	mu     sync.Mutex
	region string
	model  *TideModel
}

// Get returns the cached model for region, loading and replacing the cache
// entry when the region differs from the cached one.
func (c *ModelCache) Get(dir, region string) (*TideModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model != nil && c.region == region {
		return c.model, nil
	}
	m, err := LoadTideModel(dir, region)
	if err != nil {
		return nil, err
	}
	c.region = region
	c.model = m
	return m, nil
}

// Clear drops the cached model. The model grids can be large; call this
// after a tide-correction pass to free the memory.
func (c *ModelCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.region = ""
	c.model = nil
}

// TideCorrection is the one-call path used by the pipelines: resolve the
// model through the cache, check the region is available, and predict.
func TideCorrection(cache *ModelCache, dir string, lats, lons, times []float64, region, datumName string) ([]float64, error) {
	available := AvailableRegions(dir)
	found := false
	for _, r := range available {
		if r == region {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("attempting to load tide model %s, but unable to find its file under %s", region, dir)
	}
	m, err := cache.Get(dir, region)
	if err != nil {
		return nil, err
	}
	return m.Correct(lats, lons, times, datumName)
}
