package georef

import (
	"math"
	"testing"

	"github.com/hydroline-data/swathproc/internal/geodesy"
	"github.com/hydroline-data/swathproc/internal/geohash"
	"github.com/hydroline-data/swathproc/internal/swath"
	"github.com/hydroline-data/swathproc/internal/vertref"
)

func geographicProjector(t *testing.T) *Projector {
	t.Helper()
	in, err := geodesy.FromEPSG(4326)
	if err != nil {
		t.Fatal(err)
	}
	return &Projector{Input: in, Output: in, GeohashPrecision: geohash.DefaultPrecision}
}

func testBatch() *swath.SoundingBatch {
	nan := math.NaN()
	return &swath.SoundingBatch{
		AlongTrack:  swath.Grid{{100, 0, nan}},
		AcrossTrack: swath.Grid{{0, 100, 50}},
		DepthOffset: swath.Grid{{20, 21, 22}},
		Times:       []float64{1600000000},
		Longitude:   []float64{-122.3},
		Latitude:    []float64{47.6},
		Heading:     []float64{0},
		Heave:       []float64{0},
		Altitude:    []float64{0},
	}
}

func resolve(t *testing.T, p *Projector, b *swath.SoundingBatch, mode vertref.Mode) *vertref.Result {
	t.Helper()
	r := &vertref.Resolver{Input: p.Input, Output: p.Output}
	vr, err := r.Resolve(mode, b, nil)
	if err != nil {
		t.Fatal(err)
	}
	return vr
}

func TestGeoreferenceGeographic(t *testing.T) {
	p := geographicProjector(t)
	b := testBatch()
	vr := resolve(t, p, b, vertref.Vessel)

	res, err := p.Georeference(b, vertref.Vessel, vr)
	if err != nil {
		t.Fatal(err)
	}

	// Beam 0: 100 m dead ahead with heading 0 moves north only.
	if math.IsNaN(res.Y[0][0]) || res.Y[0][0] <= 47.6 {
		t.Errorf("beam 0 latitude = %v, want north of 47.6", res.Y[0][0])
	}
	if res.X[0][0] != -122.3 {
		t.Errorf("beam 0 longitude = %v, want -122.3 (3-decimal rounded)", res.X[0][0])
	}

	// Beam 1: 100 m to starboard moves east only.
	if res.X[0][1] <= -122.301 || res.X[0][1] > -122.29 {
		t.Errorf("beam 1 longitude = %v, want slightly east of -122.3", res.X[0][1])
	}

	// Beam 2 has no alongtrack offset recorded: missing in, missing out,
	// with shape preserved.
	if !math.IsNaN(res.X[0][2]) || !math.IsNaN(res.Y[0][2]) {
		t.Errorf("missing beam produced position (%v, %v)", res.X[0][2], res.Y[0][2])
	}
	if !geohash.IsBlank(res.Geohash[0][2]) {
		t.Errorf("missing beam geohash = %q, want blank", res.Geohash[0][2])
	}

	// Valid beams carry a geohash at the configured precision.
	if len(res.Geohash[0][0]) != geohash.DefaultPrecision || geohash.IsBlank(res.Geohash[0][0]) {
		t.Errorf("beam 0 geohash = %q", res.Geohash[0][0])
	}

	// No datum model applied: uncertainty is zero, not NaN.
	if res.Uncertainty[0][0] != 0 {
		t.Errorf("uncertainty without datum model = %v, want 0", res.Uncertainty[0][0])
	}

	// Vessel-mode depth passes through.
	if res.Depth[0][0] != 20 {
		t.Errorf("depth = %v, want 20", res.Depth[0][0])
	}

	for i := range res.Status {
		for j := range res.Status[i] {
			if res.Status[i][j] != swath.StatusGeoreferenced {
				t.Fatalf("status[%d][%d] = %d, want %d", i, j, res.Status[i][j], swath.StatusGeoreferenced)
			}
		}
	}
}

func TestGeoreferenceProjectedOutput(t *testing.T) {
	in, _ := geodesy.FromEPSG(4326)
	out, _ := geodesy.FromEPSG(32610)
	p := &Projector{Input: in, Output: out, GeohashPrecision: 7}
	b := testBatch()
	vr := resolve(t, p, b, vertref.Vessel)

	res, err := p.Georeference(b, vertref.Vessel, vr)
	if err != nil {
		t.Fatal(err)
	}
	// UTM zone 10 easting of -122.3 is east of the central meridian.
	if res.X[0][0] < 500000 || res.X[0][0] > 600000 {
		t.Errorf("easting = %v, want within zone 10 east of the central meridian", res.X[0][0])
	}
	if res.Y[0][0] < 5.2e6 || res.Y[0][0] > 5.4e6 {
		t.Errorf("northing = %v, want ~5.27e6", res.Y[0][0])
	}
	// Beam 1 is east of beam 0; beam 0 is north of beam 1.
	if res.X[0][1] <= res.X[0][0] {
		t.Errorf("beam 1 easting %v should exceed beam 0 easting %v", res.X[0][1], res.X[0][0])
	}
	if res.Y[0][0] <= res.Y[0][1] {
		t.Errorf("beam 0 northing %v should exceed beam 1 northing %v", res.Y[0][0], res.Y[0][1])
	}
}

func TestGeoreferenceBadNavigation(t *testing.T) {
	p := geographicProjector(t)
	b := testBatch()
	b.Longitude[0] = math.NaN() // navigation dropout for the whole ping
	vr := resolve(t, p, b, vertref.Vessel)

	res, err := p.Georeference(b, vertref.Vessel, vr)
	if err != nil {
		t.Fatal(err)
	}
	// Failure is per-sounding and silent: shape preserved, everything
	// derived marked missing.
	for j := 0; j < 2; j++ {
		if !math.IsNaN(res.X[0][j]) || !math.IsNaN(res.Y[0][j]) {
			t.Errorf("beam %d position should be NaN", j)
		}
		if !math.IsNaN(res.Depth[0][j]) {
			t.Errorf("beam %d depth should be masked to NaN", j)
		}
		if !math.IsNaN(res.Uncertainty[0][j]) {
			t.Errorf("beam %d uncertainty should be masked to NaN", j)
		}
		if !geohash.IsBlank(res.Geohash[0][j]) {
			t.Errorf("beam %d geohash = %q, want blank", j, res.Geohash[0][j])
		}
	}
	if got := res.Completeness(); got != 0 {
		t.Errorf("completeness = %v, want 0", got)
	}
}

func TestGeoreferenceDatumModeRequiresStore(t *testing.T) {
	p := geographicProjector(t)
	b := testBatch()
	vr := resolve(t, p, b, vertref.DatumMLLW)

	if _, err := p.Georeference(b, vertref.DatumMLLW, vr); err == nil {
		t.Error("expected hard error when datum grids are not installed")
	}
}

func TestStackReformRoundTrip(t *testing.T) {
	nan := math.NaN()
	g := swath.Grid{{1, nan, 3}, {nan, 5, 6}}
	ti, bi, vals := StackValid(g)
	if len(vals) != 4 {
		t.Fatalf("stacked %d values, want 4", len(vals))
	}
	back := Reform(vals, ti, bi, 2, 3)
	for i := range g {
		for j := range g[i] {
			a, b := g[i][j], back[i][j]
			if math.IsNaN(a) != math.IsNaN(b) || (!math.IsNaN(a) && a != b) {
				t.Errorf("roundtrip mismatch at [%d][%d]: %v vs %v", i, j, a, b)
			}
		}
	}
}

func TestCompleteness(t *testing.T) {
	p := geographicProjector(t)
	b := testBatch()
	vr := resolve(t, p, b, vertref.Vessel)
	res, err := p.Georeference(b, vertref.Vessel, vr)
	if err != nil {
		t.Fatal(err)
	}
	want := 2.0 / 3.0
	if math.Abs(res.Completeness()-want) > 1e-12 {
		t.Errorf("completeness = %v, want %v", res.Completeness(), want)
	}
}
