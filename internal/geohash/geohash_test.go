package geohash

import (
	"math"
	"strings"
	"testing"
)

func TestEncodeKnownValues(t *testing.T) {
	tests := []struct {
		name      string
		lat, lon  float64
		precision int
		want      string
	}{
		{"iberia", 42.605, -5.603, 5, "ezs42"},
		{"jutland", 57.64911, 10.40744, 11, "u4pruydqqvj"},
		{"equator origin", 0, 0, 5, "s0000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Encode(tc.lat, tc.lon, tc.precision)
			if got != tc.want {
				t.Errorf("Encode(%v, %v, %d) = %q, want %q", tc.lat, tc.lon, tc.precision, got, tc.want)
			}
		})
	}
}

func TestEncodeNaNGivesBlank(t *testing.T) {
	got := Encode(math.NaN(), -122.3, 7)
	if got != "       " {
		t.Errorf("Encode with NaN lat = %q, want 7 spaces", got)
	}
	got = Encode(47.6, math.NaN(), 5)
	if got != "     " {
		t.Errorf("Encode with NaN lon = %q, want 5 spaces", got)
	}
	if !IsBlank(got) {
		t.Error("blank code should report IsBlank")
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	// decode(encode(lat, lon, p)) must recover a cell whose centroid is
	// within half the cell extent of the input, for all precisions in the
	// supported range.
	coords := []struct{ lat, lon float64 }{
		{47.6062, -122.3321},
		{-36.8485, 174.7633},
		{70.9, -127.9},
		{0.0001, -0.0001},
		{-89.5, 179.5},
	}
	for p := 1; p <= 10; p++ {
		for _, c := range coords {
			code := Encode(c.lat, c.lon, p)
			if len(code) != p {
				t.Fatalf("Encode precision %d produced %q (len %d)", p, code, len(code))
			}
			cell, err := DecodeCell(code)
			if err != nil {
				t.Fatalf("DecodeCell(%q): %v", code, err)
			}
			if math.Abs(cell.Lat-c.lat) > cell.LatHalf {
				t.Errorf("p=%d code=%q: lat centroid %v not within %v of %v", p, code, cell.Lat, cell.LatHalf, c.lat)
			}
			if math.Abs(cell.Lon-c.lon) > cell.LonHalf {
				t.Errorf("p=%d code=%q: lon centroid %v not within %v of %v", p, code, cell.Lon, cell.LonHalf, c.lon)
			}
		}
	}
}

func TestDecodeRejectsBlankAndInvalid(t *testing.T) {
	if _, err := DecodeCell("       "); err == nil {
		t.Error("expected error decoding blank code")
	}
	if _, err := DecodeCell("abc"); err == nil {
		t.Error("expected error decoding code with invalid alphabet character 'a'")
	}
}

func TestNeighborsAdjacency(t *testing.T) {
	code := Encode(47.6062, -122.3321, 6)
	nbs, err := Neighbors(code)
	if err != nil {
		t.Fatal(err)
	}
	if len(nbs) != 8 {
		t.Fatalf("expected 8 neighbors away from poles, got %d", len(nbs))
	}
	center, _ := DecodeCell(code)
	seen := map[string]bool{}
	for _, nb := range nbs {
		if nb == code {
			t.Errorf("neighbor set contains the center cell %q", code)
		}
		if seen[nb] {
			t.Errorf("duplicate neighbor %q", nb)
		}
		seen[nb] = true
		c, err := DecodeCell(nb)
		if err != nil {
			t.Fatalf("DecodeCell(%q): %v", nb, err)
		}
		// Each neighbor centroid must be exactly one cell extent away in
		// at least one axis and no more than one in either.
		dlat := math.Abs(c.Lat-center.Lat) / (2 * center.LatHalf)
		dlon := math.Abs(c.Lon-center.Lon) / (2 * center.LonHalf)
		if dlat > 1.5 || dlon > 1.5 {
			t.Errorf("neighbor %q too far: dlat=%v dlon=%v cells", nb, dlat, dlon)
		}
	}
}

func TestCellsCoveringConvexPolygon(t *testing.T) {
	// A convex quadrilateral roughly 0.1 degree across. Precision 5 cells
	// are ~0.044 x 0.044 degrees so the polygon spans a few cells.
	poly := Polygon{
		{47.60, -122.40},
		{47.60, -122.25},
		{47.72, -122.25},
		{47.72, -122.40},
	}
	inside, intersecting, err := CellsCovering(poly, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(inside) == 0 {
		t.Error("expected at least one fully-inside cell")
	}
	if len(intersecting) == 0 {
		t.Error("expected boundary cells")
	}

	// Sets are mutually exclusive.
	inSet := map[string]bool{}
	for _, c := range inside {
		inSet[c] = true
	}
	for _, c := range intersecting {
		if inSet[c] {
			t.Errorf("cell %q is in both inside and intersecting sets", c)
		}
	}

	// Every inside cell must actually be contained: all four corners in
	// the polygon.
	for _, code := range inside {
		cell, err := DecodeCell(code)
		if err != nil {
			t.Fatal(err)
		}
		for _, corner := range cell.corners() {
			if !poly.Contains(corner) {
				t.Errorf("inside cell %q has corner outside polygon", code)
			}
		}
	}

	// No gaps: every probe point in the polygon interior falls in a
	// returned cell.
	union := map[string]bool{}
	for _, c := range append(append([]string{}, inside...), intersecting...) {
		union[c] = true
	}
	for lat := 47.605; lat < 47.72; lat += 0.01 {
		for lon := -122.395; lon < -122.25; lon += 0.01 {
			if !poly.Contains(Point{lat, lon}) {
				continue
			}
			code := Encode(lat, lon, 5)
			if !union[code] {
				t.Errorf("point (%v, %v) in polygon but its cell %q not covered", lat, lon, code)
			}
		}
	}
}

func TestBlankHelpers(t *testing.T) {
	if got := Blank(7); got != strings.Repeat(" ", 7) {
		t.Errorf("Blank(7) = %q", got)
	}
	if IsBlank("c22zp8") {
		t.Error("valid code reported blank")
	}
}
