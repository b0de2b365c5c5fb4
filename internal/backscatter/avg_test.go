package backscatter

import (
	"math"
	"testing"

	"github.com/hydroline-data/swathproc/internal/swath"
)

func TestGenerateAVGCorrector(t *testing.T) {
	// Two populated bins: a strong response near nadir, the reference
	// level at 45 degrees.
	corrected := swath.Grid{
		{16, 16, 10, 10},
		{16, 16, 10, 10},
	}
	angles := swath.Grid{
		{30.5, 30.5, 44.5, 44.5},
		{30.5, 30.5, 44.5, 44.5},
	}
	table, err := GenerateAVGCorrector(corrected, angles, 1.0, 45.0)
	if err != nil {
		t.Fatal(err)
	}
	if table.BinSize != 1.0 {
		t.Errorf("bin size = %v", table.BinSize)
	}
	if len(table.Angles) != 180 {
		t.Fatalf("bins = %d, want 180 one-degree bins over [-90, 90]", len(table.Angles))
	}
	if table.Angles[0] != -90 {
		t.Errorf("first bin edge = %v, want -90", table.Angles[0])
	}

	binAt := func(edge float64) int {
		for k, a := range table.Angles {
			if a == edge {
				return k
			}
		}
		t.Fatalf("no bin with left edge %v", edge)
		return -1
	}

	// The reference bin offset is zero, the nadir-side bin carries the
	// +6 dB excess.
	if got := table.Offsets[binAt(44)]; got != 0 {
		t.Errorf("reference bin offset = %v, want 0", got)
	}
	if got := table.Offsets[binAt(30)]; got != 6 {
		t.Errorf("30-degree bin offset = %v, want 6", got)
	}
	// Bins that saw no samples carry zero.
	if got := table.Offsets[binAt(-60)]; got != 0 {
		t.Errorf("empty bin offset = %v, want 0", got)
	}
}

func TestApplyAVGCorrectorFlattensResponse(t *testing.T) {
	corrected := swath.Grid{{16, 10, 16, 10}}
	// Deliberately unsorted angles: apply must sort for the lookup and
	// restore the original beam order.
	angles := swath.Grid{{30.5, 44.5, 30.2, 44.8}}

	table, err := GenerateAVGCorrector(corrected, angles, 1.0, 45.0)
	if err != nil {
		t.Fatal(err)
	}
	out, err := ApplyAVGCorrector(corrected, angles, table)
	if err != nil {
		t.Fatal(err)
	}
	// After correction every sample sits at the reference level.
	for j, v := range out[0] {
		if math.Abs(v-10) > 1e-12 {
			t.Errorf("beam %d corrected to %v, want 10", j, v)
		}
	}
	// Input untouched.
	if corrected[0][0] != 16 {
		t.Errorf("input modified: %v", corrected[0][0])
	}
}

func TestApplyAVGCorrectorNaNAndOffRange(t *testing.T) {
	corrected := swath.Grid{{16, math.NaN(), 12}}
	angles := swath.Grid{{30.5, math.NaN(), 95.0}}
	table := &AngleGainTable{
		BinSize: 1.0,
		Angles:  []float64{29, 30, 31},
		Offsets: []float64{1, 6, 2},
	}
	out, err := ApplyAVGCorrector(corrected, angles, table)
	if err != nil {
		t.Fatal(err)
	}
	if out[0][0] != 10 {
		t.Errorf("in-range beam = %v, want 10", out[0][0])
	}
	if !math.IsNaN(out[0][1]) {
		t.Errorf("missing beam = %v, want NaN", out[0][1])
	}
	// An angle beyond the table clamps into the last bin.
	if out[0][2] != 10 {
		t.Errorf("off-range beam = %v, want 10 (clamped to last bin offset 2)", out[0][2])
	}
}

func TestGenerateAVGCorrectorValidation(t *testing.T) {
	g := swath.Grid{{1}}
	if _, err := GenerateAVGCorrector(g, g, 0, 45); err == nil {
		t.Error("expected error for non-positive bin size")
	}
	if _, err := GenerateAVGCorrector(g, swath.Grid{{1, 2}}, 1, 45); err == nil {
		t.Error("expected error for shape mismatch")
	}
	if _, err := ApplyAVGCorrector(g, g, &AngleGainTable{}); err == nil {
		t.Error("expected error for empty table")
	}
}
