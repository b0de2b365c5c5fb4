package chunk

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitByWorkers(t *testing.T) {
	tests := []struct {
		name    string
		total   int
		workers int
		maxLen  int
		want    []Range
	}{
		{
			name:  "ten elements three workers",
			total: 10, workers: 3,
			want: []Range{{0, 4}, {4, 7}, {7, 10}},
		},
		{
			name:  "even split",
			total: 12, workers: 4,
			want: []Range{{0, 3}, {3, 6}, {6, 9}, {9, 12}},
		},
		{
			name:  "fewer elements than workers drops empties",
			total: 2, workers: 5,
			want: []Range{{0, 1}, {1, 2}},
		},
		{
			name:  "max length forces more pieces",
			total: 10, workers: 2, maxLen: 3,
			want: []Range{{0, 3}, {3, 6}, {6, 8}, {8, 10}},
		},
		{
			name:  "max length already satisfied",
			total: 10, workers: 5, maxLen: 3,
			want: []Range{{0, 2}, {2, 4}, {4, 6}, {6, 8}, {8, 10}},
		},
		{
			name:  "empty input",
			total: 0, workers: 3,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitByWorkers(tt.total, tt.workers, tt.maxLen)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("pieces mismatch (-want +got):\n%s", diff)
			}
			// Pieces are contiguous and cover [0, total).
			pos := 0
			for _, r := range got {
				if r.Start != pos || r.Len() <= 0 {
					t.Errorf("non-contiguous or empty piece %v at %d", r, pos)
				}
				pos = r.End
			}
			if pos != tt.total {
				t.Errorf("coverage ends at %d, want %d", pos, tt.total)
			}
		})
	}
}

func TestSplitByWorkersValidation(t *testing.T) {
	if _, err := SplitByWorkers(-1, 3, 0); err == nil {
		t.Error("expected error for negative total")
	}
	if _, err := SplitByWorkers(10, 0, 0); err == nil {
		t.Error("expected error for zero workers")
	}
}

func TestEstimateChunkGeometry(t *testing.T) {
	// 32 GB machine, 4 workers, 2 chunks in flight each, 400 beams per
	// ping at 1 kB working set per beam, half the memory usable.
	g, err := EstimateChunkGeometry(32, 4, 400, 2, 1000, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if g.TotalChunks != 8 {
		t.Errorf("total chunks = %d, want 8", g.TotalChunks)
	}
	// 16e9 / 8 chunks / (400 * 1000) bytes per ping = 5000 pings.
	if g.PingsPerChunk != 5000 {
		t.Errorf("pings per chunk = %d, want 5000", g.PingsPerChunk)
	}

	// Tiny budgets still yield at least one ping per chunk.
	g, err = EstimateChunkGeometry(0.000001, 4, 400, 2, 1000, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if g.PingsPerChunk != 1 {
		t.Errorf("pings per chunk = %d, want floor of 1", g.PingsPerChunk)
	}

	if _, err := EstimateChunkGeometry(32, 4, 400, 2, 1000, 1.5); err == nil {
		t.Error("expected error for out-of-range safety margin")
	}
	if _, err := EstimateChunkGeometry(0, 4, 400, 2, 1000, 0.5); err == nil {
		t.Error("expected error for zero memory")
	}
}

func TestSynchronizer(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSynchronizer(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Acquire(context.Background(), "surveys/h13400"); err != nil {
		t.Fatal(err)
	}

	// A second synchronizer (separate descriptor, as a second process
	// would hold) cannot take the same resource while it is held.
	other, err := NewSynchronizer(dir)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := other.TryAcquire("surveys/h13400")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second holder acquired a held lock")
	}

	// A different resource is independent.
	ok, err = other.TryAcquire("surveys/h13401")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("independent resource could not be locked")
	}

	if err := s.Release("surveys/h13400"); err != nil {
		t.Fatal(err)
	}
	ok, err = other.TryAcquire("surveys/h13400")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("released lock could not be re-acquired")
	}

	// Releasing something never locked is a no-op.
	if err := s.Release("surveys/never"); err != nil {
		t.Fatal(err)
	}
}

func TestSynchronizerHostileResourceName(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSynchronizer(dir)
	if err != nil {
		t.Fatal(err)
	}

	// Traversal components in the resource name flatten into the lock
	// directory instead of escaping it.
	if err := s.Acquire(context.Background(), "../../etc/cron.d/evil"); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("lock directory holds %d entries, want 1", len(entries))
	}
	if name := entries[0].Name(); strings.Contains(name, "..") || !strings.HasSuffix(name, ".lock") {
		t.Errorf("unexpected lock file name %q", name)
	}
	if err := s.Release("../../etc/cron.d/evil"); err != nil {
		t.Fatal(err)
	}
}
