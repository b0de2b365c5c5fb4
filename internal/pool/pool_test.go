package pool

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/hydroline-data/swathproc/internal/chunk"
)

func TestSizeWorkers(t *testing.T) {
	tests := []struct {
		cores int
		memGB uint64
		want  int
	}{
		{cores: 16, memGB: 32, want: 8},
		{cores: 16, memGB: 16, want: 4},
		{cores: 16, memGB: 24, want: 4}, // threshold is strictly above 24 GB
		{cores: 6, memGB: 64, want: 6},
		{cores: 2, memGB: 8, want: 2},
	}
	for _, tt := range tests {
		if got := SizeWorkers(tt.cores, tt.memGB<<30); got != tt.want {
			t.Errorf("SizeWorkers(%d cores, %d GB) = %d, want %d", tt.cores, tt.memGB, got, tt.want)
		}
	}
}

func testPool(t *testing.T, workers int) *Pool {
	t.Helper()
	p, err := newPool("", Options{Workers: workers, MemoryLimitBytes: 32 << 30})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFindOrStartSharesHandle(t *testing.T) {
	addr := "tcp://scheduler-test:8786"
	defer Shutdown(addr)

	a, err := FindOrStart(addr, Options{Workers: 2, MemoryLimitBytes: 8 << 30})
	if err != nil {
		t.Fatal(err)
	}
	// Later options are ignored; the same handle comes back.
	b, err := FindOrStart(addr, Options{Workers: 7, MemoryLimitBytes: 64 << 30})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("same address returned distinct pools")
	}
	if b.Workers() != 2 {
		t.Errorf("workers = %d, want the original 2", b.Workers())
	}

	Shutdown(addr)
	c, err := FindOrStart(addr, Options{Workers: 3, MemoryLimitBytes: 8 << 30})
	if err != nil {
		t.Fatal(err)
	}
	if c == a {
		t.Error("shutdown address returned the stale pool")
	}
}

func TestMapCollectsByRangeOrder(t *testing.T) {
	p := testPool(t, 3)
	ranges, err := chunk.SplitByWorkers(10, 3, 0)
	if err != nil {
		t.Fatal(err)
	}

	out, err := p.Map(context.Background(), ranges, func(_ context.Context, r chunk.Range) (any, error) {
		return r.Start, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 {
		t.Fatalf("got %d results, want 3", len(out))
	}
	for i, r := range ranges {
		if out[i].(int) != r.Start {
			t.Errorf("result %d = %v, want %d", i, out[i], r.Start)
		}
	}
}

func TestMapRetriesFailedChunk(t *testing.T) {
	p := testPool(t, 2)
	ranges := []chunk.Range{{Start: 0, End: 5}, {Start: 5, End: 10}}

	var failures int32
	out, err := p.Map(context.Background(), ranges, func(_ context.Context, r chunk.Range) (any, error) {
		// The second chunk fails exactly once, then succeeds on the
		// re-dispatch.
		if r.Start == 5 && atomic.CompareAndSwapInt32(&failures, 0, 1) {
			return nil, errors.New("transient read error")
		}
		return r.End - r.Start, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if out[1].(int) != 5 {
		t.Errorf("retried chunk result = %v, want 5", out[1])
	}
	if atomic.LoadInt32(&failures) != 1 {
		t.Errorf("failure injected %d times, want 1", failures)
	}
}

func TestMapFailsWhenRetriesExhausted(t *testing.T) {
	p := testPool(t, 2)
	ranges := []chunk.Range{{Start: 0, End: 5}, {Start: 5, End: 10}}

	_, err := p.Map(context.Background(), ranges, func(_ context.Context, r chunk.Range) (any, error) {
		if r.Start == 5 {
			return nil, errors.New("bad sector")
		}
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected error when retries are exhausted")
	}
	if !strings.Contains(err.Error(), "[5, 10)") {
		t.Errorf("error %q does not name the failing chunk", err)
	}
}

func TestMapEmptyInput(t *testing.T) {
	p := testPool(t, 2)
	out, err := p.Map(context.Background(), nil, func(_ context.Context, _ chunk.Range) (any, error) {
		t.Error("chunk function called for empty input")
		return nil, nil
	})
	if err != nil || out != nil {
		t.Errorf("empty map = (%v, %v), want (nil, nil)", out, err)
	}
}

func TestMemoryPressureTriggersRestart(t *testing.T) {
	p := testPool(t, 1)
	p.memUsed = func() (uint64, error) { return 31 << 30, nil } // over 0.75 of 32 GB

	_, err := p.Map(context.Background(), []chunk.Range{{Start: 0, End: 1}},
		func(_ context.Context, _ chunk.Range) (any, error) { return nil, nil })
	if err != nil {
		t.Fatal(err)
	}
	if p.Restarts() == 0 {
		t.Error("no restart recorded under memory pressure")
	}

	// Below the threshold nothing happens.
	q := testPool(t, 1)
	q.memUsed = func() (uint64, error) { return 8 << 30, nil }
	_, err = q.Map(context.Background(), []chunk.Range{{Start: 0, End: 1}},
		func(_ context.Context, _ chunk.Range) (any, error) { return nil, nil })
	if err != nil {
		t.Fatal(err)
	}
	if q.Restarts() != 0 {
		t.Errorf("restarts = %d below threshold, want 0", q.Restarts())
	}
}

func TestMapHonorsContextCancellation(t *testing.T) {
	p := testPool(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Map(ctx, []chunk.Range{{Start: 0, End: 1}, {Start: 1, End: 2}},
		func(_ context.Context, _ chunk.Range) (any, error) { return nil, nil })
	if err == nil {
		t.Error("expected context error from cancelled map")
	}
}
