// Package pool runs chunked pipeline work across a bounded set of workers.
// Chunk functions must be pure: a failed chunk is retried by re-dispatching
// the same function over the same range, with no cleanup in between, so any
// state a chunk leaves behind would poison the retry.
package pool

import (
	"fmt"
	"log"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Options configure a pool at first construction for an address. Later
// FindOrStart calls for the same address ignore them and return the
// existing pool.
type Options struct {
	// Workers overrides the detected worker count when positive.
	Workers int
	// MemoryLimitBytes overrides the detected total memory when positive.
	MemoryLimitBytes uint64
	// RestartThreshold is the used/limit fraction above which the pool
	// recycles its workers before taking new work. Zero means the default.
	RestartThreshold float64
	// MaxRetries is how many times a failed chunk is re-dispatched before
	// the run fails. Zero means the default of 1.
	MaxRetries int
}

const (
	defaultRestartThreshold = 0.75
	defaultMaxRetries       = 1

	largeMemoryBytes = 24 << 30
	maxWorkersLarge  = 8
	maxWorkersSmall  = 4
)

// Pool is a handle to a running worker set. All methods are safe for
// concurrent use.
type Pool struct {
	address   string
	workers   int
	memLimit  uint64
	threshold float64
	retries   int

	// memUsed reports current memory use; replaced in tests.
	memUsed func() (uint64, error)

	mu       sync.Mutex
	restarts int
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]*Pool)
)

// FindOrStart returns the pool registered at address, starting one when
// none exists. The empty address is the local machine. Two callers naming
// the same address always share one pool, matching how a scheduler address
// names one cluster.
func FindOrStart(address string, opts Options) (*Pool, error) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if p, ok := registry[address]; ok {
		return p, nil
	}

	p, err := newPool(address, opts)
	if err != nil {
		return nil, err
	}
	registry[address] = p
	log.Printf("pool: started %q with %d workers, limit %d bytes", address, p.workers, p.memLimit)
	return p, nil
}

// Shutdown removes the pool at address from the registry. A later
// FindOrStart builds a fresh one.
func Shutdown(address string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, address)
}

func newPool(address string, opts Options) (*Pool, error) {
	limit := opts.MemoryLimitBytes
	if limit == 0 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			return nil, fmt.Errorf("detect system memory: %w", err)
		}
		limit = vm.Total
	}

	workers := opts.Workers
	if workers <= 0 {
		cores, err := cpu.Counts(true)
		if err != nil {
			return nil, fmt.Errorf("detect cpu count: %w", err)
		}
		workers = SizeWorkers(cores, limit)
	}

	threshold := opts.RestartThreshold
	if threshold <= 0 {
		threshold = defaultRestartThreshold
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = defaultMaxRetries
	}

	return &Pool{
		address:   address,
		workers:   workers,
		memLimit:  limit,
		threshold: threshold,
		retries:   retries,
		memUsed: func() (uint64, error) {
			vm, err := mem.VirtualMemory()
			if err != nil {
				return 0, err
			}
			return vm.Used, nil
		},
	}, nil
}

// SizeWorkers is the capacity rule: machines above 24 GB run up to 8
// workers, smaller ones up to 4, never more than the logical core count.
func SizeWorkers(logicalCores int, totalMemBytes uint64) int {
	cap := maxWorkersSmall
	if totalMemBytes > largeMemoryBytes {
		cap = maxWorkersLarge
	}
	if logicalCores < cap {
		return logicalCores
	}
	return cap
}

// Workers reports the pool's worker count.
func (p *Pool) Workers() int { return p.workers }

// Restarts reports how many memory-pressure recycles the pool has done.
func (p *Pool) Restarts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.restarts
}

// checkMemory recycles the workers when use crosses the restart threshold.
// Called before new work is taken, never in the middle of a chunk.
func (p *Pool) checkMemory() {
	used, err := p.memUsed()
	if err != nil {
		log.Printf("pool: memory probe failed: %v", err)
		return
	}
	if float64(used) < float64(p.memLimit)*p.threshold {
		return
	}
	p.mu.Lock()
	p.restarts++
	n := p.restarts
	p.mu.Unlock()
	log.Printf("pool: memory %d of %d exceeds threshold %.2f, recycling workers (restart %d)",
		used, p.memLimit, p.threshold, n)
}
