package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the cadence at which Scheduler.Run reports progress.
const DefaultInterval = 30 * time.Millisecond

// fallbackWorkers is used when the runtime reports no usable parallelism.
const fallbackWorkers = 4

// Scheduler splits a range of work items into contiguous blocks and runs
// them across a bounded set of workers.
//
// The zero value (and a nil *Scheduler) is ready to use: it sizes itself
// from GOMAXPROCS, spawns goroutines per call and reports progress every
// DefaultInterval.
type Scheduler struct {
	// Workers caps the number of concurrent workers. Zero or negative means
	// GOMAXPROCS.
	Workers int

	// BlockSize is used when Run is called with a non-positive block size.
	// Zero or negative selects a size automatically.
	BlockSize int

	// Interval is the progress polling cadence. Zero means DefaultInterval.
	Interval time.Duration

	// Pool, if set, runs the worker loops instead of fresh goroutines.
	// Run still waits for every loop it submitted before returning.
	Pool *WorkerPool
}

// Run partitions [0, total) into blocks of blockSize items and calls fn for
// each block's half-open range [start, end). Blocks are claimed from a shared
// atomic cursor, so their execution order is unspecified; fn must only write
// state owned by its range.
//
// If blockSize is zero or negative, Scheduler.BlockSize is used; if that is
// unset too, the size is chosen so that each worker gets about four blocks.
//
// cancel may be nil; when it becomes true workers stop claiming new blocks.
// progress, if non-nil, receives the number of items newly completed since
// its previous call. It is only ever called from the goroutine that called
// Run.
//
// Run returns true iff every block completed and cancel was not set. All
// workers have exited by the time Run returns.
func (s *Scheduler) Run(total, blockSize int, cancel *atomic.Bool, fn func(start, end int), progress func(delta int)) bool {
	if total <= 0 {
		return true
	}
	if s == nil {
		s = &Scheduler{}
	}
	if canceled(cancel) {
		return false
	}

	hw := s.hardwareWorkers()
	if blockSize <= 0 {
		blockSize = s.BlockSize
	}
	if blockSize <= 0 {
		blockSize = max(1, total/(clamp(hw, 1, total)*4))
	}
	numBlocks := (total + blockSize - 1) / blockSize
	workers := clamp(hw, 1, numBlocks)

	var (
		cursor    atomic.Int64
		completed atomic.Int64
		wg        sync.WaitGroup
	)

	loop := func() {
		defer wg.Done()
		for !canceled(cancel) {
			b := int(cursor.Add(1) - 1)
			if b >= numBlocks {
				return
			}
			start := b * blockSize
			end := min(start+blockSize, total)
			fn(start, end)
			completed.Add(1)
		}
	}

	wg.Add(workers)
	for range workers {
		if s.Pool == nil || !s.Pool.Submit(loop) {
			go loop()
		}
	}

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	reported := 0
	report := func() {
		if progress == nil {
			return
		}
		done := min(int(completed.Load())*blockSize, total)
		if done > reported {
			progress(done - reported)
			reported = done
		}
	}

	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	for {
		select {
		case <-finished:
			report()
			return int(completed.Load()) == numBlocks && !canceled(cancel)
		case <-ticker.C:
			report()
		}
	}
}

func (s *Scheduler) hardwareWorkers() int {
	n := s.Workers
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if n <= 0 {
		n = fallbackWorkers
	}
	return n
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

func canceled(flag *atomic.Bool) bool {
	return flag != nil && flag.Load()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
