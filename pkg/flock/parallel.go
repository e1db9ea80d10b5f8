package flock

import (
	"golang.org/x/sync/errgroup"
)

// parallelThreshold is the minimum population to fan out over goroutines.
// Below this, single-threaded is faster due to goroutine overhead.
const parallelThreshold = 64

// workerPool splits a phase into contiguous chunks, one per worker.
// Each worker owns a Neighborhood so queries never share buffers.
type workerPool struct {
	size    int
	scratch []Neighborhood
}

func newWorkerPool(size int) *workerPool {
	if size < 1 {
		size = 1
	}
	return &workerPool{
		size:    size,
		scratch: make([]Neighborhood, size),
	}
}

// run calls fn(worker, i) for every i in order and returns once all calls
// are done, which is the barrier between the compute and commit phases.
func (p *workerPool) run(order []int, fn func(worker, i int)) {
	if p.size == 1 || len(order) < parallelThreshold {
		for _, i := range order {
			fn(0, i)
		}
		return
	}

	chunk := (len(order) + p.size - 1) / p.size
	var g errgroup.Group
	for w := 0; w < p.size; w++ {
		start := w * chunk
		if start >= len(order) {
			break
		}
		end := min(start+chunk, len(order))
		worker := w
		g.Go(func() error {
			for _, i := range order[start:end] {
				fn(worker, i)
			}
			return nil
		})
	}
	_ = g.Wait()
}
