/*package thread contains the functions pstructs uses to run data-parallel
kernels on goroutines.*/
package thread

import (
	"runtime"
	"sync"
	"sync/atomic"

	g_error "github.com/phil-mansfield/pstructs/lib/error"
)

// Strategy is the way SplitArray hands out indices to workers.
type Strategy int

const (
	// Block gives each worker one contiguous chunk of the array.
	Block Strategy = iota
	// Jump gives worker w the indices w, w + workers, w + 2*workers, ...
	// This balances work when the cost of an index drifts along the array.
	Jump
)

var workers int32 = int32(runtime.NumCPU())

// Set sets the number of workers used by every kernel and the number of OS
// threads the runtime may use. Setting n <= 0 uses every core on the node.
func Set(n int) error {
	if n > runtime.NumCPU() {
		return g_error.Configf("%d threads requested, but your system only has %d cores per node. If you want pstructs to use the maximum number of threads per node, set Threads=-1.", n, runtime.NumCPU())
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}

	runtime.GOMAXPROCS(n)
	atomic.StoreInt32(&workers, int32(n))
	return nil
}

// Workers returns the number of workers kernels are split across.
func Workers() int {
	return int(atomic.LoadInt32(&workers))
}

// SplitArray runs work over the indices [0, n) using the given number of
// workers and waits for all of them to finish. Each call to work is told its
// worker index and the range start, end, and step it should loop over:
//
//    for i := start; i < end; i += step { ... }
func SplitArray(
	n, nWorkers int, work func(worker, start, end, step int), strat Strategy,
) {
	if n <= 0 {
		return
	}
	if nWorkers <= 0 {
		nWorkers = Workers()
	}
	if nWorkers > n {
		nWorkers = n
	}

	if nWorkers == 1 {
		work(0, 0, n, 1)
		return
	}

	wg := sync.WaitGroup{}
	wg.Add(nWorkers)
	for w := 0; w < nWorkers; w++ {
		var start, end, step int
		switch strat {
		case Jump:
			start, end, step = w, n, nWorkers
		default:
			start, end, step = w*n/nWorkers, (w+1)*n/nWorkers, 1
		}

		go func(w, start, end, step int) {
			defer wg.Done()
			work(w, start, end, step)
		}(w, start, end, step)
	}
	wg.Wait()
}

// For calls fn(i) for every i in [0, n) across all workers.
func For(n int, fn func(i int)) {
	SplitArray(n, Workers(), func(_, start, end, step int) {
		for i := start; i < end; i += step {
			fn(i)
		}
	}, Block)
}
