package traverse

import "sync"

// parallelFor runs body over the disjoint contiguous chunks of [0, n)
// assigned to each worker and waits for all of them. Work is shared by
// static partitioning rather than a task queue, so a given index (and
// therefore a given z-stack) is only ever touched by one worker. The
// first error encountered, in worker order, is returned; workers do not
// interrupt each other, a failed run simply reports after the join.
func parallelFor(n, numWorkers int, body func(worker, lo, hi int) error) error {
	if n <= 0 {
		return nil
	}

	chunk := (n + numWorkers - 1) / numWorkers
	errs := make([]error, numWorkers)

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		lo := w * chunk
		if lo >= n {
			break
		}
		hi := min(lo+chunk, n)

		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			errs[w] = body(w, lo, hi)
		}(w, lo, hi)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
