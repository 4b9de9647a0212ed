// Package backend implements the dual CPU/GPU dispatch strategies
// referenced by layer.Option: CPU kernels run synchronously across
// worker goroutines, while GPU execution is delegated to an
// injectable GPU strategy so the core stays buildable without a real
// driver.
package backend

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ParallelFor runs fn(i) for i in [0, n) across up to numThreads
// worker goroutines, the data-parallel dispatch pattern CPU kernels
// use for outer loops over channels/rows.
// A numThreads <= 1 runs fn sequentially on the calling goroutine.
func ParallelFor(numThreads, n int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	if numThreads <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	if numThreads > n {
		numThreads = n
	}

	g, _ := errgroup.WithContext(context.Background())
	chunk := (n + numThreads - 1) / numThreads
	for w := 0; w < numThreads; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := fn(i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}
