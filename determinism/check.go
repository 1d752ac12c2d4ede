// Package determinism is a test-only harness for spec §5's core
// guarantee: a SimKernel driven by the same FaultPlan and the same
// operation sequence produces identical storage state no matter how
// many times it is replayed. It is grounded on §8 testable property 6
// and on the teacher's own concurrency idiom — golang.org/x/sync/errgroup
// fans out independent work and collects the first error, the same
// pattern the ingest muxer's consumer goroutines use, here fanning out
// N identical kernel replicas instead of N ingest connections.
package determinism

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pandagen/kernel/hal"
	"github.com/pandagen/kernel/kernel"
	"github.com/pandagen/kernel/storage"
)

// Scenario drives a freshly built kernel through a fixed operation
// sequence. It must be self-contained and free of non-deterministic
// inputs (time.Now, rand, map iteration over unordered keys) for a
// CheckN run to be a meaningful test of the kernel rather than of the
// scenario itself.
type Scenario func(k *kernel.SimKernel) error

// CheckN builds n independent kernels — one per call to cfgFactory and
// devFactory — drives each through scenario concurrently, and reports
// whether every resulting storage snapshot is byte-identical. n < 2
// trivially reports true: there is nothing to compare.
func CheckN(n int, cfgFactory func() kernel.Config, devFactory func() hal.BlockDevice, scenario Scenario) (bool, error) {
	if n < 2 {
		return true, nil
	}

	stores := make([]*storage.Store, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			k, kerr := kernel.New(cfgFactory(), devFactory())
			if kerr != nil {
				return kerr
			}
			if err := scenario(k); err != nil {
				return err
			}
			stores[i] = k.Store()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for i := 1; i < n; i++ {
		eq, err := storage.SnapshotEqual(stores[0], stores[i])
		if err != nil {
			return false, fmt.Errorf("comparing replica 0 and %d: %w", i, err)
		}
		if !eq {
			return false, nil
		}
	}
	return true, nil
}
