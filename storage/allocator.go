package storage

import "github.com/pandagen/kernel/core"

// dataBlocksStart is the first block index available to object data:
// block 0 is the superblock, blocks 1..reservedDirectoryBlocks hold the
// object directory.
const dataBlocksStart = uint64(1 + reservedDirectoryBlocks)

// allocator tracks which data blocks are in use. Per spec §9 Open
// Question c, it is never persisted: every Open call rebuilds it from
// the object directory's recorded block lists, so a stale or missing
// free-list can never cause a double allocation.
type allocator struct {
	total     uint64
	allocated map[uint64]bool
}

func newAllocator(total uint64) *allocator {
	return &allocator{total: total, allocated: make(map[uint64]bool)}
}

// rebuildFrom marks every block referenced by d's entries as allocated,
// leaving everything else free — the whole of the Open Question c
// resolution in one call.
func (a *allocator) rebuildFrom(d directory) {
	a.allocated = make(map[uint64]bool)
	for _, e := range d.Entries {
		for _, b := range e.Blocks {
			a.allocated[b] = true
		}
	}
}

// allocate finds the first contiguous run of n free blocks at or after
// dataBlocksStart (spec §4.G allocator: "allocate blocks"). Allocation
// is not persisted until the caller commits the owning transaction.
func (a *allocator) allocate(n uint64) ([]uint64, *core.KernelError) {
	if n == 0 {
		return nil, nil
	}
	run := make([]uint64, 0, n)
	for idx := dataBlocksStart; idx < a.total; idx++ {
		if a.allocated[idx] {
			run = run[:0]
			continue
		}
		run = append(run, idx)
		if uint64(len(run)) == n {
			for _, b := range run {
				a.allocated[b] = true
			}
			return run, nil
		}
	}
	return nil, core.BudgetExhausted("StorageBlocks", n, a.total-dataBlocksStart-uint64(len(a.allocated)))
}

func (a *allocator) free(blocks []uint64) {
	for _, b := range blocks {
		delete(a.allocated, b)
	}
}
