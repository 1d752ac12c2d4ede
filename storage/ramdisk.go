package storage

import (
	"sync"

	"github.com/pandagen/kernel/hal"
)

// RamDisk is the in-memory hal.BlockDevice used inside the deterministic
// simulation core (spec §4.G: "a block-device abstraction"). It never
// touches a real file; persistence across process restarts is the job
// of BoltBlockDevice instead.
type RamDisk struct {
	mu        sync.Mutex
	blockSize uint32
	blocks    [][]byte
}

// NewRamDisk returns a RamDisk with blockCount blocks of blockSize
// bytes each, zero-filled.
func NewRamDisk(blockCount uint64, blockSize uint32) *RamDisk {
	d := &RamDisk{blockSize: blockSize, blocks: make([][]byte, blockCount)}
	for i := range d.blocks {
		d.blocks[i] = make([]byte, blockSize)
	}
	return d
}

func (d *RamDisk) BlockCount() uint64 { return uint64(len(d.blocks)) }
func (d *RamDisk) BlockSize() uint32  { return d.blockSize }

func (d *RamDisk) ReadBlock(idx uint64, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx >= uint64(len(d.blocks)) {
		return hal.ErrOutOfBounds
	}
	if uint32(len(buf)) != d.blockSize {
		return hal.ErrInvalidSize
	}
	copy(buf, d.blocks[idx])
	return nil
}

func (d *RamDisk) WriteBlock(idx uint64, buf []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx >= uint64(len(d.blocks)) {
		return hal.ErrOutOfBounds
	}
	if uint32(len(buf)) != d.blockSize {
		return hal.ErrInvalidSize
	}
	copy(d.blocks[idx], buf)
	return nil
}

func (d *RamDisk) Flush() error { return nil }
