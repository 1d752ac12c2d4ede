// Package hal defines the two hardware-abstraction traits the kernel
// core consumes: TimerDevice and BlockDevice. Both are narrow
// interfaces in the teacher's style (ingest/log.Relay, io.WriteCloser) —
// no more methods than the core actually calls.
package hal

import (
	"errors"

	"github.com/pandagen/kernel/core"
)

// TimerDevice returns monotonic cumulative ticks. It never blocks and
// the kernel never reads the wall clock through any other path.
type TimerDevice interface {
	// PollTicks returns the current cumulative tick count.
	PollTicks() core.Tick
}

// BlockDevice error values (spec §6).
var (
	ErrOutOfBounds = errors.New("hal: block index out of bounds")
	ErrInvalidSize = errors.New("hal: buffer size does not match block size")
	ErrIoError     = errors.New("hal: io error")
	ErrNotReady    = errors.New("hal: device not ready")
)

// BlockDevice is a fixed block-size storage backend. Implementations
// include an in-memory RAM disk (storage.RamDisk) and a bbolt-backed
// persistent variant (storage.BoltBlockDevice); an MMIO virtio-blk
// driver is out of core scope per spec §4.G.
type BlockDevice interface {
	BlockCount() uint64
	BlockSize() uint32
	ReadBlock(idx uint64, buf []byte) error
	WriteBlock(idx uint64, buf []byte) error
	Flush() error
}
