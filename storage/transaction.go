package storage

import (
	"fmt"
	"sync"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/hal"
	"github.com/pandagen/kernel/klog"
)

// TxId names one write-ahead transaction.
type TxId uint64

type txStatus int

const (
	txOpen txStatus = iota
	txCommitted
	txRolledBack
)

type pendingWrite struct {
	objectId      core.ObjectId
	bytes         []byte
	schemaId      string
	schemaVersion int
}

type transaction struct {
	id      TxId
	status  txStatus
	pending map[core.ObjectId]pendingWrite
}

// Store is the write-ahead block-device transaction manager of spec
// §4.G. Grounded on the teacher's IngestCache (cache.go): an
// open-or-initialize constructor, an in-memory index mirroring on-disk
// state, and one mutex serializing every mutation rather than trusting
// the backing device's own concurrency story.
type Store struct {
	mu sync.Mutex

	dev hal.BlockDevice
	dir directory
	alc *allocator

	nextTx TxId
	txs    map[TxId]*transaction

	log *klog.Logger
}

// SetLogger routes commit/rollback events to l.
func (s *Store) SetLogger(l *klog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// Open opens dev as a block-device transaction store, initializing a
// fresh superblock and empty directory if dev carries none (spec §4.G:
// "rebuilds on open validate the superblock").
func Open(dev hal.BlockDevice) (*Store, *core.KernelError) {
	sb, found, err := readSuperblock(dev)
	if err != nil {
		return nil, core.StorageError(fmt.Sprintf("read superblock: %v", err))
	}
	var dir directory
	if !found {
		sb = Superblock{Magic: superblockMagic, Version: superblockVersion, BlockSize: dev.BlockSize(), BlockCount: dev.BlockCount()}
		if err := writeSuperblock(dev, sb); err != nil {
			return nil, core.StorageError(fmt.Sprintf("init superblock: %v", err))
		}
		dir = newDirectory()
		if kerr := writeDirectory(dev, dir); kerr != nil {
			return nil, kerr
		}
	} else {
		if sb.Version != superblockVersion {
			return nil, core.StorageError(fmt.Sprintf("unsupported superblock version %d", sb.Version))
		}
		d, kerr := readDirectory(dev)
		if kerr != nil {
			return nil, kerr
		}
		dir = d
	}

	alc := newAllocator(dev.BlockCount())
	alc.rebuildFrom(dir)

	return &Store{dev: dev, dir: dir, alc: alc, txs: make(map[TxId]*transaction), log: klog.NewDiscard()}, nil
}

// Begin opens a new transaction and returns its id (spec §4.G
// "begin() -> TxId").
func (s *Store) Begin() TxId {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextTx++
	id := s.nextTx
	s.txs[id] = &transaction{id: id, status: txOpen, pending: make(map[core.ObjectId]pendingWrite)}
	return id
}

// Write stages bytes for objectId inside tx, visible only to reads
// within the same tx until commit (spec §4.G "write(tx, object_id,
// bytes): stages in a pending map").
func (s *Store) Write(tx TxId, objectId core.ObjectId, schemaId string, schemaVersion int, bytes []byte) *core.KernelError {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, kerr := s.openTxLocked(tx)
	if kerr != nil {
		return kerr
	}
	t.pending[objectId] = pendingWrite{objectId: objectId, bytes: bytes, schemaId: schemaId, schemaVersion: schemaVersion}
	return nil
}

// Read returns the latest committed version of objectId, or tx's own
// pending write if tx has staged one (spec §4.G: "returns latest
// committed (ignoring pending unless same tx)").
func (s *Store) Read(tx TxId, objectId core.ObjectId) ([]byte, *core.KernelError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, kerr := s.openTxLocked(tx)
	if kerr != nil {
		return nil, kerr
	}
	if pw, ok := t.pending[objectId]; ok {
		return pw.bytes, nil
	}
	e, ok := s.dir.Entries[objectId]
	if !ok {
		return nil, core.TargetUnknown()
	}
	return s.readBlocksLocked(e)
}

// readBlocksLocked reconstructs an object's committed bytes straight
// from the device, verifying each block's HighwayHash checksum (spec
// DOMAIN STACK: a corrupted backing file is caught on read, not
// silently served from a stale in-memory copy).
func (s *Store) readBlocksLocked(e directoryEntry) ([]byte, *core.KernelError) {
	blockSize := int(s.dev.BlockSize())
	out := make([]byte, 0, len(e.Blocks)*blockSize)
	buf := make([]byte, blockSize)
	for i, b := range e.Blocks {
		if err := s.dev.ReadBlock(b, buf); err != nil {
			return nil, core.StorageError(fmt.Sprintf("read block %d: %v", b, err))
		}
		if i < len(e.Checksums) && !checksumEqual(checksum(buf), e.Checksums[i]) {
			return nil, core.StorageError(fmt.Sprintf("block %d failed checksum verification", b))
		}
		out = append(out, buf...)
	}
	if e.Length < len(out) {
		out = out[:e.Length]
	}
	return out, nil
}

// Commit allocates blocks for every pending write, writes them with a
// checksum, updates the object directory, flushes the device, and marks
// tx Committed (spec §4.G "commit(tx)"). A committed transaction is
// atomic with respect to readers in other transactions: the directory
// swap happens only after every block in this commit has been written.
func (s *Store) Commit(tx TxId) *core.KernelError {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, kerr := s.openTxLocked(tx)
	if kerr != nil {
		return kerr
	}

	newEntries := make(map[core.ObjectId]directoryEntry, len(t.pending))
	var allocatedThisCommit [][]uint64

	for objectId, pw := range t.pending {
		blockSize := int(s.dev.BlockSize())
		n := (len(pw.bytes) + blockSize - 1) / blockSize
		if n == 0 {
			n = 1
		}
		blocks, aerr := s.alc.allocate(uint64(n))
		if aerr != nil {
			for _, b := range allocatedThisCommit {
				s.alc.free(b)
			}
			return aerr
		}
		allocatedThisCommit = append(allocatedThisCommit, blocks)

		checksums := make([][]byte, len(blocks))
		for i, b := range blocks {
			chunk := make([]byte, blockSize)
			start := i * blockSize
			end := start + blockSize
			if end > len(pw.bytes) {
				end = len(pw.bytes)
			}
			copy(chunk, pw.bytes[start:end])
			checksums[i] = checksum(chunk)
			if werr := s.dev.WriteBlock(b, chunk); werr != nil {
				for _, bl := range allocatedThisCommit {
					s.alc.free(bl)
				}
				return core.StorageError(fmt.Sprintf("write block %d: %v", b, werr))
			}
		}

		prev := s.dir.Entries[objectId]
		lineage := append([]int{}, prev.MigrationLineage...)
		newEntries[objectId] = directoryEntry{
			ID:               objectId,
			SchemaId:         pw.schemaId,
			SchemaVersion:    pw.schemaVersion,
			VersionCounter:   prev.VersionCounter + 1,
			MigrationLineage: lineage,
			Blocks:           blocks,
			Checksums:        checksums,
			Length:           len(pw.bytes),
		}
		if prevBlocks := prev.Blocks; len(prevBlocks) > 0 {
			s.alc.free(prevBlocks)
		}
	}

	for id, e := range newEntries {
		s.dir.Entries[id] = e
	}
	if kerr := writeDirectory(s.dev, s.dir); kerr != nil {
		return kerr
	}
	if err := s.dev.Flush(); err != nil {
		return core.StorageError(fmt.Sprintf("flush: %v", err))
	}

	t.status = txCommitted
	t.pending = nil
	s.log.Debug("storage", "tx %d committed %d object(s)", tx, len(newEntries))
	return nil
}

// Rollback discards tx's pending writes with no side effect on the
// device or directory (spec §4.G "rollback(tx): discard pending, mark
// RolledBack").
func (s *Store) Rollback(tx TxId) *core.KernelError {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, kerr := s.openTxLocked(tx)
	if kerr != nil {
		return kerr
	}
	t.status = txRolledBack
	t.pending = nil
	s.log.Debug("storage", "tx %d rolled back", tx)
	return nil
}

// openTxLocked returns tx if it exists and is still open, else
// StorageError(InvalidState) for double-commit / post-rollback /
// unknown-tx operations (spec §4.G, §8 testable property).
func (s *Store) openTxLocked(tx TxId) (*transaction, *core.KernelError) {
	t, ok := s.txs[tx]
	if !ok {
		return nil, core.StorageError("InvalidState: unknown transaction")
	}
	if t.status != txOpen {
		return nil, core.StorageError("InvalidState: transaction is no longer open")
	}
	return t, nil
}

// ObjectVersion reports the current version counter for objectId, 0 if
// it has never been committed.
func (s *Store) ObjectVersion(objectId core.ObjectId) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir.Entries[objectId].VersionCounter
}
