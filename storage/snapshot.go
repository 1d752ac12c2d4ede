package storage

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/dchest/safefile"
	"github.com/klauspost/compress/gzip"

	"github.com/pandagen/kernel/hal"
)

// snapshotPayload is every block plus the directory, enough to fully
// reconstruct a device (spec §8 testable property 6: two runs with the
// same FaultPlan and op sequence must produce identical storage
// snapshots — this is the comparable form that assertion is made over).
type snapshotPayload struct {
	Superblock Superblock
	Blocks     [][]byte
	Directory  directory
}

// Export gzip-compresses a full block-by-block snapshot of the store
// and writes it atomically to path (spec DOMAIN STACK: klauspost/compress
// for the gzip stream, dchest/safefile for the atomic file swap — the
// teacher's own two real dependencies, each given one call site).
func (s *Store) Export(path string) (err error) {
	s.mu.Lock()
	payload := snapshotPayload{Directory: s.dir}
	sb, _, rerr := readSuperblock(s.dev)
	if rerr != nil {
		s.mu.Unlock()
		return rerr
	}
	payload.Superblock = sb
	blockSize := s.dev.BlockSize()
	buf := make([]byte, blockSize)
	for i := uint64(0); i < s.dev.BlockCount(); i++ {
		if rerr := s.dev.ReadBlock(i, buf); rerr != nil {
			s.mu.Unlock()
			return fmt.Errorf("export: read block %d: %w", i, rerr)
		}
		block := make([]byte, blockSize)
		copy(block, buf)
		payload.Blocks = append(payload.Blocks, block)
	}
	s.mu.Unlock()

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(payload); err != nil {
		return fmt.Errorf("export: encode snapshot: %w", err)
	}

	f, err := safefile.Create(path)
	if err != nil {
		return fmt.Errorf("export: create snapshot file: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
		}
	}()

	zw := gzip.NewWriter(f)
	if _, err = zw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("export: write snapshot: %w", err)
	}
	if err = zw.Close(); err != nil {
		return fmt.Errorf("export: close gzip writer: %w", err)
	}
	return f.Commit()
}

// Import restores a snapshot produced by Export into dev, returning a
// Store opened against the restored state.
func Import(path string, dev hal.BlockDevice, open func(string) (io.ReadCloser, error)) (*Store, error) {
	r, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("import: open snapshot file: %w", err)
	}
	defer r.Close()

	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("import: open gzip stream: %w", err)
	}
	defer zr.Close()

	var payload snapshotPayload
	if err := gob.NewDecoder(zr).Decode(&payload); err != nil {
		return nil, fmt.Errorf("import: decode snapshot: %w", err)
	}

	if uint64(len(payload.Blocks)) != dev.BlockCount() {
		return nil, fmt.Errorf("import: snapshot has %d blocks, device has %d", len(payload.Blocks), dev.BlockCount())
	}
	for i, block := range payload.Blocks {
		if err := dev.WriteBlock(uint64(i), block); err != nil {
			return nil, fmt.Errorf("import: write block %d: %w", i, err)
		}
	}
	if err := dev.Flush(); err != nil {
		return nil, fmt.Errorf("import: flush device: %w", err)
	}

	store, kerr := Open(dev)
	if kerr != nil {
		return nil, fmt.Errorf("import: reopen store: %w", kerr)
	}
	return store, nil
}

// SnapshotEqual reports whether two stores' on-device block contents
// and directories are byte-identical, the comparison §8's determinism
// property is stated in terms of ("identical... storage states").
func SnapshotEqual(a, b *Store) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b.mu.Lock()
	defer b.mu.Unlock()

	if a.dev.BlockCount() != b.dev.BlockCount() || a.dev.BlockSize() != b.dev.BlockSize() {
		return false, nil
	}
	buf1 := make([]byte, a.dev.BlockSize())
	buf2 := make([]byte, b.dev.BlockSize())
	for i := uint64(0); i < a.dev.BlockCount(); i++ {
		if err := a.dev.ReadBlock(i, buf1); err != nil {
			return false, err
		}
		if err := b.dev.ReadBlock(i, buf2); err != nil {
			return false, err
		}
		if !bytes.Equal(buf1, buf2) {
			return false, nil
		}
	}
	return len(a.dir.Entries) == len(b.dir.Entries), nil
}
