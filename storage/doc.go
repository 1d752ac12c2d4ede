// Package storage implements the write-ahead block-device transaction
// layer of spec §4.G: a superblock, a first-fit allocator, WAL-style
// begin/read/write/commit/rollback transactions, versioned objects, and
// a pure migration path. Grounded on the teacher's bolt-backed
// IngestCache (cache.go, package ingest): open-or-init a fixed backing
// store, keep an in-memory index mirroring on-disk state, and guard
// every mutation with a single mutex rather than relying on the backing
// store's own locking.
//
// Remount never trusts a persisted free-list (spec §9 Open Question c):
// Open rebuilds live-block membership purely from the object directory
// stored in the blocks after the superblock. A corrupt or missing directory entry can
// only ever leak blocks as permanently allocated, never double-allocate
// a block two objects both believe they own.
package storage
