package storage

import "github.com/pandagen/kernel/core"

// Object is the read-only view of a committed object version returned
// to callers above the Store (spec §3 "Object (storage)").
type Object struct {
	ID               core.ObjectId
	SchemaId         string
	SchemaVersion    int
	Bytes            []byte
	VersionCounter   uint64
	MigrationLineage []int
}

// GetObject returns the latest committed version of objectId outside
// any transaction's view (a convenience read equivalent to Read inside
// a fresh, immediately-discarded transaction).
func (s *Store) GetObject(objectId core.ObjectId) (Object, *core.KernelError) {
	s.mu.Lock()
	e, ok := s.dir.Entries[objectId]
	if !ok {
		s.mu.Unlock()
		return Object{}, core.TargetUnknown()
	}
	bytes, err := s.readBlocksLocked(e)
	s.mu.Unlock()
	if err != nil {
		return Object{}, err
	}
	return Object{
		ID:               e.ID,
		SchemaId:         e.SchemaId,
		SchemaVersion:    e.SchemaVersion,
		Bytes:            bytes,
		VersionCounter:   e.VersionCounter,
		MigrationLineage: append([]int{}, e.MigrationLineage...),
	}, nil
}
