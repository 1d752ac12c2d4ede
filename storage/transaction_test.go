package storage

import (
	"bytes"
	"testing"

	"github.com/pandagen/kernel/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dev := NewRamDisk(64, 512)
	s, err := Open(dev)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func TestWriteReadWithinSameTx(t *testing.T) {
	s := newTestStore(t)
	obj := core.NewObjectId()
	tx := s.Begin()
	payload := []byte("hello pandagen")
	if err := s.Write(tx, obj, "greeting", 1, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := s.Read(tx, obj)
	if err != nil {
		t.Fatalf("read within tx: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected %q, got %q", payload, got)
	}
}

func TestCommitThenReadInNewTx(t *testing.T) {
	s := newTestStore(t)
	obj := core.NewObjectId()
	tx := s.Begin()
	payload := []byte("persisted across transactions")
	if err := s.Write(tx, obj, "greeting", 1, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx2 := s.Begin()
	got, err := s.Read(tx2, obj)
	if err != nil {
		t.Fatalf("read after commit: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected %q, got %q", payload, got)
	}
}

func TestDoubleCommitIsInvalidState(t *testing.T) {
	s := newTestStore(t)
	tx := s.Begin()
	if err := s.Commit(tx); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	err := s.Commit(tx)
	if err == nil || err.Kind != core.ErrStorageError {
		t.Fatalf("expected StorageError on double commit, got %v", err)
	}
}

func TestRollbackLeavesNoSideEffect(t *testing.T) {
	s := newTestStore(t)
	obj := core.NewObjectId()
	tx := s.Begin()
	if err := s.Write(tx, obj, "greeting", 1, []byte("never committed")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Rollback(tx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	tx2 := s.Begin()
	if _, err := s.Read(tx2, obj); err == nil || err.Kind != core.ErrTargetUnknown {
		t.Fatalf("expected TargetUnknown after rollback, got %v", err)
	}

	if err := s.Write(tx, obj, "greeting", 1, []byte("too late")); err == nil {
		t.Fatal("expected StorageError writing to a rolled-back transaction")
	}
}

func TestRemountRebuildsAllocatorFromDirectoryOnly(t *testing.T) {
	dev := NewRamDisk(64, 512)
	s, err := Open(dev)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	obj := core.NewObjectId()
	tx := s.Begin()
	s.Write(tx, obj, "greeting", 1, []byte("durable"))
	if err := s.Commit(tx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	s2, err := Open(dev)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	tx2 := s2.Begin()
	got, rerr := s2.Read(tx2, obj)
	if rerr != nil {
		t.Fatalf("read after remount: %v", rerr)
	}
	if string(got) != "durable" {
		t.Fatalf("expected durable bytes after remount, got %q", got)
	}

	// A block already owned by the committed object must not be handed
	// out again to a fresh allocation (spec §9 Open Question c).
	obj2 := core.NewObjectId()
	tx3 := s2.Begin()
	s2.Write(tx3, obj2, "greeting", 1, []byte("more data"))
	if err := s2.Commit(tx3); err != nil {
		t.Fatalf("commit obj2: %v", err)
	}
	v1, _ := s2.GetObject(obj)
	if string(v1.Bytes) != "durable" {
		t.Fatalf("obj1 must be undisturbed by obj2's allocation, got %q", v1.Bytes)
	}
}
