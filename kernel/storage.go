package kernel

import (
	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/storage"
)

// BeginTx opens a new write-ahead transaction (spec §6 "begin_tx").
func (k *SimKernel) BeginTx() storage.TxId { return k.store.Begin() }

// WriteObject stages bytes for objectId inside tx (spec §6 "write(tx,
// object_id, bytes)").
func (k *SimKernel) WriteObject(tx storage.TxId, objectId core.ObjectId, schemaId string, schemaVersion int, bytes []byte) *core.KernelError {
	return k.store.Write(tx, objectId, schemaId, schemaVersion, bytes)
}

// ReadObject returns objectId's latest committed bytes, or tx's own
// pending write if staged (spec §6 "read(tx, object_id) -> bytes").
func (k *SimKernel) ReadObject(tx storage.TxId, objectId core.ObjectId) ([]byte, *core.KernelError) {
	return k.store.Read(tx, objectId)
}

// CommitTx makes every pending write in tx visible atomically (spec §6
// "commit(tx)").
func (k *SimKernel) CommitTx(tx storage.TxId) *core.KernelError { return k.store.Commit(tx) }

// RollbackTx discards tx's pending writes (spec §6 "rollback(tx)").
func (k *SimKernel) RollbackTx(tx storage.TxId) *core.KernelError { return k.store.Rollback(tx) }
