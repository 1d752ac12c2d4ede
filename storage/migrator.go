package storage

import (
	"fmt"

	"github.com/pandagen/kernel/core"
)

// Transform is one pure v_i -> v_{i+1} schema migration step (spec
// §4.G "A Migrator abstraction applies a pure sequence of v_i -> v_i+1
// transforms").
type Transform func(in []byte) ([]byte, *core.KernelError)

// Migrator chains Transforms indexed by source schema version.
type Migrator struct {
	steps map[int]Transform
}

// NewMigrator returns an empty migrator; register steps with Register.
func NewMigrator() *Migrator { return &Migrator{steps: make(map[int]Transform)} }

// Register adds the transform taking schema version `from` to
// `from + 1`. Registering the same `from` twice overwrites the prior
// step, matching a pure function table rather than an ordered pipeline.
func (m *Migrator) Register(from int, t Transform) {
	m.steps[from] = t
}

// Migrate applies each registered transform in order from fromVersion
// up to toVersion, returning the transformed bytes and the lineage of
// versions actually visited. Downgrades are rejected (spec §4.G
// "downgrades are rejected"): toVersion must be >= fromVersion.
func (m *Migrator) Migrate(bytes []byte, fromVersion, toVersion int) ([]byte, []int, *core.KernelError) {
	if toVersion < fromVersion {
		return nil, nil, core.StorageError(fmt.Sprintf("migration downgrade rejected: %d -> %d", fromVersion, toVersion))
	}
	lineage := []int{fromVersion}
	cur := bytes
	for v := fromVersion; v < toVersion; v++ {
		step, ok := m.steps[v]
		if !ok {
			return nil, nil, core.StorageError(fmt.Sprintf("no migration registered from schema version %d", v))
		}
		next, err := step(cur)
		if err != nil {
			return nil, nil, err
		}
		cur = next
		lineage = append(lineage, v+1)
	}
	return cur, lineage, nil
}
