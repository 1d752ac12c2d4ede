package storage

import (
	"bytes"
	"testing"

	"github.com/pandagen/kernel/core"
)

func TestMigratorAppliesChainAndRejectsDowngrade(t *testing.T) {
	m := NewMigrator()
	m.Register(1, func(in []byte) ([]byte, *core.KernelError) { return append(in, '1'), nil })
	m.Register(2, func(in []byte) ([]byte, *core.KernelError) { return append(in, '2'), nil })

	out, lineage, err := m.Migrate([]byte("v"), 1, 3)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !bytes.Equal(out, []byte("v12")) {
		t.Fatalf("expected v12, got %q", out)
	}
	if len(lineage) != 3 || lineage[0] != 1 || lineage[2] != 3 {
		t.Fatalf("unexpected lineage: %v", lineage)
	}

	if _, _, err := m.Migrate([]byte("v"), 3, 1); err == nil {
		t.Fatal("expected downgrade rejection")
	}
}
