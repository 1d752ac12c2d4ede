package captable

import (
	"testing"

	"github.com/pandagen/kernel/core"
)

func TestDelegateInvalidatesOldOwner(t *testing.T) {
	tbl := New()
	a := core.NewExecutionId()
	b := core.NewExecutionId()
	c := tbl.Grant(0, a, core.CapKindChannelSend)

	if err := tbl.Delegate(1, c, a, b); err != nil {
		t.Fatalf("delegate: %v", err)
	}
	if err := tbl.Validate(2, c, a); err == nil || err.CapReason != core.ReasonTransferredAway {
		t.Fatalf("expected TransferredAway for old owner, got %v", err)
	}
	if err := tbl.Validate(2, c, b); err != nil {
		t.Fatalf("new owner should validate: %v", err)
	}
}

func TestTerminationInvalidatesCaps(t *testing.T) {
	tbl := New()
	a := core.NewExecutionId()
	c := tbl.Grant(0, a, core.CapKindTask)
	tbl.OnTaskTermination(5, a)
	err := tbl.Validate(5, c, a)
	if err == nil || err.CapReason != core.ReasonOwnerDead {
		t.Fatalf("expected OwnerDead, got %v", err)
	}
}

func TestDoubleDropFails(t *testing.T) {
	tbl := New()
	a := core.NewExecutionId()
	c := tbl.Grant(0, a, core.CapKindTask)
	if err := tbl.Drop(1, c, a); err != nil {
		t.Fatalf("first drop: %v", err)
	}
	err := tbl.Drop(2, c, a)
	if err == nil || err.CapReason != core.ReasonNeverGranted {
		t.Fatalf("expected NeverGranted on second drop, got %v", err)
	}
}

func TestLeaseExpiry(t *testing.T) {
	tbl := New()
	a := core.NewExecutionId()
	c := tbl.GrantWithLease(0, a, core.CapKindTask, 100)

	if err := tbl.Validate(99, c, a); err != nil {
		t.Fatalf("expected valid at tick 99: %v", err)
	}
	tbl.ExpireLeases(100)
	err := tbl.Validate(100, c, a)
	if err == nil || err.CapReason != core.ReasonLeaseExpired {
		t.Fatalf("expected LeaseExpired, got %v", err)
	}

	found := false
	for _, ev := range tbl.Audit().Events() {
		if ev.Kind == LeaseExpired {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a LeaseExpired audit event")
	}
}

func TestValidateTargetRejectsWrongResource(t *testing.T) {
	tbl := New()
	a := core.NewExecutionId()
	c := tbl.GrantForTarget(0, a, core.CapKindChannelSend, "channel-1")

	if err := tbl.ValidateTarget(1, c, a, core.CapKindChannelSend, "channel-1"); err != nil {
		t.Fatalf("expected matching target to validate: %v", err)
	}
	err := tbl.ValidateTarget(1, c, a, core.CapKindChannelSend, "channel-2")
	if err == nil || err.CapReason != core.ReasonTypeMismatch {
		t.Fatalf("expected TypeMismatch for wrong target, got %v", err)
	}
}

func TestRevokeIsImmediate(t *testing.T) {
	tbl := New()
	a := core.NewExecutionId()
	c := tbl.Grant(0, a, core.CapKindTask)
	if err := tbl.Revoke(1, c); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := tbl.Validate(1, c, a); err == nil || err.CapReason != core.ReasonRevoked {
		t.Fatalf("expected Revoked, got %v", err)
	}
}
