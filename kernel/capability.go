package kernel

import (
	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/policy"
)

// Grant mints a capability of kind owned by task's execution, optionally
// leased, on behalf of caller (spec §4.C "grant"/"grant_with_lease",
// syscall.Dispatcher's single Grant method folds both into one call
// gated by leaseTicks == 0). The capability names no specific resource;
// captable.GrantForTarget is used internally wherever a kind needs to name
// one exact channel or region.
func (k *SimKernel) Grant(caller core.ExecutionId, task core.TaskId, kind core.CapKind, leaseTicks uint64) (core.CapId, *core.KernelError) {
	k.mu.Lock()
	defer k.mu.Unlock()

	t, ok := k.tasks[task]
	if !ok {
		return core.CapId{}, core.TargetUnknown()
	}
	now := k.timer.PollTicks()
	if leaseTicks == 0 {
		return k.caps.Grant(now, t.exec, kind), nil
	}
	return k.caps.GrantWithLease(now, t.exec, kind, now+core.Tick(leaseTicks)), nil
}

// DelegateCapability transfers capId from `from` to `to`, enforcing
// policy at the second "at minimum" point (spec §4.I). Move-only: after
// this call, `from` gets TransferredAway on any further use (spec §4.C).
func (k *SimKernel) DelegateCapability(capId core.CapId, from, to core.ExecutionId) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.timer.PollTicks()
	if err := k.pol.Enforce(policy.Context{Event: policy.OnCapabilityDelegate, Exec: from, Target: to.String(), Now: now}); err != nil {
		return err
	}
	// Only a Shared-backed region may be shared across address spaces;
	// delegating the cap of any other region is refused before ownership
	// moves.
	if kind, ok := k.caps.Kind(capId); ok && kind == core.CapKindMemoryRegion {
		if target, ok := k.caps.Target(capId); ok {
			for region := range k.regionCaps {
				if region.String() != target {
					continue
				}
				if backing, ok := k.mem.RegionBacking(region); ok && backing != core.BackingShared {
					return core.PermissionDenied("only Shared-backed regions may be delegated")
				}
			}
		}
	}
	if err := k.caps.Delegate(now, capId, from, to); err != nil {
		return err
	}
	// A MemoryRegionCap is the only capability whose delegation also
	// moves which address space may reach the underlying resource
	// (spec §4.E "Sharing": delegate the cap, the region follows).
	if kind, ok := k.caps.Kind(capId); ok && kind == core.CapKindMemoryRegion {
		if target, ok := k.caps.Target(capId); ok && target != "" {
			k.delegateRegionLocked(target, to)
		}
	}
	return nil
}

// DropCapability releases caller's own hold on capId.
func (k *SimKernel) DropCapability(capId core.CapId, owner core.ExecutionId) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.caps.Drop(k.timer.PollTicks(), capId, owner)
}

// RevokeCapability immediately invalidates capId regardless of owner.
func (k *SimKernel) RevokeCapability(capId core.CapId) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.caps.Revoke(k.timer.PollTicks(), capId)
}

// ValidateCapability checks that capId is Valid and owned by holder.
func (k *SimKernel) ValidateCapability(capId core.CapId, holder core.ExecutionId) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.caps.Validate(k.timer.PollTicks(), capId, holder)
}
