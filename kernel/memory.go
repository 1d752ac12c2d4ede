package kernel

import "github.com/pandagen/kernel/core"

// CreateAddressSpace allocates a fresh, empty address space for caller
// and grants caller an AddressSpaceCap naming it (spec §4.E
// "create_space(exec_id) -> AddressSpaceCap").
func (k *SimKernel) CreateAddressSpace(caller core.ExecutionId) (core.AddressSpaceId, *core.KernelError) {
	k.mu.Lock()
	defer k.mu.Unlock()
	space := k.mem.CreateSpace(caller)
	k.caps.GrantForTarget(k.timer.PollTicks(), caller, core.CapKindAddressSpace, space.String())
	return space, nil
}

// AllocateRegion allocates a region inside space and grants caller a
// MemoryRegionCap naming it (spec §4.E "allocate_region(...) ->
// MemoryRegionCap"). The region id itself carries no authority; only
// possession of the minted cap (returned via RegionCap) does, per
// invariant 4 "cross-space access without explicit delegation is
// denied even if the caller holds the space cap".
func (k *SimKernel) AllocateRegion(caller core.ExecutionId, space core.AddressSpaceId, base, size uint64, perms core.Permission, backing core.Backing) (core.MemoryRegionId, *core.KernelError) {
	k.mu.Lock()
	defer k.mu.Unlock()
	region, err := k.mem.AllocateRegion(space, base, size, perms, backing, caller)
	if err != nil {
		return core.MemoryRegionId{}, err
	}
	capId := k.caps.GrantForTarget(k.timer.PollTicks(), caller, core.CapKindMemoryRegion, region.String())
	k.regionCaps[region] = capId
	return region, nil
}

// RegionCap reports the MemoryRegionCap minted for region at allocation
// time, for callers that need to delegate sharing explicitly (spec
// §4.E "Sharing").
func (k *SimKernel) RegionCap(region core.MemoryRegionId) (core.CapId, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	id, ok := k.regionCaps[region]
	return id, ok
}

// AccessRegion succeeds only if caller currently holds the capability
// naming this exact region (spec §4.E invariant 4) and the requested
// access is a subset of the region's permissions (invariant 2).
func (k *SimKernel) AccessRegion(caller core.ExecutionId, region core.MemoryRegionId, access core.Permission) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	capId, ok := k.regionCaps[region]
	if !ok {
		return core.TargetUnknown()
	}
	now := k.timer.PollTicks()
	if err := k.caps.ValidateTarget(now, capId, caller, core.CapKindMemoryRegion, region.String()); err != nil {
		return err
	}
	return k.mem.AccessRegion(region, access)
}

// delegateRegionLocked is called by DelegateCapability once the
// capability table has already moved ownership of the region's cap; it
// moves the region itself into the new owner's space so the two stay
// consistent (spec §4.E "Sharing": delegating the cap is the only
// approved path to cross-space access).
func (k *SimKernel) delegateRegionLocked(regionStr string, to core.ExecutionId) {
	for region, capId := range k.regionCaps {
		if region.String() != regionStr {
			continue
		}
		toSpace, ok := k.mem.SpaceOf(to)
		if !ok {
			return
		}
		_ = k.mem.DelegateRegion(region, toSpace)
		k.regionCaps[region] = capId
		return
	}
}

// ActivateSpace records a logical activation of caller's address space
// (spec §4.E "activate_space"; no effect beyond bookkeeping here).
func (k *SimKernel) ActivateSpace(caller core.ExecutionId) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.mem.ActivateSpace(caller)
}

// DestroySpace frees execution's address space outside of termination,
// for callers that want to release memory without ending the task
// (spec §6 "destroy_space").
func (k *SimKernel) DestroySpace(execution core.ExecutionId) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.mem.DestroySpace(execution)
}
