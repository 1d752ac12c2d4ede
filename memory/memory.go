// Package memory implements the address-space manager of spec §4.E:
// per-task spaces, non-overlapping regions, permission checks, and
// 4 KiB-page budget accounting. Grounded on the teacher's chancacher
// package, which tracks a byte budget across overflowing channels
// (filecounter.go) — generalized here from bytes to pages and from a
// single counter to per-ExecutionId budgets.
package memory

import (
	"sync"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/klog"
)

type region struct {
	id      core.MemoryRegionId
	spaceId core.AddressSpaceId
	base    uint64
	size    uint64
	perms   core.Permission
	backing core.Backing
}

type space struct {
	id      core.AddressSpaceId
	owner   core.ExecutionId
	regions map[core.MemoryRegionId]*region
	active  bool
}

// Manager owns every address space in a kernel instance.
type Manager struct {
	mu      sync.Mutex
	spaces  map[core.AddressSpaceId]*space
	byOwner map[core.ExecutionId]core.AddressSpaceId
	budgets map[core.ExecutionId]uint64 // remaining MemoryUnits (pages)
	log     *klog.Logger
}

// NewManager returns an empty manager. An ExecutionId has no MemoryUnits
// available until SetBudget is called for it.
func NewManager() *Manager {
	return &Manager{
		spaces:  make(map[core.AddressSpaceId]*space),
		byOwner: make(map[core.ExecutionId]core.AddressSpaceId),
		budgets: make(map[core.ExecutionId]uint64),
		log:     klog.NewDiscard(),
	}
}

// SetLogger routes budget-exhaustion events to l.
func (m *Manager) SetLogger(l *klog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = l
}

// SetBudget fixes the page budget available to owner. Called once at
// task spawn by the kernel assembly layer.
func (m *Manager) SetBudget(owner core.ExecutionId, pages uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budgets[owner] = pages
}

// RemainingBudget reports how many MemoryUnits owner has left.
func (m *Manager) RemainingBudget(owner core.ExecutionId) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.budgets[owner]
}

// CreateSpace allocates a fresh, empty address space owned by exec.
func (m *Manager) CreateSpace(exec core.ExecutionId) core.AddressSpaceId {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := core.NewAddressSpaceId()
	m.spaces[id] = &space{id: id, owner: exec, regions: make(map[core.MemoryRegionId]*region)}
	m.byOwner[exec] = id
	return id
}

// AllocateRegion allocates a non-overlapping region of size bytes with
// the given permissions/backing inside spaceId, charging
// ceil(size/4096) pages against caller's budget (spec §4.E invariants
// 1 and 3). caller must own the address space.
func (m *Manager) AllocateRegion(spaceId core.AddressSpaceId, base, size uint64, perms core.Permission, backing core.Backing, caller core.ExecutionId) (core.MemoryRegionId, *core.KernelError) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sp, ok := m.spaces[spaceId]
	if !ok {
		return core.MemoryRegionId{}, core.TargetUnknown()
	}
	if sp.owner != caller {
		return core.MemoryRegionId{}, core.PermissionDenied("caller does not own address space")
	}
	for _, r := range sp.regions {
		if overlaps(r.base, r.size, base, size) {
			return core.MemoryRegionId{}, core.PermissionDenied("region overlaps an existing region")
		}
	}

	pages := core.Pages(size)
	have := m.budgets[caller]
	if pages > have {
		m.log.Debug("memory", "budget exhausted for %s: requested %d pages, have %d", caller, pages, have)
		return core.MemoryRegionId{}, core.BudgetExhausted(core.BudgetMemoryUnits, pages, have)
	}

	id := core.NewMemoryRegionId()
	sp.regions[id] = &region{id: id, spaceId: spaceId, base: base, size: size, perms: perms, backing: backing}
	m.budgets[caller] = have - pages
	return id, nil
}

func overlaps(baseA, sizeA, baseB, sizeB uint64) bool {
	endA := baseA + sizeA
	endB := baseB + sizeB
	return baseA < endB && baseB < endA
}

// AccessRegion succeeds iff the requested access is a subset of the
// region's permissions (spec §4.E invariant 2). Authority itself —
// "caller owns the cap" — is established upstream: the kernel assembly
// layer calls captable.ValidateTarget on the specific MemoryRegionCap naming
// regionId before ever reaching here. That is also what makes invariant
// 4 hold: holding only the broader AddressSpaceCap, without a capability
// naming this exact region, never gets a caller into this method at all
// (see seed scenario 5: B gains read access only once A delegates R's
// own MemoryRegionCap, never merely by being told R's id).
func (m *Manager) AccessRegion(regionId core.MemoryRegionId, access core.Permission) *core.KernelError {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sp := range m.spaces {
		if r, ok := sp.regions[regionId]; ok {
			if !r.perms.Has(access) {
				return core.PermissionDenied("requested access exceeds region permissions")
			}
			return nil
		}
	}
	return core.TargetUnknown()
}

// ActivateSpace records a logical activation for future MMU integration
// (spec §4.E); it has no effect beyond bookkeeping in this simulation.
func (m *Manager) ActivateSpace(exec core.ExecutionId) *core.KernelError {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byOwner[exec]
	if !ok {
		return core.TargetUnknown()
	}
	m.spaces[id].active = true
	return nil
}

// DestroySpace frees every region in exec's address space (spec §3
// Region lifecycle: "invalidated on space destroy") and releases the
// space itself. Called on task termination.
func (m *Manager) DestroySpace(exec core.ExecutionId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byOwner[exec]
	if !ok {
		return
	}
	delete(m.spaces, id)
	delete(m.byOwner, exec)
}

// SpaceOf reports the address space owner currently has, for callers
// that need to resolve a delegation target's space without minting a
// new one (kernel assembly's region-delegation path).
func (m *Manager) SpaceOf(owner core.ExecutionId) (core.AddressSpaceId, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byOwner[owner]
	return id, ok
}

// RegionOwnerSpace reports which address space a region belongs to, for
// delegation bookkeeping at the kernel assembly layer.
func (m *Manager) RegionOwnerSpace(regionId core.MemoryRegionId) (core.AddressSpaceId, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sp := range m.spaces {
		if _, ok := sp.regions[regionId]; ok {
			return sp.id, true
		}
	}
	return core.AddressSpaceId{}, false
}

// DelegateRegion reassigns a region's owning space to target's space —
// the one approved sharing path for Shared-backed regions (spec §4.E
// "Sharing"). It does not check backing kind; the kernel assembly layer
// enforces that only Shared regions may be delegated, consistent with
// "Policy cannot grant authority" (§9): memory already grants nothing
// extra here, it only moves which space may address it.
func (m *Manager) DelegateRegion(regionId core.MemoryRegionId, targetSpace core.AddressSpaceId) *core.KernelError {
	m.mu.Lock()
	defer m.mu.Unlock()
	var from *space
	var r *region
	for _, sp := range m.spaces {
		if reg, ok := sp.regions[regionId]; ok {
			from = sp
			r = reg
			break
		}
	}
	if from == nil {
		return core.TargetUnknown()
	}
	to, ok := m.spaces[targetSpace]
	if !ok {
		return core.TargetUnknown()
	}
	delete(from.regions, regionId)
	r.spaceId = targetSpace
	to.regions[regionId] = r
	return nil
}

// RegionBacking reports a region's backing kind.
func (m *Manager) RegionBacking(regionId core.MemoryRegionId) (core.Backing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sp := range m.spaces {
		if r, ok := sp.regions[regionId]; ok {
			return r.backing, true
		}
	}
	return 0, false
}
