// Package captable implements the capability table and its audit log
// (spec §4.C): ownership, lifecycle, lease expiry, and revocation for
// every capability in a kernel instance. It is the single source of
// truth for authority — no other package may mint a CapId.
package captable

import (
	"sync"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/klog"
)

type entry struct {
	id        core.CapId
	owner     core.ExecutionId
	kind      core.CapKind
	target    string // the specific resource this cap names, e.g. a ChannelId.String(); empty for kind-only caps (Task)
	status    core.CapStatus
	revoked   bool
	leased    bool
	expiresAt core.Tick
	expired   bool // latched once observed expired; see SPEC_FULL.md lease note
	grantor   core.ExecutionId
}

// Table is the capability table for one kernel instance. Zero value is
// not usable; construct with New.
type Table struct {
	mu      sync.Mutex
	entries map[core.CapId]*entry
	audit   *Audit
	log     *klog.Logger
}

// New returns an empty capability table.
func New() *Table {
	return &Table{
		entries: make(map[core.CapId]*entry),
		audit:   newAudit(),
		log:     klog.NewDiscard(),
	}
}

// SetLogger routes the table's lifecycle events to l instead of
// discarding them; kernel assembly calls this once at construction.
func (t *Table) SetLogger(l *klog.Logger) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log = l
}

// Audit exposes the append-only lifecycle log for tests and replay
// tooling (spec §4.C).
func (t *Table) Audit() *Audit { return t.audit }

// Grant mints a fresh capability owned by owner, with no lease and no
// specific resource target (used for kind-only caps such as Task).
func (t *Table) Grant(now core.Tick, owner core.ExecutionId, kind core.CapKind) core.CapId {
	return t.grant(now, owner, kind, "", false, 0)
}

// GrantForTarget mints a fresh capability naming a specific resource
// (spec §4.C: a capability grants authority over one object, not a
// whole kind of object) — target is typically a ChannelId, MemoryRegionId,
// or AddressSpaceId rendered with .String().
func (t *Table) GrantForTarget(now core.Tick, owner core.ExecutionId, kind core.CapKind, target string) core.CapId {
	return t.grant(now, owner, kind, target, false, 0)
}

// GrantWithLease mints a fresh capability that becomes invalid once
// ExpireLeases observes now_tick >= expiresAt.
func (t *Table) GrantWithLease(now core.Tick, owner core.ExecutionId, kind core.CapKind, expiresAt core.Tick) core.CapId {
	return t.grant(now, owner, kind, "", true, expiresAt)
}

// GrantWithLeaseForTarget combines GrantForTarget and GrantWithLease.
func (t *Table) GrantWithLeaseForTarget(now core.Tick, owner core.ExecutionId, kind core.CapKind, target string, expiresAt core.Tick) core.CapId {
	return t.grant(now, owner, kind, target, true, expiresAt)
}

func (t *Table) grant(now core.Tick, owner core.ExecutionId, kind core.CapKind, target string, leased bool, expiresAt core.Tick) core.CapId {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := core.NewCapId()
	t.entries[id] = &entry{
		id:        id,
		owner:     owner,
		kind:      kind,
		target:    target,
		status:    core.CapValid,
		leased:    leased,
		expiresAt: expiresAt,
	}
	t.audit.append(now, Event{Kind: Granted, CapId: id, Owner: owner})
	return id
}

// Delegate transfers ownership of capId from `from` to `to`. Fails if
// from is not the current owner or the capability is not Valid.
func (t *Table) Delegate(now core.Tick, capId core.CapId, from, to core.ExecutionId) *core.KernelError {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[capId]
	if !ok {
		t.audit.append(now, Event{Kind: InvalidUseAttempt, CapId: capId, Owner: from, Reason: core.ReasonNeverGranted})
		return core.InvalidCapability(core.ReasonNeverGranted)
	}
	if reason, bad := t.invalidReason(now, e); bad {
		t.audit.append(now, Event{Kind: InvalidUseAttempt, CapId: capId, Owner: from, Reason: reason})
		return core.InvalidCapability(reason)
	}
	if e.owner != from {
		reason := core.ReasonTypeMismatch
		if e.status == core.CapTransferred {
			reason = core.ReasonTransferredAway
		}
		t.audit.append(now, Event{Kind: InvalidUseAttempt, CapId: capId, Owner: from, Reason: reason})
		return core.InvalidCapability(reason)
	}
	e.owner = to
	e.grantor = from
	e.status = core.CapTransferred
	t.audit.append(now, Event{Kind: Delegated, CapId: capId, From: from, To: to})
	t.log.Debug("captable", "delegated cap %s from %s to %s", capId, from, to)
	return nil
}

// Drop releases owner's hold on capId. The capability becomes Invalid;
// any later operation on it returns NeverGranted (spec §4.C).
func (t *Table) Drop(now core.Tick, capId core.CapId, owner core.ExecutionId) *core.KernelError {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[capId]
	if !ok {
		return core.InvalidCapability(core.ReasonNeverGranted)
	}
	if e.status != core.CapValid {
		return core.InvalidCapability(core.ReasonNeverGranted)
	}
	if e.owner != owner {
		return core.InvalidCapability(core.ReasonTypeMismatch)
	}
	delete(t.entries, capId)
	t.audit.append(now, Event{Kind: Dropped, CapId: capId, Owner: owner})
	return nil
}

// Revoke immediately invalidates capId regardless of owner.
func (t *Table) Revoke(now core.Tick, capId core.CapId) *core.KernelError {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[capId]
	if !ok {
		return core.InvalidCapability(core.ReasonNeverGranted)
	}
	e.status = core.CapInvalid
	e.revoked = true
	t.audit.append(now, Event{Kind: Revoked, CapId: capId, Owner: e.owner})
	t.log.Debug("captable", "revoked cap %s owned by %s", capId, e.owner)
	return nil
}

// Validate checks that capId is Valid and currently owned by holder.
func (t *Table) Validate(now core.Tick, capId core.CapId, holder core.ExecutionId) *core.KernelError {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[capId]
	if !ok {
		return core.InvalidCapability(core.ReasonNeverGranted)
	}
	if reason, bad := t.invalidReason(now, e); bad {
		t.audit.append(now, Event{Kind: InvalidUseAttempt, CapId: capId, Owner: holder, Reason: reason})
		return core.InvalidCapability(reason)
	}
	if e.owner != holder {
		t.audit.append(now, Event{Kind: InvalidUseAttempt, CapId: capId, Owner: holder, Reason: core.ReasonTransferredAway})
		return core.InvalidCapability(core.ReasonTransferredAway)
	}
	return nil
}

// Kind returns the capability kind, used by callers that need to
// distinguish e.g. send vs receive channel caps after Validate succeeds.
func (t *Table) Kind(capId core.CapId) (core.CapKind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[capId]
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// Target returns the specific resource capId names (a ChannelId,
// MemoryRegionId, or AddressSpaceId rendered as a string), empty for
// kind-only caps.
func (t *Table) Target(capId core.CapId) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[capId]
	if !ok {
		return "", false
	}
	return e.target, true
}

// ValidateTarget validates capId the same way Validate does, and in
// addition requires it to name kind and target exactly — the gate kernel
// assembly calls this before any operation scoped to one specific
// channel or region, so holding a capability for the wrong resource
// never reaches the resource's own permission check (spec §4.E
// invariant 4, §4.D "access gated by channel capability").
func (t *Table) ValidateTarget(now core.Tick, capId core.CapId, holder core.ExecutionId, kind core.CapKind, target string) *core.KernelError {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[capId]
	if !ok {
		return core.InvalidCapability(core.ReasonNeverGranted)
	}
	if reason, bad := t.invalidReason(now, e); bad {
		t.audit.append(now, Event{Kind: InvalidUseAttempt, CapId: capId, Owner: holder, Reason: reason})
		return core.InvalidCapability(reason)
	}
	if e.owner != holder {
		t.audit.append(now, Event{Kind: InvalidUseAttempt, CapId: capId, Owner: holder, Reason: core.ReasonTransferredAway})
		return core.InvalidCapability(core.ReasonTransferredAway)
	}
	if e.kind != kind || e.target != target {
		t.audit.append(now, Event{Kind: InvalidUseAttempt, CapId: capId, Owner: holder, Reason: core.ReasonTypeMismatch})
		return core.InvalidCapability(core.ReasonTypeMismatch)
	}
	return nil
}

// invalidReason reports whether e is currently invalid and why, without
// mutating state except for latching lease expiry (see SPEC_FULL.md:
// lease expiry is observed once and then remembered, never
// re-evaluated against a regressed `now`).
func (t *Table) invalidReason(now core.Tick, e *entry) (core.InvalidCapabilityReason, bool) {
	if e.revoked {
		return core.ReasonRevoked, true
	}
	if e.expired || (e.leased && now >= e.expiresAt) {
		e.expired = true
		return core.ReasonLeaseExpired, true
	}
	if e.status == core.CapInvalid {
		return core.ReasonOwnerDead, true
	}
	return 0, false
}

// OnTaskTermination invalidates every capability owned by execution,
// emitting one OwnerDied audit event per capability (spec §4.C).
func (t *Table) OnTaskTermination(now core.Tick, execution core.ExecutionId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.entries {
		if e.owner == execution && e.status != core.CapInvalid {
			e.status = core.CapInvalid
			t.audit.append(now, Event{Kind: OwnerDied, CapId: id, Owner: execution})
		}
	}
}

// ExpireLeases invalidates every capability whose lease has expired as
// of nowTick, emitting a LeaseExpired event for each.
func (t *Table) ExpireLeases(nowTick core.Tick) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.entries {
		if e.leased && !e.expired && nowTick >= e.expiresAt && e.status != core.CapInvalid {
			e.expired = true
			t.audit.append(nowTick, Event{Kind: LeaseExpired, CapId: id, Owner: e.owner})
		}
	}
}
