package captable

import (
	"sync"

	"github.com/pandagen/kernel/core"
)

// EventKind enumerates capability lifecycle events (spec §4.C).
type EventKind int

const (
	Granted EventKind = iota
	Delegated
	Dropped
	Revoked
	LeaseExpired
	OwnerDied
	InvalidUseAttempt
)

func (k EventKind) String() string {
	switch k {
	case Granted:
		return "Granted"
	case Delegated:
		return "Delegated"
	case Dropped:
		return "Dropped"
	case Revoked:
		return "Revoked"
	case LeaseExpired:
		return "LeaseExpired"
	case OwnerDied:
		return "OwnerDied"
	case InvalidUseAttempt:
		return "InvalidUseAttempt"
	default:
		return "Unknown"
	}
}

// Event is a single audit record, stamped with a total order (tick,
// sequence) per spec §3 "Audit event".
type Event struct {
	Tick     core.Tick
	Sequence uint64
	Kind     EventKind
	CapId    core.CapId
	Owner    core.ExecutionId
	From, To core.ExecutionId
	Reason   core.InvalidCapabilityReason
}

// Audit is an append-only, totally ordered log. It is consulted only by
// tests and replay tooling (spec §4.C, §6) — never by the kernel's own
// decision logic.
type Audit struct {
	mu     sync.Mutex
	events []Event
	seq    uint64
}

func newAudit() *Audit { return &Audit{} }

func (a *Audit) append(now core.Tick, ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	ev.Tick = now
	ev.Sequence = a.seq
	a.events = append(a.events, ev)
}

// Events returns a snapshot of the audit log in total order.
func (a *Audit) Events() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Event, len(a.events))
	copy(out, a.events)
	return out
}
