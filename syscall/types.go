// Package syscall implements the kernel's single user-facing entry
// point (spec §4.H): a typed tagged-union Syscall, a Gate that
// validates the caller and dispatches to a kernel implementation, and
// an optional websocket-fronted wire codec. This is
// github.com/pandagen/kernel/syscall, not the standard library
// package — nothing here touches the host OS.
package syscall

import (
	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/ipc"
)

// Kind discriminates a Syscall's tag (spec §4.H "Syscall is a tagged
// union").
type Kind int

const (
	KindSpawnTask Kind = iota
	KindCreateChannel
	KindSend
	KindRecv
	KindSleep
	KindNow
	KindYield
	KindGrant
	KindCreateAddressSpace
	KindAllocateRegion
	KindAccessRegion
	KindRegisterService
	KindLookupService
)

func (k Kind) String() string {
	switch k {
	case KindSpawnTask:
		return "SpawnTask"
	case KindCreateChannel:
		return "CreateChannel"
	case KindSend:
		return "Send"
	case KindRecv:
		return "Recv"
	case KindSleep:
		return "Sleep"
	case KindNow:
		return "Now"
	case KindYield:
		return "Yield"
	case KindGrant:
		return "Grant"
	case KindCreateAddressSpace:
		return "CreateAddressSpace"
	case KindAllocateRegion:
		return "AllocateRegion"
	case KindAccessRegion:
		return "AccessRegion"
	case KindRegisterService:
		return "RegisterService"
	case KindLookupService:
		return "LookupService"
	default:
		return "Unknown"
	}
}

// Syscall is the single typed request shape the gate accepts (spec
// §4.H). Like KernelError, one struct carries every kind's payload;
// Kind says which fields are meaningful. This keeps the wire codec and
// the audit log working against one concrete type instead of an
// interface requiring type assertions at every hop.
type Syscall struct {
	Kind Kind

	// SpawnTask
	Identity core.Identity
	Budget   core.Budget

	// CreateChannel
	Capacity       int
	AllowedSenders []core.ExecutionId
	SchemaPolicy   ipc.SchemaPolicy

	// Send / Recv
	Channel  core.ChannelId
	Envelope ipc.Envelope

	// Sleep
	Ticks uint64

	// Grant
	Task       core.TaskId
	CapKind    core.CapKind
	TargetName string
	Perms      core.Permission
	LeaseTicks uint64

	// CreateAddressSpace / AllocateRegion / AccessRegion
	Space   core.AddressSpaceId
	Base    uint64
	Size    uint64
	Access  core.Permission
	Backing core.Backing
	Region  core.MemoryRegionId

	// RegisterService / LookupService
	Service core.ServiceId
}

// Response is the gate's typed reply (spec §4.H "Result<SyscallResponse,
// KernelError>"). Only the field(s) relevant to the originating Kind
// are populated.
type Response struct {
	TaskId  core.TaskId
	Channel core.ChannelId
	Cap     core.CapId
	Space   core.AddressSpaceId
	Region  core.MemoryRegionId
	Now     core.Tick
	Envelope ipc.Envelope
	Received bool
	Service  core.ServiceId
}

// AuditEntry records one gate invocation in full (spec §4.H "Every
// invocation, completion, and rejection is audited with (tick, caller,
// syscall_tag, outcome)").
type AuditEntry struct {
	Seq    uint64
	Tick   core.Tick
	Caller core.ExecutionId
	Tag    Kind
	Err    *core.KernelError
}
