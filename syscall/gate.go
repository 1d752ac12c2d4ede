package syscall

import (
	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/ipc"
)

// Dispatcher is every operation the gate can route a Syscall to. A
// kernel.SimKernel satisfies this structurally; the gate never imports
// package kernel, keeping the dependency direction the same as every
// other layer-on-top-of-core-types relationship in this tree.
type Dispatcher interface {
	SpawnTask(identity core.Identity, budget core.Budget) (core.TaskId, *core.KernelError)
	CreateChannel(capacity int, allowedSenders []core.ExecutionId, policy ipc.SchemaPolicy) (core.ChannelId, *core.KernelError)
	Send(caller core.ExecutionId, channel core.ChannelId, env ipc.Envelope) *core.KernelError
	Recv(caller core.ExecutionId, channel core.ChannelId) (ipc.Envelope, bool, *core.KernelError)
	Sleep(caller core.ExecutionId, ticks uint64) *core.KernelError
	Now() core.Tick
	Yield(caller core.ExecutionId) *core.KernelError
	Grant(caller core.ExecutionId, task core.TaskId, kind core.CapKind, leaseTicks uint64) (core.CapId, *core.KernelError)
	CreateAddressSpace(caller core.ExecutionId) (core.AddressSpaceId, *core.KernelError)
	AllocateRegion(caller core.ExecutionId, space core.AddressSpaceId, base, size uint64, perms core.Permission, backing core.Backing) (core.MemoryRegionId, *core.KernelError)
	AccessRegion(caller core.ExecutionId, region core.MemoryRegionId, access core.Permission) *core.KernelError
	RegisterService(caller core.ExecutionId, service core.ServiceId, channel core.ChannelId) *core.KernelError
	LookupService(caller core.ExecutionId, service core.ServiceId) (core.ChannelId, *core.KernelError)
}

// Gate is the sole user-to-kernel entry point (spec §4.H). It requires
// a caller identity, dispatches by Kind, and audits every invocation
// regardless of outcome.
type Gate struct {
	d     Dispatcher
	audit []AuditEntry
	seq   uint64
}

// NewGate wraps a Dispatcher (normally a *kernel.SimKernel) in the
// typed syscall boundary.
func NewGate(d Dispatcher) *Gate { return &Gate{d: d} }

// Execute validates caller and dispatches call, auditing the outcome
// whether it succeeds or fails (spec §4.H "Every invocation, completion,
// and rejection is audited").
func (g *Gate) Execute(caller core.ExecutionId, call Syscall) (Response, *core.KernelError) {
	if caller.IsNil() {
		err := core.PermissionDenied("syscall requires a caller identity")
		g.record(caller, call.Kind, err)
		return Response{}, err
	}

	resp, err := g.dispatch(caller, call)
	g.record(caller, call.Kind, err)
	return resp, err
}

func (g *Gate) dispatch(caller core.ExecutionId, call Syscall) (Response, *core.KernelError) {
	switch call.Kind {
	case KindSpawnTask:
		id, err := g.d.SpawnTask(call.Identity, call.Budget)
		return Response{TaskId: id}, err
	case KindCreateChannel:
		id, err := g.d.CreateChannel(call.Capacity, call.AllowedSenders, call.SchemaPolicy)
		return Response{Channel: id}, err
	case KindSend:
		err := g.d.Send(caller, call.Channel, call.Envelope)
		return Response{}, err
	case KindRecv:
		env, ok, err := g.d.Recv(caller, call.Channel)
		return Response{Envelope: env, Received: ok}, err
	case KindSleep:
		err := g.d.Sleep(caller, call.Ticks)
		return Response{}, err
	case KindNow:
		return Response{Now: g.d.Now()}, nil
	case KindYield:
		err := g.d.Yield(caller)
		return Response{}, err
	case KindGrant:
		id, err := g.d.Grant(caller, call.Task, call.CapKind, call.LeaseTicks)
		return Response{Cap: id}, err
	case KindCreateAddressSpace:
		id, err := g.d.CreateAddressSpace(caller)
		return Response{Space: id}, err
	case KindAllocateRegion:
		id, err := g.d.AllocateRegion(caller, call.Space, call.Base, call.Size, call.Perms, call.Backing)
		return Response{Region: id}, err
	case KindAccessRegion:
		err := g.d.AccessRegion(caller, call.Region, call.Access)
		return Response{}, err
	case KindRegisterService:
		err := g.d.RegisterService(caller, call.Service, call.Channel)
		return Response{}, err
	case KindLookupService:
		ch, err := g.d.LookupService(caller, call.Service)
		return Response{Channel: ch}, err
	default:
		return Response{}, core.PermissionDenied("unknown syscall kind")
	}
}

func (g *Gate) record(caller core.ExecutionId, tag Kind, err *core.KernelError) {
	g.seq++
	g.audit = append(g.audit, AuditEntry{Seq: g.seq, Tick: g.d.Now(), Caller: caller, Tag: tag, Err: err})
}

// Audit returns a snapshot of every recorded invocation.
func (g *Gate) Audit() []AuditEntry {
	out := make([]AuditEntry, len(g.audit))
	copy(out, g.audit)
	return out
}
