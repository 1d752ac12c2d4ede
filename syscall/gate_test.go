package syscall

import (
	"testing"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/ipc"
)

type fakeDispatcher struct {
	now        core.Tick
	spawnCalls int
}

func (f *fakeDispatcher) SpawnTask(identity core.Identity, budget core.Budget) (core.TaskId, *core.KernelError) {
	f.spawnCalls++
	return core.NewTaskId(), nil
}
func (f *fakeDispatcher) CreateChannel(capacity int, allowed []core.ExecutionId, policy ipc.SchemaPolicy) (core.ChannelId, *core.KernelError) {
	return core.NewChannelId(), nil
}
func (f *fakeDispatcher) Send(caller core.ExecutionId, channel core.ChannelId, env ipc.Envelope) *core.KernelError {
	return nil
}
func (f *fakeDispatcher) Recv(caller core.ExecutionId, channel core.ChannelId) (ipc.Envelope, bool, *core.KernelError) {
	return ipc.Envelope{}, false, nil
}
func (f *fakeDispatcher) Sleep(caller core.ExecutionId, ticks uint64) *core.KernelError { return nil }
func (f *fakeDispatcher) Now() core.Tick                                               { return f.now }
func (f *fakeDispatcher) Yield(caller core.ExecutionId) *core.KernelError              { return nil }
func (f *fakeDispatcher) Grant(caller core.ExecutionId, task core.TaskId, kind core.CapKind, lease uint64) (core.CapId, *core.KernelError) {
	return core.NewCapId(), nil
}
func (f *fakeDispatcher) CreateAddressSpace(caller core.ExecutionId) (core.AddressSpaceId, *core.KernelError) {
	return core.NewAddressSpaceId(), nil
}
func (f *fakeDispatcher) AllocateRegion(caller core.ExecutionId, space core.AddressSpaceId, base, size uint64, perms core.Permission, backing core.Backing) (core.MemoryRegionId, *core.KernelError) {
	return core.NewMemoryRegionId(), nil
}
func (f *fakeDispatcher) AccessRegion(caller core.ExecutionId, region core.MemoryRegionId, access core.Permission) *core.KernelError {
	return nil
}
func (f *fakeDispatcher) RegisterService(caller core.ExecutionId, service core.ServiceId, channel core.ChannelId) *core.KernelError {
	return nil
}
func (f *fakeDispatcher) LookupService(caller core.ExecutionId, service core.ServiceId) (core.ChannelId, *core.KernelError) {
	return core.NewChannelId(), nil
}

func TestGateRejectsNilCaller(t *testing.T) {
	g := NewGate(&fakeDispatcher{})
	_, err := g.Execute(core.NilExecutionId, Syscall{Kind: KindNow})
	if err == nil || err.Kind != core.ErrPermissionDenied {
		t.Fatalf("expected PermissionDenied for nil caller, got %v", err)
	}
}

func TestGateDispatchesSpawnTaskAndAudits(t *testing.T) {
	d := &fakeDispatcher{now: 7}
	g := NewGate(d)
	caller := core.NewExecutionId()

	resp, err := g.Execute(caller, Syscall{Kind: KindSpawnTask, Identity: core.Identity{Kind: "worker"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TaskId.String() == (core.TaskId{}).String() {
		t.Fatal("expected a minted TaskId")
	}
	if d.spawnCalls != 1 {
		t.Fatalf("expected dispatcher to be called once, got %d", d.spawnCalls)
	}

	log := g.Audit()
	if len(log) != 1 || log[0].Tick != 7 || log[0].Caller != caller || log[0].Tag != KindSpawnTask {
		t.Fatalf("unexpected audit entry: %+v", log)
	}
}

func TestGateNowReturnsDispatcherTick(t *testing.T) {
	d := &fakeDispatcher{now: 42}
	g := NewGate(d)
	resp, err := g.Execute(core.NewExecutionId(), Syscall{Kind: KindNow})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Now != 42 {
		t.Fatalf("expected Now=42, got %d", resp.Now)
	}
}
