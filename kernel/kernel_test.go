package kernel

import (
	"testing"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/ipc"
	"github.com/pandagen/kernel/storage"
)

func newTestKernel(t *testing.T) *SimKernel {
	t.Helper()
	k, err := New(Config{QuantumTicks: 4, MemoryBudget: 16}, storage.NewRamDisk(64, 512))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return k
}

func defaultSchema() ipc.SchemaPolicy { return ipc.SchemaPolicy{CurrentMajor: 1, CurrentMinor: 0} }

func TestSpawnGrantsSelfTaskCapability(t *testing.T) {
	k := newTestKernel(t)
	task, err := k.SpawnTask(core.Identity{Kind: "worker"}, core.Budget{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if state, ok := k.Sched().State(task); !ok || state != core.TaskReady {
		t.Fatalf("expected new task Ready, got %v ok=%v", state, ok)
	}
	entry := k.tasks[task]
	if verr := k.ValidateCapability(entry.taskCap, entry.exec); verr != nil {
		t.Fatalf("expected the spawned execution to hold its own task capability: %v", verr)
	}
}

func TestTerminateInvalidatesCapabilitiesAndDestroysSpace(t *testing.T) {
	k := newTestKernel(t)
	task, err := k.SpawnTask(core.Identity{Kind: "worker"}, core.Budget{})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	exec := k.tasks[task].exec
	capId, err := k.Grant(exec, task, core.CapKindTask, 0)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	k.Terminate(exec)
	if verr := k.ValidateCapability(capId, exec); verr == nil || verr.CapReason != core.ReasonOwnerDead {
		t.Fatalf("expected OwnerDead after terminate, got %v", verr)
	}
	if state, ok := k.Sched().State(task); !ok || state != core.TaskExited {
		t.Fatalf("expected Exited after terminate, got %v", state)
	}
	if _, ok := k.Mem().SpaceOf(exec); ok {
		t.Fatal("expected the address space to be destroyed after terminate")
	}
}

func TestChannelSendRequiresCapabilityNamingExactChannel(t *testing.T) {
	k := newTestKernel(t)
	aTask, _ := k.SpawnTask(core.Identity{Kind: "a"}, core.Budget{})
	bTask, _ := k.SpawnTask(core.Identity{Kind: "b"}, core.Budget{})
	a := k.tasks[aTask].exec
	b := k.tasks[bTask].exec

	channel, err := k.CreateChannel(2, []core.ExecutionId{a}, defaultSchema())
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	k.GrantChannelCap(a, channel, core.CapKindChannelReceive)

	env := ipc.Envelope{Action: "ping", SchemaVersion: ipc.SchemaVersion{Major: 1, Minor: 0}, Source: a}
	if serr := k.Send(a, channel, env); serr != nil {
		t.Fatalf("a send: %v", serr)
	}
	// b never received a send cap for this channel; the only candidate
	// cap for this (channel, kind) pair names a, so b sees it as a cap
	// that belongs to someone else rather than one that was never minted.
	if serr := k.Send(b, channel, env); serr == nil || serr.Kind != core.ErrInvalidCapability || serr.CapReason != core.ReasonTransferredAway {
		t.Fatalf("expected TransferredAway for b's send, got %v", serr)
	}

	got, ok, rerr := k.Recv(a, channel)
	if rerr != nil || !ok || got.Action != "ping" {
		t.Fatalf("expected a to receive the envelope, got %+v ok=%v err=%v", got, ok, rerr)
	}
}

func TestDelegateChannelSendCapMovesAuthority(t *testing.T) {
	k := newTestKernel(t)
	aTask, _ := k.SpawnTask(core.Identity{Kind: "a"}, core.Budget{})
	bTask, _ := k.SpawnTask(core.Identity{Kind: "b"}, core.Budget{})
	a := k.tasks[aTask].exec
	b := k.tasks[bTask].exec

	channel, err := k.CreateChannel(2, nil, defaultSchema())
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	capId := k.GrantChannelCap(a, channel, core.CapKindChannelSend)

	if derr := k.DelegateCapability(capId, a, b); derr != nil {
		t.Fatalf("delegate: %v", derr)
	}

	env := ipc.Envelope{Action: "ping", SchemaVersion: ipc.SchemaVersion{Major: 1, Minor: 0}, Source: a}
	if serr := k.Send(a, channel, env); serr == nil || serr.Kind != core.ErrInvalidCapability || serr.CapReason != core.ReasonTransferredAway {
		t.Fatalf("expected a to have lost send authority via TransferredAway, got %v", serr)
	}
	if serr := k.Send(b, channel, env); serr != nil {
		t.Fatalf("expected b to send after delegation: %v", serr)
	}
}

func TestRegionIsolationRequiresExplicitDelegation(t *testing.T) {
	k := newTestKernel(t)
	aTask, _ := k.SpawnTask(core.Identity{Kind: "a"}, core.Budget{})
	bTask, _ := k.SpawnTask(core.Identity{Kind: "b"}, core.Budget{})
	a := k.tasks[aTask].exec
	b := k.tasks[bTask].exec

	spaceA, err := k.CreateAddressSpace(a)
	if err != nil {
		t.Fatalf("create space: %v", err)
	}
	region, err := k.AllocateRegion(a, spaceA, 0, 4096, core.PermRead|core.PermWrite, core.BackingShared)
	if err != nil {
		t.Fatalf("allocate region: %v", err)
	}

	if aerr := k.AccessRegion(b, region, core.PermRead); aerr == nil || aerr.Kind != core.ErrInvalidCapability || aerr.CapReason != core.ReasonTransferredAway {
		t.Fatalf("expected TransferredAway for b before delegation, got %v", aerr)
	}

	regionCap, ok := k.RegionCap(region)
	if !ok {
		t.Fatal("expected a region cap to have been minted")
	}
	if _, err := k.CreateAddressSpace(b); err != nil {
		t.Fatalf("create space for b: %v", err)
	}
	if derr := k.DelegateCapability(regionCap, a, b); derr != nil {
		t.Fatalf("delegate region cap: %v", derr)
	}
	if aerr := k.AccessRegion(b, region, core.PermRead); aerr != nil {
		t.Fatalf("expected b to access after delegation: %v", aerr)
	}
}

func TestRegionWritePermissionIsEnforced(t *testing.T) {
	k := newTestKernel(t)
	aTask, _ := k.SpawnTask(core.Identity{Kind: "a"}, core.Budget{})
	a := k.tasks[aTask].exec
	space, _ := k.CreateAddressSpace(a)
	region, err := k.AllocateRegion(a, space, 0, 4096, core.PermRead, core.BackingAnonymous)
	if err != nil {
		t.Fatalf("allocate region: %v", err)
	}
	if aerr := k.AccessRegion(a, region, core.PermWrite); aerr == nil || aerr.Kind != core.ErrPermissionDenied {
		t.Fatalf("expected PermissionDenied for write on a read-only region, got %v", aerr)
	}
}

func TestStorageWriteReadCommitRollback(t *testing.T) {
	k := newTestKernel(t)
	obj := core.NewObjectId()

	tx1 := k.BeginTx()
	if werr := k.WriteObject(tx1, obj, "doc", 1, []byte("v2")); werr != nil {
		t.Fatalf("write: %v", werr)
	}
	tx2 := k.BeginTx()
	if _, rerr := k.ReadObject(tx2, obj); rerr == nil || rerr.Kind != core.ErrTargetUnknown {
		t.Fatalf("expected no committed version visible yet from another tx, got %v", rerr)
	}
	if cerr := k.RollbackTx(tx1); cerr != nil {
		t.Fatalf("rollback: %v", cerr)
	}

	tx3 := k.BeginTx()
	if werr := k.WriteObject(tx3, obj, "doc", 1, []byte("v1")); werr != nil {
		t.Fatalf("write v1: %v", werr)
	}
	if cerr := k.CommitTx(tx3); cerr != nil {
		t.Fatalf("commit: %v", cerr)
	}
	tx4 := k.BeginTx()
	got, rerr := k.ReadObject(tx4, obj)
	if rerr != nil || string(got) != "v1" {
		t.Fatalf("expected v1 after commit, got %q err=%v", got, rerr)
	}
}

func TestServiceRegistrationPublishesExistingChannelOnly(t *testing.T) {
	k := newTestKernel(t)
	aTask, _ := k.SpawnTask(core.Identity{Kind: "a"}, core.Budget{})
	a := k.tasks[aTask].exec
	channel, err := k.CreateChannel(1, nil, defaultSchema())
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	service := core.NewServiceId()

	if serr := k.RegisterService(a, service, channel); serr == nil || serr.Kind != core.ErrNoCapability {
		t.Fatalf("expected NoCapability without a receive cap, got %v", serr)
	}
	k.GrantChannelCap(a, channel, core.CapKindChannelReceive)
	if serr := k.RegisterService(a, service, channel); serr != nil {
		t.Fatalf("register service: %v", serr)
	}

	got, lerr := k.LookupService(a, service)
	if lerr != nil || got != channel {
		t.Fatalf("expected lookup to resolve the registered channel, got %v err=%v", got, lerr)
	}
}

func TestRunUntilIdleStopsOnceTasksBlock(t *testing.T) {
	k := newTestKernel(t)
	task, _ := k.SpawnTask(core.Identity{Kind: "worker"}, core.Budget{})
	exec := k.tasks[task].exec
	// a task that immediately sleeps never re-enters Ready on its own.
	if serr := k.Sleep(exec, 10); serr != nil {
		t.Fatalf("sleep: %v", serr)
	}
	if steps := k.RunUntilIdle(); steps != 0 {
		t.Fatalf("expected 0 dispatch steps with the only task blocked, got %d", steps)
	}
}

func TestAdvanceTimeExpiresLease(t *testing.T) {
	k := newTestKernel(t)
	aTask, _ := k.SpawnTask(core.Identity{Kind: "a"}, core.Budget{})
	a := k.tasks[aTask].exec

	capId, err := k.Grant(a, aTask, core.CapKindTask, 5)
	if err != nil {
		t.Fatalf("grant with lease: %v", err)
	}
	if verr := k.ValidateCapability(capId, a); verr != nil {
		t.Fatalf("expected valid before lease expiry: %v", verr)
	}
	k.AdvanceTime(5)
	if verr := k.ValidateCapability(capId, a); verr == nil || verr.CapReason != core.ReasonLeaseExpired {
		t.Fatalf("expected LeaseExpired after advancing past the lease, got %v", verr)
	}
}
