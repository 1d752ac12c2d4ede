// Package kernel assembles the kernel components (core, captable, ipc,
// memory, sched, storage, policy) into one SimKernel instance exposing
// the KernelApi surface of spec §6; package syscall wraps a SimKernel
// from the outside rather than being assembled here. Grounded on the teacher's root
// package (muxer.go's IngestMuxer, api.go): one struct owns every
// subsystem, holds a single mutex-protected registry of live
// connections (here: tasks), and exposes the public operations other
// packages call through.
package kernel

import (
	"sync"

	"github.com/pandagen/kernel/captable"
	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/hal"
	"github.com/pandagen/kernel/ipc"
	"github.com/pandagen/kernel/klog"
	"github.com/pandagen/kernel/memory"
	"github.com/pandagen/kernel/policy"
	"github.com/pandagen/kernel/sched"
	"github.com/pandagen/kernel/storage"
)

// taskEntry is the kernel's record of one spawned task, joining a
// TaskId to the ExecutionId authority and budget accrue to (spec §3:
// "ExecutionId survives task restarts only if re-granted").
type taskEntry struct {
	task     core.TaskId
	exec     core.ExecutionId
	identity core.Identity
	budget   core.Budget
	taskCap  core.CapId // CapKindTask, owned by exec, targets task.String()
}

// SimKernel composes every kernel component into one deterministic
// instance (spec §4.J). There is exactly one of these per simulation
// run; nothing here is a process-wide singleton (spec §9).
type SimKernel struct {
	mu sync.Mutex

	timer *hal.SimTimer
	caps  *captable.Table
	bus   *ipc.Bus
	mem   *memory.Manager
	sch   *sched.Scheduler
	store *storage.Store
	pol   *policy.Engine
	log   *klog.Logger

	tasks       map[core.TaskId]*taskEntry
	services    map[core.ServiceId]core.ChannelId
	regionCaps  map[core.MemoryRegionId]core.CapId
	channelCaps map[core.ChannelId]map[core.CapKind][]core.CapId

	defaultMemoryBudget uint64
}

// Config carries the knobs a scenario loader (package simconfig)
// populates before constructing a SimKernel.
type Config struct {
	NanosPerTick uint64
	QuantumTicks uint64
	MemoryBudget uint64 // pages granted to every spawned ExecutionId
	FaultPlan    ipc.FaultPlan
	Policies     []policy.Named
	Log          *klog.Logger // nil discards; every component logs through this one instance
}

// New assembles a SimKernel from its components. dev backs the storage
// transaction layer; pass storage.NewRamDisk for an in-sim run or a
// storage.BoltBlockDevice for a persistent one. Every owned component is
// handed the same logger (spec SPEC_FULL.md ambient stack: "every
// kernel component is constructed with a *klog.Logger"), so one
// kernel instance's DEBUG trail interleaves capability, ipc, memory,
// scheduler, storage and policy events in call order.
func New(cfg Config, dev hal.BlockDevice) (*SimKernel, *core.KernelError) {
	st, err := storage.Open(dev)
	if err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = klog.NewDiscard()
	}

	caps := captable.New()
	bus := ipc.NewBus(cfg.FaultPlan)
	mem := memory.NewManager()
	sch := sched.NewScheduler(cfg.QuantumTicks)
	pol := policy.NewEngine(cfg.Policies...)
	caps.SetLogger(log)
	bus.SetLogger(log)
	mem.SetLogger(log)
	sch.SetLogger(log)
	pol.SetLogger(log)
	st.SetLogger(log)

	return &SimKernel{
		timer:               hal.NewSimTimer(cfg.NanosPerTick),
		caps:                caps,
		bus:                 bus,
		mem:                 mem,
		sch:                 sch,
		store:               st,
		pol:                 pol,
		log:                 log,
		tasks:               make(map[core.TaskId]*taskEntry),
		services:            make(map[core.ServiceId]core.ChannelId),
		regionCaps:          make(map[core.MemoryRegionId]core.CapId),
		channelCaps:         make(map[core.ChannelId]map[core.CapKind][]core.CapId),
		defaultMemoryBudget: cfg.MemoryBudget,
	}, nil
}

// Now returns the kernel's current tick, the only place wall-clock-free
// time is ever read inside the core (spec §4.F).
func (k *SimKernel) Now() core.Tick { return k.timer.PollTicks() }

// Caps, Bus, Mem, Sched, Store, Policy expose the owned components for
// test harnesses and the determinism package to inspect audit trails
// directly. SimKernel is the mutation path for everything except EDF
// registration, which host code (cmd/pandagen-sim's run command) does
// through Sched().RegisterEDFTask.
func (k *SimKernel) Caps() *captable.Table   { return k.caps }
func (k *SimKernel) Bus() *ipc.Bus           { return k.bus }
func (k *SimKernel) Mem() *memory.Manager    { return k.mem }
func (k *SimKernel) Sched() *sched.Scheduler { return k.sch }
func (k *SimKernel) Store() *storage.Store   { return k.store }
func (k *SimKernel) Policy() *policy.Engine  { return k.pol }
