package simconfig

import (
	"sort"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/hal"
	"github.com/pandagen/kernel/ipc"
	"github.com/pandagen/kernel/kernel"
	"github.com/pandagen/kernel/policy"
	"github.com/pandagen/kernel/storage"
)

// BlockDevice opens the backing device the [global] section describes:
// a RAM disk when Storage-Path is empty (the common case for a
// deterministic in-sim run), or a bbolt-backed device at that path
// otherwise (host-driven persistence across process restarts).
func (sc *Scenario) BlockDevice() (hal.BlockDevice, error) {
	blockSize := uint32(sc.Global.Storage_Block_Size)
	if sc.Global.Storage_Path == "" {
		return storage.NewRamDisk(sc.Global.Storage_Blocks, blockSize), nil
	}
	return storage.OpenBoltBlockDevice(sc.Global.Storage_Path, sc.Global.Storage_Blocks, blockSize)
}

// KernelConfig builds a kernel.Config from the scenario's [global]
// section. plan and policies come from the host separately (a
// FaultPlan is parsed by package faultscript; policy.Func values are
// Go code, not config-file data).
func (sc *Scenario) KernelConfig(plan ipc.FaultPlan, policies ...policy.Named) (kernel.Config, error) {
	log, err := sc.Logger()
	if err != nil {
		return kernel.Config{}, err
	}
	return kernel.Config{
		NanosPerTick: sc.Global.Nanos_Per_Tick,
		QuantumTicks: sc.Global.Quantum_Ticks,
		MemoryBudget: sc.Global.Memory_Budget,
		FaultPlan:    plan,
		Policies:     policies,
		Log:          log,
	}, nil
}

// EDFSpec is one named EDF task from the scenario's [edf-task "name"]
// sections, ready to pass to sched.Scheduler.RegisterEDFTask once the
// host has spawned the backing task and obtained its ExecutionId.
type EDFSpec struct {
	Name          string
	FirstDeadline core.Tick
	Period        uint64
	Budget        uint64
}

// EDFSpecs flattens the scenario's EDF task table into a slice ordered
// by name — map iteration order is not itself deterministic, and EDF
// admission order affects which tasks are rejected when total
// utilization would exceed 1 (sched.RegisterEDFTask), so a scenario
// file must admit its tasks in the same order on every run.
func (sc *Scenario) EDFSpecs() []EDFSpec {
	out := make([]EDFSpec, 0, len(sc.EDF_Task))
	for name, t := range sc.EDF_Task {
		out = append(out, EDFSpec{
			Name:          name,
			FirstDeadline: core.Tick(t.First_Deadline),
			Period:        t.Period,
			Budget:        t.Budget,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
