package kernel

import (
	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/policy"
)

// SpawnTask mints a fresh ExecutionId and TaskId, enforces policy at the
// spawn enforcement point (spec §4.I "at minimum, spawn_task"), grants
// the new execution a Task capability over itself, seeds its memory
// budget, and registers it with the scheduler in round-robin class.
func (k *SimKernel) SpawnTask(identity core.Identity, budget core.Budget) (core.TaskId, *core.KernelError) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.timer.PollTicks()
	if err := k.pol.Enforce(policy.Context{Event: policy.OnSpawn, Identity: identity, Now: now}); err != nil {
		return core.TaskId{}, err
	}

	exec := core.NewExecutionId()
	task := core.NewTaskId()
	capId := k.caps.GrantForTarget(now, exec, core.CapKindTask, task.String())

	k.mem.SetBudget(exec, k.defaultMemoryBudget)
	k.mem.CreateSpace(exec)
	k.sch.RegisterTask(task, exec)

	k.tasks[task] = &taskEntry{task: task, exec: exec, identity: identity, budget: budget, taskCap: capId}
	k.log.Info("kernel", "spawned task %s (exec %s, identity %s)", task, exec, identity.Kind)
	return task, nil
}

// Terminate ends execution: every capability execution owns is
// invalidated (OwnerDead), its address space is destroyed, and its
// scheduler record is marked Exited (spec §3 Task lifecycle:
// "Termination invalidates all owned capabilities and destroys the
// address space").
func (k *SimKernel) Terminate(execution core.ExecutionId) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.terminateLocked(execution)
}

func (k *SimKernel) terminateLocked(execution core.ExecutionId) {
	now := k.timer.PollTicks()
	k.caps.OnTaskTermination(now, execution)
	k.mem.DestroySpace(execution)
	for id, t := range k.tasks {
		if t.exec == execution {
			k.sch.Exit(id)
		}
	}
	k.log.Info("kernel", "terminated exec %s", execution)
}

// Sleep blocks caller's task for the given number of ticks by removing
// it from the ready set; the host loop is responsible for calling Ready
// again once that many ticks have elapsed (spec §4.F suspension points:
// "sleep" is a task-level suspension, never a kernel-side block).
func (k *SimKernel) Sleep(caller core.ExecutionId, ticks uint64) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	id, ok := k.taskForExecLocked(caller)
	if !ok {
		return core.TargetUnknown()
	}
	k.sch.Block(id)
	return nil
}

// Yield cooperatively relinquishes the current quantum, returning
// caller's task to the tail of the ready queue immediately (spec §4.F
// "a task runs until it yields").
func (k *SimKernel) Yield(caller core.ExecutionId) *core.KernelError {
	k.mu.Lock()
	defer k.mu.Unlock()
	id, ok := k.taskForExecLocked(caller)
	if !ok {
		return core.TargetUnknown()
	}
	k.sch.Ready(id)
	return nil
}

func (k *SimKernel) taskForExecLocked(exec core.ExecutionId) (core.TaskId, bool) {
	for id, t := range k.tasks {
		if t.exec == exec {
			return id, true
		}
	}
	return core.TaskId{}, false
}

// ExecutionOf returns the ExecutionId a spawned task's authority and
// budget accrue to, for callers (such as an EDF task registrar) that
// only have the TaskId SpawnTask returned.
func (k *SimKernel) ExecutionOf(task core.TaskId) (core.ExecutionId, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t, ok := k.tasks[task]
	if !ok {
		return core.ExecutionId{}, false
	}
	return t.exec, true
}
