package kernel

import "github.com/pandagen/kernel/core"

// maxRunUntilIdleSteps bounds RunUntilIdle so a task set that never
// yields, blocks, or exits cannot hang the host loop forever; a real
// cooperative kernel has the same livelock risk. RunUntilIdle then
// returns after this many dispatch steps; nothing else is reported.
const maxRunUntilIdleSteps = 1 << 20

// RunUntilIdle advances the scheduler while any task is ready to run,
// dispatching each in turn and burning its full quantum immediately
// (spec §4.J: "advances scheduler while ready tasks or deliverable
// messages exist"). Task bodies live outside the kernel (spec §9:
// cooperative state machines stepped by the host); a dispatched task
// that issues no further Sleep/Block/Exit call before RunUntilIdle is
// invoked again simply exhausts its quantum and is preempted back to
// Ready, so the loop only terminates once every task has actually
// blocked, exited, or failed. It returns the number of dispatch steps
// taken.
func (k *SimKernel) RunUntilIdle() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	steps := 0
	for steps < maxRunUntilIdleSteps {
		now := k.timer.PollTicks()
		k.bus.DrainDelayed(now)

		id, ok := k.sch.Dispatch(now)
		if !ok {
			break
		}
		steps++
		for {
			exhausted := k.sch.TickCurrent(now)
			if exhausted {
				break
			}
		}
		_ = id
	}
	return steps
}

// AdvanceTime moves the timer forward by n ticks, drains any delayed
// IPC messages and expired leases as of the new tick, and returns the
// new tick. It dispatches no task itself; tasks run again only when the
// host next calls RunUntilIdle.
func (k *SimKernel) AdvanceTime(n uint64) core.Tick {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.timer.AdvanceTicks(n)
	k.bus.DrainDelayed(now)
	k.caps.ExpireLeases(now)
	return now
}
