// Package sched implements the cooperative scheduler of spec §4.F:
// round-robin by default, an EDF real-time variant, simulated ticks,
// preemption budgets, and deadline-miss accounting. Grounded on the
// teacher's gwcli/busywait poll loop and on other_examples'
// gavinmbell-harpoon scheduler/registry (a signal-driven state machine
// with an admission-style check before a job enters the schedule).
package sched

import (
	"sync"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/klog"
)

// Policy names a task's scheduling class.
type Policy int

const (
	RoundRobin Policy = iota
	EDF
)

type taskRecord struct {
	id       core.TaskId
	exec     core.ExecutionId
	state    core.TaskState
	policy   Policy
	quantumUsed uint64
	edf      *edfParams
}

// DeadlineMiss records one EDF deadline overrun (spec §9 Open Question b:
// a miss is recorded, never auto-escalated to a fault).
type DeadlineMiss struct {
	Task     core.TaskId
	Deadline core.Tick
	Observed core.Tick
}

// Scheduler is the single-threaded cooperative scheduler for one
// SimKernel instance (spec §4.F, §5: no parallelism inside the core).
type Scheduler struct {
	mu sync.Mutex

	quantumTicks uint64

	rrReady []core.TaskId
	tasks   map[core.TaskId]*taskRecord

	current *core.TaskId

	misses []DeadlineMiss

	log *klog.Logger
}

// NewScheduler returns a scheduler with the given round-robin quantum.
func NewScheduler(quantumTicks uint64) *Scheduler {
	if quantumTicks == 0 {
		quantumTicks = 1
	}
	return &Scheduler{
		quantumTicks: quantumTicks,
		tasks:        make(map[core.TaskId]*taskRecord),
		log:          klog.NewDiscard(),
	}
}

// SetLogger routes deadline-miss events to l.
func (s *Scheduler) SetLogger(l *klog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = l
}

// RegisterTask adds a round-robin task in the Ready state, at the tail
// of the ready queue.
func (s *Scheduler) RegisterTask(id core.TaskId, exec core.ExecutionId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = &taskRecord{id: id, exec: exec, state: core.TaskReady, policy: RoundRobin}
	s.rrReady = append(s.rrReady, id)
}

// Ready moves a blocked or newly-registered task back into its ready
// set (RR tail, or EDF ready pool).
func (s *Scheduler) Ready(id core.TaskId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.state == core.TaskExited || t.state == core.TaskFailed {
		return
	}
	t.state = core.TaskReady
	if t.policy == RoundRobin {
		s.rrReady = append(s.rrReady, id)
	}
}

// Block marks a task as blocked (e.g. receive on an empty channel),
// removing it from further dispatch until Ready is called again.
func (s *Scheduler) Block(id core.TaskId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.state = core.TaskBlocked
	}
}

// Exit marks a task Exited; it is never dispatched again.
func (s *Scheduler) Exit(id core.TaskId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.state = core.TaskExited
	}
}

// Fail marks a task Failed; it is never dispatched again.
func (s *Scheduler) Fail(id core.TaskId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.state = core.TaskFailed
	}
}

// State reports a task's current lifecycle state.
func (s *Scheduler) State(id core.TaskId) (core.TaskState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return 0, false
	}
	return t.state, true
}

// Dispatch selects the next task to run (spec §4.F): an admitted EDF
// task with the earliest deadline takes priority over round-robin tasks,
// matching "EDF real-time" being layered above the RR default. Within
// round-robin, the ready queue is strict FIFO. The chosen task is marked
// Running and becomes `current`; its quantum usage is reset.
func (s *Scheduler) Dispatch(now core.Tick) (core.TaskId, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.checkMissesLocked(now)

	if id, ok := s.pickEDFLocked(); ok {
		t := s.tasks[id]
		t.state = core.TaskRunning
		t.quantumUsed = 0
		s.current = &id
		return id, true
	}

	for len(s.rrReady) > 0 {
		id := s.rrReady[0]
		s.rrReady = s.rrReady[1:]
		t, ok := s.tasks[id]
		if !ok || t.state != core.TaskReady {
			continue
		}
		t.state = core.TaskRunning
		t.quantumUsed = 0
		s.current = &id
		return id, true
	}
	return core.TaskId{}, false
}

// TickCurrent advances the currently running task's quantum usage by one
// tick and reports whether its quantum is now exhausted (spec §4.F
// "Preemption"). If exhausted, the task is re-queued at the tail of the
// ready queue (round-robin) and `current` is cleared. An EDF task instead
// reports exhaustion once it has used its per-period budget; its
// deadline then moves one period forward and it returns to Ready.
func (s *Scheduler) TickCurrent(now core.Tick) (exhausted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return false
	}
	id := *s.current
	t, ok := s.tasks[id]
	if !ok || t.state != core.TaskRunning {
		s.current = nil
		return false
	}
	t.quantumUsed++
	if t.policy == EDF {
		// EDF tasks run to completion of their work unit (budget ticks
		// per period), not a fixed quantum.
		if t.quantumUsed < t.edf.budget {
			return false
		}
		t.edf.deadline = core.Tick(uint64(t.edf.deadline) + t.edf.period)
		t.state = core.TaskReady
		s.current = nil
		return true
	}
	if t.quantumUsed >= s.quantumTicks {
		t.state = core.TaskReady
		s.rrReady = append(s.rrReady, id)
		s.current = nil
		return true
	}
	return false
}

// Misses returns a snapshot of every recorded deadline miss.
func (s *Scheduler) Misses() []DeadlineMiss {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadlineMiss, len(s.misses))
	copy(out, s.misses)
	return out
}

// MissCount reports how many deadline misses a specific task has
// accumulated.
func (s *Scheduler) MissCount(id core.TaskId) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.misses {
		if m.Task == id {
			n++
		}
	}
	return n
}
