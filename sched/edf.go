package sched

import "github.com/pandagen/kernel/core"

type edfParams struct {
	deadline core.Tick // absolute tick this instance must finish by
	period   uint64
	budget   uint64 // ticks of work required per period
}

// utilization is budget/period as an exact rational comparison, avoided
// via cross-multiplication to stay integer-only (no float drift across
// a deterministic simulation).
func utilizationExceeds(sumBudget, sumPeriod, addBudget, addPeriod uint64, limit uint64 /* numerator over denominator=limit */) bool {
	// sum(budget_i/period_i) > 1  <=>  sum(budget_i * prod/period_i) > prod
	// Compare pairwise via a running (num, den) pair: num/den + addBudget/addPeriod > 1
	// num*addPeriod + addBudget*den > den*addPeriod
	return sumBudget*addPeriod+addBudget*sumPeriod > sumPeriod*addPeriod
}

// RegisterEDFTask admits a real-time task under earliest-deadline-first
// scheduling (spec §4.F "EDF real-time"). Admission is rejected — no
// task record is created — when the new task would push total
// utilization sum(budget_i/period_i) over 1, per spec §8 testable
// property 5 (EDF admission test rejects overloaded task sets).
func (s *Scheduler) RegisterEDFTask(id core.TaskId, exec core.ExecutionId, firstDeadline core.Tick, period, budget uint64) *core.KernelError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if period == 0 {
		return core.PermissionDenied("EDF period must be non-zero")
	}
	if budget == 0 || budget > period {
		return core.PermissionDenied("EDF budget must be non-zero and at most the period")
	}

	var sumBudget, sumPeriod uint64 = 0, 1
	for _, t := range s.tasks {
		if t.policy != EDF || t.edf == nil {
			continue
		}
		if sumPeriod == 1 && sumBudget == 0 {
			sumBudget, sumPeriod = t.edf.budget, t.edf.period
			continue
		}
		// fold t into the running (sumBudget, sumPeriod) ratio
		sumBudget = sumBudget*t.edf.period + t.edf.budget*sumPeriod
		sumPeriod = sumPeriod * t.edf.period
	}

	if utilizationExceeds(sumBudget, sumPeriod, budget, period, 1) {
		return core.BudgetExhausted(core.BudgetCpuTicks, budget, 0)
	}

	s.tasks[id] = &taskRecord{
		id:     id,
		exec:   exec,
		state:  core.TaskReady,
		policy: EDF,
		edf:    &edfParams{deadline: firstDeadline, period: period, budget: budget},
	}
	return nil
}

// pickEDFLocked returns the ready EDF task with the earliest absolute
// deadline, if any is Ready. Ties break on TaskId comparison, which is
// stable (UUID bytes) and therefore deterministic across replays.
func (s *Scheduler) pickEDFLocked() (core.TaskId, bool) {
	var best *taskRecord
	for _, t := range s.tasks {
		if t.policy != EDF || t.state != core.TaskReady {
			continue
		}
		if best == nil || t.edf.deadline < best.edf.deadline ||
			(t.edf.deadline == best.edf.deadline && t.id.String() < best.id.String()) {
			best = t
		}
	}
	if best == nil {
		return core.TaskId{}, false
	}
	return best.id, true
}

// AdvanceEDFPeriod rolls a completed EDF task's deadline forward by one
// period and returns it to Ready, for the next periodic instance (spec
// §4.F periodic task model).
func (s *Scheduler) AdvanceEDFPeriod(id core.TaskId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.policy != EDF || t.edf == nil {
		return
	}
	t.edf.deadline = core.Tick(uint64(t.edf.deadline) + t.edf.period)
	t.state = core.TaskReady
}

// checkMissesLocked records a DeadlineMiss for every EDF task still
// Running or Ready past its absolute deadline as of now (spec §9 Open
// Question b: misses are counted, never turned into a fault or abort).
// Called with s.mu already held.
func (s *Scheduler) checkMissesLocked(now core.Tick) {
	for _, t := range s.tasks {
		if t.policy != EDF || t.edf == nil {
			continue
		}
		if (t.state == core.TaskRunning || t.state == core.TaskReady) && now > t.edf.deadline {
			s.misses = append(s.misses, DeadlineMiss{Task: t.id, Deadline: t.edf.deadline, Observed: now})
			s.log.Debug("sched", "EDF task %s missed deadline %d at tick %d", t.id, t.edf.deadline, now)
			t.edf.deadline = core.Tick(uint64(t.edf.deadline) + t.edf.period)
			t.state = core.TaskReady
			if s.current != nil && *s.current == t.id {
				s.current = nil
			}
		}
	}
}
