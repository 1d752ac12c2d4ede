package sched

import (
	"testing"

	"github.com/pandagen/kernel/core"
)

func TestEDFAdmissionRejectsOverload(t *testing.T) {
	s := NewScheduler(4)
	t1 := core.NewTaskId()
	if err := s.RegisterEDFTask(t1, core.NewExecutionId(), 5, 10, 6); err != nil {
		t.Fatalf("first task should admit: %v", err)
	}
	t2 := core.NewTaskId()
	// 6/10 + 6/10 = 1.2 > 1, must be rejected.
	err := s.RegisterEDFTask(t2, core.NewExecutionId(), 5, 10, 6)
	if err == nil || err.Kind != core.ErrBudgetExhausted {
		t.Fatalf("expected BudgetExhausted on overload, got %v", err)
	}
	if _, ok := s.State(t2); ok {
		t.Fatal("rejected EDF task must not be registered")
	}
}

func TestEDFAdmissionAcceptsFeasibleSet(t *testing.T) {
	s := NewScheduler(4)
	t1 := core.NewTaskId()
	t2 := core.NewTaskId()
	if err := s.RegisterEDFTask(t1, core.NewExecutionId(), 5, 10, 3); err != nil {
		t.Fatalf("t1: %v", err)
	}
	// 3/10 + 4/10 = 0.7 <= 1.
	if err := s.RegisterEDFTask(t2, core.NewExecutionId(), 3, 10, 4); err != nil {
		t.Fatalf("t2: %v", err)
	}
}

func TestEDFPicksEarliestDeadlineOverRoundRobin(t *testing.T) {
	s := NewScheduler(4)
	rr := core.NewTaskId()
	s.RegisterTask(rr, core.NewExecutionId())

	urgent := core.NewTaskId()
	if err := s.RegisterEDFTask(urgent, core.NewExecutionId(), 3, 10, 2); err != nil {
		t.Fatalf("register edf: %v", err)
	}

	got, ok := s.Dispatch(0)
	if !ok || got != urgent {
		t.Fatalf("expected EDF task to preempt round-robin, got %v ok=%v", got, ok)
	}
}

func TestDeadlineMissIsRecordedNotFaulted(t *testing.T) {
	s := NewScheduler(4)
	id := core.NewTaskId()
	if err := s.RegisterEDFTask(id, core.NewExecutionId(), 3, 10, 2); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := s.Dispatch(0); !ok {
		t.Fatal("expected dispatch")
	}
	// Task is still Running past its deadline at tick 5.
	if _, ok := s.Dispatch(5); !ok {
		t.Fatal("expected continued dispatch past a missed deadline")
	}
	if got := s.MissCount(id); got != 1 {
		t.Fatalf("expected exactly one recorded miss, got %d", got)
	}
}
