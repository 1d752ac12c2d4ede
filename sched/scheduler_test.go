package sched

import (
	"testing"

	"github.com/pandagen/kernel/core"
)

func TestRoundRobinFIFOAndRequeue(t *testing.T) {
	s := NewScheduler(2)
	a, b := core.NewTaskId(), core.NewTaskId()
	s.RegisterTask(a, core.NewExecutionId())
	s.RegisterTask(b, core.NewExecutionId())

	got, ok := s.Dispatch(0)
	if !ok || got != a {
		t.Fatalf("expected a first, got %v ok=%v", got, ok)
	}
	s.TickCurrent(1)
	if exhausted := s.TickCurrent(2); !exhausted {
		t.Fatal("expected quantum exhaustion on second tick")
	}

	got, ok = s.Dispatch(2)
	if !ok || got != b {
		t.Fatalf("expected b next, got %v ok=%v", got, ok)
	}
}

func TestBlockedTaskNotDispatched(t *testing.T) {
	s := NewScheduler(4)
	a, b := core.NewTaskId(), core.NewTaskId()
	s.RegisterTask(a, core.NewExecutionId())
	s.RegisterTask(b, core.NewExecutionId())

	got, _ := s.Dispatch(0)
	if got != a {
		t.Fatalf("expected a, got %v", got)
	}
	s.Block(a)

	got, ok := s.Dispatch(0)
	if !ok || got != b {
		t.Fatalf("expected b after a blocks, got %v ok=%v", got, ok)
	}

	s.Ready(a)
	got, ok = s.Dispatch(0)
	if !ok || got != a {
		t.Fatalf("expected a back at the tail, got %v ok=%v", got, ok)
	}
}

func TestExitedTaskNeverReturnsToReadyQueue(t *testing.T) {
	s := NewScheduler(4)
	a := core.NewTaskId()
	s.RegisterTask(a, core.NewExecutionId())
	s.Dispatch(0)
	s.Exit(a)
	s.Ready(a)

	if _, ok := s.Dispatch(0); ok {
		t.Fatal("exited task must never be dispatched again")
	}
	state, _ := s.State(a)
	if state != core.TaskExited {
		t.Fatalf("expected Exited, got %v", state)
	}
}
