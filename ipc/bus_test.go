package ipc

import (
	"testing"

	"github.com/pandagen/kernel/core"
)

func defaultPolicy() SchemaPolicy { return SchemaPolicy{CurrentMajor: 1, CurrentMinor: 2, MinMajor: 1} }

func TestChannelFullAndDrain(t *testing.T) {
	id := core.NewChannelId()
	exec := core.NewExecutionId()
	bus := NewBus(FaultPlan{})
	bus.Register(NewChannel(id, 2, []core.ExecutionId{exec}, defaultPolicy(), nil))

	env := Envelope{Action: "ping", SchemaVersion: SchemaVersion{1, 0}, Source: exec}
	if r := bus.Send(0, id, env, exec); r.Err != nil {
		t.Fatalf("send 1: %v", r.Err)
	}
	if r := bus.Send(0, id, env, exec); r.Err != nil {
		t.Fatalf("send 2: %v", r.Err)
	}
	r := bus.Send(0, id, env, exec)
	if r.Err == nil || r.Err.Kind != core.ErrChannelFull {
		t.Fatalf("expected ChannelFull, got %v", r.Err)
	}

	if _, _, _, err := bus.Receive(id); err != nil {
		t.Fatalf("receive: %v", err)
	}
	// slot freed, send should succeed again
	if r := bus.Send(0, id, env, exec); r.Err != nil {
		t.Fatalf("send after receive: %v", r.Err)
	}
}

func TestDropNextFaultPlan(t *testing.T) {
	id := core.NewChannelId()
	exec := core.NewExecutionId()
	bus := NewBus(FaultPlan{DropNext: 2})
	bus.Register(NewChannel(id, 10, []core.ExecutionId{exec}, defaultPolicy(), nil))

	for i := 0; i < 3; i++ {
		env := Envelope{Action: "ping", SchemaVersion: SchemaVersion{1, 0}, Source: exec}
		r := bus.Send(0, id, env, exec)
		if r.Err != nil {
			t.Fatalf("send %d: %v", i, r.Err)
		}
	}

	ch, _ := bus.Channel(id)
	if got := ch.Len(); got != 1 {
		t.Fatalf("expected exactly 1 surviving envelope, got %d", got)
	}
	env, ok, action, err := bus.Receive(id)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !ok || action != ActionDeliver || env.Action != "ping" {
		t.Fatalf("expected the surviving envelope, got %+v action=%v", env, action)
	}

	var drops int
	for _, ev := range bus.Events() {
		if ev.Kind == EventDropped {
			drops++
		}
	}
	if drops != 2 {
		t.Fatalf("expected 2 drop events, got %d", drops)
	}
}

func TestSchemaCompatibility(t *testing.T) {
	p := SchemaPolicy{CurrentMajor: 2, CurrentMinor: 3, MinMajor: 1}
	if got := p.Check(SchemaVersion{2, 4}); got != UpgradeRequired {
		t.Fatalf("expected UpgradeRequired, got %v", got)
	}
	if got := p.Check(SchemaVersion{0, 9}); got != Unsupported {
		t.Fatalf("expected Unsupported, got %v", got)
	}
	if got := p.Check(SchemaVersion{2, 1}); got != Compatible {
		t.Fatalf("expected Compatible, got %v", got)
	}
}

func TestDelayedDelivery(t *testing.T) {
	id := core.NewChannelId()
	exec := core.NewExecutionId()
	bus := NewBus(FaultPlan{DelayNext: 1, DelayTicks: 5})
	bus.Register(NewChannel(id, 10, []core.ExecutionId{exec}, defaultPolicy(), nil))

	env := Envelope{Action: "ping", SchemaVersion: SchemaVersion{1, 0}, Source: exec}
	if r := bus.Send(10, id, env, exec); r.Err != nil || r.Action != ActionDelay {
		t.Fatalf("expected delayed send, got %+v", r)
	}
	ch, _ := bus.Channel(id)
	if ch.Len() != 0 {
		t.Fatalf("message should not be visible yet")
	}
	bus.DrainDelayed(14)
	if ch.Len() != 0 {
		t.Fatalf("message should not deliver before its tick")
	}
	bus.DrainDelayed(15)
	if ch.Len() != 1 {
		t.Fatalf("message should deliver at tick 15")
	}
}
