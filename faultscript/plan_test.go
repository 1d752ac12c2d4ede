package faultscript

import (
	"testing"

	"github.com/pandagen/kernel/core"
	"github.com/pandagen/kernel/ipc"
)

const sampleScript = `
drop:
  count: 2
  channel: worker-out
delay:
  count: 1
  ticks: 5
delay_unused: ignored
crash_on_send:
  - control
crash_after_n:
  telemetry: 100
`

func TestLoadBytesParsesAllActionKinds(t *testing.T) {
	sc, err := LoadBytes([]byte(sampleScript))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if sc.Drop == nil || sc.Drop.Count != 2 || sc.Drop.Channel != "worker-out" {
		t.Fatalf("unexpected drop rule: %+v", sc.Drop)
	}
	if sc.Delay == nil || sc.Delay.Count != 1 || sc.Delay.Ticks != 5 || sc.Delay.Channel != "" {
		t.Fatalf("unexpected delay rule: %+v", sc.Delay)
	}
	if len(sc.CrashOnSend) != 1 || sc.CrashOnSend[0] != "control" {
		t.Fatalf("unexpected crash_on_send: %+v", sc.CrashOnSend)
	}
	if sc.CrashAfterN["telemetry"] != 100 {
		t.Fatalf("unexpected crash_after_n: %+v", sc.CrashAfterN)
	}
}

func TestResolveBuildsFaultPlan(t *testing.T) {
	sc, err := LoadBytes([]byte(sampleScript))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	workerOut := core.NewChannelId()
	control := core.NewChannelId()
	telemetry := core.NewChannelId()
	names := map[string]core.ChannelId{
		"worker-out": workerOut,
		"control":    control,
		"telemetry":  telemetry,
	}

	plan, err := sc.Resolve(names)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if plan.DropNext != 2 || plan.DropChannel != workerOut {
		t.Fatalf("unexpected drop fields: %+v", plan)
	}
	if plan.DelayNext != 1 || plan.DelayTicks != 5 || plan.DelayChannel != (core.ChannelId{}) {
		t.Fatalf("unexpected delay fields: %+v", plan)
	}
	if !plan.CrashOnSend[control] {
		t.Fatalf("expected crash_on_send for control channel")
	}
	if plan.CrashAfterN[telemetry] != 100 {
		t.Fatalf("unexpected crash_after_n: %+v", plan.CrashAfterN)
	}

	inj := ipc.NewInjector(plan)
	if action, _ := inj.OnSend(workerOut); action != ipc.ActionDrop {
		t.Fatalf("expected first worker-out send to drop, got %v", action)
	}
	if action, _ := inj.OnSend(control); action != ipc.ActionCrash {
		t.Fatalf("expected control send to crash, got %v", action)
	}
}

func TestResolveRejectsUnknownChannelName(t *testing.T) {
	sc, err := LoadBytes([]byte("drop:\n  count: 1\n  channel: ghost\n"))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	if _, err := sc.Resolve(map[string]core.ChannelId{}); err == nil {
		t.Fatal("expected an error resolving an unknown channel name")
	}
}

func TestEmptyScriptResolvesToZeroValuePlan(t *testing.T) {
	sc, err := LoadBytes([]byte(""))
	if err != nil {
		t.Fatalf("LoadBytes: %v", err)
	}
	plan, err := sc.Resolve(nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if plan.DropNext != 0 || plan.DelayNext != 0 || plan.ReorderNext != 0 ||
		len(plan.CrashOnSend) != 0 || len(plan.CrashOnRecv) != 0 || len(plan.CrashAfterN) != 0 {
		t.Fatalf("expected a zero-value plan, got %+v", plan)
	}
}
